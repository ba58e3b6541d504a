package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Input sources
const (
	SourceStdin     = "stdin"
	SourceFile      = "file"
	SourceGenerator = "generator"
)

// Output sinks
const (
	SinkStdout = "stdout"
	SinkKafka  = "kafka"
)

// Config represents the application configuration
type Config struct {
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Input     InputConfig     `mapstructure:"input"`
	Output    OutputConfig    `mapstructure:"output"`
	Generator GeneratorConfig `mapstructure:"generator"`
}

// KafkaConfig represents Kafka connection configuration
type KafkaConfig struct {
	Brokers          []string       `mapstructure:"brokers"`
	SecurityProtocol string         `mapstructure:"securityProtocol"` // PLAINTEXT, SASL_SSL, SASL_PLAINTEXT
	SASLMechanism    string         `mapstructure:"saslMechanism"`    // PLAIN, SCRAM-SHA-256, SCRAM-SHA-512, AWS_MSK_IAM
	SASLUsername     string         `mapstructure:"saslUsername"`
	SASLPassword     string         `mapstructure:"saslPassword"`
	TLS              TLSConfig      `mapstructure:"tls"`
	Producer         ProducerConfig `mapstructure:"producer"`
	AWSMSK           AWSMSKConfig   `mapstructure:"awsMsk"`
}

// TLSConfig represents TLS configuration
type TLSConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	CACertFile         string `mapstructure:"caCertFile"`
	ClientCertFile     string `mapstructure:"clientCertFile"`
	ClientKeyFile      string `mapstructure:"clientKeyFile"`
	InsecureSkipVerify bool   `mapstructure:"insecureSkipVerify"`
}

// ProducerConfig represents Kafka producer configuration
type ProducerConfig struct {
	RequiredAcks     int    `mapstructure:"requiredAcks"`    // 0=NoResponse, 1=WaitForLocal, -1=WaitForAll
	CompressionType  string `mapstructure:"compressionType"` // none, gzip, snappy, lz4, zstd
	MaxMessageBytes  int    `mapstructure:"maxMessageBytes"`
	IdempotentWrites bool   `mapstructure:"idempotentWrites"`
	RetryMax         int    `mapstructure:"retryMax"`
	RetryBackoffMs   int    `mapstructure:"retryBackoffMs"`
}

// AWSMSKConfig represents AWS MSK specific configuration
type AWSMSKConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Region  string `mapstructure:"region"`
}

// InputConfig selects where records are read from
type InputConfig struct {
	Source string `mapstructure:"source"` // stdin, file, generator
	Path   string `mapstructure:"path"`   // JSON-lines file for the file source
}

// OutputConfig selects where keyed records are written
type OutputConfig struct {
	Sink        string `mapstructure:"sink"` // stdout, kafka
	Topic       string `mapstructure:"topic"`
	CloudEvents bool   `mapstructure:"cloudEvents"` // wrap records in a CloudEvent carrying the key
	SendRetries int    `mapstructure:"sendRetries"` // extra attempts for retryable sink errors
}

// GeneratorConfig represents synthetic record generation
type GeneratorConfig struct {
	IntervalMs int          `mapstructure:"intervalMs"` // Interval between records in milliseconds
	Count      int          `mapstructure:"count"`      // 0 generates until shutdown
	Seed       int64        `mapstructure:"seed"`       // non-zero makes the record stream reproducible
	Mix        KeyMixConfig `mapstructure:"mix"`
}

// KeyMixConfig weights the partitionKey shapes the generator emits
type KeyMixConfig struct {
	Explicit  int `mapstructure:"explicit"`  // short string key
	Object    int `mapstructure:"object"`    // structured key
	Oversized int `mapstructure:"oversized"` // key longer than the maximum length
	Falsy     int `mapstructure:"falsy"`     // "", 0, false or null key
	Missing   int `mapstructure:"missing"`   // no key at all
}

// Total returns the sum of all weights
func (m KeyMixConfig) Total() int {
	return m.Explicit + m.Object + m.Oversized + m.Falsy + m.Missing
}

// Load loads configuration from a file. An empty path loads defaults and
// environment overrides only.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Read environment variables
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Override with environment variables if set
	overrideFromEnv(&config)

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("input.source", SourceStdin)
	v.SetDefault("output.sink", SinkStdout)
	v.SetDefault("output.topic", "keyed-records")
	v.SetDefault("output.cloudEvents", false)
	v.SetDefault("output.sendRetries", 2)

	v.SetDefault("kafka.securityProtocol", "PLAINTEXT")
	v.SetDefault("kafka.producer.requiredAcks", 1)
	v.SetDefault("kafka.producer.compressionType", "none")
	v.SetDefault("kafka.producer.maxMessageBytes", 1000000)
	v.SetDefault("kafka.producer.retryMax", 3)
	v.SetDefault("kafka.producer.retryBackoffMs", 100)

	v.SetDefault("generator.intervalMs", 1000)
	v.SetDefault("generator.mix.explicit", 4)
	v.SetDefault("generator.mix.object", 2)
	v.SetDefault("generator.mix.oversized", 1)
	v.SetDefault("generator.mix.falsy", 1)
	v.SetDefault("generator.mix.missing", 2)
}

// validate validates the configuration
func validate(config *Config) error {
	switch config.Input.Source {
	case SourceStdin:
	case SourceFile:
		if config.Input.Path == "" {
			return fmt.Errorf("input path must be configured for the file source")
		}
	case SourceGenerator:
		if config.Generator.IntervalMs <= 0 {
			return fmt.Errorf("generator intervalMs must be greater than 0")
		}
		if config.Generator.Count < 0 {
			return fmt.Errorf("generator count must not be negative")
		}
		if config.Generator.Mix.Total() <= 0 {
			return fmt.Errorf("generator mix must have at least one positive weight")
		}
	default:
		return fmt.Errorf("unsupported input source: %s", config.Input.Source)
	}

	if config.Output.SendRetries < 0 {
		return fmt.Errorf("output sendRetries must not be negative")
	}

	switch config.Output.Sink {
	case SinkStdout:
	case SinkKafka:
		if len(config.Kafka.Brokers) == 0 {
			return fmt.Errorf("at least one Kafka broker must be configured")
		}
		if config.Output.Topic == "" {
			return fmt.Errorf("output topic must be configured")
		}
	default:
		return fmt.Errorf("unsupported output sink: %s", config.Output.Sink)
	}

	return nil
}

// overrideFromEnv overrides configuration with environment variables
func overrideFromEnv(config *Config) {
	// Kafka overrides
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		config.Kafka.Brokers = splitList(brokers)
	}

	if username := os.Getenv("KAFKA_SASL_USERNAME"); username != "" {
		config.Kafka.SASLUsername = username
	}

	if password := os.Getenv("KAFKA_SASL_PASSWORD"); password != "" {
		config.Kafka.SASLPassword = password
	}

	// Pipeline overrides
	if source := os.Getenv("INPUT_SOURCE"); source != "" {
		config.Input.Source = source
	}

	if path := os.Getenv("INPUT_PATH"); path != "" {
		config.Input.Path = path
	}

	if topic := os.Getenv("OUTPUT_TOPIC"); topic != "" {
		config.Output.Topic = topic
	}
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
