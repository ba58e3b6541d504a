package kafka

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"hash"
	"os"
	"time"

	"github.com/IBM/sarama"
	"github.com/aws/aws-msk-iam-sasl-signer-go/signer"
	"github.com/jittakal/kafpartitionkey/internal/config"
	"github.com/xdg-go/scram"
	"go.uber.org/zap"
)

// Security protocols
const (
	ProtocolPlaintext     = "PLAINTEXT"
	ProtocolSSL           = "SSL"
	ProtocolSASLPlaintext = "SASL_PLAINTEXT"
	ProtocolSASLSSL       = "SASL_SSL"
)

// SASL mechanisms
const (
	MechanismPlain       = "PLAIN"
	MechanismSCRAMSHA256 = "SCRAM-SHA-256"
	MechanismSCRAMSHA512 = "SCRAM-SHA-512"
	MechanismAWSMSKIAM   = "AWS_MSK_IAM"
)

// mskTokenTimeout bounds a single MSK IAM token request
const mskTokenTimeout = 10 * time.Second

// configureSecurity configures SASL and TLS settings
func configureSecurity(saramaConfig *sarama.Config, cfg config.KafkaConfig, logger *zap.Logger) error {
	protocol := cfg.SecurityProtocol
	if protocol == "" {
		protocol = ProtocolPlaintext
	}

	useSASL := protocol == ProtocolSASLPlaintext || protocol == ProtocolSASLSSL
	useTLS := protocol == ProtocolSSL || protocol == ProtocolSASLSSL

	switch protocol {
	case ProtocolPlaintext:
		logger.Info("Using PLAINTEXT security protocol")
		return nil
	case ProtocolSSL, ProtocolSASLPlaintext, ProtocolSASLSSL:
	default:
		return fmt.Errorf("unsupported security protocol: %s", cfg.SecurityProtocol)
	}

	if useSASL {
		saramaConfig.Net.SASL.Enable = true
		if err := configureSASL(saramaConfig, cfg, logger); err != nil {
			return err
		}
	}

	if useTLS {
		if !cfg.TLS.Enabled {
			logger.Warn("TLS is required by the security protocol but not enabled in config",
				zap.String("securityProtocol", protocol),
			)
		}

		tlsConfig, err := newTLSConfig(cfg.TLS, logger)
		if err != nil {
			return err
		}
		saramaConfig.Net.TLS.Enable = true
		saramaConfig.Net.TLS.Config = tlsConfig
	}

	return nil
}

// configureSASL configures SASL authentication
func configureSASL(saramaConfig *sarama.Config, cfg config.KafkaConfig, logger *zap.Logger) error {
	switch cfg.SASLMechanism {
	case MechanismPlain:
		saramaConfig.Net.SASL.Mechanism = sarama.SASLTypePlaintext

	case MechanismSCRAMSHA256:
		saramaConfig.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
		saramaConfig.Net.SASL.SCRAMClientGeneratorFunc = scramClientGenerator(SHA256)

	case MechanismSCRAMSHA512:
		saramaConfig.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
		saramaConfig.Net.SASL.SCRAMClientGeneratorFunc = scramClientGenerator(SHA512)

	case MechanismAWSMSKIAM:
		if !cfg.AWSMSK.Enabled {
			return fmt.Errorf("AWS MSK IAM authentication requires awsMsk.enabled=true")
		}
		saramaConfig.Net.SASL.Mechanism = sarama.SASLTypeOAuth
		saramaConfig.Net.SASL.TokenProvider = &MSKAccessTokenProvider{region: cfg.AWSMSK.Region}
		logger.Info("Using AWS MSK IAM authentication", zap.String("region", cfg.AWSMSK.Region))
		return nil

	default:
		return fmt.Errorf("unsupported SASL mechanism: %s", cfg.SASLMechanism)
	}

	saramaConfig.Net.SASL.User = cfg.SASLUsername
	saramaConfig.Net.SASL.Password = cfg.SASLPassword
	logger.Info("Using SASL authentication", zap.String("mechanism", cfg.SASLMechanism))

	return nil
}

// newTLSConfig builds the client TLS configuration from CA and client certificate files
func newTLSConfig(cfg config.TLSConfig, logger *zap.Logger) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}

	// Load CA certificate if provided
	if cfg.CACertFile != "" {
		caCert, err := os.ReadFile(cfg.CACertFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}

		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}

		tlsConfig.RootCAs = caCertPool
		logger.Info("Loaded CA certificate", zap.String("file", cfg.CACertFile))
	}

	// Load client certificate if provided
	if cfg.ClientCertFile != "" && cfg.ClientKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCertFile, cfg.ClientKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}

		tlsConfig.Certificates = []tls.Certificate{cert}
		logger.Info("Loaded client certificate",
			zap.String("certFile", cfg.ClientCertFile),
			zap.String("keyFile", cfg.ClientKeyFile),
		)
	}

	return tlsConfig, nil
}

// XDGSCRAMClient implements SCRAM client using xdg-go/scram
type XDGSCRAMClient struct {
	*scram.Client
	*scram.ClientConversation
	scram.HashGeneratorFcn
}

// SHA256 hash generator
var SHA256 scram.HashGeneratorFcn = func() hash.Hash { return sha256.New() }

// SHA512 hash generator
var SHA512 scram.HashGeneratorFcn = func() hash.Hash { return sha512.New() }

func scramClientGenerator(fcn scram.HashGeneratorFcn) func() sarama.SCRAMClient {
	return func() sarama.SCRAMClient {
		return &XDGSCRAMClient{HashGeneratorFcn: fcn}
	}
}

func (x *XDGSCRAMClient) Begin(userName, password, authzID string) (err error) {
	x.Client, err = x.HashGeneratorFcn.NewClient(userName, password, authzID)
	if err != nil {
		return err
	}
	x.ClientConversation = x.Client.NewConversation()
	return nil
}

func (x *XDGSCRAMClient) Step(challenge string) (response string, err error) {
	return x.ClientConversation.Step(challenge)
}

func (x *XDGSCRAMClient) Done() bool {
	return x.ClientConversation.Done()
}

// MSKAccessTokenProvider implements AWS MSK IAM token provider
type MSKAccessTokenProvider struct {
	region string
}

func (m *MSKAccessTokenProvider) Token() (*sarama.AccessToken, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mskTokenTimeout)
	defer cancel()

	token, _, err := signer.GenerateAuthToken(ctx, m.region)
	if err != nil {
		return nil, fmt.Errorf("failed to generate MSK IAM token: %w", err)
	}

	return &sarama.AccessToken{
		Token: token,
	}, nil
}
