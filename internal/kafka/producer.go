package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/jittakal/kafpartitionkey/internal/config"
	"github.com/jittakal/kafpartitionkey/internal/events"
	"go.uber.org/zap"
)

// SinkName identifies the Kafka sink in logs and metrics
const SinkName = "kafka"

// Producer writes keyed records to a Kafka topic. The resolved partition
// key becomes the message key, so Kafka's partitioner keeps records with
// the same key on the same partition.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

// NewProducer creates a new Kafka producer for topic
func NewProducer(cfg config.KafkaConfig, topic string, logger *zap.Logger) (*Producer, error) {
	saramaConfig, err := newSaramaConfig(cfg, logger)
	if err != nil {
		return nil, err
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	logger.Info("Kafka producer created successfully",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("securityProtocol", cfg.SecurityProtocol),
		zap.String("topic", topic),
	)

	return NewProducerWithClient(producer, topic, logger), nil
}

// NewProducerWithClient wraps an existing sarama producer
func NewProducerWithClient(producer sarama.SyncProducer, topic string, logger *zap.Logger) *Producer {
	return &Producer{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

func newSaramaConfig(cfg config.KafkaConfig, logger *zap.Logger) (*sarama.Config, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true

	// Hash partitioner so equal keys land on the same partition
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	saramaConfig.Producer.RequiredAcks = sarama.RequiredAcks(cfg.Producer.RequiredAcks)
	saramaConfig.Producer.Compression = parseCompressionType(cfg.Producer.CompressionType)
	saramaConfig.Producer.MaxMessageBytes = cfg.Producer.MaxMessageBytes
	saramaConfig.Producer.Idempotent = cfg.Producer.IdempotentWrites
	saramaConfig.Producer.Retry.Max = cfg.Producer.RetryMax
	saramaConfig.Producer.Retry.Backoff = time.Duration(cfg.Producer.RetryBackoffMs) * time.Millisecond

	// Idempotent producer requires Net.MaxOpenRequests to be 1
	if cfg.Producer.IdempotentWrites {
		saramaConfig.Net.MaxOpenRequests = 1
	}

	if err := configureSecurity(saramaConfig, cfg, logger); err != nil {
		return nil, fmt.Errorf("failed to configure security: %w", err)
	}

	return saramaConfig, nil
}

// Name returns the sink name
func (p *Producer) Name() string {
	return SinkName
}

// Send produces a keyed record to the configured topic
func (p *Producer) Send(ctx context.Context, keyed events.Keyed) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := keyed.Body()
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic:   p.topic,
		Key:     sarama.StringEncoder(keyed.Key.Value),
		Value:   sarama.ByteEncoder(body),
		Headers: messageHeaders(keyed),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send message to Kafka: %w", err)
	}

	p.logger.Debug("Record produced",
		zap.String("topic", p.topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
		zap.String("origin", keyed.Origin),
		zap.String("partitionKey", keyed.Key.Value),
		zap.String("keySource", string(keyed.Key.Source)),
	)

	return nil
}

// messageHeaders carries the key source, and the CloudEvents binding
// attributes when the record is enveloped.
func messageHeaders(keyed events.Keyed) []sarama.RecordHeader {
	headers := []sarama.RecordHeader{
		{Key: []byte("partitionkey_source"), Value: []byte(keyed.Key.Source)},
	}

	if event := keyed.Event; event != nil {
		headers = append(headers,
			sarama.RecordHeader{Key: []byte("ce_specversion"), Value: []byte(event.SpecVersion())},
			sarama.RecordHeader{Key: []byte("ce_type"), Value: []byte(event.Type())},
			sarama.RecordHeader{Key: []byte("ce_source"), Value: []byte(event.Source())},
			sarama.RecordHeader{Key: []byte("ce_id"), Value: []byte(event.ID())},
		)
	}

	return headers
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// parseCompressionType parses compression type string
func parseCompressionType(compressionType string) sarama.CompressionCodec {
	switch compressionType {
	case "gzip":
		return sarama.CompressionGZIP
	case "snappy":
		return sarama.CompressionSnappy
	case "lz4":
		return sarama.CompressionLZ4
	case "zstd":
		return sarama.CompressionZSTD
	default:
		return sarama.CompressionNone
	}
}
