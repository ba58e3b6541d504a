package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jittakal/kafpartitionkey/internal/config"
	"github.com/jittakal/kafpartitionkey/internal/events"
	"github.com/jittakal/kafpartitionkey/internal/generator"
	"github.com/jittakal/kafpartitionkey/internal/kafka"
	"github.com/jittakal/kafpartitionkey/internal/metrics"
	"github.com/jittakal/kafpartitionkey/internal/pipeline"
	"github.com/jittakal/kafpartitionkey/internal/server"
	"github.com/jittakal/kafpartitionkey/internal/source"
	"github.com/jittakal/kafpartitionkey/pkg/partitionkey"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

var (
	// Version information (set during build)
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"

	// Command-line flags
	configFile  = flag.String("config", getEnv("CONFIG_FILE", ""), "Path to configuration file")
	logLevel    = flag.String("log-level", getEnv("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	metricsPort = flag.String("metrics-port", getEnv("METRICS_PORT", "9090"), "Prometheus metrics port, empty to disable")
)

// shutdownTimeout bounds each shutdown step
const shutdownTimeout = 5 * time.Second

// recordSource feeds records into the pipeline and closes out when done
type recordSource interface {
	Run(ctx context.Context, out chan<- events.Record) error
}

// closableSink is a pipeline sink that holds resources
type closableSink interface {
	pipeline.Sink
	io.Closer
}

func main() {
	flag.Parse()

	// Initialize logger
	logger, err := initLogger(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting kafpartitionkey",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("buildTime", buildTime),
	)

	if err := run(logger); err != nil {
		logger.Error("kafpartitionkey failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}

	logger.Info("Shutdown complete")
}

func run(logger *zap.Logger) error {
	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Info("Configuration loaded",
		zap.String("configFile", *configFile),
		zap.String("source", cfg.Input.Source),
		zap.String("sink", cfg.Output.Sink),
		zap.Bool("cloudEvents", cfg.Output.CloudEvents),
	)

	// Initialize metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metricsCollector := metrics.NewCollector(registry)

	sink, err := newSink(cfg, logger)
	if err != nil {
		return err
	}
	defer sink.Close()

	input, closeInput, err := newSource(cfg, logger)
	if err != nil {
		return err
	}
	defer closeInput()

	p := pipeline.New(partitionkey.NewResolver(), sink, metricsCollector, logger,
		pipeline.WithCloudEvents(cfg.Output.CloudEvents),
		pipeline.WithSendRetries(cfg.Output.SendRetries, time.Duration(cfg.Kafka.Producer.RetryBackoffMs)*time.Millisecond),
	)

	// Start metrics server
	if *metricsPort != "" {
		srv := server.NewServer(":"+*metricsPort, p, registry, logger)
		srv.Start()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("Metrics server shutdown failed", zap.Error(err))
			}
		}()
	}

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	records := make(chan events.Record, 64)
	sourceErr := make(chan error, 1)
	go func() {
		sourceErr <- input.Run(ctx, records)
	}()

	stats, runErr := p.Run(ctx, records)
	stop()

	// A reader blocked on stdin only notices cancellation on its next line
	var srcErr error
	select {
	case srcErr = <-sourceErr:
	case <-time.After(shutdownTimeout):
		logger.Warn("Input did not stop before shutdown timeout")
	}

	logger.Info("Pipeline stopped",
		zap.Int64("processed", stats.Processed),
		zap.Int64("failed", stats.Failed),
	)

	if srcErr != nil && !errors.Is(srcErr, context.Canceled) {
		return fmt.Errorf("input failed: %w", srcErr)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// newSink creates the configured output
func newSink(cfg *config.Config, logger *zap.Logger) (closableSink, error) {
	switch cfg.Output.Sink {
	case config.SinkKafka:
		producer, err := kafka.NewProducer(cfg.Kafka, cfg.Output.Topic, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
		}
		logger.Info("Kafka producer initialized successfully")
		return producer, nil
	default:
		return pipeline.NewWriterSink(os.Stdout), nil
	}
}

// newSource creates the configured input. The returned func releases it.
func newSource(cfg *config.Config, logger *zap.Logger) (recordSource, func(), error) {
	switch cfg.Input.Source {
	case config.SourceFile:
		reader, closer, err := source.OpenFile(cfg.Input.Path)
		if err != nil {
			return nil, nil, err
		}
		return reader, func() { closer.Close() }, nil
	case config.SourceGenerator:
		return generator.NewGenerator(cfg.Generator, logger), func() {}, nil
	default:
		return source.NewReader(os.Stdin, "stdin"), func() {}, nil
	}
}

// initLogger initializes the zap logger based on the log level
func initLogger(level string) (*zap.Logger, error) {
	var config zap.Config

	switch level {
	case "debug":
		config = zap.NewDevelopmentConfig()
	case "info", "warn", "error":
		config = zap.NewProductionConfig()
		config.Level = parseLogLevel(level)
	default:
		config = zap.NewProductionConfig()
	}

	return config.Build()
}

// parseLogLevel parses the log level string
func parseLogLevel(level string) zap.AtomicLevel {
	switch level {
	case "debug":
		return zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		return zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		return zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
