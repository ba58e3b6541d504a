// Package pipeline resolves partition keys for a stream of records and hands
// the keyed records to a sink.
package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	apperrors "github.com/jittakal/kafpartitionkey/internal/errors"
	"github.com/jittakal/kafpartitionkey/internal/events"
	"github.com/jittakal/kafpartitionkey/internal/metrics"
	"github.com/jittakal/kafpartitionkey/pkg/partitionkey"
	"go.uber.org/zap"
)

// Sink receives keyed records
type Sink interface {
	Send(ctx context.Context, keyed events.Keyed) error
	Name() string
}

// Stats counts the records a pipeline run handled
type Stats struct {
	Processed int64
	Failed    int64
}

// Pipeline turns records into keyed records. A record that fails at any
// stage is logged and counted and never stops the run.
type Pipeline struct {
	resolver    *partitionkey.Resolver
	sink        Sink
	metrics     *metrics.Collector
	logger      *zap.Logger
	cloudEvents bool
	sendRetries int
	retryDelay  time.Duration
	now         func() time.Time

	running   atomic.Bool
	processed atomic.Int64
	failed    atomic.Int64
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithCloudEvents wraps every record in a CloudEvent carrying its key
func WithCloudEvents(enabled bool) Option {
	return func(p *Pipeline) { p.cloudEvents = enabled }
}

// WithSendRetries retries retryable sink errors up to n more times
func WithSendRetries(n int, delay time.Duration) Option {
	return func(p *Pipeline) {
		p.sendRetries = n
		p.retryDelay = delay
	}
}

// WithClock overrides the CloudEvent timestamp source
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a pipeline writing to sink
func New(resolver *partitionkey.Resolver, sink Sink, collector *metrics.Collector, logger *zap.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		resolver: resolver,
		sink:     sink,
		metrics:  collector,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes records from in until it is closed or ctx is done
func (p *Pipeline) Run(ctx context.Context, in <-chan events.Record) (Stats, error) {
	p.running.Store(true)
	defer p.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			return p.Stats(), ctx.Err()
		case record, ok := <-in:
			if !ok {
				p.logger.Info("Input exhausted",
					zap.Int64("processed", p.processed.Load()),
					zap.Int64("failed", p.failed.Load()),
				)
				return p.Stats(), nil
			}

			if _, err := p.Process(ctx, record); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return p.Stats(), ctxErr
				}
				p.logger.Warn("Record dropped", zap.Error(err))
			}
		}
	}
}

// Process resolves and sends a single record
func (p *Pipeline) Process(ctx context.Context, record events.Record) (events.Keyed, error) {
	keyed, err := p.Key(record)
	if err != nil {
		p.failed.Add(1)
		return events.Keyed{}, err
	}

	if err := p.send(ctx, keyed); err != nil {
		p.failed.Add(1)
		p.metrics.IncFailures(metrics.StageSend)
		return events.Keyed{}, &apperrors.ProcessingError{Stage: metrics.StageSend, Origin: record.Origin, Err: err}
	}

	p.processed.Add(1)
	p.metrics.IncRecordsSent(p.sink.Name())
	return keyed, nil
}

// Key decodes a record and resolves its partition key without sending it
func (p *Pipeline) Key(record events.Record) (events.Keyed, error) {
	value := record.Value
	if record.Raw != nil {
		decoded, err := partitionkey.ParseJSON(record.Raw)
		if err != nil {
			return events.Keyed{}, p.fail(metrics.StageParse, record.Origin, err)
		}
		value = decoded
	}

	start := time.Now()
	key, err := p.resolver.ResolveKey(value)
	p.metrics.ObserveResolveDuration(time.Since(start).Seconds())
	if err != nil {
		return events.Keyed{}, p.fail(metrics.StageResolve, record.Origin, err)
	}
	p.metrics.IncKeysResolved(string(key.Source))

	payload, err := encodePayload(value)
	if err != nil {
		return events.Keyed{}, p.fail(metrics.StageEncode, record.Origin, err)
	}

	keyed := events.Keyed{Key: key, Origin: record.Origin, Payload: payload}
	if p.cloudEvents {
		event, err := events.NewKeyedEvent(key, payload, p.now())
		if err != nil {
			return events.Keyed{}, p.fail(metrics.StageEncode, record.Origin, err)
		}
		keyed.Event = event
	}

	return keyed, nil
}

// encodePayload returns the canonical JSON of the record. Values with no
// JSON form, such as a bare Undefined, are written as null.
func encodePayload(value any) ([]byte, error) {
	text, err := partitionkey.Stringify(value)
	if errors.Is(err, partitionkey.ErrUndefinedValue) {
		return []byte("null"), nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}

func (p *Pipeline) send(ctx context.Context, keyed events.Keyed) error {
	err := p.sink.Send(ctx, keyed)
	for attempt := 1; err != nil && attempt <= p.sendRetries && apperrors.IsRetryable(err); attempt++ {
		p.logger.Debug("Retrying send",
			zap.String("origin", keyed.Origin),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.retryDelay):
		}

		err = p.sink.Send(ctx, keyed)
	}
	return err
}

func (p *Pipeline) fail(stage, origin string, err error) error {
	p.metrics.IncFailures(stage)
	return &apperrors.ProcessingError{Stage: stage, Origin: origin, Err: err}
}

// Stats returns the counts so far
func (p *Pipeline) Stats() Stats {
	return Stats{Processed: p.processed.Load(), Failed: p.failed.Load()}
}

// Liveness reports whether the process is alive
func (p *Pipeline) Liveness() bool {
	return true
}

// Readiness reports whether the pipeline is consuming records
func (p *Pipeline) Readiness(ctx context.Context) bool {
	return ctx.Err() == nil && p.running.Load()
}

// Status returns per-component health details
func (p *Pipeline) Status() map[string]string {
	state := "stopped"
	if p.running.Load() {
		state = "running"
	}
	return map[string]string{
		"pipeline": state,
		"sink":     p.sink.Name(),
	}
}
