// Package errors defines application-specific error types and sentinel errors.
package errors

import (
	"context"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
)

// Sentinel errors for common conditions.
var (
	ErrSinkClosed     = errors.New("sink is closed")
	ErrSourceClosed   = errors.New("source is closed")
	ErrConnectionLost = errors.New("connection lost")
)

// ProcessingError is a record that failed at one stage of the pipeline.
type ProcessingError struct {
	Stage  string
	Origin string
	Err    error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing error: stage=%s origin=%s: %v", e.Stage, e.Origin, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// IsRetryable determines if the record may succeed when processed again.
// Decode and resolution failures are deterministic and never are.
func (e *ProcessingError) IsRetryable() bool {
	return IsRetryable(e.Err)
}

// Retryable defines an interface for errors that can indicate if they are retryable.
type Retryable interface {
	error
	IsRetryable() bool
}

// IsRetryable checks if an error is retryable.
// It first checks if the error implements the Retryable interface,
// then falls back to sarama broker errors and sentinel errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var retryable Retryable
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}

	var kerr sarama.KError
	if errors.As(err, &kerr) {
		return isRetriableKError(kerr)
	}

	return errors.Is(err, ErrConnectionLost) || errors.Is(err, sarama.ErrOutOfBrokers)
}

func isRetriableKError(kerr sarama.KError) bool {
	switch kerr {
	case sarama.ErrNotLeaderForPartition,
		sarama.ErrLeaderNotAvailable,
		sarama.ErrRequestTimedOut,
		sarama.ErrNotEnoughReplicas,
		sarama.ErrNotEnoughReplicasAfterAppend,
		sarama.ErrNetworkException:
		return true
	default:
		return false
	}
}
