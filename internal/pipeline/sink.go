package pipeline

import (
	"context"
	"fmt"
	"io"
	"sync"

	apperrors "github.com/jittakal/kafpartitionkey/internal/errors"
	"github.com/jittakal/kafpartitionkey/internal/events"
)

// WriterSinkName identifies the line-oriented sink in logs and metrics
const WriterSinkName = "stdout"

// WriterSink writes one "key<TAB>body" line per record
type WriterSink struct {
	mu     sync.Mutex
	w      io.Writer
	closed bool
}

// NewWriterSink creates a sink writing to w
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Name returns the sink name
func (s *WriterSink) Name() string {
	return WriterSinkName
}

// Send writes keyed as a single line
func (s *WriterSink) Send(ctx context.Context, keyed events.Keyed) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := keyed.Body()
	if err != nil {
		return err
	}

	line := make([]byte, 0, len(keyed.Key.Value)+len(body)+2)
	line = append(line, keyed.Key.Value...)
	line = append(line, '\t')
	line = append(line, body...)
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return apperrors.ErrSinkClosed
	}
	if _, err := s.w.Write(line); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// Close stops the sink. The underlying writer is left open.
func (s *WriterSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
