// Package source reads JSON-lines input into records.
package source

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jittakal/kafpartitionkey/internal/events"
)

// MaxLineBytes bounds a single input line.
const MaxLineBytes = 4 * 1024 * 1024

// Reader splits JSON-lines input into records. Lines are handed on
// undecoded; blank lines are skipped.
type Reader struct {
	r    io.Reader
	name string
}

// NewReader creates a Reader over r. name prefixes record origins.
func NewReader(r io.Reader, name string) *Reader {
	return &Reader{r: r, name: name}
}

// OpenFile creates a Reader over the file at path. The returned closer
// releases the file.
func OpenFile(path string) (*Reader, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input file: %w", err)
	}
	return NewReader(f, path), f, nil
}

// Run sends one record per non-blank line on out until the input ends or
// ctx is done. out is closed on return.
func (r *Reader) Run(ctx context.Context, out chan<- events.Record) error {
	defer close(out)

	scanner := bufio.NewScanner(r.r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineBytes)

	line := 0
	for scanner.Scan() {
		line++

		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		record := events.Record{
			Origin: fmt.Sprintf("%s:%d", r.name, line),
			Raw:    bytes.Clone(raw),
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- record:
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s at line %d: %w", r.name, line+1, err)
	}
	return nil
}
