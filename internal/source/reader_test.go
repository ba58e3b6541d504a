package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jittakal/kafpartitionkey/internal/events"
)

func collect(t *testing.T, r *Reader) ([]events.Record, error) {
	t.Helper()

	out := make(chan events.Record, 16)
	err := r.Run(context.Background(), out)

	var records []events.Record
	for record := range out {
		records = append(records, record)
	}
	return records, err
}

func TestReader_Run(t *testing.T) {
	input := "{\"partitionKey\":\"a\"}\n\n   \n{\"id\":2}\r\n1\n"

	records, err := collect(t, NewReader(strings.NewReader(input), "stdin"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []struct {
		origin string
		raw    string
	}{
		{"stdin:1", `{"partitionKey":"a"}`},
		{"stdin:4", `{"id":2}`},
		{"stdin:5", `1`},
	}

	if len(records) != len(want) {
		t.Fatalf("got %d records, want %d", len(records), len(want))
	}
	for i, w := range want {
		if records[i].Origin != w.origin {
			t.Errorf("record %d Origin = %s, want %s", i, records[i].Origin, w.origin)
		}
		if string(records[i].Raw) != w.raw {
			t.Errorf("record %d Raw = %s, want %s", i, records[i].Raw, w.raw)
		}
	}
}

func TestReader_LineTooLong(t *testing.T) {
	input := strings.Repeat("x", MaxLineBytes+1)

	_, err := collect(t, NewReader(strings.NewReader(input), "big"))
	if err == nil {
		t.Fatal("Run() expected error for an oversized line")
	}
}

func TestReader_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := make(chan events.Record)
	err := NewReader(strings.NewReader("1\n2\n"), "stdin").Run(ctx, out)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")
	if err := os.WriteFile(path, []byte("{\"a\":1}\n"), 0644); err != nil {
		t.Fatalf("failed to write input: %v", err)
	}

	reader, closer, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer closer.Close()

	records, err := collect(t, reader)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(records) != 1 || records[0].Origin != path+":1" {
		t.Errorf("records = %+v", records)
	}

	if _, _, err := OpenFile(filepath.Join(t.TempDir(), "missing.jsonl")); err == nil {
		t.Error("OpenFile() expected error for a missing file")
	}
}
