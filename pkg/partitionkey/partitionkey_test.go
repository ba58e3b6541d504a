package partitionkey

import (
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
)

const (
	hashOfLongA     = "ac7e95cc95aa7f24aaa95e040ca0c79b39cd9cc84a10abb84ddd8dd5e4b45cf96543aaa70d0ef99fbf8d2769639981ee1fd0b0276f4756b9d504d0b7de19b700"
	hashOfWhatever  = "9a277de67f818ec7e6a3b6b1d2228403ad5971c3975b8859bbf92b69e288f87996b95b302243eab3625de947f52f0daecaff35c782be8effc9e09b79a12bdb23"
	hashOfIndexKeys = "a22a03bf0e9f923930944db70f7853837755004481800b27c48ae7695312ed74b72f90eed653978e2982aa57d0a3ee0168a9341113f36f2b4a250d9e25e78fa2"
	hashOfNumberOne = "ca2c70bc13298c5109ee0cb342d014906e6365249005fd4beee6f01aee44edb531231e98b50bf6810de6cf687882b09320fdd5f6375d1f2debd966fbf8d03efa"
)

func TestDeterministicPartitionKey(t *testing.T) {
	tests := []struct {
		name  string
		event any
		want  string
	}{
		{
			name:  "no input returns trivial key",
			event: nil,
			want:  "0",
		},
		{
			name:  "string partition key passes through",
			event: map[string]any{"partitionKey": "123456789"},
			want:  "123456789",
		},
		{
			name: "object partition key is serialized",
			event: map[string]any{
				"partitionKey": map[string]any{"randomNumber": 123456789},
			},
			want: `{"randomNumber":123456789}`,
		},
		{
			name:  "long partition key is hashed",
			event: map[string]any{"partitionKey": strings.Repeat("a", 1000)},
			want:  hashOfLongA,
		},
		{
			name: "event without partition key is hashed",
			event: NewObject(
				Pair{Key: "whateverKey", Value: 1},
				Pair{Key: "whateverRandomKey", Value: "Random string"},
			),
			want: hashOfWhatever,
		},
		{
			name:  "index keys are hashed in JSON.stringify order",
			event: NewObject(Pair{Key: "b", Value: 1}, Pair{Key: "2", Value: 2}),
			want:  hashOfIndexKeys,
		},
		{
			name:  "number event is hashed",
			event: 1,
			want:  hashOfNumberOne,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeterministicPartitionKey(tt.event)
			if err != nil {
				t.Fatalf("DeterministicPartitionKey() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DeterministicPartitionKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolver_ResolveKeySource(t *testing.T) {
	r := NewResolver()

	tests := []struct {
		name  string
		event any
		want  Source
	}{
		{"nil", nil, SourceTrivial},
		{"undefined", Undefined, SourceTrivial},
		{"zero", 0, SourceTrivial},
		{"empty string", "", SourceTrivial},
		{"false", false, SourceTrivial},
		{"explicit", map[string]string{"partitionKey": "k"}, SourceExplicit},
		{"explicit hashed", map[string]string{"partitionKey": strings.Repeat("k", 257)}, SourceExplicitHashed},
		{"event hashed", map[string]int{"id": 7}, SourceEventHashed},
		{"string event", "hello", SourceEventHashed},
		{"empty object", NewObject(), SourceEventHashed},
		{"empty array", []any{}, SourceEventHashed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := r.ResolveKey(tt.event)
			if err != nil {
				t.Fatalf("ResolveKey() error = %v", err)
			}
			if key.Source != tt.want {
				t.Errorf("ResolveKey().Source = %s, want %s", key.Source, tt.want)
			}
		})
	}
}

func TestResolve_FalsyPartitionKeyHashesWholeEvent(t *testing.T) {
	falsy := []any{"", 0, 0.0, math.Copysign(0, -1), math.NaN(), false, nil, Undefined}

	for _, v := range falsy {
		event := NewObject(Pair{Key: "partitionKey", Value: v}, Pair{Key: "id", Value: "x"})

		text, err := Stringify(event)
		if err != nil {
			t.Fatalf("Stringify(%v) error = %v", v, err)
		}

		got, err := DeterministicPartitionKey(event)
		if err != nil {
			t.Fatalf("DeterministicPartitionKey() error = %v", err)
		}
		if want := SHA3512Hex(text); got != want {
			t.Errorf("partitionKey=%v: got %q, want hash of %s", v, got, text)
		}
	}
}

func TestResolve_LengthBoundary(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		hashed bool
	}{
		{"exactly max", strings.Repeat("x", MaxPartitionKeyLength), false},
		{"one over max", strings.Repeat("x", MaxPartitionKeyLength+1), true},
		// 128 runes, 384 bytes, 128 UTF-16 units
		{"multibyte under max", strings.Repeat("€", 128), false},
		// 129 astral runes are 258 UTF-16 units
		{"surrogate pairs over max", strings.Repeat("😀", 129), true},
		{"surrogate pairs at max", strings.Repeat("😀", 128), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeterministicPartitionKey(map[string]any{"partitionKey": tt.key})
			if err != nil {
				t.Fatalf("DeterministicPartitionKey() error = %v", err)
			}
			if tt.hashed {
				if got != SHA3512Hex(tt.key) {
					t.Errorf("expected hashed key, got %q", got)
				}
				if len(got) != DigestLength {
					t.Errorf("len(key) = %d, want %d", len(got), DigestLength)
				}
			} else if got != tt.key {
				t.Errorf("expected passthrough, got %q", got)
			}
		})
	}
}

func TestResolve_LongSerializedKeyIsHashedFromText(t *testing.T) {
	value := map[string]any{"blob": strings.Repeat("b", 300)}
	text, err := Stringify(value)
	if err != nil {
		t.Fatalf("Stringify() error = %v", err)
	}

	got, err := DeterministicPartitionKey(map[string]any{"partitionKey": value})
	if err != nil {
		t.Fatalf("DeterministicPartitionKey() error = %v", err)
	}
	if got != SHA3512Hex(text) {
		t.Errorf("got %q, want hash of %s", got, text)
	}
}

func TestResolve_StructEvents(t *testing.T) {
	type Order struct {
		ID           string `json:"id"`
		PartitionKey any    `json:"partitionKey,omitempty"`
		Amount       float64
	}

	got, err := DeterministicPartitionKey(&Order{ID: "o-1", PartitionKey: "customer-9"})
	if err != nil {
		t.Fatalf("error = %v", err)
	}
	if got != "customer-9" {
		t.Errorf("got %q, want customer-9", got)
	}

	got, err = DeterministicPartitionKey(Order{ID: "o-1", Amount: 2.5})
	if err != nil {
		t.Fatalf("error = %v", err)
	}
	if want := SHA3512Hex(`{"id":"o-1","Amount":2.5}`); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolve_NamedStringKeyPassesThrough(t *testing.T) {
	type CustomerID string

	got, err := DeterministicPartitionKey(map[string]any{"partitionKey": CustomerID("c-42")})
	if err != nil {
		t.Fatalf("error = %v", err)
	}
	if got != "c-42" {
		t.Errorf("got %q, want c-42", got)
	}
}

func TestResolve_SerializationErrorsPropagate(t *testing.T) {
	cyclic := NewObject()
	cyclic.Set("self", cyclic)

	_, err := DeterministicPartitionKey(cyclic)
	if !errors.Is(err, ErrCircularReference) {
		t.Fatalf("error = %v, want ErrCircularReference", err)
	}
	var serErr *SerializationError
	if !errors.As(err, &serErr) {
		t.Fatalf("error should be a *SerializationError, got %T", err)
	}
	if serErr.Field != "" {
		t.Errorf("Field = %q, want empty for whole-event serialization", serErr.Field)
	}

	_, err = DeterministicPartitionKey(map[string]any{"partitionKey": map[string]any{"c": complex(1, 2)}})
	var typeErr *UnsupportedTypeError
	if !errors.As(err, &typeErr) {
		t.Fatalf("error = %v, want *UnsupportedTypeError", err)
	}
	if !errors.As(err, &serErr) || serErr.Field != FieldName {
		t.Errorf("expected SerializationError for field %s, got %v", FieldName, err)
	}
}

func TestResolve_FuncEventFails(t *testing.T) {
	_, err := DeterministicPartitionKey(func() {})
	if !errors.Is(err, ErrUndefinedValue) {
		t.Errorf("error = %v, want ErrUndefinedValue", err)
	}
}

func TestWithHasher(t *testing.T) {
	var calls []string
	r := NewResolver(WithHasher(func(text string) string {
		calls = append(calls, text)
		return "h"
	}))

	got, err := r.Resolve(NewObject(Pair{Key: "a", Value: 1}))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "h" {
		t.Errorf("Resolve() = %q, want h", got)
	}
	if len(calls) != 1 || calls[0] != `{"a":1}` {
		t.Errorf("hasher calls = %v", calls)
	}

	if NewResolver(WithHasher(nil)).hash == nil {
		t.Error("nil hasher should keep the default")
	}
}

func TestResolve_Deterministic(t *testing.T) {
	event, err := ParseJSON([]byte(`{"user":{"id":12,"tags":["a","b"]},"ts":1.5e-7}`))
	if err != nil {
		t.Fatalf("ParseJSON() error = %v", err)
	}

	first, err := DeterministicPartitionKey(event)
	if err != nil {
		t.Fatalf("error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			again, err := DeterministicPartitionKey(event)
			if err != nil || again != first {
				t.Errorf("concurrent resolve = %q, %v; want %q", again, err, first)
			}
		}()
	}
	wg.Wait()
}

func TestSHA3512Hex(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "a69f73cca23a9ac5c8b567dc185a756e97c982164fe25859e0d1dcc1475c80a615b2123af1f5f94c11e3e9402c3ac558f500199d95b6d3e301758586281dcd26"},
		{"abc", "b751850b1a57168a5693cd924b6b096e08f621827444f70d884f5d0240d2712e10e116e9192af3c91a7ec57647e3934057340b4cf408d5a56592f8274eec53f0"},
	}

	for _, tt := range tests {
		if got := SHA3512Hex(tt.in); got != tt.want {
			t.Errorf("SHA3512Hex(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
