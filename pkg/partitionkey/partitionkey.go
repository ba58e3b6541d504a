package partitionkey

import (
	"fmt"
	"reflect"
	"unicode/utf16"
)

const (
	// TrivialPartitionKey is returned when there is no event to derive a key from.
	TrivialPartitionKey = "0"

	// MaxPartitionKeyLength bounds an explicit key, in UTF-16 code units.
	MaxPartitionKeyLength = 256

	// FieldName is the event field holding an explicit partition key.
	FieldName = "partitionKey"
)

// Source tells which resolution rule produced a key.
type Source string

const (
	SourceTrivial        Source = "trivial"
	SourceExplicit       Source = "explicit"
	SourceExplicitHashed Source = "explicit_hashed"
	SourceEventHashed    Source = "event_hashed"
)

// Key is a resolved partition key.
type Key struct {
	Value  string
	Source Source
}

// SerializationError is returned when an event, or its partitionKey field,
// cannot be turned into JSON text.
type SerializationError struct {
	Field string
	Err   error
}

func (e *SerializationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("partitionkey: serialize event: %v", e.Err)
	}
	return fmt.Sprintf("partitionkey: serialize field %s: %v", e.Field, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHasher replaces the SHA3-512 digest.
func WithHasher(h HashFunc) Option {
	return func(r *Resolver) {
		if h != nil {
			r.hash = h
		}
	}
}

// Resolver derives partition keys from events.
type Resolver struct {
	hash HashFunc
}

// NewResolver creates a Resolver hashing with SHA3512Hex unless overridden.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{hash: SHA3512Hex}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var defaultResolver = NewResolver()

// DeterministicPartitionKey resolves the partition key of event with the
// default SHA3-512 resolver.
func DeterministicPartitionKey(event any) (string, error) {
	return defaultResolver.Resolve(event)
}

// Resolve returns the partition key of event.
func (r *Resolver) Resolve(event any) (string, error) {
	key, err := r.ResolveKey(event)
	if err != nil {
		return "", err
	}
	return key.Value, nil
}

// ResolveKey returns the partition key of event along with the rule that
// produced it.
func (r *Resolver) ResolveKey(event any) (Key, error) {
	if IsAbsentOrFalsy(event) {
		return Key{Value: TrivialPartitionKey, Source: SourceTrivial}, nil
	}

	if candidate := Field(event, FieldName); !IsAbsentOrFalsy(candidate) {
		text, ok := asString(candidate)
		if !ok {
			var err error
			if text, err = Stringify(candidate); err != nil {
				return Key{}, &SerializationError{Field: FieldName, Err: err}
			}
		}
		if tooLong(text) {
			return Key{Value: r.hash(text), Source: SourceExplicitHashed}, nil
		}
		return Key{Value: text, Source: SourceExplicit}, nil
	}

	data, err := Stringify(event)
	if err != nil {
		return Key{}, &SerializationError{Err: err}
	}
	return Key{Value: r.hash(data), Source: SourceEventHashed}, nil
}

func asString(v any) (string, bool) {
	if s, ok := v.(string); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String(), true
	}
	return "", false
}

// tooLong reports whether s is longer than MaxPartitionKeyLength UTF-16 code units.
func tooLong(s string) bool {
	// UTF-8 never needs fewer bytes than UTF-16 code units
	if len(s) <= MaxPartitionKeyLength {
		return false
	}
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
		if n > MaxPartitionKeyLength {
			return true
		}
	}
	return false
}
