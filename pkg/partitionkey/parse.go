package partitionkey

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/buger/jsonparser"
)

var (
	// ErrTrailingData is returned when JSON text continues after the first value.
	ErrTrailingData = errors.New("partitionkey: unexpected data after JSON value")

	// ErrInvalidJSON is returned for text outside the JSON grammar, such as
	// trailing commas or numbers with leading zeros.
	ErrInvalidJSON = errors.New("partitionkey: invalid JSON")
)

// ParseJSON decodes JSON text into values Stringify writes back unchanged:
// *Object for objects (member order kept), []any, string, float64, bool and
// nil. A repeated member keeps its first position and its last value.
// Numbers beyond the float64 range become ±Inf.
func ParseJSON(data []byte) (any, error) {
	value, dataType, end, err := jsonparser.Get(data)
	if err != nil {
		return nil, fmt.Errorf("partitionkey: parse JSON: %w", err)
	}
	if end >= 0 && end < len(data) && len(bytes.TrimSpace(data[end:])) > 0 {
		return nil, ErrTrailingData
	}
	// jsonparser skips over values it is not asked for without checking them
	if !json.Valid(data) {
		return nil, ErrInvalidJSON
	}
	return decodeValue(value, dataType)
}

func decodeValue(value []byte, dataType jsonparser.ValueType) (any, error) {
	switch dataType {
	case jsonparser.Null:
		return nil, nil
	case jsonparser.Boolean:
		return jsonparser.ParseBoolean(value)
	case jsonparser.Number:
		f, err := strconv.ParseFloat(string(value), 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return nil, fmt.Errorf("partitionkey: parse JSON number %q: %w", value, err)
		}
		return f, nil
	case jsonparser.String:
		return jsonparser.ParseString(value)
	case jsonparser.Object:
		return decodeObject(value)
	case jsonparser.Array:
		return decodeArray(value)
	}
	return nil, fmt.Errorf("partitionkey: parse JSON: unexpected token %q", value)
}

func decodeObject(data []byte) (*Object, error) {
	obj := &Object{}
	err := jsonparser.ObjectEach(data, func(key, value []byte, dataType jsonparser.ValueType, _ int) error {
		v, err := decodeValue(value, dataType)
		if err != nil {
			return err
		}
		obj.Set(string(key), v)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("partitionkey: parse JSON object: %w", err)
	}
	return obj, nil
}

func decodeArray(data []byte) ([]any, error) {
	items := []any{}
	var decodeErr error
	_, err := jsonparser.ArrayEach(data, func(value []byte, dataType jsonparser.ValueType, _ int, err error) {
		if decodeErr != nil {
			return
		}
		if err != nil {
			decodeErr = err
			return
		}
		v, err := decodeValue(value, dataType)
		if err != nil {
			decodeErr = err
			return
		}
		items = append(items, v)
	})
	if err == nil {
		err = decodeErr
	}
	if err != nil {
		return nil, fmt.Errorf("partitionkey: parse JSON array: %w", err)
	}
	return items, nil
}
