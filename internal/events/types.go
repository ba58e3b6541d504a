package events

import (
	"encoding/json"
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
	"github.com/jittakal/kafpartitionkey/pkg/partitionkey"
)

// Event type constants
const (
	EventTypeRecordKeyed = "com.kafpartitionkey.record.keyed"

	EventSource = "kafpartitionkey"

	// CloudEvents content type
	ContentTypeJSON = "application/json"

	// CloudEvents partitioning extension attribute
	ExtensionPartitionKey = "partitionkey"
	// Resolution rule that produced the partition key
	ExtensionKeySource = "partitionkeysource"
)

// Record is an input record on its way to a sink. Raw holds undecoded JSON
// text; when it is nil, Value is used as is.
type Record struct {
	Origin string
	Raw    []byte
	Value  any
}

// Keyed is a record with its resolved partition key.
type Keyed struct {
	Key     partitionkey.Key
	Origin  string
	Payload []byte             // canonical JSON of the record
	Event   *cloudevents.Event // set when the record travels in a CloudEvent envelope
}

// Body returns the bytes a sink should write: the CloudEvent JSON when
// enveloped, the record payload otherwise.
func (k Keyed) Body() ([]byte, error) {
	if k.Event == nil {
		return k.Payload, nil
	}
	b, err := json.Marshal(k.Event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal CloudEvent: %w", err)
	}
	return b, nil
}

// NewKeyedEvent wraps a canonical JSON payload in a CloudEvent that carries
// its partition key in the partitioning extension.
func NewKeyedEvent(key partitionkey.Key, payload []byte, now time.Time) (*cloudevents.Event, error) {
	event := cloudevents.NewEvent()
	event.SetSpecVersion(cloudevents.VersionV1)
	event.SetID(uuid.New().String())
	event.SetType(EventTypeRecordKeyed)
	event.SetSource(EventSource)
	event.SetTime(now)
	event.SetExtension(ExtensionPartitionKey, key.Value)
	event.SetExtension(ExtensionKeySource, string(key.Source))

	if err := event.SetData(ContentTypeJSON, payload); err != nil {
		return nil, fmt.Errorf("failed to set event data: %w", err)
	}

	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("invalid CloudEvent: %w", err)
	}

	return &event, nil
}
