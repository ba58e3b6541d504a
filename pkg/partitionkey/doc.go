// Package partitionkey derives deterministic partition keys for records.
//
// A partition key is an opaque string that a downstream producer hands to its
// partitioner to route a record. The same record always yields the same key.
//
// # Resolution Rules
//
// Keys are resolved in order, first match wins:
//
//	nil, Undefined or another falsy event  -> "0"
//	truthy "partitionKey" field            -> the field value as text
//	                                          (SHA3-512 hex when longer than 256)
//	anything else                          -> SHA3-512 hex of the whole event's JSON
//
// A falsy "partitionKey" (empty string, zero, false, null) counts as missing
// and the whole event is hashed instead.
//
//	key, err := partitionkey.DeterministicPartitionKey(map[string]any{
//	    "partitionKey": "123456789",
//	})
//	// key == "123456789"
//
// # Canonical JSON
//
// Stringify produces the exact text that JSON.stringify would produce for the
// same value, since the text feeds the hash and keys must stay stable across
// producers written in other languages. Go maps carry no key order, so they
// are written with sorted keys. Use Object, or ParseJSON, when the order of
// the original document matters:
//
//	event, err := partitionkey.ParseJSON([]byte(`{"b":1,"a":2}`))
//	text, err := partitionkey.Stringify(event) // {"b":1,"a":2}
//
// As in JavaScript, keys that are array indexes ("0", "7", "42") always come
// first in numeric order, whatever the source order:
//
//	event, err := partitionkey.ParseJSON([]byte(`{"b":1,"2":2}`))
//	text, err := partitionkey.Stringify(event) // {"2":2,"b":1}
//
// Resolver values are immutable and safe for concurrent use.
package partitionkey
