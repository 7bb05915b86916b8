// Package message defines the typed message contract and the per-sample
// metadata that travels alongside every payload.
package message

import (
	"encoding/json"
	"reflect"
)

// Message is implemented by every type that can be published or received.
// TypeName is the fully qualified wire type name (for example
// "std_msgs::msg::dds_::String_") and TypeHash its RIHS01 hash string.
// Marshal and Unmarshal define the serialized form placed on the wire.
type Message interface {
	TypeName() string
	TypeHash() string
	Marshal() ([]byte, error)
	Unmarshal(data []byte) error
}

// New allocates a zero value of the concrete message type T. T is
// typically a pointer type, in which case the pointed-to struct is
// allocated too so the result is immediately usable.
func New[T Message]() T {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() == reflect.Pointer {
		return reflect.New(t.Elem()).Interface().(T)
	}
	var zero T
	return zero
}

// GID is the globally unique identifier of a publisher or client.
type GID [16]byte

// MessageInfo carries the metadata attached to a received sample.
type MessageInfo struct {
	// SequenceNumber counts samples from this publisher, starting at 1.
	SequenceNumber int64
	// SourceTimestampNS is the publisher's clock at send time, in
	// nanoseconds since the Unix epoch.
	SourceTimestampNS int64
	// PublisherGID identifies the sending publisher or client.
	PublisherGID GID
}

// MarshalJSON encodes v for message types whose wire form is JSON.
// Message structs call this from their own Marshal methods so the
// Message interface stays uniform across codecs.
func MarshalJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}

// UnmarshalJSON decodes JSON wire data into v.
func UnmarshalJSON(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
