// Package codec provides the marshallers a loader uses to turn stored
// payload bytes back into caller values.
package codec

import "fmt"

// Codec encodes/decodes values V to the payload bytes of a stored record.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Names of the codecs that can be selected from configuration.
const (
	NameJSON    = "json"
	NameCBOR    = "cbor"
	NameMsgpack = "msgpack"
)

// ForName returns the built-in codec registered under name. Protobuf and the
// raw codecs need a concrete type and are not selectable by name.
func ForName[V any](name string) (Codec[V], error) {
	switch name {
	case NameJSON, "":
		return JSON[V]{}, nil
	case NameCBOR:
		return NewCBOR[V](true)
	case NameMsgpack:
		return Msgpack[V]{}, nil
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
}
