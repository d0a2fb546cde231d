package codec

import (
	"errors"

	"google.golang.org/protobuf/proto"
)

var errNilCtor = errors.New("codec: protobuf constructor is nil")

// Protobuf decodes payloads into freshly constructed messages of type T.
type Protobuf[T proto.Message] struct {
	ctor func() T // e.g. func() *mypb.User { return &mypb.User{} }
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{ctor: ctor}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return proto.Marshal(v)
}

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	if c.ctor == nil {
		var zero T
		return zero, errNilCtor
	}
	m := c.ctor()
	err := proto.Unmarshal(b, m)
	return m, err
}
