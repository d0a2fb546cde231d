package cacheloader

import (
	"context"

	"github.com/unkn0wn-root/cacheloader/backend"
	"github.com/unkn0wn-root/cacheloader/codec"
	"github.com/unkn0wn-root/cacheloader/internal/wire"
)

// WriteEntry encodes v with md into the record format loaders read and stores
// it under key. It exists for seeding and migration tools; loaders never write.
//
// With a versions.Store in play, stamp md.Version with the value observed
// before reading the source of truth so that a concurrent bump makes the
// record stale.
func WriteEntry[V any](ctx context.Context, w backend.Writer, c codec.Codec[V], key string, v V, md Metadata) error {
	payload, err := c.Encode(v)
	if err != nil {
		return err
	}
	return w.Put(ctx, key, wire.EncodeRecord(md.header(), payload))
}
