package cacheloader

import (
	"time"

	"github.com/unkn0wn-root/cacheloader/internal/wire"
)

// Metadata is the bookkeeping stored with every record.
type Metadata struct {
	Version uint64    // invalidation version the record was written under
	Created time.Time // zero if the writer did not stamp it
	Expires time.Time // zero => never expires
}

// Expired reports whether the record is past its expiry at now.
func (m Metadata) Expired(now time.Time) bool {
	return !m.Expires.IsZero() && !now.Before(m.Expires)
}

func metadataFromHeader(h wire.Header) Metadata {
	var md Metadata
	md.Version = h.Version
	if h.Created != 0 {
		md.Created = time.Unix(0, h.Created)
	}
	if h.Expires != 0 {
		md.Expires = time.Unix(0, h.Expires)
	}
	return md
}

func (m Metadata) header() wire.Header {
	var h wire.Header
	h.Version = m.Version
	if !m.Created.IsZero() {
		h.Created = m.Created.UnixNano()
	}
	if !m.Expires.IsZero() {
		h.Expires = m.Expires.UnixNano()
	}
	return h
}

// Entry is one record as handed to the cache core. It is immutable; value and
// metadata are only present when they were fetched.
type Entry[V any] struct {
	key      string
	value    V
	meta     Metadata
	hasValue bool
	hasMeta  bool
}

// NewEntry returns a fully populated entry.
func NewEntry[V any](key string, value V, md Metadata) Entry[V] {
	return Entry[V]{key: key, value: value, meta: md, hasValue: true, hasMeta: true}
}

func (e Entry[V]) Key() string { return e.key }

// Value returns the decoded value and whether it was fetched.
func (e Entry[V]) Value() (V, bool) { return e.value, e.hasValue }

// Metadata returns the record metadata and whether it was fetched.
func (e Entry[V]) Metadata() (Metadata, bool) { return e.meta, e.hasMeta }
