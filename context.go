package cacheloader

import (
	"time"

	"github.com/unkn0wn-root/cacheloader/codec"
	"github.com/unkn0wn-root/cacheloader/config"
	"github.com/unkn0wn-root/cacheloader/versions"
)

// InitContext bundles the collaborators a loader needs. The cache core builds
// it once and hands it to Init; the loader keeps references but owns none of
// them.
type InitContext[V any] struct {
	// Required
	CacheName string

	// Codec decodes payloads. If nil, Config.Codec selects a built-in codec
	// (json when empty); with neither set Init fails.
	Codec codec.Codec[V]

	// Config binds the loader to a backend kind and tunes dispatch. Optional
	// when the loader was constructed with a backend.
	Config *config.Loader

	Clock    func() time.Time // nil => time.Now
	Logger   Logger           // nil => NopLogger
	Hooks    Hooks            // nil => NopHooks
	Versions versions.Store   // nil => versions are not checked
}
