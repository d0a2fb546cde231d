// Package sloghooks reports loader events through log/slog.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/cacheloader"
)

type Options struct {
	// Sampling for the per-key events; 0/1 = log all.
	CorruptEvery uint64
	StaleEvery   uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	corruptCtr atomic.Uint64
	staleCtr   atomic.Uint64
}

var _ cacheloader.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) CorruptRecord(key string, err error) {
	if h.l == nil || !sample(h.opts.CorruptEvery, &h.corruptCtr) {
		return
	}
	h.l.Warn("cacheloader.corrupt_record",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) StaleRecord(key string, version, current uint64) {
	if h.l == nil || !sample(h.opts.StaleEvery, &h.staleCtr) {
		return
	}
	h.l.Debug("cacheloader.stale_record",
		"key", h.redact(key),
		"version", version,
		"current", current)
}

func (h *Hooks) TaskFailed(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("cacheloader.task_failed",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) DrainAbandoned(cache string, pending int64) {
	if h.l == nil {
		return
	}
	h.l.Warn("cacheloader.drain_abandoned",
		"cache", cache,
		"pending", pending)
}

func (h *Hooks) TeardownFailed(cache string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("cacheloader.teardown_failed",
		"cache", cache,
		"err", err)
}
