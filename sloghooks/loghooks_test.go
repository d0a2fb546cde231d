package sloghooks

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newBuf() (*bytes.Buffer, *slog.Logger) {
	var buf bytes.Buffer
	return &buf, slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestRedactsKeys(t *testing.T) {
	buf, l := newBuf()
	h := New(l, Options{})
	h.TaskFailed("user:42", errors.New("boom"))
	out := buf.String()
	if strings.Contains(out, "user:42") {
		t.Fatalf("raw key leaked: %s", out)
	}
	if !strings.Contains(out, "cacheloader.task_failed") {
		t.Fatalf("missing event: %s", out)
	}
}

func TestSampling(t *testing.T) {
	buf, l := newBuf()
	h := New(l, Options{CorruptEvery: 3, Redact: func(k string) string { return k }})
	for i := 0; i < 6; i++ {
		h.CorruptRecord("k", errors.New("bad"))
	}
	if n := strings.Count(buf.String(), "cacheloader.corrupt_record"); n != 2 {
		t.Fatalf("logged %d events, want 2", n)
	}
}

func TestNilLogger(t *testing.T) {
	h := New(nil, Options{})
	h.DrainAbandoned("users", 3)
	h.TeardownFailed("users", errors.New("x"))
}
