package slog

import (
	"bytes"
	stdslog "log/slog"
	"strings"
	"testing"

	"github.com/unkn0wn-root/cacheloader"
)

func TestSortedAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := Logger{L: stdslog.New(stdslog.NewTextHandler(&buf, nil))}
	l.Info("loader started", cacheloader.Fields{"z": 1, "cache": "users", "a": true})

	out := buf.String()
	ia, ic, iz := strings.Index(out, "a=true"), strings.Index(out, "cache=users"), strings.Index(out, "z=1")
	if ia < 0 || ic < 0 || iz < 0 || !(ia < ic && ic < iz) {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestLevelGate(t *testing.T) {
	var buf bytes.Buffer
	l := Logger{L: stdslog.New(stdslog.NewTextHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelWarn}))}
	l.Debug("hidden", nil)
	l.Info("hidden", nil)
	if buf.Len() != 0 {
		t.Fatalf("output below level: %s", buf.String())
	}
}
