package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type redisSettings struct {
	Addrs  []string `yaml:"addrs" toml:"addrs"`
	Prefix string   `yaml:"prefix" toml:"prefix"`
}

const yamlDoc = `
caches:
  users:
    backend: redis
    codec: msgpack
    max_in_flight: 64
    drain_timeout: 30s
    near_cache:
      max_cost: 10000
      ttl: 1m
    settings:
      addrs: ["127.0.0.1:6379"]
      prefix: "users:"
  sessions:
    backend: memory
`

const tomlDoc = `
[caches.users]
backend = "redis"
codec = "msgpack"
max_in_flight = 64
drain_timeout = "30s"

[caches.users.near_cache]
max_cost = 10000
ttl = "1m"

[caches.users.settings]
addrs = ["127.0.0.1:6379"]
prefix = "users:"

[caches.sessions]
backend = "memory"
`

func checkUsers(t *testing.T, f *File) {
	t.Helper()
	l, err := f.Cache("users")
	if err != nil {
		t.Fatalf("Cache(users): %v", err)
	}
	if l.Backend != "redis" || l.Codec != "msgpack" || l.MaxInFlight != 64 || l.DrainTimeout != 30*time.Second {
		t.Fatalf("unexpected loader %+v", l)
	}
	if l.NearCache == nil || l.NearCache.MaxCost != 10000 || l.NearCache.TTL != time.Minute {
		t.Fatalf("unexpected near cache %+v", l.NearCache)
	}
	var rs redisSettings
	if err := l.DecodeSettings(&rs); err != nil {
		t.Fatalf("DecodeSettings: %v", err)
	}
	if len(rs.Addrs) != 1 || rs.Addrs[0] != "127.0.0.1:6379" || rs.Prefix != "users:" {
		t.Fatalf("unexpected settings %+v", rs)
	}

	s, err := f.Cache("sessions")
	if err != nil {
		t.Fatalf("Cache(sessions): %v", err)
	}
	if s.Settings != nil {
		t.Fatalf("sessions has no settings block, got %#v", s.Settings)
	}
	if err := s.DecodeSettings(&rs); err != nil {
		t.Fatalf("DecodeSettings on missing block: %v", err)
	}
}

func TestParseYAML(t *testing.T) {
	f, err := ParseYAML([]byte(yamlDoc))
	if err != nil {
		t.Fatalf("ParseYAML: %v", err)
	}
	checkUsers(t, f)
}

func TestParseTOML(t *testing.T) {
	f, err := ParseTOML([]byte(tomlDoc))
	if err != nil {
		t.Fatalf("ParseTOML: %v", err)
	}
	checkUsers(t, f)
}

func TestLoadByExtension(t *testing.T) {
	dir := t.TempDir()
	yp := filepath.Join(dir, "loaders.yaml")
	tp := filepath.Join(dir, "loaders.toml")
	if err := os.WriteFile(yp, []byte(yamlDoc), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(tp, []byte(tomlDoc), 0o600); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{yp, tp} {
		f, err := Load(p)
		if err != nil {
			t.Fatalf("Load(%s): %v", p, err)
		}
		checkUsers(t, f)
	}

	if _, err := Load(filepath.Join(dir, "loaders.ini")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	ip := filepath.Join(dir, "x.ini")
	if err := os.WriteFile(ip, []byte("a=b"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(ip); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("want ErrUnknownFormat, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		l    Loader
		want error
	}{
		{"missing backend", Loader{}, ErrNoBackend},
		{"blank backend", Loader{Backend: "  "}, ErrNoBackend},
		{"negative in-flight", Loader{Backend: "memory", MaxInFlight: -1}, ErrNegativeInFlight},
		{"negative drain", Loader{Backend: "memory", DrainTimeout: -time.Second}, ErrNegativeDrain},
		{"ok", Loader{Backend: "memory"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.l.Validate()
			if tc.want == nil {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v want %v", err, tc.want)
			}
		})
	}
}

func TestParseRejectsInvalidCache(t *testing.T) {
	if _, err := ParseYAML([]byte("caches:\n  x:\n    codec: json\n")); !errors.Is(err, ErrNoBackend) {
		t.Fatalf("want ErrNoBackend, got %v", err)
	}
}
