package cacheloader

import (
	"testing"
	"time"
)

func TestFilters(t *testing.T) {
	cases := []struct {
		name string
		f    KeyFilter
		in   []string
		out  []string
	}{
		{"all", AllKeys, []string{"", "a", "user:1"}, nil},
		{"prefix", PrefixFilter("user:"), []string{"user:1", "user:"}, []string{"usr:1", "order:1", ""}},
		{"set", KeySet("a", "b"), []string{"a", "b"}, []string{"c", "ab", ""}},
		{"and", And(PrefixFilter("u"), Not(KeySet("u2"))), []string{"u1", "u3"}, []string{"u2", "x1"}},
		{"and skips nil", And(nil, PrefixFilter("u")), []string{"u1"}, []string{"x"}},
		{"or", Or(KeySet("x"), PrefixFilter("u")), []string{"x", "u9"}, []string{"y"}},
		{"empty or", Or(), nil, []string{"a"}},
		{"not nil", Not(nil), nil, []string{"a"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, k := range tc.in {
				if !tc.f(k) {
					t.Errorf("%q rejected", k)
				}
			}
			for _, k := range tc.out {
				if tc.f(k) {
					t.Errorf("%q accepted", k)
				}
			}
		})
	}
}

func TestEntryPresenceFlags(t *testing.T) {
	e := Entry[int]{key: "k"}
	if _, ok := e.Value(); ok {
		t.Fatal("value reported on a key-only entry")
	}
	if _, ok := e.Metadata(); ok {
		t.Fatal("metadata reported on a key-only entry")
	}
	full := NewEntry("k", 5, Metadata{Version: 2})
	if v, ok := full.Value(); !ok || v != 5 {
		t.Fatalf("value=%v ok=%v", v, ok)
	}
	if md, ok := full.Metadata(); !ok || md.Version != 2 {
		t.Fatalf("metadata=%+v ok=%v", md, ok)
	}
}

func TestMetadataExpired(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	if (Metadata{}).Expired(now) {
		t.Fatal("zero expiry must never expire")
	}
	md := Metadata{Expires: now.Add(time.Second)}
	if md.Expired(now) {
		t.Fatal("expired before its deadline")
	}
	if !md.Expired(now.Add(time.Second)) {
		t.Fatal("not expired at its deadline")
	}
	// the header round trip keeps nanosecond precision
	h := Metadata{Expires: now.Add(time.Nanosecond)}.header()
	if !metadataFromHeader(h).Expired(now.Add(time.Nanosecond)) || metadataFromHeader(h).Expired(now) {
		t.Fatal("expiry changed across header encoding")
	}
}
