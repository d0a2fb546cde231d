package cacheloader

import "strings"

// KeyFilter selects the keys an iteration visits. It must be pure: Process may
// call it from several goroutines and exactly once per candidate key.
// A nil KeyFilter accepts every key.
type KeyFilter func(key string) bool

// AllKeys accepts every key.
func AllKeys(string) bool { return true }

// PrefixFilter accepts keys starting with prefix.
func PrefixFilter(prefix string) KeyFilter {
	return func(k string) bool { return strings.HasPrefix(k, prefix) }
}

// KeySet accepts exactly the given keys.
func KeySet(keys ...string) KeyFilter {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return func(k string) bool {
		_, ok := set[k]
		return ok
	}
}

// And accepts a key when every filter does. Nil filters are skipped.
func And(filters ...KeyFilter) KeyFilter {
	return func(k string) bool {
		for _, f := range filters {
			if f != nil && !f(k) {
				return false
			}
		}
		return true
	}
}

// Or accepts a key when any non-nil filter does.
func Or(filters ...KeyFilter) KeyFilter {
	return func(k string) bool {
		for _, f := range filters {
			if f != nil && f(k) {
				return true
			}
		}
		return false
	}
}

func Not(f KeyFilter) KeyFilter {
	return func(k string) bool { return f != nil && !f(k) }
}
