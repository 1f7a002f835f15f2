package cache

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Kind partitions the keyspace by payload schema.
type Kind string

const (
	KindAnalysis Kind = "analysis"
	KindChat     Kind = "chat"
)

// Valid reports whether k is one of the known payload kinds.
func (k Kind) Valid() bool {
	return k == KindAnalysis || k == KindChat
}

// Normalize lower-cases raw, trims it and collapses internal whitespace runs
// to a single space. Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) string {
	return strings.ToLower(strings.Join(strings.Fields(raw), " "))
}

// Key builds the store key: <kind>:<normalized raw>.
func Key(kind Kind, raw string) string {
	return string(kind) + ":" + Normalize(raw)
}

// KeyHash is a short fingerprint of a store key for logs.
// Keys embed user text, so logs carry the hash instead of the key itself.
func KeyHash(key string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(key))
}

// kindOf recovers the kind prefix from a store key.
func kindOf(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		if k := Kind(key[:i]); k.Valid() {
			return string(k)
		}
	}
	return "unknown"
}
