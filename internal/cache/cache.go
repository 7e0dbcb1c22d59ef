package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache is the interface shared by all cache backends.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key generates a namespaced cache key from an arbitrary string, typically
// a search query or a source URL.
func Key(raw string) string {
	hash := sha256.Sum256([]byte(raw))
	return "veritrail:v1:" + hex.EncodeToString(hash[:])
}
