package resclient

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache stores encoded GET envelopes. cachex.Memory and cachex.Redis both
// satisfy it. Entries are advisory: writes never invalidate them.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// cacheKey is prefix + hex SHA-256 over method, full URL and payload.
func cacheKey(prefix, method, url string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{' '})
	h.Write([]byte(url))
	h.Write([]byte{'\n'})
	h.Write(body)
	return prefix + hex.EncodeToString(h.Sum(nil))
}
