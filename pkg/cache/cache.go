// Package cache stores finished conversion artifacts so that converting the
// same image with the same configuration twice skips the pipeline.
//
// Backends:
//   - FileCache: one JSON entry per key under a local directory (CLI)
//   - RedisCache: shared entries for multi-instance servers
//   - NullCache: caching disabled
//
// Keys come from a [Keyer]. The default keyer hashes the input image bytes
// together with the configuration hash, so any parameter change produces a
// new key.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with optional expiry.
type Cache interface {
	// Get returns the value for key. A missing or expired key returns
	// (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero keeps the entry forever.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	Close() error
}

// Default entry lifetimes.
const (
	// ArtifactTTL is how long a generated STL stays cached.
	ArtifactTTL = 30 * 24 * time.Hour
)

// =============================================================================
// Keys
// =============================================================================

// Keyer builds cache keys.
type Keyer interface {
	// ArtifactKey identifies the STL produced from one input image.
	ArtifactKey(imageHash string, opts ArtifactKeyOpts) string
}

// ArtifactKeyOpts are the settings that change a generated STL.
type ArtifactKeyOpts struct {
	ConfigHash string `json:"config"`
	Backend    string `json:"backend,omitempty"`
}

// DefaultKeyer produces content-addressed keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// ArtifactKey returns "stl:" followed by a digest of the image hash and opts.
func (DefaultKeyer) ArtifactKey(imageHash string, opts ArtifactKeyOpts) string {
	return hashKey("stl", imageHash, opts)
}
