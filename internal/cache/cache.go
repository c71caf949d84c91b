// Package cache holds the volatile, TTL-bounded lookup cache. It is never
// authoritative; callers treat every error as a miss.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache is a best-effort key/value store with per-entry expiry.
type Cache interface {
	// Get returns ok=false on a miss.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// URLKey indexes short codes by original URL.
func URLKey(originalURL string) string { return "url:" + originalURL }

// CodeKey indexes original URLs by short code.
func CodeKey(code string) string { return "code:" + code }

// Error describes a failed cache operation.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("cache %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Noop is used when no cache is configured: every Get misses, every Set succeeds.
type Noop struct{}

func (Noop) Get(context.Context, string) (string, bool, error) { return "", false, nil }

func (Noop) Set(context.Context, string, string, time.Duration) error { return nil }

var _ Cache = Noop{}
