// Package cache is the namespaced key/value fabric that fronts every
// expensive verification step (MX lookups, SMTP outcomes, port discovery,
// dataset membership, WHOIS records).
//
// Backends are pluggable: a bounded in-process LRU and a Redis-backed
// remote store. Cache failures are never fatal — a failed read is a miss,
// a failed write is dropped after logging.
package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"
)

// Namespace names. Each namespace has an independent TTL and capacity.
const (
	NSMx               = "mx"
	NSDisposable       = "disposable"
	NSFree             = "free"
	NSDomainValid      = "domainValid"
	NSSMTP             = "smtp"
	NSSMTPPort         = "smtpPort"
	NSDomainSuggestion = "domainSuggestion"
	NSWhois            = "whois"
)

// DefaultTTL returns the standard TTL for a namespace.
func DefaultTTL(ns string) time.Duration {
	switch ns {
	case NSMx, NSSMTPPort, NSWhois:
		return 1 * time.Hour
	case NSSMTP:
		return 30 * time.Minute
	case NSDisposable, NSFree, NSDomainValid, NSDomainSuggestion:
		return 24 * time.Hour
	default:
		return 1 * time.Hour
	}
}

// Store is the backend contract. Implementations must be safe for
// concurrent callers and provide per-key atomicity for Get/Set/Delete.
// No method returns an error: backends swallow failures internally so a
// broken cache can never break a verification.
type Store interface {
	Get(ctx context.Context, ns, key string) ([]byte, bool)
	Set(ctx context.Context, ns, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, ns, key string) bool
	Has(ctx context.Context, ns, key string) bool
	Clear(ctx context.Context)
}

// Cache wraps a Store with JSON value encoding. Multiple independent Cache
// instances may exist in one process; they never interfere.
type Cache struct {
	store Store
	debug bool
}

// New wraps the given backend. A nil store yields a cache where every
// read misses and every write is a no-op.
func New(store Store) *Cache {
	return &Cache{store: store}
}

// NewDebug is New with debug logging of dropped writes enabled.
func NewDebug(store Store) *Cache {
	return &Cache{store: store, debug: true}
}

// GetJSON reads ns/key and unmarshals it into out. Returns false on miss,
// expiry, or any decode failure (a corrupt entry is treated as a miss).
func (c *Cache) GetJSON(ctx context.Context, ns, key string, out interface{}) bool {
	if c == nil || c.store == nil {
		return false
	}
	raw, ok := c.store.Get(ctx, ns, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		if c.debug {
			log.Printf("[DEBUG] cache: corrupt entry %s/%s dropped: %v", ns, key, err)
		}
		c.store.Delete(ctx, ns, key)
		return false
	}
	return true
}

// SetJSON marshals v and stores it under ns/key. A ttl of 0 uses the
// namespace default. Encode failures are dropped after logging.
func (c *Cache) SetJSON(ctx context.Context, ns, key string, v interface{}, ttl time.Duration) {
	if c == nil || c.store == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		if c.debug {
			log.Printf("[DEBUG] cache: dropping unencodable write %s/%s: %v", ns, key, err)
		}
		return
	}
	if ttl <= 0 {
		ttl = DefaultTTL(ns)
	}
	c.store.Set(ctx, ns, key, raw, ttl)
}

// Delete removes ns/key. Reports whether an entry existed.
func (c *Cache) Delete(ctx context.Context, ns, key string) bool {
	if c == nil || c.store == nil {
		return false
	}
	return c.store.Delete(ctx, ns, key)
}

// Has reports whether ns/key holds an unexpired entry.
func (c *Cache) Has(ctx context.Context, ns, key string) bool {
	if c == nil || c.store == nil {
		return false
	}
	return c.store.Has(ctx, ns, key)
}

// Clear drops every entry in every namespace.
func (c *Cache) Clear(ctx context.Context) {
	if c == nil || c.store == nil {
		return
	}
	c.store.Clear(ctx)
}
