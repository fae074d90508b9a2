package docsource

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Cached wraps a Source with parse-once semantics and a TTL. All public
// accessors of a configuration document go through Get, so the "is the cache
// still valid" check lives in exactly one place.
//
// A reload replaces the whole snapshot atomically; readers that obtained the
// previous snapshot keep using it. If a reload fails, the previous snapshot
// keeps being served and the failure is logged, so a transient document-store
// outage never takes down a running process.
type Cached[T any] struct {
	source   Source
	parse    func([]byte) (*T, error)
	ttl      time.Duration
	fallback []byte

	mu       sync.Mutex
	snapshot *T
	loadedAt time.Time
	now      func() time.Time
}

// NewCached builds a cached loader. fallback may be nil; when present it is
// parsed if the very first load fails, putting the consumer in a degraded
// but usable mode.
func NewCached[T any](source Source, ttl time.Duration, parse func([]byte) (*T, error), fallback []byte) *Cached[T] {
	return &Cached[T]{
		source:   source,
		parse:    parse,
		ttl:      ttl,
		fallback: fallback,
		now:      time.Now,
	}
}

// Get returns the current snapshot, re-loading the document if the TTL has
// elapsed since the last successful load.
func (c *Cached[T]) Get(ctx context.Context) (*T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snapshot != nil && c.now().Sub(c.loadedAt) < c.ttl {
		return c.snapshot, nil
	}

	data, err := c.source.Load(ctx)
	if err != nil {
		if c.snapshot != nil {
			log.Printf("WARN: reload of %s failed, serving previous snapshot: %v", c.source.Name(), err)
			c.loadedAt = c.now() // back off until the next TTL window
			return c.snapshot, nil
		}
		if c.fallback != nil {
			log.Printf("WARN: load of %s failed, using built-in defaults: %v", c.source.Name(), err)
			parsed, perr := c.parse(c.fallback)
			if perr != nil {
				return nil, fmt.Errorf("parse built-in defaults for %s: %w", c.source.Name(), perr)
			}
			c.snapshot = parsed
			c.loadedAt = c.now()
			return c.snapshot, nil
		}
		return nil, fmt.Errorf("load %s: %w", c.source.Name(), err)
	}

	parsed, err := c.parse(data)
	if err != nil {
		if c.snapshot != nil {
			log.Printf("WARN: parse of %s failed, serving previous snapshot: %v", c.source.Name(), err)
			c.loadedAt = c.now()
			return c.snapshot, nil
		}
		return nil, fmt.Errorf("parse %s: %w", c.source.Name(), err)
	}

	c.snapshot = parsed
	c.loadedAt = c.now()
	return c.snapshot, nil
}

// Peek returns the current snapshot without triggering a load. Returns nil
// if nothing has been loaded yet.
func (c *Cached[T]) Peek() *T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// Invalidate discards the snapshot so the next Get re-loads the document.
func (c *Cached[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = nil
	c.loadedAt = time.Time{}
}

// SetClock overrides the expiry clock. Test hook.
func (c *Cached[T]) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
