package schema

import (
	"context"
	_ "embed"
	"fmt"
	"sync/atomic"
	"time"

	"maintdesk/internal/apperr"
	"maintdesk/internal/docsource"
)

// defaultSchema is a minimal built-in entity set. It keeps the application
// usable in a degraded mode when the schema document cannot be loaded at all
// (a packaging error, an empty document store). Engaging it is logged as a
// warning by the cached loader, never treated as a normal load.
//
//go:embed defaults.json
var defaultSchema []byte

// ResourceChecker resolves resource tags against the permission model's
// declared resource set.
type ResourceChecker interface {
	KnownResource(name string) bool
}

// Registry is the dependency-injected schema registry. Queries before
// Initialize fail with NOT_INITIALIZED; after that, reads serve a stable
// snapshot that is re-read after the document TTL elapses.
type Registry struct {
	cache       *docsource.Cached[Document]
	resources   ResourceChecker
	initialized atomic.Bool
}

func NewRegistry(source docsource.Source, ttl time.Duration, resources ResourceChecker) *Registry {
	r := &Registry{resources: resources}
	r.cache = docsource.NewCached(source, ttl, r.parseDocument, defaultSchema)
	return r
}

func (r *Registry) parseDocument(data []byte) (*Document, error) {
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, err
	}
	// Every entity's access rules must be resolvable. A naming mismatch here
	// must fail the load: authorization must never default to "unrestricted"
	// because a tag did not match anything.
	if r.resources != nil {
		for name, entity := range doc.Entities {
			if !r.resources.KnownResource(entity.Resource) {
				return nil, fmt.Errorf("entity %q declares resource tag %q which is not a known resource", name, entity.Resource)
			}
		}
	}
	return doc, nil
}

// Initialize performs the first load. Idempotent: while a snapshot is live,
// a second call is a cache hit.
func (r *Registry) Initialize(ctx context.Context) error {
	if _, err := r.cache.Get(ctx); err != nil {
		return apperr.ConfigInvalid(err.Error())
	}
	r.initialized.Store(true)
	return nil
}

// Ready reports whether Initialize has completed.
func (r *Registry) Ready() bool {
	return r.initialized.Load()
}

// Reload discards the snapshot so the next query re-reads the document.
func (r *Registry) Reload() {
	r.cache.Invalidate()
}

// Get returns the metadata for an entity. Fails with NOT_INITIALIZED before
// Initialize, and with UNKNOWN_ENTITY for an absent name.
func (r *Registry) Get(ctx context.Context, name string) (*EntityMetadata, error) {
	if !r.initialized.Load() {
		return nil, apperr.NotInitialized("schema registry")
	}
	doc, err := r.cache.Get(ctx)
	if err != nil {
		return nil, apperr.ConfigInvalid(err.Error())
	}
	entity, ok := doc.Entities[name]
	if !ok {
		return nil, apperr.UnknownEntity(name)
	}
	return entity, nil
}

// TryGet is the non-failing variant of Get.
func (r *Registry) TryGet(ctx context.Context, name string) (*EntityMetadata, bool) {
	entity, err := r.Get(ctx, name)
	if err != nil {
		return nil, false
	}
	return entity, true
}

// All returns every registered entity, keyed by name.
func (r *Registry) All(ctx context.Context) (map[string]*EntityMetadata, error) {
	if !r.initialized.Load() {
		return nil, apperr.NotInitialized("schema registry")
	}
	doc, err := r.cache.Get(ctx)
	if err != nil {
		return nil, apperr.ConfigInvalid(err.Error())
	}
	return doc.Entities, nil
}

// ResolveReference resolves a reference field's related entity. The check is
// deliberately lazy — done here rather than at load time — so that documents
// may arrive in any order during startup.
func (r *Registry) ResolveReference(ctx context.Context, field *FieldDefinition) (*EntityMetadata, error) {
	if !field.IsReference() {
		return nil, apperr.InvalidPayload(fmt.Sprintf("field %s is not a reference", field.Name))
	}
	related, err := r.Get(ctx, field.RelatedEntity)
	if err != nil {
		return nil, err
	}
	return related, nil
}

// Clock exposes the shared expiry clock override for tests.
func (r *Registry) Clock(now func() time.Time) {
	r.cache.SetClock(now)
}
