package permission

import (
	"context"
	"time"

	"maintdesk/internal/apperr"
	"maintdesk/internal/docsource"
)

// Service is the dependency-injected handle to the permission model. It owns
// the cached document loader; every query resolves the current snapshot
// first, so callers always see a complete, validated model and pick up
// external edits after the TTL elapses.
type Service struct {
	cache *docsource.Cached[Model]
}

func NewService(source docsource.Source, ttl time.Duration) *Service {
	return &Service{
		cache: docsource.NewCached(source, ttl, Parse, nil),
	}
}

// Initialize performs the first load. Idempotent: a subsequent call while a
// snapshot is live is a cache hit.
func (s *Service) Initialize(ctx context.Context) error {
	if _, err := s.cache.Get(ctx); err != nil {
		return apperr.ConfigInvalid(err.Error())
	}
	return nil
}

// Ready reports whether a snapshot has been loaded.
func (s *Service) Ready() bool {
	return s.cache.Peek() != nil
}

// Reload discards the cached document so the next query re-reads it.
func (s *Service) Reload() {
	s.cache.Invalidate()
}

// Model returns the current snapshot, loading it if needed.
func (s *Service) Model(ctx context.Context) (*Model, error) {
	m, err := s.cache.Get(ctx)
	if err != nil {
		return nil, apperr.ConfigInvalid(err.Error())
	}
	return m, nil
}

// HasPermission is the fail-closed composed decision against the current
// snapshot. A load failure denies: ambiguity never grants access.
func (s *Service) HasPermission(ctx context.Context, role, resource, operation string) bool {
	m, err := s.cache.Get(ctx)
	if err != nil {
		return false
	}
	return m.HasPermission(role, resource, operation)
}

// KnownResource reports whether the current document declares the resource.
// Satisfies the schema registry's resource checker; a load failure reports
// false, which fails the dependent schema load rather than letting an
// unresolvable tag through.
func (s *Service) KnownResource(name string) bool {
	m, err := s.cache.Get(context.Background())
	if err != nil {
		return false
	}
	return m.KnownResource(name)
}

// Clock exposes the shared expiry clock override for tests.
func (s *Service) Clock(now func() time.Time) {
	s.cache.SetClock(now)
}
