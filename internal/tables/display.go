package tables

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"maintdesk/internal/schema"
)

// RecordFetcher retrieves a single record of an entity by id. The generic
// entity client satisfies this.
type RecordFetcher interface {
	Get(ctx context.Context, entity, id string) (map[string]any, error)
}

// DisplayResolver resolves the display string for a referenced record. A
// table of N rows referencing the same customer should cost one lookup, not
// N, so resolutions are memoized per (entity, id) for the process lifetime.
// The table is append-only with no eviction; that is acceptable for a
// session-scoped process and would need bounding in a long-lived one.
type DisplayResolver struct {
	fetcher RecordFetcher

	mu    sync.Mutex
	cache map[displayKey]string
}

type displayKey struct {
	entity string
	id     string
}

func NewDisplayResolver(fetcher RecordFetcher) *DisplayResolver {
	return &DisplayResolver{
		fetcher: fetcher,
		cache:   make(map[displayKey]string),
	}
}

// Resolve returns the display string for the record a reference field points
// at. The field's display template or field list decides what is rendered.
func (r *DisplayResolver) Resolve(ctx context.Context, field *schema.FieldDefinition, id string) (string, error) {
	if !field.IsReference() {
		return "", fmt.Errorf("field %s is not a reference", field.Name)
	}
	key := displayKey{entity: field.RelatedEntity, id: id}

	r.mu.Lock()
	if cached, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	record, err := r.fetcher.Get(ctx, field.RelatedEntity, id)
	if err != nil {
		return "", err
	}
	display := RenderDisplay(field, record)

	r.mu.Lock()
	r.cache[key] = display
	r.mu.Unlock()
	return display, nil
}

// CachedCount reports how many resolutions are memoized. Test hook.
func (r *DisplayResolver) CachedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}

// RenderDisplay renders a referenced record using the field's display
// instruction: a {placeholder} template, a field list joined by spaces, or a
// single display field. Falls back to the record id when nothing resolves.
func RenderDisplay(field *schema.FieldDefinition, record map[string]any) string {
	if field.DisplayTemplate != "" {
		return renderTemplate(field.DisplayTemplate, record)
	}
	if len(field.DisplayFields) > 0 {
		parts := make([]string, 0, len(field.DisplayFields))
		for _, name := range field.DisplayFields {
			if v := record[name]; v != nil {
				parts = append(parts, stringify(v))
			}
		}
		return strings.Join(parts, " ")
	}
	if field.DisplayField != "" {
		if v := record[field.DisplayField]; v != nil {
			return stringify(v)
		}
	}
	return stringify(record["id"])
}

func renderTemplate(template string, record map[string]any) string {
	out := template
	for {
		start := strings.Index(out, "{")
		if start == -1 {
			return out
		}
		end := strings.Index(out[start:], "}")
		if end == -1 {
			return out
		}
		end += start
		name := out[start+1 : end]
		out = out[:start] + stringify(record[name]) + out[end+1:]
	}
}
