package tables

import (
	"context"
	"sort"
	"strings"

	"maintdesk/internal/schema"
)

// Width hints are relative weights, not pixels; the UI scales them.
const (
	WidthNarrow = 1
	WidthMedium = 2
	WidthWide   = 3
)

// ColumnDescriptor is the UI-facing description of one table column.
type ColumnDescriptor struct {
	Field     string           `json:"field"`
	Label     string           `json:"label"`
	Type      schema.FieldType `json:"type"`
	WidthHint int              `json:"widthHint"`
	Sortable  bool             `json:"sortable"`

	// RenderHint names a custom cell renderer registered by the caller.
	RenderHint string `json:"renderHint,omitempty"`

	Compare Comparator `json:"-"`
}

// Factory derives table column descriptors from entity metadata.
type Factory struct {
	registry *schema.Registry
	resolver *DisplayResolver
}

func NewFactory(registry *schema.Registry, resolver *DisplayResolver) *Factory {
	return &Factory{registry: registry, resolver: resolver}
}

// Columns produces one descriptor per visible field. With no explicit field
// list, all non-timestamp fields are shown in sorted order. renderers maps
// field name to a custom render hint.
func (f *Factory) Columns(ctx context.Context, entityName string, visible []string, renderers map[string]string) ([]ColumnDescriptor, error) {
	entity, err := f.registry.Get(ctx, entityName)
	if err != nil {
		return nil, err
	}

	if len(visible) == 0 {
		visible = defaultVisibleFields(entity)
	}

	columns := make([]ColumnDescriptor, 0, len(visible))
	for _, name := range visible {
		field := entity.GetField(name)
		if field == nil {
			continue
		}
		col := ColumnDescriptor{
			Field:     name,
			Label:     schema.Label(name),
			Type:      field.Type,
			WidthHint: widthHint(field),
			Sortable:  entity.IsSortable(name),
		}
		if col.Sortable {
			col.Compare = comparatorFor(field.Type)
		}
		if hint, ok := renderers[name]; ok {
			col.RenderHint = hint
		}
		columns = append(columns, col)
	}
	return columns, nil
}

// Resolver exposes the reference display resolver for cell rendering.
func (f *Factory) Resolver() *DisplayResolver {
	return f.resolver
}

func defaultVisibleFields(entity *schema.EntityMetadata) []string {
	var names []string
	for name, field := range entity.Fields {
		if field.Type.IsTemporal() {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// widthHint keys the relative column width by type and by field-name
// conventions: identifiers narrow, email and long text wide, references
// medium.
func widthHint(field *schema.FieldDefinition) int {
	switch field.Type {
	case schema.TypeID, schema.TypeBoolean:
		return WidthNarrow
	case schema.TypeEmail, schema.TypeText:
		return WidthWide
	case schema.TypeReference:
		return WidthMedium
	}
	if field.Name == "id" || strings.HasSuffix(field.Name, "_id") || field.Name == "code" {
		return WidthNarrow
	}
	return WidthMedium
}
