package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type SortSpec struct {
	Field string `json:"field"`
	Order string `json:"order"` // asc or desc
}

// EntityMetadata describes one business entity. Immutable once parsed; a
// document reload replaces the whole set.
type EntityMetadata struct {
	Name              string `json:"-"`
	TableName         string `json:"tableName"`
	PrimaryKey        string `json:"primaryKey"`
	IdentityField     string `json:"identityField"`
	DisplayField      string `json:"displayField"`
	DisplayName       string `json:"displayName,omitempty"`
	DisplayNamePlural string `json:"displayNamePlural,omitempty"`

	// Resource is the tag used to look up this entity's access rules. It may
	// differ from the table name and must resolve against the permission
	// model's resource set.
	Resource string `json:"resource"`

	RequiredFields   []string  `json:"requiredFields,omitempty"`
	ImmutableFields  []string  `json:"immutableFields,omitempty"`
	SearchableFields []string  `json:"searchableFields,omitempty"`
	FilterableFields []string  `json:"filterableFields,omitempty"`
	SortableFields   []string  `json:"sortableFields,omitempty"`
	DefaultSort      *SortSpec `json:"defaultSort,omitempty"`

	Fields map[string]*FieldDefinition `json:"fields"`
}

func (e *EntityMetadata) parseAndValidate(name string) error {
	e.Name = name
	if e.TableName == "" {
		e.TableName = name
	}
	if e.PrimaryKey == "" {
		e.PrimaryKey = "id"
	}
	if e.Resource == "" {
		return fmt.Errorf("entity %q declares no resource tag", name)
	}
	if len(e.Fields) == 0 {
		return fmt.Errorf("entity %q declares no fields", name)
	}
	for fieldName, f := range e.Fields {
		f.Name = fieldName
		if f.IsReference() && f.RelatedEntity == "" {
			return fmt.Errorf("entity %q field %q is a reference but names no related entity", name, fieldName)
		}
	}
	// Required-ness declared at the entity level overlays the field flag.
	for _, fieldName := range e.RequiredFields {
		if f, ok := e.Fields[fieldName]; ok {
			f.Required = true
		}
	}
	return nil
}

// GetField returns the field definition, or nil.
func (e *EntityMetadata) GetField(name string) *FieldDefinition {
	return e.Fields[name]
}

// HasField returns true if the entity declares the field.
func (e *EntityMetadata) HasField(name string) bool {
	_, ok := e.Fields[name]
	return ok
}

// FieldNames returns all field names, sorted for stable iteration.
func (e *EntityMetadata) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsSystemField reports whether the field is engine-managed: the primary key
// and the creation/update/deletion timestamps. System fields never appear in
// form descriptors.
func (e *EntityMetadata) IsSystemField(name string) bool {
	if name == e.PrimaryKey {
		return true
	}
	switch name {
	case "created_at", "updated_at", "deleted_at":
		return true
	}
	return false
}

func (e *EntityMetadata) IsImmutable(name string) bool {
	return containsString(e.ImmutableFields, name)
}

func (e *EntityMetadata) IsSearchable(name string) bool {
	return containsString(e.SearchableFields, name)
}

func (e *EntityMetadata) IsFilterable(name string) bool {
	return containsString(e.FilterableFields, name)
}

func (e *EntityMetadata) IsSortable(name string) bool {
	return containsString(e.SortableFields, name)
}

// Label derives a human-readable label from a snake_case field name.
func Label(fieldName string) string {
	parts := strings.Split(fieldName, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if p == "id" {
			parts[i] = "ID"
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

// Title returns the entity's display name, falling back to a title-cased
// entity name.
func (e *EntityMetadata) Title() string {
	if e.DisplayName != "" {
		return e.DisplayName
	}
	return Label(e.Name)
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// Document is one parsed entity-schema document: entity name → metadata.
type Document struct {
	Entities map[string]*EntityMetadata
}

// isMetaKey reports whether a top-level document key is a schema marker
// rather than an entity declaration.
func isMetaKey(key string) bool {
	return strings.HasPrefix(key, "$") || strings.HasPrefix(key, "_") || key == "version"
}

// ParseDocument decodes an entity-schema document. Meta-keys are skipped; a
// malformed entity rejects the whole document rather than being silently
// dropped, because a missing entity would otherwise surface much later as a
// confusing UNKNOWN_ENTITY.
func ParseDocument(data []byte) (*Document, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse schema document: %w", err)
	}

	doc := &Document{Entities: make(map[string]*EntityMetadata, len(raw))}
	for name, def := range raw {
		if isMetaKey(name) {
			continue
		}
		var entity EntityMetadata
		if err := json.Unmarshal(def, &entity); err != nil {
			return nil, fmt.Errorf("entity %q: %w", name, err)
		}
		if err := entity.parseAndValidate(name); err != nil {
			return nil, err
		}
		doc.Entities[name] = &entity
	}

	if len(doc.Entities) == 0 {
		return nil, fmt.Errorf("schema document declares no entities")
	}
	return doc, nil
}
