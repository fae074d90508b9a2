package schema

import (
	"encoding/json"
	"fmt"
)

// FieldType is the closed set of field type tags. Parsing rejects anything
// outside this set so that descriptor dispatch stays exhaustive: adding a
// type means touching every switch that consumes it.
type FieldType string

const (
	TypeString    FieldType = "string"
	TypeText      FieldType = "text"
	TypeInteger   FieldType = "integer"
	TypeDecimal   FieldType = "decimal"
	TypeBoolean   FieldType = "boolean"
	TypeEmail     FieldType = "email"
	TypePhone     FieldType = "phone"
	TypeTimestamp FieldType = "timestamp"
	TypeDate      FieldType = "date"
	TypeEnum      FieldType = "enum"
	TypeID        FieldType = "id"
	TypeReference FieldType = "reference"
)

var fieldTypes = map[FieldType]bool{
	TypeString: true, TypeText: true, TypeInteger: true, TypeDecimal: true,
	TypeBoolean: true, TypeEmail: true, TypePhone: true, TypeTimestamp: true,
	TypeDate: true, TypeEnum: true, TypeID: true, TypeReference: true,
}

func (t *FieldType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	ft := FieldType(s)
	if !fieldTypes[ft] {
		return fmt.Errorf("unknown field type %q", s)
	}
	*t = ft
	return nil
}

// IsNumeric reports whether values of this type compare numerically.
func (t FieldType) IsNumeric() bool {
	return t == TypeInteger || t == TypeDecimal
}

// IsTemporal reports whether values of this type parse to an instant.
func (t FieldType) IsTemporal() bool {
	return t == TypeTimestamp || t == TypeDate
}

// FieldDefinition describes one field of an entity. Immutable once parsed.
type FieldDefinition struct {
	Name     string    `json:"-"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required,omitempty"`
	ReadOnly bool      `json:"readonly,omitempty"`

	MaxLength *int     `json:"maxLength,omitempty"`
	MinLength *int     `json:"minLength,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	Default   any      `json:"default,omitempty"`
	Values    []string `json:"values,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`

	// Reference fields only: the related entity plus how to render a
	// referenced record. Exactly one of DisplayField, DisplayFields, or
	// DisplayTemplate is expected; DisplayFieldExpr resolves the precedence.
	RelatedEntity   string   `json:"relatedEntity,omitempty"`
	DisplayField    string   `json:"displayField,omitempty"`
	DisplayFields   []string `json:"displayFields,omitempty"`
	DisplayTemplate string   `json:"displayTemplate,omitempty"`
}

// IsReference reports whether the field points at another entity.
func (f *FieldDefinition) IsReference() bool {
	return f.Type == TypeReference
}

// DisplayFieldExpr returns the render instruction for a referenced record:
// the template when declared, else the multi-field list, else the single
// display field.
func (f *FieldDefinition) DisplayFieldExpr() []string {
	if f.DisplayTemplate != "" {
		return []string{f.DisplayTemplate}
	}
	if len(f.DisplayFields) > 0 {
		return f.DisplayFields
	}
	if f.DisplayField != "" {
		return []string{f.DisplayField}
	}
	return nil
}
