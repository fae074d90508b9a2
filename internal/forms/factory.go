package forms

import (
	"context"
	"sort"

	"maintdesk/internal/schema"
)

// Mode selects which descriptor set the factory produces.
type Mode string

const (
	ModeCreate  Mode = "create"
	ModeEdit    Mode = "edit"
	ModeDisplay Mode = "display"
)

// Option is one selectable value for an enum or reference field.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// ReferenceLoader retrieves candidate records for a reference field. The
// lookup runs against the live backend, so it is injected rather than owned
// by the factory.
type ReferenceLoader interface {
	ReferenceOptions(ctx context.Context, field *schema.FieldDefinition) ([]Option, error)
}

// FieldDescriptor is the UI-facing description of one form field.
type FieldDescriptor struct {
	Name     string           `json:"name"`
	Label    string           `json:"label"`
	Type     schema.FieldType `json:"type"`
	ReadOnly bool             `json:"readonly"`
	Required bool             `json:"required"`
	Default  any              `json:"default,omitempty"`
	Options  []Option         `json:"options,omitempty"`

	// LoadOptions is set for reference fields in place of static Options;
	// the caller awaits it when rendering.
	LoadOptions func(ctx context.Context) ([]Option, error) `json:"-"`

	Validate Validator `json:"-"`
}

// Factory derives form-field descriptors from entity metadata.
type Factory struct {
	registry *schema.Registry
	refs     ReferenceLoader
}

// NewFactory builds a factory. refs may be nil: reference fields are then
// omitted from descriptor sets entirely — a reference picker with no way to
// load candidates would render as an unusable required field, which is worse
// than a temporarily hidden one.
func NewFactory(registry *schema.Registry, refs ReferenceLoader) *Factory {
	return &Factory{registry: registry, refs: refs}
}

// Descriptors produces one descriptor per eligible field of the entity.
// include limits the set when non-empty; exclude always wins over include.
func (f *Factory) Descriptors(ctx context.Context, entityName string, mode Mode, include, exclude []string) ([]FieldDescriptor, error) {
	entity, err := f.registry.Get(ctx, entityName)
	if err != nil {
		return nil, err
	}

	included := toSet(include)
	excluded := toSet(exclude)

	var descriptors []FieldDescriptor
	for _, name := range sortedFieldNames(entity) {
		field := entity.Fields[name]

		if excluded[name] {
			continue
		}
		if len(included) > 0 && !included[name] {
			continue
		}
		if entity.IsSystemField(name) {
			continue
		}

		readOnly := field.ReadOnly
		switch mode {
		case ModeCreate, ModeEdit:
			if field.ReadOnly {
				continue
			}
			// Immutable fields are settable once: mutable at create, frozen
			// on every edit thereafter.
			if mode == ModeEdit && entity.IsImmutable(name) {
				readOnly = true
			}
		case ModeDisplay:
			readOnly = true
		}

		if field.IsReference() && f.refs == nil {
			continue
		}

		descriptors = append(descriptors, f.buildDescriptor(field, readOnly))
	}
	return descriptors, nil
}

func (f *Factory) buildDescriptor(field *schema.FieldDefinition, readOnly bool) FieldDescriptor {
	d := FieldDescriptor{
		Name:     field.Name,
		Label:    schema.Label(field.Name),
		Type:     field.Type,
		ReadOnly: readOnly,
		Required: field.Required,
		Default:  field.Default,
		Validate: BuildValidator(field),
	}

	if field.Type == schema.TypeEnum {
		d.Options = make([]Option, len(field.Values))
		for i, v := range field.Values {
			d.Options[i] = Option{Value: v, Label: schema.Label(v)}
		}
	}

	if field.IsReference() && f.refs != nil {
		registry := f.registry
		d.LoadOptions = func(ctx context.Context) ([]Option, error) {
			// Lazy referential check: the related entity must exist by the
			// time the picker is populated, not necessarily at schema load.
			if _, err := registry.Get(ctx, field.RelatedEntity); err != nil {
				return nil, err
			}
			return f.refs.ReferenceOptions(ctx, field)
		}
	}

	return d
}

// Validate runs every descriptor's validator against a submitted record and
// collects all failures.
func Validate(descriptors []FieldDescriptor, record map[string]any) []ValidationFailure {
	var failures []ValidationFailure
	for _, d := range descriptors {
		if d.Validate == nil || d.ReadOnly {
			continue
		}
		if detail := d.Validate(record[d.Name]); detail != nil {
			failures = append(failures, ValidationFailure{
				Field:   detail.Field,
				Rule:    detail.Rule,
				Message: detail.Message,
			})
		}
	}
	return failures
}

type ValidationFailure struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func toSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

func sortedFieldNames(entity *schema.EntityMetadata) []string {
	names := make([]string, 0, len(entity.Fields))
	for name := range entity.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
