package forms

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maintdesk/internal/docsource"
	"maintdesk/internal/schema"
)

const formsSchema = `{
	"customers": {
		"resource": "customers",
		"displayField": "name",
		"requiredFields": ["name", "email"],
		"immutableFields": ["code"],
		"fields": {
			"id": {"type": "id", "readonly": true},
			"code": {"type": "string", "maxLength": 8},
			"name": {"type": "string", "maxLength": 80},
			"email": {"type": "email"},
			"status": {"type": "enum", "values": ["active", "inactive"], "default": "active"},
			"account_manager_id": {"type": "reference", "relatedEntity": "users", "displayField": "name"},
			"credit_limit": {"type": "decimal", "min": 0, "max": 100000},
			"created_at": {"type": "timestamp", "readonly": true},
			"internal_score": {"type": "integer", "readonly": true}
		}
	},
	"users": {
		"resource": "users",
		"displayField": "name",
		"fields": {
			"id": {"type": "id", "readonly": true},
			"name": {"type": "string", "required": true}
		}
	}
}`

type passAll struct{}

func (passAll) KnownResource(string) bool { return true }

type stubRefLoader struct {
	options []Option
	err     error
	calls   int
}

func (s *stubRefLoader) ReferenceOptions(_ context.Context, _ *schema.FieldDefinition) ([]Option, error) {
	s.calls++
	return s.options, s.err
}

func newFormsRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	src := &docsource.StaticSource{DocName: "entity-schema.json", Data: []byte(formsSchema)}
	r := schema.NewRegistry(src, time.Hour, passAll{})
	require.NoError(t, r.Initialize(context.Background()))
	return r
}

func descriptorNames(descriptors []FieldDescriptor) []string {
	names := make([]string, len(descriptors))
	for i, d := range descriptors {
		names[i] = d.Name
	}
	return names
}

func findDescriptor(t *testing.T, descriptors []FieldDescriptor, name string) FieldDescriptor {
	t.Helper()
	for _, d := range descriptors {
		if d.Name == name {
			return d
		}
	}
	t.Fatalf("descriptor %q not produced", name)
	return FieldDescriptor{}
}

func TestDescriptors_CreateMode(t *testing.T) {
	registry := newFormsRegistry(t)
	factory := NewFactory(registry, &stubRefLoader{})

	descriptors, err := factory.Descriptors(context.Background(), "customers", ModeCreate, nil, nil)
	require.NoError(t, err)

	names := descriptorNames(descriptors)
	// System fields and readonly fields are excluded from create forms.
	assert.NotContains(t, names, "id")
	assert.NotContains(t, names, "created_at")
	assert.NotContains(t, names, "internal_score")
	// Immutable fields are settable at create.
	code := findDescriptor(t, descriptors, "code")
	assert.False(t, code.ReadOnly)

	name := findDescriptor(t, descriptors, "name")
	assert.True(t, name.Required)
	assert.Equal(t, "Name", name.Label)

	status := findDescriptor(t, descriptors, "status")
	assert.Equal(t, "active", status.Default)
	require.Len(t, status.Options, 2)
	assert.Equal(t, Option{Value: "active", Label: "Active"}, status.Options[0])
}

func TestDescriptors_EditModeFreezesImmutables(t *testing.T) {
	registry := newFormsRegistry(t)
	factory := NewFactory(registry, &stubRefLoader{})

	descriptors, err := factory.Descriptors(context.Background(), "customers", ModeEdit, nil, nil)
	require.NoError(t, err)

	code := findDescriptor(t, descriptors, "code")
	assert.True(t, code.ReadOnly, "immutable fields are frozen on edit")
	name := findDescriptor(t, descriptors, "name")
	assert.False(t, name.ReadOnly)
}

func TestDescriptors_DisplayModeIsAllReadOnly(t *testing.T) {
	registry := newFormsRegistry(t)
	factory := NewFactory(registry, &stubRefLoader{})

	descriptors, err := factory.Descriptors(context.Background(), "customers", ModeDisplay, nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, descriptors)

	names := descriptorNames(descriptors)
	// Readonly fields do appear in display mode.
	assert.Contains(t, names, "internal_score")
	for _, d := range descriptors {
		assert.True(t, d.ReadOnly, "display descriptor %s must be readonly", d.Name)
	}
}

func TestDescriptors_IncludeExclude(t *testing.T) {
	registry := newFormsRegistry(t)
	factory := NewFactory(registry, &stubRefLoader{})
	ctx := context.Background()

	descriptors, err := factory.Descriptors(ctx, "customers", ModeCreate, []string{"name", "email"}, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"name", "email"}, descriptorNames(descriptors))

	// Exclusion wins even when the field is also included.
	descriptors, err = factory.Descriptors(ctx, "customers", ModeCreate, []string{"name", "email"}, []string{"email"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"name"}, descriptorNames(descriptors))
}

func TestDescriptors_ReferenceFieldOmittedWithoutLoader(t *testing.T) {
	registry := newFormsRegistry(t)
	factory := NewFactory(registry, nil)

	descriptors, err := factory.Descriptors(context.Background(), "customers", ModeCreate, nil, nil)
	require.NoError(t, err)
	assert.NotContains(t, descriptorNames(descriptors), "account_manager_id")
}

func TestDescriptors_ReferenceLoadOptions(t *testing.T) {
	registry := newFormsRegistry(t)
	loader := &stubRefLoader{options: []Option{{Value: "u-1", Label: "Ana Ruiz"}}}
	factory := NewFactory(registry, loader)
	ctx := context.Background()

	descriptors, err := factory.Descriptors(ctx, "customers", ModeCreate, nil, nil)
	require.NoError(t, err)

	ref := findDescriptor(t, descriptors, "account_manager_id")
	require.NotNil(t, ref.LoadOptions, "reference descriptors expose a lazy option loader")
	assert.Empty(t, ref.Options)
	assert.Zero(t, loader.calls, "options must not load eagerly")

	options, err := ref.LoadOptions(ctx)
	require.NoError(t, err)
	require.Len(t, options, 1)
	assert.Equal(t, "Ana Ruiz", options[0].Label)
	assert.Equal(t, 1, loader.calls)
}

func TestDescriptors_LoadOptionsChecksRelatedEntity(t *testing.T) {
	badSchema := `{
		"customers": {
			"resource": "customers",
			"fields": {
				"id": {"type": "id", "readonly": true},
				"owner_id": {"type": "reference", "relatedEntity": "ghosts", "displayField": "name"}
			}
		}
	}`
	src := &docsource.StaticSource{DocName: "entity-schema.json", Data: []byte(badSchema)}
	registry := schema.NewRegistry(src, time.Hour, passAll{})
	require.NoError(t, registry.Initialize(context.Background()))

	loader := &stubRefLoader{options: []Option{{Value: "g-1", Label: "Ghost"}}}
	factory := NewFactory(registry, loader)
	ctx := context.Background()

	descriptors, err := factory.Descriptors(ctx, "customers", ModeCreate, nil, nil)
	require.NoError(t, err)

	ref := findDescriptor(t, descriptors, "owner_id")
	_, err = ref.LoadOptions(ctx)
	require.Error(t, err, "a dangling related entity surfaces when the picker loads")
	assert.Zero(t, loader.calls)
}

func TestValidate_CollectsAllFailures(t *testing.T) {
	registry := newFormsRegistry(t)
	factory := NewFactory(registry, &stubRefLoader{})

	descriptors, err := factory.Descriptors(context.Background(), "customers", ModeCreate, nil, nil)
	require.NoError(t, err)

	failures := Validate(descriptors, map[string]any{
		"name":         "",
		"email":        "not-an-email",
		"credit_limit": 250000.0,
		"status":       "archived",
	})

	byField := make(map[string]ValidationFailure, len(failures))
	for _, f := range failures {
		byField[f.Field] = f
	}
	require.Len(t, failures, 4)
	assert.Equal(t, "required", byField["name"].Rule)
	assert.Equal(t, "email", byField["email"].Rule)
	assert.Equal(t, "max", byField["credit_limit"].Rule)
	assert.Equal(t, "enum", byField["status"].Rule)
}

func TestValidate_PassesValidRecord(t *testing.T) {
	registry := newFormsRegistry(t)
	factory := NewFactory(registry, &stubRefLoader{})

	descriptors, err := factory.Descriptors(context.Background(), "customers", ModeCreate, nil, nil)
	require.NoError(t, err)

	failures := Validate(descriptors, map[string]any{
		"name":         "Acme Industrial",
		"email":        "ops@acme.example",
		"status":       "active",
		"credit_limit": 5000.0,
	})
	assert.Empty(t, failures)
}

func TestBuildValidator_ChainOrder(t *testing.T) {
	maxLen := 5
	field := &schema.FieldDefinition{
		Name:      "email",
		Type:      schema.TypeEmail,
		Required:  true,
		MaxLength: &maxLen,
	}
	validate := BuildValidator(field)

	// Empty value: the required check reports first.
	detail := validate("")
	require.NotNil(t, detail)
	assert.Equal(t, "required", detail.Rule)

	// Too long AND not an email: length is checked before format.
	detail = validate("definitely-not-an-email")
	require.NotNil(t, detail)
	assert.Equal(t, "max_length", detail.Rule)
}

func TestBuildValidator_OptionalEmptyValuesPass(t *testing.T) {
	minLen := 3
	field := &schema.FieldDefinition{
		Name:      "nickname",
		Type:      schema.TypeString,
		MinLength: &minLen,
	}
	validate := BuildValidator(field)
	assert.Nil(t, validate(nil), "absent optional value passes")
	assert.Nil(t, validate(""), "empty optional value passes")
	require.NotNil(t, validate("ab"))
}

var errLoaderDown = errors.New("backend unavailable")

func TestDescriptors_LoadOptionsPropagatesLoaderError(t *testing.T) {
	registry := newFormsRegistry(t)
	factory := NewFactory(registry, &stubRefLoader{err: errLoaderDown})

	descriptors, err := factory.Descriptors(context.Background(), "customers", ModeCreate, nil, nil)
	require.NoError(t, err)

	ref := findDescriptor(t, descriptors, "account_manager_id")
	_, err = ref.LoadOptions(context.Background())
	assert.ErrorIs(t, err, errLoaderDown)
}
