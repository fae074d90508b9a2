package schema

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"maintdesk/internal/apperr"
	"maintdesk/internal/docsource"
)

const sampleSchema = `{
	"version": 3,
	"$comment": "maintenance entities",
	"_generated": "2026-08-01",
	"work_orders": {
		"tableName": "work_orders",
		"resource": "work_orders",
		"identityField": "id",
		"displayField": "title",
		"requiredFields": ["title", "customer_id"],
		"immutableFields": ["code"],
		"searchableFields": ["title", "code"],
		"filterableFields": ["status", "customer_id"],
		"sortableFields": ["title", "created_at", "priority"],
		"defaultSort": {"field": "created_at", "order": "desc"},
		"fields": {
			"id": {"type": "id", "readonly": true},
			"code": {"type": "string", "maxLength": 12},
			"title": {"type": "string", "maxLength": 120},
			"status": {"type": "enum", "values": ["open", "in_progress", "done"]},
			"priority": {"type": "integer", "min": 1, "max": 5},
			"customer_id": {"type": "reference", "relatedEntity": "customers", "displayField": "name"},
			"created_at": {"type": "timestamp", "readonly": true}
		}
	},
	"customers": {
		"resource": "customers",
		"displayField": "name",
		"fields": {
			"id": {"type": "id", "readonly": true},
			"name": {"type": "string", "required": true},
			"email": {"type": "email"}
		}
	}
}`

// allowAll satisfies ResourceChecker for tests that are not about resource
// tags.
type allowAll struct{}

func (allowAll) KnownResource(string) bool { return true }

type allowListed map[string]bool

func (a allowListed) KnownResource(name string) bool { return a[name] }

func newTestRegistry(t *testing.T, doc string, checker ResourceChecker) *Registry {
	t.Helper()
	src := &docsource.StaticSource{DocName: "entity-schema.json", Data: []byte(doc)}
	r := NewRegistry(src, time.Hour, checker)
	if err := r.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}
	return r
}

func TestRegistry_GetBeforeInitialize(t *testing.T) {
	src := &docsource.StaticSource{DocName: "entity-schema.json", Data: []byte(sampleSchema)}
	r := NewRegistry(src, time.Hour, allowAll{})

	_, err := r.Get(context.Background(), "work_orders")
	var appErr *apperr.AppError
	if !errors.As(err, &appErr) || appErr.Code != "NOT_INITIALIZED" {
		t.Fatalf("expected NOT_INITIALIZED, got %v", err)
	}
}

func TestRegistry_GetUnknownEntity(t *testing.T) {
	r := newTestRegistry(t, sampleSchema, allowAll{})

	_, err := r.Get(context.Background(), "vendors")
	var appErr *apperr.AppError
	if !errors.As(err, &appErr) || appErr.Code != "UNKNOWN_ENTITY" {
		t.Fatalf("expected UNKNOWN_ENTITY, got %v", err)
	}

	if _, ok := r.TryGet(context.Background(), "vendors"); ok {
		t.Fatal("TryGet must not report an unknown entity")
	}
}

func TestRegistry_ParsedMetadata(t *testing.T) {
	r := newTestRegistry(t, sampleSchema, allowAll{})
	ctx := context.Background()

	wo, err := r.Get(ctx, "work_orders")
	if err != nil {
		t.Fatalf("get work_orders: %v", err)
	}
	if wo.Name != "work_orders" || wo.TableName != "work_orders" || wo.PrimaryKey != "id" {
		t.Fatalf("unexpected identity fields: %+v", wo)
	}
	if wo.Resource != "work_orders" {
		t.Fatalf("unexpected resource tag %q", wo.Resource)
	}

	// requiredFields overlays the per-field flag.
	if !wo.GetField("title").Required {
		t.Fatal("title should be required via requiredFields")
	}
	if !wo.GetField("customer_id").Required {
		t.Fatal("customer_id should be required via requiredFields")
	}
	if wo.GetField("status").Required {
		t.Fatal("status is not declared required")
	}

	if !wo.IsImmutable("code") || wo.IsImmutable("title") {
		t.Fatal("immutableFields not applied")
	}
	if !wo.IsSortable("priority") || wo.IsSortable("status") {
		t.Fatal("sortableFields not applied")
	}
	if !wo.IsSystemField("id") || !wo.IsSystemField("created_at") || wo.IsSystemField("title") {
		t.Fatal("system field detection wrong")
	}
	if wo.DefaultSort == nil || wo.DefaultSort.Field != "created_at" || wo.DefaultSort.Order != "desc" {
		t.Fatalf("defaultSort not parsed: %+v", wo.DefaultSort)
	}

	// customers omits tableName and primaryKey: both default.
	cust, err := r.Get(ctx, "customers")
	if err != nil {
		t.Fatalf("get customers: %v", err)
	}
	if cust.TableName != "customers" || cust.PrimaryKey != "id" {
		t.Fatalf("defaults not applied: %+v", cust)
	}
}

func TestParseDocument_SkipsMetaKeys(t *testing.T) {
	doc, err := ParseDocument([]byte(sampleSchema))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(doc.Entities) != 2 {
		t.Fatalf("expected 2 entities, got %d", len(doc.Entities))
	}
	for _, meta := range []string{"version", "$comment", "_generated"} {
		if _, ok := doc.Entities[meta]; ok {
			t.Fatalf("meta key %q parsed as an entity", meta)
		}
	}
}

func TestParseDocument_RejectsMalformedEntity(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"unknown field type", `{"a": {"resource": "a", "fields": {"x": {"type": "blob"}}}}`},
		{"missing resource tag", `{"a": {"fields": {"x": {"type": "string"}}}}`},
		{"no fields", `{"a": {"resource": "a"}}`},
		{"reference without related entity", `{"a": {"resource": "a", "fields": {"x": {"type": "reference"}}}}`},
		{"no entities", `{"version": 3}`},
	}
	for _, tc := range cases {
		if _, err := ParseDocument([]byte(tc.doc)); err == nil {
			t.Fatalf("%s: expected parse to fail", tc.name)
		}
	}
}

func TestRegistry_RejectsUnknownResourceTag(t *testing.T) {
	src := &docsource.StaticSource{DocName: "entity-schema.json", Data: []byte(sampleSchema)}
	r := NewRegistry(src, time.Hour, allowListed{"customers": true})

	// work_orders' tag does not resolve, so the load must fail as a whole
	// rather than produce a half-usable registry.
	if err := r.Initialize(context.Background()); err == nil {
		t.Fatal("expected initialization to fail on an unresolvable resource tag")
	}
}

func TestRegistry_FallbackOnLoadFailure(t *testing.T) {
	src := &docsource.StaticSource{DocName: "entity-schema.json", Err: errors.New("store unavailable")}
	r := NewRegistry(src, time.Hour, allowAll{})
	ctx := context.Background()

	if err := r.Initialize(ctx); err != nil {
		t.Fatalf("expected built-in defaults to engage, got %v", err)
	}
	entities, err := r.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if _, ok := entities["work_orders"]; !ok {
		t.Fatalf("expected built-in work_orders entity, got %v", len(entities))
	}
}

func TestRegistry_ReloadPicksUpNewDocument(t *testing.T) {
	src := &docsource.StaticSource{DocName: "entity-schema.json", Data: []byte(sampleSchema)}
	r := NewRegistry(src, time.Hour, allowAll{})
	ctx := context.Background()
	if err := r.Initialize(ctx); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	src.Data = []byte(`{"assets": {"resource": "assets", "fields": {"id": {"type": "id"}, "name": {"type": "string"}}}}`)

	// Still within the TTL: the old snapshot answers.
	if _, ok := r.TryGet(ctx, "work_orders"); !ok {
		t.Fatal("expected the old snapshot before reload")
	}

	r.Reload()
	if _, ok := r.TryGet(ctx, "assets"); !ok {
		t.Fatal("expected the new document after reload")
	}
	if _, ok := r.TryGet(ctx, "work_orders"); ok {
		t.Fatal("expected the old entity set to be gone after reload")
	}
}

func TestRegistry_ResolveReference(t *testing.T) {
	r := newTestRegistry(t, sampleSchema, allowAll{})
	ctx := context.Background()

	wo, _ := r.Get(ctx, "work_orders")
	related, err := r.ResolveReference(ctx, wo.GetField("customer_id"))
	if err != nil {
		t.Fatalf("resolve reference: %v", err)
	}
	if related.Name != "customers" {
		t.Fatalf("expected customers, got %s", related.Name)
	}

	if _, err := r.ResolveReference(ctx, wo.GetField("title")); err == nil {
		t.Fatal("expected non-reference field to be rejected")
	}
}

func TestLabel(t *testing.T) {
	cases := map[string]string{
		"customer_id": "Customer ID",
		"title":       "Title",
		"created_at":  "Created At",
		"id":          "ID",
	}
	for in, want := range cases {
		if got := Label(in); got != want {
			t.Fatalf("Label(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFieldDefinition_RoundTrip(t *testing.T) {
	const fragment = `{
		"type": "enum",
		"required": true,
		"maxLength": 20,
		"minLength": 2,
		"min": 1,
		"max": 99,
		"default": "open",
		"values": ["open", "done"],
		"pattern": "^[a-z_]+$"
	}`
	var f FieldDefinition
	if err := json.Unmarshal([]byte(fragment), &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	out, err := json.Marshal(&f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var again FieldDefinition
	if err := json.Unmarshal(out, &again); err != nil {
		t.Fatalf("re-unmarshal: %v", err)
	}

	if again.Type != TypeEnum || !again.Required {
		t.Fatalf("type/required lost: %+v", again)
	}
	if again.MaxLength == nil || *again.MaxLength != 20 || again.MinLength == nil || *again.MinLength != 2 {
		t.Fatalf("length constraints lost: %+v", again)
	}
	if again.Min == nil || *again.Min != 1 || again.Max == nil || *again.Max != 99 {
		t.Fatalf("range constraints lost: %+v", again)
	}
	if len(again.Values) != 2 || again.Pattern != "^[a-z_]+$" || again.Default != "open" {
		t.Fatalf("values/pattern/default lost: %+v", again)
	}
}

func TestDisplayFieldExpr_Precedence(t *testing.T) {
	f := &FieldDefinition{
		Type:            TypeReference,
		RelatedEntity:   "customers",
		DisplayField:    "name",
		DisplayFields:   []string{"first_name", "last_name"},
		DisplayTemplate: "{name} ({email})",
	}
	if got := f.DisplayFieldExpr(); len(got) != 1 || got[0] != "{name} ({email})" {
		t.Fatalf("template should win, got %v", got)
	}

	f.DisplayTemplate = ""
	if got := f.DisplayFieldExpr(); len(got) != 2 || got[0] != "first_name" {
		t.Fatalf("field list should win over single field, got %v", got)
	}

	f.DisplayFields = nil
	if got := f.DisplayFieldExpr(); len(got) != 1 || got[0] != "name" {
		t.Fatalf("single display field expected, got %v", got)
	}
}
