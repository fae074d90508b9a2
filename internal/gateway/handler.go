package gateway

import (
	"context"
	"sort"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"maintdesk/internal/apperr"
	"maintdesk/internal/auth"
	"maintdesk/internal/client"
	"maintdesk/internal/forms"
	"maintdesk/internal/nav"
	"maintdesk/internal/permission"
	"maintdesk/internal/schema"
	"maintdesk/internal/tables"
)

// Handler serves the metadata/descriptor endpoints and the CRUD proxy.
type Handler struct {
	registry *schema.Registry
	perms    *permission.Service
	forms    *forms.Factory
	tables   *tables.Factory
	composer *nav.Composer
	entities *client.Client
}

func NewHandler(registry *schema.Registry, perms *permission.Service, formFactory *forms.Factory,
	tableFactory *tables.Factory, composer *nav.Composer, entities *client.Client) *Handler {
	return &Handler{
		registry: registry,
		perms:    perms,
		forms:    formFactory,
		tables:   tableFactory,
		composer: composer,
		entities: entities,
	}
}

// --- Meta endpoints ---

// ListEntities handles GET /meta/entities.
func (h *Handler) ListEntities(c *fiber.Ctx) error {
	all, err := h.registry.All(c.Context())
	if err != nil {
		return err
	}

	user := auth.GetUser(c)
	summaries := make([]fiber.Map, 0, len(all))
	for _, name := range sortedKeys(all) {
		meta := all[name]
		// Entities the caller cannot read are not part of their world.
		if !h.perms.HasPermission(c.Context(), user.Role, meta.Resource, "read") {
			continue
		}
		summaries = append(summaries, fiber.Map{
			"name":        meta.Name,
			"displayName": meta.Title(),
			"plural":      meta.DisplayNamePlural,
			"resource":    meta.Resource,
		})
	}
	return c.JSON(fiber.Map{"success": true, "data": summaries})
}

// GetEntity handles GET /meta/entities/:entity.
func (h *Handler) GetEntity(c *fiber.Ctx) error {
	meta, err := h.resolveEntity(c)
	if err != nil {
		return err
	}
	if err := h.requirePermission(c, meta, "read"); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": meta})
}

// GetForm handles GET /meta/entities/:entity/form?mode=create|edit|display.
// Reference pickers are resolved here so the response is self-contained.
func (h *Handler) GetForm(c *fiber.Ctx) error {
	meta, err := h.resolveEntity(c)
	if err != nil {
		return err
	}

	mode := forms.Mode(c.Query("mode", string(forms.ModeCreate)))
	switch mode {
	case forms.ModeCreate, forms.ModeEdit, forms.ModeDisplay:
	default:
		return apperr.InvalidPayload("mode must be create, edit, or display")
	}

	op := "read"
	if mode == forms.ModeCreate {
		op = "create"
	} else if mode == forms.ModeEdit {
		op = "update"
	}
	if err := h.requirePermission(c, meta, op); err != nil {
		return err
	}

	ctx := h.userCtx(c)
	descriptors, err := h.forms.Descriptors(ctx, meta.Name, mode, nil, nil)
	if err != nil {
		return err
	}

	payload := make([]fiber.Map, 0, len(descriptors))
	for _, d := range descriptors {
		entry := fiber.Map{
			"name":     d.Name,
			"label":    d.Label,
			"type":     d.Type,
			"readonly": d.ReadOnly,
			"required": d.Required,
		}
		if d.Default != nil {
			entry["default"] = d.Default
		}
		options := d.Options
		if d.LoadOptions != nil {
			loaded, err := d.LoadOptions(ctx)
			if err != nil {
				return err
			}
			options = loaded
		}
		if len(options) > 0 {
			entry["options"] = options
		}
		payload = append(payload, entry)
	}
	return c.JSON(fiber.Map{"success": true, "data": payload})
}

// GetColumns handles GET /meta/entities/:entity/columns.
func (h *Handler) GetColumns(c *fiber.Ctx) error {
	meta, err := h.resolveEntity(c)
	if err != nil {
		return err
	}
	if err := h.requirePermission(c, meta, "read"); err != nil {
		return err
	}
	columns, err := h.tables.Columns(c.Context(), meta.Name, nil, nil)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": columns})
}

// GetNav handles GET /meta/nav.
func (h *Handler) GetNav(c *fiber.Ctx) error {
	menu, err := h.composer.Compose(c.Context(), auth.GetUser(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": menu})
}

// GetMatrix handles GET /meta/permissions/:resource (admin only).
func (h *Handler) GetMatrix(c *fiber.Ctx) error {
	model, err := h.perms.Model(c.Context())
	if err != nil {
		return err
	}
	resource := c.Params("resource")
	matrix, ok := model.MatrixFor(resource)
	if !ok {
		return apperr.UnknownResource(resource)
	}
	return c.JSON(fiber.Map{"success": true, "data": matrix})
}

// Reload handles POST /meta/reload (admin only): discards every cached
// document so the next queries re-read external edits immediately instead of
// waiting out the TTL.
func (h *Handler) Reload(c *fiber.Ctx) error {
	h.perms.Reload()
	h.registry.Reload()
	h.composer.Reload()
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"reloaded": true}})
}

// --- CRUD proxy ---

// List handles GET /api/:entity.
func (h *Handler) List(c *fiber.Ctx) error {
	meta, err := h.resolveEntity(c)
	if err != nil {
		return err
	}
	if err := h.requirePermission(c, meta, "read"); err != nil {
		return err
	}

	params, err := parseListParams(c, meta)
	if err != nil {
		return err
	}

	result, err := h.entities.List(h.userCtx(c), meta.Name, params)
	if err != nil {
		return err
	}

	response := fiber.Map{
		"success": true,
		"data":    result.Records,
		"count":   result.Count,
	}
	if result.Pagination != nil {
		response["pagination"] = result.Pagination
	}
	// Advisory: the policy name the data layer applies for this caller. The
	// backend enforces it either way; the UI uses it to explain filtered
	// views.
	if model, err := h.perms.Model(c.Context()); err == nil {
		if policy, ok := model.RLSPolicy(auth.GetUser(c).Role, meta.Resource); ok {
			response["rls"] = policy
		}
	}
	return c.JSON(response)
}

// Get handles GET /api/:entity/:id.
func (h *Handler) Get(c *fiber.Ctx) error {
	meta, err := h.resolveEntity(c)
	if err != nil {
		return err
	}
	if err := h.requirePermission(c, meta, "read"); err != nil {
		return err
	}
	record, err := h.entities.Get(h.userCtx(c), meta.Name, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": record})
}

// Create handles POST /api/:entity.
func (h *Handler) Create(c *fiber.Ctx) error {
	meta, err := h.resolveEntity(c)
	if err != nil {
		return err
	}
	if err := h.requirePermission(c, meta, "create"); err != nil {
		return err
	}

	var body map[string]any
	if err := c.BodyParser(&body); err != nil {
		return apperr.InvalidPayload("Invalid JSON body")
	}

	ctx := h.userCtx(c)
	descriptors, err := h.forms.Descriptors(ctx, meta.Name, forms.ModeCreate, nil, nil)
	if err != nil {
		return err
	}
	if details := validationDetails(descriptors, body); len(details) > 0 {
		return apperr.Validation(details)
	}

	record, err := h.entities.Create(ctx, meta.Name, body)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": record})
}

// Update handles PATCH /api/:entity/:id. Only the caller's change set is
// validated and forwarded.
func (h *Handler) Update(c *fiber.Ctx) error {
	meta, err := h.resolveEntity(c)
	if err != nil {
		return err
	}
	if err := h.requirePermission(c, meta, "update"); err != nil {
		return err
	}

	var changes map[string]any
	if err := c.BodyParser(&changes); err != nil {
		return apperr.InvalidPayload("Invalid JSON body")
	}
	if len(changes) == 0 {
		return apperr.InvalidPayload("Empty change set")
	}

	// Fields outside the edit descriptor set — system, read-only, immutable —
	// are rejected rather than silently dropped so the caller learns about
	// the mistake.
	ctx := h.userCtx(c)
	descriptors, err := h.forms.Descriptors(ctx, meta.Name, forms.ModeEdit, nil, nil)
	if err != nil {
		return err
	}
	editable := make(map[string]forms.FieldDescriptor, len(descriptors))
	for _, d := range descriptors {
		editable[d.Name] = d
	}

	var details []apperr.ErrorDetail
	for name, value := range changes {
		d, ok := editable[name]
		if !ok || d.ReadOnly {
			details = append(details, apperr.ErrorDetail{
				Field:   name,
				Rule:    "immutable",
				Message: name + " cannot be modified",
			})
			continue
		}
		if detail := d.Validate(value); detail != nil {
			details = append(details, *detail)
		}
	}
	if len(details) > 0 {
		return apperr.Validation(details)
	}

	record, err := h.entities.Update(ctx, meta.Name, c.Params("id"), changes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": record})
}

// Delete handles DELETE /api/:entity/:id.
func (h *Handler) Delete(c *fiber.Ctx) error {
	meta, err := h.resolveEntity(c)
	if err != nil {
		return err
	}
	if err := h.requirePermission(c, meta, "delete"); err != nil {
		return err
	}
	if err := h.entities.Delete(h.userCtx(c), meta.Name, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"id": c.Params("id")}})
}

// --- helpers ---

func (h *Handler) resolveEntity(c *fiber.Ctx) (*schema.EntityMetadata, error) {
	return h.registry.Get(c.Context(), c.Params("entity"))
}

// requirePermission is the deny gate in front of every upstream call. A
// denial is a plain 403; no request leaves the gateway for it.
func (h *Handler) requirePermission(c *fiber.Ctx, meta *schema.EntityMetadata, operation string) error {
	user := auth.GetUser(c)
	if user == nil {
		return apperr.Unauthorized("Authentication required")
	}
	if !h.perms.HasPermission(c.Context(), user.Role, meta.Resource, operation) {
		return apperr.Forbidden("Permission denied for " + operation + " on " + meta.Resource)
	}
	return nil
}

// userCtx carries the caller's bearer token so the entity client forwards it.
func (h *Handler) userCtx(c *fiber.Ctx) context.Context {
	user := auth.GetUser(c)
	if user == nil {
		return c.Context()
	}
	return client.WithToken(c.Context(), user.Token)
}

var reservedQueryKeys = map[string]bool{
	"page": true, "limit": true, "search": true, "sortBy": true, "sortOrder": true,
}

func parseListParams(c *fiber.Ctx, meta *schema.EntityMetadata) (client.ListParams, error) {
	params := client.ListParams{
		Page:   1,
		Limit:  25,
		Search: c.Query("search"),
	}
	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			params.Page = v
		}
	}
	if l := c.Query("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			params.Limit = v
			if params.Limit > 100 {
				params.Limit = 100
			}
		}
	}

	if sortBy := c.Query("sortBy"); sortBy != "" {
		if !meta.IsSortable(sortBy) {
			return params, apperr.InvalidPayload("Unknown sort field: " + sortBy)
		}
		params.SortBy = sortBy
		params.SortOrder = c.Query("sortOrder", "asc")
	} else if meta.DefaultSort != nil {
		params.SortBy = meta.DefaultSort.Field
		params.SortOrder = meta.DefaultSort.Order
	}

	for key, value := range c.Queries() {
		if reservedQueryKeys[key] {
			continue
		}
		if !meta.IsFilterable(key) {
			return params, apperr.InvalidPayload("Unknown filter field: " + key)
		}
		if params.Filters == nil {
			params.Filters = make(map[string]string)
		}
		params.Filters[key] = value
	}
	return params, nil
}

func validationDetails(descriptors []forms.FieldDescriptor, record map[string]any) []apperr.ErrorDetail {
	var details []apperr.ErrorDetail
	for _, d := range descriptors {
		if d.Validate == nil || d.ReadOnly {
			continue
		}
		if detail := d.Validate(record[d.Name]); detail != nil {
			details = append(details, *detail)
		}
	}
	return details
}

func sortedKeys(m map[string]*schema.EntityMetadata) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
