package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"maintdesk/internal/apperr"
	"maintdesk/internal/schema"
)

type tokenKey struct{}

// WithToken attaches the caller's bearer token to the context; every request
// made under that context forwards it to the backend.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// Client performs typed CRUD against the backend REST API, parameterized
// only by an entity name — no per-entity code anywhere.
type Client struct {
	baseURL  string
	http     *http.Client
	registry *schema.Registry // consulted for searchable fields; may be nil
}

func New(baseURL string, timeout time.Duration, registry *schema.Registry) *Client {
	return &Client{
		baseURL:  baseURL,
		http:     &http.Client{Timeout: timeout},
		registry: registry,
	}
}

// ListParams parameterizes a paginated list call. Filters are structured
// field → value pairs over the entity's filterable fields.
type ListParams struct {
	Page      int
	Limit     int
	Search    string
	SortBy    string
	SortOrder string // asc or desc
	Filters   map[string]string
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type ListResult struct {
	Records    []map[string]any
	Pagination *Pagination
	Count      int
}

// envelope is the response shape every backend endpoint uses.
type envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Pagination *Pagination     `json:"pagination"`
	Count      *int            `json:"count"`
}

// List fetches a page of records. Free-text search is only sent when the
// schema declares searchable fields for the entity; the backend would reject
// it otherwise.
func (c *Client) List(ctx context.Context, entity string, params ListParams) (*ListResult, error) {
	q := url.Values{}
	if params.Page > 0 {
		q.Set("page", strconv.Itoa(params.Page))
	}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Search != "" && c.searchable(ctx, entity) {
		q.Set("search", params.Search)
	}
	if params.SortBy != "" {
		q.Set("sortBy", params.SortBy)
		order := params.SortOrder
		if order == "" {
			order = "asc"
		}
		q.Set("sortOrder", order)
	}
	for field, value := range params.Filters {
		q.Set(field, value)
	}

	env, err := c.do(ctx, http.MethodGet, c.url(entity, "", q), nil, entity, "")
	if err != nil {
		return nil, err
	}

	var records []map[string]any
	if err := json.Unmarshal(env.Data, &records); err != nil {
		return nil, apperr.Upstream(entity, fmt.Sprintf("malformed list payload for %s", entity))
	}
	result := &ListResult{Records: records, Pagination: env.Pagination}
	if env.Count != nil {
		result.Count = *env.Count
	} else {
		result.Count = len(records)
	}
	return result, nil
}

// Get fetches one record by id.
func (c *Client) Get(ctx context.Context, entity, id string) (map[string]any, error) {
	env, err := c.do(ctx, http.MethodGet, c.url(entity, id, nil), nil, entity, id)
	if err != nil {
		return nil, err
	}
	return decodeRecord(env.Data, entity)
}

// Create inserts a record and returns the created row.
func (c *Client) Create(ctx context.Context, entity string, record map[string]any) (map[string]any, error) {
	env, err := c.do(ctx, http.MethodPost, c.url(entity, "", nil), record, entity, "")
	if err != nil {
		return nil, err
	}
	return decodeRecord(env.Data, entity)
}

// Update applies a partial update. Only the caller-supplied change set is
// sent; fields the caller did not touch are never re-sent, so a concurrent
// edit of an unrelated field survives.
func (c *Client) Update(ctx context.Context, entity, id string, changes map[string]any) (map[string]any, error) {
	env, err := c.do(ctx, http.MethodPatch, c.url(entity, id, nil), changes, entity, id)
	if err != nil {
		return nil, err
	}
	return decodeRecord(env.Data, entity)
}

// Delete removes a record by id.
func (c *Client) Delete(ctx context.Context, entity, id string) error {
	_, err := c.do(ctx, http.MethodDelete, c.url(entity, id, nil), nil, entity, id)
	return err
}

func (c *Client) url(entity, id string, q url.Values) string {
	u := c.baseURL + "/" + ResourcePath(entity)
	if id != "" {
		u += "/" + url.PathEscape(id)
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (c *Client) searchable(ctx context.Context, entity string) bool {
	if c.registry == nil {
		return true
	}
	meta, ok := c.registry.TryGet(ctx, entity)
	return ok && len(meta.SearchableFields) > 0
}

func (c *Client) do(ctx context.Context, method, rawURL string, body any, entity, id string) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", entity, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := tokenFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.Upstream(entity, fmt.Sprintf("request failed for %s: %v", entity, err))
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024*1024))

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, apperr.Upstream(entity, fmt.Sprintf("malformed response for %s (HTTP %d)", entity, resp.StatusCode))
	}

	// A false success flag or absent data is a failure even on HTTP 200; the
	// server-supplied message wins when present.
	if !env.Success || (env.Data == nil && resp.StatusCode != http.StatusNoContent && method != http.MethodDelete) {
		if resp.StatusCode == http.StatusNotFound {
			return nil, apperr.NotFound(entity, id)
		}
		return nil, apperr.Upstream(entity, env.Message)
	}
	return &env, nil
}

func decodeRecord(data json.RawMessage, entity string) (map[string]any, error) {
	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, apperr.Upstream(entity, fmt.Sprintf("malformed record payload for %s", entity))
	}
	return record, nil
}
