package nav

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Surface selects which menu a static item belongs to.
const (
	SurfaceSidebar = "sidebar"
	SurfaceAccount = "account"
)

// Group is a declared menu section with a fixed position.
type Group struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Order int    `json:"order"`
}

// Item is a static menu entry. Resource, when set, gates the entry through
// the permission model's navigation visibility; VisibleWhen is an optional
// expression over the user environment.
type Item struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Route       string `json:"route"`
	Icon        string `json:"icon,omitempty"`
	Surface     string `json:"surface"`
	Group       string `json:"group,omitempty"`
	Order       int    `json:"order"`
	Resource    string `json:"resource,omitempty"`
	VisibleWhen string `json:"visibleWhen,omitempty"`
}

// Placement positions an entity's list page in the sidebar.
type Placement struct {
	Group string `json:"group"`
	Order int    `json:"order"`
	Icon  string `json:"icon,omitempty"`
}

// Document is one parsed navigation document.
type Document struct {
	PublicRoutes []string             `json:"publicRoutes,omitempty"`
	Groups       []Group              `json:"groups"`
	Items        []Item               `json:"items,omitempty"`
	Entities     map[string]Placement `json:"entities,omitempty"`
}

// Parse decodes and validates a navigation document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse navigation document: %w", err)
	}

	seen := make(map[string]bool, len(doc.Groups))
	for _, g := range doc.Groups {
		if g.Name == "" {
			return nil, fmt.Errorf("navigation group with empty name")
		}
		if seen[g.Name] {
			return nil, fmt.Errorf("duplicate navigation group %q", g.Name)
		}
		seen[g.Name] = true
	}

	for _, item := range doc.Items {
		if item.Surface != SurfaceSidebar && item.Surface != SurfaceAccount {
			return nil, fmt.Errorf("navigation item %q has unknown surface %q", item.ID, item.Surface)
		}
	}

	sort.SliceStable(doc.Groups, func(i, j int) bool {
		return doc.Groups[i].Order < doc.Groups[j].Order
	})
	return &doc, nil
}

// GroupLabel returns the declared label for a group name, falling back to
// the name itself.
func (d *Document) GroupLabel(name string) string {
	for _, g := range d.Groups {
		if g.Name == name {
			return g.Label
		}
	}
	return name
}

// IsPublicRoute reports whether the route needs no authentication.
func (d *Document) IsPublicRoute(route string) bool {
	for _, r := range d.PublicRoutes {
		if r == route {
			return true
		}
	}
	return false
}
