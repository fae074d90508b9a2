package nav

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"maintdesk/internal/auth"
	"maintdesk/internal/docsource"
	"maintdesk/internal/permission"
	"maintdesk/internal/schema"
)

// Entry is one rendered menu entry.
type Entry struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Route  string `json:"route"`
	Icon   string `json:"icon,omitempty"`
	Entity string `json:"entity,omitempty"`
}

// Section is a rendered sidebar group.
type Section struct {
	Group   string  `json:"group"`
	Label   string  `json:"label"`
	Entries []Entry `json:"entries"`
}

// Menu covers both menu surfaces.
type Menu struct {
	Sidebar []Section `json:"sidebar"`
	Account []Entry   `json:"account"`
}

// Composer merges static menu items, entity placements, and permission
// decisions into per-user menus.
type Composer struct {
	cache    *docsource.Cached[Document]
	registry *schema.Registry
	perms    *permission.Service

	mu       sync.Mutex
	compiled map[string]*vm.Program
}

func NewComposer(source docsource.Source, ttl time.Duration, registry *schema.Registry, perms *permission.Service) *Composer {
	return &Composer{
		cache:    docsource.NewCached(source, ttl, Parse, nil),
		registry: registry,
		perms:    perms,
		compiled: make(map[string]*vm.Program),
	}
}

// Initialize performs the first document load.
func (c *Composer) Initialize(ctx context.Context) error {
	_, err := c.cache.Get(ctx)
	return err
}

// Reload discards the cached document.
func (c *Composer) Reload() {
	c.cache.Invalidate()
}

// Compose builds the menus for a user. Filtering is fail open: if the
// permission pass itself panics — a bug, not a denial — the unfiltered menu
// is returned, because silently losing navigation is worse than showing an
// entry the backend will 403. Individual permission denials still hide
// entries as usual.
func (c *Composer) Compose(ctx context.Context, user *auth.UserContext) (*Menu, error) {
	doc, err := c.cache.Get(ctx)
	if err != nil {
		return nil, err
	}

	unfiltered := c.assemble(ctx, doc, user, false)

	menu, panicked := c.filterSafely(ctx, doc, user)
	if panicked {
		return unfiltered, nil
	}
	return menu, nil
}

func (c *Composer) filterSafely(ctx context.Context, doc *Document, user *auth.UserContext) (menu *Menu, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: navigation filtering panicked, serving unfiltered menu: %v", r)
			panicked = true
		}
	}()
	menu = c.assemble(ctx, doc, user, true)
	return menu, false
}

// assemble walks groups in declared order, collecting static items and
// entity placements. With filter set, each candidate passes through the
// permission model's nav-visibility decision for its resource.
func (c *Composer) assemble(ctx context.Context, doc *Document, user *auth.UserContext, filter bool) *Menu {
	type candidate struct {
		entry Entry
		order int
	}

	sections := make(map[string][]candidate)
	var account []candidate

	for _, item := range doc.Items {
		if filter && !c.itemVisible(ctx, item, user) {
			continue
		}
		entry := Entry{ID: item.ID, Label: item.Label, Route: item.Route, Icon: item.Icon}
		if item.Surface == SurfaceAccount {
			account = append(account, candidate{entry: entry, order: item.Order})
			continue
		}
		sections[item.Group] = append(sections[item.Group], candidate{entry: entry, order: item.Order})
	}

	for entityName, placement := range doc.Entities {
		meta, ok := c.registry.TryGet(ctx, entityName)
		if !ok {
			log.Printf("WARN: navigation places unknown entity %s, skipping", entityName)
			continue
		}
		if filter && !c.entityVisible(ctx, meta, user) {
			continue
		}
		label := meta.DisplayNamePlural
		if label == "" {
			label = meta.Title()
		}
		entry := Entry{
			ID:     "entity:" + entityName,
			Label:  label,
			Route:  "/entities/" + entityName,
			Icon:   placement.Icon,
			Entity: entityName,
		}
		sections[placement.Group] = append(sections[placement.Group], candidate{entry: entry, order: placement.Order})
	}

	menu := &Menu{}
	for _, group := range doc.Groups {
		candidates := sections[group.Name]
		if len(candidates) == 0 {
			continue
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].order < candidates[j].order
		})
		section := Section{Group: group.Name, Label: doc.GroupLabel(group.Name)}
		for _, cand := range candidates {
			section.Entries = append(section.Entries, cand.entry)
		}
		menu.Sidebar = append(menu.Sidebar, section)
	}

	sort.SliceStable(account, func(i, j int) bool {
		return account[i].order < account[j].order
	})
	for _, cand := range account {
		menu.Account = append(menu.Account, cand.entry)
	}
	return menu
}

func (c *Composer) itemVisible(ctx context.Context, item Item, user *auth.UserContext) bool {
	if user == nil {
		return false
	}
	if item.Resource != "" {
		model, err := c.perms.Model(ctx)
		if err != nil || !model.NavVisible(user.Role, item.Resource) {
			return false
		}
	}
	if item.VisibleWhen != "" {
		return c.evalVisibleWhen(item, user)
	}
	return true
}

func (c *Composer) entityVisible(ctx context.Context, meta *schema.EntityMetadata, user *auth.UserContext) bool {
	if user == nil {
		return false
	}
	model, err := c.perms.Model(ctx)
	if err != nil {
		return false
	}
	return model.NavVisible(user.Role, meta.Resource)
}

// evalVisibleWhen evaluates an item's visibility expression against the user
// environment. Programs compile lazily and are cached by item id. An
// expression error hides the item: visibility conditions are an extra
// restriction, so they fall closed like every other permission decision.
func (c *Composer) evalVisibleWhen(item Item, user *auth.UserContext) bool {
	c.mu.Lock()
	prog, ok := c.compiled[item.ID]
	if !ok {
		var err error
		prog, err = expr.Compile(item.VisibleWhen, expr.AsBool())
		if err != nil {
			c.mu.Unlock()
			log.Printf("WARN: navigation item %s has an invalid visibility expression: %v", item.ID, err)
			return false
		}
		c.compiled[item.ID] = prog
	}
	c.mu.Unlock()

	out, err := expr.Run(prog, map[string]any{
		"user": map[string]any{"id": user.ID, "role": user.Role},
	})
	if err != nil {
		log.Printf("WARN: navigation item %s visibility evaluation: %v", item.ID, err)
		return false
	}
	visible, ok := out.(bool)
	return ok && visible
}
