package permission

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/expr-lang/expr/vm"
)

// ExpectedVersion is the permission document version this build was written
// against. Older documents load with a warning; the backend still enforces
// the authoritative rules on every request.
const ExpectedVersion = 2

// Operations is the closed set of CRUD operations every resource block must
// declare. A resource missing any of these fails the load.
var Operations = []string{"create", "read", "update", "delete"}

type RoleConfig struct {
	Priority    int    `json:"priority"`
	Description string `json:"description,omitempty"`
}

// OperationRule is the per-operation access requirement. MinimumRole is
// resolved against the role table; an explicit MinimumPriority wins when both
// are set. Disabled means no caller may invoke the operation, regardless of
// priority.
type OperationRule struct {
	MinimumRole     string `json:"minimumRole,omitempty"`
	MinimumPriority *int   `json:"minimumPriority,omitempty"`
	Description     string `json:"description,omitempty"`
	Disabled        bool   `json:"disabled,omitempty"`
}

// NavVisibility is an optional menu-visibility threshold distinct from the
// read permission.
type NavVisibility struct {
	MinimumRole     string `json:"minimumRole,omitempty"`
	MinimumPriority *int   `json:"minimumPriority,omitempty"`
	Description     string `json:"description,omitempty"`
}

type ResourceConfig struct {
	Description      string                   `json:"description,omitempty"`
	Permissions      map[string]OperationRule `json:"permissions"`
	RowLevelSecurity map[string]string        `json:"rowLevelSecurity,omitempty"`
	NavVisibility    *NavVisibility           `json:"navVisibility,omitempty"`
}

// Model is one parsed permission document. Immutable after Parse; a reload
// produces a fresh Model, which also resets the derived matrix and compiled
// RLS filter caches.
type Model struct {
	Version   int                       `json:"version"`
	Roles     map[string]RoleConfig     `json:"roles"`
	Resources map[string]ResourceConfig `json:"resources"`

	// rlsPolicies maps a policy name to an advisory filter expression over
	// {record, user}. Optional; a policy without an expression is still a
	// valid policy name for the data layer.
	RLSPolicies map[string]string `json:"rlsPolicies,omitempty"`

	mu       sync.Mutex
	matrices map[string]*Matrix
	filters  map[string]*vm.Program
}

// Parse decodes and validates a permission document. Validation failures are
// fatal: all access decisions are priority comparisons, so a malformed
// document must never be half-loaded.
func Parse(data []byte) (*Model, error) {
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse permission document: %w", err)
	}

	if len(m.Roles) == 0 {
		return nil, fmt.Errorf("permission document declares no roles")
	}
	if len(m.Resources) == 0 {
		return nil, fmt.Errorf("permission document declares no resources")
	}

	// Priorities are injective: every decision is a priority comparison, so a
	// duplicate would make two roles indistinguishable.
	seen := make(map[int]string, len(m.Roles))
	for name, role := range m.Roles {
		if other, dup := seen[role.Priority]; dup {
			return nil, fmt.Errorf("duplicate role priority %d shared by %q and %q", role.Priority, other, name)
		}
		seen[role.Priority] = name
	}

	for resName, res := range m.Resources {
		for _, op := range Operations {
			if _, ok := res.Permissions[op]; !ok {
				return nil, fmt.Errorf("resource %q is missing the %q permission block", resName, op)
			}
		}
	}

	if m.Version < ExpectedVersion {
		log.Printf("WARN: permission document version %d is older than expected %d; continuing with possibly-stale rules",
			m.Version, ExpectedVersion)
	}

	m.matrices = make(map[string]*Matrix)
	m.filters = make(map[string]*vm.Program)
	return &m, nil
}

// RolePriority returns the priority for a role name. An empty or unknown role
// reports false: callers must treat that as "no access", never as priority 0.
func (m *Model) RolePriority(role string) (int, bool) {
	if role == "" {
		return 0, false
	}
	rc, ok := m.Roles[role]
	if !ok {
		return 0, false
	}
	return rc.Priority, true
}

// MinimumPriority returns the priority required for an operation on a
// resource. Unknown resource, unknown operation, a disabled operation, or an
// unresolvable minimumRole all report false.
func (m *Model) MinimumPriority(resource, operation string) (int, bool) {
	res, ok := m.Resources[resource]
	if !ok {
		return 0, false
	}
	rule, ok := res.Permissions[operation]
	if !ok || rule.Disabled {
		return 0, false
	}
	return m.resolveThreshold(rule.MinimumRole, rule.MinimumPriority)
}

func (m *Model) resolveThreshold(minimumRole string, minimumPriority *int) (int, bool) {
	if minimumPriority != nil {
		return *minimumPriority, true
	}
	if minimumRole != "" {
		return m.RolePriority(minimumRole)
	}
	return 0, false
}

// HasPermission is the composed access decision. Any ambiguity — unknown
// role, unknown resource or operation, disabled operation — resolves to
// deny. This never returns an error: a denial is a normal outcome.
func (m *Model) HasPermission(role, resource, operation string) bool {
	rolePrio, ok := m.RolePriority(role)
	if !ok {
		return false
	}
	minPrio, ok := m.MinimumPriority(resource, operation)
	if !ok {
		return false
	}
	return rolePrio >= minPrio
}

// NavVisible reports whether a resource's menu entry should be shown to a
// role. Falls back to the read permission when no explicit navVisibility
// threshold is declared.
func (m *Model) NavVisible(role, resource string) bool {
	res, ok := m.Resources[resource]
	if !ok {
		return false
	}
	if res.NavVisibility != nil {
		rolePrio, ok := m.RolePriority(role)
		if !ok {
			return false
		}
		minPrio, ok := m.resolveThreshold(res.NavVisibility.MinimumRole, res.NavVisibility.MinimumPriority)
		if !ok {
			return false
		}
		return rolePrio >= minPrio
	}
	return m.HasPermission(role, resource, "read")
}

// RLSPolicy returns the advisory row-level-security policy name for a
// (role, resource) pair. The policy is applied by the data layer; this
// component only reports it.
func (m *Model) RLSPolicy(role, resource string) (string, bool) {
	res, ok := m.Resources[resource]
	if !ok || res.RowLevelSecurity == nil {
		return "", false
	}
	policy, ok := res.RowLevelSecurity[role]
	return policy, ok && policy != ""
}

// KnownResource reports whether the document declares the resource. The
// schema registry uses this for referential integrity of resource tags.
func (m *Model) KnownResource(name string) bool {
	_, ok := m.Resources[name]
	return ok
}

// ResourceNames returns the declared resource names, sorted.
func (m *Model) ResourceNames() []string {
	names := make([]string, 0, len(m.Resources))
	for name := range m.Resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RoleNames returns the declared role names sorted by descending priority.
func (m *Model) RoleNames() []string {
	names := make([]string, 0, len(m.Roles))
	for name := range m.Roles {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return m.Roles[names[i]].Priority > m.Roles[names[j]].Priority
	})
	return names
}
