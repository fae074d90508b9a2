package permission

import (
	"fmt"
	"log"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// RLSFilter is a compiled advisory record predicate for one policy. The UI
// applies it locally to pre-filter what it renders; the backend remains the
// authority for what a role may actually see.
type RLSFilter struct {
	Policy  string
	program *vm.Program
}

// Evaluate runs the filter against a record for a user environment
// (typically {"id": ..., "role": ...}). Evaluation errors deny the record:
// an advisory filter that cannot decide must not widen visibility.
func (f *RLSFilter) Evaluate(record map[string]any, user map[string]any) bool {
	out, err := expr.Run(f.program, map[string]any{
		"record": record,
		"user":   user,
	})
	if err != nil {
		log.Printf("WARN: RLS filter %s evaluation: %v", f.Policy, err)
		return false
	}
	allowed, ok := out.(bool)
	return ok && allowed
}

// FilterFor returns the compiled filter for a policy name, or false when the
// document declares no expression for it. Programs compile lazily and are
// cached on the Model for its lifetime.
func (m *Model) FilterFor(policy string) (*RLSFilter, bool) {
	exprSrc, ok := m.RLSPolicies[policy]
	if !ok || exprSrc == "" {
		return nil, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if prog, ok := m.filters[policy]; ok {
		return &RLSFilter{Policy: policy, program: prog}, true
	}

	prog, err := expr.Compile(exprSrc, expr.AsBool())
	if err != nil {
		log.Printf("WARN: RLS policy %s has an invalid filter expression: %v", policy, err)
		return nil, false
	}
	m.filters[policy] = prog
	return &RLSFilter{Policy: policy, program: prog}, true
}

// FilterForRole is the composed lookup: policy name for (role, resource),
// then its compiled expression if one is declared.
func (m *Model) FilterForRole(role, resource string) (*RLSFilter, error) {
	policy, ok := m.RLSPolicy(role, resource)
	if !ok {
		return nil, fmt.Errorf("no RLS policy for role %s on resource %s", role, resource)
	}
	filter, ok := m.FilterFor(policy)
	if !ok {
		return nil, fmt.Errorf("RLS policy %s has no filter expression", policy)
	}
	return filter, nil
}
