package permission

// Matrix is the full role × operation grid for one resource, derived from
// the role table and the resource's permission block. Computed on first
// request and cached on the Model, so a document reload discards it along
// with everything else.
type Matrix struct {
	Resource string                     `json:"resource"`
	Grid     map[string]map[string]bool `json:"grid"` // role -> operation -> allowed
}

// MatrixFor returns the permission matrix for a resource, or false if the
// resource is unknown.
func (m *Model) MatrixFor(resource string) (*Matrix, bool) {
	if !m.KnownResource(resource) {
		return nil, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if cached, ok := m.matrices[resource]; ok {
		return cached, true
	}

	grid := make(map[string]map[string]bool, len(m.Roles))
	for role := range m.Roles {
		row := make(map[string]bool, len(Operations))
		for _, op := range Operations {
			row[op] = m.HasPermission(role, resource, op)
		}
		grid[role] = row
	}

	matrix := &Matrix{Resource: resource, Grid: grid}
	m.matrices[resource] = matrix
	return matrix, true
}
