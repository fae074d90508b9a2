package client

import "strings"

// resourcePaths is the explicit entity → REST path table. Routing stays in
// lock-step with the backend through this table rather than a guessed
// pluralization; the heuristic below is only a fallback for entities added
// to the schema before anyone touches this file.
var resourcePaths = map[string]string{
	"users":       "users",
	"roles":       "roles",
	"customers":   "customers",
	"work_orders": "work-orders",
	"invoices":    "invoices",
	"inventory":   "inventory",
	"vendors":     "vendors",
	"assets":      "assets",
}

// ResourcePath maps an entity name to its REST resource path.
func ResourcePath(entity string) string {
	if path, ok := resourcePaths[entity]; ok {
		return path
	}
	return pluralize(strings.ReplaceAll(entity, "_", "-"))
}

// pluralize is a deliberately small heuristic: y→ies, sibilant endings→es,
// everything else gets an s. Names it would get wrong belong in the table.
func pluralize(name string) string {
	switch {
	case name == "":
		return name
	case strings.HasSuffix(name, "s"),
		strings.HasSuffix(name, "x"),
		strings.HasSuffix(name, "ch"),
		strings.HasSuffix(name, "sh"):
		return name + "es"
	case strings.HasSuffix(name, "y") && !hasVowelBefore(name, len(name)-1):
		return name[:len(name)-1] + "ies"
	default:
		return name + "s"
	}
}

func hasVowelBefore(s string, i int) bool {
	if i == 0 {
		return false
	}
	return strings.ContainsRune("aeiou", rune(s[i-1]))
}
