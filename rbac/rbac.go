// Package rbac defines the wire shapes for the API server's role-based
// access control policy (spec.md §1/§6.2): Role and RoleBinding. This
// package holds data only — evaluation of a Role against a request lives
// in the out-of-scope HTTP API server, not here.
package rbac

// Rule grants a verb over a resource kind, optionally scoped to specific
// resource names (an empty Names list means "all").
type Rule struct {
	Resource string   `json:"resource"` // e.g. "graphs", "tasks", "secrets"
	Verbs    []string `json:"verbs"`    // e.g. "get", "list", "put", "stop"
	Names    []string `json:"names,omitempty"`
}

// Role is a named bundle of Rules, put via PUT /rbac/roles/{name}.
type Role struct {
	Name  string `json:"name"`
	Rules []Rule `json:"rules"`
}

// RoleBinding attaches a Role to a subject (a supervisor name or a user),
// put via PUT /rbac/role-bindings/{name}.
type RoleBinding struct {
	Name    string `json:"name"`
	Role    string `json:"role"`
	Subject string `json:"subject"`
}
