package gate

import "strings"

// Permission represents an allowed action on a resource type.
// Format: "resource:action" (e.g., "sales:create", "payments:update")
type Permission string

// Resource modules known to the CRM surface.
const (
	ModuleSales     = "sales"
	ModulePayments  = "payments"
	ModuleTargets   = "targets"
	ModuleCustomers = "customers"
	ModuleLeads     = "leads"
)

// NewPermission creates a permission from resource type and action.
func NewPermission(resourceType string, action Action) Permission {
	return Permission(resourceType + ":" + string(action))
}

// Parse splits a permission into resource type and action.
func (p Permission) Parse() (resourceType string, action Action) {
	parts := strings.SplitN(string(p), ":", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return parts[0], Action(parts[1])
}

// ParseList parses a comma-separated grant list (as stored on a role row)
// into permissions, skipping blanks.
func ParseList(csv string) []Permission {
	var perms []Permission
	for _, raw := range strings.Split(csv, ",") {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		perms = append(perms, Permission(s))
	}
	return perms
}

// Wildcards for super permissions
const (
	WildcardAll                     = "*"
	PermissionSuperAdmin Permission = "*:*"
)

// Matches checks if this permission matches a requested permission.
// Supports wildcards: "*:*" matches all, "sales:*" matches all sales actions.
func (p Permission) Matches(requested Permission) bool {
	// Superadmin matches everything
	if p == PermissionSuperAdmin {
		return true
	}
	// Exact match
	if p == requested {
		return true
	}
	// Check resource wildcard: "sales:*" matches "sales:create"
	res, act := p.Parse()
	reqRes, _ := requested.Parse()
	if res == reqRes && string(act) == WildcardAll {
		return true
	}
	return false
}
