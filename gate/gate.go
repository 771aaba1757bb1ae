// Package gate evaluates module:action permission sets for the CRM.
// Authorization policy administration (who holds which role) lives outside
// the engine; the gate only answers "may this caller perform this action",
// combining a profile permission check with optional per-resource
// ownership policies.
//
// The package uses generics to allow any user/subject type:
//   - Gate[uint] for simple user ID based auth
//   - Gate[*User] for full user struct based auth
package gate

import "context"

// Gate checks a caller's resolved permission profile and, when a policy
// is registered for the resource type, its ownership rules.
// U is the user/subject type (must be comparable for zero-value check).
type Gate[U comparable] struct {
	resolver ProfileResolver[U]
	policies map[string]Policy[U]
}

// New creates a gate backed by the given profile resolver.
func New[U comparable](resolver ProfileResolver[U]) *Gate[U] {
	return &Gate[U]{
		resolver: resolver,
		policies: make(map[string]Policy[U]),
	}
}

// Register adds a resource-specific policy for ownership checks
// (e.g. "sales" limited to the creating upseller).
func (g *Gate[U]) Register(resourceType string, p Policy[U]) {
	g.policies[resourceType] = p
}

// Authorize checks:
//  1. User is valid (non-zero)
//  2. User's profile has permission for resource:action
//  3. If a resource policy exists and resource is provided, checks ownership
func (g *Gate[U]) Authorize(ctx context.Context, user U, action Action, resourceType string, resource any) error {
	var zero U
	if user == zero {
		return ErrUnauthorized
	}

	profile, err := g.resolver.Resolve(ctx, user)
	if err != nil || profile == nil {
		return ErrUnauthorized
	}

	perm := NewPermission(resourceType, action)
	if !profile.HasPermission(perm) {
		return ErrUnauthorized
	}

	if resource != nil {
		if policy, ok := g.policies[resourceType]; ok {
			if !policy.Can(ctx, user, action, resource) {
				return ErrUnauthorized
			}
		}
	}

	return nil
}

// Can is a convenience wrapper returning bool instead of error.
func (g *Gate[U]) Can(ctx context.Context, user U, action Action, resourceType string, resource any) bool {
	return g.Authorize(ctx, user, action, resourceType, resource) == nil
}

// Resolve exposes the profile lookup so callers can hand the resolved
// permission set into core operations explicitly.
func (g *Gate[U]) Resolve(ctx context.Context, user U) (Profile, error) {
	return g.resolver.Resolve(ctx, user)
}
