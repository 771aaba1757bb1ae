package policy

import (
	"context"

	"github.com/tidecrm/tidecrm/gate"
)

// Ownable is implemented by resources that belong to one user.
type Ownable interface {
	GetUserID() uint
}

// OwnershipPolicy restricts actions on a resource to its owner.
// For list/create actions (resource is nil) it defers to the profile
// permission that was already checked.
type OwnershipPolicy struct{}

func NewOwnershipPolicy() *OwnershipPolicy { return &OwnershipPolicy{} }

func (p *OwnershipPolicy) Can(_ context.Context, userID uint, _ gate.Action, resource any) bool {
	if resource == nil {
		return true
	}
	ownable, ok := resource.(Ownable)
	if !ok {
		// Resources without ownership information are denied rather than
		// silently allowed.
		return false
	}
	return ownable.GetUserID() == userID
}

// ManagerBypassPolicy wraps an inner policy and lets callers whose
// profile carries the bypass permission act on any resource.
type ManagerBypassPolicy struct {
	inner    gate.Policy[uint]
	resolver gate.ProfileResolver[uint]
	bypass   gate.Permission
}

func NewManagerBypassPolicy(inner gate.Policy[uint], resolver gate.ProfileResolver[uint], bypass gate.Permission) *ManagerBypassPolicy {
	return &ManagerBypassPolicy{inner: inner, resolver: resolver, bypass: bypass}
}

func (p *ManagerBypassPolicy) Can(ctx context.Context, userID uint, action gate.Action, resource any) bool {
	if profile, err := p.resolver.Resolve(ctx, userID); err == nil && profile != nil {
		if profile.HasPermission(p.bypass) {
			return true
		}
	}
	return p.inner.Can(ctx, userID, action, resource)
}
