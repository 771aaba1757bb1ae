package gate_test

import (
	"context"
	"testing"

	"github.com/tidecrm/tidecrm/gate"
)

func TestStaticProfile_HasPermission(t *testing.T) {
	profile := gate.NewStaticProfile(1, "upseller",
		gate.NewPermission(gate.ModuleSales, gate.ActionCreate),
		gate.NewPermission(gate.ModuleSales, gate.ActionUpdate),
	)

	if !profile.HasPermission(gate.NewPermission(gate.ModuleSales, gate.ActionCreate)) {
		t.Error("should have sales:create permission")
	}
	if profile.HasPermission(gate.NewPermission(gate.ModuleSales, gate.ActionDelete)) {
		t.Error("should not have sales:delete permission")
	}
}

func TestStaticProfile_HasPermission_Wildcard(t *testing.T) {
	profile := gate.NewStaticProfile(1, "admin", gate.PermissionSuperAdmin)

	if !profile.HasPermission(gate.NewPermission(gate.ModuleSales, gate.ActionCreate)) {
		t.Error("superadmin should have any permission")
	}
	if !profile.HasPermission(gate.NewPermission(gate.ModulePayments, gate.ActionDelete)) {
		t.Error("superadmin should have any permission")
	}
}

func TestStaticResolver(t *testing.T) {
	resolver := gate.NewStaticResolver[uint]()
	profile := gate.NewStaticProfile(1, "viewer", gate.NewPermission(gate.ModuleSales, gate.ActionView))
	resolver.Set(1, profile)

	resolved, err := resolver.Resolve(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved == nil {
		t.Fatal("expected profile, got nil")
	}
	if resolved.Name() != "viewer" {
		t.Errorf("expected 'viewer', got '%s'", resolved.Name())
	}

	// Unknown user returns nil
	unknown, err := resolver.Resolve(context.Background(), 999)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if unknown != nil {
		t.Error("expected nil for unknown user")
	}
}
