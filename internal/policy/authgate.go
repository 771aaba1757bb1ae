package policy

import (
	"time"

	"gorm.io/gorm"

	"github.com/tidecrm/tidecrm/gate"
	"github.com/tidecrm/tidecrm/internal/services"
)

// ManageAllSales lets managers act on sales they did not create.
const ManageAllSales gate.Permission = "sales:manage_all"

// NewAuthGate builds the application's authorization gate: DB-backed
// profiles behind a TTL cache, with an ownership policy on sales that
// managers bypass.
func NewAuthGate(db *gorm.DB, cacheTTL time.Duration) (*gate.Gate[uint], *gate.CachedResolver[uint]) {
	resolver := gate.NewCachedResolver[uint](NewDBProfileResolver(db), cacheTTL)
	g := gate.New[uint](resolver)
	g.Register(gate.ModuleSales, NewManagerBypassPolicy(NewOwnershipPolicy(), resolver, ManageAllSales))
	return g, resolver
}

// roleClasses maps role names to the builder's customer/lead selection
// rule. The mapping is configuration, not engine logic; unknown roles
// may pick either.
var roleClasses = map[string]services.RoleClass{
	"upseller": services.SelectCustomerOnly,
	"closer":   services.SelectLeadOnly,
	"manager":  services.SelectEither,
	"admin":    services.SelectEither,
}

// RoleClassFor returns the selection rule for a role name.
func RoleClassFor(roleName string) services.RoleClass {
	if class, ok := roleClasses[roleName]; ok {
		return class
	}
	return services.SelectEither
}
