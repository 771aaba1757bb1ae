package policy

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tidecrm/tidecrm/gate"
	"github.com/tidecrm/tidecrm/internal/models"
)

// DBProfileResolver fetches user permission profiles from the database.
// A user's effective grants are the role's permission list plus any
// per-user extras, both stored as module:action CSV.
type DBProfileResolver struct {
	DB *gorm.DB
}

func NewDBProfileResolver(db *gorm.DB) *DBProfileResolver {
	return &DBProfileResolver{DB: db}
}

// Resolve looks up the user's role and permissions. Returns nil for an
// unknown user so the gate denies rather than errors.
func (r *DBProfileResolver) Resolve(ctx context.Context, userID uint) (gate.Profile, error) {
	var user models.User
	err := r.DB.WithContext(ctx).Preload("Role").First(&user, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	perms := gate.ParseList(user.Role.Permissions)
	perms = append(perms, gate.ParseList(user.Permissions)...)
	return &dbProfile{
		id:    user.Role.ID,
		name:  user.Role.Name,
		perms: perms,
	}, nil
}

// dbProfile adapts a role row to the gate.Profile interface.
type dbProfile struct {
	id    uint
	name  string
	perms []gate.Permission
}

func (p *dbProfile) ID() uint     { return p.id }
func (p *dbProfile) Name() string { return p.name }

func (p *dbProfile) HasPermission(requested gate.Permission) bool {
	for _, perm := range p.perms {
		if perm.Matches(requested) {
			return true
		}
	}
	return false
}

func (p *dbProfile) Permissions() []gate.Permission { return p.perms }
