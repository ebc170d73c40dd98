package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role constants for the fixed four-tier supply hierarchy plus admin.
const (
	RoleAdmin               = "admin"
	RoleManufacturer        = "manufacturer"
	RoleDistrictDistributor = "district_distributor"
	RoleAreaDistributor     = "area_distributor"
	RoleVendor              = "vendor"
)

// NextRole maps a sender role to the only role it may distribute to.
// Vendors and admins never originate distributions.
var NextRole = map[string]string{
	RoleManufacturer:        RoleDistrictDistributor,
	RoleDistrictDistributor: RoleAreaDistributor,
	RoleAreaDistributor:     RoleVendor,
}

// ValidRole reports whether role is one of the five known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleManufacturer, RoleDistrictDistributor, RoleAreaDistributor, RoleVendor:
		return true
	}
	return false
}

// RequiresSuperior reports whether actors of this role must reference an
// actor one tier above them.
func RequiresSuperior(role string) bool {
	return role != RoleAdmin && role != RoleManufacturer
}

// User represents an actor in the supply hierarchy. The superior chain,
// followed from any non-manufacturer actor, must terminate at a manufacturer;
// the chain is only verified lazily at distribution-creation time.
type User struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name       string         `gorm:"type:varchar(255);not null" json:"name"`
	Email      string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password   string         `gorm:"type:varchar(255);not null" json:"-"` // Omit password from JSON requests/responses
	Role       string         `gorm:"type:varchar(50);not null;index" json:"role"`
	SuperiorID *uuid.UUID     `gorm:"type:uuid;index" json:"superior_id,omitempty"` // Required unless admin or manufacturer
	Superior   *User          `gorm:"foreignKey:SuperiorID" json:"-"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"` // GORM soft delete
}

// RefreshToken stores long-lived tokens allowing users to request new access tokens
type RefreshToken struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Token     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"token"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
