package model

import (
	"time"

	"github.com/google/uuid"
)

// DistributionStatus constants
const (
	StatusPending     = "pending"
	StatusDistributed = "distributed"
	StatusDelivered   = "delivered"
	StatusCancelled   = "cancelled"
)

// ValidStatus reports whether s is a known distribution status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusDistributed, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Hierarchy is the denormalized ancestor snapshot stored on every record.
// It is computed once, at creation time, by walking the actor directory
// upward from the sender; it is never recomputed on read paths. The fields
// present are exactly the tiers at or above the sender's tier.
type Hierarchy struct {
	ManufacturerID        *uuid.UUID `gorm:"column:manufacturer_id;type:uuid;index" json:"manufacturer_id,omitempty"`
	DistrictDistributorID *uuid.UUID `gorm:"column:district_distributor_id;type:uuid;index" json:"district_distributor_id,omitempty"`
	AreaDistributorID     *uuid.UUID `gorm:"column:area_distributor_id;type:uuid;index" json:"area_distributor_id,omitempty"`
	VendorID              *uuid.UUID `gorm:"column:vendor_id;type:uuid;index" json:"vendor_id,omitempty"`
}

// KeyForRole returns the hierarchy field corresponding to a role, or nil if
// the role has no tier (admin) or the tier is absent from the snapshot.
func (h Hierarchy) KeyForRole(role string) *uuid.UUID {
	switch role {
	case RoleManufacturer:
		return h.ManufacturerID
	case RoleDistrictDistributor:
		return h.DistrictDistributorID
	case RoleAreaDistributor:
		return h.AreaDistributorID
	case RoleVendor:
		return h.VendorID
	}
	return nil
}

// HierarchyColumn maps a role to the snapshot column used for scoping
// queries to that actor's subtree.
func HierarchyColumn(role string) string {
	switch role {
	case RoleManufacturer:
		return "manufacturer_id"
	case RoleDistrictDistributor:
		return "district_distributor_id"
	case RoleAreaDistributor:
		return "area_distributor_id"
	case RoleVendor:
		return "vendor_id"
	}
	return ""
}

// DistributionRecord represents one shipment of a named newspaper between two
// adjacent-tier actors. Records are created once and never deleted; only the
// unsold-update and status-update operations mutate them, and those also
// touch zero or more ancestor records as a side effect.
type DistributionRecord struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	NewspaperName string    `gorm:"type:varchar(255);not null;index" json:"newspaper_name"`
	Quantity      int       `gorm:"type:int;not null" json:"quantity"` // Units sent; set equal to received at creation
	SenderID      uuid.UUID `gorm:"type:uuid;not null;index" json:"sender_id"`
	Sender        *User     `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	ReceiverID    uuid.UUID `gorm:"type:uuid;not null;index" json:"receiver_id"`
	Receiver      *User     `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`
	Status        string    `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`

	// TotalUnsold is set only by the vendor unsold-update operation.
	// Invariant: 0 <= total_unsold <= quantity.
	TotalUnsold int `gorm:"type:int;not null;default:0" json:"total_unsold"`

	// ReceivedQuantity is set by the status-update operation.
	// Invariant: 0 <= received_quantity <= quantity.
	ReceivedQuantity int `gorm:"type:int;not null;default:0" json:"received_quantity"`

	Hierarchy     Hierarchy      `gorm:"embedded" json:"hierarchy"`
	StatusUpdates []StatusUpdate `gorm:"foreignKey:RecordID;constraint:OnDelete:CASCADE" json:"status_updates"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// StatusUpdate is one entry of a record's append-only audit trail. Entries
// are never mutated after insertion.
type StatusUpdate struct {
	ID               uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RecordID         uuid.UUID `gorm:"type:uuid;not null;index" json:"record_id"`
	ActorID          uuid.UUID `gorm:"type:uuid;not null" json:"actor_id"`
	Status           string    `gorm:"type:varchar(20);not null" json:"status"`
	Quantity         int       `gorm:"type:int;not null;default:0" json:"quantity"`
	ReceivedQuantity int       `gorm:"type:int;not null;default:0" json:"received_quantity"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"updated_at"`
}
