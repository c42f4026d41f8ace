package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BlacklistReason classifies why a document number was revoked
type BlacklistReason string

const (
	BlacklistReasonForged         BlacklistReason = "forged"
	BlacklistReasonStolen         BlacklistReason = "stolen"
	BlacklistReasonDuplicated     BlacklistReason = "duplicated"
	BlacklistReasonConfirmedFraud BlacklistReason = "confirmed_fraud"
)

// Valid reports whether r is a known blacklist reason
func (r BlacklistReason) Valid() bool {
	switch r {
	case BlacklistReasonForged, BlacklistReasonStolen, BlacklistReasonDuplicated, BlacklistReasonConfirmedFraud:
		return true
	}
	return false
}

// BlacklistEntry is a revoked document identifier. Entries are never hard
// deleted, only deactivated, so the history stays reconstructible.
type BlacklistEntry struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	Kind           DocumentKind    `gorm:"type:varchar(30);not null;index:idx_blacklist_kind_number" json:"kind"`
	DocumentNumber string          `gorm:"type:varchar(30);not null;index:idx_blacklist_kind_number" json:"document_number"` // digits only
	Reason         BlacklistReason `gorm:"type:varchar(30);not null" json:"reason"`
	Active         bool            `gorm:"default:true;index" json:"active"`
	ExpiresAt      *time.Time      `json:"expires_at"`
	CreatedBy      *uuid.UUID      `gorm:"type:uuid" json:"created_by"` // nil = automated fraud signal
	CreatedAt      time.Time       `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// BeforeCreate assigns a UUID when none was provided
func (e *BlacklistEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
