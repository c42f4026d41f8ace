package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivitySeverity grades a suspicious-activity record
type ActivitySeverity string

const (
	SeverityLow      ActivitySeverity = "low"
	SeverityMedium   ActivitySeverity = "medium"
	SeverityHigh     ActivitySeverity = "high"
	SeverityCritical ActivitySeverity = "critical"
)

// ActivityKind names the detection rule that produced a record
type ActivityKind string

const (
	ActivityRepeatedRejections  ActivityKind = "repeated_rejections"
	ActivityBlacklistedDocument ActivityKind = "blacklisted_document"
)

// SuspiciousActivityRecord is a flagged pattern on an instructor, created by
// a detection rule after a case resolves. Staff set Reviewed once they have
// looked at it; unreviewed high-severity records depress the trust score.
type SuspiciousActivityRecord struct {
	ID           uuid.UUID        `gorm:"type:uuid;primary_key" json:"id"`
	InstructorID uuid.UUID        `gorm:"type:uuid;not null;index" json:"instructor_id"`
	Kind         ActivityKind     `gorm:"type:varchar(40);not null" json:"kind"`
	Severity     ActivitySeverity `gorm:"type:varchar(20);not null" json:"severity"`
	Details      JSON             `gorm:"type:jsonb" json:"details"`
	AutoDetected bool             `gorm:"default:true" json:"auto_detected"`
	Reviewed     bool             `gorm:"default:false;index" json:"reviewed"`
	ReviewedBy   *uuid.UUID       `gorm:"type:uuid" json:"reviewed_by"`
	ReviewedAt   *time.Time       `json:"reviewed_at"`
	CreatedAt    time.Time        `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

// BeforeCreate assigns a UUID when none was provided
func (r *SuspiciousActivityRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
