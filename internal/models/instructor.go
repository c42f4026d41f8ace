package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Instructor represents a driving instructor on the marketplace.
// Registration, profile editing and search live elsewhere; the verification
// core only reads reputation signals and owns the Verified flag and the
// cached TrustScore.
type Instructor struct {
	ID            uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	FullName      string         `gorm:"type:varchar(255)" json:"full_name"`
	Email         string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	EmailVerified bool           `gorm:"default:false" json:"email_verified"`
	PhoneNumber   *string        `gorm:"type:varchar(20)" json:"phone_number"`
	PhoneVerified bool           `gorm:"default:false" json:"phone_verified"`
	Verified      bool           `gorm:"default:false;index" json:"verified"`
	TrustScore    int            `gorm:"default:50" json:"trust_score"`
	IsActive      bool           `gorm:"default:true" json:"is_active"`
	CreatedAt     time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate assigns a UUID when none was provided
func (i *Instructor) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// InstructorReview is a student review of an instructor. Owned by the
// marketplace; the verification core only counts positive and negative
// ratings when computing the trust score.
type InstructorReview struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	InstructorID uuid.UUID `gorm:"type:uuid;not null;index" json:"instructor_id"`
	Rating       int       `gorm:"not null" json:"rating"` // 1..5
	Comment      *string   `gorm:"type:text" json:"comment"`
	CreatedAt    time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

// BeforeCreate assigns a UUID when none was provided
func (r *InstructorReview) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
