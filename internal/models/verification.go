package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CaseStatus represents the status of a verification case
type CaseStatus string

const (
	CaseStatusPending  CaseStatus = "pending"
	CaseStatusApproved CaseStatus = "approved"
	CaseStatusRejected CaseStatus = "rejected"
)

// Terminal reports whether no further transition is allowed out of s.
// A re-submission always creates a brand-new case.
func (s CaseStatus) Terminal() bool {
	return s == CaseStatusApproved || s == CaseStatusRejected
}

// DocumentKind represents the declared type of an uploaded document
type DocumentKind string

const (
	DocumentKindCNH         DocumentKind = "cnh"
	DocumentKindCertificate DocumentKind = "instructor_certificate"
	DocumentKindVehicle     DocumentKind = "vehicle_document"
	DocumentKindOther       DocumentKind = "other"
)

// MandatoryDocumentKinds are the kinds an instructor must have approved
// before the Verified flag may be set.
var MandatoryDocumentKinds = []DocumentKind{DocumentKindCNH, DocumentKindCertificate}

// Valid reports whether k is one of the accepted document kinds
func (k DocumentKind) Valid() bool {
	switch k {
	case DocumentKindCNH, DocumentKindCertificate, DocumentKindVehicle, DocumentKindOther:
		return true
	}
	return false
}

// ValidationOutcome is the overall automated-validation verdict for a case.
// A blacklist hit must stay distinguishable from a checksum failure.
type ValidationOutcome string

const (
	OutcomePassed         ValidationOutcome = "passed"
	OutcomeChecksumFailed ValidationOutcome = "checksum_failed"
	OutcomeBlacklisted    ValidationOutcome = "blacklisted"
	OutcomeExpired        ValidationOutcome = "expired"
	OutcomeManualReview   ValidationOutcome = "manual_review"
)

// VerificationCase is one document submission under review. The case
// exclusively owns its extracted and validation sub-fields; all of them
// stay nil until the asynchronous processing job has run.
type VerificationCase struct {
	ID           uuid.UUID    `gorm:"type:uuid;primary_key" json:"id"`
	InstructorID uuid.UUID    `gorm:"type:uuid;not null;index" json:"instructor_id"`
	Kind         DocumentKind `gorm:"type:varchar(30);not null" json:"kind"`

	FilePath   string  `gorm:"type:text;not null" json:"file_path"`
	SelfiePath *string `gorm:"type:text" json:"selfie_path"`

	// Extracted fields, written once by the processing job
	ExtractedCNHNumber    *string    `gorm:"type:varchar(20)" json:"extracted_cnh_number"`
	ExtractedCPF          *string    `gorm:"type:varchar(20)" json:"extracted_cpf"`
	ExtractedFullName     *string    `gorm:"type:varchar(255)" json:"extracted_full_name"`
	ExtractedExpiry       *time.Time `json:"extracted_expiry"`
	ExtractionConfidence  *int       `json:"extraction_confidence"` // 0..100
	ExtractionProcessedAt *time.Time `json:"extraction_processed_at"`

	// Tri-state validation results: nil = not evaluated
	CNHValid   *bool              `json:"cnh_valid"`
	CPFValid   *bool              `json:"cpf_valid"`
	NotExpired *bool              `json:"not_expired"`
	Outcome    *ValidationOutcome `gorm:"type:varchar(30)" json:"outcome"`

	// Identity match result: nil = capability unavailable or not run
	FaceMatch           *bool   `json:"face_match"`
	FaceMatchConfidence *int    `json:"face_match_confidence"` // 0..100
	FaceMatchReason     *string `gorm:"type:text" json:"face_match_reason"`

	Status CaseStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`

	// Decision metadata, all nil while pending
	ReviewerID    *uuid.UUID `gorm:"type:uuid" json:"reviewer_id"`
	DecisionNotes *string    `gorm:"type:text" json:"decision_notes"`
	DecidedAt     *time.Time `json:"decided_at"`

	SubmittedAt time.Time `gorm:"not null;index" json:"submitted_at"`
	UpdatedAt   time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// BeforeCreate assigns the UUID and submission timestamp
func (c *VerificationCase) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.SubmittedAt.IsZero() {
		c.SubmittedAt = time.Now().UTC()
	}
	return nil
}

// DaysWaiting returns how many whole days the case has been awaiting review
func (c *VerificationCase) DaysWaiting(now time.Time) int {
	return int(now.Sub(c.SubmittedAt).Hours() / 24)
}
