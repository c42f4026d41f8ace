package compliance

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/treinacnh/backend/internal/models"
	"github.com/treinacnh/backend/internal/security/audit"
)

// rejectionThreshold is how many rejected cases trip the repeated-rejections rule
const rejectionThreshold = 3

// ErrRecordNotFound is returned when no suspicious-activity record matches
var ErrRecordNotFound = errors.New("suspicious activity record not found")

// Service evaluates fraud-signal detection rules after case resolutions and
// manages the resulting records
type Service struct {
	db    *gorm.DB
	audit *audit.Logger
}

// NewService creates a compliance service
func NewService(db *gorm.DB, auditLogger *audit.Logger) *Service {
	return &Service{db: db, audit: auditLogger}
}

// HandleRejection runs the repeated-rejections rule inside the rejection's
// transaction: three or more rejected cases flag the instructor once, with
// HIGH severity, until staff review clears the flag.
func (s *Service) HandleRejection(tx *gorm.DB, instructorID uuid.UUID) error {
	var rejected int64
	if err := tx.Model(&models.VerificationCase{}).
		Where("instructor_id = ? AND status = ?", instructorID, models.CaseStatusRejected).
		Count(&rejected).Error; err != nil {
		return fmt.Errorf("error counting rejections: %w", err)
	}
	if rejected < rejectionThreshold {
		return nil
	}

	var existing int64
	if err := tx.Model(&models.SuspiciousActivityRecord{}).
		Where("instructor_id = ? AND kind = ? AND reviewed = ?", instructorID, models.ActivityRepeatedRejections, false).
		Count(&existing).Error; err != nil {
		return fmt.Errorf("error checking existing records: %w", err)
	}
	if existing > 0 {
		return nil
	}

	record := models.SuspiciousActivityRecord{
		InstructorID: instructorID,
		Kind:         models.ActivityRepeatedRejections,
		Severity:     models.SeverityHigh,
		AutoDetected: true,
		Details:      models.JSON{"rejected_cases": rejected},
	}
	if err := tx.Create(&record).Error; err != nil {
		return fmt.Errorf("error creating suspicious activity record: %w", err)
	}
	return s.audit.Record(tx, audit.ActionActivityFlagged, "suspicious_activity", record.ID, nil, models.JSON{
		"instructor_id": instructorID.String(),
		"kind":          string(models.ActivityRepeatedRejections),
	})
}

// FlagBlacklistedDocument records a CRITICAL flag when a submitted document
// number hits the blacklist. Called from the processing pipeline.
func (s *Service) FlagBlacklistedDocument(instructorID, caseID uuid.UUID, number string) error {
	record := models.SuspiciousActivityRecord{
		InstructorID: instructorID,
		Kind:         models.ActivityBlacklistedDocument,
		Severity:     models.SeverityCritical,
		AutoDetected: true,
		Details: models.JSON{
			"case_id":         caseID.String(),
			"document_number": number,
		},
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("error creating suspicious activity record: %w", err)
		}
		return s.audit.Record(tx, audit.ActionActivityFlagged, "suspicious_activity", record.ID, nil, models.JSON{
			"instructor_id": instructorID.String(),
			"kind":          string(models.ActivityBlacklistedDocument),
		})
	})
}

// MarkReviewed sets the reviewed flag. Only staff action ever does this.
func (s *Service) MarkReviewed(recordID, staffID uuid.UUID) error {
	now := time.Now().UTC()
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.SuspiciousActivityRecord{}).
			Where("id = ? AND reviewed = ?", recordID, false).
			Updates(map[string]interface{}{"reviewed": true, "reviewed_by": staffID, "reviewed_at": now})
		if res.Error != nil {
			return fmt.Errorf("error marking record reviewed: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrRecordNotFound
		}
		return s.audit.Record(tx, audit.ActionActivityReviewed, "suspicious_activity", recordID, &staffID, nil)
	})
}

// ListUnreviewed returns open records oldest first for staff triage
func (s *Service) ListUnreviewed(limit, offset int) ([]models.SuspiciousActivityRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var records []models.SuspiciousActivityRecord
	err := s.db.Where("reviewed = ?", false).
		Order("created_at ASC").
		Limit(limit).Offset(offset).
		Find(&records).Error
	return records, err
}
