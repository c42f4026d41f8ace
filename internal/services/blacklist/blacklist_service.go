package blacklist

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/treinacnh/backend/internal/models"
	"github.com/treinacnh/backend/internal/security/audit"
	"github.com/treinacnh/backend/internal/utils"
)

var (
	// ErrInvalidNumber is returned when a document number has no digits
	ErrInvalidNumber = errors.New("document number must contain digits")
	// ErrInvalidReason is returned for an unknown blacklist reason
	ErrInvalidReason = errors.New("invalid blacklist reason")
	// ErrEntryNotFound is returned when no entry matches the given id
	ErrEntryNotFound = errors.New("blacklist entry not found")
)

// Service manages the registry of revoked document numbers
type Service struct {
	db    *gorm.DB
	audit *audit.Logger
}

// NewService creates a new blacklist service
func NewService(db *gorm.DB, auditLogger *audit.Logger) *Service {
	return &Service{db: db, audit: auditLogger}
}

// IsBlacklisted reports whether an active, unexpired entry exists for the
// normalized number and kind. Lookup failures surface as errors, never as a
// silent pass.
func (s *Service) IsBlacklisted(kind models.DocumentKind, number string) (bool, error) {
	normalized := utils.DigitsOnly(number)
	if normalized == "" {
		return false, nil
	}

	var count int64
	err := s.db.Model(&models.BlacklistEntry{}).
		Where("kind = ? AND document_number = ? AND active = ?", kind, normalized, true).
		Where("expires_at IS NULL OR expires_at > ?", time.Now().UTC()).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("error checking blacklist: %w", err)
	}
	return count > 0, nil
}

// AddEntry registers a revoked document number. createdBy is nil when an
// automated fraud signal created the entry.
func (s *Service) AddEntry(kind models.DocumentKind, number string, reason models.BlacklistReason, createdBy *uuid.UUID, expiresAt *time.Time) (*models.BlacklistEntry, error) {
	normalized := utils.DigitsOnly(number)
	if normalized == "" {
		return nil, ErrInvalidNumber
	}
	if !reason.Valid() {
		return nil, ErrInvalidReason
	}

	entry := models.BlacklistEntry{
		Kind:           kind,
		DocumentNumber: normalized,
		Reason:         reason,
		Active:         true,
		ExpiresAt:      expiresAt,
		CreatedBy:      createdBy,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("error creating blacklist entry: %w", err)
		}
		return s.audit.Record(tx, audit.ActionBlacklistAdded, "blacklist_entry", entry.ID, createdBy, models.JSON{
			"kind":   string(kind),
			"number": normalized,
			"reason": string(reason),
		})
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Deactivate soft-disables an entry. Entries are never hard deleted; the
// row stays in place for history.
func (s *Service) Deactivate(entryID uuid.UUID, staffID uuid.UUID) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.BlacklistEntry{}).
			Where("id = ? AND active = ?", entryID, true).
			Updates(map[string]interface{}{"active": false, "updated_at": time.Now().UTC()})
		if res.Error != nil {
			return fmt.Errorf("error deactivating blacklist entry: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrEntryNotFound
		}
		return s.audit.Record(tx, audit.ActionBlacklistDeactivate, "blacklist_entry", entryID, &staffID, nil)
	})
}

// List returns entries, active first then newest first, for staff tooling
func (s *Service) List(limit, offset int) ([]models.BlacklistEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var entries []models.BlacklistEntry
	err := s.db.Order("active DESC, created_at DESC").Limit(limit).Offset(offset).Find(&entries).Error
	return entries, err
}
