package audit

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/treinacnh/backend/internal/models"
)

// Action is the kind of state-changing action an entry documents
type Action string

const (
	ActionDocumentSubmitted   Action = "DOCUMENT_SUBMITTED"
	ActionDocumentProcessed   Action = "DOCUMENT_PROCESSED"
	ActionDocumentApproved    Action = "DOCUMENT_APPROVED"
	ActionDocumentRejected    Action = "DOCUMENT_REJECTED"
	ActionInstructorVerified  Action = "INSTRUCTOR_VERIFIED"
	ActionInstructorRevoked   Action = "INSTRUCTOR_UNVERIFIED"
	ActionBlacklistAdded      Action = "BLACKLIST_ENTRY_ADDED"
	ActionBlacklistDeactivate Action = "BLACKLIST_ENTRY_DEACTIVATED"
	ActionActivityFlagged     Action = "SUSPICIOUS_ACTIVITY_FLAGGED"
	ActionActivityReviewed    Action = "SUSPICIOUS_ACTIVITY_REVIEWED"
)

// Entry is an append-only audit fact. Rows are never updated or deleted
// after creation; the schema deliberately has no UpdatedAt or DeletedAt.
type Entry struct {
	ID          uuid.UUID   `gorm:"type:uuid;primary_key" json:"id"`
	ActorID     *uuid.UUID  `gorm:"type:uuid;index" json:"actor_id"` // nil = system action
	Action      Action      `gorm:"type:varchar(50);not null;index" json:"action"`
	SubjectType string      `gorm:"type:varchar(50);not null;index" json:"subject_type"`
	SubjectID   uuid.UUID   `gorm:"type:uuid;not null;index" json:"subject_id"`
	Metadata    models.JSON `gorm:"type:jsonb" json:"metadata"`
	IPAddress   *string     `gorm:"type:varchar(45)" json:"ip_address"`
	CreatedAt   time.Time   `gorm:"index" json:"created_at"`
}

// TableName keeps audit rows clearly separated from domain tables
func (Entry) TableName() string {
	return "audit_entries"
}

// BeforeCreate assigns a UUID when none was provided
func (e *Entry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// Logger writes and queries audit entries
type Logger struct {
	db *gorm.DB
}

// NewLogger creates a new audit logger
func NewLogger(db *gorm.DB) *Logger {
	return &Logger{db: db}
}

// Record appends one entry. Callers performing a state change must pass the
// transaction that change runs in, so the entry commits or rolls back with
// it: no orphan entries for failed changes, no undocumented changes.
func (l *Logger) Record(tx *gorm.DB, action Action, subjectType string, subjectID uuid.UUID, actor *uuid.UUID, metadata models.JSON) error {
	if tx == nil {
		tx = l.db
	}
	entry := Entry{
		ActorID:     actor,
		Action:      action,
		SubjectType: subjectType,
		SubjectID:   subjectID,
		Metadata:    metadata,
		CreatedAt:   time.Now().UTC(),
	}
	return tx.Create(&entry).Error
}

// RecordFrom is Record with the request origin address attached
func (l *Logger) RecordFrom(tx *gorm.DB, action Action, subjectType string, subjectID uuid.UUID, actor *uuid.UUID, metadata models.JSON, ip string) error {
	if tx == nil {
		tx = l.db
	}
	entry := Entry{
		ActorID:     actor,
		Action:      action,
		SubjectType: subjectType,
		SubjectID:   subjectID,
		Metadata:    metadata,
		CreatedAt:   time.Now().UTC(),
	}
	if ip != "" {
		entry.IPAddress = &ip
	}
	return tx.Create(&entry).Error
}

// Filters narrows an audit query; zero values are ignored
type Filters struct {
	ActorID     *uuid.UUID
	SubjectType string
	SubjectID   *uuid.UUID
	From        *time.Time
	To          *time.Time
	Limit       int
	Offset      int
}

// Query returns audit entries matching the filters, newest first
func (l *Logger) Query(f Filters) ([]Entry, error) {
	q := l.db.Model(&Entry{})
	if f.ActorID != nil {
		q = q.Where("actor_id = ?", *f.ActorID)
	}
	if f.SubjectType != "" {
		q = q.Where("subject_type = ?", f.SubjectType)
	}
	if f.SubjectID != nil {
		q = q.Where("subject_id = ?", *f.SubjectID)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var entries []Entry
	err := q.Order("created_at DESC").Limit(limit).Offset(f.Offset).Find(&entries).Error
	return entries, err
}

// SubjectTrail returns every entry for one subject, oldest first, so a
// reviewer can replay how a case reached its current state.
func (l *Logger) SubjectTrail(subjectType string, subjectID uuid.UUID) ([]Entry, error) {
	var entries []Entry
	err := l.db.Where("subject_type = ? AND subject_id = ?", subjectType, subjectID).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}
