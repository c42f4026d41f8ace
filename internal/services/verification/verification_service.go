package verification

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/treinacnh/backend/internal/models"
	"github.com/treinacnh/backend/internal/queue"
	"github.com/treinacnh/backend/internal/security/audit"
	"github.com/treinacnh/backend/internal/services/compliance"
	"github.com/treinacnh/backend/internal/services/trustscore"
	"gorm.io/gorm"
)

var (
	// ErrCaseNotFound means no case exists with the given id
	ErrCaseNotFound = errors.New("verification case not found")

	// ErrInvalidTransition means a decision was attempted on a case that
	// is no longer pending. Callers treat it as "already decided".
	ErrInvalidTransition = errors.New("case is not pending")

	// ErrValidationRequired means a rejection was attempted without notes
	ErrValidationRequired = errors.New("rejection notes are required")

	// ErrInvalidDocumentKind means the declared kind is not accepted
	ErrInvalidDocumentKind = errors.New("invalid document kind")

	// ErrInstructorNotFound means the uploader does not exist
	ErrInstructorNotFound = errors.New("instructor not found")

	// ErrInvalidCursor means a pagination token could not be decoded
	ErrInvalidCursor = errors.New("invalid pagination cursor")
)

// Service owns the verification case lifecycle: submission, the
// pending/approved/rejected state machine, the FIFO review queue and the
// instructor verified-flag re-evaluation.
type Service struct {
	db          *gorm.DB
	queue       queue.Enqueuer
	auditLogger *audit.Logger
	compliance  *compliance.Service
	trustScore  *trustscore.Service
}

// NewService creates a verification service. queue may be nil in tests
// that drive the processing job directly.
func NewService(db *gorm.DB, q queue.Enqueuer, auditLogger *audit.Logger, complianceSvc *compliance.Service, trustScoreSvc *trustscore.Service) *Service {
	return &Service{
		db:          db,
		queue:       q,
		auditLogger: auditLogger,
		compliance:  complianceSvc,
		trustScore:  trustScoreSvc,
	}
}

// SubmitDocument creates a new pending case for the instructor and
// enqueues the asynchronous processing job. A re-submission always
// creates a brand-new case; earlier cases are never reopened.
func (s *Service) SubmitDocument(instructorID uuid.UUID, kind models.DocumentKind, filePath string, selfiePath *string) (*models.VerificationCase, error) {
	if !kind.Valid() {
		return nil, ErrInvalidDocumentKind
	}

	var instructor models.Instructor
	if err := s.db.First(&instructor, "id = ?", instructorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInstructorNotFound
		}
		return nil, fmt.Errorf("failed to load instructor: %w", err)
	}

	vc := models.VerificationCase{
		InstructorID: instructorID,
		Kind:         kind,
		FilePath:     filePath,
		SelfiePath:   selfiePath,
		Status:       models.CaseStatusPending,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&vc).Error; err != nil {
			return err
		}
		return s.auditLogger.Record(tx, audit.ActionDocumentSubmitted, "verification_case", vc.ID, &instructorID, models.JSON{
			"kind":       string(kind),
			"has_selfie": selfiePath != nil,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create verification case: %w", err)
	}

	if s.queue != nil {
		if _, err := s.queue.Enqueue(queue.JobTypeProcessDocument, map[string]interface{}{"case_id": vc.ID}); err != nil {
			// The case exists; processing can be replayed by ops
			log.Printf("Failed to enqueue processing for case %s: %v", vc.ID, err)
		}
	}
	return &vc, nil
}

// Approve transitions a pending case to approved and re-evaluates the
// instructor's verified flag from scratch. Notes are optional. A second
// decision on the same case fails with ErrInvalidTransition.
func (s *Service) Approve(ctx context.Context, caseID, reviewerID uuid.UUID, notes string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		vc, err := s.decide(tx, caseID, reviewerID, models.CaseStatusApproved, notes)
		if err != nil {
			return err
		}
		if err := s.auditLogger.Record(tx, audit.ActionDocumentApproved, "verification_case", caseID, &reviewerID, models.JSON{
			"kind": string(vc.Kind),
		}); err != nil {
			return err
		}
		return s.reevaluateInstructor(tx, vc.InstructorID, &reviewerID)
	})
	if err != nil {
		return err
	}

	s.refreshTrustScore(ctx, caseID)
	return nil
}

// Reject transitions a pending case to rejected. Notes are mandatory:
// an empty reason fails with ErrValidationRequired and leaves the case
// pending. Any rejection immediately revokes the instructor's verified
// flag.
func (s *Service) Reject(ctx context.Context, caseID, reviewerID uuid.UUID, notes string) error {
	if strings.TrimSpace(notes) == "" {
		return ErrValidationRequired
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		vc, err := s.decide(tx, caseID, reviewerID, models.CaseStatusRejected, notes)
		if err != nil {
			return err
		}
		if err := s.auditLogger.Record(tx, audit.ActionDocumentRejected, "verification_case", caseID, &reviewerID, models.JSON{
			"kind":  string(vc.Kind),
			"notes": notes,
		}); err != nil {
			return err
		}
		if err := s.setVerified(tx, vc.InstructorID, false, &reviewerID); err != nil {
			return err
		}
		return s.compliance.HandleRejection(tx, vc.InstructorID)
	})
	if err != nil {
		return err
	}

	s.refreshTrustScore(ctx, caseID)
	return nil
}

// decide performs the guarded pending->terminal update. The WHERE clause
// on the current status makes the transition exclusive: when two
// reviewers race, exactly one update matches a row and the loser gets
// ErrInvalidTransition.
func (s *Service) decide(tx *gorm.DB, caseID, reviewerID uuid.UUID, status models.CaseStatus, notes string) (*models.VerificationCase, error) {
	var vc models.VerificationCase
	if err := tx.First(&vc, "id = ?", caseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCaseNotFound
		}
		return nil, fmt.Errorf("failed to load case: %w", err)
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":      status,
		"reviewer_id": reviewerID,
		"decided_at":  now,
	}
	if strings.TrimSpace(notes) != "" {
		updates["decision_notes"] = notes
	}

	res := tx.Model(&models.VerificationCase{}).
		Where("id = ? AND status = ?", caseID, models.CaseStatusPending).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update case: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrInvalidTransition
	}
	return &vc, nil
}

// BulkApprove approves every listed case that is still pending. Cases
// already decided are skipped silently; the batch never fails as a
// whole because of one of them.
func (s *Service) BulkApprove(ctx context.Context, caseIDs []uuid.UUID, reviewerID uuid.UUID, notes string) (int, error) {
	return s.bulkDecide(ctx, caseIDs, func(id uuid.UUID) error {
		return s.Approve(ctx, id, reviewerID, notes)
	})
}

// BulkReject rejects every listed pending case with the shared notes.
// Notes are validated once up front since they apply to all cases.
func (s *Service) BulkReject(ctx context.Context, caseIDs []uuid.UUID, reviewerID uuid.UUID, notes string) (int, error) {
	if strings.TrimSpace(notes) == "" {
		return 0, ErrValidationRequired
	}
	return s.bulkDecide(ctx, caseIDs, func(id uuid.UUID) error {
		return s.Reject(ctx, id, reviewerID, notes)
	})
}

func (s *Service) bulkDecide(_ context.Context, caseIDs []uuid.UUID, decide func(uuid.UUID) error) (int, error) {
	decided := 0
	for _, id := range caseIDs {
		err := decide(id)
		switch {
		case err == nil:
			decided++
		case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrCaseNotFound):
			// already decided or gone, skip
		default:
			return decided, err
		}
	}
	return decided, nil
}

// reevaluateInstructor recomputes the verified flag from scratch: the
// instructor is verified iff every mandatory document kind has at least
// one approved case. Never incremental, so out-of-order events cannot
// leave the flag stale.
func (s *Service) reevaluateInstructor(tx *gorm.DB, instructorID uuid.UUID, actor *uuid.UUID) error {
	verified := true
	for _, kind := range models.MandatoryDocumentKinds {
		var count int64
		if err := tx.Model(&models.VerificationCase{}).
			Where("instructor_id = ? AND kind = ? AND status = ?", instructorID, kind, models.CaseStatusApproved).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count approved cases: %w", err)
		}
		if count == 0 {
			verified = false
			break
		}
	}
	return s.setVerified(tx, instructorID, verified, actor)
}

// setVerified writes the flag only on an actual change, with a matching
// audit entry. All writers of the flag go through here.
func (s *Service) setVerified(tx *gorm.DB, instructorID uuid.UUID, verified bool, actor *uuid.UUID) error {
	res := tx.Model(&models.Instructor{}).
		Where("id = ? AND verified = ?", instructorID, !verified).
		Update("verified", verified)
	if res.Error != nil {
		return fmt.Errorf("failed to update verified flag: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil
	}

	action := audit.ActionInstructorVerified
	if !verified {
		action = audit.ActionInstructorRevoked
	}
	return s.auditLogger.Record(tx, action, "instructor", instructorID, actor, nil)
}

// refreshTrustScore recomputes the uploader's score after a case
// resolves. Best effort: a cache or store hiccup never fails a decision
// that already committed.
func (s *Service) refreshTrustScore(ctx context.Context, caseID uuid.UUID) {
	if s.trustScore == nil {
		return
	}
	var vc models.VerificationCase
	if err := s.db.First(&vc, "id = ?", caseID).Error; err != nil {
		return
	}
	if _, err := s.trustScore.Refresh(ctx, vc.InstructorID); err != nil {
		log.Printf("Failed to refresh trust score for instructor %s: %v", vc.InstructorID, err)
	}
}

// ListPending returns pending cases ordered oldest-submitted-first with
// keyset pagination over (submitted_at, id). An empty cursor starts from
// the head of the queue; nextCursor is empty when the page was not full.
func (s *Service) ListPending(pageSize int, cursor string) ([]models.VerificationCase, string, error) {
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	query := s.db.Where("status = ?", models.CaseStatusPending)
	if cursor != "" {
		after, afterID, err := decodeCursor(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrInvalidCursor, err)
		}
		query = query.Where("submitted_at > ? OR (submitted_at = ? AND id > ?)", after, after, afterID)
	}

	var cases []models.VerificationCase
	if err := query.Order("submitted_at ASC, id ASC").Limit(pageSize).Find(&cases).Error; err != nil {
		return nil, "", fmt.Errorf("failed to list pending cases: %w", err)
	}

	next := ""
	if len(cases) == pageSize {
		last := cases[len(cases)-1]
		next = encodeCursor(last.SubmittedAt, last.ID)
	}
	return cases, next, nil
}

func encodeCursor(submittedAt time.Time, id uuid.UUID) string {
	raw := fmt.Sprintf("%s|%s", submittedAt.UTC().Format(time.RFC3339Nano), id)
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(cursor string) (time.Time, uuid.UUID, error) {
	raw, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, uuid.Nil, err
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, uuid.Nil, errors.New("malformed cursor")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, uuid.Nil, err
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return time.Time{}, uuid.Nil, err
	}
	return ts, id, nil
}

// GetCase returns one case with its audit trail
func (s *Service) GetCase(caseID uuid.UUID) (*models.VerificationCase, []audit.Entry, error) {
	var vc models.VerificationCase
	if err := s.db.First(&vc, "id = ?", caseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrCaseNotFound
		}
		return nil, nil, fmt.Errorf("failed to load case: %w", err)
	}

	trail, err := s.auditLogger.SubjectTrail("verification_case", caseID)
	if err != nil {
		return nil, nil, err
	}
	return &vc, trail, nil
}

// ListByInstructor returns an uploader's cases newest-first
func (s *Service) ListByInstructor(instructorID uuid.UUID) ([]models.VerificationCase, error) {
	var cases []models.VerificationCase
	if err := s.db.Where("instructor_id = ?", instructorID).
		Order("submitted_at DESC").Find(&cases).Error; err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	return cases, nil
}
