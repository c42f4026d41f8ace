package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/treinacnh/backend/internal/checksum"
	"github.com/treinacnh/backend/internal/models"
	"github.com/treinacnh/backend/internal/queue"
	"github.com/treinacnh/backend/internal/security/audit"
	"github.com/treinacnh/backend/internal/services/blacklist"
	"github.com/treinacnh/backend/internal/services/compliance"
	"github.com/treinacnh/backend/internal/services/extraction"
	"github.com/treinacnh/backend/internal/services/facematch"
	"gorm.io/gorm"
)

// DocumentProcessingPayload is the payload for a document processing job
type DocumentProcessingPayload struct {
	CaseID uuid.UUID `json:"case_id"`
}

// DocumentProcessingJob runs extraction, checksum validation, blacklist
// and expiry checks, and the optional face match over one submitted
// document. Results are written to the case exactly once and never
// change its status: the final decision always belongs to a reviewer.
type DocumentProcessingJob struct {
	db          *gorm.DB
	engine      *extraction.Engine
	matcher     *facematch.Matcher
	blacklist   *blacklist.Service
	compliance  *compliance.Service
	auditLogger *audit.Logger
}

// NewDocumentProcessingJob creates a document processing job handler.
// engine and matcher may be nil when the respective capability is not
// configured; the job then records manual_review / not-evaluated results
// instead of failing.
func NewDocumentProcessingJob(db *gorm.DB, engine *extraction.Engine, matcher *facematch.Matcher, blacklistSvc *blacklist.Service, complianceSvc *compliance.Service, auditLogger *audit.Logger) *DocumentProcessingJob {
	return &DocumentProcessingJob{
		db:          db,
		engine:      engine,
		matcher:     matcher,
		blacklist:   blacklistSvc,
		compliance:  complianceSvc,
		auditLogger: auditLogger,
	}
}

// RegisterHandlers registers the document processing handler with the queue
func (j *DocumentProcessingJob) RegisterHandlers(q *queue.Queue) {
	q.RegisterHandler(queue.JobTypeProcessDocument, func(ctx context.Context, job queue.Job) error {
		var payload DocumentProcessingPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("invalid document processing payload: %w", err)
		}
		return j.Process(ctx, payload.CaseID)
	})
}

// Process runs the automated pipeline for one case
func (j *DocumentProcessingJob) Process(ctx context.Context, caseID uuid.UUID) error {
	var vc models.VerificationCase
	if err := j.db.WithContext(ctx).First(&vc, "id = ?", caseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Document processing: case %s not found, dropping job", caseID)
			return nil
		}
		return fmt.Errorf("failed to load case: %w", err)
	}

	// Write-once: a re-delivered job must not overwrite existing results
	if vc.ExtractionProcessedAt != nil {
		log.Printf("Document processing: case %s already processed, skipping", caseID)
		return nil
	}

	updates := map[string]interface{}{}
	now := time.Now().UTC()
	updates["extraction_processed_at"] = now

	outcome := j.runExtraction(&vc, updates)
	updates["outcome"] = outcome
	j.runFaceMatch(&vc, updates)

	err := j.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.VerificationCase{}).
			Where("id = ? AND extraction_processed_at IS NULL", vc.ID).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race against another delivery of the same job
			return nil
		}
		return j.auditLogger.Record(tx, audit.ActionDocumentProcessed, "verification_case", vc.ID, nil, models.JSON{
			"outcome": string(outcome),
			"kind":    string(vc.Kind),
		})
	})
	if err != nil {
		return fmt.Errorf("failed to store processing results: %w", err)
	}

	if outcome == models.OutcomeBlacklisted {
		number := ""
		if v, ok := updates["extracted_cnh_number"].(*string); ok && v != nil {
			number = *v
		}
		if err := j.compliance.FlagBlacklistedDocument(vc.InstructorID, vc.ID, number); err != nil {
			log.Printf("Document processing: failed to flag blacklisted document on case %s: %v", vc.ID, err)
		}
	}
	return nil
}

// runExtraction fills the extracted-field and validation updates and
// returns the overall automated verdict
func (j *DocumentProcessingJob) runExtraction(vc *models.VerificationCase, updates map[string]interface{}) models.ValidationOutcome {
	// Only license documents are OCR-processed; other kinds are stored as
	// uploaded and go straight to a reviewer.
	if vc.Kind != models.DocumentKindCNH {
		return models.OutcomeManualReview
	}

	if !j.engine.Available() {
		return models.OutcomeManualReview
	}

	text, err := j.engine.Extract(vc.FilePath)
	if err != nil {
		log.Printf("Document processing: extraction failed for case %s: %v", vc.ID, err)
		return models.OutcomeManualReview
	}

	fields := extraction.ParseFields(text)
	updates["extraction_confidence"] = fields.Confidence
	if fields.CNHNumber != nil {
		updates["extracted_cnh_number"] = fields.CNHNumber
	}
	if fields.CPF != nil {
		updates["extracted_cpf"] = fields.CPF
	}
	if fields.FullName != nil {
		updates["extracted_full_name"] = fields.FullName
	}
	if fields.Expiry != nil {
		updates["extracted_expiry"] = fields.Expiry
	}

	if fields.CNHNumber == nil && fields.CPF == nil {
		return models.OutcomeManualReview
	}

	// Checksum results are recorded either way, but a blacklist hit
	// always wins the verdict: a known-bad number must surface as
	// blacklisted even when its check digits are also wrong.
	checksumOK := true
	if fields.CNHNumber != nil {
		valid := checksum.ValidateCNH(*fields.CNHNumber)
		updates["cnh_valid"] = valid
		checksumOK = checksumOK && valid
	}
	if fields.CPF != nil {
		valid := checksum.ValidateCPF(*fields.CPF)
		updates["cpf_valid"] = valid
		checksumOK = checksumOK && valid
	}

	if fields.CNHNumber != nil {
		hit, err := j.blacklist.IsBlacklisted(models.DocumentKindCNH, *fields.CNHNumber)
		if err != nil {
			log.Printf("Document processing: blacklist lookup failed for case %s: %v", vc.ID, err)
			return models.OutcomeManualReview
		}
		if hit {
			return models.OutcomeBlacklisted
		}
	}

	if !checksumOK {
		return models.OutcomeChecksumFailed
	}

	if fields.Expiry != nil {
		notExpired := fields.Expiry.After(time.Now().UTC())
		updates["not_expired"] = notExpired
		if !notExpired {
			return models.OutcomeExpired
		}
	}

	return models.OutcomePassed
}

// runFaceMatch fills the face match updates when both a selfie and the
// matching capability are present; otherwise the fields stay nil.
func (j *DocumentProcessingJob) runFaceMatch(vc *models.VerificationCase, updates map[string]interface{}) {
	if vc.SelfiePath == nil || strings.TrimSpace(*vc.SelfiePath) == "" {
		return
	}
	if !j.matcher.Available() {
		return
	}

	result, err := j.matcher.Match(*vc.SelfiePath, vc.FilePath)
	if err != nil {
		log.Printf("Document processing: face match failed for case %s: %v", vc.ID, err)
		return
	}
	updates["face_match"] = result.Match
	updates["face_match_confidence"] = result.Confidence
	if result.Reason != "" {
		updates["face_match_reason"] = result.Reason
	}
}
