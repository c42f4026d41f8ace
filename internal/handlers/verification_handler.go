package handlers

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/treinacnh/backend/internal/models"
	"github.com/treinacnh/backend/internal/services/verification"
	"github.com/treinacnh/backend/internal/utils"
)

// MaxDocumentUploadBytes caps a single uploaded document or selfie
const MaxDocumentUploadBytes = 10 << 20 // 10 MB

// VerificationHandler handles document submission and reviewer decisions
type VerificationHandler struct {
	Service    *verification.Service
	UploadsDir string
}

// NewVerificationHandler creates a new verification handler
func NewVerificationHandler(svc *verification.Service, uploadsDir string) *VerificationHandler {
	if uploadsDir == "" {
		uploadsDir = filepath.Join("uploads", "documents")
	}
	os.MkdirAll(uploadsDir, 0755)

	return &VerificationHandler{
		Service:    svc,
		UploadsDir: uploadsDir,
	}
}

// SubmitDocument accepts a multipart upload with a declared document kind
// and an optional selfie, and opens a new verification case
func (h *VerificationHandler) SubmitDocument(c *gin.Context) {
	instructorID, ok := currentUserID(c)
	if !ok {
		return
	}

	kind := models.DocumentKind(c.PostForm("kind"))
	if !kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid document kind"})
		return
	}

	file, err := c.FormFile("document")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Document file is required"})
		return
	}
	docPath, err := h.saveUpload(c, file, instructorID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var selfiePath *string
	if selfie, err := c.FormFile("selfie"); err == nil {
		p, err := h.saveUpload(c, selfie, instructorID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		selfiePath = &p
	}

	vc, err := h.Service.SubmitDocument(instructorID, kind, docPath, selfiePath)
	if err != nil {
		switch {
		case errors.Is(err, verification.ErrInvalidDocumentKind):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid document kind"})
		case errors.Is(err, verification.ErrInstructorNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Instructor not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit document"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Document submitted for verification",
		"case": gin.H{
			"id":           vc.ID,
			"kind":         vc.Kind,
			"status":       vc.Status,
			"submitted_at": vc.SubmittedAt,
		},
	})
}

func (h *VerificationHandler) saveUpload(c *gin.Context, file *multipart.FileHeader, instructorID uuid.UUID) (string, error) {
	if file.Size > MaxDocumentUploadBytes {
		return "", fmt.Errorf("file %s exceeds the %d MB limit", file.Filename, MaxDocumentUploadBytes>>20)
	}
	if !utils.AllowedDocumentExt(file.Filename) {
		return "", fmt.Errorf("file type not allowed, use pdf, jpg, jpeg or png")
	}

	dir := filepath.Join(h.UploadsDir, instructorID.String())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to prepare upload directory")
	}

	ext := filepath.Ext(file.Filename)
	dest := filepath.Join(dir, uuid.NewString()+ext)
	if err := c.SaveUploadedFile(file, dest); err != nil {
		return "", fmt.Errorf("failed to store uploaded file")
	}
	return dest, nil
}

// GetMyStatus returns the caller's cases with a plain-language summary of
// the automated checks. The summary never implies a decision: only the
// reviewer's verdict is authoritative.
func (h *VerificationHandler) GetMyStatus(c *gin.Context) {
	instructorID, ok := currentUserID(c)
	if !ok {
		return
	}

	cases, err := h.Service.ListByInstructor(instructorID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load cases"})
		return
	}

	out := make([]gin.H, 0, len(cases))
	for i := range cases {
		vc := &cases[i]
		out = append(out, gin.H{
			"id":           vc.ID,
			"kind":         vc.Kind,
			"status":       vc.Status,
			"submitted_at": vc.SubmittedAt,
			"decided_at":   vc.DecidedAt,
			"summary":      advisorySummary(vc),
		})
	}
	c.JSON(http.StatusOK, gin.H{"cases": out})
}

// advisorySummary renders the automated check results for uploaders
func advisorySummary(vc *models.VerificationCase) []string {
	if vc.ExtractionProcessedAt == nil {
		return []string{"automated checks have not run yet"}
	}

	var lines []string
	switch {
	case vc.CNHValid == nil:
		lines = append(lines, "license number: could not verify automatically")
	case *vc.CNHValid:
		lines = append(lines, "license number: verified")
	default:
		lines = append(lines, "license number: did not pass the automated check")
	}

	if vc.CPFValid != nil {
		if *vc.CPFValid {
			lines = append(lines, "CPF: verified")
		} else {
			lines = append(lines, "CPF: did not pass the automated check")
		}
	}

	if vc.NotExpired != nil && !*vc.NotExpired {
		lines = append(lines, "document appears to be expired")
	}

	switch {
	case vc.FaceMatch == nil:
		lines = append(lines, "photo comparison: not evaluated")
	case *vc.FaceMatch:
		lines = append(lines, "photo comparison: matched")
	default:
		lines = append(lines, "photo comparison: could not confirm a match")
	}

	lines = append(lines, "a reviewer will make the final decision")
	return lines
}

// ListPending returns the review queue, oldest submission first
func (h *VerificationHandler) ListPending(c *gin.Context) {
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	cursor := c.Query("cursor")

	cases, next, err := h.Service.ListPending(pageSize, cursor)
	if err != nil {
		if errors.Is(err, verification.ErrInvalidCursor) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cursor"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list pending cases"})
		return
	}

	now := time.Now().UTC()
	out := make([]gin.H, 0, len(cases))
	for i := range cases {
		vc := &cases[i]
		out = append(out, gin.H{
			"id":                    vc.ID,
			"instructor_id":         vc.InstructorID,
			"kind":                  vc.Kind,
			"submitted_at":          vc.SubmittedAt,
			"days_waiting":          vc.DaysWaiting(now),
			"outcome":               vc.Outcome,
			"extraction_confidence": vc.ExtractionConfidence,
			"face_match":            vc.FaceMatch,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"cases":       out,
		"next_cursor": next,
	})
}

// GetCase returns one case with its full audit trail, for the review UI
func (h *VerificationHandler) GetCase(c *gin.Context) {
	caseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid case ID"})
		return
	}

	vc, trail, err := h.Service.GetCase(caseID)
	if err != nil {
		if errors.Is(err, verification.ErrCaseNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Case not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load case"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"case":        vc,
		"audit_trail": trail,
	})
}

type decisionRequest struct {
	Notes string `json:"notes"`
}

// Approve approves a pending case
func (h *VerificationHandler) Approve(c *gin.Context) {
	h.decide(c, h.Service.Approve)
}

// Reject rejects a pending case; notes are mandatory
func (h *VerificationHandler) Reject(c *gin.Context) {
	h.decide(c, h.Service.Reject)
}

func (h *VerificationHandler) decide(c *gin.Context, decideFn func(ctx context.Context, caseID, reviewerID uuid.UUID, notes string) error) {
	reviewerID, ok := currentUserID(c)
	if !ok {
		return
	}

	caseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid case ID"})
		return
	}

	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := decideFn(c.Request.Context(), caseID, reviewerID, req.Notes); err != nil {
		switch {
		case errors.Is(err, verification.ErrCaseNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Case not found"})
		case errors.Is(err, verification.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": "Case has already been decided"})
		case errors.Is(err, verification.ErrValidationRequired):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Rejection notes are required"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record decision"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Decision recorded"})
}

type bulkDecisionRequest struct {
	CaseIDs []uuid.UUID `json:"case_ids" binding:"required"`
	Notes   string      `json:"notes"`
}

// BulkApprove approves every listed case that is still pending
func (h *VerificationHandler) BulkApprove(c *gin.Context) {
	h.bulkDecide(c, h.Service.BulkApprove)
}

// BulkReject rejects every listed pending case with shared notes
func (h *VerificationHandler) BulkReject(c *gin.Context) {
	h.bulkDecide(c, h.Service.BulkReject)
}

func (h *VerificationHandler) bulkDecide(c *gin.Context, decideFn func(ctx context.Context, caseIDs []uuid.UUID, reviewerID uuid.UUID, notes string) (int, error)) {
	reviewerID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req bulkDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "case_ids is required"})
		return
	}

	decided, err := decideFn(c.Request.Context(), req.CaseIDs, reviewerID, req.Notes)
	if err != nil {
		if errors.Is(err, verification.ErrValidationRequired) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Rejection notes are required"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process batch", "decided": decided})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"decided": decided,
		"skipped": len(req.CaseIDs) - decided,
	})
}

// currentUserID pulls the authenticated user's id from the gin context
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return uuid.Nil, false
	}
	return id, true
}
