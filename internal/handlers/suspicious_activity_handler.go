package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/treinacnh/backend/internal/services/compliance"
)

// SuspiciousActivityHandler exposes flagged-pattern records for staff triage
type SuspiciousActivityHandler struct {
	Service *compliance.Service
}

// NewSuspiciousActivityHandler creates a new suspicious activity handler
func NewSuspiciousActivityHandler(svc *compliance.Service) *SuspiciousActivityHandler {
	return &SuspiciousActivityHandler{Service: svc}
}

// ListUnreviewed returns open records, oldest first
func (h *SuspiciousActivityHandler) ListUnreviewed(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	records, err := h.Service.ListUnreviewed(limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list records"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"records": records})
}

// MarkReviewed closes a record after a staff member looked at it
func (h *SuspiciousActivityHandler) MarkReviewed(c *gin.Context) {
	staffID, ok := currentUserID(c)
	if !ok {
		return
	}

	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid record ID"})
		return
	}

	if err := h.Service.MarkReviewed(recordID, staffID); err != nil {
		if errors.Is(err, compliance.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Record not found or already reviewed"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark record reviewed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Record marked as reviewed"})
}
