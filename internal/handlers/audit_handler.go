package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/treinacnh/backend/internal/security/audit"
)

// AuditHandler exposes the append-only audit log to staff
type AuditHandler struct {
	Logger *audit.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(logger *audit.Logger) *AuditHandler {
	return &AuditHandler{Logger: logger}
}

// Export returns audit entries matching the query filters, newest first
func (h *AuditHandler) Export(c *gin.Context) {
	var filters audit.Filters

	if v := c.Query("actor_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid actor_id"})
			return
		}
		filters.ActorID = &id
	}
	if v := c.Query("subject_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subject_id"})
			return
		}
		filters.SubjectID = &id
	}
	filters.SubjectType = c.Query("subject_type")

	if v := c.Query("from"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid from timestamp, use RFC3339"})
			return
		}
		filters.From = &ts
	}
	if v := c.Query("to"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid to timestamp, use RFC3339"})
			return
		}
		filters.To = &ts
	}

	filters.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	filters.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	entries, err := h.Logger.Query(filters)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query audit log"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// SubjectTrail returns the full history of one subject, oldest first
func (h *AuditHandler) SubjectTrail(c *gin.Context) {
	subjectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subject ID"})
		return
	}

	subjectType := c.Query("subject_type")
	if subjectType == "" {
		subjectType = "verification_case"
	}

	entries, err := h.Logger.SubjectTrail(subjectType, subjectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load audit trail"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
