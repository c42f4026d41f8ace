package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/treinacnh/backend/internal/models"
	"github.com/treinacnh/backend/internal/services/blacklist"
)

// BlacklistHandler handles the staff-managed document blacklist
type BlacklistHandler struct {
	Service *blacklist.Service
}

// NewBlacklistHandler creates a new blacklist handler
func NewBlacklistHandler(svc *blacklist.Service) *BlacklistHandler {
	return &BlacklistHandler{Service: svc}
}

type addBlacklistRequest struct {
	Kind           models.DocumentKind    `json:"kind" binding:"required"`
	DocumentNumber string                 `json:"document_number" binding:"required"`
	Reason         models.BlacklistReason `json:"reason" binding:"required"`
	ExpiresAt      *time.Time             `json:"expires_at"`
}

// Add creates a new active blacklist entry
func (h *BlacklistHandler) Add(c *gin.Context) {
	staffID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req addBlacklistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind, document_number and reason are required"})
		return
	}

	entry, err := h.Service.AddEntry(req.Kind, req.DocumentNumber, req.Reason, &staffID, req.ExpiresAt)
	if err != nil {
		switch {
		case errors.Is(err, blacklist.ErrInvalidNumber):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid document number"})
		case errors.Is(err, blacklist.ErrInvalidReason):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid blacklist reason"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add blacklist entry"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"entry": entry})
}

// Deactivate retires an entry while keeping it for the historical record
func (h *BlacklistHandler) Deactivate(c *gin.Context) {
	staffID, ok := currentUserID(c)
	if !ok {
		return
	}

	entryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid entry ID"})
		return
	}

	if err := h.Service.Deactivate(entryID, staffID); err != nil {
		if errors.Is(err, blacklist.ErrEntryNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entry not found or already inactive"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deactivate entry"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Entry deactivated"})
}

// List returns blacklist entries, newest first
func (h *BlacklistHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	entries, err := h.Service.List(limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list entries"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
