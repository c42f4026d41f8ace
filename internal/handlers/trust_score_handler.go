package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/treinacnh/backend/internal/services/trustscore"
)

// TrustScoreHandler exposes instructor trust scores
type TrustScoreHandler struct {
	Service *trustscore.Service
}

// NewTrustScoreHandler creates a new trust score handler
func NewTrustScoreHandler(svc *trustscore.Service) *TrustScoreHandler {
	return &TrustScoreHandler{Service: svc}
}

// Get returns the cached trust score for an instructor, computing it on
// a cache miss
func (h *TrustScoreHandler) Get(c *gin.Context) {
	instructorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid instructor ID"})
		return
	}

	score, err := h.Service.Get(c.Request.Context(), instructorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Instructor not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute trust score"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"instructor_id": instructorID,
		"trust_score":   score,
	})
}

// Refresh recomputes an instructor's score immediately
func (h *TrustScoreHandler) Refresh(c *gin.Context) {
	instructorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid instructor ID"})
		return
	}

	score, err := h.Service.Refresh(c.Request.Context(), instructorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Instructor not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to refresh trust score"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"instructor_id": instructorID,
		"trust_score":   score,
	})
}
