package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/treinacnh/backend/internal/handlers"
	"github.com/treinacnh/backend/internal/middleware"
)

// RegisterVerificationRoutes registers document submission and status
// routes for authenticated instructors
func RegisterVerificationRoutes(router *gin.Engine, verificationHandler *handlers.VerificationHandler, rateLimiter *middleware.RateLimiter) {
	docGroup := router.Group("/api/documents")
	docGroup.Use(middleware.AuthMiddleware())
	{
		docGroup.POST("/", rateLimiter.UploadRateLimiterMiddleware(), verificationHandler.SubmitDocument)
		docGroup.GET("/status", verificationHandler.GetMyStatus)
	}
}

// RegisterReviewRoutes registers the staff review queue and decision routes
func RegisterReviewRoutes(router *gin.Engine, verificationHandler *handlers.VerificationHandler, suspiciousHandler *handlers.SuspiciousActivityHandler) {
	reviewGroup := router.Group("/api/admin/verification")
	reviewGroup.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
	{
		reviewGroup.GET("/pending", verificationHandler.ListPending)
		reviewGroup.GET("/cases/:id", verificationHandler.GetCase)
		reviewGroup.POST("/cases/:id/approve", verificationHandler.Approve)
		reviewGroup.POST("/cases/:id/reject", verificationHandler.Reject)
		reviewGroup.POST("/bulk/approve", verificationHandler.BulkApprove)
		reviewGroup.POST("/bulk/reject", verificationHandler.BulkReject)
	}

	activityGroup := router.Group("/api/admin/suspicious-activity")
	activityGroup.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
	{
		activityGroup.GET("/", suspiciousHandler.ListUnreviewed)
		activityGroup.POST("/:id/review", suspiciousHandler.MarkReviewed)
	}
}

// RegisterBlacklistRoutes registers staff blacklist management routes
func RegisterBlacklistRoutes(router *gin.Engine, blacklistHandler *handlers.BlacklistHandler) {
	blacklistGroup := router.Group("/api/admin/blacklist")
	blacklistGroup.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
	{
		blacklistGroup.GET("/", blacklistHandler.List)
		blacklistGroup.POST("/", blacklistHandler.Add)
		blacklistGroup.DELETE("/:id", blacklistHandler.Deactivate)
	}
}

// RegisterAuditRoutes registers staff audit log routes
func RegisterAuditRoutes(router *gin.Engine, auditHandler *handlers.AuditHandler) {
	auditGroup := router.Group("/api/admin/audit")
	auditGroup.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
	{
		auditGroup.GET("/", auditHandler.Export)
		auditGroup.GET("/subjects/:id", auditHandler.SubjectTrail)
	}
}

// RegisterTrustScoreRoutes registers trust score routes. Reads are open
// to any authenticated caller; forced refresh is staff only.
func RegisterTrustScoreRoutes(router *gin.Engine, trustScoreHandler *handlers.TrustScoreHandler) {
	scoreGroup := router.Group("/api/instructors")
	scoreGroup.Use(middleware.AuthMiddleware())
	{
		scoreGroup.GET("/:id/trust-score", trustScoreHandler.Get)
	}

	adminScoreGroup := router.Group("/api/admin/instructors")
	adminScoreGroup.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
	{
		adminScoreGroup.POST("/:id/trust-score/refresh", trustScoreHandler.Refresh)
	}
}

// RegisterHealthRoutes registers liveness endpoints
func RegisterHealthRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().UTC(),
		})
	})
}
