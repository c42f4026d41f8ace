package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron"
	"github.com/go-redis/redis/v8"

	"github.com/treinacnh/backend/internal/config"
	"github.com/treinacnh/backend/internal/database"
	"github.com/treinacnh/backend/internal/handlers"
	"github.com/treinacnh/backend/internal/jobs"
	"github.com/treinacnh/backend/internal/middleware"
	"github.com/treinacnh/backend/internal/queue"
	"github.com/treinacnh/backend/internal/routes"
	"github.com/treinacnh/backend/internal/security/audit"
	"github.com/treinacnh/backend/internal/services/blacklist"
	"github.com/treinacnh/backend/internal/services/compliance"
	"github.com/treinacnh/backend/internal/services/extraction"
	"github.com/treinacnh/backend/internal/services/facematch"
	"github.com/treinacnh/backend/internal/services/trustscore"
	"github.com/treinacnh/backend/internal/services/verification"
)

func main() {
	cfg := config.LoadConfig()

	db, err := database.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	// Optional capabilities: the pipeline degrades to manual review when
	// OCR is absent, and to "not evaluated" when face matching is absent
	var engine *extraction.Engine
	if cfg.OCR.Enabled {
		ocrClient, err := extraction.NewTesseractCLI(cfg.OCR.Lang)
		if err != nil {
			log.Printf("OCR disabled: %v", err)
		} else {
			engine = extraction.NewEngine(ocrClient, cfg.OCR.Preprocess)
		}
	}

	var matcher *facematch.Matcher
	if cfg.FaceMatch.Enabled {
		matcher = facematch.NewMatcher(facematch.NewHTTPFaceClient(cfg.FaceMatch.ServiceURL))
	}

	// Services
	auditLogger := audit.NewLogger(db)
	blacklistService := blacklist.NewService(db, auditLogger)
	complianceService := compliance.NewService(db, auditLogger)
	trustScoreService := trustscore.NewService(db, redisClient)

	jobQueue := queue.NewQueue(db, cfg.Worker.Count)
	verificationService := verification.NewService(db, jobQueue, auditLogger, complianceService, trustScoreService)

	processingJob := jobs.NewDocumentProcessingJob(db, engine, matcher, blacklistService, complianceService, auditLogger)
	processingJob.RegisterHandlers(jobQueue)
	jobQueue.Start()

	// Daily trust score refresh so the account-age bonus lands without a
	// triggering event
	scheduler := gocron.NewScheduler(time.UTC)
	if _, err := scheduler.Every(1).Day().At("03:00").Do(func() {
		if err := trustScoreService.RefreshAll(context.Background()); err != nil {
			log.Printf("Trust score refresh failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("Failed to schedule trust score refresh: %v", err)
	}
	scheduler.StartAsync()

	// Handlers
	verificationHandler := handlers.NewVerificationHandler(verificationService, cfg.Upload.Dir)
	blacklistHandler := handlers.NewBlacklistHandler(blacklistService)
	suspiciousHandler := handlers.NewSuspiciousActivityHandler(complianceService)
	auditHandler := handlers.NewAuditHandler(auditLogger)
	trustScoreHandler := handlers.NewTrustScoreHandler(trustScoreService)

	rateLimiter := middleware.NewRateLimiter(20, 10, 40, 5)

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(rateLimiter.IPRateLimiterMiddleware())
	router.MaxMultipartMemory = handlers.MaxDocumentUploadBytes

	routes.RegisterHealthRoutes(router)
	routes.RegisterVerificationRoutes(router, verificationHandler, rateLimiter)
	routes.RegisterReviewRoutes(router, verificationHandler, suspiciousHandler)
	routes.RegisterBlacklistRoutes(router, blacklistHandler)
	routes.RegisterAuditRoutes(router, auditHandler)
	routes.RegisterTrustScoreRoutes(router, trustScoreHandler)

	srv := startServer(router, cfg.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	scheduler.Stop()
	jobQueue.Stop()
	rateLimiter.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}

// startServer starts the HTTP server
func startServer(router *gin.Engine, port string) *http.Server {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Server started on port %s", port)
	return srv
}
