package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	openai "github.com/sashabaranov/go-openai"
	"gorm.io/gorm"

	"github.com/mescobar996/testcraft-ai-sub000/api"
	"github.com/mescobar996/testcraft-ai-sub000/cache"
	"github.com/mescobar996/testcraft-ai-sub000/config"
	"github.com/mescobar996/testcraft-ai-sub000/database"
	"github.com/mescobar996/testcraft-ai-sub000/middleware"
	"github.com/mescobar996/testcraft-ai-sub000/models"
	"github.com/mescobar996/testcraft-ai-sub000/ratelimit"
	"github.com/mescobar996/testcraft-ai-sub000/repository"
	"github.com/mescobar996/testcraft-ai-sub000/services"
)

func main() {
	// Load application configuration
	config.LoadConfig()

	// Initialize database connection
	db, err := database.Init()
	if err != nil {
		log.Fatalf("FATAL: [Main] Failed to initialize database: %v", err)
	}

	// Auto-migrate database schema
	runMigrations(db)

	// Initialize repositories
	quotaRepo := repository.NewQuotaRepository(db)
	trialRepo := repository.NewTrialRepository(db)
	userRepo := repository.NewUserRepository(db)
	log.Println("INFO: [Main] Repositories initialized.")

	// Process-wide shared state: rate limiter and generation cache, owned
	// here so their sweep goroutines stop with the process.
	limiter := ratelimit.New(
		time.Duration(config.AppConfig.RateLimit.WindowMinutes)*time.Minute,
		time.Duration(config.AppConfig.RateLimit.SweepMinutes)*time.Minute,
	)
	defer limiter.Stop()
	genCache := cache.New(
		time.Duration(config.AppConfig.Cache.TTLHours)*time.Hour,
		time.Duration(config.AppConfig.Cache.SweepMinutes)*time.Minute,
	)
	defer genCache.Stop()

	// Initialize services
	entitlementService := services.NewEntitlementService(
		userRepo,
		trialRepo,
		quotaRepo,
		config.AppConfig.Quota.AnonymousPerDay,
		config.AppConfig.Quota.FreePerMonth,
		time.Duration(config.AppConfig.Trial.Days)*24*time.Hour,
	)
	generationService := services.NewGenerationService(
		entitlementService,
		limiter,
		genCache,
		newLLMClient(config.AppConfig.LLM),
		config.AppConfig.LLM.Model,
		config.AppConfig.LLM.MaxTokens,
		time.Duration(config.AppConfig.LLM.TimeoutSeconds)*time.Second,
		config.AppConfig.RateLimit.AnonymousPerHour,
		config.AppConfig.RateLimit.AuthenticatedPerHour,
	)
	log.Println("INFO: [Main] Services initialized.")

	apiHandler := api.NewAPIHandler(entitlementService, generationService)
	log.Println("INFO: [Main] API Handler initialized.")

	// Create Gin engine
	r := gin.Default()
	r.SetTrustedProxies(nil)

	// Register middlewares
	r.Use(middleware.Logger())
	r.Use(middleware.Cors())
	log.Println("INFO: [Main] Middlewares registered.")

	registerRoutes(r, apiHandler)
	log.Println("INFO: [Main] Routes registered.")

	serverPort := ":" + config.AppConfig.Server.Port
	if config.AppConfig.Server.Port == "" {
		log.Println("WARN: [Main] Server port not configured, using default :8080.")
		serverPort = ":8080"
	}

	srv := &http.Server{Addr: serverPort, Handler: r}
	go func() {
		log.Printf("INFO: [Main] Starting server on port %s", serverPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: [Main] Server failed to start: %v", err)
		}
	}()

	// Block until interrupted, then drain in-flight requests before the
	// deferred limiter/cache Stop calls run.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("INFO: [Main] Shutdown signal received.")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: [Main] Server shutdown failed: %v", err)
	}
	log.Println("INFO: [Main] Server stopped.")
}

func newLLMClient(cfg config.LLMConfig) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientConfig)
}

func runMigrations(db *gorm.DB) {
	log.Println("INFO: [Main] Running database migrations...")
	err := db.AutoMigrate(
		&models.QuotaCounter{},
		&models.TrialRecord{},
		&models.User{},
	)
	if err != nil {
		log.Fatalf("FATAL: [Main] Failed to auto-migrate database: %v", err)
	}
	log.Println("INFO: [Main] Database migration completed.")
}

func registerRoutes(r *gin.Engine, handler *api.APIHandler) {
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/init", handler.InitHandler)
		apiGroup.POST("/generate", handler.GenerateHandler)
		apiGroup.GET("/entitlement", handler.EntitlementHandler)

		trialGroup := apiGroup.Group("/trial")
		{
			trialGroup.POST("/start", handler.StartTrialHandler)
		}

		adminGroup := apiGroup.Group("/admin")
		adminGroup.Use(middleware.AdminAuth(config.AppConfig.Admin.Token))
		{
			adminGroup.POST("/trial/reset", handler.AdminResetTrialHandler)
		}
	}
}
