package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/masedocs/mase-audit-api/api/swagger"
	"github.com/masedocs/mase-audit-api/internal/handler"
	"github.com/masedocs/mase-audit-api/internal/middleware"
	"github.com/masedocs/mase-audit-api/internal/models"
	"github.com/masedocs/mase-audit-api/internal/repository"
	"github.com/masedocs/mase-audit-api/internal/service"
	"github.com/masedocs/mase-audit-api/pkg/cache"
	"github.com/masedocs/mase-audit-api/pkg/config"
	"github.com/masedocs/mase-audit-api/pkg/database"
	"github.com/masedocs/mase-audit-api/pkg/jobs"
	"github.com/masedocs/mase-audit-api/pkg/logger"
	corsmiddleware "github.com/masedocs/mase-audit-api/pkg/middleware/cors"
	reqidmiddleware "github.com/masedocs/mase-audit-api/pkg/middleware/requestid"
	"github.com/masedocs/mase-audit-api/pkg/storage"
)

// @title MASE Audit API
// @version 1.0.0
// @description Compliance audit backend for the MASE referential
// @BasePath /api/v1
// @schemes http https

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("postgres connection failed", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, cache and mirrors degraded", "error", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	objects, err := storage.NewObjectStore(ctx, cfg.Storage)
	if err != nil {
		logr.Sugar().Fatalw("object store init failed", "error", err)
	}

	userRepo := repository.NewUserRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	generationRepo := repository.NewGenerationRepository(db)
	referentialRepo := repository.NewReferentialRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.Enabled)

	authSvc := service.NewAuthService(userRepo, cacheRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		ResetCodeTTL:       cfg.JWT.ResetCodeTTL,
		Issuer:             "mase-audit-api",
	})

	onboardingSvc := service.NewOnboardingService(profileRepo, userRepo, validate, logr)

	auditHistorySvc := service.NewAuditHistoryService(service.AuditHistoryParams{
		Audits:     auditRepo,
		KeyDocs:    referentialRepo,
		Mirror:     cacheRepo,
		Objects:    objects,
		Actions:    userRepo,
		Validator:  validate,
		Logger:     logr,
		MirrorSize: cfg.History.MirrorSize,
		MirrorTTL:  cfg.History.MirrorTTL,
	})

	generationHistorySvc := service.NewGenerationHistoryService(service.GenerationHistoryParams{
		Generations: generationRepo,
		Audits:      auditRepo,
		Mirror:      cacheRepo,
		Objects:     objects,
		Validator:   validate,
		Logger:      logr,
		MirrorSize:  cfg.History.MirrorSize,
		MirrorTTL:   cfg.History.MirrorTTL,
	})

	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Audits:            auditRepo,
		Generations:       generationRepo,
		Profiles:          profileRepo,
		Cache:             cacheSvc,
		Logger:            logr,
		CacheTTL:          cfg.Dashboard.CacheTTL,
		StaleAuditAfter:   cfg.Dashboard.StaleAuditAfter,
		ConformityTarget:  cfg.Dashboard.ConformityTarget,
		HighPriorityBelow: cfg.Dashboard.HighPriorityBelow,
		MaxActions:        cfg.Dashboard.MaxPriorityActions,
		ActivityLimit:     cfg.Dashboard.ActivityFeedLimit,
	})

	registrySvc := service.NewRegistryService(cacheRepo, logr, cfg.Registry.RetentionDays)
	referentialSvc := service.NewReferentialService(referentialRepo, cacheSvc, logr)

	var reportSvc *service.ReportService
	reportQueue := jobs.NewQueue("report-exports", func(jobCtx context.Context, job jobs.Job) error {
		return reportSvc.Handle(jobCtx, job)
	}, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		Logger:     logr,
	})
	reportSvc = service.NewReportService(reportRepo, auditRepo, reportQueue, objects, validate, logr, service.ReportServiceConfig{
		SignedURLTTL: cfg.Reports.SignedURLTTL,
	})
	reportQueue.Start(ctx)
	defer reportQueue.Stop()

	authHandler := handler.NewAuthHandler(authSvc)
	onboardingHandler := handler.NewOnboardingHandler(onboardingSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	auditHandler := handler.NewAuditHandler(auditHistorySvc, registrySvc, dashboardSvc)
	generationHandler := handler.NewGenerationHandler(generationHistorySvc, registrySvc)
	registryHandler := handler.NewRegistryHandler(registrySvc)
	historyHandler := handler.NewHistoryHandler(auditHistorySvc, generationHistorySvc, registrySvc, dashboardSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	referentialHandler := handler.NewReferentialHandler(referentialSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin), metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.GET("/callback", authHandler.Callback)
		auth.POST("/reset-password", authHandler.ResetPassword)

		authSession := auth.Group("", middleware.JWT(authSvc))
		authSession.POST("/logout", authHandler.Logout)
		authSession.POST("/change-password", authHandler.ChangePassword)
		authSession.GET("/me", authHandler.Me)
	}

	referential := api.Group("/referential")
	{
		referential.GET("/chapters", referentialHandler.Chapters)
		referential.GET("/chapters/:id/criteria", referentialHandler.Criteria)
		referential.GET("/key-documents", referentialHandler.KeyDocuments)
		referential.GET("/key-documents/:id/content", referentialHandler.KeyDocumentContent)
	}

	protected := api.Group("", middleware.JWT(authSvc), middleware.OnboardingFlag(onboardingSvc))
	{
		protected.GET("/onboarding", onboardingHandler.Status)
		protected.POST("/onboarding", onboardingHandler.Submit)
		protected.DELETE("/onboarding/:userId", middleware.RequireRoles(models.RoleAdmin), onboardingHandler.Reset)

		protected.GET("/dashboard", dashboardHandler.Overview)

		protected.GET("/audits", auditHandler.History)
		protected.POST("/audits", auditHandler.Start)
		protected.GET("/audits/latest", auditHandler.Latest)
		protected.GET("/audits/:id", auditHandler.Session)
		protected.POST("/audits/:id/documents", auditHandler.UploadDocument)
		protected.POST("/audits/:id/documents/:documentId/result", auditHandler.SubmitDocumentResult)
		protected.POST("/audits/:id/complete", auditHandler.Complete)

		protected.GET("/generations", generationHandler.History)
		protected.POST("/generations", middleware.ActionTrail(userRepo, "generation.start", "generations"), generationHandler.Start)
		protected.GET("/generations/latest", generationHandler.Latest)
		protected.POST("/generations/:id/documents", generationHandler.AddDocument)
		protected.POST("/generations/:id/complete", middleware.ActionTrail(userRepo, "generation.complete", "generations"), generationHandler.Complete)

		protected.GET("/registry", registryHandler.List)
		protected.DELETE("/registry", registryHandler.Remove)
		protected.DELETE("/history", historyHandler.Clear)

		if cfg.Reports.Enabled {
			protected.POST("/reports/exports", middleware.ActionTrail(userRepo, "report.export", "reports"), reportHandler.CreateExport)
			protected.GET("/reports/exports/:id", reportHandler.Status)
		}
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
