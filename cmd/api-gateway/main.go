package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-discipline-api/api/swagger"
	"github.com/noah-isme/sma-discipline-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-discipline-api/internal/middleware"
	"github.com/noah-isme/sma-discipline-api/internal/models"
	"github.com/noah-isme/sma-discipline-api/internal/repository"
	"github.com/noah-isme/sma-discipline-api/internal/service"
	"github.com/noah-isme/sma-discipline-api/pkg/cache"
	"github.com/noah-isme/sma-discipline-api/pkg/config"
	"github.com/noah-isme/sma-discipline-api/pkg/database"
	"github.com/noah-isme/sma-discipline-api/pkg/jobs"
	"github.com/noah-isme/sma-discipline-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-discipline-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-discipline-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-discipline-api/pkg/storage"
)

// @title SMA Discipline API
// @version 1.0.0
// @description Violation and award point ledgers with semester reset
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, ledger cache disabled", "error", err)
		redisClient = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	validate := validator.New()
	metrics := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	classRepo := repository.NewClassRepository(db)
	yearRepo := repository.NewSchoolYearRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	regulationRepo := repository.NewRegulationRepository(db)
	violationRepo := repository.NewViolationRepository(db)
	awardRepo := repository.NewAwardRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db, cfg.Ledger.SnapshotReadsOnly, metrics)
	reportRepo := repository.NewReportRepository(db)
	configRepo := repository.NewConfigurationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	policies := service.NewPolicyService(models.ResetPolicy{
		Threshold:    cfg.Ledger.ResetThreshold,
		CarryMode:    models.CarryMode(cfg.Ledger.CarryMode),
		CarryPercent: cfg.Ledger.CarryPercent,
	}, configRepo, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.LedgerTTL, logr, cfg.Cache.Enabled && redisClient != nil)
	ledgers := service.NewLedgerService(
		studentRepo,
		classRepo,
		yearRepo,
		enrollmentRepo,
		ledgerRepo,
		policies,
		cacheSvc,
		metrics,
		logr,
		service.LedgerServiceConfig{ClassConcurrency: cfg.Ledger.ClassConcurrency, CacheTTL: cfg.Cache.LedgerTTL},
	)

	configSvc := service.NewConfigurationService(configRepo, yearRepo, userRepo, ledgers, validate, logr, service.ConfigurationServiceConfig{
		Defaults: map[string]string{
			models.ConfigKeyActiveSchoolYear: cfg.Configuration.ActiveSchoolYear,
			models.ConfigKeyResetThreshold:   strconv.Itoa(cfg.Ledger.ResetThreshold),
			models.ConfigKeyCarryMode:        cfg.Ledger.CarryMode,
			models.ConfigKeyCarryPercent:     strconv.Itoa(cfg.Ledger.CarryPercent),
		},
	})
	years := service.NewSchoolYearResolver(yearRepo, configSvc)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		SingleSession:      cfg.JWT.SingleSession,
	})
	regulationSvc := service.NewRegulationService(regulationRepo, userRepo, validate, logr)
	violationSvc := service.NewViolationService(violationRepo, studentRepo, regulationRepo, years, ledgers, userRepo, validate, logr)
	awardSvc := service.NewAwardService(awardRepo, studentRepo, regulationRepo, years, ledgers, userRepo, validate, logr)

	var reportHandler *handler.ReportHandler
	if cfg.Reports.Enabled {
		files, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("report storage init failed", "dir", cfg.Reports.StorageDir, "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		exporter := service.NewExportService(ledgers, files, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Reports.SignedURLTTL,
		}, logr)

		worker := service.NewReportWorker(reportRepo, exporter, cfg.Reports.WorkerRetries, metrics, logr)
		queue := jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			RetryDelay: 2 * time.Second,
			Logger:     logr,
			Observer: func(job jobs.Job, err error, took time.Duration) {
				logr.Debug("report job handled",
					zap.String("job_id", job.ID),
					zap.Int("attempt", job.Attempt),
					zap.Duration("took", took),
					zap.Error(err))
			},
		})
		queue.Start(ctx)
		defer queue.Stop()

		reports := service.NewReportService(reportRepo, classRepo, queue, exporter, logr, service.ReportServiceConfig{
			ResultTTL:       cfg.Reports.SignedURLTTL,
			CleanupInterval: cfg.Reports.CleanupInterval,
		})
		reports.RecoverPendingJobs(ctx)
		go reports.StartCleanup(ctx)

		reportHandler = handler.NewReportHandler(reports, logr)
	}

	metricsHandler := handler.NewMetricsHandler(metrics, map[string]handler.ReadinessCheck{
		"database": db.PingContext,
		"cache":    cacheRepo.Ping,
	})
	summaryHandler := handler.NewViolationSummaryHandler(ledgers)
	regulationHandler := handler.NewRegulationHandler(regulationSvc)
	violationHandler := handler.NewViolationHandler(violationSvc)
	awardHandler := handler.NewAwardHandler(awardSvc)
	authHandler := handler.NewAuthHandler(authSvc)
	configHandler := handler.NewConfigurationHandler(configSvc, ledgers)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics, "/metrics", "/health", "/ready"))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.WithResponseMeta())

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", internalmiddleware.JWT(authSvc), authHandler.Logout)
	auth.GET("/me", internalmiddleware.JWT(authSvc), authHandler.Me)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(authSvc))

	staff := internalmiddleware.RBAC(internalmiddleware.StaffRoles...)
	discipline := internalmiddleware.RBAC(internalmiddleware.DisciplineRoles...)
	admin := internalmiddleware.RBAC(internalmiddleware.AdminRoles...)

	summary := secured.Group("/violation-summary", staff)
	summary.GET("/semester", summaryHandler.Semester)
	summary.GET("/yearly", summaryHandler.Yearly)
	summary.GET("/class", summaryHandler.Class)

	regulations := secured.Group("/regulations")
	regulations.GET("", staff, regulationHandler.List)
	regulations.GET("/:id", staff, regulationHandler.Get)
	regulations.POST("", admin, regulationHandler.Create)
	regulations.PUT("/:id", admin, regulationHandler.Update)
	regulations.DELETE("/:id", admin, regulationHandler.Deactivate)

	violations := secured.Group("/violations")
	violations.GET("", staff, violationHandler.List)
	violations.GET("/:id", staff, violationHandler.Get)
	violations.POST("", staff, violationHandler.Create)
	violations.PUT("/:id", discipline, violationHandler.Update)
	violations.DELETE("/:id", discipline, violationHandler.Delete)

	awards := secured.Group("/awards")
	awards.GET("", staff, awardHandler.List)
	awards.GET("/:id", staff, awardHandler.Get)
	awards.POST("", staff, awardHandler.Propose)
	awards.POST("/:id/approve", discipline, awardHandler.Approve)
	awards.POST("/:id/reject", discipline, awardHandler.Reject)
	awards.DELETE("/:id", discipline, awardHandler.Delete)

	if reportHandler != nil {
		secured.POST("/reports/generate", staff, internalmiddleware.Audit(userRepo, logr, "REPORT_GENERATE", "report"), reportHandler.GenerateReport)
		secured.GET("/reports/:id", staff, reportHandler.ReportStatus)
		api.GET("/export/:token", internalmiddleware.OptionalJWT(authSvc), internalmiddleware.Audit(userRepo, logr, "REPORT_DOWNLOAD", "report"), reportHandler.DownloadReport)
	}

	if cfg.Configuration.Enabled {
		configuration := secured.Group("/configuration", admin)
		configuration.GET("", configHandler.List)
		configuration.PUT("", configHandler.BulkUpdate)
		configuration.GET("/policy", configHandler.Policy)
		configuration.GET("/:key", configHandler.Get)
		configuration.PUT("/:key", configHandler.Update)
	}

	secured.GET("/admin/metrics", admin, metricsHandler.Snapshot)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
