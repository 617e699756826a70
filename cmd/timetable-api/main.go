package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-timetable-api/api/swagger"
	"github.com/noah-isme/sma-timetable-api/internal/events"
	"github.com/noah-isme/sma-timetable-api/internal/handler"
	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/cache"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-timetable-api/pkg/storage"
)

const shutdownTimeout = 15 * time.Second

// @title SMA Timetable API
// @version 1.0.0
// @description Weekly timetable scheduling: placement validation, conflict detection, undo/redo and exports.
// @BasePath /api/v1
// @schemes http

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	validate := validator.New()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, conflict cache disabled", zap.Error(err))
	}
	cacheSvc := newCacheService(redisClient, metrics, cfg, logr)

	publisher := newPublisher(cfg, logr)
	defer publisher.Close() //nolint:errcheck

	entryRepo := repository.NewTimetableEntryRepository(db)
	loadRepo := repository.NewTeacherLoadRepository(db)
	constraintRepo := repository.NewTeacherConstraintRepository(db)
	facilityRepo := repository.NewFacilityRepository(db)
	structureRepo := repository.NewPeriodStructureRepository(db)
	calendarRepo := repository.NewCalendarRepository(db)

	timetableSvc := service.NewTimetableService(
		entryRepo,
		loadRepo,
		constraintRepo,
		facilityRepo,
		structureRepo,
		calendarRepo,
		cacheSvc,
		publisher,
		metrics,
		db,
		validate,
		logr,
		service.TimetableConfig{
			HistoryLimit:     cfg.Timetable.HistoryLimit,
			DefaultStructure: defaultStructure(cfg.Timetable),
			ConflictCacheTTL: cfg.Timetable.ConflictCacheTTL,
		},
	)
	if err := timetableSvc.Load(ctx); err != nil {
		logr.Fatal("failed to load timetable session", zap.Error(err))
	}

	structureSvc := service.NewPeriodStructureService(timetableSvc, structureRepo, validate, logr)
	constraintSvc := service.NewTeacherConstraintService(timetableSvc, constraintRepo, validate, logr)
	holidaySvc := service.NewHolidayService(
		calendarRepo,
		timetableSvc,
		db,
		&http.Client{Timeout: cfg.Timetable.ICSFetchTimeout},
		validate,
		logr,
		service.HolidayServiceConfig{Location: loadLocation(cfg.Timetable.Timezone, logr), FetchTimeout: cfg.Timetable.ICSFetchTimeout},
	)

	exportHandler, exportQueue := newExportHandler(ctx, cfg, db, timetableSvc, metrics, validate, logr)
	if exportQueue != nil {
		defer exportQueue.Stop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	registerRoutes(r, cfg, routeHandlers{
		timetable:   handler.NewTimetableHandler(timetableSvc),
		structure:   handler.NewPeriodStructureHandler(structureSvc),
		constraints: handler.NewTeacherConstraintHandler(constraintSvc),
		holidays:    handler.NewHolidayHandler(holidaySvc),
		exports:     exportHandler,
		metrics:     handler.NewMetricsHandler(metrics, timetableSvc),
	})

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
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}

func newCacheService(client *redis.Client, metrics *service.MetricsService, cfg *config.Config, logr *zap.Logger) *service.CacheService {
	if client == nil {
		return service.NewCacheService(nil, metrics, cfg.Timetable.ConflictCacheTTL, logr, false)
	}
	return service.NewCacheService(repository.NewCacheRepository(client, logr), metrics, cfg.Timetable.ConflictCacheTTL, logr, true)
}

func newPublisher(cfg *config.Config, logr *zap.Logger) events.Publisher {
	if !cfg.Events.Enabled {
		return events.NopPublisher{}
	}
	publisher, err := events.DialAMQP(cfg.Events.AMQPURL, cfg.Events.Queue, cfg.Events.PublishTimeout, logr)
	if err != nil {
		logr.Warn("rabbitmq unavailable, change events disabled", zap.Error(err))
		return events.NopPublisher{}
	}
	return publisher
}

func newExportHandler(
	ctx context.Context,
	cfg *config.Config,
	db *sqlx.DB,
	timetableSvc *service.TimetableService,
	metrics *service.MetricsService,
	validate *validator.Validate,
	logr *zap.Logger,
) (*handler.ExportHandler, *jobs.Queue) {
	files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare export storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(timetableSvc, files, signer, nil, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr)

	if !cfg.Exports.Enabled {
		return handler.NewExportHandler(exportSvc, nil), nil
	}

	jobRepo := repository.NewExportJobRepository(db)
	worker := service.NewExportWorker(jobRepo, exportSvc, metrics, cfg.Exports.WorkerRetries, logr)
	queue := jobs.NewQueue("exports", worker.Handle, jobs.QueueConfig{
		Workers:     cfg.Exports.WorkerConcurrency,
		MaxRetries:  cfg.Exports.WorkerRetries,
		RetryDelay:  2 * time.Second,
		Logger:      logr,
		OnExhausted: worker.Exhausted,
	})
	queue.Start(ctx)

	jobSvc := service.NewExportJobService(jobRepo, queue, exportSvc, metrics, validate, logr, service.ExportJobServiceConfig{
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
	})
	jobSvc.RecoverPendingJobs(ctx)
	jobSvc.StartCleanup(ctx)

	return handler.NewExportHandler(exportSvc, jobSvc), queue
}

func defaultStructure(cfg config.TimetableConfig) models.PeriodStructure {
	return models.PeriodStructure{
		WorkingDays:   cfg.WorkingDays,
		PeriodsPerDay: cfg.PeriodsPerDay,
		StartClock:    cfg.StartClock,
		PeriodMinutes: cfg.PeriodMinutes,
	}
}

func loadLocation(name string, logr *zap.Logger) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logr.Warn("unknown timezone, using UTC", zap.String("timezone", name), zap.Error(err))
		return time.UTC
	}
	return loc
}
