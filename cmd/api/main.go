package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	gormlogger "gorm.io/gorm/logger"

	"github.com/noah-isme/actionlog-api/internal/config"
	"github.com/noah-isme/actionlog-api/internal/database"
	"github.com/noah-isme/actionlog-api/internal/handler"
	"github.com/noah-isme/actionlog-api/internal/jobs"
	"github.com/noah-isme/actionlog-api/internal/lock"
	"github.com/noah-isme/actionlog-api/internal/middleware"
	"github.com/noah-isme/actionlog-api/internal/observability"
	"github.com/noah-isme/actionlog-api/internal/repository"
	"github.com/noah-isme/actionlog-api/internal/router"
	"github.com/noah-isme/actionlog-api/internal/service"
	cloud "github.com/noah-isme/actionlog-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Str("service", cfg.AppName).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gormLevel := gormlogger.Warn
	if level <= zerolog.DebugLevel {
		gormLevel = gormlogger.Info
	}
	db, err := database.ConnectPostgres(cfg.DatabaseURL, gormLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db, logger); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	checks := map[string]handler.Pinger{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	} else {
		logger.Warn().Msg("redis not configured; using in-process locks, caches and read state")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Drain()
	}

	var locker lock.Locker = lock.NewKeyedMutex()
	if redisClient != nil {
		locker = lock.NewRedisLocker(redisClient, cfg.RedisPrefix+":lock", cfg.LockTTL, logger)
	}

	var storage service.FileStorage
	cloudCfg := cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}
	if cloudCfg.Enabled() {
		uploader, err := cloud.New(cloudCfg, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create cloudinary client")
		}
		storage = uploader
	} else {
		logger.Warn().Msg("cloudinary not configured; attachment uploads disabled")
	}

	observability.RegisterMetrics()
	validate := service.NewValidator()

	actionLogRepo := repository.NewActionLogRepository(db)
	directoryRepo := repository.NewDirectoryRepository(db)

	hub := service.NewEventHub(service.NewEventPublisher(redisClient, natsConn, cfg.RedisPrefix, logger), redisClient, cfg.RedisPrefix, logger)
	hub.Start(ctx)

	directoryService := service.NewDirectoryService(directoryRepo, redisClient, cfg.RedisPrefix, cfg.DirectoryCacheTTL, logger)
	notificationService := service.NewNotificationService(repository.NewNotificationRepository(db), validate, logger)
	readTracker := service.NewReadTracker(redisClient, cfg.RedisPrefix, cfg.CommentReadTTL, logger)
	actionLogService := service.NewActionLogService(actionLogRepo, directoryService, locker, notificationService, hub, validate, service.WorkflowSettings{
		Location:    cfg.Location,
		LockTimeout: cfg.LockTimeout,
	}, logger)
	commentService := service.NewCommentService(actionLogRepo, repository.NewCommentRepository(db), directoryService, locker, readTracker, notificationService, hub, validate, cfg.LockTimeout, logger)
	attachmentService := service.NewAttachmentService(storage, repository.NewAttachmentRepository(db), actionLogRepo, directoryService, hub, cfg.MaxUploadSizeMB, logger)
	auditService := service.NewAuditService(repository.NewAuditRepository(db), actionLogRepo, directoryService, validate, logger)
	seedService := service.NewSeedService(directoryRepo, cfg.SeedEnabled, cfg.SeedToken, logger)

	if count, err := seedService.EnsureRoles(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to ensure default roles")
	} else {
		logger.Info().Int64("roles", count).Msg("default roles ensured")
	}

	reminder := jobs.NewDueDateReminder(actionLogRepo, notificationService, hub, cfg.ReminderSchedule, cfg.Location, logger)
	if err := reminder.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to schedule due date reminders")
	}
	defer reminder.Stop()

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.MaxUploadSizeMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{
		Logger:        &logger,
		AllowOrigins:  cfg.CORSOrigins,
		AccessLogging: !cfg.IsProduction(),
	})
	router.Register(app, cfg, router.Dependencies{
		ActionLogHandler:    handler.NewActionLogHandler(actionLogService, auditService, logger),
		CommentHandler:      handler.NewCommentHandler(commentService, logger),
		AttachmentHandler:   handler.NewAttachmentHandler(attachmentService, logger),
		DirectoryHandler:    handler.NewDirectoryHandler(directoryService, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, hub, 15*time.Second, logger),
		AuditHandler:        handler.NewAuditHandler(auditService, logger),
		SeedHandler:         handler.NewSeedHandler(seedService, directoryService, logger),
		Directory:           directoryService,
		HealthChecks:        checks,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	shutdown(app, logger)
}

func shutdown(app *fiber.App, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
