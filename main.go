// Package main provides the entry point for the freight bidding api, award engine and archiver
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/amirphl/freight-bidding/app/handlers"
	"github.com/amirphl/freight-bidding/app/middleware"
	"github.com/amirphl/freight-bidding/app/router"
	"github.com/amirphl/freight-bidding/app/scheduler"
	"github.com/amirphl/freight-bidding/app/services"
	businessflow "github.com/amirphl/freight-bidding/business_flow"
	"github.com/amirphl/freight-bidding/config"
	"github.com/amirphl/freight-bidding/repository"
	"github.com/amirphl/freight-bidding/utils"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	roleAPI      = "api"
	roleEngine   = "engine"
	roleArchiver = "archiver"
	roleAll      = "all"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	notifier  *services.AsyncNotifier
	db        *gorm.DB
	cache     *redis.Client
	stopFuncs []func()
}

func main() {
	role := pflag.String("role", roleAll, "process role: api, engine, archiver or all")
	pflag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := utils.NewLogger(utils.LogOptions{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
	})
	log := logger.WithFields(logrus.Fields{
		"role":    *role,
		"version": cfg.Deployment.Version,
		"env":     cfg.Deployment.Environment,
	})

	switch *role {
	case roleAPI, roleEngine, roleArchiver, roleAll:
	default:
		log.Fatalf("unknown role %q", *role)
	}

	app, err := initializeApplication(cfg, *role, logger)
	if err != nil {
		log.WithField("error", err.Error()).Fatal("failed to initialize application")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if app.router != nil {
		app.router.SetupRoutes()
		go func() {
			address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
			if err := app.router.Start(address); err != nil {
				log.WithField("error", err.Error()).Fatal("failed to start server")
			}
		}()
	}

	log.Info("application started")
	<-sigChan
	log.Info("shutting down gracefully")

	if app.router != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		if err := app.router.GetApp().ShutdownWithContext(shutdownCtx); err != nil {
			log.WithField("error", err.Error()).Warn("error during server shutdown")
		}
		cancel()
	}

	for _, fn := range app.stopFuncs {
		fn()
	}

	app.notifier.Close()
	if dropped := app.notifier.Dropped(); dropped > 0 {
		log.WithField("dropped", dropped).Warn("notifications dropped during run")
	}

	if app.cache != nil {
		_ = app.cache.Close()
	}
	if sqlDB, err := app.db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	log.Info("stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, logger *logrus.Logger) (*gorm.DB, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}

	gormCfg := &gorm.Config{
		Logger: gormlogger.New(logger, gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  gormlogger.Silent,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: utils.UTCNow,
	}
	if cfg.SlowQueryLog {
		gormCfg.Logger = gormCfg.Logger.LogMode(gormlogger.Warn)
	}

	db, err := gorm.Open(postgres.Open(dsn), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"max_open_conns": cfg.MaxOpenConns,
		"max_idle_conns": cfg.MaxIdleConns,
	}).Info("database connection established")
	return db, nil
}

// initializeCache initializes the redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig, logger *logrus.Logger) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB
	if cfg.Password != "" {
		opt.Password = cfg.Password
	}

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.WithField("db", cfg.RedisDB).Info("redis connection established")
	return rc, nil
}

func initializeNotifier(cfg config.NotificationConfig, rc *redis.Client, logger *logrus.Logger) *services.AsyncNotifier {
	var providers []services.NotificationProvider
	if cfg.LogProvider {
		providers = append(providers, services.NewLogNotificationProvider(logger))
	}
	if rc != nil && cfg.RedisChannel != "" {
		providers = append(providers, services.NewRedisNotificationProvider(rc, cfg.RedisChannel))
	}
	return services.NewAsyncNotifier(logger, cfg.QueueSize, cfg.Workers, providers...)
}

func initializeArchiveMirror(cfg config.DynamoDBConfig, logger *logrus.Logger) (services.ArchiveMirror, error) {
	if !cfg.Enabled {
		return services.NoopArchiveMirror{}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := services.NewDynamoDBClient(ctx, services.DynamoDBOptions{
		Region:          cfg.Region,
		AccessKeyID:     cfg.AccessKey,
		SecretAccessKey: cfg.SecretKey,
		Endpoint:        cfg.Endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize dynamodb client: %w", err)
	}
	logger.WithField("table", cfg.TableName).Info("archive mirror enabled")
	return services.NewDynamoDBArchiveMirror(client, cfg.TableName), nil
}

// initializeApplication wires repositories, flows and the components the role runs
func initializeApplication(cfg *config.Config, role string, logger *logrus.Logger) (*Application, error) {
	db, err := initializeDatabase(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache, logger)
	if err != nil {
		return nil, err
	}

	notifier := initializeNotifier(cfg.Notifications, rc, logger)

	mirror, err := initializeArchiveMirror(cfg.Archive.DynamoDB, logger)
	if err != nil {
		return nil, err
	}

	clock := utils.SystemClock()

	auctionRepo := repository.NewAuctionRepository(db)
	bidRepo := repository.NewCarrierBidRepository(db)
	awardRepo := repository.NewAuctionAwardRepository(db)
	archiveRepo := repository.NewArchivedAuctionRepository(db)
	eventRepo := repository.NewAuctionEventRepository(db)

	var locker businessflow.AuctionLocker
	if cfg.Engine.UseRedisLock && rc != nil {
		locker = businessflow.NewRedisAuctionLocker(rc, cfg.Engine.LockTTL)
	} else {
		locker = businessflow.NewLocalAuctionLocker()
	}

	awardFlow := businessflow.NewAwardFlow(
		auctionRepo,
		bidRepo,
		awardRepo,
		eventRepo,
		notifier,
		locker,
		db,
		clock,
		logger.WithField("component", "award_flow"),
		businessflow.AwardEngineOptions{
			BatchSize:       cfg.Engine.BatchSize,
			ClaimStaleAfter: cfg.Engine.ClaimStaleAfter,
			BackoffBase:     cfg.Engine.BackoffBase,
			BackoffMax:      cfg.Engine.BackoffMax,
		},
	)

	archiveFlow := businessflow.NewArchiveFlow(
		auctionRepo,
		bidRepo,
		awardRepo,
		archiveRepo,
		eventRepo,
		mirror,
		notifier,
		db,
		clock,
		logger.WithField("component", "archive_flow"),
		businessflow.ArchiveOptions{BatchSize: cfg.Archive.BatchSize},
	)

	application := &Application{
		notifier: notifier,
		db:       db,
		cache:    rc,
	}

	if role == roleEngine || role == roleAll {
		sched := scheduler.NewAwardScheduler(awardFlow, clock, logger, cfg.Engine.TickInterval)
		application.stopFuncs = append(application.stopFuncs, sched.Start(context.Background()))
	}

	if role == roleArchiver || role == roleAll {
		sched := scheduler.NewArchiveScheduler(archiveFlow, clock, logger, cfg.Archive.Interval, cfg.Archive.Grace)
		application.stopFuncs = append(application.stopFuncs, sched.Start(context.Background()))
	}

	if role != roleAPI && role != roleAll {
		return application, nil
	}

	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.UseRSAKeys,
		cfg.JWT.PrivateKey,
		cfg.JWT.PublicKey,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	ingestFlow := businessflow.NewAuctionIngestFlow(auctionRepo, eventRepo, db, clock, logger.WithField("component", "ingest_flow"))
	bidFlow := businessflow.NewBidFlow(auctionRepo, bidRepo, awardRepo, eventRepo, notifier, db, clock, logger.WithField("component", "bid_flow"))
	queryFlow := businessflow.NewAuctionQueryFlow(auctionRepo, bidRepo, awardRepo, archiveRepo, eventRepo, clock)

	handlerLogger := logger.WithField("component", "http")
	h := router.Handlers{
		Auction: handlers.NewAuctionHandler(ingestFlow, queryFlow, handlerLogger),
		Bid:     handlers.NewBidHandler(bidFlow, queryFlow, handlerLogger),
		Archive: handlers.NewArchiveHandler(queryFlow, handlerLogger),
		Admin:   handlers.NewAdminHandler(archiveFlow, awardFlow, queryFlow, cfg.Archive.Grace, handlerLogger),
	}

	healthChecks := map[string]router.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if rc != nil {
		healthChecks["redis"] = func(ctx context.Context) error {
			return rc.Ping(ctx).Err()
		}
	}

	application.router = router.NewFiberRouter(cfg, h, middleware.NewAuthMiddleware(tokenService), healthChecks, logger)

	logger.WithFields(logrus.Fields{
		"issuer":   cfg.JWT.Issuer,
		"audience": cfg.JWT.Audience,
		"rsa":      cfg.JWT.UseRSAKeys,
		"origins":  strings.Join(cfg.Security.AllowedOrigins, ","),
	}).Info("api components initialized")

	return application, nil
}
