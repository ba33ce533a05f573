package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"course-auth/internal/backup"
	"course-auth/internal/config"
	"course-auth/internal/guard"
	apphttp "course-auth/internal/http"
	"course-auth/internal/repository"
	"course-auth/internal/repository/jsonfile"
	"course-auth/internal/repository/sqlite"
	"course-auth/internal/service"
	"course-auth/internal/storage"
)

// accountStore is a record store that can also export itself for backups.
type accountStore interface {
	repository.AccountStore
	backup.Snapshotter
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}
	configureLogger(logger, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatalf("open account store: %v", err)
	}
	defer closeStore()
	logger.Infof("using %s account store at %s", cfg.Store.Driver, cfg.StorePath())

	secret := []byte(cfg.Auth.JWTSecret)
	accounts := service.NewAccountService(store, secret, cfg.Auth.TokenTTL)

	if admin := cfg.Auth.Admin; admin.Email != "" {
		created, err := accounts.EnsureAdmin(ctx, admin.Username, admin.Email, admin.Password)
		if err != nil {
			logger.Fatalf("bootstrap admin: %v", err)
		}
		if created {
			logger.Infof("created administrator %s", admin.Email)
		}
	}

	backups, err := buildBackups(ctx, cfg, store, logger)
	if err != nil {
		logger.Fatalf("setup backups: %v", err)
	}
	if err := backups.Start(ctx); err != nil {
		logger.Fatalf("start backups: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(
		accounts,
		guard.New(store, secret),
		backups,
		logger,
		apphttp.RateLimit{Requests: cfg.RateLimit.Requests, Window: cfg.RateLimit.Window},
	)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s (%s)", cfg.Server.Addr, cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	backups.Shutdown()

	logger.Info("bye")
}

func configureLogger(logger *logrus.Logger, cfg config.Config) {
	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}

func openStore(ctx context.Context, cfg config.Config) (accountStore, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.StorePath())
		if err != nil {
			return nil, nil, err
		}
		repo := sqlite.NewAccountRepository(db)
		if err := repo.Init(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("init account repository: %w", err)
		}
		return repo, func() { db.Close() }, nil
	default:
		store, err := jsonfile.New(cfg.StorePath())
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}

func buildBackups(ctx context.Context, cfg config.Config, source backup.Snapshotter, logger *logrus.Logger) (backup.Manager, error) {
	if cfg.Backup.Bucket == "" {
		logger.Info("backup bucket not set, store backups disabled")
		return backup.Disabled{}, nil
	}

	storageSvc, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return backup.NewManager(backup.Config{
		Bucket:    cfg.Backup.Bucket,
		KeyPrefix: cfg.Backup.KeyPrefix,
		Interval:  cfg.Backup.Interval,
		Retain:    cfg.Backup.Retain,
		Logger:    logger,
	}, source, storageSvc), nil
}

func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Backup.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Backup.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Backup.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("backing up to s3 bucket %s (region %s)", cfg.Backup.Bucket, cfg.Backup.Region)
	return storage.NewS3Service(client), nil
}
