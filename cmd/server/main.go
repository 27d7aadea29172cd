package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/iudanet/usermgmt/internal/config"
	"github.com/iudanet/usermgmt/internal/server"
	"github.com/iudanet/usermgmt/internal/server/objstore"
	"github.com/iudanet/usermgmt/internal/server/queue"
	"github.com/iudanet/usermgmt/internal/server/service"
	"github.com/iudanet/usermgmt/internal/server/session"
	sqlstorage "github.com/iudanet/usermgmt/internal/server/storage/sql"
	"github.com/iudanet/usermgmt/internal/server/token"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Parse flags
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	// Show version and exit if requested
	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("starting user management server",
		"version", Version,
		"build_date", BuildDate,
		"git_commit", GitCommit,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// SQL хранилище пользователей и групп (миграции применяются при старте)
	store, err := sqlstorage.New(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("failed to init storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close storage", "error", err)
		}
	}()

	// Redis хранит refresh сессии и blacklist
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("failed to close redis client", "error", err)
		}
	}()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	sessions := session.NewStore(rdb, cfg.BlacklistTTL, cfg.StoreTimeout, logger)
	tokens := token.NewManager(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenLen)

	// Очередь уведомлений о сбросе пароля.
	// Подключение ленивое: недоступный брокер не мешает старту.
	publisher := queue.NewAMQPPublisher(cfg.RabbitURL, cfg.RabbitQueue, logger)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error("failed to close queue publisher", "error", err)
		}
	}()

	images, err := objstore.NewMinioStore(
		cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3UseSSL, logger)
	if err != nil {
		return fmt.Errorf("failed to init object storage: %w", err)
	}
	if err := images.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to ensure bucket: %w", err)
	}

	userService := service.NewUserService(logger, store)
	authService := service.NewAuthService(
		logger, store, sessions, tokens, publisher, cfg.RefreshTokenTTL, cfg.FrontendURL)

	srv := server.New(cfg, server.Deps{
		Logger:      logger,
		Users:       store,
		Tokens:      tokens,
		UserService: userService,
		AuthService: authService,
		Images:      images,
	})

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// newLogger создает slog логгер с уровнем из конфигурации
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}

func printVersion() {
	fmt.Printf("User Management Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
