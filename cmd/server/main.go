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

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mintoons/internal/ai"
	"mintoons/internal/cache"
	"mintoons/internal/config"
	"mintoons/internal/database"
	"mintoons/internal/handlers"
	"mintoons/internal/logger"
	"mintoons/internal/payment"
	"mintoons/internal/security"
	"mintoons/internal/repository"
	"mintoons/internal/service"
)

const (
	stepDatabase   = "Connecting to database"
	stepMigrations = "Running migrations"
	stepBadWords   = "Loading bad words filter"
	stepServices   = "Starting services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("Server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startup := handlers.NewStartup(stepDatabase, stepMigrations, stepBadWords, stepServices)

	startup.SetCurrentStep(stepDatabase)
	db, err := database.Open(cfg.DatabaseType, cfg.DatabasePath, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	log.Info("Database connection established", zap.String("type", cfg.DatabaseType))
	startup.CompleteStep(stepDatabase)

	startup.SetCurrentStep(stepMigrations)
	if err := db.RunMigrations(ctx, log); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	startup.CompleteStep(stepMigrations)

	startup.SetCurrentStep(stepBadWords)
	if cfg.Moderation.SeedOnStart {
		if err := db.SeedBadWords(ctx, cfg.Moderation.BadWordsURL, log); err != nil {
			log.Warn("Failed to seed bad words filter", zap.Error(err))
		}
	}
	startup.CompleteStep(stepBadWords)

	startup.SetCurrentStep(stepServices)
	app, cleanup, err := buildApp(ctx, cfg, db, startup, log)
	if err != nil {
		return err
	}
	defer cleanup()
	startup.CompleteStep(stepServices)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      app,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server starting", zap.String("addr", server.Addr), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	startup.MarkReady()
	return g.Wait()
}

// buildApp wires the collaborators, services and handlers into the router
func buildApp(ctx context.Context, cfg *config.Config, db *database.DB, startup *handlers.Startup, log *zap.Logger) (http.Handler, func(), error) {
	cleanup := func() {}

	tokens, err := security.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL, log)
	if err != nil {
		return nil, cleanup, err
	}

	mailer, err := service.NewEmailService(ctx, cfg.Email, cfg.AppURL, log)
	if err != nil {
		return nil, cleanup, err
	}
	mailer.UseSettings(repository.NewSettingsRepository(db))

	var collaborator ai.Collaborator = ai.Disabled{}
	if client, err := ai.New(cfg.AI, log); err == nil {
		collaborator = client
	} else if errors.Is(err, ai.ErrNotConfigured) {
		log.Warn("AI gateway not configured, turns and assessments will fail")
	} else {
		return nil, cleanup, fmt.Errorf("failed to build AI client: %w", err)
	}

	var checkout payment.Checkout
	if stripeCheckout, err := payment.NewStripeCheckout(cfg.Stripe, cfg.AppURL, nil, log); err == nil {
		checkout = stripeCheckout
	} else if errors.Is(err, payment.ErrNotConfigured) {
		log.Warn("Stripe not configured, checkout is disabled")
	} else {
		return nil, cleanup, fmt.Errorf("failed to build checkout: %w", err)
	}

	var competitionCache cache.CompetitionCache = cache.Noop{}
	if cfg.Redis.Addr != "" {
		rdb, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn("Redis unreachable, competition cache disabled", zap.Error(err))
		} else {
			competitionCache = cache.NewRedisCache(rdb, cfg.Redis.TTL, log)
			cleanup = func() { rdb.Close() }
		}
	}

	authService := service.NewAuthService(db, tokens, mailer, log)
	storyService := service.NewStoryService(db, collaborator, db, log)
	publishService := service.NewPublishService(db, checkout, log)
	commentService := service.NewCommentService(db, log)
	competitionService := service.NewCompetitionService(db, competitionCache, mailer, log)
	adminService := service.NewAdminService(db, competitionCache, mailer, log)
	backupService := service.NewBackupService(db, competitionCache, log)

	limiter := security.NewRateLimiter(ctx, cfg.RateLimit.Requests, cfg.RateLimit.Window)
	middleware := handlers.NewMiddleware(authService, repository.NewSettingsRepository(db), limiter, log)

	router := handlers.NewRouter(handlers.Handlers{
		Auth:         handlers.NewAuthHandler(authService, log),
		Stories:      handlers.NewStoryHandler(storyService, log),
		Publish:      handlers.NewPublishHandler(publishService, log),
		Comments:     handlers.NewCommentHandler(commentService, log),
		Competitions: handlers.NewCompetitionHandler(competitionService, log),
		Admin:        handlers.NewAdminHandler(adminService, storyService, competitionService, backupService, log),
		Health:       startup.Health(db.PingContext),
	}, middleware)

	return router, cleanup, nil
}
