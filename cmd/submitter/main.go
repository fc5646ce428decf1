package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/terra-clan/exercise-submitter/internal/api"
	"github.com/terra-clan/exercise-submitter/internal/cache"
	"github.com/terra-clan/exercise-submitter/internal/cleanup"
	"github.com/terra-clan/exercise-submitter/internal/config"
	"github.com/terra-clan/exercise-submitter/internal/descriptor"
	"github.com/terra-clan/exercise-submitter/internal/feedback"
	"github.com/terra-clan/exercise-submitter/internal/health"
	"github.com/terra-clan/exercise-submitter/internal/history"
	"github.com/terra-clan/exercise-submitter/internal/hook"
	"github.com/terra-clan/exercise-submitter/internal/i18n"
	"github.com/terra-clan/exercise-submitter/internal/mgmt"
	"github.com/terra-clan/exercise-submitter/internal/models"
	"github.com/terra-clan/exercise-submitter/internal/storage"
	"github.com/terra-clan/exercise-submitter/internal/submission"
	"github.com/terra-clan/exercise-submitter/internal/vcs"
	"github.com/terra-clan/exercise-submitter/internal/workspace"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("starting exercise-submitter",
		"program", cfg.Settings.ProgramName,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"repository", cfg.Repository.URL,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	// Messages
	catalog, err := i18n.NewCatalog()
	if err != nil {
		slog.Error("failed to load messages", "error", err)
		os.Exit(1)
	}
	if cfg.MessagesFile != "" {
		if err := catalog.LoadFile(cfg.MessagesFile); err != nil {
			slog.Error("failed to load messages file", "file", cfg.MessagesFile, "error", err)
			os.Exit(1)
		}
	}

	// Load descriptor templates
	templateLoader, err := descriptor.NewLoader()
	if err != nil {
		slog.Error("failed to load descriptor templates", "error", err)
		os.Exit(1)
	}
	if cfg.Descriptors.TemplatesDir != "" {
		if err := templateLoader.LoadFromDir(cfg.Descriptors.TemplatesDir); err != nil {
			slog.Warn("failed to load templates from dir", "dir", cfg.Descriptors.TemplatesDir, "error", err)
		}
	}

	// Submission log
	var repo storage.Repository
	if cfg.Database.DSN != "" {
		repo, err = storage.NewPostgresRepository(initCtx, storage.PostgresConfig{
			DSN:          cfg.Database.DSN,
			MaxOpenConns: int32(cfg.Database.MaxOpenConns),
			MaxIdleConns: int32(cfg.Database.MaxIdleConns),
		})
		if err != nil {
			slog.Error("failed to create database repository", "error", err)
			os.Exit(1)
		}
		slog.Info("database connected successfully")
	} else {
		repo = storage.NewMemoryRepository()
		slog.Warn("no database configured, submission log is kept in memory")
	}
	defer repo.Close()

	// Lookup cache
	var store cache.Store
	if cfg.Redis.Address != "" {
		redisStore, err := cache.NewRedisStore(initCtx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Cache.TTL)
		if err != nil {
			slog.Error("failed to create redis cache", "error", err)
			os.Exit(1)
		}
		defer redisStore.Close()
		store = redisStore
		slog.Info("redis cache connected", "address", cfg.Redis.Address)
	} else {
		store = cache.NewLRUStore(cfg.Cache.Size, cfg.Cache.TTL)
	}

	// Student management system
	management := mgmt.NewClient(cfg.Management.URL, cfg.Management.Course, cfg.Repository.URL,
		mgmt.WithAuthURL(cfg.Management.AuthURL),
		mgmt.WithTimeout(cfg.Management.Timeout),
	)
	directories := func(creds models.Credentials) api.Directory {
		return mgmt.NewCachedDirectory(management, store, creds)
	}

	maxSize, err := cfg.Settings.FolderCheck.MaxSizeBytes()
	if err != nil {
		slog.Error("invalid folder size limit", "error", err)
		os.Exit(1)
	}

	// Pipelines
	clients := vcs.GitFactory(cfg.Repository.AuthorDomain)
	parser := hook.NewParser(cfg.Settings.MessageTranslations, catalog)
	translator := feedback.NewTranslator(parser, catalog, cfg.Settings.Course)
	submitter := submission.NewSubmitter(clients, descriptor.NewInjector(templateLoader), catalog, submission.Options{
		TempDir:         cfg.Repository.TempDir,
		SourceExtension: cfg.Repository.SourceExtension,
	})
	historyService := history.NewService(clients, history.Options{TempDir: cfg.Repository.TempDir})

	// Readiness checks
	checks := health.NewRegistry()
	checks.Register("repository", health.CheckFunc(func(ctx context.Context) error {
		err := clients(models.Credentials{}).TestConnection(ctx, cfg.Repository.URL)
		if errors.Is(err, vcs.ErrAuthentication) {
			// the server answered, it just wants credentials
			return nil
		}
		return err
	}))
	checks.Register("database", health.CheckFunc(repo.Ping))
	checks.Register("cache", health.CheckFunc(store.Ping))

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start cleanup worker
	cleaner := cleanup.NewCleaner(cfg.Repository.TempDir, cfg.Cleanup.Interval, cfg.Cleanup.MaxAge)
	cleaner.Start(ctx)

	// Setup HTTP server
	server := api.NewServer(cfg.Server, api.Dependencies{
		Auth:            management,
		LoginCache:      store,
		Directories:     directories,
		Submitter:       submitter,
		History:         historyService,
		Translator:      translator,
		Repo:            repo,
		Health:          checks,
		ManagementURL:   management.BaseURL(),
		SourceExtension: cfg.Repository.SourceExtension,
		FolderLimits: workspace.Limits{
			MinSourceFiles: cfg.Settings.FolderCheck.MinSourceFiles,
			MinFiles:       cfg.Settings.FolderCheck.MinFiles,
			MaxFiles:       cfg.Settings.FolderCheck.MaxFiles,
			MaxSize:        maxSize,
		},
	})
	// No write timeout: a submission answers when the commit is done
	httpServer := &http.Server{
		Addr:        server.Addr(),
		Handler:     server.Router(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background workers
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("exercise-submitter stopped")
}
