package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	githubadapter "github.com/prsentry/prsentry/internal/adapter/driven/github"
	sqliteadapter "github.com/prsentry/prsentry/internal/adapter/driven/sqlite"
	"github.com/prsentry/prsentry/internal/application"
	"github.com/prsentry/prsentry/internal/config"
	"github.com/prsentry/prsentry/internal/domain/model"
	"github.com/prsentry/prsentry/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"poll_interval", cfg.PollInterval,
		"repos", cfg.Repos,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire adapters.
	repoStore := sqliteadapter.NewRepoRepo(db)
	prStore := sqliteadapter.NewPRRepo(db)
	checkStore := sqliteadapter.NewCheckRepo(db)
	uow := sqliteadapter.NewSyncUnitOfWork(db)

	// 6. Register configured repositories (idempotent across restarts).
	if err := registerRepos(ctx, repoStore, cfg.Repos, cfg.PollInterval); err != nil {
		return err
	}

	// 7. Create GitHub client and services.
	ghClient := githubadapter.NewClient(cfg.GitHubToken)
	syncSvc := application.NewSyncService(uow)
	pollSvc := application.NewPollService(ghClient, repoStore, prStore, checkStore, syncSvc, cfg.PollInterval)
	go pollSvc.Start(ctx)

	// 8. Serve the health endpoint.
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("prsentry started",
		"listen_addr", cfg.ListenAddr,
		"poll_interval", cfg.PollInterval,
	)

	// 9. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 10. Graceful shutdown with 10s timeout for HTTP server drain.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// registerRepos adds each configured repository, skipping ones already known.
func registerRepos(ctx context.Context, repoStore driven.RepoStore, fullNames []string, pollInterval time.Duration) error {
	for _, fullName := range fullNames {
		parts := strings.SplitN(fullName, "/", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return fmt.Errorf("invalid repository name %q in PRSENTRY_REPOS, expected owner/name", fullName)
		}

		repo := model.Repository{
			URL:          "https://github.com/" + fullName,
			FullName:     fullName,
			Owner:        parts[0],
			Name:         parts[1],
			Status:       model.RepoStatusActive,
			PollInterval: pollInterval,
			AddedAt:      time.Now().UTC(),
		}

		err := repoStore.Add(ctx, repo)
		if errors.Is(err, driven.ErrRepoAlreadyExists) {
			continue
		}
		if err != nil {
			return err
		}
		slog.Info("repository registered", "repo", fullName)
	}

	return nil
}
