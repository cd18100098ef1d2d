package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/filmforge/academy/internal/activity"
	"github.com/filmforge/academy/internal/ai"
	"github.com/filmforge/academy/internal/catalog"
	"github.com/filmforge/academy/internal/certification"
	"github.com/filmforge/academy/internal/enrollment"
	"github.com/filmforge/academy/internal/forum"
	"github.com/filmforge/academy/internal/platform/auth"
	"github.com/filmforge/academy/internal/platform/cache"
	"github.com/filmforge/academy/internal/platform/config"
	"github.com/filmforge/academy/internal/platform/database"
	"github.com/filmforge/academy/internal/profile"
	"github.com/filmforge/academy/internal/quiz"
	"github.com/filmforge/academy/internal/server"
	"github.com/filmforge/academy/internal/studio"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log, os.Stdout))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.Migrate {
		if err := database.Migrate(ctx, db.Pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	var kv *cache.Cache
	if cfg.Cache.Enabled {
		kv, err = cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			return err
		}
		defer kv.Close()
	}

	courseStore := catalog.NewPostgresStore(db.Pool)
	quizStore := quiz.NewPostgresStore(db.Pool)
	certStore := certification.NewPostgresStore(db.Pool)
	events := activity.NewPostgresEventLogger(db.Pool)
	profiles := profile.NewPostgresDirectory(db.Pool)

	courses := catalog.NewService(courseStore)
	quizzes := quiz.NewService(quizStore,
		quiz.WithEventLogger(events),
		quiz.WithDefaultPassingScore(cfg.Academy.DefaultPassingScore))

	seeds, err := catalog.NewLoader(cfg.CatalogPath).Load()
	if err != nil {
		return err
	}
	if err := catalog.Apply(ctx, seeds, courseStore, quizzes); err != nil {
		return fmt.Errorf("apply catalog: %w", err)
	}

	certOpts := []certification.Option{
		certification.WithEventLogger(events),
		certification.WithVerifyBaseURL(cfg.Certification.VerifyBaseURL),
	}
	if cfg.Certification.RequireQuizzes {
		certOpts = append(certOpts, certification.WithQuizGate(quizzes))
	}
	if key := cfg.Certification.SendGridAPIKey; key != "" {
		certOpts = append(certOpts, certification.WithNotifier(certification.NewSendGridNotifier(key, cfg.Certification.FromEmail)))
	}

	var certs *certification.Service
	enroll := enrollment.NewService(enrollment.NewPostgresStore(db.Pool), courses,
		enrollment.WithThreshold(cfg.Academy.CompletionThreshold),
		enrollment.WithEventLogger(events),
		enrollment.WithCompletionHook(enrollment.HookFunc(func(ctx context.Context, userID, courseID string, at time.Time) error {
			return certs.OnCourseCompleted(ctx, userID, courseID, at)
		})))
	certs = certification.NewService(certStore, courses, enroll, profiles, certOpts...)

	if err := certification.NewReconciler(certs, certStore).Start(ctx, cfg.Certification.ReconcileSchedule); err != nil {
		return fmt.Errorf("schedule reconciler: %w", err)
	}

	router, err := buildProviders(cfg.AI)
	if err != nil {
		return err
	}
	if !router.HasProvider() {
		slog.Warn("no AI provider configured, studio tools will return errors")
	}
	studioSvc := studio.NewService(router, buildImages(cfg.AI),
		studio.WithBudget(newBudget(cfg.AI.TokenBudget, kv)),
		studio.WithTimeout(cfg.AI.Timeout))

	readiness := []server.Option{
		server.WithReadinessCheck("database", db.HealthCheck),
	}
	if kv != nil {
		readiness = append(readiness, server.WithReadinessCheck("cache", kv.HealthCheck))
	}

	api := server.New(server.Services{
		Catalog:      courses,
		Enrollment:   enroll,
		Quizzes:      quizzes,
		Certificates: certs,
		Forum:        forum.NewService(forum.NewPostgresStore(db.Pool), courses, forum.WithEventLogger(events)),
		Studio:       studioSvc,
		Profiles:     profiles,
	}, auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer), readiness...)

	srv := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     api.Handler(),
		ReadTimeout: 10 * time.Second,
		// Studio calls and assistant sockets outlive a short write timeout.
		WriteTimeout: cfg.AI.Timeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newLogger builds the process logger from the log settings.
func newLogger(cfg config.LogConfig, out io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(out, opts))
	}
	return slog.New(slog.NewJSONHandler(out, opts))
}

// buildProviders registers every configured text provider in fallback order.
func buildProviders(cfg config.AIConfig) (*ai.Router, error) {
	client := &http.Client{Timeout: cfg.Timeout}
	router := ai.NewRouter()

	if key := cfg.OpenAI.APIKey; key != "" {
		router.Register("openai", ai.NewOpenAIProvider(key, ai.WithHTTPClient(client)))
	}
	if key := cfg.Anthropic.APIKey; key != "" {
		p, err := ai.NewAnthropicProvider(key, ai.WithAnthropicHTTPClient(client))
		if err != nil {
			return nil, fmt.Errorf("anthropic provider: %w", err)
		}
		router.Register("anthropic", p)
	}
	if key := cfg.Google.APIKey; key != "" {
		router.Register("google", ai.NewGoogleProvider(key, ai.WithGoogleHTTPClient(client)))
	}
	if key := cfg.DeepSeek.APIKey; key != "" {
		router.Register("deepseek", ai.NewDeepSeekProvider(key, ai.WithHTTPClient(client)))
	}
	if key := cfg.OpenRouter.APIKey; key != "" {
		router.Register("openrouter", ai.NewOpenRouterProvider(key, ai.WithHTTPClient(client)))
	}
	if cfg.Ollama.Enabled {
		router.Register("ollama", ai.NewOllamaProvider(cfg.Ollama.URL, ai.WithHTTPClient(client)))
	}
	return router, nil
}

// buildImages returns the frame generator, or nil when no key is set.
func buildImages(cfg config.AIConfig) ai.ImageGenerator {
	if cfg.Images.APIKey == "" {
		return nil
	}
	return ai.NewImageProvider(cfg.Images.BaseURL, cfg.Images.APIKey,
		ai.WithImageModel(cfg.Images.Model),
		ai.WithImageTimeout(cfg.Timeout))
}

// newBudget keeps daily token counts in Redis when the cache is up so every
// replica shares them.
func newBudget(limit int64, kv *cache.Cache) ai.BudgetChecker {
	if limit <= 0 {
		return ai.UnlimitedBudget{}
	}
	if kv != nil {
		return ai.NewRedisBudget(kv, limit)
	}
	return ai.NewInMemoryBudget(limit)
}
