// Fixedness Lab - narrative puzzle experiment server
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

	"github.com/ashureev/fixedness-lab/internal/api"
	"github.com/ashureev/fixedness-lab/internal/catalog"
	"github.com/ashureev/fixedness-lab/internal/config"
	"github.com/ashureev/fixedness-lab/internal/game"
	"github.com/ashureev/fixedness-lab/internal/identity"
	"github.com/ashureev/fixedness-lab/internal/middleware"
	"github.com/ashureev/fixedness-lab/internal/narrative"
	"github.com/ashureev/fixedness-lab/internal/puzzle"
	"github.com/ashureev/fixedness-lab/internal/store"
	"github.com/ashureev/fixedness-lab/internal/terminal"
	"github.com/ashureev/fixedness-lab/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		slog.Error("Failed to load world catalog", "error", err, "path", cfg.CatalogPath)
		os.Exit(1)
	}
	slog.Info("World catalog loaded", "worlds", len(cat.Worlds()))

	analyzer, err := loadAnalyzer(cfg.VocabularyPath)
	if err != nil {
		slog.Error("Failed to load vocabulary", "error", err, "path", cfg.VocabularyPath)
		os.Exit(1)
	}

	engine, err := narrative.NewGeminiEngine(context.Background(), cfg.Narrative.APIKey, cfg.Narrative.Model, cfg.Narrative.Timeout)
	if err != nil {
		slog.Error("Failed to initialize narrative engine", "error", err)
		os.Exit(1)
	}
	slog.Info("Narrative engine initialized", "model", engine.Model())

	transcript, err := game.NewTranscriptLogger(game.TranscriptConfig{
		Enabled:   cfg.Transcript.Enabled,
		Dir:       cfg.Transcript.Dir,
		QueueSize: cfg.Transcript.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize transcript logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := transcript.Close(); closeErr != nil {
			slog.Error("Failed to close transcript logger", "error", closeErr)
		}
	}()

	svc := game.NewService(repo, cat, analyzer, engine,
		game.WithTranscript(transcript),
		game.WithLogger(logger),
	)

	limiter := api.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	defer limiter.Close()

	sm := terminal.NewSessionManager()

	baseHandler := api.NewHandler(svc, logger)
	experimentHandler := api.NewExperimentHandler(baseHandler, limiter)
	healthHandler := api.NewHealthHandler(repo)
	wsHandler := terminal.NewWebSocketHandler(svc, sm, cfg.FrontendURL, cfg.IsDevelopment())
	wsHandler.SetLimiter(limiter)

	allowedOrigins := []string{"*"}
	if cfg.FrontendURL != "" {
		allowedOrigins = []string{cfg.FrontendURL}
	}

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(allowedOrigins))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodyBytes))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	healthHandler.RegisterHealth(r)
	experimentHandler.RegisterRoutes(r)

	r.Get("/ws/play", wsHandler.ServeHTTP)

	r.Handle("/*", web.ConsoleHandler())

	// Narrative calls can take up to NARRATIVE_TIMEOUT, and the play
	// console holds long-lived connections, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	idleDone := game.StartIdleWorker(ctx, svc, cfg.IdleSweepInterval, cfg.SessionIdleTTL, sm.CloseSession)

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}
	<-idleDone

	slog.Info("Server stopped successfully")
}

func loadAnalyzer(path string) (*puzzle.Analyzer, error) {
	vocab := puzzle.DefaultVocabulary()
	if path != "" {
		loaded, err := puzzle.LoadVocabulary(path)
		if err != nil {
			return nil, err
		}
		vocab = loaded
	}
	return puzzle.NewAnalyzer(vocab)
}
