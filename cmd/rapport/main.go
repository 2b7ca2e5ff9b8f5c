package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/rapport/internal/anthropic"
	"github.com/MikeSquared-Agency/rapport/internal/api"
	"github.com/MikeSquared-Agency/rapport/internal/config"
	"github.com/MikeSquared-Agency/rapport/internal/engine"
	"github.com/MikeSquared-Agency/rapport/internal/evaluator"
	"github.com/MikeSquared-Agency/rapport/internal/hermes"
	"github.com/MikeSquared-Agency/rapport/internal/processor"
	"github.com/MikeSquared-Agency/rapport/internal/reply"
	"github.com/MikeSquared-Agency/rapport/internal/rubric"
	"github.com/MikeSquared-Agency/rapport/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("rapport starting", "port", cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Rubric
	r, err := rubric.Load(cfg.RubricPath)
	if err != nil {
		slog.Error("failed to load rubric", "error", err)
		os.Exit(1)
	}
	eng := engine.New(r, cfg.RealismNotch)
	slog.Info("rubric loaded", "path", cfg.RubricPath, "realism_notch", cfg.RealismNotch)

	// Anthropic clients
	if cfg.AnthropicAPIKey == "" {
		slog.Error("ANTHROPIC_API_KEY is required")
		os.Exit(1)
	}
	generator := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	judge := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.JudgeModel)
	slog.Info("anthropic clients ready", "model", generator.Model(), "judge_model", judge.Model())

	eval := evaluator.New(judge, r, cfg.Trajectory, slog.Default())
	responder := reply.NewResponder(r, reply.NewLLM(generator), slog.Default())

	// Conversation store
	var conversations processor.Store
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare schema", "error", err)
			os.Exit(1)
		}
		conversations = db
		slog.Info("database connected")
	} else {
		conversations = store.NewMemory()
		slog.Warn("DATABASE_URL not set, conversations are kept in memory")
	}

	// NATS/Hermes (optional, the HTTP API works without events)
	var publisher processor.Publisher
	var hermesClient *hermes.Client
	if cfg.NatsURL != "" {
		hermesClient, err = hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer hermesClient.Close()
		publisher = hermesClient
		slog.Info("NATS client ready", "url", cfg.NatsURL, "connected", hermesClient.Connected())
	} else {
		slog.Warn("NATS_URL not set, running without turn events")
	}

	proc := processor.New(conversations, eng, eval, responder, publisher, slog.Default())

	if hermesClient != nil {
		if err := hermesClient.QueueSubscribe(hermes.SubjectTurnSubmit, "rapport", proc.HandleTurnSubmitted); err != nil {
			slog.Error("failed to subscribe to turn submissions", "error", err)
			os.Exit(1)
		}
		if err := hermesClient.Publish(hermes.SubjectRegistered, hermes.Registered{
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
			Port:       cfg.Port,
			Rubric:     cfg.RubricPath,
			Trajectory: cfg.Trajectory,
		}); err != nil {
			slog.Warn("failed to publish registration", "error", err)
		}
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIToken, proc, slog.Default())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	slog.Info("rapport ready", "port", cfg.Port, "trajectory", cfg.Trajectory)

	if err := g.Wait(); err != nil {
		slog.Error("rapport stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("rapport stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
