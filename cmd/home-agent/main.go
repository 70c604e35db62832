package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hearthd/hearth-platform/internal/agent"
	"github.com/hearthd/hearth-platform/internal/api"
	"github.com/hearthd/hearth-platform/internal/engine"
	"github.com/hearthd/hearth-platform/internal/executor"
	"github.com/hearthd/hearth-platform/internal/memory"
	"github.com/hearthd/hearth-platform/internal/scheduler"
	"github.com/hearthd/hearth-platform/internal/sensor"
	"github.com/hearthd/hearth-platform/pkg/config"
	"github.com/hearthd/hearth-platform/pkg/health"
	"github.com/hearthd/hearth-platform/pkg/llm"
	"github.com/hearthd/hearth-platform/pkg/mqtt"
	"github.com/hearthd/hearth-platform/pkg/postgres"
	"github.com/hearthd/hearth-platform/pkg/redis"
)

func main() {
	cfg := config.NewConfig()
	cfg.ServiceName = "home-agent"
	cfg.LoadFromEnv()
	cfg.LoadFromFlags()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("Starting Home Agent",
		"mqtt", cfg.MQTTAddress(),
		"redis", cfg.RedisAddress(),
		"postgres", fmt.Sprintf("%s:%d/%s", cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDB),
		"llm", cfg.LLMEndpoint)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Initialize clients
	mqttClient := mqtt.NewClient(cfg, logger)
	if err := mqttClient.Connect(ctx); err != nil {
		logger.Error("Failed to connect to MQTT broker", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(cfg, logger)
	llmClient := llm.NewOllamaClient(cfg.LLMEndpoint, cfg.LLMModel, cfg.EmbedModel, logger)

	// Pattern index: pgvector when postgres is reachable, in-memory
	// otherwise. The agent runs either way; only recall durability differs.
	var index memory.VectorIndex
	pgClient := postgres.NewClient(cfg, logger)
	if err := pgClient.Connect(ctx); err != nil {
		logger.Warn("Postgres unavailable, using in-memory pattern index", "error", err)
		pgClient = nil
		index = memory.NewInMemoryIndex()
	} else {
		patternIndex := memory.NewPatternIndex(pgClient)
		if err := patternIndex.EnsureSchema(ctx); err != nil {
			logger.Error("Failed to prepare pattern schema", "error", err)
			os.Exit(1)
		}
		index = patternIndex
	}

	// User preferences
	prefs := agent.DefaultPreferences()
	if cfg.PreferencesPath != "" {
		loaded, err := agent.LoadPreferences(cfg.PreferencesPath)
		if err != nil {
			logger.Error("Failed to load preferences", "path", cfg.PreferencesPath, "error", err)
			os.Exit(1)
		}
		prefs = loaded
	}

	// Memory
	store := memory.NewStore(redisClient, index, llmClient, cfg, logger)
	store.Bootstrap(ctx)

	// Sensors
	analyzer := sensor.NewAnalyzer(logger)
	source := sensor.NewMQTTSource(mqttClient, logger)
	if err := source.Subscribe(); err != nil {
		logger.Error("Failed to subscribe to sensor topics", "error", err)
		os.Exit(1)
	}
	monitor := sensor.NewMonitor(analyzer, source, mqttClient,
		time.Duration(cfg.SensorPollSec)*time.Second, logger)
	monitor.Start(ctx)

	// Decision engine
	weather := engine.NewStaticWeather()
	builder := engine.NewContextBuilder(weather, analyzer, store, prefs,
		cfg.Latitude, cfg.Longitude, logger)
	eng := engine.New(llmClient, store, builder, logger)

	// Executor with providers
	smartHome := executor.NewMQTTSmartHome(mqttClient, logger)
	healthProvider := executor.NewStaticHealth(100)
	exec := executor.New(smartHome, healthProvider, store, mqttClient, nil, logger)
	exec.RegisterDelivery("corner-store", executor.NewSimulatedDelivery(executor.ProviderInfo{
		Name:        "corner-store",
		Available:   true,
		DeliveryETA: 45 * time.Minute,
		DeliveryFee: 4.9,
		Rating:      4.2,
	}))
	exec.RegisterDelivery("metro-market", executor.NewSimulatedDelivery(executor.ProviderInfo{
		Name:         "metro-market",
		Available:    true,
		DeliveryETA:  90 * time.Minute,
		DeliveryFee:  2.5,
		MinimumOrder: 20,
		Rating:       4.6,
	}))

	// Scheduler with per-cycle side tasks
	sched := scheduler.New(eng, exec, store, cfg, logger)
	sched.RegisterTask(scheduler.Task{
		Name:     "inference-health",
		Category: "health",
		Run:      llmClient.Health,
	})
	sched.RegisterTask(scheduler.Task{
		Name:     "context-refresh",
		Category: "comfort",
		Run: func(ctx context.Context) error {
			store.SaveContext(ctx, builder.Build(ctx, time.Now()))
			return nil
		},
	})
	sched.RegisterTask(scheduler.Task{
		Name: "status-publish",
		Run: func(ctx context.Context) error {
			payload, err := json.Marshal(eng.Status())
			if err != nil {
				return err
			}
			return mqttClient.Publish(mqtt.TopicAgentContext, 0, true, payload)
		},
	})
	if err := sched.Start(ctx); err != nil {
		logger.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	// API server
	checker := health.NewChecker(mqttClient, redisClient, pgClient, logger)
	server := api.NewServer(cfg.APIPort, eng, exec, sched, store, checker, logger)
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			serverErr <- err
		}
	}()

	// Wait for shutdown
	select {
	case <-sigChan:
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		logger.Error("API server failed", "error", err)
	}

	// In-flight cycles run to completion before teardown
	sched.Stop()
	monitor.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("API server shutdown incomplete", "error", err)
	}

	cancel()
	mqttClient.Disconnect()
	if err := redisClient.Close(); err != nil {
		logger.Warn("Redis close failed", "error", err)
	}
	if pgClient != nil {
		if err := pgClient.Disconnect(); err != nil {
			logger.Warn("Postgres disconnect failed", "error", err)
		}
	}
	logger.Info("Home agent stopped")
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
