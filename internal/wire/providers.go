package wire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sevigo/goframe/llms/gemini"

	"github.com/sevigo/codezen/internal/app"
	"github.com/sevigo/codezen/internal/config"
	"github.com/sevigo/codezen/internal/core"
	"github.com/sevigo/codezen/internal/db"
	"github.com/sevigo/codezen/internal/events"
	"github.com/sevigo/codezen/internal/jobs"
	"github.com/sevigo/codezen/internal/llm"
	"github.com/sevigo/codezen/internal/logger"
	"github.com/sevigo/codezen/internal/metrics"
	"github.com/sevigo/codezen/internal/review"
	"github.com/sevigo/codezen/internal/server"
	"github.com/sevigo/codezen/internal/server/handler"
	"github.com/sevigo/codezen/internal/server/middleware"
	"github.com/sevigo/codezen/internal/storage"
)

// StoreSet opens the database and the store on top of it. The CLI uses it
// on its own.
var StoreSet = wire.NewSet(
	db.NewDatabase,
	provideDBConfig,
	provideStore,
)

// ReviewSet builds everything needed to run reviews and conversations.
var ReviewSet = wire.NewSet(
	StoreSet,
	provideRegistry,
	provideMetrics,
	providePromptManager,
	provideGateway,
	providePublisher,
	provideOrchestrator,
	provideConversation,
	wire.Bind(new(jobs.ReviewCompleter), new(*review.Orchestrator)),
)

var AppSet = wire.NewSet(
	ReviewSet,
	app.NewApp,
	server.NewServer,
	provideLogger,
	provideDispatcher,
	provideRateLimiter,
	provideHandler,
	provideRouter,
	provideMetricsHandler,
)

// MetricsHandler serves the Prometheus registry.
type MetricsHandler http.Handler

// Reviewer bundles the services the CLI drives in-process.
type Reviewer struct {
	Store        storage.Store
	Orchestrator *review.Orchestrator
	Conversation *review.Conversation
}

func provideLogger(cfg *config.Config) *slog.Logger {
	l := logger.NewLogger(cfg.Logging, nil)
	slog.SetDefault(l)
	return l
}

func provideDBConfig(cfg *config.Config) *config.DBConfig {
	return &cfg.Database
}

func provideStore(conn *db.DB) storage.Store {
	return storage.NewStore(conn.DB)
}

func provideRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

func provideMetrics(registry *prometheus.Registry) (*metrics.Metrics, error) {
	return metrics.New(registry)
}

func provideMetricsHandler(registry *prometheus.Registry) MetricsHandler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

func providePromptManager(cfg *config.Config) (*llm.PromptManager, error) {
	return llm.NewPromptManager(llm.ModelProvider(cfg.AI.Provider))
}

func provideGateway(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (llm.Gateway, error) {
	var gateway llm.Gateway
	switch cfg.AI.Provider {
	case "gemini":
		if cfg.AI.GeminiAPIKey == "" {
			return nil, errors.New("ai.gemini_api_key is not set")
		}
		model, err := gemini.New(ctx, gemini.WithModel(cfg.AI.Model), gemini.WithAPIKey(cfg.AI.GeminiAPIKey))
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		gateway = llm.NewModelGateway(model, cfg.AI.Model, logger)
	case "ollama":
		gateway = llm.NewOllamaGateway(cfg.AI.GenerateURL(), cfg.AI.Model, newOllamaHTTPClient(), logger)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.AI.Provider)
	}
	logger.Info("inference gateway ready", "provider", cfg.AI.Provider, "model", cfg.AI.Model)
	return llm.NewInstrumentedGateway(gateway, cfg.AI.Provider, m), nil
}

// newOllamaHTTPClient has no overall timeout; every call is bounded by
// ai.request_timeout through its context.
func newOllamaHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        100,
			MaxConnsPerHost:     10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

func providePublisher(cfg *config.Config, logger *slog.Logger) (events.Publisher, func(), error) {
	publisher, err := events.New(cfg.Events.AMQPURL, cfg.Events.Queue, logger)
	if err != nil {
		return nil, nil, err
	}
	return publisher, func() {
		if err := publisher.Close(); err != nil {
			logger.Error("failed to close event publisher", "error", err)
		}
	}, nil
}

func provideOrchestrator(
	cfg *config.Config,
	store storage.Store,
	prompts *llm.PromptManager,
	gateway llm.Gateway,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *review.Orchestrator {
	return review.NewOrchestrator(store, prompts, gateway, publisher, m, cfg.AI.RequestTimeout, logger)
}

func provideConversation(
	cfg *config.Config,
	store storage.Store,
	prompts *llm.PromptManager,
	gateway llm.Gateway,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *review.Conversation {
	return review.NewConversation(store, prompts, gateway, publisher, m, cfg.AI.RequestTimeout, logger)
}

func provideDispatcher(cfg *config.Config, store storage.Store, completer jobs.ReviewCompleter, logger *slog.Logger) core.ReviewDispatcher {
	job := jobs.NewCompletionJob(store, completer, logger)
	return jobs.NewDispatcher(job, cfg.Review.MaxWorkers, cfg.Review.QueueSize, logger)
}

func provideRateLimiter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*middleware.RateLimiter, func(), error) {
	rdb, err := middleware.NewRedisClient(ctx, cfg.RateLimit)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {}
	if rdb != nil {
		logger.Info("rate limiting enabled", "redis", cfg.RateLimit.RedisAddr, "limit", cfg.RateLimit.Limit, "window", cfg.RateLimit.Window)
		cleanup = func() {
			if err := rdb.Close(); err != nil {
				logger.Error("failed to close redis client", "error", err)
			}
		}
	}
	return middleware.NewRateLimiter(rdb, cfg.RateLimit, logger), cleanup, nil
}

func provideHandler(
	cfg *config.Config,
	store storage.Store,
	orchestrator *review.Orchestrator,
	conversation *review.Conversation,
	dispatcher core.ReviewDispatcher,
	logger *slog.Logger,
) *handler.Handler {
	return handler.New(store, orchestrator, conversation, dispatcher, cfg.Server, logger)
}

func provideRouter(cfg *config.Config, h *handler.Handler, limiter *middleware.RateLimiter, metricsHandler MetricsHandler) (http.Handler, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret must be set to serve the API")
	}
	return server.NewRouter(cfg, h, limiter, metricsHandler), nil
}
