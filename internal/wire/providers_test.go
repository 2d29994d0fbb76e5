package wire

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/codezen/internal/config"
	"github.com/sevigo/codezen/internal/llm"
	"github.com/sevigo/codezen/internal/server/handler"
	"github.com/sevigo/codezen/internal/server/middleware"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProvideGateway(t *testing.T) {
	m, err := provideMetrics(provideRegistry())
	require.NoError(t, err)

	tests := []struct {
		name     string
		provider string
		wantErr  bool
	}{
		{name: "ollama", provider: "ollama"},
		{name: "gemini without key", provider: "gemini", wantErr: true},
		{name: "unknown provider", provider: "openai", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{AI: config.AIConfig{
				Provider:     tt.provider,
				OllamaHost:   "http://localhost:11434",
				GeneratePath: "/api/generate",
				Model:        "codellama:7b",
			}}
			gateway, err := provideGateway(context.Background(), cfg, m, discardLogger())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, &llm.InstrumentedGateway{}, gateway)
		})
	}
}

func TestProvideRouter_RequiresSecret(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{WriteTimeout: time.Minute}}
	h := handler.New(nil, nil, nil, nil, cfg.Server, discardLogger())
	limiter := middleware.NewRateLimiter(nil, cfg.RateLimit, discardLogger())

	_, err := provideRouter(cfg, h, limiter, nil)
	require.Error(t, err)

	cfg.Auth.JWTSecret = "secret"
	router, err := provideRouter(cfg, h, limiter, provideMetricsHandler(provideRegistry()))
	require.NoError(t, err)
	assert.NotNil(t, router)
}

func TestProvideRateLimiter_Disabled(t *testing.T) {
	limiter, cleanup, err := provideRateLimiter(context.Background(), &config.Config{}, discardLogger())
	require.NoError(t, err)
	require.NotNil(t, limiter)
	cleanup()
}
