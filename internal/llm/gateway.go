package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sevigo/goframe/llms"

	"github.com/sevigo/codezen/internal/metrics"
)

// ErrorKind classifies why an inference call failed.
type ErrorKind string

const (
	ErrKindTransport         ErrorKind = "transport"
	ErrKindStatus            ErrorKind = "status"
	ErrKindMalformedResponse ErrorKind = "malformed_response"
	ErrKindTimeout           ErrorKind = "timeout"
)

// maxReplyBytes caps how much of an inference reply is read into memory.
const maxReplyBytes = 8 << 20

// GatewayError is the only error type returned by a Gateway.
type GatewayError struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Kind == ErrKindStatus {
		return fmt.Sprintf("inference %s error (HTTP %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("inference %s error: %v", e.Kind, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

//go:generate mockgen -destination=../../mocks/mock_gateway.go -package=mocks . Gateway

// Gateway sends one prompt to an inference service and returns the generated
// text. A call is never retried or cached.
type Gateway interface {
	Submit(ctx context.Context, prompt string) (string, error)
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response *string `json:"response"`
}

// OllamaGateway talks to an Ollama compatible /api/generate endpoint.
type OllamaGateway struct {
	endpoint string
	model    string
	client   *http.Client
	logger   *slog.Logger
}

func NewOllamaGateway(endpoint, model string, client *http.Client, logger *slog.Logger) *OllamaGateway {
	if client == nil {
		client = &http.Client{}
	}
	return &OllamaGateway{
		endpoint: endpoint,
		model:    model,
		client:   client,
		logger:   logger,
	}
}

func (g *OllamaGateway) Submit(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Model: g.model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", &GatewayError{Kind: ErrKindTransport, Err: fmt.Errorf("failed to encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &GatewayError{Kind: ErrKindTransport, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	g.logger.Debug("sending prompt to inference service", "endpoint", g.endpoint, "model", g.model, "prompt_bytes", len(prompt))

	resp, err := g.client.Do(req)
	if err != nil {
		return "", classifyCallError(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return "", classifyCallError(ctx, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", &GatewayError{
			Kind:       ErrKindStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %s", snippet(data)),
		}
	}

	var payload generateResponse
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", &GatewayError{Kind: ErrKindMalformedResponse, StatusCode: resp.StatusCode, Err: err}
	}
	if payload.Response == nil {
		return "", &GatewayError{
			Kind:       ErrKindMalformedResponse,
			StatusCode: resp.StatusCode,
			Err:        errors.New("reply has no response field"),
		}
	}
	return *payload.Response, nil
}

// ModelGateway adapts a goframe llms.Model, used for hosted providers.
type ModelGateway struct {
	model  llms.Model
	name   string
	logger *slog.Logger
}

func NewModelGateway(model llms.Model, name string, logger *slog.Logger) *ModelGateway {
	return &ModelGateway{model: model, name: name, logger: logger}
}

func (g *ModelGateway) Submit(ctx context.Context, prompt string) (string, error) {
	type result struct {
		resp string
		err  error
	}
	resultCh := make(chan result, 1)

	// Some clients ignore cancellation; never wait past the context.
	go func() {
		resp, err := g.model.Call(ctx, prompt)
		resultCh <- result{resp, err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return "", classifyCallError(ctx, res.err)
		}
		return res.resp, nil
	case <-ctx.Done():
		g.logger.Warn("model call abandoned", "model", g.name, "error", ctx.Err())
		return "", classifyCallError(ctx, ctx.Err())
	}
}

// InstrumentedGateway records the outcome and latency of every call.
type InstrumentedGateway struct {
	next     Gateway
	provider string
	metrics  *metrics.Metrics
}

func NewInstrumentedGateway(next Gateway, provider string, m *metrics.Metrics) *InstrumentedGateway {
	return &InstrumentedGateway{next: next, provider: provider, metrics: m}
}

func (g *InstrumentedGateway) Submit(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	reply, err := g.next.Submit(ctx, prompt)

	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = string(ErrKindTransport)
		var gwErr *GatewayError
		if errors.As(err, &gwErr) {
			outcome = string(gwErr.Kind)
		}
	}
	g.metrics.RecordGatewayCall(g.provider, outcome, time.Since(start))
	return reply, err
}

func classifyCallError(ctx context.Context, err error) *GatewayError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &GatewayError{Kind: ErrKindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &GatewayError{Kind: ErrKindTimeout, Err: err}
	}
	return &GatewayError{Kind: ErrKindTransport, Err: err}
}

func snippet(b []byte) string {
	const limit = 200
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
