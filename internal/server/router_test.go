package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sevigo/codezen/internal/config"
	"github.com/sevigo/codezen/internal/core"
	"github.com/sevigo/codezen/internal/db"
	"github.com/sevigo/codezen/internal/events"
	"github.com/sevigo/codezen/internal/jobs"
	"github.com/sevigo/codezen/internal/llm"
	"github.com/sevigo/codezen/internal/review"
	"github.com/sevigo/codezen/internal/server"
	"github.com/sevigo/codezen/internal/server/handler"
	"github.com/sevigo/codezen/internal/server/middleware"
	"github.com/sevigo/codezen/internal/storage"
	"github.com/sevigo/codezen/mocks"
)

const (
	testSecret = "router-test-secret"
	reply      = `{"summary":"Trivial function","findings":[],"effort_estimation":"3/10"}`
)

var timestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}$`)

type api struct {
	handler    http.Handler
	gateway    *mocks.MockGateway
	store      storage.Store
	dispatcher core.ReviewDispatcher
}

func newAPI(t *testing.T) *api {
	t.Helper()
	ctrl := gomock.NewController(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := &config.Config{
		Server: config.ServerConfig{
			ReadTimeout:  time.Second,
			WriteTimeout: time.Minute,
			MaxCodeBytes: 1024,
			MaxTextBytes: 256,
		},
		Auth: config.AuthConfig{JWTSecret: testSecret},
	}

	conn, cleanup, err := db.NewDatabase(&config.DBConfig{
		Driver: db.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "api.db"),
	})
	require.NoError(t, err)
	t.Cleanup(cleanup)

	store := storage.NewStore(conn.DB)
	prompts, err := llm.NewPromptManager(llm.DefaultProvider)
	require.NoError(t, err)
	gateway := mocks.NewMockGateway(ctrl)

	orch := review.NewOrchestrator(store, prompts, gateway, events.NopPublisher{}, nil, time.Minute, logger)
	conv := review.NewConversation(store, prompts, gateway, events.NopPublisher{}, nil, time.Minute, logger)
	dispatcher := jobs.NewDispatcher(jobs.NewCompletionJob(store, orch, logger), 1, 10, logger)
	t.Cleanup(dispatcher.Stop)

	h := handler.New(store, orch, conv, dispatcher, cfg.Server, logger)
	limiter := middleware.NewRateLimiter(nil, cfg.RateLimit, logger)
	return &api{
		handler:    server.NewRouter(cfg, h, limiter, nil),
		gateway:    gateway,
		store:      store,
		dispatcher: dispatcher,
	}
}

func token(t *testing.T, userID int64) string {
	t.Helper()
	raw, err := middleware.IssueToken(testSecret, core.User{ID: userID}, time.Hour)
	require.NoError(t, err)
	return raw
}

func (a *api) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func createProject(t *testing.T, a *api, bearer string) handler.ProjectResponse {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/v1/projects", bearer, map[string]string{"name": "demo", "language": "python"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[handler.ProjectResponse](t, rec)
}

func TestHealth(t *testing.T) {
	a := newAPI(t)
	rec := a.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_RequiresToken(t *testing.T) {
	a := newAPI(t)
	rec := a.do(t, http.MethodGet, "/api/v1/projects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_ReviewAndConversationFlow(t *testing.T) {
	a := newAPI(t)
	owner := token(t, 1)

	p := createProject(t, a, owner)
	assert.Equal(t, "python", p.Language)

	rec := a.do(t, http.MethodPost, "/api/v1/projects/"+itoa(p.ID)+"/guidelines", owner, map[string]string{"rule_text": "no bare except"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/api/v1/projects/"+itoa(p.ID)+"/guidelines", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	guidelines := decode[[]handler.GuidelineResponse](t, rec)
	require.Len(t, guidelines, 1)
	assert.Equal(t, "no bare except", guidelines[0].RuleText)

	a.gateway.EXPECT().Submit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, prompt string) (string, error) {
			assert.Contains(t, prompt, "- no bare except")
			assert.Contains(t, prompt, "```python\ndef f(): pass\n```")
			return reply, nil
		})

	rec = a.do(t, http.MethodPost, "/api/v1/projects/"+itoa(p.ID)+"/reviews", owner, map[string]string{"code": "def f(): pass"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rev := decode[map[string]any](t, rec)
	assert.Equal(t, "completed", rev["status"])
	assert.Equal(t, reply, rev["llm_response"])
	assert.Equal(t, "3/10", rev["effort_estimation"])
	assert.Regexp(t, timestampPattern, rev["timestamp"])
	parsed, ok := rev["parsed"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Trivial function", parsed["summary"])

	reviewPath := "/api/v1/projects/" + itoa(p.ID) + "/reviews/" + itoa(int64(rev["id"].(float64)))

	a.gateway.EXPECT().Submit(gomock.Any(), gomock.Any()).Return("Because it has no body.", nil)
	rec = a.do(t, http.MethodPost, reviewPath+"/comments", owner, map[string]string{"question": "why?"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ask := decode[handler.AskResponse](t, rec)
	assert.Equal(t, core.RoleUser, ask.Question.Role)
	assert.Equal(t, core.RoleAI, ask.Answer.Role)
	assert.Equal(t, "Because it has no body.", ask.Answer.Message)
	assert.Len(t, ask.History, 2)

	rec = a.do(t, http.MethodGet, reviewPath+"/comments", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	comments := decode[[]handler.CommentResponse](t, rec)
	require.Len(t, comments, 2)
	assert.Equal(t, "why?", comments[0].Message)

	rec = a.do(t, http.MethodGet, "/api/v1/projects/"+itoa(p.ID)+"/reviews", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]handler.ReviewResponse](t, rec), 1)
}

func TestAPI_OtherUsersRecordsAreNotFound(t *testing.T) {
	a := newAPI(t)
	owner := token(t, 1)
	stranger := token(t, 2)
	p := createProject(t, a, owner)

	a.gateway.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(reply, nil)
	rec := a.do(t, http.MethodPost, "/api/v1/projects/"+itoa(p.ID)+"/reviews", owner, map[string]string{"code": "x = 1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rev := decode[handler.ReviewResponse](t, rec)
	projectPath := "/api/v1/projects/" + itoa(p.ID)
	reviewPath := projectPath + "/reviews/" + itoa(rev.ID)

	requests := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, projectPath, nil},
		{http.MethodDelete, projectPath, nil},
		{http.MethodGet, projectPath + "/guidelines", nil},
		{http.MethodPost, projectPath + "/guidelines", map[string]string{"rule_text": "x"}},
		{http.MethodPost, projectPath + "/reviews", map[string]string{"code": "x = 2"}},
		{http.MethodGet, projectPath + "/reviews", nil},
		{http.MethodGet, reviewPath, nil},
		{http.MethodGet, reviewPath + "/comments", nil},
		{http.MethodPost, reviewPath + "/comments", map[string]string{"question": "why?"}},
	}
	for _, req := range requests {
		t.Run(req.method+" "+req.path, func(t *testing.T) {
			rec := a.do(t, req.method, req.path, stranger, req.body)
			assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
		})
	}

	rec = a.do(t, http.MethodGet, "/api/v1/projects", stranger, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]handler.ProjectResponse](t, rec))
}

func TestAPI_GuidelineTextKeptVerbatim(t *testing.T) {
	a := newAPI(t)
	owner := token(t, 1)
	p := createProject(t, a, owner)
	path := "/api/v1/projects/" + itoa(p.ID) + "/guidelines"

	const rule = "  keep leading spaces\n"
	rec := a.do(t, http.MethodPost, path, owner, map[string]string{"rule_text": rule})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, rule, decode[handler.GuidelineResponse](t, rec).RuleText)

	rec = a.do(t, http.MethodGet, path, owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	guidelines := decode[[]handler.GuidelineResponse](t, rec)
	require.Len(t, guidelines, 1)
	assert.Equal(t, rule, guidelines[0].RuleText)
}

func TestAPI_Validation(t *testing.T) {
	a := newAPI(t)
	owner := token(t, 1)
	p := createProject(t, a, owner)
	reviews := "/api/v1/projects/" + itoa(p.ID) + "/reviews"

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
	}{
		{"empty code", http.MethodPost, reviews, map[string]string{"code": "   "}, http.StatusBadRequest},
		{"code too large", http.MethodPost, reviews, map[string]string{"code": strings.Repeat("x", 1025)}, http.StatusBadRequest},
		{"malformed json", http.MethodPost, reviews, "{not json", http.StatusBadRequest},
		{"unknown field", http.MethodPost, reviews, map[string]string{"snippet": "x"}, http.StatusBadRequest},
		{"body far too large", http.MethodPost, reviews, map[string]string{"code": strings.Repeat("x", 10000)}, http.StatusRequestEntityTooLarge},
		{"bad project id", http.MethodGet, "/api/v1/projects/abc", nil, http.StatusBadRequest},
		{"empty project name", http.MethodPost, "/api/v1/projects", map[string]string{"name": "", "language": "go"}, http.StatusBadRequest},
		{"empty question", http.MethodPost, reviews + "/1/comments", map[string]string{"question": ""}, http.StatusBadRequest},
		{"empty rule", http.MethodPost, "/api/v1/projects/" + itoa(p.ID) + "/guidelines", map[string]string{"rule_text": " "}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, tt.method, tt.path, owner, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestAPI_AskOnPendingReview(t *testing.T) {
	a := newAPI(t)
	owner := token(t, 1)
	p := createProject(t, a, owner)

	pending := &core.Review{CodeSnapshot: "x = 1", ProjectID: p.ID, UserID: 1}
	require.NoError(t, a.store.CreateReview(context.Background(), pending))

	rec := a.do(t, http.MethodPost, "/api/v1/projects/"+itoa(p.ID)+"/reviews/"+itoa(pending.ID)+"/comments", owner, map[string]string{"question": "why?"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAPI_AsyncReview(t *testing.T) {
	a := newAPI(t)
	owner := token(t, 1)
	p := createProject(t, a, owner)

	a.gateway.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(reply, nil)

	rec := a.do(t, http.MethodPost, "/api/v1/projects/"+itoa(p.ID)+"/reviews?async=true", owner, map[string]string{"code": "def f(): pass"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	rev := decode[handler.ReviewResponse](t, rec)
	assert.Equal(t, core.ReviewPending, rev.Status)
	assert.Nil(t, rev.LLMResponse)

	// Stop drains the queue.
	a.dispatcher.Stop()

	rec = a.do(t, http.MethodGet, "/api/v1/projects/"+itoa(p.ID)+"/reviews/"+itoa(rev.ID), owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	done := decode[handler.ReviewResponse](t, rec)
	assert.Equal(t, core.ReviewCompleted, done.Status)
	require.NotNil(t, done.EffortEstimation)
	assert.Equal(t, "3/10", *done.EffortEstimation)
	require.NotNil(t, done.CompletedAt)
}

func TestAPI_AsyncReviewAfterStopIsAbandoned(t *testing.T) {
	a := newAPI(t)
	owner := token(t, 1)
	p := createProject(t, a, owner)
	a.dispatcher.Stop()

	rec := a.do(t, http.MethodPost, "/api/v1/projects/"+itoa(p.ID)+"/reviews?async=true", owner, map[string]string{"code": "x = 1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rev := decode[handler.ReviewResponse](t, rec)
	assert.Equal(t, core.ReviewCompleted, rev.Status)
	require.NotNil(t, rev.LLMResponse)
	assert.Equal(t, review.FallbackReview, *rev.LLMResponse)
}

func TestAPI_DeleteProject(t *testing.T) {
	a := newAPI(t)
	owner := token(t, 1)
	p := createProject(t, a, owner)
	path := "/api/v1/projects/" + itoa(p.ID)

	rec := a.do(t, http.MethodDelete, path, owner, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, http.MethodGet, path, owner, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
