package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/codezen/internal/config"
	"github.com/sevigo/codezen/internal/core"
)

const testSecret = "test-secret"

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, user.Email)
	})
}

func TestJWTAuth(t *testing.T) {
	valid, err := IssueToken(testSecret, core.User{ID: 42, Email: "dev@example.com"}, time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken(testSecret, core.User{ID: 42}, -time.Minute)
	require.NoError(t, err)
	wrongKey, err := IssueToken("other-secret", core.User{ID: 42}, time.Hour)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"email": "x@example.com"}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "42"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"valid token", "Bearer " + valid, http.StatusOK, "dev@example.com"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized, ""},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, ""},
		{"wrong secret", "Bearer " + wrongKey, http.StatusUnauthorized, ""},
		{"no subject", "Bearer " + noSubject, http.StatusUnauthorized, ""},
		{"none algorithm", "Bearer " + noneAlg, http.StatusUnauthorized, ""},
		{"garbage", "Bearer not.a.token", http.StatusUnauthorized, ""},
	}

	h := JWTAuth(testSecret)(echoUser())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestParseToken_ReturnsUser(t *testing.T) {
	raw, err := IssueToken(testSecret, core.User{ID: 7, Email: "a@b.c"}, time.Hour)
	require.NoError(t, err)

	user, err := ParseToken(testSecret, raw)
	require.NoError(t, err)
	assert.Equal(t, int64(7), user.ID)
	assert.Equal(t, "a@b.c", user.Email)
}

func TestUserFromContext_Empty(t *testing.T) {
	_, ok := UserFromContext(context.Background())
	assert.False(t, ok)
}

func TestEvaluateWindow(t *testing.T) {
	tests := []struct {
		name          string
		vals          any
		wantAllowed   bool
		wantRemaining int
		wantRetry     time.Duration
		wantOK        bool
	}{
		{"first hit", []any{int64(1), int64(60000)}, true, 2, time.Minute, true},
		{"at limit", []any{int64(3), int64(1500)}, true, 0, 1500 * time.Millisecond, true},
		{"over limit", []any{int64(4), int64(1500)}, false, 0, 1500 * time.Millisecond, true},
		{"no ttl", []any{int64(1), int64(-1)}, true, 2, 0, true},
		{"wrong shape", []any{int64(1)}, false, 0, 0, false},
		{"wrong types", []any{"1", "2"}, false, 0, 0, false},
		{"not a slice", "OK", false, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed, remaining, retry, ok := evaluateWindow(tt.vals, 3)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantAllowed, allowed)
			assert.Equal(t, tt.wantRemaining, remaining)
			assert.Equal(t, tt.wantRetry, retry)
		})
	}
}

func TestRateLimiter_DisabledPassesThrough(t *testing.T) {
	l := NewRateLimiter(nil, config.RateLimitConfig{Enabled: false}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	called := false
	h := l.Limit("review")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.True(t, called)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRateLimiter_RedisDownFailsOpen(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	cfg := config.RateLimitConfig{Enabled: true, Limit: 1, Window: time.Minute, Prefix: "test"}
	l := NewRateLimiter(rdb, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	h := l.Limit("review")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	for range 3 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusCreated, rec.Code)
	}
}

func TestRateLimiter_Key(t *testing.T) {
	l := NewRateLimiter(nil, config.RateLimitConfig{Prefix: "codezen:ratelimit"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	assert.Equal(t, "codezen:ratelimit:user:anon:review", l.key(req, "review"))

	req = req.WithContext(WithUser(req.Context(), &core.User{ID: 5}))
	assert.Equal(t, "codezen:ratelimit:user:5:comment", l.key(req, "comment"))
}

func TestNewRedisClient_Disabled(t *testing.T) {
	client, err := NewRedisClient(context.Background(), config.RateLimitConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, client)
}
