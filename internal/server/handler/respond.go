// Package handler implements the JSON API for projects, guidelines, reviews
// and review conversations.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sevigo/codezen/internal/core"
	"github.com/sevigo/codezen/internal/server/middleware"
)

// validationError is a client mistake in the request payload or path.
type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}

func invalid(format string, args ...any) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps domain errors onto status codes. Records owned by someone
// else are reported as missing.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var vErr *validationError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &vErr):
		writeMessage(w, http.StatusBadRequest, vErr.msg)
	case errors.As(err, &tooLarge):
		writeMessage(w, http.StatusRequestEntityTooLarge, "request body too large")
	case errors.Is(err, core.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "not found")
	case errors.Is(err, core.ErrReviewPending):
		writeMessage(w, http.StatusConflict, "review is still pending")
	default:
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeMessage(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return invalid("invalid JSON body: %v", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, invalid("invalid %s: %q", name, raw)
	}
	return id, nil
}

func requireText(field, value string, limit int) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", invalid("%s must not be empty", field)
	}
	if limit > 0 && len(value) > limit {
		return "", invalid("%s exceeds %d bytes", field, limit)
	}
	return value, nil
}

func currentUser(r *http.Request) (*core.User, error) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		return nil, errors.New("no authenticated user in request context")
	}
	return user, nil
}
