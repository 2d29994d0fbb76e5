package handler

import (
	"net/http"
	"strconv"

	"github.com/sevigo/codezen/internal/jobs"
)

// SubmitReview stores a snapshot and reviews it. With ?async=true the
// pending review is returned at once and completed in the background.
func (h *Handler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	user, projectID, err := h.projectScope(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req submitReviewRequest
	if err := decodeJSON(w, r, bodyLimit(h.limits.MaxCodeBytes), &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	code, err := requireText("code", req.Code, h.limits.MaxCodeBytes)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	async, _ := strconv.ParseBool(r.URL.Query().Get("async"))
	if !async || h.dispatcher == nil {
		rev, err := h.reviews.SubmitForReview(r.Context(), projectID, code, user)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, toReview(rev, true))
		return
	}

	rev, err := h.reviews.BeginReview(r.Context(), projectID, code, user)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	rev, err = jobs.DispatchOrAbandon(r.Context(), h.dispatcher, h.reviews, rev, h.logger)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	status := http.StatusAccepted
	if !rev.IsPending() {
		status = http.StatusCreated
	}
	writeJSON(w, status, toReview(rev, false))
}

func (h *Handler) ListReviews(w http.ResponseWriter, r *http.Request) {
	user, projectID, err := h.projectScope(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	reviews, err := h.reviews.ListReviews(r.Context(), projectID, user)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	resp := make([]ReviewResponse, 0, len(reviews))
	for _, rev := range reviews {
		resp = append(resp, toReview(rev, false))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetReview(w http.ResponseWriter, r *http.Request) {
	user, projectID, err := h.projectScope(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	reviewID, err := pathID(r, "reviewID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	rev, err := h.reviews.GetReview(r.Context(), projectID, reviewID, user)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toReview(rev, true))
}
