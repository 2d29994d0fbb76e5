package handler

import (
	"net/http"
)

// Ask posts a question about a review and returns the stored question,
// the answer and the updated conversation.
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
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

	var req askRequest
	if err := decodeJSON(w, r, bodyLimit(h.limits.MaxTextBytes), &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	question, err := requireText("question", req.Question, h.limits.MaxTextBytes)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	ex, err := h.conversation.Ask(r.Context(), projectID, reviewID, question, user)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, AskResponse{
		Question: toComment(ex.Question),
		Answer:   toComment(ex.Answer),
		History:  mapSlice(ex.History, toComment),
		Fallback: ex.Fallback,
	})
}

func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
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
	comments, err := h.conversation.ListComments(r.Context(), projectID, reviewID, user)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(comments, toComment))
}
