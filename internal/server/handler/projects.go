package handler

import (
	"net/http"
	"strings"

	"github.com/sevigo/codezen/internal/core"
)

const maxNameBytes = 255

func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req createProjectRequest
	if err := decodeJSON(w, r, bodyLimit(maxNameBytes*2), &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	name, err := requireText("name", strings.TrimSpace(req.Name), maxNameBytes)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	language, err := requireText("language", strings.ToLower(strings.TrimSpace(req.Language)), 64)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	p := &core.Project{Name: name, Language: language, OwnerID: user.ID}
	if err := h.store.CreateProject(r.Context(), p); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.logger.Info("project created", "project_id", p.ID, "user_id", user.ID)
	writeJSON(w, http.StatusCreated, toProject(p))
}

func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	projects, err := h.store.ListProjects(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(projects, toProject))
}

func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	user, projectID, err := h.projectScope(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, err := h.store.GetProject(r.Context(), projectID, user.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toProject(p))
}

func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	user, projectID, err := h.projectScope(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.store.DeleteProject(r.Context(), projectID, user.ID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.logger.Info("project deleted", "project_id", projectID, "user_id", user.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AddGuideline(w http.ResponseWriter, r *http.Request) {
	user, projectID, err := h.projectScope(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req addGuidelineRequest
	if err := decodeJSON(w, r, bodyLimit(h.limits.MaxTextBytes), &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	rule, err := requireText("rule_text", req.RuleText, h.limits.MaxTextBytes)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if _, err := h.store.GetProject(r.Context(), projectID, user.ID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	g := &core.Guideline{RuleText: rule, ProjectID: projectID}
	if err := h.store.AddGuideline(r.Context(), g); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGuideline(g))
}

func (h *Handler) ListGuidelines(w http.ResponseWriter, r *http.Request) {
	user, projectID, err := h.projectScope(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if _, err := h.store.GetProject(r.Context(), projectID, user.ID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	guidelines, err := h.store.ListGuidelines(r.Context(), projectID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(guidelines, toGuideline))
}

func (h *Handler) projectScope(r *http.Request) (*core.User, int64, error) {
	user, err := currentUser(r)
	if err != nil {
		return nil, 0, err
	}
	projectID, err := pathID(r, "projectID")
	if err != nil {
		return nil, 0, err
	}
	return user, projectID, nil
}
