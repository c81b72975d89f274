package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/renewly/internal/auth"
	"github.com/dukerupert/renewly/internal/model"
	"github.com/dukerupert/renewly/internal/store"
)

type labelRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func decodeLabel(w http.ResponseWriter, r *http.Request) (labelRequest, bool) {
	var req labelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return req, false
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return req, false
	}
	if req.Color == "" {
		req.Color = defaultColor
	}
	if !hexColorRegexp.MatchString(req.Color) {
		writeError(w, http.StatusBadRequest, "color must be a hex color (e.g. #FF0000)")
		return req, false
	}
	return req, true
}

type CategoryHandler struct {
	categories *store.CategoryStore
	logger     *slog.Logger
}

func NewCategoryHandler(categories *store.CategoryStore, logger *slog.Logger) *CategoryHandler {
	return &CategoryHandler{categories: categories, logger: logger}
}

func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.List(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}
	if categories == nil {
		categories = []model.Category{}
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	req, ok := decodeLabel(w, r)
	if !ok {
		return
	}

	taken, err := h.nameTaken(r, userID, req.Name, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check name")
		return
	}
	if taken {
		writeError(w, http.StatusConflict, "a category with that name already exists")
		return
	}

	category, err := h.categories.Create(r.Context(), userID, req.Name, req.Color)
	if err != nil {
		h.logger.Error("create category", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create category")
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.categories.GetByID(r.Context(), id, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get category")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "category not found")
		return
	}

	req, ok := decodeLabel(w, r)
	if !ok {
		return
	}
	taken, err := h.nameTaken(r, userID, req.Name, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check name")
		return
	}
	if taken {
		writeError(w, http.StatusConflict, "a category with that name already exists")
		return
	}

	category, err := h.categories.Update(r.Context(), id, userID, req.Name, req.Color)
	if err != nil {
		h.logger.Error("update category", "error", err, "category_id", id)
		writeError(w, http.StatusInternalServerError, "failed to update category")
		return
	}
	writeJSON(w, http.StatusOK, category)
}

// Delete handles DELETE /api/categories/{id}. Subscriptions in the category
// become uncategorized.
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.categories.GetByID(r.Context(), id, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get category")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "category not found")
		return
	}

	if err := h.categories.Delete(r.Context(), id, userID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete category")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CategoryHandler) nameTaken(r *http.Request, userID int64, name string, excludeID int64) (bool, error) {
	categories, err := h.categories.List(r.Context(), userID)
	if err != nil {
		return false, err
	}
	for _, c := range categories {
		if c.ID != excludeID && strings.EqualFold(c.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

type TagHandler struct {
	tags   *store.TagStore
	logger *slog.Logger
}

func NewTagHandler(tags *store.TagStore, logger *slog.Logger) *TagHandler {
	return &TagHandler{tags: tags, logger: logger}
}

func (h *TagHandler) List(w http.ResponseWriter, r *http.Request) {
	tags, err := h.tags.List(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tags")
		return
	}
	if tags == nil {
		tags = []model.Tag{}
	}
	writeJSON(w, http.StatusOK, tags)
}

func (h *TagHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	req, ok := decodeLabel(w, r)
	if !ok {
		return
	}

	taken, err := h.nameTaken(r, userID, req.Name, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check name")
		return
	}
	if taken {
		writeError(w, http.StatusConflict, "a tag with that name already exists")
		return
	}

	tag, err := h.tags.Create(r.Context(), userID, req.Name, req.Color)
	if err != nil {
		h.logger.Error("create tag", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create tag")
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}

func (h *TagHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.tags.GetByID(r.Context(), id, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get tag")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "tag not found")
		return
	}

	req, ok := decodeLabel(w, r)
	if !ok {
		return
	}
	taken, err := h.nameTaken(r, userID, req.Name, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check name")
		return
	}
	if taken {
		writeError(w, http.StatusConflict, "a tag with that name already exists")
		return
	}

	tag, err := h.tags.Update(r.Context(), id, userID, req.Name, req.Color)
	if err != nil {
		h.logger.Error("update tag", "error", err, "tag_id", id)
		writeError(w, http.StatusInternalServerError, "failed to update tag")
		return
	}
	writeJSON(w, http.StatusOK, tag)
}

func (h *TagHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.tags.GetByID(r.Context(), id, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get tag")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "tag not found")
		return
	}

	if err := h.tags.Delete(r.Context(), id, userID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete tag")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TagHandler) nameTaken(r *http.Request, userID int64, name string, excludeID int64) (bool, error) {
	tags, err := h.tags.List(r.Context(), userID)
	if err != nil {
		return false, err
	}
	for _, t := range tags {
		if t.ID != excludeID && strings.EqualFold(t.Name, name) {
			return true, nil
		}
	}
	return false, nil
}
