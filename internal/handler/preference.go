package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/dukerupert/renewly/internal/auth"
	"github.com/dukerupert/renewly/internal/model"
	"github.com/dukerupert/renewly/internal/store"
)

const (
	minAdvanceDays = 1
	maxAdvanceDays = 7
)

type PreferenceHandler struct {
	prefs  *store.PreferenceStore
	logger *slog.Logger
}

func NewPreferenceHandler(prefs *store.PreferenceStore, logger *slog.Logger) *PreferenceHandler {
	return &PreferenceHandler{prefs: prefs, logger: logger}
}

// Get handles GET /api/preferences/reminders
func (h *PreferenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	pref, err := h.prefs.GetReminderPreference(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get reminder preference")
		return
	}
	if pref == nil {
		writeError(w, http.StatusNotFound, "reminder preference not found")
		return
	}
	writeJSON(w, http.StatusOK, pref)
}

type preferenceRequest struct {
	Enabled     bool                        `json:"enabled"`
	AdvanceDays int                         `json:"advance_days"`
	Channels    []model.NotificationChannel `json:"channels"`
}

func (req preferenceRequest) validate() error {
	if req.AdvanceDays < minAdvanceDays || req.AdvanceDays > maxAdvanceDays {
		return fmt.Errorf("advance_days must be between %d and %d", minAdvanceDays, maxAdvanceDays)
	}
	seen := make(map[string]bool)
	for _, c := range req.Channels {
		if !slices.Contains(model.Channels, c.Channel) {
			return fmt.Errorf("unknown channel: %s", c.Channel)
		}
		if seen[c.Channel] {
			return fmt.Errorf("duplicate channel: %s", c.Channel)
		}
		seen[c.Channel] = true
	}
	return nil
}

// Update handles PUT /api/preferences/reminders. Channels left out of the
// request keep their settings.
func (h *PreferenceHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req preferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pref, err := h.prefs.SetReminderPreference(r.Context(), userID, req.Enabled, req.AdvanceDays, req.Channels)
	if err != nil {
		h.logger.Error("set reminder preference", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "failed to save reminder preference")
		return
	}
	writeJSON(w, http.StatusOK, pref)
}
