package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/renewly/internal/auth"
	"github.com/dukerupert/renewly/internal/model"
	"github.com/dukerupert/renewly/internal/reminder"
	"github.com/dukerupert/renewly/internal/store"
	"github.com/dukerupert/renewly/internal/websocket"
	"github.com/google/uuid"
)

// Sweeper runs and reports on reminder sweeps.
type Sweeper interface {
	TriggerCheck(ctx context.Context) (reminder.SweepStats, error)
	GetStatus() reminder.Status
}

type ReminderHandler struct {
	history *store.ReminderStore
	sweeper Sweeper
	hub     Publisher
	logger  *slog.Logger
}

func NewReminderHandler(history *store.ReminderStore, sweeper Sweeper, hub Publisher, logger *slog.Logger) *ReminderHandler {
	return &ReminderHandler{history: history, sweeper: sweeper, hub: hub, logger: logger}
}

// List handles GET /api/reminders?subscription_id=N&limit=N
func (h *ReminderHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var subscriptionID int64
	if raw := q.Get("subscription_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid subscription_id")
			return
		}
		subscriptionID = id
	}
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	entries, err := h.history.ListByUser(r.Context(), auth.UserID(r.Context()), subscriptionID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list reminders")
		return
	}
	if entries == nil {
		entries = []model.ReminderHistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// MarkViewed handles POST /api/reminders/{id}/viewed
func (h *ReminderHandler) MarkViewed(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, model.ReminderViewed)
}

// Dismiss handles POST /api/reminders/{id}/dismissed
func (h *ReminderHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, model.ReminderDismissed)
}

func (h *ReminderHandler) resolve(w http.ResponseWriter, r *http.Request, status model.ReminderStatus) {
	userID := auth.UserID(r.Context())
	id := r.PathValue("id")
	if uuid.Validate(id) != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.history.GetByID(r.Context(), id, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get reminder")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "reminder not found")
		return
	}

	entry, err := h.history.UpdateStatus(r.Context(), id, userID, status)
	if err != nil {
		h.logger.Error("update reminder status", "error", err, "reminder_id", id)
		writeError(w, http.StatusInternalServerError, "failed to update reminder")
		return
	}

	publish(h.hub, userID, websocket.NewMessage("reminder", string(status), entry.SubscriptionID,
		map[string]any{"reminder_id": entry.ID}))
	writeJSON(w, http.StatusOK, entry)
}

// Status handles GET /api/reminders/status
func (h *ReminderHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sweeper.GetStatus())
}

// Check handles POST /api/reminders/check. The sweep covers every user, so
// the route is rate limited.
func (h *ReminderHandler) Check(w http.ResponseWriter, r *http.Request) {
	stats, err := h.sweeper.TriggerCheck(r.Context())
	if errors.Is(err, reminder.ErrSweepInProgress) {
		writeError(w, http.StatusConflict, "a reminder check is already running")
		return
	}
	if err != nil {
		h.logger.Error("manual reminder check", "error", err)
		writeError(w, http.StatusInternalServerError, "reminder check failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
