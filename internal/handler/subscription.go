package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/renewly/internal/auth"
	"github.com/dukerupert/renewly/internal/model"
	"github.com/dukerupert/renewly/internal/reminder"
	"github.com/dukerupert/renewly/internal/store"
	"github.com/dukerupert/renewly/internal/websocket"
)

// ReminderHooks is the part of the reminder scheduler the subscription
// endpoints drive.
type ReminderHooks interface {
	ScheduleForNew(ctx context.Context, sub model.Subscription, userID int64) error
	RescheduleForUpdated(ctx context.Context, sub model.Subscription, userID int64) error
	CancelFor(ctx context.Context, subscriptionID int64) error
	GetExpiringSubscriptions(ctx context.Context, userID int64, days int) ([]reminder.Upcoming, error)
	GetUpcomingAutoRenewals(ctx context.Context, userID int64, days int) ([]reminder.Upcoming, error)
	Today() time.Time
}

const defaultWindowDays = 7

type SubscriptionHandler struct {
	subs       *store.SubscriptionStore
	categories *store.CategoryStore
	tags       *store.TagStore
	reminders  ReminderHooks
	hub        Publisher
	logger     *slog.Logger
}

func NewSubscriptionHandler(subs *store.SubscriptionStore, categories *store.CategoryStore, tags *store.TagStore, reminders ReminderHooks, hub Publisher, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		subs:       subs,
		categories: categories,
		tags:       tags,
		reminders:  reminders,
		hub:        hub,
		logger:     logger,
	}
}

type subscriptionRequest struct {
	Name         string                   `json:"name"`
	AmountCents  int64                    `json:"amount_cents"`
	Currency     string                   `json:"currency"`
	BillingCycle model.BillingCycle       `json:"billing_cycle"`
	RenewalDate  string                   `json:"renewal_date"`
	AutoRenew    *bool                    `json:"auto_renew"`
	Status       model.SubscriptionStatus `json:"status"`
	CategoryID   *int64                   `json:"category_id"`
	TagIDs       []int64                  `json:"tag_ids"`
	Notes        string                   `json:"notes"`
}

func (req subscriptionRequest) toModel() (model.Subscription, error) {
	sub := model.Subscription{
		Name:         strings.TrimSpace(req.Name),
		AmountCents:  req.AmountCents,
		Currency:     strings.ToUpper(strings.TrimSpace(req.Currency)),
		BillingCycle: req.BillingCycle,
		AutoRenew:    true,
		Status:       req.Status,
		CategoryID:   req.CategoryID,
		TagIDs:       req.TagIDs,
		Notes:        req.Notes,
	}
	if sub.Name == "" {
		return sub, fmt.Errorf("name is required")
	}
	if sub.AmountCents < 0 {
		return sub, fmt.Errorf("amount_cents must not be negative")
	}
	if sub.Currency == "" {
		sub.Currency = "USD"
	}
	if len(sub.Currency) != 3 {
		return sub, fmt.Errorf("currency must be a three-letter code")
	}
	if sub.BillingCycle == "" {
		sub.BillingCycle = model.BillingMonthly
	}
	if !sub.BillingCycle.Valid() {
		return sub, fmt.Errorf("billing_cycle must be weekly, monthly, quarterly, or yearly")
	}
	date, err := time.Parse(model.DateLayout, req.RenewalDate)
	if err != nil {
		return sub, fmt.Errorf("renewal_date must be a date (YYYY-MM-DD)")
	}
	sub.RenewalDate = date
	if req.AutoRenew != nil {
		sub.AutoRenew = *req.AutoRenew
	}
	if sub.Status == "" {
		sub.Status = model.SubscriptionActive
	}
	if !sub.Status.Valid() {
		return sub, fmt.Errorf("status must be active, cancelled, or expired")
	}
	return sub, nil
}

// checkLabels verifies the category and tags belong to the user.
func (h *SubscriptionHandler) checkLabels(ctx context.Context, sub model.Subscription, userID int64) (string, error) {
	if sub.CategoryID != nil {
		c, err := h.categories.GetByID(ctx, *sub.CategoryID, userID)
		if err != nil {
			return "", err
		}
		if c == nil {
			return "category not found", nil
		}
	}
	for _, id := range sub.TagIDs {
		t, err := h.tags.GetByID(ctx, id, userID)
		if err != nil {
			return "", err
		}
		if t == nil {
			return fmt.Sprintf("tag %d not found", id), nil
		}
	}
	return "", nil
}

func (h *SubscriptionHandler) decode(w http.ResponseWriter, r *http.Request, userID int64) (model.Subscription, bool) {
	var req subscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return model.Subscription{}, false
	}
	sub, err := req.toModel()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return sub, false
	}
	problem, err := h.checkLabels(r.Context(), sub, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check labels")
		return sub, false
	}
	if problem != "" {
		writeError(w, http.StatusBadRequest, problem)
		return sub, false
	}
	sub.UserID = userID
	return sub, true
}

func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	subs, err := h.subs.ListByUser(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}
	if subs == nil {
		subs = []model.Subscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	sub, ok := h.decode(w, r, userID)
	if !ok {
		return
	}

	created, err := h.subs.Create(r.Context(), sub)
	if err != nil {
		h.logger.Error("create subscription", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "failed to create subscription")
		return
	}

	if err := h.reminders.ScheduleForNew(r.Context(), *created, userID); err != nil {
		h.logger.Error("schedule reminder", "error", err, "subscription_id", created.ID)
	}
	publish(h.hub, userID, websocket.NewMessage("subscription", "created", created.ID, nil))

	writeJSON(w, http.StatusCreated, created)
}

// Update handles PUT /api/subscriptions/{id}. Cancelling a subscription drops
// its pending reminders; any other change re-evaluates it.
func (h *SubscriptionHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.load(w, r)
	if !ok {
		return
	}
	userID := existing.UserID

	sub, ok := h.decode(w, r, userID)
	if !ok {
		return
	}
	sub.ID = existing.ID

	updated, err := h.subs.Update(r.Context(), sub)
	if err != nil {
		h.logger.Error("update subscription", "error", err, "subscription_id", sub.ID)
		writeError(w, http.StatusInternalServerError, "failed to update subscription")
		return
	}

	h.reschedule(r.Context(), *updated)
	publish(h.hub, userID, websocket.NewMessage("subscription", "updated", updated.ID, nil))

	writeJSON(w, http.StatusOK, updated)
}

func (h *SubscriptionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.load(w, r)
	if !ok {
		return
	}

	if err := h.subs.Delete(r.Context(), existing.ID, existing.UserID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete subscription")
		return
	}
	if err := h.reminders.CancelFor(r.Context(), existing.ID); err != nil {
		h.logger.Error("cancel reminders", "error", err, "subscription_id", existing.ID)
	}
	publish(h.hub, existing.UserID, websocket.NewMessage("subscription", "deleted", existing.ID, nil))

	w.WriteHeader(http.StatusNoContent)
}

// Renew handles POST /api/subscriptions/{id}/renew: the renewal date moves
// forward by whole billing cycles until it is today or later, and the
// subscription becomes active again.
func (h *SubscriptionHandler) Renew(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.load(w, r)
	if !ok {
		return
	}

	next, err := nextRenewal(existing.BillingCycle, existing.RenewalDate, h.reminders.Today())
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	sub := *existing
	sub.RenewalDate = next
	sub.Status = model.SubscriptionActive

	updated, err := h.subs.Update(r.Context(), sub)
	if err != nil {
		h.logger.Error("renew subscription", "error", err, "subscription_id", sub.ID)
		writeError(w, http.StatusInternalServerError, "failed to renew subscription")
		return
	}

	h.reschedule(r.Context(), *updated)
	publish(h.hub, updated.UserID, websocket.NewMessage("subscription", "renewed", updated.ID,
		map[string]any{"renewal_date": updated.RenewalDate.Format(model.DateLayout)}))

	writeJSON(w, http.StatusOK, updated)
}

// Expiring handles GET /api/subscriptions/expiring?days=N
func (h *SubscriptionHandler) Expiring(w http.ResponseWriter, r *http.Request) {
	days, ok := parseDays(r, defaultWindowDays)
	if !ok {
		writeError(w, http.StatusBadRequest, "days must be between 0 and 366")
		return
	}
	subs, err := h.reminders.GetExpiringSubscriptions(r.Context(), auth.UserID(r.Context()), days)
	if err != nil {
		h.logger.Error("list expiring subscriptions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list expiring subscriptions")
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

// UpcomingRenewals handles GET /api/subscriptions/upcoming-renewals?days=N
func (h *SubscriptionHandler) UpcomingRenewals(w http.ResponseWriter, r *http.Request) {
	days, ok := parseDays(r, defaultWindowDays)
	if !ok {
		writeError(w, http.StatusBadRequest, "days must be between 0 and 366")
		return
	}
	subs, err := h.reminders.GetUpcomingAutoRenewals(r.Context(), auth.UserID(r.Context()), days)
	if err != nil {
		h.logger.Error("list upcoming renewals", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list upcoming renewals")
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

// nextRenewal advances date at least one cycle and keeps going while the
// result is still before today.
func nextRenewal(cycle model.BillingCycle, date, today time.Time) (time.Time, error) {
	next, err := cycle.Next(date)
	if err != nil {
		return time.Time{}, err
	}
	for next.Before(today) {
		if next, err = cycle.Next(next); err != nil {
			return time.Time{}, err
		}
	}
	return next, nil
}

func (h *SubscriptionHandler) load(w http.ResponseWriter, r *http.Request) (*model.Subscription, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil, false
	}
	sub, err := h.subs.GetByID(r.Context(), id, auth.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get subscription")
		return nil, false
	}
	if sub == nil {
		writeError(w, http.StatusNotFound, "subscription not found")
		return nil, false
	}
	return sub, true
}

func (h *SubscriptionHandler) reschedule(ctx context.Context, sub model.Subscription) {
	var err error
	if sub.Status == model.SubscriptionCancelled {
		err = h.reminders.CancelFor(ctx, sub.ID)
	} else {
		err = h.reminders.RescheduleForUpdated(ctx, sub, sub.UserID)
	}
	if err != nil {
		h.logger.Error("reschedule reminders", "error", err, "subscription_id", sub.ID)
	}
}
