package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/renewly/internal/auth"
	"github.com/dukerupert/renewly/internal/model"
	"github.com/dukerupert/renewly/internal/push"
	"github.com/dukerupert/renewly/internal/store"
)

type PushHandler struct {
	devices *store.PushStore
	service *push.Service
	logger  *slog.Logger
}

func NewPushHandler(devices *store.PushStore, svc *push.Service, logger *slog.Logger) *PushHandler {
	return &PushHandler{devices: devices, service: svc, logger: logger}
}

type subscribeRequest struct {
	Endpoint   string `json:"endpoint"`
	P256dh     string `json:"p256dh"`
	Auth       string `json:"auth"`
	DeviceName string `json:"device_name"`
}

// Subscribe handles POST /api/push/subscribe
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if req.Endpoint == "" || req.P256dh == "" || req.Auth == "" {
		writeError(w, http.StatusBadRequest, "endpoint, p256dh, and auth are required")
		return
	}
	if !strings.HasPrefix(req.Endpoint, "https://") {
		writeError(w, http.StatusBadRequest, "endpoint must be an https URL")
		return
	}

	device, err := h.devices.CreateDevice(r.Context(), userID, req.Endpoint, req.P256dh, req.Auth, strings.TrimSpace(req.DeviceName))
	if err != nil {
		h.logger.Error("create push device", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "failed to save device")
		return
	}

	writeJSON(w, http.StatusCreated, device)
}

// ListDevices handles GET /api/push/devices
func (h *PushHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.devices.ListByUser(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list devices")
		return
	}
	if devices == nil {
		devices = []model.PushDevice{}
	}
	writeJSON(w, http.StatusOK, devices)
}

// DeleteDevice handles DELETE /api/push/devices/{id}
func (h *PushHandler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.devices.GetByID(r.Context(), id, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get device")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}

	if err := h.devices.DeleteDevice(r.Context(), id, userID); err != nil {
		h.logger.Error("delete push device", "error", err, "device_id", id)
		writeError(w, http.StatusInternalServerError, "failed to delete device")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetVAPIDKey handles GET /api/push/vapid-key
func (h *PushHandler) GetVAPIDKey(w http.ResponseWriter, r *http.Request) {
	if !h.service.Configured() {
		writeError(w, http.StatusServiceUnavailable, "push notifications are not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.service.VAPIDPublicKey()})
}
