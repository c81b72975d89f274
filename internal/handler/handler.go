package handler

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"

	"github.com/dukerupert/renewly/internal/websocket"
)

var hexColorRegexp = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

const defaultColor = "#3B82F6"

// Publisher delivers real-time events to a user's open sessions.
type Publisher interface {
	SendToUser(userID int64, msg websocket.Message) int
}

func publish(p Publisher, userID int64, msg websocket.Message) {
	if p != nil {
		p.SendToUser(userID, msg)
	}
}

func parseIDParam(r *http.Request) (int64, error) {
	idStr := r.PathValue("id")
	return strconv.ParseInt(idStr, 10, 64)
}

// parseDays reads the days query parameter, falling back to def when absent.
func parseDays(r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return def, true
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 0 || days > 366 {
		return 0, false
	}
	return days, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
