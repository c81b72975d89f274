package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dukerupert/renewly/internal/auth"
	"github.com/dukerupert/renewly/internal/model"
)

// UserHeader carries the acting user's id on API requests.
const UserHeader = "X-User-ID"

type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// RequireUser resolves the user named by the X-User-ID header and stores it
// in the request context. Browsers cannot set headers on WebSocket upgrades,
// so the user_id query parameter is accepted as a fallback.
func RequireUser(users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(UserHeader)
			if raw == "" {
				raw = r.URL.Query().Get("user_id")
			}
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id <= 0 {
				unauthorized(w)
				return
			}

			user, err := users.GetByID(r.Context(), id)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to load user")
				return
			}
			if user == nil {
				unauthorized(w)
				return
			}

			ctx := auth.WithAuth(r.Context(), auth.AuthContext{UserID: user.ID, Email: user.Email})
			recordUser(ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "unknown or missing user")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
