package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/renewly/internal/email"
	"github.com/dukerupert/renewly/internal/handler"
	"github.com/dukerupert/renewly/internal/metrics"
	"github.com/dukerupert/renewly/internal/middleware"
	"github.com/dukerupert/renewly/internal/model"
	"github.com/dukerupert/renewly/internal/notify"
	"github.com/dukerupert/renewly/internal/push"
	"github.com/dukerupert/renewly/internal/reminder"
	"github.com/dukerupert/renewly/internal/store"
	ws "github.com/dukerupert/renewly/internal/websocket"
)

// Options carries the optional delivery channels and scheduler settings.
type Options struct {
	Push             *push.Service
	Email            *email.Client
	Location         *time.Location
	WebSocketOrigins []string
	// SchedulerOptions are passed through to reminder.New.
	SchedulerOptions []reminder.Option
}

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	userH         *handler.UserHandler
	subscriptionH *handler.SubscriptionHandler
	categoryH     *handler.CategoryHandler
	tagH          *handler.TagHandler
	preferenceH   *handler.PreferenceHandler
	reminderH     *handler.ReminderHandler
	pushH         *handler.PushHandler
	userStore     *store.UserStore
	reminderStore *store.ReminderStore
	rateLimiter   *middleware.RateLimiter
	scheduler     *reminder.Scheduler
	wsOrigins     []string
	logger        *slog.Logger
}

func New(db *sql.DB, opts Options, logger *slog.Logger) (*Server, error) {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	subscriptionStore := store.NewSubscriptionStore(db)
	categoryStore := store.NewCategoryStore(db)
	tagStore := store.NewTagStore(db)
	preferenceStore := store.NewPreferenceStore(db)
	reminderStore := store.NewReminderStore(db)
	pushStore := store.NewPushStore(db)

	pushSvc := opts.Push
	if pushSvc == nil {
		pushSvc = push.NewService("", "", "")
	}

	// Channels without credentials stay unregistered and are skipped.
	dispatcher := notify.NewDispatcher(preferenceStore, logger.With("component", "notify"))
	dispatcher.Register(model.ChannelInApp, notify.NewInAppSender(hub))
	if pushSvc.Configured() {
		dispatcher.Register(model.ChannelPush, notify.NewPushSender(pushSvc, pushStore, logger.With("component", "push")))
	}
	if opts.Email != nil && opts.Email.Configured() {
		dispatcher.Register(model.ChannelEmail, notify.NewEmailSender(opts.Email, userStore))
	}

	schedOpts := append([]reminder.Option{reminder.WithLocation(opts.Location)}, opts.SchedulerOptions...)
	scheduler, err := reminder.New(reminder.Deps{
		Subscriptions: subscriptionStore,
		Preferences:   preferenceStore,
		Ledger:        reminderStore,
		Notifier:      dispatcher,
		Logger:        logger.With("component", "reminder"),
	}, schedOpts...)
	if err != nil {
		return nil, fmt.Errorf("create reminder scheduler: %w", err)
	}

	return &Server{
		db:            db,
		hub:           hub,
		userH:         handler.NewUserHandler(userStore, logger.With("component", "user")),
		subscriptionH: handler.NewSubscriptionHandler(subscriptionStore, categoryStore, tagStore, scheduler, hub, logger.With("component", "subscription")),
		categoryH:     handler.NewCategoryHandler(categoryStore, logger.With("component", "category")),
		tagH:          handler.NewTagHandler(tagStore, logger.With("component", "tag")),
		preferenceH:   handler.NewPreferenceHandler(preferenceStore, logger.With("component", "preference")),
		reminderH:     handler.NewReminderHandler(reminderStore, scheduler, hub, logger.With("component", "reminder_handler")),
		pushH:         handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push_handler")),
		userStore:     userStore,
		reminderStore: reminderStore,
		rateLimiter:   middleware.NewRateLimiter(),
		scheduler:     scheduler,
		wsOrigins:     opts.WebSocketOrigins,
		logger:        logger,
	}, nil
}

// Scheduler returns the reminder scheduler for lifecycle management.
func (s *Server) Scheduler() *reminder.Scheduler {
	return s.scheduler
}

// ReminderStore returns the reminder ledger for housekeeping.
func (s *Server) ReminderStore() *store.ReminderStore {
	return s.reminderStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("POST /api/users", s.rateLimitedHandler(middleware.RealIP, 10, s.userH.Create))
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.Handle("GET /metrics", metrics.Handler())

	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	outerMux.Handle("/", middleware.RequireUser(s.userStore)(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.db.PingContext(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(keyFunc func(*http.Request) string, limit int, h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, limit, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/me", s.userH.Me)

	// Subscriptions
	mux.HandleFunc("GET /api/subscriptions", s.subscriptionH.List)
	mux.HandleFunc("POST /api/subscriptions", s.subscriptionH.Create)
	mux.HandleFunc("GET /api/subscriptions/expiring", s.subscriptionH.Expiring)
	mux.HandleFunc("GET /api/subscriptions/upcoming-renewals", s.subscriptionH.UpcomingRenewals)
	mux.HandleFunc("GET /api/subscriptions/{id}", s.subscriptionH.Get)
	mux.HandleFunc("PUT /api/subscriptions/{id}", s.subscriptionH.Update)
	mux.HandleFunc("DELETE /api/subscriptions/{id}", s.subscriptionH.Delete)
	mux.HandleFunc("POST /api/subscriptions/{id}/renew", s.subscriptionH.Renew)

	// Categories and tags
	mux.HandleFunc("GET /api/categories", s.categoryH.List)
	mux.HandleFunc("POST /api/categories", s.categoryH.Create)
	mux.HandleFunc("PUT /api/categories/{id}", s.categoryH.Update)
	mux.HandleFunc("DELETE /api/categories/{id}", s.categoryH.Delete)
	mux.HandleFunc("GET /api/tags", s.tagH.List)
	mux.HandleFunc("POST /api/tags", s.tagH.Create)
	mux.HandleFunc("PUT /api/tags/{id}", s.tagH.Update)
	mux.HandleFunc("DELETE /api/tags/{id}", s.tagH.Delete)

	// Reminders
	mux.HandleFunc("GET /api/preferences/reminders", s.preferenceH.Get)
	mux.HandleFunc("PUT /api/preferences/reminders", s.preferenceH.Update)
	mux.HandleFunc("GET /api/reminders", s.reminderH.List)
	mux.HandleFunc("GET /api/reminders/status", s.reminderH.Status)
	mux.HandleFunc("POST /api/reminders/check", s.rateLimitedHandler(middleware.UserOrIPKey, 5, s.reminderH.Check))
	mux.HandleFunc("POST /api/reminders/{id}/viewed", s.reminderH.MarkViewed)
	mux.HandleFunc("POST /api/reminders/{id}/dismissed", s.reminderH.Dismiss)

	// Push devices
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("GET /api/push/devices", s.pushH.ListDevices)
	mux.HandleFunc("DELETE /api/push/devices/{id}", s.pushH.DeleteDevice)
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.wsOrigins, s.logger.With("component", "websocket")))
}
