package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/renewly/internal/config"
	"github.com/dukerupert/renewly/internal/database"
	"github.com/dukerupert/renewly/internal/email"
	"github.com/dukerupert/renewly/internal/housekeeping"
	"github.com/dukerupert/renewly/internal/logging"
	"github.com/dukerupert/renewly/internal/push"
	"github.com/dukerupert/renewly/internal/server"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "vapid" {
		generateVAPIDKeys()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	pushSvc := push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.PushSubscriber)
	if !pushSvc.Configured() {
		slog.Warn("push notifications disabled: VAPID keys not set")
	}
	emailClient := email.NewClient(cfg.PostmarkToken, cfg.EmailFrom, cfg.BaseURL)
	if !emailClient.Configured() {
		slog.Warn("email reminders disabled: postmark token not set")
	}

	srv, err := server.New(db, server.Options{
		Push:             pushSvc,
		Email:            emailClient,
		Location:         cfg.Location,
		WebSocketOrigins: cfg.WebSocketOrigins,
	}, logger)
	if err != nil {
		slog.Error("failed to build server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	keeper := housekeeping.New(srv.ReminderStore(), cfg.HousekeepingCron, cfg.HistoryRetention(),
		cfg.Location, logger.With("component", "housekeeping"), srv.RateLimiter())
	if err := keeper.Start(); err != nil {
		slog.Error("failed to start housekeeping", "error", err)
		os.Exit(1)
	}

	scheduler := srv.Scheduler()
	scheduler.Start(ctx)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("renewly starting", "addr", httpServer.Addr, "timezone", cfg.Location.String())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scheduler.Stop()
	keeper.Stop(shutdownCtx)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

func generateVAPIDKeys() {
	pub, priv, err := push.GenerateVAPIDKeys()
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate VAPID keys: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("RENEWLY_VAPID_PUBLIC_KEY=%s\nRENEWLY_VAPID_PRIVATE_KEY=%s\n", pub, priv)
}
