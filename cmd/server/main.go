package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"cortado/internal/database/boltstore"
	"cortado/internal/email"
	"cortado/internal/handlers"
	"cortado/internal/moderation"
	"cortado/internal/notifications"
	"cortado/internal/push"
	"cortado/internal/routing"
	"cortado/internal/tracing"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env if present; real environments set variables directly
	_ = godotenv.Load()

	// Configure zerolog
	// Set log level from environment (default: info)
	logLevel := os.Getenv("LOG_LEVEL")
	switch logLevel {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info", "":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// Use pretty console logging in development, JSON in production
	if os.Getenv("LOG_FORMAT") == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	log.Info().Msg("Starting Cortado moderation service")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Tracing is best-effort: a missing collector should not keep the
	// service from starting.
	tp, err := tracing.Init(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Tracing disabled")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("Tracer shutdown failed")
			}
		}()
	}

	// Get port from env or use default
	port := os.Getenv("PORT")
	if port == "" {
		port = "18920"
	}

	// Initialize BoltDB store for users, reports, and notifications
	dbPath := os.Getenv("CORTADO_DB_PATH")
	if dbPath == "" {
		dataDir := os.Getenv("XDG_DATA_HOME")
		if dataDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to get home directory")
			}
			dataDir = filepath.Join(home, ".local", "share")
		}
		dbPath = filepath.Join(dataDir, "cortado", "cortado.db")
	}

	store, err := boltstore.Open(boltstore.Options{
		Path: dbPath,
	})
	if err != nil {
		log.Fatal().Err(err).Str("path", dbPath).Msg("Failed to open database")
	}
	defer store.Close()

	log.Info().Str("path", dbPath).Msg("Database opened")

	// Get specialized stores
	userStore := store.UserStore()
	reportStore := store.ReportStore()
	notifStore := store.NotificationStore()

	// Email delivery is optional; an unconfigured sender no-ops
	smtpPort := 587
	if v := os.Getenv("SMTP_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			log.Fatal().Str("value", v).Msg("Invalid SMTP_PORT")
		}
		smtpPort = p
	}
	emailSender := email.NewSender(email.Config{
		Host:     os.Getenv("SMTP_HOST"),
		Port:     smtpPort,
		User:     os.Getenv("SMTP_USER"),
		Pass:     os.Getenv("SMTP_PASS"),
		From:     os.Getenv("SMTP_FROM"),
		FromName: os.Getenv("SMTP_FROM_NAME"),
	})
	if emailSender.Enabled() {
		log.Info().Str("host", os.Getenv("SMTP_HOST")).Msg("Email delivery enabled")
	} else {
		log.Info().Msg("Email delivery disabled (SMTP_HOST not set)")
	}

	pushSender := push.NewSender(push.Config{
		AuthToken: os.Getenv("PUSH_AUTH_TOKEN"),
	})

	// Realtime hub and dispatcher
	queueCap := notifications.DefaultQueueCapacity
	if v := os.Getenv("NOTIFICATION_QUEUE_CAP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			log.Fatal().Str("value", v).Msg("Invalid NOTIFICATION_QUEUE_CAP")
		}
		queueCap = n
	}
	hub := notifications.NewHub(queueCap)

	dispatcher := notifications.NewDispatcher(
		notifStore,
		hub,
		notifStore,
		notifStore,
		emailSender,
		pushSender,
	)

	// Moderation action service, notifying bans through the dispatcher
	actions := moderation.NewActionService(
		userStore,
		reportStore,
		reportStore,
		notifications.NewBanNotifier(dispatcher),
		moderation.DefaultPolicy(),
	)

	// Initialize handlers with all dependencies via constructor injection
	h := handlers.New(
		actions,
		dispatcher,
		hub,
		userStore,
		reportStore,
		notifStore,
		handlers.Config{
			QueueCapacity: queueCap,
		},
	)

	// Setup router with middleware
	handler := routing.SetupRouter(routing.Config{
		Handlers: h,
		Logger:   log.Logger,
	})

	srv := &http.Server{
		Addr:              "0.0.0.0:" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().
			Str("address", srv.Addr).
			Str("url", "http://localhost:"+port).
			Str("database", dbPath).
			Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
