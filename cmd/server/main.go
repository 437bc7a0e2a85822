package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Muhiddinjon/call-center-crm/internal/api"
	"github.com/Muhiddinjon/call-center-crm/internal/assign"
	"github.com/Muhiddinjon/call-center-crm/internal/auth"
	"github.com/Muhiddinjon/call-center-crm/internal/bus"
	"github.com/Muhiddinjon/call-center-crm/internal/clock"
	"github.com/Muhiddinjon/call-center-crm/internal/config"
	"github.com/Muhiddinjon/call-center-crm/internal/lookup"
	"github.com/Muhiddinjon/call-center-crm/internal/metrics"
	"github.com/Muhiddinjon/call-center-crm/internal/shifts"
	"github.com/Muhiddinjon/call-center-crm/internal/stats"
	"github.com/Muhiddinjon/call-center-crm/internal/store"
	"github.com/Muhiddinjon/call-center-crm/internal/webhook"
	"github.com/Muhiddinjon/call-center-crm/internal/websocket"
	"github.com/Muhiddinjon/call-center-crm/pkg/middleware"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Str("store_mode", cfg.StoreMode).
		Str("auth_mode", cfg.AuthMode).
		Str("timezone", cfg.Timezone).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("log_level", cfg.LogLevel).
		Msg("starting call coordination server")

	ck, err := clock.New(cfg.Timezone)
	if err != nil {
		log.Fatal().Err(err).Str("timezone", cfg.Timezone).Msg("failed to load timezone")
	}

	// Create context for services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create the store
	var st store.Store
	switch cfg.StoreMode {
	case "redis":
		rs, err := store.NewRedis(ctx, store.Options{
			Addr:        cfg.RedisAddr,
			Password:    cfg.RedisPassword,
			DB:          cfg.RedisDB,
			EventLogMax: int64(cfg.EventLogMax),
		}, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		st = rs
	case "memory":
		log.Warn().Msg("using in-memory store, all state is lost on restart")
		st = store.NewMemory(cfg.EventLogMax)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close store")
		}
	}()

	// Create WebSocket hub
	hub := websocket.NewHub(log.Logger)
	go hub.Run()

	// Create the event bus and domain services
	eventBus := bus.New(st, hub, ck, cfg.EventLookback, log.Logger)
	lookupClient := lookup.New(cfg.LookupBaseURL, cfg.LookupTimeout, log.Logger)
	assignEngine := assign.New(st, ck, log.Logger)
	shiftService := shifts.New(st, ck, log.Logger)
	statsService := stats.New(st, ck, log.Logger)
	processor := webhook.New(st, lookupClient, assignEngine, eventBus, ck, log.Logger)

	// Periodic stats snapshots over the bus
	statsBroadcaster := stats.NewBroadcaster(statsService, eventBus, cfg.StatsInterval, log.Logger)
	go statsBroadcaster.Start(ctx)

	// Create handlers
	wsHandler := websocket.NewHandler(hub, cfg, log.Logger)
	webhookHandler := api.NewWebhookHandler(processor, log.Logger)
	callsHandler := api.NewCallsHandler(st, eventBus, ck, log.Logger)
	shiftsHandler := api.NewShiftsHandler(shiftService, log.Logger)
	ticketsHandler := api.NewTicketsHandler(assignEngine, eventBus, log.Logger)
	eventsHandler := api.NewEventsHandler(eventBus, log.Logger)
	statsHandler := api.NewStatsHandler(statsService, log.Logger)
	directoryHandler := api.NewDirectoryHandler(st, ck, log.Logger)

	// Create router
	r := chi.NewRouter()

	// Add middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Register public routes (no auth required)
	r.Get("/health", healthHandler)
	r.Get("/metrics", metrics.Get().Handler())

	// Internal routes (no auth - the PBX bridge authenticates at the
	// network layer)
	r.Route("/internal", func(r chi.Router) {
		r.Post("/webhook", webhookHandler.Handle)
	})

	// Add auth middleware for protected routes
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg, log.Logger))

		r.Get("/ws", wsHandler.ServeHTTP)

		r.Route("/api", func(r chi.Router) {
			r.Route("/calls", func(r chi.Router) {
				r.Get("/", callsHandler.List)
				r.Get("/active", callsHandler.Active)
				r.Get("/search", callsHandler.Search)
				r.Get("/{id}", callsHandler.Get)
				r.Patch("/{id}", callsHandler.Update)
			})

			r.Route("/shifts", func(r chi.Router) {
				r.Get("/", shiftsHandler.List)
				r.Post("/", shiftsHandler.Create)
				r.Get("/coverage", shiftsHandler.Coverage)
				r.Get("/onduty", shiftsHandler.OnDuty)
				r.Get("/report", shiftsHandler.Report)
				r.Get("/{id}", shiftsHandler.Get)
				r.Patch("/{id}", shiftsHandler.Update)
				r.Delete("/{id}", shiftsHandler.Delete)
			})

			r.Route("/tickets", func(r chi.Router) {
				r.Get("/", ticketsHandler.List)
				r.Get("/unhandled", ticketsHandler.Unhandled)
				r.Get("/mine", ticketsHandler.Mine)
				r.Post("/{id}/assign", ticketsHandler.Assign)
				r.Post("/{id}/called-back", ticketsHandler.CalledBack)
				r.Post("/{id}/resolve", ticketsHandler.Resolve)
				r.Delete("/{id}", ticketsHandler.Remove)
			})

			r.Route("/contacts", func(r chi.Router) {
				r.Get("/", directoryHandler.ListContacts)
				r.Put("/", directoryHandler.SaveContact)
				r.Get("/{phone}", directoryHandler.GetContact)
				r.Delete("/{phone}", directoryHandler.DeleteContact)
			})

			r.Route("/operators", func(r chi.Router) {
				r.Get("/", directoryHandler.ListOperators)
				r.Put("/", directoryHandler.SaveOperator)
				r.Get("/{id}", directoryHandler.GetOperator)
				r.Delete("/{id}", directoryHandler.DeleteOperator)
			})

			r.Get("/events", eventsHandler.Poll)

			r.Route("/stats", func(r chi.Router) {
				r.Get("/daily", statsHandler.Daily)
				r.Get("/range", statsHandler.Range)
			})
		})
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Stop background services
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"call-center-crm"}`)
}
