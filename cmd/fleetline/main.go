package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"fleetline/internal/config"
	"fleetline/internal/docstore"
	"fleetline/internal/fleet"
	"fleetline/internal/geo"
	"fleetline/internal/handler"
	"fleetline/internal/hub"
	"fleetline/internal/metrics"
	"fleetline/internal/middleware"
	"fleetline/internal/relay"
	"fleetline/internal/routes"
	"fleetline/internal/shifts"
	"fleetline/internal/stops"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("starting fleetline server",
		"log_level", cfg.LogLevel.String(),
		"http_addr", cfg.HTTPAddr,
		"docstore_driver", cfg.DocstoreDriver,
		"nats_enabled", cfg.NATSEnabled,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := openDocstore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open document store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	collector := metrics.NewCollector()

	wsHub := hub.NewHub(logger)

	publishers := fleet.MultiPublisher{wsHub}
	var natsRelay *relay.NATSRelay
	if cfg.NATSEnabled {
		natsRelay, err = relay.NewNATSRelay(cfg.NATSURL, cfg.NATSSubjectPrefix, logger)
		if err != nil {
			logger.Error("failed to connect NATS relay", "error", err)
			os.Exit(1)
		}
		defer natsRelay.Close()
		publishers = append(publishers, natsRelay)
	}

	var locator fleet.Locator
	if cfg.GeoFallbackEnabled {
		locator = geo.New(cfg.GeoFallbackURL)
	}

	stopCatalog := stops.NewCatalog(db, logger)
	routeStore := routes.NewStore(db, logger)
	shiftStore := shifts.NewStore(db, logger)
	shiftMatcher := shifts.NewMatcher(db, logger)
	routeSearch := routes.NewSearch(db, shiftMatcher, logger)
	fleetState := fleet.NewState(db, publishers, locator, collector, logger)

	adminHandler := handler.NewAdminHandler(stopCatalog, routeStore, shiftStore, logger)
	queryHandler := handler.NewQueryHandler(routeSearch, shiftMatcher, routeStore, stopCatalog, cfg.SearchIncludeUnserved, collector, logger)
	fleetHandler := handler.NewFleetHandler(fleetState, collector, logger)
	wsHandler := handler.NewWSHandler(wsHub, fleetState, collector, logger)
	healthHandler := handler.NewHealthHandler(db, wsHub)

	limiter := middleware.NewLimiter(cfg.RateLimitPerWindow, cfg.RateLimitWindow, cfg.RateLimitWhitelist, logger)

	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/stops", adminHandler.CreateStop)
	mux.HandleFunc("PUT /v1/stops/{id}", adminHandler.UpdateStop)
	mux.HandleFunc("DELETE /v1/stops/{id}", adminHandler.DeleteStop)
	mux.HandleFunc("GET /v1/stops", queryHandler.ListStops)
	mux.HandleFunc("GET /v1/stops/{id}", queryHandler.GetStop)

	mux.HandleFunc("POST /v1/routes", adminHandler.CreateRoute)
	mux.HandleFunc("PUT /v1/routes/{id}", adminHandler.UpdateRoute)
	mux.HandleFunc("DELETE /v1/routes/{id}", adminHandler.DeleteRoute)
	mux.HandleFunc("GET /v1/routes", queryHandler.ListRoutes)
	mux.HandleFunc("GET /v1/routes/search", queryHandler.SearchRoutes)
	mux.HandleFunc("GET /v1/routes/{id}", queryHandler.GetRoute)

	mux.HandleFunc("POST /v1/shifts", adminHandler.CreateShift)
	mux.HandleFunc("PUT /v1/shifts/{id}", adminHandler.UpdateShift)
	mux.HandleFunc("DELETE /v1/shifts/{id}", adminHandler.DeleteShift)
	mux.HandleFunc("DELETE /v1/shifts/{id}/legs/{direction}", adminHandler.RemoveShiftLeg)
	mux.HandleFunc("GET /v1/shifts/match", queryHandler.MatchShifts)

	reportMux := http.NewServeMux()
	reportMux.HandleFunc("POST /v1/vehicles/{id}/position", fleetHandler.ReportVehiclePosition)
	reportMux.HandleFunc("POST /v1/vehicles/{id}/capacity", fleetHandler.ReportCapacity)
	reportMux.HandleFunc("POST /v1/vehicles/{id}/alarm", fleetHandler.ReportAlarm)
	reportMux.HandleFunc("POST /v1/passengers/{id}/position", fleetHandler.ReportPassengerPosition)
	mux.Handle("POST /v1/vehicles/", limiter.Middleware(reportMux))
	mux.Handle("POST /v1/passengers/", limiter.Middleware(reportMux))

	mux.HandleFunc("GET /v1/vehicles/{id}", fleetHandler.GetVehicle)
	mux.HandleFunc("GET /v1/passengers/{id}", fleetHandler.GetPassenger)

	mux.HandleFunc("/v1/ws", wsHandler.ServeWS)

	mux.HandleFunc("GET /healthz", healthHandler.Healthz)
	mux.HandleFunc("GET /readyz", healthHandler.Readyz)
	mux.Handle("GET /metrics", collector.Handler())

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler.CORSMiddleware(handler.GzipMiddleware(mux)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go wsHub.Run(ctx)

	go func() {
		logger.Info("starting HTTP server", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

func openDocstore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (docstore.Store, error) {
	switch cfg.DocstoreDriver {
	case config.DriverRedis:
		return docstore.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
	case config.DriverPostgres:
		return docstore.NewPostgresStore(ctx, cfg.DatabaseURL, logger)
	default:
		return docstore.NewMemoryStore(), nil
	}
}
