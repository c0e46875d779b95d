package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"library-viewer/internal/appdb"
	"library-viewer/internal/handlers"
	"library-viewer/internal/library"
	"library-viewer/internal/logging"
	"library-viewer/internal/metrics"
	"library-viewer/internal/middleware"
	"library-viewer/internal/startup"
)

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	metrics.SetAppInfo(startup.Version, startup.Commit, runtime.Version())

	// Initialize application database
	dbStart := time.Now()
	store, err := appdb.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize application database: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Warn("failed to close application database: %v", err)
		}
	}()
	startup.LogDatabaseInit(time.Since(dbStart))

	// Clean up expired sessions periodically
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if err := store.CleanExpiredSessions(); err != nil {
				logging.Warn("session cleanup failed: %v", err)
			}
		}
	}()

	// Initialize the library index
	cache := library.NewCache()
	h := handlers.New(store, cache, config)

	// Build the initial index in the background so the server comes up
	// immediately; readiness flips once the first build completes.
	go func() {
		startup.LogIndexInit(config.LibrariesDir)
		buildStart := time.Now()

		libraries, err := cache.Rebuild(context.Background(), config.LibrariesDir)
		if err != nil {
			logging.Error("Initial index build failed: %v", err)
		} else {
			books := 0
			for _, lib := range libraries {
				books += lib.BookCount
			}
			startup.LogIndexBuilt(len(libraries), books, time.Since(buildStart))
		}
		h.MarkReady()
	}()

	// Optional periodic rescan
	if config.RescanInterval > 0 {
		go func() {
			ticker := time.NewTicker(config.RescanInterval)
			defer ticker.Stop()
			for range ticker.C {
				logging.Info("Periodic rescan starting")
				if _, err := cache.Rebuild(context.Background(), config.LibrariesDir); err != nil {
					logging.Error("Periodic rescan failed: %v", err)
				}
			}
		}()
	}

	// Setup router
	router := setupRouter(h, config.MetricsEnabled)

	// Log routes dynamically
	startup.LogHTTPRoutes(router, config.LogStaticFiles, config.LogHealthChecks)

	// Apply authentication middleware
	authedRouter := h.AuthMiddleware(router)

	// Apply metrics middleware
	meteredHandler := middleware.Metrics(middleware.DefaultMetricsConfig())(authedRouter)

	// Apply logging middleware
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	loggedHandler := middleware.Logger(loggingConfig)(meteredHandler)

	// Apply compression middleware
	handler := middleware.Compression(middleware.DefaultCompressionConfig())(loggedHandler)

	// Create server
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Start graceful shutdown handler
	go handleShutdown(srv, cache)

	// Start server
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers, metricsEnabled bool) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes (no auth required)
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	}

	// Auth routes
	auth := r.PathPrefix("/api/auth").Subrouter()
	auth.HandleFunc("/setup-required", h.CheckSetupRequired).Methods("GET")
	auth.HandleFunc("/setup", h.Setup).Methods("POST")
	auth.HandleFunc("/login", h.Login).Methods("POST")
	auth.HandleFunc("/logout", h.Logout).Methods("POST")
	auth.HandleFunc("/check", h.CheckAuth).Methods("GET")
	auth.HandleFunc("/password", h.ChangePassword).Methods("POST")

	// Protected API routes
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/libraries", h.ListLibraries).Methods("GET")
	api.HandleFunc("/libraries/refresh", h.RefreshLibraries).Methods("POST")
	api.HandleFunc("/libraries/{id}", h.GetLibrary).Methods("GET")
	api.HandleFunc("/libraries/{id}/books", h.ListBooks).Methods("GET")
	api.HandleFunc("/libraries/{id}/authors", h.ListAuthors).Methods("GET")
	api.HandleFunc("/libraries/{id}/tags", h.ListTags).Methods("GET")
	api.HandleFunc("/libraries/{id}/series", h.ListSeries).Methods("GET")
	api.HandleFunc("/libraries/{id}/books/{bookId}", h.GetBook).Methods("GET")
	api.HandleFunc("/libraries/{id}/books/{bookId}/cover", h.GetCover).Methods("GET")
	api.HandleFunc("/libraries/{id}/books/{bookId}/formats", h.ListBookFormats).Methods("GET")
	api.HandleFunc("/libraries/{id}/books/{bookId}/formats/{format}", h.DownloadFormat).Methods("GET")

	// Audit trail (admin only, enforced in the handler)
	api.HandleFunc("/audit", h.GetAudit).Methods("GET")

	// Static files (login page etc.)
	r.PathPrefix("/").Handler(http.FileServer(http.Dir("./static")))

	return r
}

func handleShutdown(srv *http.Server, cache *library.Cache) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Closing catalog readers")
	cache.Clear()
	startup.LogShutdownStepComplete("Catalog readers closed")

	startup.LogShutdownComplete()
}
