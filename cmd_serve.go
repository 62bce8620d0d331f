package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/username/tradelink/src/config"
	"github.com/username/tradelink/src/database"
	"github.com/username/tradelink/src/handlers"
	"github.com/username/tradelink/src/logger"
	"github.com/username/tradelink/src/metrics"
	"github.com/username/tradelink/src/processors"
	"github.com/username/tradelink/src/security"
	"github.com/username/tradelink/src/services"
	"github.com/username/tradelink/src/utils"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the reconciliation HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

func rateLimitMiddleware(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				logger.L.Warn("Rate limit exceeded",
					"method", r.Method,
					"path", r.URL.Path,
					"remoteAddr", r.RemoteAddr)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000": true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Authorization, If-None-Match")
			w.Header().Set("Access-Control-Expose-Headers", "ETag, Location")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == http.MethodOptions {
			logger.L.Debug("Handling OPTIONS preflight request", "path", r.URL.Path, "origin", origin)
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// newAPIHandler assembles routes and global middleware around an already wired service.
func newAPIHandler(svc services.ReconcileService, reg *metrics.Registry, tokens *security.TokenService, cfg *config.AppConfig) http.Handler {
	rootMux := http.NewServeMux()
	reconcileHandler := handlers.NewReconcileHandler(svc, cfg.MaxUploadSizeBytes)
	handlers.RegisterRoutes(rootMux, reconcileHandler, handlers.AuthMiddleware(tokens))

	rootMux.Handle("GET /metrics", reg.Handler())
	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "Tradelink backend is running", "version": version})
			return
		}
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
		}
		http.NotFound(w, r)
	})

	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	return enableCORS(rateLimitMiddleware(limiter)(rootMux))
}

func runServe(ctx context.Context) error {
	cfg := config.Cfg
	logger.L.Info("Tradelink backend server starting...", "version", version)

	registry, err := utils.LoadCoinRegistry(cfg.KnownCoinsPath, cfg.KnownCoins...)
	if err != nil {
		return err
	}

	logger.L.Info("Initializing database...", "path", cfg.DatabasePath)
	database.InitDB(cfg.DatabasePath)
	defer database.DB.Close()
	logger.L.Info("Database initialized successfully.")

	reportCache := cache.New(cfg.ReportCacheTTL, services.CacheCleanupInterval)
	reg := metrics.NewRegistry()
	tokens := security.NewTokenService(cfg.APIJWTSecret, cfg.APITokenExpiry)
	if !tokens.Enabled() {
		logger.L.Warn("API_JWT_SECRET not set; the API is unauthenticated")
	}

	svc := services.NewReconcileService(
		cfg.MatchConfig(),
		processors.NewRecordBuilder(processors.NewCoinNormalizer(registry)),
		database.NewRunStore(database.DB),
		reportCache,
		reg,
		services.NewNotifier(cfg),
	)

	serverAddr := ":" + cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      newAPIHandler(svc, reg, tokens, cfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.L.Info("Server starting", "address", serverAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L.Error("Failed to start server", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.L.Error("Graceful shutdown failed", "error", err)
		return err
	}
	logger.L.Info("Server stopped gracefully.")
	return nil
}
