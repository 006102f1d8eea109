// Package main is the entry point for the yieldscout API server, which
// serves enriched and risk-scored DeFi pool data from a cached upstream
// yields feed.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourorg/yieldscout/internal/cache"
	"github.com/yourorg/yieldscout/internal/chat"
	"github.com/yourorg/yieldscout/internal/config"
	"github.com/yourorg/yieldscout/internal/feed"
	"github.com/yourorg/yieldscout/internal/guard"
	"github.com/yourorg/yieldscout/internal/logging"
	"github.com/yourorg/yieldscout/internal/model"
	"github.com/yourorg/yieldscout/internal/otel"
	"github.com/yourorg/yieldscout/internal/query"
)

// startTime records when the service was initialized for uptime reporting
var startTime = time.Now()

// Server is the API server instance.
type Server struct {
	config config.Config

	// Pool snapshot orchestrator
	pools *cache.Orchestrator

	// Snapshot sanity guard, shared with the orchestrator
	guard *guard.Guard

	// HTTP server instance
	server *http.Server

	// Prometheus metrics
	metrics *serverMetrics

	// Per-process rate limiter for query endpoints
	rateLimit *rate.Limiter
}

func main() {
	// A missing .env file is fine; real deployments set the environment
	// directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Error loading configuration: %v", err)
	}

	logging.Setup(cfg.LogFile)

	shutdownTracer := otel.InitTracer(cfg.OtelEndpoint)
	defer shutdownTracer()

	server := NewServer(cfg)
	server.Start()
}

// NewServer wires the feed client, guard, orchestrator and metrics into a
// server instance.
func NewServer(cfg config.Config) *Server {
	snapshotGuard := guard.New(guard.Thresholds{
		MaxPoolCountDrop: cfg.MaxPoolCountDrop,
		MaxTVLChange:     cfg.MaxTVLChange,
		MinPoolCount:     1,
	})

	client := feed.NewClient(cfg.FeedURL, cfg.RequestTimeout)

	s := &Server{
		config:    cfg,
		pools:     cache.NewOrchestrator(client, snapshotGuard, cfg.CacheTTL),
		guard:     snapshotGuard,
		metrics:   registerMetrics(),
		rateLimit: rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
	}
	s.metrics.registerSnapshotAge(func() float64 {
		return s.pools.Age().Seconds()
	})

	logrus.WithFields(logrus.Fields{
		"port":      cfg.Port,
		"feed_url":  cfg.FeedURL,
		"cache_ttl": cfg.CacheTTL,
		"rate_rps":  cfg.RateLimitRPS,
	}).Info("Server initialized")

	return s
}

// Start begins the HTTP server and sets up graceful shutdown.
func (s *Server) Start() {
	mux := http.NewServeMux()

	mux.HandleFunc("/pools", s.handlePools)             // Filtered, sorted pool page
	mux.HandleFunc("/refresh", s.handleRefresh)         // Force snapshot refresh
	mux.HandleFunc("/advisor/context", s.handleAdvisor) // Text context for the advisor
	mux.HandleFunc("/health", s.handleHealth)           // Health check endpoint
	mux.HandleFunc("/status", s.handleStatus)           // Service status endpoint
	mux.HandleFunc("/metrics", s.handleMetrics)         // Prometheus metrics endpoint

	s.server = &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("Server starting on port %s", s.config.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Error starting server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		logrus.Fatalf("Server shutdown failed: %v", err)
	}

	logrus.Info("Server stopped")
}

// poolsResponse is the payload of GET /pools.
type poolsResponse struct {
	Pools             interface{} `json:"pools"`
	Stats             interface{} `json:"stats"`
	Chains            []string    `json:"chains"`
	ChainDistribution interface{} `json:"chainDistribution"`
	LastUpdated       string      `json:"lastUpdated"`
}

// handlePools serves the filtered, sorted, truncated pool page.
func (s *Server) handlePools(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method != http.MethodGet {
		s.errorResponse(w, "pools", http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !s.rateLimit.Allow() {
		s.errorResponse(w, "pools", http.StatusTooManyRequests, "Rate limit exceeded")
		return
	}

	filters, err := query.ParseFilters(r.URL.Query(), query.Defaults{
		MinTVL: s.config.DefaultMinTVL,
		MinAPY: s.config.DefaultMinAPY,
	})
	if err != nil {
		s.errorResponse(w, "pools", http.StatusBadRequest, err.Error())
		return
	}
	sortSpec, err := query.ParseSort(r.URL.Query())
	if err != nil {
		s.errorResponse(w, "pools", http.StatusBadRequest, err.Error())
		return
	}

	snap, err := s.snapshot(r.Context())
	if err != nil {
		s.errorResponse(w, "pools", http.StatusServiceUnavailable, err.Error())
		return
	}

	page := query.Apply(snap.Pools, filters, sortSpec)

	s.observe("pools", "success", start)
	s.writeJSON(w, http.StatusOK, poolsResponse{
		Pools:             page,
		Stats:             snap.Stats,
		Chains:            snap.Chains,
		ChainDistribution: snap.ChainDistribution,
		LastUpdated:       snap.LastUpdated.UTC().Format(time.RFC3339),
	})
}

// handleRefresh forces an immediate refetch, resetting the TTL clock. A
// failed refetch over a warm cache reports the failure alongside the
// retained timestamp; over a cold cache it is an error.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method != http.MethodPost {
		s.errorResponse(w, "refresh", http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if r.URL.Query().Get("action") == "reset-guard" {
		s.guard.Reset()
	}

	snap, err := s.pools.ForceRefresh(r.Context())
	if err != nil {
		if stale := s.pools.Current(); stale != nil {
			s.observe("refresh", "stale", start)
			s.writeJSON(w, http.StatusOK, map[string]interface{}{
				"refreshed":   false,
				"lastUpdated": stale.LastUpdated.UTC().Format(time.RFC3339),
				"error":       err.Error(),
			})
			return
		}
		s.errorResponse(w, "refresh", http.StatusBadGateway, err.Error())
		return
	}

	s.publishSnapshotMetrics(snap.Stats.TotalPools)
	s.observe("refresh", "success", start)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"refreshed":   true,
		"lastUpdated": snap.LastUpdated.UTC().Format(time.RFC3339),
		"poolCount":   snap.Stats.TotalPools,
	})
}

// handleAdvisor serves the plain-text context block for the external
// advisor consumer.
func (s *Server) handleAdvisor(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method != http.MethodGet {
		s.errorResponse(w, "advisor", http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !s.rateLimit.Allow() {
		s.errorResponse(w, "advisor", http.StatusTooManyRequests, "Rate limit exceeded")
		return
	}

	snap, err := s.snapshot(r.Context())
	if err != nil {
		s.errorResponse(w, "advisor", http.StatusServiceUnavailable, err.Error())
		return
	}

	s.observe("advisor", "success", start)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(chat.BuildContext(snap)))
}

// snapshot fetches the current snapshot and keeps the gauges current.
func (s *Server) snapshot(ctx context.Context) (*model.Snapshot, error) {
	sn, err := s.pools.Snapshot(ctx)
	if err != nil {
		if s.metrics != nil && errors.Is(err, cache.ErrNoSnapshot) {
			s.metrics.feedErrors.Inc()
		}
		return nil, err
	}
	s.publishSnapshotMetrics(sn.Stats.TotalPools)
	return sn, nil
}

// handleHealth is a simple health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"version":   version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStatus provides detailed service status information.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":      "operational",
		"uptime":      time.Since(startTime).String(),
		"version":     version,
		"guard_state": s.guard.GetState().String(),
		"configuration": map[string]interface{}{
			"feed_url":    s.config.FeedURL,
			"cache_ttl":   s.config.CacheTTL.String(),
			"max_results": query.MaxResults,
		},
	}

	if snap := s.pools.Current(); snap != nil {
		status["pool_count"] = snap.Stats.TotalPools
		status["last_updated"] = snap.LastUpdated.UTC().Format(time.RFC3339)
		status["snapshot_age"] = s.pools.Age().String()
		status["top_chain"] = snap.Stats.TopChain
	} else {
		status["pool_count"] = 0
		status["last_updated"] = nil
	}

	s.writeJSON(w, http.StatusOK, status)
}

// errorResponse returns a formatted JSON error to the caller.
func (s *Server) errorResponse(w http.ResponseWriter, endpoint string, statusCode int, errorMsg string) {
	logrus.WithField("endpoint", endpoint).Warn(errorMsg)

	if s.metrics != nil {
		s.metrics.requestCounter.WithLabelValues(endpoint, "error").Inc()
	}

	s.writeJSON(w, statusCode, map[string]interface{}{
		"status": "error",
		"error":  errorMsg,
	})
}
