package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vkoval/capture-audio-service/internal/config"
	"github.com/vkoval/capture-audio-service/internal/stream"
)

// HTTPServer provides HTTP endpoints for monitoring the capture service.
type HTTPServer struct {
	server *http.Server
	logger *slog.Logger
	source *stream.DataSource

	startTime time.Time
}

// NewHTTPServer creates a new HTTP status server.
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger, source *stream.DataSource) *HTTPServer {
	h := &HTTPServer{
		logger:    logger,
		source:    source,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP routes.
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/v1/status", h.handleStatus)
	mux.Handle("/metrics", promhttp.Handler())
}

// Start starts the HTTP server.
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP status server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server.
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP status server...")

	return h.server.Shutdown(ctx)
}

// handleHealth implements the /healthz endpoint.
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"state":     h.source.State().String(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// handleStatus implements the /api/v1/status endpoint.
func (h *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg := h.source.Config()

	status := map[string]interface{}{
		"timestamp":  time.Now().UTC(),
		"uptime":     time.Since(h.startTime).String(),
		"state":      h.source.State().String(),
		"session_id": h.source.SessionID(),
		"capture": map[string]interface{}{
			"sample_rate":              cfg.SampleRate,
			"channels":                 cfg.Channels,
			"bits_per_sample":          cfg.BitsPerSample,
			"capture_interval":         cfg.CaptureInterval.String(),
			"bytes_per_second":         cfg.BytesPerSecond,
			"target_bytes_per_segment": cfg.TargetBytesPerSegment,
			"max_buffered_bytes":       cfg.MaxBufferedBytes,
		},
		"queue": h.source.QueueStats(),
	}

	if latest, ok := h.source.LatestData(); ok {
		status["latest_event"] = latest.Info()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}
