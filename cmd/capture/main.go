package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vkoval/capture-audio-service/internal/capture"
	"github.com/vkoval/capture-audio-service/internal/config"
	"github.com/vkoval/capture-audio-service/internal/encode"
	"github.com/vkoval/capture-audio-service/internal/metrics"
	"github.com/vkoval/capture-audio-service/internal/server"
	"github.com/vkoval/capture-audio-service/internal/sink"
	"github.com/vkoval/capture-audio-service/internal/stream"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "capture-audio-service"
	serviceVersion    = "1.0.0"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	logger.Info("Configuration loaded",
		slog.String("capture_name", cfg.Capture.Name),
		slog.String("profile", cfg.Capture.Profile),
		slog.String("mode", cfg.Capture.Mode),
		slog.String("encoder", cfg.Capture.Encoder),
		slog.String("command", cfg.Capture.Command),
		slog.Bool("sink_enabled", cfg.Sink.Enabled),
		slog.String("sink_dir", cfg.Sink.Dir),
		slog.String("log_level", cfg.Logging.Level),
	)

	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	encoder, err := encode.New(cfg.Capture.Encoder)
	if err != nil {
		logger.Error("Failed to create encoder", slog.String("error", err.Error()))
		os.Exit(1)
	}

	profile := config.Profile(cfg.Capture.Profile)
	settings := cfg.Capture.CaptureSettings()

	captureCfg, err := config.NewCaptureConfig(profile, settings)
	if err != nil {
		logger.Error("Invalid capture settings", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// An empty command means no real capture device is configured: the
	// data source falls back to tone generation on its own.
	var src capture.Source
	if cfg.Capture.Command != "" {
		src = capture.NewCommandSource(cfg.Capture.Command, cfg.Capture.CommandArgs, captureCfg, logger)
	}

	source := stream.New(cfg.Capture.Name, profile, cfg.Capture.Modes, src, encoder, logger)
	source.SetMetrics(appMetrics)

	if err := source.Initialize(settings); err != nil {
		logger.Error("Failed to initialize data source", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if cfg.Sink.Enabled {
		fileSink, err := sink.NewFileSink(cfg.Sink.Dir, logger)
		if err != nil {
			logger.Error("Failed to create file sink", slog.String("error", err.Error()))
			os.Exit(1)
		}
		source.SetObserver(fileSink.HandleEvent)
		logger.Info("File sink initialized", slog.String("dir", cfg.Sink.Dir))
	}

	if !source.Prepare(cfg.Capture.Mode) {
		logger.Error("Capture mode not selected by configuration",
			slog.String("mode", cfg.Capture.Mode),
		)
		os.Exit(1)
	}

	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, source)
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	source.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...")

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	logger.Info("Starting graceful shutdown...")

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	source.Stop()

	stats := source.QueueStats()
	logger.Info("Final capture statistics",
		slog.Uint64("chunks_appended", stats.ChunksAppended),
		slog.Uint64("bytes_appended", stats.BytesAppended),
		slog.Uint64("bytes_evicted", stats.BytesEvicted),
		slog.Uint64("segments_extracted", stats.SegmentsExtracted),
		slog.Uint64("bytes_extracted", stats.BytesExtracted),
	)

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration.
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
