package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"z2m-adapter/internal/adapter"
	"z2m-adapter/internal/config"
	"z2m-adapter/internal/events"
	"z2m-adapter/internal/introspect"
	"z2m-adapter/internal/mqttconn"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	bootLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfgPath := "config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		bootLogger.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("z2m-adapter starting", "version", version)

	ad, err := adapter.New(adapter.Config{
		Mqtt: mqttconn.Config{
			Host:            cfg.MQTT.Host,
			Port:            cfg.MQTT.Port,
			Username:        cfg.MQTT.Username,
			Password:        cfg.MQTT.Password,
			BaseTopic:       cfg.MQTT.BaseTopic,
			ClientID:        cfg.MQTT.ClientID,
			RetryIntervalMs: cfg.MQTT.RetryIntervalMs,
		},
		StorePath: cfg.Store.Path,
	}, logger)
	if err != nil {
		logger.Error("create adapter", "err", err)
		os.Exit(1)
	}

	logEvents(ad, logger)

	introServer := introspect.NewServer(ad, ad.Events(), logger,
		introspect.WithAllowedOrigins(cfg.Introspect.AllowedOrigins))
	httpServer := &http.Server{
		Addr:         cfg.Introspect.Listen,
		Handler:      introServer,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("introspection server starting", "addr", cfg.Introspect.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("introspection http server", "err", err)
		}
	}()

	ad.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	signal.Stop(sigCh)
	logger.Info("shutting down", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("introspection http server shutdown", "err", err)
	}
	introServer.Stop()
	ad.Stop()

	logger.Info("goodbye")
}

// logEvents logs connection-state transitions and adapter-reported errors
// at the top level; every other event is consumed by the introspection
// websocket stream instead.
func logEvents(ad *adapter.Adapter, logger *slog.Logger) {
	ad.Events().On(events.TypeConnectionStateChanged, func(ev events.Event) {
		if data, ok := ev.Data.(events.ConnectionStateChanged); ok {
			logger.Info("connection state changed", "state", data.State.String())
		}
	})
	ad.Events().On(events.TypeErrorOccurred, func(ev events.Event) {
		if data, ok := ev.Data.(events.ErrorOccurred); ok {
			logger.Warn("adapter error", "context", data.Context, "err", data.Error)
		}
	})
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel() {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
