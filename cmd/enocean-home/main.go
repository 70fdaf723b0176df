package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"enocean-go-home/internal/eep"
	"enocean-go-home/internal/gateway"
	"enocean-go-home/internal/history"
	"enocean-go-home/internal/store"
	"enocean-go-home/internal/web"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

type Config struct {
	Gateway struct {
		AutoAdd       bool   `yaml:"auto_add"`
		RockerMapping string `yaml:"rocker_mapping"` // "canonical" or "inverted"
	} `yaml:"gateway"`
	Web struct {
		Listen         string   `yaml:"listen"`
		APIKey         string   `yaml:"api_key"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"web"`
	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`
	MQTT struct {
		Enabled         bool   `yaml:"enabled"`
		Broker          string `yaml:"broker"`
		ClientID        string `yaml:"client_id"`
		Username        string `yaml:"username"`
		Password        string `yaml:"password"`
		TopicPrefix     string `yaml:"topic_prefix"`
		DiscoveryPrefix string `yaml:"discovery_prefix"`
	} `yaml:"mqtt"`
	InfluxDB history.Config `yaml:"influxdb"`
	Log      struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	DevicesDir string `yaml:"devices_dir"`
	ScriptsDir string `yaml:"scripts_dir"`
}

func (c *Config) validate() error {
	if c.Web.Listen == "" {
		return fmt.Errorf("web.listen is required")
	}
	if _, err := eep.ParseRockerMapping(c.Gateway.RockerMapping); err != nil {
		return fmt.Errorf("gateway.rocker_mapping: %w", err)
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" || c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			return fmt.Errorf("influxdb.url, influxdb.org and influxdb.bucket are required when influxdb is enabled")
		}
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	return nil
}

func main() {
	// Temporary logger for config loading errors.
	bootLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfgPath := "config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		bootLogger.Error("load config", "err", err)
		os.Exit(1)
	}

	if err := cfg.validate(); err != nil {
		bootLogger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("enocean-go-home starting", "version", version)

	mapping, _ := eep.ParseRockerMapping(cfg.Gateway.RockerMapping)
	dispatcher := eep.NewDispatcher(eep.WithRockerMapping(mapping))

	// Device identities from the devices directory are seeded into the store on start.
	deviceDB, err := gateway.LoadDeviceDir(cfg.DevicesDir, logger)
	if err != nil {
		logger.Error("load device definitions", "err", err)
		os.Exit(1)
	}
	logger.Info("profile table loaded", "profiles", len(dispatcher.Profiles()), "devices", deviceDB.Len())

	db, err := store.NewBoltStore(cfg.Store.Path)
	if err != nil {
		logger.Error("open store", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	events := gateway.NewEventBus(logger)
	gw := gateway.New(db, dispatcher, deviceDB, events, gateway.Config{
		AutoAdd: cfg.Gateway.AutoAdd,
	}, logger)
	if err := gw.Start(); err != nil {
		logger.Error("start gateway", "err", err)
		db.Close()
		os.Exit(1)
	}

	// Optional features are no-ops when built with the matching no_* tag.
	recorder, historyWebOpts := initHistory(gw, cfg, logger)
	auto, autoWebOpts := initAutomation(gw, cfg, logger)

	var webOpts []web.ServerOption
	if cfg.Web.APIKey != "" {
		webOpts = append(webOpts, web.WithAPIKey(cfg.Web.APIKey))
	}
	if len(cfg.Web.AllowedOrigins) > 0 {
		webOpts = append(webOpts, web.WithAllowedOrigins(cfg.Web.AllowedOrigins))
	}
	webOpts = append(webOpts, web.WithVersion(version))
	webOpts = append(webOpts, autoWebOpts...)
	webOpts = append(webOpts, historyWebOpts...)

	webServer := web.NewServer(gw, logger, webOpts...)

	httpServer := &http.Server{
		Addr:         cfg.Web.Listen,
		Handler:      webServer,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("web server starting", "addr", cfg.Web.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "err", err)
		}
	}()

	// The MQTT bridge installs itself as the gateway transmitter.
	mqtt := initMQTT(gw, cfg, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	signal.Stop(sigCh)
	logger.Info("shutting down", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	auto.Stop()
	mqtt.Stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", "err", err)
	}
	webServer.Stop()
	recorder.Stop()
	gw.Stop()

	logger.Info("goodbye")
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Web.Listen == "" {
		cfg.Web.Listen = "127.0.0.1:8080"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "enocean-home.db"
	}
	if cfg.DevicesDir == "" {
		cfg.DevicesDir = "devices"
	}
	if cfg.ScriptsDir == "" {
		cfg.ScriptsDir = "scripts"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "enocean"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func newLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
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
