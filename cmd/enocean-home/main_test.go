package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t, "gateway:\n  auto_add: true\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Gateway.AutoAdd {
		t.Error("auto_add not parsed")
	}
	if cfg.Web.Listen != "127.0.0.1:8080" {
		t.Errorf("listen = %q", cfg.Web.Listen)
	}
	if cfg.Store.Path != "enocean-home.db" || cfg.MQTT.TopicPrefix != "enocean" {
		t.Errorf("store = %q, prefix = %q", cfg.Store.Path, cfg.MQTT.TopicPrefix)
	}
	if cfg.DevicesDir != "devices" || cfg.ScriptsDir != "scripts" {
		t.Errorf("dirs = %q, %q", cfg.DevicesDir, cfg.ScriptsDir)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("log = %q/%q", cfg.Log.Level, cfg.Log.Format)
	}
	if err := cfg.validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadConfigSections(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t, `
gateway:
  rocker_mapping: inverted
web:
  listen: ":9000"
  api_key: secret
  allowed_origins: ["http://localhost:3000"]
mqtt:
  enabled: true
  broker: tcp://broker:1883
  topic_prefix: home/enocean
  discovery_prefix: ha
influxdb:
  enabled: true
  url: http://influx:8086
  token: tok
  org: home
  bucket: enocean
  batch_size: 50
  flush_interval_ms: 2000
log:
  level: debug
  format: json
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Gateway.RockerMapping != "inverted" || cfg.Web.APIKey != "secret" {
		t.Errorf("gateway/web = %+v %+v", cfg.Gateway, cfg.Web)
	}
	if len(cfg.Web.AllowedOrigins) != 1 {
		t.Errorf("allowed_origins = %v", cfg.Web.AllowedOrigins)
	}
	if cfg.MQTT.TopicPrefix != "home/enocean" || cfg.MQTT.DiscoveryPrefix != "ha" {
		t.Errorf("mqtt = %+v", cfg.MQTT)
	}
	if cfg.InfluxDB.Bucket != "enocean" || cfg.InfluxDB.BatchSize != 50 || cfg.InfluxDB.FlushIntervalMs != 2000 {
		t.Errorf("influxdb = %+v", cfg.InfluxDB)
	}
	if err := cfg.validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}
	if _, err := loadConfig(writeConfig(t, "web: [unclosed")); err == nil {
		t.Error("bad yaml should fail")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"rocker mapping", func(c *Config) { c.Gateway.RockerMapping = "sideways" }, "rocker_mapping"},
		{"mqtt broker", func(c *Config) { c.MQTT.Enabled = true }, "mqtt.broker"},
		{"influxdb bucket", func(c *Config) { c.InfluxDB.Enabled = true; c.InfluxDB.URL = "http://x" }, "influxdb"},
		{"log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"listen", func(c *Config) { c.Web.Listen = "" }, "web.listen"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			applyDefaults(&cfg)
			tt.mutate(&cfg)
			err := cfg.validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var cfg Config
	applyDefaults(&cfg)
	cfg.Log.Level = "warn"
	cfg.Log.Format = "json"
	logger := newLogger(&cfg)
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be disabled at warn level")
	}
}
