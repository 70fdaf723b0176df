//go:build !no_influxdb

package main

import (
	"errors"
	"log/slog"

	"enocean-go-home/internal/gateway"
	"enocean-go-home/internal/history"
	"enocean-go-home/internal/web"
)

type historyStopper struct {
	recorder *history.Recorder
}

func (h *historyStopper) Stop() {
	if h.recorder != nil {
		h.recorder.Close()
	}
}

func initHistory(gw *gateway.Gateway, cfg *Config, logger *slog.Logger) (*historyStopper, []web.ServerOption) {
	rec, err := history.Connect(cfg.InfluxDB, logger)
	if errors.Is(err, history.ErrDisabled) {
		return &historyStopper{}, nil
	}
	if err != nil {
		// History is optional; the gateway keeps running without it.
		logger.Error("influxdb history", "err", err)
		return &historyStopper{}, nil
	}
	rec.Attach(gw.Events())

	opts := []web.ServerOption{
		web.WithHealthCheck("influxdb", rec.HealthCheck),
	}
	return &historyStopper{recorder: rec}, opts
}
