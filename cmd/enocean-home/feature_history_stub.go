//go:build no_influxdb

package main

import (
	"log/slog"

	"enocean-go-home/internal/gateway"
	"enocean-go-home/internal/web"
)

type historyStopper struct{}

func (h *historyStopper) Stop() {}

func initHistory(_ *gateway.Gateway, _ *Config, _ *slog.Logger) (*historyStopper, []web.ServerOption) {
	return &historyStopper{}, nil
}
