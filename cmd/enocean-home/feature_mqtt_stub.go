//go:build no_mqtt

package main

import (
	"log/slog"

	"enocean-go-home/internal/gateway"
)

type mqttStopper struct{}

func (m *mqttStopper) Stop() {}

func initMQTT(_ *gateway.Gateway, _ *Config, _ *slog.Logger) *mqttStopper {
	return &mqttStopper{}
}
