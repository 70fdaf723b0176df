//go:build !no_mqtt

package main

import (
	"log/slog"

	mqttbridge "enocean-go-home/internal/mqtt"

	"enocean-go-home/internal/gateway"
)

type mqttStopper struct {
	bridge *mqttbridge.Bridge
}

func (m *mqttStopper) Stop() {
	if m.bridge != nil {
		m.bridge.Stop()
	}
}

func initMQTT(gw *gateway.Gateway, cfg *Config, logger *slog.Logger) *mqttStopper {
	if !cfg.MQTT.Enabled {
		logger.Info("mqtt disabled, commands cannot be transmitted")
		return &mqttStopper{}
	}
	bridge, err := mqttbridge.NewBridge(gw, mqttbridge.Config{
		Broker:          cfg.MQTT.Broker,
		Username:        cfg.MQTT.Username,
		Password:        cfg.MQTT.Password,
		ClientID:        cfg.MQTT.ClientID,
		TopicPrefix:     cfg.MQTT.TopicPrefix,
		DiscoveryPrefix: cfg.MQTT.DiscoveryPrefix,
	}, logger)
	if err != nil {
		logger.Error("mqtt bridge", "err", err)
		return &mqttStopper{}
	}
	bridge.Start()
	return &mqttStopper{bridge: bridge}
}
