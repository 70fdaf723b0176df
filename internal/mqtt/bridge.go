//go:build !no_mqtt

package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"enocean-go-home/internal/eep"
	"enocean-go-home/internal/gateway"
	"enocean-go-home/internal/store"
)

// Config holds MQTT bridge configuration.
type Config struct {
	Broker          string
	Username        string
	Password        string
	ClientID        string
	TopicPrefix     string
	DiscoveryPrefix string
}

// Bridge connects the gateway to MQTT. Raw telegrams arrive on
// <prefix>/telegram/rx and leave on <prefix>/telegram/tx; decoded device
// state is published with Home Assistant discovery.
type Bridge struct {
	client     pahomqtt.Client
	gw         *gateway.Gateway
	prefix     string
	discPrefix string
	logger     *slog.Logger
	unsub      func()

	// Per-device state accumulator.
	mu     sync.Mutex
	states map[string]map[string]any // chip id -> channel map
}

// NewBridge creates and connects an MQTT bridge.
func NewBridge(gw *gateway.Gateway, cfg Config, logger *slog.Logger) (*Bridge, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = "enocean-go-home"
	}
	if cfg.DiscoveryPrefix == "" {
		cfg.DiscoveryPrefix = "homeassistant"
	}
	b := &Bridge{
		gw:         gw,
		prefix:     cfg.TopicPrefix,
		discPrefix: cfg.DiscoveryPrefix,
		logger:     logger.With("component", "mqtt"),
		states:     make(map[string]map[string]any),
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(cfg.TopicPrefix+"/bridge/state", "offline", 1, true).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			b.logger.Info("MQTT connected")
			b.publishBridgeState("online")
			b.subscribeTelegrams()
			b.publishAllDiscovery()
			b.subscribeCommands()
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			b.logger.Warn("MQTT connection lost", "err", err)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	b.client = client
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return b, nil
}

// Start subscribes to gateway events and installs the bridge as the
// gateway's transmitter.
func (b *Bridge) Start() {
	b.unsub = b.gw.Events().OnAll(b.handleEvent)
	b.gw.SetTransmitter(b)
	b.logger.Info("MQTT bridge started", "prefix", b.prefix)
}

// Stop publishes offline state, unsubscribes, and disconnects.
func (b *Bridge) Stop() {
	if b.unsub != nil {
		b.unsub()
	}
	b.gw.SetTransmitter(nil)
	b.publishBridgeState("offline")
	b.client.Disconnect(1000)
	b.logger.Info("MQTT bridge stopped")
}

func (b *Bridge) rxTopic() string { return b.prefix + "/telegram/rx" }
func (b *Bridge) txTopic() string { return b.prefix + "/telegram/tx" }

// Transmit publishes an outgoing telegram for the radio side. It is marked
// exported so the gateway ignores it if it is echoed back on rx.
func (b *Bridge) Transmit(ctx context.Context, chipID string, raw []byte) error {
	token := b.client.Publish(b.txTopic(), 1, false, encodeTelegramMessage(chipID, raw))
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bridge) subscribeTelegrams() {
	b.client.Subscribe(b.rxTopic(), 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		b.handleTelegram(msg.Payload())
	})
}

func (b *Bridge) handleTelegram(payload []byte) {
	raw, meta, err := parseTelegramMessage(payload)
	if err != nil {
		b.logger.Warn("invalid telegram message", "err", err)
		return
	}
	// The gateway logs and reports drop reasons itself.
	if _, err := b.gw.HandleTelegram(raw, meta); err != nil {
		b.logger.Debug("telegram dropped", "err", err)
	}
}

func (b *Bridge) handleEvent(event gateway.Event) {
	data, ok := event.Data.(map[string]interface{})
	if !ok {
		return
	}
	chip, _ := data["chip_id"].(string)
	if chip == "" {
		return
	}
	switch event.Type {
	case gateway.EventChannelUpdate:
		channel, _ := data["channel"].(string)
		b.updateAndPublishState(chip, channel, data["value"])
	case gateway.EventDeviceAdded:
		if dev, err := b.gw.Devices().GetDevice(chip); err == nil {
			b.publishDeviceDiscovery(dev)
			b.subscribeDeviceCommands(dev)
		}
	case gateway.EventDeviceRemoved:
		b.handleDeviceRemoved(chip)
	}
}

func (b *Bridge) updateAndPublishState(chip, channel string, value any) {
	dev, err := b.gw.Devices().GetDevice(chip)
	if err != nil {
		// Unregistered senders have no state topic.
		return
	}

	b.mu.Lock()
	state, ok := b.states[chip]
	if !ok {
		state = make(map[string]any)
		for k, v := range dev.Channels {
			state[k] = v
		}
		b.states[chip] = state
	}
	if channel != "" {
		state[channel] = value
	}
	state["dbm"] = dev.DBm
	if !dev.LastSeen.IsZero() {
		state["last_seen"] = dev.LastSeen.Format(time.RFC3339)
	}
	payload := mustJSON(state)
	b.mu.Unlock()

	b.publish(b.prefix+"/"+deviceTopicName(dev), payload, true)
}

func (b *Bridge) handleDeviceRemoved(chip string) {
	dev := &store.Device{ChipID: chip}
	for _, msg := range buildRemoveDiscovery(dev, b.discPrefix) {
		b.publish(msg.Topic, msg.Payload, true)
	}

	b.mu.Lock()
	delete(b.states, chip)
	b.mu.Unlock()
}

func (b *Bridge) publishBridgeState(state string) {
	b.publish(b.prefix+"/bridge/state", []byte(state), true)
}

func (b *Bridge) publishAllDiscovery() {
	devices, err := b.gw.Devices().ListDevices()
	if err != nil {
		b.logger.Error("list devices for discovery", "err", err)
		return
	}
	for _, dev := range devices {
		b.publishDeviceDiscovery(dev)
	}
}

func (b *Bridge) publishDeviceDiscovery(dev *store.Device) {
	p := b.profileOf(dev)
	if p == nil {
		return
	}
	for _, msg := range buildDiscovery(dev, p, b.prefix, b.discPrefix) {
		b.publish(msg.Topic, msg.Payload, true)
	}
	b.logger.Info("published HA discovery", "chip", dev.ChipID, "name", deviceDisplayName(dev))
}

func (b *Bridge) profileOf(dev *store.Device) *eep.Profile {
	key, err := eep.ParseDeviceType(dev.Profile)
	if err != nil {
		return nil
	}
	return b.gw.Dispatcher().Lookup(key)
}

func (b *Bridge) subscribeCommands() {
	devices, err := b.gw.Devices().ListDevices()
	if err != nil {
		b.logger.Error("list devices for command subscription", "err", err)
		return
	}
	for _, dev := range devices {
		b.subscribeDeviceCommands(dev)
	}
}

func (b *Bridge) subscribeDeviceCommands(dev *store.Device) {
	if p := b.profileOf(dev); p == nil || len(p.Commands) == 0 {
		return
	}
	topic := b.prefix + "/" + deviceTopicName(dev) + "/set"
	chip := dev.ChipID
	b.client.Subscribe(topic, 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		b.handleCommand(chip, msg.Payload())
	})
}

func (b *Bridge) handleCommand(chip string, payload []byte) {
	cmds, err := parseCommands(payload)
	if err != nil {
		b.logger.Warn("invalid command", "chip", chip, "err", err)
		return
	}
	for _, cmd := range cmds {
		if _, err := b.gw.SendCommand(b.gw.Context(), chip, cmd); err != nil {
			level := slog.LevelWarn
			if errors.Is(err, gateway.ErrNoTransmitter) {
				level = slog.LevelError
			}
			b.logger.Log(context.Background(), level, "command failed",
				"chip", chip, "channel", string(cmd.Channel), "err", err)
		}
	}
}

func (b *Bridge) publish(topic string, payload []byte, retained bool) {
	token := b.client.Publish(topic, 1, retained, payload)
	go func() {
		if !token.WaitTimeout(5 * time.Second) {
			b.logger.Warn("MQTT publish timeout", "topic", topic)
		} else if err := token.Error(); err != nil {
			b.logger.Warn("MQTT publish error", "topic", topic, "err", err)
		}
	}()
}

func mustJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
