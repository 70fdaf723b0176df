package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"enocean-go-home/internal/eep"
	"enocean-go-home/internal/telegram"
)

var (
	ErrNoTransmitter = errors.New("no transmitter configured")
	ErrNoLocalID     = errors.New("device has no local id")
)

const transmitTimeout = 10 * time.Second

// SendCommand encodes cmd for the device's profile and hands the telegram to
// the transmitter. On success the commanded value is recorded as the
// channel's new state.
func (g *Gateway) SendCommand(ctx context.Context, chipID string, cmd eep.Command) (telegram.Telegram, error) {
	dev, err := g.devices.GetDevice(chipID)
	if err != nil {
		return telegram.Telegram{}, err
	}
	key, err := eep.ParseDeviceType(dev.Profile)
	if err != nil {
		return telegram.Telegram{}, fmt.Errorf("device %s: %w", dev.ChipID, err)
	}
	if dev.LocalID == "" {
		return telegram.Telegram{}, fmt.Errorf("%w: %s", ErrNoLocalID, dev.ChipID)
	}

	t, err := g.dispatcher.Encode(cmd, key, dev.LocalID)
	if err != nil {
		return telegram.Telegram{}, err
	}
	raw, err := t.Encode()
	if err != nil {
		return telegram.Telegram{}, err
	}

	tx := g.transmitter()
	if tx == nil {
		return telegram.Telegram{}, ErrNoTransmitter
	}
	ctx, cancel := context.WithTimeout(ctx, transmitTimeout)
	defer cancel()
	if err := tx.Transmit(ctx, dev.ChipID, raw); err != nil {
		return telegram.Telegram{}, fmt.Errorf("transmit to %s: %w", dev.ChipID, err)
	}

	g.logger.Info("command sent", "chip", dev.ChipID, "name", deviceName(dev),
		"channel", string(cmd.Channel), "value", cmd.Value.String(), "telegram", t.String())
	g.events.Emit(Event{
		Type: EventTelegramSent,
		Data: map[string]interface{}{
			"chip_id": dev.ChipID,
			"channel": string(cmd.Channel),
			"value":   cmd.Value.String(),
			"sender":  telegram.FormatID(t.SenderID),
		},
	})

	values := []eep.ChannelValue{{Channel: cmd.Channel, Value: cmd.Value}}
	if err := g.devices.recordChannels(dev.ChipID, values, nil, g.now()); err != nil {
		g.logger.Error("save commanded state", "chip", dev.ChipID, "err", err)
	}
	g.emitChannels(dev.ChipID, dev, key, values)
	return t, nil
}
