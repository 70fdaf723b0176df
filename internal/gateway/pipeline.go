package gateway

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"enocean-go-home/internal/eep"
	"enocean-go-home/internal/store"
	"enocean-go-home/internal/telegram"
)

// Metadata is the out-of-band information delivered alongside a raw telegram.
// Numeric fields are strings as reported by the radio side, decimal ("165")
// or 0x-prefixed hex. Empty fields are absent.
type Metadata struct {
	ChipID   string `json:"chip_id,omitempty"`
	RORG     string `json:"rorg,omitempty"`
	Func     string `json:"func,omitempty"`
	Type     string `json:"type,omitempty"`
	Exported bool   `json:"exported,omitempty"`
}

// HandleTelegram decodes one received telegram, updates the sending device
// and emits the resulting events. Telegrams marked as exported were sent by
// this gateway and are ignored.
//
// The returned error matches telegram.ErrMalformedTelegram or
// eep.ErrUnknownProfile; in both cases the telegram is dropped.
func (g *Gateway) HandleTelegram(raw []byte, meta Metadata) (eep.Result, error) {
	if meta.Exported {
		g.logger.Debug("ignoring exported telegram", "chip", meta.ChipID)
		return eep.Result{}, nil
	}

	t, err := telegram.Decode(raw)
	if err != nil {
		return eep.Result{}, g.malformed(meta.ChipID, raw, err)
	}

	chip := telegram.FormatID(t.SenderID)
	if meta.ChipID != "" {
		if chip, err = parseMetaChipID(meta.ChipID); err != nil {
			return eep.Result{}, g.malformed(meta.ChipID, raw, fmt.Errorf("%w: %v", telegram.ErrMalformedTelegram, err))
		}
	}

	dev, err := g.store.GetDevice(chip)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return eep.Result{}, fmt.Errorf("load device %s: %w", chip, err)
	}

	key, err := resolveKey(meta, t, dev)
	if err != nil {
		return eep.Result{}, g.malformed(chip, raw, err)
	}

	g.events.Emit(Event{
		Type: EventTelegramReceived,
		Data: map[string]interface{}{
			"chip_id":  chip,
			"profile":  key.String(),
			"telegram": hex.EncodeToString(raw),
			"dbm":      t.DBm,
		},
	})

	res, err := g.dispatcher.Decode(key, t)
	switch {
	case errors.Is(err, eep.ErrUnknownProfile):
		g.unknownProfile(chip, key)
		return res, err
	case err != nil:
		return res, g.malformed(chip, raw, err)
	}

	if dev == nil && g.config.AutoAdd {
		if dev, err = g.devices.autoAdd(chip, res.Profile); err != nil {
			g.logger.Error("auto add device", "chip", chip, "err", err)
		}
	}

	for _, u := range res.Unrecognized {
		g.logger.Debug("unrecognized field value", "chip", chip, "profile", res.Profile.String(), "err", u)
		g.events.Emit(Event{
			Type: EventUnrecognizedValue,
			Data: map[string]interface{}{
				"chip_id": chip,
				"profile": res.Profile.String(),
				"error":   u.Error(),
			},
		})
	}

	if dev != nil {
		dbm := t.DBm
		if err := g.devices.recordChannels(chip, res.Values, &dbm, g.now()); err != nil {
			g.logger.Error("save channel state", "chip", chip, "err", err)
		}
	} else {
		g.logger.Debug("telegram from unregistered device", "chip", chip, "profile", res.Profile.String())
	}

	g.emitChannels(chip, dev, res.Profile, res.Values)
	return res, nil
}

// parseMetaChipID reads the chip_id metadata of a received telegram. The
// sender id is reported in decimal ("8969457") or as 0x-prefixed hex
// ("0x0088DCF1") and returned in canonical 8 hex digit form.
func parseMetaChipID(s string) (string, error) {
	s = strings.TrimSpace(s)
	base := 10
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s, base = s[2:], 16
	}
	id, err := strconv.ParseUint(s, base, 32)
	if err != nil {
		return "", fmt.Errorf("chip id %q is not a decimal or 0x-prefixed sender id", s)
	}
	return telegram.FormatID(uint32(id)), nil
}

// resolveKey picks the profile for t: reported metadata first, then the
// device's configured profile, then the RORG default.
func resolveKey(meta Metadata, t telegram.Telegram, dev *store.Device) (eep.ProfileKey, error) {
	var devKey *eep.ProfileKey
	if dev != nil {
		if k, err := eep.ParseDeviceType(dev.Profile); err == nil && k.RORG == t.RORG {
			devKey = &k
		}
	}

	if meta.RORG != "" {
		k, err := eep.ParseKey(meta.RORG, meta.Func, meta.Type)
		if err != nil {
			return eep.ProfileKey{}, fmt.Errorf("%w: metadata: %v", telegram.ErrMalformedTelegram, err)
		}
		if k.RORG != t.RORG {
			return eep.ProfileKey{}, fmt.Errorf("%w: metadata rorg 0x%02X, telegram rorg 0x%02X",
				telegram.ErrMalformedTelegram, k.RORG, t.RORG)
		}
		if (k.Func == eep.Absent || k.Type == eep.Absent) && devKey != nil {
			return *devKey, nil
		}
		return k, nil
	}

	if devKey != nil {
		return *devKey, nil
	}
	if k, ok := eep.DefaultKey(t.RORG); ok {
		return k, nil
	}
	return eep.ProfileKey{RORG: t.RORG, Func: eep.Absent, Type: eep.Absent}, nil
}

func (g *Gateway) malformed(chip string, raw []byte, err error) error {
	g.logger.Warn("dropping malformed telegram", "chip", chip, "err", err)
	g.events.Emit(Event{
		Type: EventMalformedTelegram,
		Data: map[string]interface{}{
			"chip_id":  chip,
			"telegram": hex.EncodeToString(raw),
			"error":    err.Error(),
		},
	})
	return err
}

func (g *Gateway) unknownProfile(chip string, key eep.ProfileKey) {
	g.logger.Warn("no interpreter for profile", "chip", chip, "profile", key.String())
	if err := g.store.RecordUnknownProfile(key.String(), chip, g.now()); err != nil {
		g.logger.Error("record unknown profile", "profile", key.String(), "err", err)
	}
	g.events.Emit(Event{
		Type: EventUnknownProfile,
		Data: map[string]interface{}{
			"chip_id": chip,
			"profile": key.String(),
		},
	})
}

func (g *Gateway) emitChannels(chip string, dev *store.Device, key eep.ProfileKey, values []eep.ChannelValue) {
	for _, v := range values {
		g.logger.Info("channel update", "chip", chip, "name", deviceName(dev), "channel", string(v.Channel), "value", v.Value.String())
		g.events.Emit(Event{
			Type: EventChannelUpdate,
			Data: map[string]interface{}{
				"chip_id": chip,
				"name":    deviceName(dev),
				"profile": key.String(),
				"channel": string(v.Channel),
				"value":   v.Native(),
			},
		})
	}
}
