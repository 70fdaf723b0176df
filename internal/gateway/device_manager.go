package gateway

import (
	"fmt"
	"log/slog"
	"time"

	"enocean-go-home/internal/eep"
	"enocean-go-home/internal/store"
	"enocean-go-home/internal/telegram"
)

// DeviceManager handles device registration and lookup.
type DeviceManager struct {
	gw     *Gateway
	logger *slog.Logger
}

// NewDeviceManager creates a new device manager.
func NewDeviceManager(gw *Gateway) *DeviceManager {
	return &DeviceManager{
		gw:     gw,
		logger: gw.logger.With("component", "device_manager"),
	}
}

// deviceName returns a human-readable display name for a device.
func deviceName(dev *store.Device) string {
	if dev == nil {
		return ""
	}
	if dev.FriendlyName != "" {
		return dev.FriendlyName
	}
	return dev.Label
}

// NewDevice describes a device registered through the API.
type NewDevice struct {
	ChipID       string `json:"chip_id"`
	LocalID      string `json:"local_id"`
	Profile      string `json:"profile"`
	FriendlyName string `json:"friendly_name"`
}

// AddDevice registers a device. The profile must be one the dispatcher supports.
func (dm *DeviceManager) AddDevice(nd NewDevice) (*store.Device, error) {
	chip, err := NormalizeChipID(nd.ChipID)
	if err != nil {
		return nil, err
	}
	key, err := eep.ParseDeviceType(nd.Profile)
	if err != nil {
		return nil, err
	}
	if dm.gw.dispatcher.Lookup(key) == nil {
		return nil, fmt.Errorf("%w: %s", eep.ErrUnknownProfile, key)
	}
	if nd.LocalID != "" {
		if _, err := telegram.ParseLocalID(nd.LocalID); err != nil {
			return nil, err
		}
	}
	dev := dm.newDevice(chip, key, false)
	dev.LocalID = nd.LocalID
	dev.FriendlyName = nd.FriendlyName
	if err := dm.gw.store.SaveDevice(dev); err != nil {
		return nil, err
	}
	dm.announce(dev)
	return dev, nil
}

func (dm *DeviceManager) newDevice(chip string, key eep.ProfileKey, auto bool) *store.Device {
	return &store.Device{
		ChipID:    chip,
		Profile:   key.String(),
		Label:     key.Label(),
		ThingUID:  key.ThingUID(chip),
		AutoAdded: auto,
		JoinedAt:  dm.gw.now(),
	}
}

// autoAdd registers a device discovered from an incoming telegram.
func (dm *DeviceManager) autoAdd(chip string, key eep.ProfileKey) (*store.Device, error) {
	dev := dm.newDevice(chip, key, true)
	if err := dm.gw.store.SaveDevice(dev); err != nil {
		return nil, err
	}
	dm.announce(dev)
	return dev, nil
}

func (dm *DeviceManager) announce(dev *store.Device) {
	dm.logger.Info("device added", "chip", dev.ChipID, "profile", dev.Profile,
		"name", deviceName(dev), "auto", dev.AutoAdded)
	dm.gw.events.Emit(Event{
		Type: EventDeviceAdded,
		Data: map[string]interface{}{
			"chip_id":   dev.ChipID,
			"profile":   dev.Profile,
			"name":      deviceName(dev),
			"thing_uid": dev.ThingUID,
			"auto":      dev.AutoAdded,
		},
	})
}

// RemoveDevice deletes a device from the store.
func (dm *DeviceManager) RemoveDevice(chipID string) error {
	chip, err := NormalizeChipID(chipID)
	if err != nil {
		return err
	}
	dev, err := dm.gw.store.GetDevice(chip)
	if err != nil {
		return err
	}
	if err := dm.gw.store.DeleteDevice(chip); err != nil {
		return err
	}
	dm.logger.Info("device removed", "chip", chip, "name", deviceName(dev))
	dm.gw.events.Emit(Event{
		Type: EventDeviceRemoved,
		Data: map[string]interface{}{
			"chip_id": chip,
			"name":    deviceName(dev),
		},
	})
	return nil
}

// ListDevices returns all known devices.
func (dm *DeviceManager) ListDevices() ([]*store.Device, error) {
	return dm.gw.store.ListDevices()
}

// GetDevice returns a device by chip id.
func (dm *DeviceManager) GetDevice(chipID string) (*store.Device, error) {
	chip, err := NormalizeChipID(chipID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}
	return dm.gw.store.GetDevice(chip)
}

// UpdateDevice applies fn to the stored device in one store transaction, so
// channel state recorded concurrently by the telegram pipeline is kept.
func (dm *DeviceManager) UpdateDevice(chipID string, fn func(dev *store.Device) error) (*store.Device, error) {
	chip, err := NormalizeChipID(chipID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}
	var updated store.Device
	err = dm.gw.store.UpdateDevice(chip, func(dev *store.Device) error {
		if err := fn(dev); err != nil {
			return err
		}
		updated = *dev
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// recordChannels stores the latest channel values and signal data for a device.
func (dm *DeviceManager) recordChannels(chip string, values []eep.ChannelValue, dbm *int8, at time.Time) error {
	return dm.gw.store.UpdateDevice(chip, func(dev *store.Device) error {
		if dbm != nil {
			dev.LastSeen = at
			dev.DBm = *dbm
		}
		if len(values) > 0 && dev.Channels == nil {
			dev.Channels = make(map[string]any, len(values))
		}
		for _, v := range values {
			dev.Channels[string(v.Channel)] = v.Native()
		}
		return nil
	})
}
