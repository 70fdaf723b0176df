package gateway

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"enocean-go-home/internal/eep"
	"enocean-go-home/internal/store"
	"enocean-go-home/internal/telegram"
)

// DeviceDefinition is the configured identity of one device.
type DeviceDefinition struct {
	ChipID       string `yaml:"chip_id"`
	LocalID      string `yaml:"local_id,omitempty"`
	Profile      string `yaml:"profile"`
	FriendlyName string `yaml:"friendly_name,omitempty"`
}

// DeviceDB holds device definitions keyed by normalized chip id.
type DeviceDB struct {
	defs map[string]*DeviceDefinition
}

// NewDeviceDB creates an empty device database.
func NewDeviceDB() *DeviceDB {
	return &DeviceDB{defs: make(map[string]*DeviceDefinition)}
}

// Add validates def and inserts it, replacing any definition for the same chip.
func (db *DeviceDB) Add(def DeviceDefinition) error {
	chip, err := NormalizeChipID(def.ChipID)
	if err != nil {
		return err
	}
	key, err := eep.ParseDeviceType(def.Profile)
	if err != nil {
		return fmt.Errorf("device %s: %w", chip, err)
	}
	if def.LocalID != "" {
		if _, err := telegram.ParseLocalID(def.LocalID); err != nil {
			return fmt.Errorf("device %s: %w", chip, err)
		}
	}
	cp := def
	cp.ChipID = chip
	cp.Profile = key.String()
	db.defs[chip] = &cp
	return nil
}

// Lookup finds a device definition by chip id.
func (db *DeviceDB) Lookup(chipID string) *DeviceDefinition {
	chip, err := NormalizeChipID(chipID)
	if err != nil {
		return nil
	}
	return db.defs[chip]
}

// Len returns the number of device definitions.
func (db *DeviceDB) Len() int {
	return len(db.defs)
}

// All returns the definitions ordered by chip id.
func (db *DeviceDB) All() []DeviceDefinition {
	out := make([]DeviceDefinition, 0, len(db.defs))
	for _, d := range db.defs {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChipID < out[j].ChipID })
	return out
}

// deviceFile is the YAML structure for files in the devices directory.
type deviceFile struct {
	Devices []DeviceDefinition `yaml:"devices"`
}

// LoadDeviceDir reads all *.yaml and *.yml files from a directory into a DeviceDB.
// Returns an empty DeviceDB (not an error) if the directory doesn't exist or is empty.
func LoadDeviceDir(dir string, logger *slog.Logger) (*DeviceDB, error) {
	db := NewDeviceDB()

	var matches []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		m, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return db, fmt.Errorf("glob devices dir: %w", err)
		}
		matches = append(matches, m...)
	}
	if len(matches) == 0 {
		logger.Info("no device definition files found", "dir", dir)
		return db, nil
	}
	sort.Strings(matches)

	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return db, fmt.Errorf("read %s: %w", path, err)
		}

		var df deviceFile
		if err := yaml.Unmarshal(data, &df); err != nil {
			return db, fmt.Errorf("parse %s: %w", path, err)
		}
		for _, d := range df.Devices {
			if err := db.Add(d); err != nil {
				return db, fmt.Errorf("%s: %w", path, err)
			}
		}
		logger.Info("loaded device file", "path", filepath.Base(path), "devices", len(df.Devices))
	}

	logger.Info("device database loaded", "files", len(matches), "devices", db.Len())
	return db, nil
}

// Seed writes configured identities into the store. Existing devices keep
// their channel state and timestamps; identity fields come from the file.
func (db *DeviceDB) Seed(st store.Store, now time.Time) (added int, err error) {
	for _, def := range db.All() {
		key, _ := eep.ParseDeviceType(def.Profile)
		err := st.UpdateDevice(def.ChipID, func(dev *store.Device) error {
			applyDefinition(dev, def, key)
			return nil
		})
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return added, fmt.Errorf("seed device %s: %w", def.ChipID, err)
		}
		dev := &store.Device{ChipID: def.ChipID, JoinedAt: now}
		applyDefinition(dev, def, key)
		if err := st.SaveDevice(dev); err != nil {
			return added, fmt.Errorf("seed device %s: %w", def.ChipID, err)
		}
		added++
	}
	return added, nil
}

func applyDefinition(dev *store.Device, def DeviceDefinition, key eep.ProfileKey) {
	dev.Profile = key.String()
	dev.LocalID = def.LocalID
	dev.Label = key.Label()
	dev.ThingUID = key.ThingUID(dev.ChipID)
	dev.AutoAdded = false
	if def.FriendlyName != "" {
		dev.FriendlyName = def.FriendlyName
	}
}

// NormalizeChipID returns the canonical 8 hex digit form of a chip id.
func NormalizeChipID(s string) (string, error) {
	id, err := telegram.ParseLocalID(s)
	if err != nil {
		return "", fmt.Errorf("chip id: %w", err)
	}
	return telegram.FormatID(id), nil
}
