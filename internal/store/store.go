package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist in the store.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface.
type Store interface {
	// Device operations, keyed by chip id.
	SaveDevice(dev *Device) error
	GetDevice(chipID string) (*Device, error)
	DeleteDevice(chipID string) error
	ListDevices() ([]*Device, error)

	// UpdateDevice atomically reads, modifies, and saves a device in a single
	// transaction. Returns ErrNotFound if the device does not exist.
	UpdateDevice(chipID string, fn func(dev *Device) error) error

	// Telegrams whose profile has no interpreter.
	RecordUnknownProfile(profile, chipID string, at time.Time) error
	ListUnknownProfiles() ([]*UnknownProfile, error)

	// Close the store
	Close() error
}
