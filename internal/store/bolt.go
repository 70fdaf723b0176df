package store

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketDevices  = []byte("devices")
	bucketProfiles = []byte("unknown_profiles")
)

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens or creates a BoltDB database.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketDevices, bucketProfiles} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func putJSON(b *bolt.Bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put([]byte(key), data)
}

func (s *BoltStore) SaveDevice(dev *Device) error {
	if dev.ChipID == "" {
		return fmt.Errorf("save device: empty chip id")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(bucketDevices), dev.ChipID, dev)
	})
}

func (s *BoltStore) GetDevice(chipID string) (*Device, error) {
	var dev Device
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketDevices).Get([]byte(chipID))
		if data == nil {
			return fmt.Errorf("device %s: %w", chipID, ErrNotFound)
		}
		return json.Unmarshal(data, &dev)
	})
	if err != nil {
		return nil, err
	}
	return &dev, nil
}

func (s *BoltStore) DeleteDevice(chipID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDevices).Delete([]byte(chipID))
	})
}

func (s *BoltStore) ListDevices() ([]*Device, error) {
	var devices []*Device
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDevices)
		devices = make([]*Device, 0, b.Stats().KeyN)
		return b.ForEach(func(k, v []byte) error {
			var dev Device
			if err := json.Unmarshal(v, &dev); err != nil {
				return err
			}
			devices = append(devices, &dev)
			return nil
		})
	})
	return devices, err
}

func (s *BoltStore) UpdateDevice(chipID string, fn func(dev *Device) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDevices)
		data := b.Get([]byte(chipID))
		if data == nil {
			return fmt.Errorf("device %s: %w", chipID, ErrNotFound)
		}
		var dev Device
		if err := json.Unmarshal(data, &dev); err != nil {
			return err
		}
		if err := fn(&dev); err != nil {
			return err
		}
		dev.ChipID = chipID
		return putJSON(b, chipID, &dev)
	})
}

func (s *BoltStore) RecordUnknownProfile(profile, chipID string, at time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProfiles)
		up := UnknownProfile{Profile: profile, FirstSeen: at}
		if data := b.Get([]byte(profile)); data != nil {
			if err := json.Unmarshal(data, &up); err != nil {
				return err
			}
		}
		up.Count++
		up.LastSeen = at
		up.LastChip = chipID
		return putJSON(b, profile, &up)
	})
}

func (s *BoltStore) ListUnknownProfiles() ([]*UnknownProfile, error) {
	var out []*UnknownProfile
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProfiles).ForEach(func(k, v []byte) error {
			var up UnknownProfile
			if err := json.Unmarshal(v, &up); err != nil {
				return err
			}
			out = append(out, &up)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
