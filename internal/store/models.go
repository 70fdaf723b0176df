package store

import "time"

// Device represents an EnOcean device known to the gateway.
type Device struct {
	ChipID       string         `json:"chip_id"`
	LocalID      string         `json:"local_id,omitempty"`
	Profile      string         `json:"profile"`
	FriendlyName string         `json:"friendly_name,omitempty"`
	Label        string         `json:"label,omitempty"`
	ThingUID     string         `json:"thing_uid,omitempty"`
	AutoAdded    bool           `json:"auto_added,omitempty"`
	JoinedAt     time.Time      `json:"joined_at"`
	LastSeen     time.Time      `json:"last_seen"`
	DBm          int8           `json:"dbm,omitempty"`
	Channels     map[string]any `json:"channels,omitempty"`
}

// UnknownProfile counts telegrams received for a profile the gateway cannot
// interpret, so operators can tell which profiles are worth adding.
type UnknownProfile struct {
	Profile   string    `json:"profile"`
	Count     uint64    `json:"count"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	LastChip  string    `json:"last_chip,omitempty"`
}
