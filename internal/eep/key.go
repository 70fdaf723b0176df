// Package eep maps EnOcean telegrams to typed channel values according to the
// EnOcean Equipment Profiles, and encodes channel commands back into telegrams.
package eep

import (
	"fmt"
	"strconv"
	"strings"

	"enocean-go-home/internal/telegram"
)

// ProfileKey identifies an EEP variant by RORG, FUNC and TYPE.
type ProfileKey struct {
	RORG byte `json:"rorg"`
	Func byte `json:"func"`
	Type byte `json:"type"`
}

// Absent marks a FUNC or TYPE that the sender did not report.
const Absent byte = 0xFF

// Default profiles for telegram types that carry no FUNC/TYPE.
var (
	KeyRocker  = ProfileKey{RORG: telegram.RORGRPS, Func: 0x02, Type: 0x01}
	KeyContact = ProfileKey{RORG: telegram.RORG1BS, Func: 0x00, Type: 0x01}
)

// DefaultKey returns the profile assumed for rorg when FUNC and TYPE are absent.
func DefaultKey(rorg byte) (ProfileKey, bool) {
	switch rorg {
	case telegram.RORGRPS:
		return KeyRocker, true
	case telegram.RORG1BS:
		return KeyContact, true
	}
	return ProfileKey{}, false
}

// String renders the key in device type form, e.g. "A5-10-03".
func (k ProfileKey) String() string {
	return fmt.Sprintf("%02X-%02X-%02X", k.RORG, k.Func, k.Type)
}

// ThingUID returns the device identifier used by discovery: "enocean:a5-10-03:0182A3F1".
func (k ProfileKey) ThingUID(chipID string) string {
	return "enocean:" + strings.ToLower(k.String()) + ":" + strings.ToUpper(chipID)
}

// Label is the default human readable device name for the profile.
func (k ProfileKey) Label() string {
	return "EnOcean " + k.String()
}

// MarshalText implements encoding.TextMarshaler.
func (k ProfileKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ProfileKey) UnmarshalText(b []byte) error {
	key, err := ParseDeviceType(string(b))
	if err != nil {
		return err
	}
	*k = key
	return nil
}

// ParseDeviceType parses the "RR-FF-TT" form (hex, case insensitive).
func ParseDeviceType(s string) (ProfileKey, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 3 {
		return ProfileKey{}, fmt.Errorf("device type %q: want RR-FF-TT", s)
	}
	var b [3]byte
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return ProfileKey{}, fmt.Errorf("device type %q: %w", s, err)
		}
		b[i] = byte(v)
	}
	return ProfileKey{RORG: b[0], Func: b[1], Type: b[2]}, nil
}

// ParseKey builds a key from out-of-band telegram metadata. Values are decimal
// ("165") or 0x-prefixed hex ("0xA5"). An empty or 0xFF func/type is treated
// as absent and replaced with the RORG's default profile when one exists.
func ParseKey(rorg, fn, typ string) (ProfileKey, error) {
	r, err := parseMetaByte(rorg)
	if err != nil {
		return ProfileKey{}, fmt.Errorf("rorg: %w", err)
	}
	if r == Absent {
		return ProfileKey{}, fmt.Errorf("rorg: missing")
	}
	f, err := parseMetaByte(fn)
	if err != nil {
		return ProfileKey{}, fmt.Errorf("func: %w", err)
	}
	t, err := parseMetaByte(typ)
	if err != nil {
		return ProfileKey{}, fmt.Errorf("type: %w", err)
	}
	if f == Absent || t == Absent {
		if def, ok := DefaultKey(r); ok {
			return def, nil
		}
	}
	return ProfileKey{RORG: r, Func: f, Type: t}, nil
}

func parseMetaByte(s string) (byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Absent, nil
	}
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("%q is not a byte value", s)
	}
	return byte(v), nil
}
