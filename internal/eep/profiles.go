package eep

import (
	"fmt"

	"enocean-go-home/internal/telegram"
)

// RPS status values.
const (
	statusPressed  byte = 0x30
	statusReleased byte = 0x20
)

// RockerMapping selects how rocker DB0 values map to ON/OFF.
type RockerMapping int

const (
	// RockerCanonical maps 0x10/0x50 to ON and 0x30/0x70 to OFF.
	RockerCanonical RockerMapping = iota
	// RockerInverted maps 0x10/0x50 to OFF and 0x30/0x70 to ON, as some
	// older field installations were configured.
	RockerInverted
)

// ParseRockerMapping accepts "canonical" (or empty) and "inverted".
func ParseRockerMapping(s string) (RockerMapping, error) {
	switch s {
	case "", "canonical":
		return RockerCanonical, nil
	case "inverted":
		return RockerInverted, nil
	}
	return RockerCanonical, fmt.Errorf("unknown rocker mapping %q", s)
}

func (m RockerMapping) String() string {
	if m == RockerInverted {
		return "inverted"
	}
	return "canonical"
}

type rockerButton struct {
	db0     byte
	channel ChannelID
	value   OnOff
}

var rockerButtons = []rockerButton{
	{0x10, ChannelSwitchA, On},
	{0x30, ChannelSwitchA, Off},
	{0x50, ChannelSwitchB, On},
	{0x70, ChannelSwitchB, Off},
}

func (m RockerMapping) apply(v OnOff) OnOff {
	if m == RockerInverted {
		return !v
	}
	return v
}

// Profile describes one supported equipment profile.
type Profile struct {
	Key      ProfileKey  `json:"key"`
	Name     string      `json:"name"`
	Channels []ChannelID `json:"channels"`
	Commands []ChannelID `json:"commands,omitempty"`

	decode func(t telegram.Telegram, o *options) ([]ChannelValue, []error)
	encode func(cmd Command, o *options) ([]byte, error)
}

// CanEncode reports whether the profile accepts commands on ch.
func (p *Profile) CanEncode(ch ChannelID) bool {
	for _, c := range p.Commands {
		if c == ch {
			return true
		}
	}
	return false
}

var rockerProfile = &Profile{
	Key:      KeyRocker,
	Name:     "Rocker switch, 2 rocker",
	Channels: []ChannelID{ChannelSwitchA, ChannelSwitchB},
	Commands: []ChannelID{ChannelSwitchA, ChannelSwitchB},
	decode:   decodeRocker,
	encode:   encodeRocker,
}

var contactProfile = &Profile{
	Key:      KeyContact,
	Name:     "Single input contact",
	Channels: []ChannelID{ChannelContact},
	decode:   decodeContact,
}

var roomPanel03 = &Profile{
	Key:      ProfileKey{RORG: telegram.RORG4BS, Func: 0x10, Type: 0x03},
	Name:     "Room operating panel, temperature and set point",
	Channels: []ChannelID{ChannelTemperature, ChannelSetPoint},
	decode:   decodeRoomPanel(false),
}

var roomPanel06 = &Profile{
	Key:      ProfileKey{RORG: telegram.RORG4BS, Func: 0x10, Type: 0x06},
	Name:     "Room operating panel, temperature, set point and day/night",
	Channels: []ChannelID{ChannelTemperature, ChannelSetPoint, ChannelDayNight},
	decode:   decodeRoomPanel(true),
}

func decodeRocker(t telegram.Telegram, o *options) ([]ChannelValue, []error) {
	switch t.Status {
	case statusReleased:
		return nil, nil
	case statusPressed:
	default:
		return nil, []error{&UnrecognizedValue{Field: "status", Value: t.Status}}
	}
	db0 := t.Payload[0]
	for _, b := range rockerButtons {
		if b.db0 == db0 {
			return []ChannelValue{{Channel: b.channel, Value: o.rocker.apply(b.value)}}, nil
		}
	}
	return nil, []error{&UnrecognizedValue{Field: "DB0", Value: db0}}
}

func encodeRocker(cmd Command, o *options) ([]byte, error) {
	for _, b := range rockerButtons {
		if b.channel == cmd.Channel && o.rocker.apply(b.value) == cmd.Value {
			return []byte{b.db0}, nil
		}
	}
	return nil, fmt.Errorf("%w: rocker has no button for %s", ErrUnsupportedCommand, cmd.Channel)
}

func decodeContact(t telegram.Telegram, _ *options) ([]ChannelValue, []error) {
	var c Contact
	switch t.Payload[0] {
	case 8:
		c = ContactOpen
	case 9:
		c = ContactClosed
	case 0:
		c = ContactLearn
	default:
		return nil, []error{&UnrecognizedValue{Field: "DB0", Value: t.Payload[0]}}
	}
	return []ChannelValue{{Channel: ChannelContact, Value: c}}, nil
}

// decodeRoomPanel reads [DB3 DB2 DB1 DB0]: set point in DB2, temperature in DB1
// and, for TYPE 0x06, the day/night slide switch in bit 0 of DB0.
func decodeRoomPanel(dayNight bool) func(telegram.Telegram, *options) ([]ChannelValue, []error) {
	return func(t telegram.Telegram, _ *options) ([]ChannelValue, []error) {
		p := t.Payload
		values := []ChannelValue{
			{Channel: ChannelTemperature, Value: Decimal(ScaleTemperature(p[2]))},
			{Channel: ChannelSetPoint, Value: Decimal(ScaleSetPoint(p[1]))},
		}
		if dayNight {
			values = append(values, ChannelValue{Channel: ChannelDayNight, Value: OnOff(p[3]&0x01 != 0)})
		}
		return values, nil
	}
}

// profileTable is keyed by RORG, then FUNC, then TYPE. Telegram types whose
// profile is resolved by RORG alone have a byRORG entry.
type rorgEntry struct {
	byRORG *Profile
	funcs  map[byte]map[byte]*Profile
}

func buildTable() map[byte]rorgEntry {
	roomPanels := map[byte]*Profile{0x03: roomPanel03, 0x06: roomPanel06}
	return map[byte]rorgEntry{
		telegram.RORGRPS: {byRORG: rockerProfile},
		telegram.RORG1BS: {byRORG: contactProfile},
		telegram.RORG4BS: {funcs: map[byte]map[byte]*Profile{
			0x10: roomPanels,
			0x16: roomPanels,
		}},
	}
}
