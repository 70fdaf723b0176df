package eep

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ChannelID names a typed device channel.
type ChannelID string

const (
	ChannelSwitchA     ChannelID = "switchA"
	ChannelSwitchB     ChannelID = "switchB"
	ChannelTemperature ChannelID = "temperature"
	ChannelSetPoint    ChannelID = "setPoint"
	ChannelDayNight    ChannelID = "dayNight"
	ChannelContact     ChannelID = "contact"
)

var channels = []ChannelID{
	ChannelSwitchA, ChannelSwitchB, ChannelTemperature,
	ChannelSetPoint, ChannelDayNight, ChannelContact,
}

// ParseChannel accepts a channel id regardless of case.
func ParseChannel(s string) (ChannelID, error) {
	for _, c := range channels {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown channel %q", s)
}

// Value is a decoded channel value: Decimal, OnOff or Contact.
type Value interface {
	fmt.Stringer
	value()
}

// Decimal is a physical measurement such as a temperature in °C.
type Decimal float64

// OnOff is a binary switch state.
type OnOff bool

const (
	On  OnOff = true
	Off OnOff = false
)

// Contact is the state reported by a single-contact sensor.
type Contact uint8

const (
	ContactOpen Contact = iota + 1
	ContactClosed
	ContactLearn
)

func (Decimal) value() {}
func (OnOff) value()   {}
func (Contact) value() {}

func (d Decimal) String() string { return fmt.Sprintf("%g", float64(d)) }

func (o OnOff) String() string {
	if o {
		return "ON"
	}
	return "OFF"
}

func (c Contact) String() string {
	switch c {
	case ContactOpen:
		return "OPEN"
	case ContactClosed:
		return "CLOSED"
	case ContactLearn:
		return "LEARN"
	}
	return "UNKNOWN"
}

// ParseOnOff accepts ON/OFF, true/false and 1/0.
func ParseOnOff(s string) (OnOff, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ON", "TRUE", "1":
		return On, nil
	case "OFF", "FALSE", "0":
		return Off, nil
	}
	return Off, fmt.Errorf("invalid on/off value %q", s)
}

// ChannelValue is one channel update produced by decoding a telegram.
type ChannelValue struct {
	Channel ChannelID
	Value   Value
}

// Native returns the value in the form stored and published by the gateway:
// float64 for decimals, "ON"/"OFF" and "OPEN"/"CLOSED"/"LEARN" strings otherwise.
func (cv ChannelValue) Native() any {
	if d, ok := cv.Value.(Decimal); ok {
		return float64(d)
	}
	return cv.Value.String()
}

func (cv ChannelValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Channel ChannelID `json:"channel"`
		Value   any       `json:"value"`
	}{cv.Channel, cv.Native()})
}

func (cv ChannelValue) String() string {
	return string(cv.Channel) + "=" + cv.Value.String()
}

// Command asks a device to switch one of its channels.
type Command struct {
	Channel ChannelID `json:"channel"`
	Value   OnOff     `json:"value"`
}

func (o OnOff) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

func (o *OnOff) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case bool:
		*o = OnOff(x)
		return nil
	case string:
		p, err := ParseOnOff(x)
		if err != nil {
			return err
		}
		*o = p
		return nil
	}
	return fmt.Errorf("invalid on/off value %s", b)
}
