//go:build !no_mqtt

package mqtt

import (
	"fmt"
	"strings"

	"enocean-go-home/internal/eep"
	"enocean-go-home/internal/store"
)

// discoveryMsg is a Home Assistant MQTT discovery payload.
type discoveryMsg struct {
	Topic   string // e.g. "homeassistant/sensor/enocean_0182A3F1/temperature/config"
	Payload []byte // JSON, empty means delete
}

// haDevice is the "device" block in HA discovery.
type haDevice struct {
	Identifiers  []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name"`
}

// haDiscovery is a generic HA discovery payload.
type haDiscovery struct {
	Name              string   `json:"name"`
	UniqueID          string   `json:"unique_id"`
	StateTopic        string   `json:"state_topic"`
	CommandTopic      string   `json:"command_topic,omitempty"`
	AvailabilityTopic string   `json:"availability_topic"`
	ValueTemplate     string   `json:"value_template,omitempty"`
	UnitOfMeasurement string   `json:"unit_of_measurement,omitempty"`
	DeviceClass       string   `json:"device_class,omitempty"`
	StateClass        string   `json:"state_class,omitempty"`
	EntityCategory    string   `json:"entity_category,omitempty"`
	PayloadOn         string   `json:"payload_on,omitempty"`
	PayloadOff        string   `json:"payload_off,omitempty"`
	StateOn           string   `json:"state_on,omitempty"`
	StateOff          string   `json:"state_off,omitempty"`
	Device            haDevice `json:"device"`
}

// deviceDisplayName returns a display name for the device.
func deviceDisplayName(dev *store.Device) string {
	if dev.FriendlyName != "" {
		return dev.FriendlyName
	}
	if dev.Label != "" {
		return dev.Label + " " + dev.ChipID
	}
	return dev.ChipID
}

// deviceIdentifier returns the unique identifier for HA device registry.
func deviceIdentifier(dev *store.Device) string {
	return "enocean_" + dev.ChipID
}

// deviceTopicName returns the topic name for a device (friendly name or chip id).
func deviceTopicName(dev *store.Device) string {
	if dev.FriendlyName != "" {
		// Sanitize: lowercase and keep only safe chars for MQTT topics.
		name := strings.ToLower(dev.FriendlyName)
		name = strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
				return r
			}
			return '_'
		}, name)
		return name
	}
	return dev.ChipID
}

// channelComponent describes how a channel appears in Home Assistant.
type channelComponent struct {
	component   string
	suffix      string
	deviceClass string
	unit        string
	stateClass  string
	template    string
}

var channelComponents = map[eep.ChannelID]channelComponent{
	eep.ChannelSwitchA:     {"switch", "Switch A", "", "", "", "{{ value_json.switchA }}"},
	eep.ChannelSwitchB:     {"switch", "Switch B", "", "", "", "{{ value_json.switchB }}"},
	eep.ChannelTemperature: {"sensor", "Temperature", "temperature", "°C", "measurement", "{{ value_json.temperature }}"},
	eep.ChannelSetPoint:    {"sensor", "Set Point", "temperature", "°C", "measurement", "{{ value_json.setPoint }}"},
	eep.ChannelDayNight:    {"binary_sensor", "Day/Night", "", "", "", "{{ value_json.dayNight }}"},
	eep.ChannelContact:     {"binary_sensor", "Contact", "opening", "", "", "{{ 'ON' if value_json.contact == 'OPEN' else 'OFF' }}"},
}

// buildDiscovery generates HA discovery messages for a device from its profile channels.
func buildDiscovery(dev *store.Device, p *eep.Profile, prefix, discPrefix string) []discoveryMsg {
	avail := prefix + "/bridge/state"
	stateTopic := prefix + "/" + deviceTopicName(dev)
	nodeID := deviceIdentifier(dev)
	displayName := deviceDisplayName(dev)

	haDev := haDevice{
		Identifiers:  []string{nodeID},
		Manufacturer: "EnOcean",
		Model:        p.Key.String() + " " + p.Name,
		Name:         displayName,
	}

	var msgs []discoveryMsg
	for _, ch := range p.Channels {
		cc, ok := channelComponents[ch]
		if !ok {
			continue
		}
		objectID := strings.ToLower(string(ch))
		payload := haDiscovery{
			Name:              displayName + " " + cc.suffix,
			UniqueID:          nodeID + "_" + objectID,
			StateTopic:        stateTopic,
			AvailabilityTopic: avail,
			ValueTemplate:     cc.template,
			UnitOfMeasurement: cc.unit,
			DeviceClass:       cc.deviceClass,
			StateClass:        cc.stateClass,
			Device:            haDev,
		}
		switch cc.component {
		case "switch":
			if p.CanEncode(ch) {
				payload.CommandTopic = stateTopic + "/set"
			}
			payload.PayloadOn = fmt.Sprintf(`{"%s":"ON"}`, ch)
			payload.PayloadOff = fmt.Sprintf(`{"%s":"OFF"}`, ch)
			payload.StateOn = "ON"
			payload.StateOff = "OFF"
		case "binary_sensor":
			payload.PayloadOn = "ON"
			payload.PayloadOff = "OFF"
		}
		msgs = append(msgs, discoveryMsg{
			Topic:   fmt.Sprintf("%s/%s/%s/%s/config", discPrefix, cc.component, nodeID, objectID),
			Payload: mustJSON(payload),
		})
	}

	// Signal strength sensor for all devices.
	msgs = append(msgs, discoveryMsg{
		Topic: fmt.Sprintf("%s/sensor/%s/dbm/config", discPrefix, nodeID),
		Payload: mustJSON(haDiscovery{
			Name:              displayName + " Signal",
			UniqueID:          nodeID + "_dbm",
			StateTopic:        stateTopic,
			AvailabilityTopic: avail,
			ValueTemplate:     "{{ value_json.dbm }}",
			UnitOfMeasurement: "dBm",
			DeviceClass:       "signal_strength",
			StateClass:        "measurement",
			EntityCategory:    "diagnostic",
			Device:            haDev,
		}),
	})
	return msgs
}

// buildRemoveDiscovery generates empty retained messages to remove a device from HA.
func buildRemoveDiscovery(dev *store.Device, discPrefix string) []discoveryMsg {
	nodeID := deviceIdentifier(dev)

	var msgs []discoveryMsg
	for ch, cc := range channelComponents {
		msgs = append(msgs, discoveryMsg{
			Topic: fmt.Sprintf("%s/%s/%s/%s/config", discPrefix, cc.component, nodeID, strings.ToLower(string(ch))),
		})
	}
	msgs = append(msgs, discoveryMsg{
		Topic: fmt.Sprintf("%s/sensor/%s/dbm/config", discPrefix, nodeID),
	})
	return msgs
}
