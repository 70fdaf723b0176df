//go:build !no_influxdb

package history

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"enocean-go-home/internal/gateway"
)

// Measurement is the InfluxDB measurement every channel update is written to.
const Measurement = "enocean_channel"

// pointFromEvent converts a channel_update event into a point.
// Returns nil for events that carry no usable chip id, channel or value.
func pointFromEvent(ev gateway.Event, ts time.Time) *write.Point {
	if ev.Type != gateway.EventChannelUpdate {
		return nil
	}
	data, ok := ev.Data.(map[string]interface{})
	if !ok {
		return nil
	}
	chip, _ := data["chip_id"].(string)
	channel, _ := data["channel"].(string)
	if chip == "" || channel == "" {
		return nil
	}

	tags := map[string]string{
		"chip_id": chip,
		"channel": channel,
	}
	if profile, _ := data["profile"].(string); profile != "" {
		tags["profile"] = profile
	}

	var fields map[string]interface{}
	switch v := data["value"].(type) {
	case float64:
		fields = map[string]interface{}{"value": v}
	case string:
		fields = map[string]interface{}{"state": v}
	default:
		return nil
	}

	return write.NewPoint(Measurement, tags, fields, ts)
}
