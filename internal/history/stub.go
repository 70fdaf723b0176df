//go:build no_influxdb

package history

import (
	"log/slog"

	"enocean-go-home/internal/gateway"
)

// Recorder is a no-op when built without InfluxDB support.
type Recorder struct{}

func Connect(_ Config, _ *slog.Logger) (*Recorder, error) { return nil, ErrDisabled }

func (r *Recorder) Attach(_ *gateway.EventBus) {}

func (r *Recorder) Record(_ gateway.Event) {}

func (r *Recorder) IsConnected() bool { return false }

func (r *Recorder) Close() {}
