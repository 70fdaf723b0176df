//go:build !no_influxdb

package history

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"enocean-go-home/internal/gateway"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second
)

// pointWriter is the subset of api.WriteAPI the recorder uses.
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// Recorder writes channel updates to InfluxDB.
// Writes are non-blocking and batched by the client library.
type Recorder struct {
	client influxdb2.Client
	writer pointWriter
	logger *slog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	connected bool
	unsub     func()
}

// Connect creates the client, pings the server and prepares the batching write API.
func Connect(cfg Config, logger *slog.Logger) (*Recorder, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(cfg.batchSize()).
			SetFlushInterval(cfg.flushInterval()),
	)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	r := newRecorder(writeAPI, logger)
	r.client = client
	go r.logWriteErrors(writeAPI)

	logger.Info("influxdb history connected", "url", cfg.URL, "bucket", cfg.Bucket)
	return r, nil
}

func newRecorder(w pointWriter, logger *slog.Logger) *Recorder {
	return &Recorder{
		writer:    w,
		logger:    logger,
		now:       time.Now,
		connected: true,
	}
}

func (r *Recorder) logWriteErrors(w api.WriteAPI) {
	for err := range w.Errors() {
		r.logger.Warn("influxdb write", "err", err)
	}
}

// Attach subscribes the recorder to channel updates on the bus.
func (r *Recorder) Attach(bus *gateway.EventBus) {
	unsub := bus.On(gateway.EventChannelUpdate, r.Record)
	r.mu.Lock()
	r.unsub = unsub
	r.mu.Unlock()
}

// Record writes one event. Events that do not describe a channel value are ignored.
func (r *Recorder) Record(ev gateway.Event) {
	p := pointFromEvent(ev, r.now())
	if p == nil {
		return
	}
	// Held across the write so Close cannot flush and close the client mid-write.
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.connected {
		return
	}
	r.writer.WritePoint(p)
}

// IsConnected reports whether the recorder still accepts writes.
func (r *Recorder) IsConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connected
}

// HealthCheck pings the server.
func (r *Recorder) HealthCheck(ctx context.Context) error {
	if !r.IsConnected() || r.client == nil {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	healthy, err := r.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check: server not healthy")
	}
	return nil
}

// Close unsubscribes from the bus, flushes pending points and closes the client.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.connected {
		r.mu.Unlock()
		return
	}
	r.connected = false
	unsub := r.unsub
	r.unsub = nil
	r.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	r.writer.Flush()
	if r.client != nil {
		r.client.Close()
	}
}
