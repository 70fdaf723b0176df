package gateway

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"enocean-go-home/internal/eep"
	"enocean-go-home/internal/store"
)

// Config holds gateway configuration.
type Config struct {
	// AutoAdd registers devices the first time a telegram with a supported
	// profile arrives from an unknown chip id.
	AutoAdd bool
}

// Transmitter hands encoded telegrams to whatever carries them to the radio.
type Transmitter interface {
	Transmit(ctx context.Context, chipID string, raw []byte) error
}

// Gateway ties the telegram codec and profile dispatcher to device state.
type Gateway struct {
	store      store.Store
	dispatcher *eep.Dispatcher
	deviceDB   *DeviceDB
	events     *EventBus
	devices    *DeviceManager
	logger     *slog.Logger
	config     Config

	txMu sync.RWMutex
	tx   Transmitter

	now    func() time.Time
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a gateway. deviceDB may be nil.
func New(st store.Store, dispatcher *eep.Dispatcher, deviceDB *DeviceDB, events *EventBus, cfg Config, logger *slog.Logger) *Gateway {
	if deviceDB == nil {
		deviceDB = NewDeviceDB()
	}
	ctx, cancel := context.WithCancel(context.Background())
	g := &Gateway{
		store:      st,
		dispatcher: dispatcher,
		deviceDB:   deviceDB,
		events:     events,
		logger:     logger,
		config:     cfg,
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
	}
	g.devices = NewDeviceManager(g)
	return g
}

// Start writes configured device identities into the store.
func (g *Gateway) Start() error {
	added, err := g.deviceDB.Seed(g.store, g.now())
	if err != nil {
		return err
	}
	g.logger.Info("gateway started",
		"configured", g.deviceDB.Len(), "added", added,
		"auto_add", g.config.AutoAdd,
		"rocker_mapping", g.dispatcher.RockerMapping().String())
	return nil
}

// Stop cancels the gateway context.
func (g *Gateway) Stop() {
	g.cancel()
}

// Context returns the gateway's context, which is cancelled on Stop().
func (g *Gateway) Context() context.Context {
	return g.ctx
}

// SetTransmitter installs the outgoing telegram carrier.
func (g *Gateway) SetTransmitter(tx Transmitter) {
	g.txMu.Lock()
	g.tx = tx
	g.txMu.Unlock()
}

func (g *Gateway) transmitter() Transmitter {
	g.txMu.RLock()
	defer g.txMu.RUnlock()
	return g.tx
}

// Store returns the store.
func (g *Gateway) Store() store.Store {
	return g.store
}

// Dispatcher returns the profile dispatcher.
func (g *Gateway) Dispatcher() *eep.Dispatcher {
	return g.dispatcher
}

// DeviceDB returns the configured device definitions.
func (g *Gateway) DeviceDB() *DeviceDB {
	return g.deviceDB
}

// Events returns the event bus.
func (g *Gateway) Events() *EventBus {
	return g.events
}

// Devices returns the device manager.
func (g *Gateway) Devices() *DeviceManager {
	return g.devices
}

// Info reports gateway settings for the API.
func (g *Gateway) Info() map[string]interface{} {
	profiles := make([]string, 0)
	for _, p := range g.dispatcher.Profiles() {
		profiles = append(profiles, p.Key.String())
	}
	return map[string]interface{}{
		"auto_add":       g.config.AutoAdd,
		"rocker_mapping": g.dispatcher.RockerMapping().String(),
		"profiles":       profiles,
		"transmitter":    g.transmitter() != nil,
	}
}
