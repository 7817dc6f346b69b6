// Package adapter wires together the device registry, message router,
// state ingest, command pipeline, pending-request tracker, and the MQTT
// session into the single object the host runtime drives: start, stop,
// and the handful of host-facing methods (§5/§6).
package adapter

import (
	"fmt"
	"log/slog"
	"sync"

	"z2m-adapter/internal/command"
	"z2m-adapter/internal/events"
	"z2m-adapter/internal/ingest"
	"z2m-adapter/internal/model"
	"z2m-adapter/internal/mqttconn"
	"z2m-adapter/internal/pending"
	"z2m-adapter/internal/registry"
	"z2m-adapter/internal/router"
	"z2m-adapter/internal/store"
)

// Config holds the parameters needed to build an Adapter. It is a plain
// struct rather than internal/config.Config so this package does not
// depend on the yaml file shape.
type Config struct {
	Mqtt      mqttconn.Config
	StorePath string
}

// Adapter is the top-level object the host runtime starts, stops, and
// issues commands against.
type Adapter struct {
	logger *slog.Logger
	bus    *events.Bus

	store    store.Store
	registry *registry.Registry
	ingest   *ingest.Ingest
	conn     *mqttconn.Conn
	router   *router.Router
	cmd      *command.Pipeline
	pending  *pending.Tracker

	baseTopic string

	mu   sync.Mutex
	meta map[string]any
}

// New builds an Adapter, opening the bbolt store and loading any persisted
// registry state. It does not connect to MQTT; call Start for that.
func New(cfg Config, logger *slog.Logger) (*Adapter, error) {
	st, err := store.NewBoltStore(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	bus := events.New(logger)
	reg := registry.New(st, logger)
	if err := reg.Load(); err != nil {
		st.Close()
		return nil, fmt.Errorf("load registry: %w", err)
	}

	conn := mqttconn.New(cfg.Mqtt, logger, bus)
	ing := ingest.New(reg, bus, logger)
	cmd := command.New(reg, conn, bus, cfg.Mqtt.BaseTopic, logger)
	pend := pending.New(reg, conn, bus, cfg.Mqtt.BaseTopic, logger)
	rtr := router.New(cfg.Mqtt.BaseTopic, reg, ing, pend, conn, logger)
	conn.SetMessageHandler(rtr.Route)

	a := &Adapter{
		logger:    logger.With("component", "adapter"),
		bus:       bus,
		store:     st,
		registry:  reg,
		ingest:    ing,
		conn:      conn,
		router:    rtr,
		cmd:       cmd,
		pending:   pend,
		baseTopic: cfg.Mqtt.BaseTopic,
		meta:      make(map[string]any),
	}
	return a, nil
}

// Events returns the bus the host subscribes to for every host-facing
// notification.
func (a *Adapter) Events() *events.Bus {
	return a.bus
}

// Start connects to the MQTT broker. Configuration errors (missing host,
// etc.) are caught earlier by config.Load; a connect failure here enters
// the reconnect loop rather than failing Start, per §7's error taxonomy.
func (a *Adapter) Start() {
	a.logger.Info("starting")
	a.conn.Start()
}

// Stop disconnects, cancels every in-flight timer, and closes the store.
func (a *Adapter) Stop() {
	a.logger.Info("stopping")
	a.conn.Stop()
	a.cmd.Stop()
	a.pending.Stop()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close store", "err", err)
	}
}

// RequestFullSync marks a sync outstanding (so the next devices snapshot
// emits full_sync_completed) and solicits one from Z2M.
func (a *Adapter) RequestFullSync() {
	a.ingest.MarkSyncRequested()
	if err := a.conn.Publish(a.baseTopic+"/bridge/request/devices", []byte("{}"), false); err != nil {
		a.logger.Warn("request full sync publish failed", "err", err)
	}
}

// UpdateChannelState implements the update_channel_state host method.
func (a *Adapter) UpdateChannelState(externalID, channelID string, value any, cmdID model.CmdID) model.CmdResponse {
	return a.cmd.UpdateChannelState(externalID, channelID, value, cmdID)
}

// UpdateDeviceName implements the update_device_name host method.
func (a *Adapter) UpdateDeviceName(externalID, newName string, cmdID model.CmdID) model.CmdResponse {
	return a.pending.UpdateDeviceName(externalID, newName, cmdID)
}

// InvokeAdapterAction implements the invoke_adapter_action host method.
func (a *Adapter) InvokeAdapterAction(action string, params map[string]any, cmdID model.CmdID) model.ActionResponse {
	return a.pending.InvokeAdapterAction(action, params, cmdID)
}

// AdapterConfigUpdated implements the adapter_config_updated host method.
// Only the opaque meta keys (bridge_info, health, permit_join, log_level)
// are live-updatable; baseTopic/retryIntervalMs require a restart to take
// effect since the MQTT session is already built from them.
func (a *Adapter) AdapterConfigUpdated(meta map[string]any) {
	a.mu.Lock()
	for k, v := range meta {
		a.meta[k] = v
	}
	snapshot := make(map[string]any, len(a.meta))
	for k, v := range a.meta {
		snapshot[k] = v
	}
	a.mu.Unlock()

	if _, ok := meta["baseTopic"]; ok {
		a.logger.Warn("baseTopic change requires restart to take effect")
	}
	if _, ok := meta["retryIntervalMs"]; ok {
		a.logger.Warn("retryIntervalMs change requires restart to take effect")
	}

	a.bus.Emit(events.Event{Type: events.TypeAdapterMetaUpdated, Data: events.AdapterMetaUpdated{Meta: snapshot}})
}

// Devices returns a snapshot of every known device entry, used by the
// introspection surface.
func (a *Adapter) Devices() []*model.DeviceEntry {
	return a.registry.List()
}

// Device resolves a single device entry by its stable external id.
func (a *Adapter) Device(externalID string) (*model.DeviceEntry, bool) {
	return a.registry.GetByExternalID(externalID)
}

// Connected reports whether the adapter currently has a live Z2M session.
func (a *Adapter) Connected() bool {
	return a.conn.Connected()
}
