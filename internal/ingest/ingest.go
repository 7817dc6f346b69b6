// Package ingest turns Z2M's decoded JSON state/availability payloads into
// canonical channel_state_updated events (§4.E), and carries the bookkeeping
// for out-of-order payload buffering and full-sync completion signaling.
package ingest

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"z2m-adapter/internal/codec"
	"z2m-adapter/internal/events"
	"z2m-adapter/internal/model"
	"z2m-adapter/internal/registry"
)

// Ingest decodes property values and republishes them as canonical events.
type Ingest struct {
	registry *registry.Registry
	bus      *events.Bus
	logger   *slog.Logger

	mu          sync.Mutex
	syncPending bool
}

// New builds an Ingest wired to reg and bus.
func New(reg *registry.Registry, bus *events.Bus, logger *slog.Logger) *Ingest {
	return &Ingest{registry: reg, bus: bus, logger: logger.With("component", "ingest")}
}

// MarkSyncRequested records that a full device sync has been requested, so
// the next devices snapshot ingest emits full_sync_completed (§9 decision 4).
func (i *Ingest) MarkSyncRequested() {
	i.mu.Lock()
	i.syncPending = true
	i.mu.Unlock()
}

// HandleDevicesSnapshot applies a bridge/devices (fullSnapshot=true) or
// bridge/response/devices (fullSnapshot=false) payload to the registry,
// replays any buffered state for newly known devices, and emits the
// resulting device/channel events.
func (i *Ingest) HandleDevicesSnapshot(infos []registry.DeviceInfo, fullSnapshot bool) {
	upserted, removed := i.registry.ApplyDevices(infos, fullSnapshot)

	for _, externalID := range removed {
		i.bus.Emit(events.Event{Type: events.TypeDeviceRemoved, Data: events.DeviceRemoved{DeviceID: externalID}})
	}
	for _, entry := range upserted {
		i.bus.Emit(events.Event{Type: events.TypeDeviceUpdated, Data: events.DeviceUpdated{Entry: entry}})
		for _, payload := range i.registry.DrainPendingStatePayloads(entry.MqttID) {
			i.applyStatePayload(entry, payload)
		}
	}

	i.mu.Lock()
	wasPending := i.syncPending
	i.syncPending = false
	i.mu.Unlock()
	if wasPending {
		i.bus.Emit(events.Event{Type: events.TypeFullSyncCompleted, Data: events.FullSyncCompleted{}})
	}
}

// HandleBridgeHealth patches adapter meta from a bridge/health payload.
func (i *Ingest) HandleBridgeHealth(health map[string]any) {
	i.bus.Emit(events.Event{Type: events.TypeAdapterMetaUpdated, Data: events.AdapterMetaUpdated{Meta: health}})
}

// HandleAvailability processes a <dev>/availability message, accepting
// either a bare "online"/"offline" string or {"state": "..."}.
func (i *Ingest) HandleAvailability(mqttID string, payload []byte) {
	entry, ok := i.registry.Get(mqttID)
	if !ok {
		return
	}
	raw := strings.TrimSpace(string(payload))
	raw = strings.Trim(raw, `"`)
	online := strings.EqualFold(raw, "online")
	if !strings.EqualFold(raw, "online") && !strings.EqualFold(raw, "offline") {
		var obj map[string]any
		if err := json.Unmarshal(payload, &obj); err == nil {
			if v, ok := obj["state"].(string); ok {
				online = strings.EqualFold(v, "online")
			}
		}
	}
	i.setConnectivity(entry, online)
}

// HandleState processes a leaf <dev> state payload.
func (i *Ingest) HandleState(mqttID string, payload []byte) {
	var state map[string]any
	if err := json.Unmarshal(payload, &state); err != nil {
		i.logger.Warn("invalid state payload", "mqtt_id", mqttID, "err", err)
		return
	}

	entry, ok := i.registry.Get(mqttID)
	if !ok {
		i.registry.BufferStatePayload(mqttID, state)
		return
	}
	i.applyStatePayload(entry, state)
}

func (i *Ingest) applyStatePayload(entry *model.DeviceEntry, state map[string]any) {
	nowMs := time.Now().UnixMilli()

	// A payload with no availability or last_seen hint marks the device
	// Connected; this is emitted before the property values.
	_, hasAvailability := state["availability"].(string)
	_, hasLastSeen := state["last_seen"]
	if !hasAvailability && !hasLastSeen && len(state) > 0 {
		i.setConnectivity(entry, true)
	}

	for property, raw := range state {
		switch property {
		case "update":
			i.handleUpdateMeta(entry, raw, nowMs)
			continue
		case "last_seen":
			i.handleLastSeen(entry, raw, nowMs)
			continue
		case "availability":
			if s, ok := raw.(string); ok {
				i.setConnectivity(entry, strings.EqualFold(s, "online"))
			}
			continue
		}

		binding := entry.BindingByProperty(property)
		if binding == nil || raw == nil {
			continue
		}
		value, err := codec.DecodeValue(binding, raw)
		if err != nil {
			i.logger.Warn("decode failed", "device", entry.Device.ID, "property", property, "err", err)
			continue
		}
		i.publishChannelValue(entry, binding, value, nowMs)
	}
}

func (i *Ingest) handleUpdateMeta(entry *model.DeviceEntry, raw any, nowMs int64) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return
	}
	entry.Device.Meta["update"] = obj

	ch := entry.ChannelByID("device_software_update")
	if ch == nil {
		return
	}
	statusRaw, _ := obj["state"].(string)
	value := map[string]any{
		"status":         statusRaw,
		"currentVersion": obj["installed_version"],
		"targetVersion":  obj["latest_version"],
	}
	ch.LastValue, ch.HasValue, ch.LastUpdateMs = value, true, nowMs
	i.bus.Emit(events.Event{
		Type: events.TypeChannelStateUpdated,
		Data: events.ChannelStateUpdated{DeviceID: entry.Device.ID, ChannelID: ch.ID, Value: value, TsMs: nowMs},
	})
}

func (i *Ingest) handleLastSeen(entry *model.DeviceEntry, raw any, nowMs int64) {
	var seenMs int64
	switch v := raw.(type) {
	case float64:
		if v > 1e12 {
			seenMs = int64(v)
		} else {
			seenMs = int64(v * 1000)
		}
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			seenMs = t.UnixMilli()
		}
	}
	if seenMs == 0 {
		return
	}
	entry.Device.Meta["last_seen"] = seenMs
	online := nowMs-seenMs <= 5*time.Minute.Milliseconds()
	i.setConnectivity(entry, online)
}

func (i *Ingest) setConnectivity(entry *model.DeviceEntry, online bool) {
	ch := entry.ChannelByID("connectivity")
	if ch == nil {
		return
	}
	status := model.ConnectivityDisconnected
	if online {
		status = model.ConnectivityConnected
	}
	nowMs := time.Now().UnixMilli()
	ch.LastValue, ch.HasValue, ch.LastUpdateMs = int(status), true, nowMs
	i.bus.Emit(events.Event{
		Type: events.TypeChannelStateUpdated,
		Data: events.ChannelStateUpdated{DeviceID: entry.Device.ID, ChannelID: ch.ID, Value: int(status), TsMs: nowMs},
	})
}

func (i *Ingest) publishChannelValue(entry *model.DeviceEntry, binding *model.Binding, value any, nowMs int64) {
	channelID, ok := entry.ChannelByProperty[binding.Property]
	if !ok {
		return
	}
	ch := entry.ChannelByID(channelID)
	if ch == nil {
		return
	}
	ch.LastValue, ch.HasValue, ch.LastUpdateMs = value, true, nowMs
	i.bus.Emit(events.Event{
		Type: events.TypeChannelStateUpdated,
		Data: events.ChannelStateUpdated{DeviceID: entry.Device.ID, ChannelID: ch.ID, Value: value, TsMs: nowMs},
	})
}
