package registry

import (
	"log/slog"
	"sync"
	"time"

	"z2m-adapter/internal/expose"
	"z2m-adapter/internal/model"
	"z2m-adapter/internal/store"
)

// Registry holds every known device, keyed by its current MQTT friendly
// name, plus the index needed to resolve a stable external id across a
// rename and the buffer for state payloads that race the device's
// definition (§4.C).
type Registry struct {
	mu sync.RWMutex

	byMqttID       map[string]*model.DeviceEntry
	mqttByExternal map[string]string

	pendingStatePayloads map[string][]map[string]any

	coordinatorExternalID string
	bufferedBridgeInfo    map[string]any

	store  store.Store
	logger *slog.Logger
}

// New creates an empty Registry backed by store for persistence. store may
// be nil, in which case the index/enum-map persistence is skipped (tests).
func New(st store.Store, logger *slog.Logger) *Registry {
	return &Registry{
		byMqttID:             make(map[string]*model.DeviceEntry),
		mqttByExternal:       make(map[string]string),
		pendingStatePayloads: make(map[string][]map[string]any),
		store:                st,
		logger:               logger,
	}
}

// Load rebuilds mqttByExternal from the persisted snapshots so enum
// assignments and renames survive a restart, before the first
// bridge/devices snapshot has arrived. Device entries themselves are not
// recreated here; there is nothing to compile until Z2M sends exposes.
func (r *Registry) Load() error {
	if r.store == nil {
		return nil
	}
	snaps, err := r.store.ListDeviceSnapshots()
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, snap := range snaps {
		r.mqttByExternal[snap.ExternalID] = snap.MqttID
		if snap.IsCoordinator {
			r.coordinatorExternalID = snap.ExternalID
		}
	}
	return nil
}

func (r *Registry) persistedEnumMaps(externalID string) map[string]map[string]int {
	if r.store == nil {
		return nil
	}
	snap, err := r.store.GetDeviceSnapshot(externalID)
	if err != nil {
		return nil
	}
	return snap.EnumMaps
}

func (r *Registry) persist(externalID string, entry *model.DeviceEntry) {
	if r.store == nil {
		return
	}
	enumMaps := make(map[string]map[string]int)
	for _, b := range entry.BindingsByChannel {
		if b.DataType == model.DataTypeEnum && b.Property != "" {
			enumMaps[b.Property] = b.EnumRawToValue
		}
	}
	snap := &store.DeviceSnapshot{
		ExternalID:    externalID,
		MqttID:        entry.MqttID,
		IsCoordinator: entry.IsCoordinator,
		EnumMaps:      enumMaps,
		UpdatedAt:     time.Now(),
	}
	if err := r.store.SaveDeviceSnapshot(snap); err != nil {
		r.logger.Error("persist device snapshot", "external_id", externalID, "err", err)
	}
}

// ApplyDevices ingests a bridge/devices (fullSnapshot=true) or
// bridge/response/devices (fullSnapshot=false) payload. It returns the
// entries added or updated, and the external ids of entries removed.
func (r *Registry) ApplyDevices(infos []DeviceInfo, fullSnapshot bool) (upserted []*model.DeviceEntry, removed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seenMqttIDs := make(map[string]bool, len(infos))

	for _, info := range infos {
		seenMqttIDs[info.FriendlyName] = true
		externalID := info.externalID()

		if !info.InterviewCompleted || !info.Supported {
			if oldMqttID, ok := r.mqttByExternal[externalID]; ok {
				delete(r.byMqttID, oldMqttID)
				delete(r.mqttByExternal, externalID)
				delete(r.pendingStatePayloads, oldMqttID)
				removed = append(removed, externalID)
				if r.store != nil {
					_ = r.store.DeleteDeviceSnapshot(externalID)
				}
			}
			continue
		}

		r.upsertLocked(info, externalID)
		upserted = append(upserted, r.byMqttID[info.FriendlyName])
	}

	if fullSnapshot {
		for externalID, mqttID := range r.mqttByExternal {
			if seenMqttIDs[mqttID] {
				continue
			}
			delete(r.byMqttID, mqttID)
			delete(r.mqttByExternal, externalID)
			delete(r.pendingStatePayloads, mqttID)
			removed = append(removed, externalID)
			if r.store != nil {
				_ = r.store.DeleteDeviceSnapshot(externalID)
			}
		}
	}

	return upserted, removed
}

// upsertLocked builds or rebuilds a single entry and performs rename
// migration when the external id is already mapped to a different mqtt id.
// Caller must hold r.mu.
func (r *Registry) upsertLocked(info DeviceInfo, externalID string) {
	if oldMqttID, ok := r.mqttByExternal[externalID]; ok && oldMqttID != info.FriendlyName {
		if oldEntry, ok := r.byMqttID[oldMqttID]; ok {
			delete(r.byMqttID, oldMqttID)
			r.pendingStatePayloads[info.FriendlyName] = append(
				r.pendingStatePayloads[info.FriendlyName],
				r.pendingStatePayloads[oldMqttID]...,
			)
			delete(r.pendingStatePayloads, oldMqttID)
			oldEntry.MqttID = info.FriendlyName
		}
	}

	isCoordinator := info.isCoordinator()
	compiled := expose.Compile(info.exposes(), isCoordinator, r.persistedEnumMaps(externalID))

	entry := &model.DeviceEntry{
		Device: model.Device{
			ID:           externalID,
			Name:         info.FriendlyName,
			Class:        compiled.Class,
			Manufacturer: info.Manufacturer,
			Model:        info.ModelID,
			Meta: map[string]any{
				"friendly_name": info.FriendlyName,
				"ieee_address":  info.IEEEAddress,
				"type":          info.Type,
				"model_id":      info.ModelID,
				"power_source":  info.PowerSource,
			},
		},
		MqttID:            info.FriendlyName,
		Channels:          compiled.Channels,
		BindingsByChannel: compiled.BindingsByChannel,
		ChannelByProperty: compiled.ChannelByProperty,
		IsCoordinator:     isCoordinator,
	}

	r.byMqttID[info.FriendlyName] = entry
	r.mqttByExternal[externalID] = info.FriendlyName

	if isCoordinator {
		r.coordinatorExternalID = externalID
		if r.bufferedBridgeInfo != nil {
			applyBridgeInfoToEntry(entry, r.bufferedBridgeInfo)
		}
	}

	r.persist(externalID, entry)
}

// ApplyBridgeInfo applies a bridge/info payload to the coordinator entry,
// buffering it if the coordinator has not arrived yet (§4.C).
func (r *Registry) ApplyBridgeInfo(payload map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bufferedBridgeInfo = payload
	if r.coordinatorExternalID == "" {
		return
	}
	mqttID, ok := r.mqttByExternal[r.coordinatorExternalID]
	if !ok {
		return
	}
	entry, ok := r.byMqttID[mqttID]
	if !ok {
		return
	}
	applyBridgeInfoToEntry(entry, payload)
	r.persist(r.coordinatorExternalID, entry)
}

func applyBridgeInfoToEntry(entry *model.DeviceEntry, payload map[string]any) {
	entry.Device.Class = model.DeviceGateway
	if coordMeta, ok := payload["coordinator"].(map[string]any); ok {
		if meta, ok := coordMeta["meta"].(map[string]any); ok {
			if v, ok := meta["manufacturer"].(string); ok {
				entry.Device.Manufacturer = v
			}
			if v, ok := meta["model"].(string); ok {
				entry.Device.Model = v
			}
			if v, ok := meta["firmware"].(string); ok {
				entry.Device.Firmware = v
			}
		}
	}
}

// Get resolves the entry currently registered under mqttID.
func (r *Registry) Get(mqttID string) (*model.DeviceEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byMqttID[mqttID]
	return e, ok
}

// GetByExternalID resolves the entry for a stable external device id.
func (r *Registry) GetByExternalID(externalID string) (*model.DeviceEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mqttID, ok := r.mqttByExternal[externalID]
	if !ok {
		return nil, false
	}
	e, ok := r.byMqttID[mqttID]
	return e, ok
}

// List returns a snapshot of every known device entry.
func (r *Registry) List() []*model.DeviceEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.DeviceEntry, 0, len(r.byMqttID))
	for _, e := range r.byMqttID {
		out = append(out, e)
	}
	return out
}

// BufferStatePayload stashes a decoded state payload for a device whose
// definition has not arrived yet.
func (r *Registry) BufferStatePayload(mqttID string, payload map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendingStatePayloads[mqttID] = append(r.pendingStatePayloads[mqttID], payload)
}

// DrainPendingStatePayloads returns and clears any state payloads buffered
// for mqttID, to be replayed once its device entry exists.
func (r *Registry) DrainPendingStatePayloads(mqttID string) []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	payloads := r.pendingStatePayloads[mqttID]
	delete(r.pendingStatePayloads, mqttID)
	return payloads
}

// RenameMqttID updates the mqtt id an external device is known under,
// outside of a bridge/devices ingest (used by the pending-rename tracker
// on a confirmed rename completion, §4.G).
func (r *Registry) RenameMqttID(externalID, newMqttID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	oldMqttID, ok := r.mqttByExternal[externalID]
	if !ok || oldMqttID == newMqttID {
		return
	}
	entry, ok := r.byMqttID[oldMqttID]
	if !ok {
		return
	}
	delete(r.byMqttID, oldMqttID)
	entry.MqttID = newMqttID
	r.byMqttID[newMqttID] = entry
	r.mqttByExternal[externalID] = newMqttID
	r.pendingStatePayloads[newMqttID] = append(r.pendingStatePayloads[newMqttID], r.pendingStatePayloads[oldMqttID]...)
	delete(r.pendingStatePayloads, oldMqttID)
	r.persist(externalID, entry)
}
