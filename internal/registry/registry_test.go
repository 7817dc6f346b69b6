package registry

import (
	"log/slog"
	"os"
	"testing"

	"z2m-adapter/internal/expose"
	"z2m-adapter/internal/store"
)

type memStore struct {
	snaps map[string]*store.DeviceSnapshot
}

func newMemStore() *memStore {
	return &memStore{snaps: make(map[string]*store.DeviceSnapshot)}
}

func (m *memStore) SaveDeviceSnapshot(s *store.DeviceSnapshot) error {
	cp := *s
	m.snaps[s.ExternalID] = &cp
	return nil
}

func (m *memStore) GetDeviceSnapshot(externalID string) (*store.DeviceSnapshot, error) {
	s, ok := m.snaps[externalID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s, nil
}

func (m *memStore) DeleteDeviceSnapshot(externalID string) error {
	delete(m.snaps, externalID)
	return nil
}

func (m *memStore) ListDeviceSnapshots() ([]*store.DeviceSnapshot, error) {
	out := make([]*store.DeviceSnapshot, 0, len(m.snaps))
	for _, s := range m.snaps {
		out = append(out, s)
	}
	return out, nil
}

func (m *memStore) Close() error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func lightInfo(ieee, name string) DeviceInfo {
	return DeviceInfo{
		IEEEAddress:        ieee,
		FriendlyName:       name,
		Type:               "EndDevice",
		InterviewCompleted: true,
		Supported:          true,
		Definition: &Definition{
			Exposes: []*expose.Node{},
		},
	}
}

func TestApplyDevicesFullSnapshotRemovesMissing(t *testing.T) {
	r := New(newMemStore(), testLogger())

	r.ApplyDevices([]DeviceInfo{
		lightInfo("0x1", "lamp"),
		lightInfo("0x2", "switch"),
	}, true)

	if _, ok := r.Get("lamp"); !ok {
		t.Fatal("expected lamp to be registered")
	}

	_, removed := r.ApplyDevices([]DeviceInfo{lightInfo("0x1", "lamp")}, true)
	if len(removed) != 1 || removed[0] != "0x2" {
		t.Errorf("removed = %v, want [0x2]", removed)
	}
	if _, ok := r.Get("switch"); ok {
		t.Error("expected switch to be removed from the registry")
	}
}

func TestApplyDevicesAdditiveDoesNotRemove(t *testing.T) {
	r := New(newMemStore(), testLogger())
	r.ApplyDevices([]DeviceInfo{lightInfo("0x1", "lamp"), lightInfo("0x2", "switch")}, true)

	_, removed := r.ApplyDevices([]DeviceInfo{lightInfo("0x1", "lamp")}, false)
	if len(removed) != 0 {
		t.Errorf("additive ingest should not remove entries, got %v", removed)
	}
	if _, ok := r.Get("switch"); !ok {
		t.Error("switch should still be registered after an additive ingest")
	}
}

func TestApplyDevicesUnsupportedRemovesExisting(t *testing.T) {
	r := New(newMemStore(), testLogger())
	r.ApplyDevices([]DeviceInfo{lightInfo("0x1", "lamp")}, true)

	info := lightInfo("0x1", "lamp")
	info.Supported = false
	_, removed := r.ApplyDevices([]DeviceInfo{info}, false)
	if len(removed) != 1 {
		t.Fatalf("expected removal on unsupported device, got %v", removed)
	}
	if _, ok := r.Get("lamp"); ok {
		t.Error("expected lamp to be removed once unsupported")
	}
}

func TestApplyDevicesRenameMigratesEntry(t *testing.T) {
	r := New(newMemStore(), testLogger())
	r.ApplyDevices([]DeviceInfo{lightInfo("0x1", "old_name")}, true)
	r.BufferStatePayload("old_name", map[string]any{"state": "ON"})

	r.ApplyDevices([]DeviceInfo{lightInfo("0x1", "new_name")}, true)

	if _, ok := r.Get("old_name"); ok {
		t.Error("old mqtt id should no longer resolve")
	}
	entry, ok := r.Get("new_name")
	if !ok {
		t.Fatal("expected entry under new mqtt id")
	}
	if entry.Device.ID != "0x1" {
		t.Errorf("external id changed across rename: %q", entry.Device.ID)
	}

	pending := r.DrainPendingStatePayloads("new_name")
	if len(pending) != 1 {
		t.Errorf("expected buffered state payload to migrate with the rename, got %d", len(pending))
	}
}

func TestApplyBridgeInfoBuffersUntilCoordinatorKnown(t *testing.T) {
	r := New(newMemStore(), testLogger())
	r.ApplyBridgeInfo(map[string]any{
		"coordinator": map[string]any{
			"meta": map[string]any{"manufacturer": "zstack", "model": "cc2652"},
		},
	})

	coord := lightInfo("0xcoord", "Coordinator")
	coord.Type = "Coordinator"
	r.ApplyDevices([]DeviceInfo{coord}, true)

	entry, ok := r.Get("Coordinator")
	if !ok {
		t.Fatal("expected coordinator entry")
	}
	if entry.Device.Manufacturer != "zstack" {
		t.Errorf("manufacturer = %q, want zstack (buffered bridge/info should apply on arrival)", entry.Device.Manufacturer)
	}
}
