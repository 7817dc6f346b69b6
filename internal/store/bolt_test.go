package store

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := NewBoltStore(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGetDeviceSnapshot(t *testing.T) {
	s := newTestStore(t)

	snap := &DeviceSnapshot{
		ExternalID: "00158D00012A3B4C",
		MqttID:     "kitchen_sensor",
		EnumMaps: map[string]map[string]int{
			"mode": {"off": 1, "auto": 2},
		},
		UpdatedAt: time.Now().Truncate(time.Millisecond),
	}

	if err := s.SaveDeviceSnapshot(snap); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetDeviceSnapshot(snap.ExternalID)
	if err != nil {
		t.Fatal(err)
	}
	if got.MqttID != snap.MqttID {
		t.Errorf("mqtt_id = %q, want %q", got.MqttID, snap.MqttID)
	}
	if got.EnumMaps["mode"]["auto"] != 2 {
		t.Errorf("enum_maps[mode][auto] = %d, want 2", got.EnumMaps["mode"]["auto"])
	}
}

func TestDeleteDeviceSnapshot(t *testing.T) {
	s := newTestStore(t)

	snap := &DeviceSnapshot{ExternalID: "00158D00012A3B4C", MqttID: "kitchen_sensor"}
	if err := s.SaveDeviceSnapshot(snap); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteDeviceSnapshot(snap.ExternalID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetDeviceSnapshot(snap.ExternalID); err == nil {
		t.Fatal("expected error after delete, got nil")
	}
}

func TestListDeviceSnapshots(t *testing.T) {
	s := newTestStore(t)

	snaps := []*DeviceSnapshot{
		{ExternalID: "0000000000000001", MqttID: "a"},
		{ExternalID: "0000000000000002", MqttID: "b"},
		{ExternalID: "0000000000000003", MqttID: "c"},
	}
	for _, snap := range snaps {
		if err := s.SaveDeviceSnapshot(snap); err != nil {
			t.Fatal(err)
		}
	}

	list, err := s.ListDeviceSnapshots()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("list count = %d, want 3", len(list))
	}

	found := make(map[string]bool)
	for _, snap := range list {
		found[snap.ExternalID] = true
	}
	for _, snap := range snaps {
		if !found[snap.ExternalID] {
			t.Errorf("snapshot %s not in list", snap.ExternalID)
		}
	}
}

func TestGetDeviceSnapshotNotFound(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.GetDeviceSnapshot("FFFFFFFFFFFFFFFF"); err == nil {
		t.Fatal("expected error, got nil")
	}
}
