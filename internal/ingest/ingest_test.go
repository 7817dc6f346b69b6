package ingest

import (
	"log/slog"
	"os"
	"testing"

	"z2m-adapter/internal/events"
	"z2m-adapter/internal/expose"
	"z2m-adapter/internal/model"
	"z2m-adapter/internal/registry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func bulbSnapshot() []registry.DeviceInfo {
	return []registry.DeviceInfo{
		{
			IEEEAddress:        "0xAA",
			FriendlyName:       "bulb1",
			Type:               "Router",
			InterviewCompleted: true,
			Supported:          true,
			Definition: &registry.Definition{
				Exposes: []*expose.Node{
					{Type: "binary", Property: "state", Access: 7},
				},
			},
		},
	}
}

func TestHandleDevicesSnapshotEmitsDeviceUpdated(t *testing.T) {
	reg := registry.New(nil, testLogger())
	bus := events.New(testLogger())
	i := New(reg, bus, testLogger())

	var got events.DeviceUpdated
	bus.On(events.TypeDeviceUpdated, func(ev events.Event) {
		got = ev.Data.(events.DeviceUpdated)
	})

	i.HandleDevicesSnapshot(bulbSnapshot(), true)

	if got.Entry == nil {
		t.Fatal("expected device_updated event")
	}
	if len(got.Entry.Channels) == 0 {
		t.Error("expected the device_updated entry to carry its compiled channels")
	}
}

func TestHandleDevicesSnapshotReplaysBufferedState(t *testing.T) {
	reg := registry.New(nil, testLogger())
	bus := events.New(testLogger())
	i := New(reg, bus, testLogger())

	i.HandleState("bulb1", []byte(`{"state":"ON"}`))

	var got events.ChannelStateUpdated
	bus.On(events.TypeChannelStateUpdated, func(ev events.Event) {
		got = ev.Data.(events.ChannelStateUpdated)
	})

	i.HandleDevicesSnapshot(bulbSnapshot(), true)

	if got.ChannelID != "state" || got.Value != true {
		t.Errorf("replayed state = %+v, want state=true", got)
	}
}

func TestHandleStateDecodesBoundProperty(t *testing.T) {
	reg := registry.New(nil, testLogger())
	bus := events.New(testLogger())
	i := New(reg, bus, testLogger())
	i.HandleDevicesSnapshot(bulbSnapshot(), true)

	var got events.ChannelStateUpdated
	bus.On(events.TypeChannelStateUpdated, func(ev events.Event) {
		got = ev.Data.(events.ChannelStateUpdated)
	})

	i.HandleState("bulb1", []byte(`{"state":"OFF"}`))

	if got.Value != false {
		t.Errorf("value = %v, want false", got.Value)
	}
}

func TestHandleAvailabilityBareString(t *testing.T) {
	reg := registry.New(nil, testLogger())
	bus := events.New(testLogger())
	i := New(reg, bus, testLogger())
	i.HandleDevicesSnapshot(bulbSnapshot(), true)

	entry, _ := reg.Get("bulb1")
	connCh := entry.ChannelByID("connectivity")
	if connCh == nil {
		t.Fatal("expected a synthesized connectivity channel")
	}

	i.HandleAvailability("bulb1", []byte("offline"))
	if connCh.LastValue != int(model.ConnectivityDisconnected) {
		t.Errorf("connectivity = %v, want disconnected", connCh.LastValue)
	}

	i.HandleAvailability("bulb1", []byte(`{"state":"online"}`))
	if connCh.LastValue != int(model.ConnectivityConnected) {
		t.Errorf("connectivity = %v, want connected", connCh.LastValue)
	}
}

func TestHandleDevicesSnapshotRemovedDeviceEmitsDeviceRemoved(t *testing.T) {
	reg := registry.New(nil, testLogger())
	bus := events.New(testLogger())
	i := New(reg, bus, testLogger())
	i.HandleDevicesSnapshot(bulbSnapshot(), true)

	var removedID string
	bus.On(events.TypeDeviceRemoved, func(ev events.Event) {
		removedID = ev.Data.(events.DeviceRemoved).DeviceID
	})

	i.HandleDevicesSnapshot(nil, true)

	if removedID != "0xAA" {
		t.Errorf("removed id = %q, want 0xAA", removedID)
	}
}

func TestMarkSyncRequestedEmitsFullSyncCompletedOnce(t *testing.T) {
	reg := registry.New(nil, testLogger())
	bus := events.New(testLogger())
	i := New(reg, bus, testLogger())

	var completions int
	bus.On(events.TypeFullSyncCompleted, func(ev events.Event) { completions++ })

	i.MarkSyncRequested()
	i.HandleDevicesSnapshot(bulbSnapshot(), true)
	i.HandleDevicesSnapshot(bulbSnapshot(), true)

	if completions != 1 {
		t.Errorf("full_sync_completed fired %d times, want exactly 1", completions)
	}
}
