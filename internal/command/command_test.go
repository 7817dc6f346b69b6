package command

import (
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"z2m-adapter/internal/events"
	"z2m-adapter/internal/expose"
	"z2m-adapter/internal/model"
	"z2m-adapter/internal/registry"
)

type publishedMsg struct {
	topic    string
	payload  []byte
	retained bool
}

type fakePublisher struct {
	connected bool
	published []publishedMsg
	failWith  error
}

func (f *fakePublisher) Connected() bool { return f.connected }

func (f *fakePublisher) Publish(topic string, payload []byte, retained bool) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.published = append(f.published, publishedMsg{topic, payload, retained})
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func access(state, set bool) int {
	a := 0
	if state {
		a |= 1
	}
	if set {
		a |= 2
	}
	return a
}

func newBulbRegistry() *registry.Registry {
	r := registry.New(nil, testLogger())
	r.ApplyDevices([]registry.DeviceInfo{
		{
			IEEEAddress:        "0x00:ieee",
			FriendlyName:       "bulb1",
			Type:               "Router",
			InterviewCompleted: true,
			Supported:          true,
			Definition: &registry.Definition{
				Exposes: []*expose.Node{
					{Type: "binary", Property: "state", Access: access(true, true)},
				},
			},
		},
	}, true)
	return r
}

func TestUpdateChannelStatePublishesAndReturnsSuccess(t *testing.T) {
	reg := newBulbRegistry()
	pub := &fakePublisher{connected: true}
	bus := events.New(testLogger())
	p := New(reg, pub, bus, "zigbee2mqtt", testLogger())

	resp := p.UpdateChannelState("0x00:ieee", "state", true, 7)
	if resp.Status != model.StatusSuccess {
		t.Fatalf("status = %v, want Success (err=%q)", resp.Status, resp.Error)
	}
	if len(pub.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.published))
	}
	if pub.published[0].topic != "zigbee2mqtt/bulb1/set" {
		t.Errorf("topic = %q, want zigbee2mqtt/bulb1/set", pub.published[0].topic)
	}
	var body map[string]any
	if err := json.Unmarshal(pub.published[0].payload, &body); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if body["state"] != "ON" {
		t.Errorf("payload state = %v, want ON", body["state"])
	}
}

func TestUpdateChannelStateTemporarilyOfflineWhenDisconnected(t *testing.T) {
	reg := newBulbRegistry()
	pub := &fakePublisher{connected: false}
	bus := events.New(testLogger())
	p := New(reg, pub, bus, "zigbee2mqtt", testLogger())

	resp := p.UpdateChannelState("0x00:ieee", "state", true, 1)
	if resp.Status != model.StatusTemporarilyOffline {
		t.Errorf("status = %v, want TemporarilyOffline", resp.Status)
	}
	if len(pub.published) != 0 {
		t.Errorf("expected no publish while disconnected, got %d", len(pub.published))
	}
}

func TestUpdateChannelStateNotSupportedForUnknownChannel(t *testing.T) {
	reg := newBulbRegistry()
	pub := &fakePublisher{connected: true}
	bus := events.New(testLogger())
	p := New(reg, pub, bus, "zigbee2mqtt", testLogger())

	resp := p.UpdateChannelState("0x00:ieee", "brightness", 50, 1)
	if resp.Status != model.StatusNotSupported {
		t.Errorf("status = %v, want NotSupported", resp.Status)
	}
}

func TestUpdateChannelStateEmitsCmdResultEvent(t *testing.T) {
	reg := newBulbRegistry()
	pub := &fakePublisher{connected: true}
	bus := events.New(testLogger())
	p := New(reg, pub, bus, "zigbee2mqtt", testLogger())

	var got events.CmdResult
	bus.On(events.TypeCmdResult, func(ev events.Event) {
		got = ev.Data.(events.CmdResult)
	})

	p.UpdateChannelState("0x00:ieee", "state", false, 3)
	if got.Response.Status != model.StatusSuccess {
		t.Errorf("emitted CmdResult status = %v, want Success", got.Response.Status)
	}
	if got.DeviceID != "0x00:ieee" || got.ChannelID != "state" {
		t.Errorf("emitted CmdResult = %+v, wrong identity", got)
	}
}
