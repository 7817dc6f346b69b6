package mqttconn

import (
	"log/slog"
	"os"
	"testing"

	"z2m-adapter/internal/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSetBridgeOnlineEmitsOnlyOnTransition(t *testing.T) {
	bus := events.New(testLogger())
	c := New(Config{BaseTopic: "zigbee2mqtt"}, testLogger(), bus)

	var states []events.ConnectionState
	bus.On(events.TypeConnectionStateChanged, func(ev events.Event) {
		states = append(states, ev.Data.(events.ConnectionStateChanged).State)
	})

	c.mu.Lock()
	c.mqttConnected = true
	c.mu.Unlock()

	c.SetBridgeOnline(true)
	c.SetBridgeOnline(true)
	c.SetBridgeOnline(true)

	if len(states) != 1 {
		t.Fatalf("states = %v, want exactly one emission for the single transition", states)
	}
	if states[0] != events.Connected {
		t.Errorf("state = %v, want Connected", states[0])
	}

	c.SetBridgeOnline(false)

	if len(states) != 2 {
		t.Fatalf("states = %v, want a second emission for the transition back out", states)
	}
	if states[1] != events.MqttConnected {
		t.Errorf("state = %v, want MqttConnected", states[1])
	}
}

func TestHandleConnectionLostEmitsOnceEvenIfAlreadyDisconnected(t *testing.T) {
	bus := events.New(testLogger())
	c := New(Config{BaseTopic: "zigbee2mqtt"}, testLogger(), bus)

	var count int
	bus.On(events.TypeConnectionStateChanged, func(ev events.Event) {
		count++
	})

	c.emitState()
	if count != 1 {
		t.Fatalf("count after initial emitState = %d, want 1", count)
	}

	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()

	c.handleConnectionLost(nil, nil)
	if count != 1 {
		t.Fatalf("count = %d, want unchanged 1 since the connection was already Disconnected", count)
	}

	c.mu.Lock()
	c.mqttConnected = true
	c.mu.Unlock()
	c.emitState()
	if count != 2 {
		t.Fatalf("count after emitState = %d, want 2 for the MqttConnected transition", count)
	}

	c.handleConnectionLost(nil, nil)
	if count != 3 {
		t.Errorf("count after handleConnectionLost = %d, want 3 for the transition back to Disconnected", count)
	}
}
