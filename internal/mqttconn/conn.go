// Package mqttconn owns the MQTT session to the Z2M broker: the
// connect/reconnect state machine (§4.H), topic subscription, and
// publishing. It has no knowledge of Z2M's topic semantics: inbound
// messages are handed to a caller-supplied handler, so it stays reusable
// and testable independent of the router/registry/ingest stack above it.
package mqttconn

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"z2m-adapter/internal/events"
)

// Config holds the broker connection parameters (§3's "Adapter configuration").
type Config struct {
	Host            string
	Port            int
	Username        string
	Password        string
	BaseTopic       string
	ClientID        string
	RetryIntervalMs int
}

func (c Config) broker() string {
	return fmt.Sprintf("tcp://%s:%d", c.Host, c.Port)
}

func (c Config) retryInterval() time.Duration {
	ms := c.RetryIntervalMs
	if ms < 1000 {
		ms = 10000
	}
	return time.Duration(ms) * time.Millisecond
}

// MessageHandler receives every inbound message under <baseTopic>/#,
// topic given in full (not yet stripped of the base topic prefix).
type MessageHandler func(topic string, payload []byte)

// Conn drives the connection state machine and exposes Publish to the
// command pipeline and pending-request tracker.
type Conn struct {
	cfg    Config
	logger *slog.Logger
	bus    *events.Bus

	mu            sync.Mutex
	client        pahomqtt.Client
	mqttConnected bool
	bridgeOnline  bool
	optionsSent   bool
	reconnectTmr  *time.Timer
	stopped       bool
	lastState     events.ConnectionState
	stateEmitted  bool

	onMessage MessageHandler
}

// New creates a Conn in the Disconnected state. Call SetMessageHandler
// before Start if inbound messages need to be routed anywhere.
func New(cfg Config, logger *slog.Logger, bus *events.Bus) *Conn {
	return &Conn{
		cfg:    cfg,
		logger: logger.With("component", "mqttconn"),
		bus:    bus,
	}
}

// SetMessageHandler installs the callback invoked for every inbound
// message. Must be called before Start.
func (c *Conn) SetMessageHandler(h MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = h
}

// Start builds the paho client and attempts the first connection. A
// connect failure schedules a reconnect rather than returning an error;
// the adapter keeps retrying indefinitely once started.
func (c *Conn) Start() {
	c.mu.Lock()
	c.stopped = false
	c.mu.Unlock()
	c.emitState()

	opts := pahomqtt.NewClientOptions().
		AddBroker(c.cfg.broker()).
		SetClientID(c.cfg.ClientID).
		SetAutoReconnect(false).
		SetCleanSession(true).
		SetOnConnectHandler(c.handleConnected).
		SetConnectionLostHandler(c.handleConnectionLost)

	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}

	c.mu.Lock()
	c.client = pahomqtt.NewClient(opts)
	client := c.client
	c.mu.Unlock()

	c.connect(client)
}

func (c *Conn) connect(client pahomqtt.Client) {
	token := client.Connect()
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			c.logger.Warn("mqtt connect failed", "err", err)
			c.scheduleReconnect()
		}
	}()
}

func (c *Conn) handleConnected(client pahomqtt.Client) {
	c.mu.Lock()
	c.mqttConnected = true
	baseTopic := c.cfg.BaseTopic
	c.mu.Unlock()

	c.logger.Info("mqtt connected", "broker", c.cfg.broker())
	c.emitState()

	client.Subscribe(baseTopic+"/#", 0, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.dispatch(msg.Topic(), msg.Payload())
	})

	c.publishLocked(baseTopic+"/bridge/request/info", []byte("{}"), false)
}

func (c *Conn) handleConnectionLost(_ pahomqtt.Client, err error) {
	c.mu.Lock()
	c.mqttConnected = false
	c.bridgeOnline = false
	c.optionsSent = false
	stopped := c.stopped
	c.mu.Unlock()

	c.logger.Warn("mqtt connection lost", "err", err)
	c.emitState()

	if !stopped {
		c.scheduleReconnect()
	}
}

func (c *Conn) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	if c.reconnectTmr != nil {
		c.reconnectTmr.Stop()
	}
	client := c.client
	c.reconnectTmr = time.AfterFunc(c.cfg.retryInterval(), func() {
		c.connect(client)
	})
}

func (c *Conn) dispatch(topic string, payload []byte) {
	c.mu.Lock()
	h := c.onMessage
	c.mu.Unlock()
	if h != nil {
		h(topic, payload)
	}
}

// SetBridgeOnline is called by the router on every bridge/state message.
// The first transition to online triggers a one-shot bridge/request/options
// publish (§4.D); emitState below only surfaces connection_state_changed
// when the computed state actually changed.
func (c *Conn) SetBridgeOnline(online bool) {
	c.mu.Lock()
	wasOnline := c.bridgeOnline
	c.bridgeOnline = online
	baseTopic := c.cfg.BaseTopic
	sendOptions := online && !wasOnline && !c.optionsSent
	if sendOptions {
		c.optionsSent = true
	}
	c.mu.Unlock()

	if sendOptions {
		c.publishLocked(baseTopic+"/bridge/request/options",
			[]byte(`{"options":{"advanced":{"last_seen":"epoch"}}}`), false)
	}
	c.emitState()
}

// Connected reports whether both the MQTT session and the Z2M bridge are up.
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mqttConnected && c.bridgeOnline
}

func (c *Conn) state() events.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.mqttConnected && c.bridgeOnline:
		return events.Connected
	case c.mqttConnected:
		return events.MqttConnected
	case c.client != nil:
		return events.Connecting
	default:
		return events.Disconnected
	}
}

// emitState publishes connection_state_changed only when the computed
// state differs from the last one emitted (§4.H: transitions emit the
// event, not every bridge/state message).
func (c *Conn) emitState() {
	if c.bus == nil {
		return
	}
	next := c.state()

	c.mu.Lock()
	if c.stateEmitted && c.lastState == next {
		c.mu.Unlock()
		return
	}
	c.lastState = next
	c.stateEmitted = true
	c.mu.Unlock()

	c.bus.Emit(events.Event{
		Type: events.TypeConnectionStateChanged,
		Data: events.ConnectionStateChanged{State: next},
	})
}

// Publish sends payload to topic. Failure to reach the broker within the
// publish timeout is surfaced as an error to the caller (the command
// pipeline turns this into CmdStatus Failure).
func (c *Conn) Publish(topic string, payload []byte, retained bool) error {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	if client == nil || !client.IsConnected() {
		return fmt.Errorf("mqtt: not connected")
	}
	token := client.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt: publish timeout for %s", topic)
	}
	return token.Error()
}

func (c *Conn) publishLocked(topic string, payload []byte, retained bool) {
	if err := c.Publish(topic, payload, retained); err != nil {
		c.logger.Warn("mqtt publish failed", "topic", topic, "err", err)
	}
}

// Stop disconnects, cancels any pending reconnect timer, and leaves the
// Conn ready to be Start-ed again.
func (c *Conn) Stop() {
	c.mu.Lock()
	c.stopped = true
	if c.reconnectTmr != nil {
		c.reconnectTmr.Stop()
		c.reconnectTmr = nil
	}
	client := c.client
	c.client = nil
	c.mqttConnected = false
	c.bridgeOnline = false
	c.optionsSent = false
	c.mu.Unlock()

	if client != nil && client.IsConnected() {
		client.Disconnect(250)
	}
	c.emitState()
}
