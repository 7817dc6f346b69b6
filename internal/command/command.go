// Package command implements the outbound command pipeline (§4.F):
// validating and encoding a host-issued channel write, publishing it to
// Z2M, and arming the debounced post-set refresh timer.
package command

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"z2m-adapter/internal/codec"
	"z2m-adapter/internal/events"
	"z2m-adapter/internal/model"
	"z2m-adapter/internal/registry"
)

// Publisher is the subset of mqttconn.Conn the command pipeline needs.
type Publisher interface {
	Publish(topic string, payload []byte, retained bool) error
	Connected() bool
}

const refreshDelay = 1000 * time.Millisecond

// Pipeline executes update_channel_state requests.
type Pipeline struct {
	registry  *registry.Registry
	pub       Publisher
	bus       *events.Bus
	baseTopic string
	logger    *slog.Logger

	mu            sync.Mutex
	refreshTimers map[string]*time.Timer
}

// New builds a Pipeline wired to reg and pub.
func New(reg *registry.Registry, pub Publisher, bus *events.Bus, baseTopic string, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		registry:      reg,
		pub:           pub,
		bus:           bus,
		baseTopic:     baseTopic,
		logger:        logger.With("component", "command"),
		refreshTimers: make(map[string]*time.Timer),
	}
}

// UpdateChannelState implements §4.F steps 1-8. The returned CmdResponse is
// also emitted on the bus as TypeCmdResult.
func (p *Pipeline) UpdateChannelState(externalID, channelID string, value any, cmdID model.CmdID) model.CmdResponse {
	resp := p.update(externalID, channelID, value, cmdID)
	p.bus.Emit(events.Event{
		Type: events.TypeCmdResult,
		Data: events.CmdResult{DeviceID: externalID, ChannelID: channelID, Response: resp},
	})
	return resp
}

func (p *Pipeline) update(externalID, channelID string, value any, cmdID model.CmdID) model.CmdResponse {
	now := time.Now().UnixMilli()
	fail := func(status model.CmdStatus, msg string) model.CmdResponse {
		return model.CmdResponse{ID: cmdID, Status: status, Error: msg, TsMs: now}
	}

	entry, ok := p.registry.GetByExternalID(externalID)
	if !ok {
		return fail(model.StatusNotSupported, "unknown device")
	}
	binding, ok := entry.BindingsByChannel[channelID]
	if !ok {
		return fail(model.StatusNotSupported, "unknown channel")
	}
	if !binding.Flags.Has(model.FlagWritable) {
		return fail(model.StatusNotSupported, "channel is not writable")
	}
	if !p.pub.Connected() {
		return fail(model.StatusTemporarilyOffline, "adapter not connected")
	}

	encoded, err := codec.EncodeValue(binding, value)
	if err != nil {
		return fail(model.StatusInvalidArgument, err.Error())
	}

	topic := p.setTopic(entry.MqttID, binding.Endpoint)
	payload, err := json.Marshal(map[string]any{binding.Property: encoded})
	if err != nil {
		return fail(model.StatusInvalidArgument, err.Error())
	}
	if err := p.pub.Publish(topic, payload, false); err != nil {
		return fail(model.StatusFailure, err.Error())
	}

	p.armRefresh(entry.MqttID)
	return model.CmdResponse{ID: cmdID, Status: model.StatusSuccess, TsMs: now}
}

func (p *Pipeline) setTopic(mqttID, endpoint string) string {
	if endpoint != "" {
		return p.baseTopic + "/" + mqttID + "/" + endpoint + "/set"
	}
	return p.baseTopic + "/" + mqttID + "/set"
}

func (p *Pipeline) getTopic(mqttID string) string {
	return p.baseTopic + "/" + mqttID + "/get"
}

// armRefresh (re)starts the single-shot debounced refresh timer for
// mqttID; a burst of commands collapses into one refresh.
func (p *Pipeline) armRefresh(mqttID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.refreshTimers[mqttID]; ok {
		t.Stop()
	}
	p.refreshTimers[mqttID] = time.AfterFunc(refreshDelay, func() {
		p.mu.Lock()
		delete(p.refreshTimers, mqttID)
		p.mu.Unlock()
		if err := p.pub.Publish(p.getTopic(mqttID), []byte("{}"), false); err != nil {
			p.logger.Warn("post-set refresh publish failed", "mqtt_id", mqttID, "err", err)
		}
	})
}

// Stop cancels every pending refresh timer, used on adapter shutdown.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for mqttID, t := range p.refreshTimers {
		t.Stop()
		delete(p.refreshTimers, mqttID)
	}
}
