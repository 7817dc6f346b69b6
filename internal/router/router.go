// Package router classifies inbound MQTT topics under the Z2M base topic
// and dispatches them to the registry, state ingest, and pending-request
// tracker (§4.D). It holds no state of its own.
package router

import (
	"encoding/json"
	"log/slog"
	"strings"

	"z2m-adapter/internal/ingest"
	"z2m-adapter/internal/pending"
	"z2m-adapter/internal/registry"
)

// Transport is the subset of mqttconn.Conn the router needs: publishing
// bridge/request/* messages and flipping the bridge-online flag.
type Transport interface {
	Publish(topic string, payload []byte, retained bool) error
	SetBridgeOnline(online bool)
}

// Router dispatches one classified message at a time; Route is safe to
// call concurrently, but the components it calls into serialize writes to
// adapter state themselves.
type Router struct {
	baseTopic string
	registry  *registry.Registry
	ingest    *ingest.Ingest
	pending   *pending.Tracker
	transport Transport
	logger    *slog.Logger
}

// New builds a Router wired to its collaborators.
func New(baseTopic string, reg *registry.Registry, ing *ingest.Ingest, pend *pending.Tracker, transport Transport, logger *slog.Logger) *Router {
	return &Router{
		baseTopic: strings.TrimSuffix(baseTopic, "/"),
		registry:  reg,
		ingest:    ing,
		pending:   pend,
		transport: transport,
		logger:    logger.With("component", "router"),
	}
}

// Route is the MessageHandler installed on the mqttconn.Conn.
func (r *Router) Route(topic string, payload []byte) {
	prefix := r.baseTopic + "/"
	if !strings.HasPrefix(topic, prefix) {
		return
	}
	suffix := topic[len(prefix):]

	switch {
	case suffix == "bridge/state":
		r.routeBridgeState(payload)
	case suffix == "bridge/health":
		r.routeBridgeHealth(payload)
	case suffix == "bridge/info":
		r.routeBridgeInfo(payload)
	case suffix == "bridge/devices":
		r.routeBridgeDevices(payload)
	case suffix == "bridge/response/devices":
		r.routeBridgeResponseDevices(payload)
	case suffix == "bridge/response/device/rename":
		r.pending.HandleRenameResponse(payload)
	case suffix == "bridge/response/device/get":
		r.pending.HandleGetResponse(payload)
	case suffix == "bridge/response/options":
		r.logger.Info("bridge options response", "payload", string(payload))
	case strings.HasPrefix(suffix, "bridge/"):
		// Other bridge/* subtopics (logging, extensions) carry nothing the
		// adapter's channel model needs.
	case strings.HasSuffix(suffix, "/availability"):
		mqttID := strings.TrimSuffix(suffix, "/availability")
		r.ingest.HandleAvailability(mqttID, payload)
	case strings.HasSuffix(suffix, "/get") || strings.HasSuffix(suffix, "/set"):
		// Echoes of our own outbound commands; Z2M does not normally
		// retain these, and they carry no new state.
	case strings.Contains(suffix, "/"):
		// Any deeper sub-path (e.g. per-endpoint discovery topics) is
		// ignored per §4.D.
	default:
		r.ingest.HandleState(suffix, payload)
	}
}

func (r *Router) routeBridgeState(payload []byte) {
	state := strings.TrimSpace(string(payload))
	var online bool
	switch {
	case strings.EqualFold(state, "online"):
		online = true
	case strings.EqualFold(state, "offline"):
		online = false
	default:
		var obj map[string]any
		if err := json.Unmarshal(payload, &obj); err == nil {
			if v, ok := obj["state"].(string); ok {
				online = strings.EqualFold(v, "online")
			}
		}
	}
	r.transport.SetBridgeOnline(online)
}

func (r *Router) routeBridgeHealth(payload []byte) {
	var health map[string]any
	if err := json.Unmarshal(payload, &health); err != nil {
		return
	}
	r.ingest.HandleBridgeHealth(health)
}

func (r *Router) routeBridgeInfo(payload []byte) {
	var info map[string]any
	if err := json.Unmarshal(payload, &info); err != nil {
		r.logger.Warn("invalid bridge/info payload", "err", err)
		return
	}
	r.registry.ApplyBridgeInfo(info)
}

func (r *Router) routeBridgeDevices(payload []byte) {
	var infos []registry.DeviceInfo
	if err := json.Unmarshal(payload, &infos); err != nil {
		r.logger.Warn("invalid bridge/devices payload", "err", err)
		return
	}
	r.pending.ObserveDevicesSnapshot(infos)
	r.ingest.HandleDevicesSnapshot(infos, true)
}

func (r *Router) routeBridgeResponseDevices(payload []byte) {
	infos, err := parseResponseDevices(payload)
	if err != nil {
		r.logger.Warn("invalid bridge/response/devices payload", "err", err)
		return
	}
	r.pending.ObserveDevicesSnapshot(infos)
	r.ingest.HandleDevicesSnapshot(infos, false)
}

// parseResponseDevices accepts the three shapes Z2M is observed to send
// for bridge/response/devices (§4.D, §9 decided-open-question #1).
func parseResponseDevices(payload []byte) ([]registry.DeviceInfo, error) {
	var asArray []registry.DeviceInfo
	if err := json.Unmarshal(payload, &asArray); err == nil {
		return asArray, nil
	}

	var asData struct {
		Data []registry.DeviceInfo `json:"data"`
	}
	if err := json.Unmarshal(payload, &asData); err == nil && asData.Data != nil {
		return asData.Data, nil
	}

	var asResult struct {
		Status string                 `json:"status"`
		Result []registry.DeviceInfo  `json:"result"`
	}
	err := json.Unmarshal(payload, &asResult)
	if err != nil {
		return nil, err
	}
	return asResult.Result, nil
}
