// Package pending implements the pending-request tracker (§4.G): device
// rename correlation across its three completion paths, and adapter-level
// action dispatch (settings, permitJoin, restartZ2M).
package pending

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"z2m-adapter/internal/events"
	"z2m-adapter/internal/model"
	"z2m-adapter/internal/registry"
)

// Publisher is the subset of mqttconn.Conn the tracker needs.
type Publisher interface {
	Publish(topic string, payload []byte, retained bool) error
	Connected() bool
}

const renameTimeout = 10 * time.Second

type renameState struct {
	externalID string
	from       string
	to         string
	cmdID      model.CmdID
	timer      *time.Timer
}

// Tracker correlates asynchronous bridge/request/device/rename exchanges
// and dispatches adapter-level actions.
type Tracker struct {
	registry  *registry.Registry
	pub       Publisher
	bus       *events.Bus
	baseTopic string
	logger    *slog.Logger

	mu             sync.Mutex
	renamesByTo    map[string]*renameState
	renamesByFrom  map[string]*renameState
	renamesByExtID map[string]*renameState
	adapterMeta    map[string]any
}

// New builds a Tracker wired to its collaborators.
func New(reg *registry.Registry, pub Publisher, bus *events.Bus, baseTopic string, logger *slog.Logger) *Tracker {
	return &Tracker{
		registry:       reg,
		pub:            pub,
		bus:            bus,
		baseTopic:      strings.TrimSuffix(baseTopic, "/"),
		logger:         logger.With("component", "pending"),
		renamesByTo:    make(map[string]*renameState),
		renamesByFrom:  make(map[string]*renameState),
		renamesByExtID: make(map[string]*renameState),
		adapterMeta:    make(map[string]any),
	}
}

// UpdateDeviceName begins the rename flow for externalID, publishing
// bridge/request/device/rename and arming the 10s timeout. It returns
// immediately; completion is signaled later via TypeCmdResult.
func (t *Tracker) UpdateDeviceName(externalID, newName string, cmdID model.CmdID) model.CmdResponse {
	now := time.Now().UnixMilli()
	fail := func(status model.CmdStatus, msg string) model.CmdResponse {
		return model.CmdResponse{ID: cmdID, Status: status, Error: msg, TsMs: now}
	}

	trimmed := strings.TrimSpace(newName)
	if trimmed == "" {
		return fail(model.StatusInvalidArgument, "name must not be empty")
	}
	entry, ok := t.registry.GetByExternalID(externalID)
	if !ok {
		return fail(model.StatusNotSupported, "unknown device")
	}

	t.mu.Lock()
	if _, exists := t.renamesByExtID[externalID]; exists {
		t.mu.Unlock()
		return fail(model.StatusTemporarilyOffline, "rename already in progress")
	}

	st := &renameState{externalID: externalID, from: entry.MqttID, to: trimmed, cmdID: cmdID}
	st.timer = time.AfterFunc(renameTimeout, func() { t.completeTimeout(st) })
	t.renamesByExtID[externalID] = st
	t.renamesByTo[trimmed] = st
	t.renamesByFrom[entry.MqttID] = st
	t.mu.Unlock()

	payload, _ := json.Marshal(map[string]string{"from": entry.MqttID, "to": trimmed})
	if err := t.pub.Publish(t.baseTopic+"/bridge/request/device/rename", payload, false); err != nil {
		t.clearRename(st)
		return fail(model.StatusFailure, err.Error())
	}

	return model.CmdResponse{ID: cmdID, Status: model.StatusSuccess, TsMs: now}
}

func (t *Tracker) clearRename(st *renameState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st.timer != nil {
		st.timer.Stop()
	}
	delete(t.renamesByExtID, st.externalID)
	delete(t.renamesByTo, st.to)
	delete(t.renamesByFrom, st.from)
}

func (t *Tracker) completeTimeout(st *renameState) {
	t.mu.Lock()
	if _, ok := t.renamesByExtID[st.externalID]; !ok {
		t.mu.Unlock()
		return
	}
	delete(t.renamesByExtID, st.externalID)
	delete(t.renamesByTo, st.to)
	delete(t.renamesByFrom, st.from)
	t.mu.Unlock()

	t.emitResult(st, model.StatusFailure, "Rename timeout")
}

func (t *Tracker) completeSuccess(st *renameState) {
	t.mu.Lock()
	if _, ok := t.renamesByExtID[st.externalID]; !ok {
		t.mu.Unlock()
		return
	}
	if st.timer != nil {
		st.timer.Stop()
	}
	delete(t.renamesByExtID, st.externalID)
	delete(t.renamesByTo, st.to)
	delete(t.renamesByFrom, st.from)
	t.mu.Unlock()

	t.registry.RenameMqttID(st.externalID, st.to)
	t.emitResult(st, model.StatusSuccess, "")
}

func (t *Tracker) emitResult(st *renameState, status model.CmdStatus, errMsg string) {
	t.bus.Emit(events.Event{
		Type: events.TypeCmdResult,
		Data: events.CmdResult{
			DeviceID:  st.externalID,
			ChannelID: "",
			Response: model.CmdResponse{
				ID:     st.cmdID,
				Status: status,
				Error:  errMsg,
				TsMs:   time.Now().UnixMilli(),
			},
		},
	})
}

// HandleRenameResponse implements completion path 1: a
// bridge/response/device/rename message with status "ok" matching either
// the target name or the originating mqtt id.
func (t *Tracker) HandleRenameResponse(payload []byte) {
	var resp struct {
		Status string `json:"status"`
		Data   struct {
			From string `json:"from"`
			To   string `json:"to"`
		} `json:"data"`
		From string `json:"from"`
		To   string `json:"to"`
	}
	if err := json.Unmarshal(payload, &resp); err != nil {
		t.logger.Warn("invalid rename response", "err", err)
		return
	}
	if !strings.EqualFold(resp.Status, "ok") {
		return
	}
	to := resp.Data.To
	if to == "" {
		to = resp.To
	}
	from := resp.Data.From
	if from == "" {
		from = resp.From
	}

	t.mu.Lock()
	st, ok := t.renamesByTo[to]
	if !ok {
		st, ok = t.renamesByFrom[from]
	}
	t.mu.Unlock()
	if !ok {
		return
	}
	t.completeSuccess(st)
}

// HandleGetResponse implements completion path 2: a
// bridge/response/device/get message whose ieee_address matches a device
// with a rename in flight. It succeeds only if the reported friendly_name
// matches the rename's target name; otherwise the rename failed to apply.
func (t *Tracker) HandleGetResponse(payload []byte) {
	var resp struct {
		Data struct {
			IEEEAddress  string `json:"ieee_address"`
			FriendlyName string `json:"friendly_name"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &resp); err != nil || resp.Data.IEEEAddress == "" {
		return
	}

	t.mu.Lock()
	st, ok := t.renamesByExtID[resp.Data.IEEEAddress]
	t.mu.Unlock()
	if !ok {
		return
	}
	if resp.Data.FriendlyName == st.to {
		t.completeSuccess(st)
		return
	}
	t.clearRename(st)
	t.emitResult(st, model.StatusFailure, "Rename not applied")
}

// ObserveDevicesSnapshot implements completion path 3: the next
// bridge/devices or bridge/response/devices entry whose friendly name
// matches a rename's target completes it, independent of any response on
// the rename topic itself.
func (t *Tracker) ObserveDevicesSnapshot(infos []registry.DeviceInfo) {
	for _, info := range infos {
		t.mu.Lock()
		st, ok := t.renamesByTo[info.FriendlyName]
		t.mu.Unlock()
		if ok {
			t.completeSuccess(st)
		}
	}
}

// InvokeAdapterAction dispatches a host-issued adapter-level action (§4.G).
func (t *Tracker) InvokeAdapterAction(action string, params map[string]any, cmdID model.CmdID) model.ActionResponse {
	now := time.Now().UnixMilli()
	fail := func(status model.CmdStatus, msg string) model.ActionResponse {
		return model.ActionResponse{ID: cmdID, Status: status, Error: msg, TsMs: now}
	}

	if !t.pub.Connected() {
		return fail(model.StatusTemporarilyOffline, "adapter not connected")
	}

	switch action {
	case "settings":
		t.mu.Lock()
		for k, v := range params {
			t.adapterMeta[k] = v
		}
		meta := make(map[string]any, len(t.adapterMeta))
		for k, v := range t.adapterMeta {
			meta[k] = v
		}
		t.mu.Unlock()
		t.bus.Emit(events.Event{Type: events.TypeAdapterMetaUpdated, Data: events.AdapterMetaUpdated{Meta: meta}})
		return model.ActionResponse{ID: cmdID, Status: model.StatusSuccess, TsMs: now}

	case "permitJoin":
		payload := []byte(`{"value":true,"time":120}`)
		if err := t.pub.Publish(t.baseTopic+"/bridge/request/permit_join", payload, false); err != nil {
			return fail(model.StatusFailure, err.Error())
		}
		return model.ActionResponse{ID: cmdID, Status: model.StatusSuccess, TsMs: now}

	case "restartZ2M":
		if err := t.pub.Publish(t.baseTopic+"/bridge/request/restart", []byte("{}"), false); err != nil {
			return fail(model.StatusFailure, err.Error())
		}
		return model.ActionResponse{ID: cmdID, Status: model.StatusSuccess, TsMs: now}

	default:
		return fail(model.StatusNotImplemented, fmt.Sprintf("unknown action %q", action))
	}
}

// Stop cancels every in-flight rename timer, used on adapter shutdown.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, st := range t.renamesByExtID {
		if st.timer != nil {
			st.timer.Stop()
		}
	}
	t.renamesByExtID = make(map[string]*renameState)
	t.renamesByTo = make(map[string]*renameState)
	t.renamesByFrom = make(map[string]*renameState)
}
