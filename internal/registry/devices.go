// Package registry implements the device registry (§4.C): the mapping
// from Z2M's mutable friendly names to stable external device ids, the
// full-snapshot vs additive bridge/devices semantics, rename detection, and
// the buffering of state payloads that arrive before their device is known.
package registry

import "z2m-adapter/internal/expose"

// DeviceInfo mirrors one entry of a Z2M bridge/devices (or
// bridge/response/devices) payload.
type DeviceInfo struct {
	IEEEAddress        string      `json:"ieee_address"`
	FriendlyName        string      `json:"friendly_name"`
	Type                string      `json:"type"`
	InterviewCompleted  bool        `json:"interview_completed"`
	Supported           bool        `json:"supported"`
	Manufacturer        string      `json:"manufacturer"`
	ModelID             string      `json:"model_id"`
	PowerSource         string      `json:"power_source"`
	Definition          *Definition `json:"definition"`
}

// Definition is the Z2M device definition block carrying the exposes tree.
type Definition struct {
	Model   string         `json:"model"`
	Vendor  string         `json:"vendor"`
	Exposes []*expose.Node `json:"exposes"`
}

func (d *DeviceInfo) externalID() string {
	if d.IEEEAddress != "" {
		return d.IEEEAddress
	}
	return d.FriendlyName
}

func (d *DeviceInfo) isCoordinator() bool {
	return d.Type == "Coordinator"
}

func (d *DeviceInfo) exposes() []*expose.Node {
	if d.Definition == nil {
		return nil
	}
	return d.Definition.Exposes
}
