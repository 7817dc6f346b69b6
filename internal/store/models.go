package store

import "time"

// DeviceSnapshot is the persisted projection of a registry entry (§4.C):
// enough to recover the mqtt_id<->external-id index and every channel's
// enum integer assignments across a restart, without needing Z2M to be
// reachable. Everything else about a device (its exposes, its live
// values) is rebuilt fresh from the next bridge/devices snapshot.
type DeviceSnapshot struct {
	ExternalID    string                    `json:"external_id"`
	MqttID        string                    `json:"mqtt_id"`
	IsCoordinator bool                      `json:"is_coordinator,omitempty"`
	EnumMaps      map[string]map[string]int `json:"enum_maps,omitempty"`
	UpdatedAt     time.Time                 `json:"updated_at"`
}
