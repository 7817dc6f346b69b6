package model

// Choice is a single enum option exposed to the host, e.g. for a RockerMode
// or SensitivityLevel channel.
type Choice struct {
	Value string
	Label string
}

// Channel is the canonical, host-facing description of a single device
// capability plus its last known runtime value.
type Channel struct {
	ID       string
	Name     string
	Kind     ChannelKind
	DataType DataType
	Flags    Flag
	Unit     string
	Min      float64
	Max      float64
	Step     float64
	Choices  []Choice
	Meta     map[string]any

	LastValue    any
	LastUpdateMs int64
	HasValue     bool
}

// Binding is the internal, per-channel descriptor of how to decode an
// incoming Z2M property value into a Channel value, and how to encode a
// host-issued command back into a Z2M property value. Bindings never cross
// the host boundary; only the Channel they were compiled from does.
type Binding struct {
	Property string
	Kind     ChannelKind
	DataType DataType
	Flags    Flag
	Unit     string

	RawMin  float64
	RawMax  float64
	RawStep float64

	// ValueScale is the multiplicative factor applied on decode; encode
	// divides by it. Defaults to 1.0.
	ValueScale float64

	// Endpoint is the Z2M multi-endpoint suffix, if any (e.g. "l1").
	Endpoint string

	// ValueOn/ValueOff are the wire strings for a boolean PowerOnOff
	// channel, e.g. "ON"/"OFF" or "LOCK"/"UNLOCK".
	ValueOn  string
	ValueOff string

	// ColorMode is "xy" or "hs" for a ColorRGB binding.
	ColorMode string

	// EnumRawToValue/EnumValueToRaw implement the §4.A stable enum mapping.
	// Keys of EnumRawToValue are the raw Z2M strings (case preserved);
	// EnumValueToRaw is keyed by the assigned integer.
	EnumRawToValue map[string]int
	EnumValueToRaw map[int]string
	EnumName       string

	// ScalePercent marks bindings (brightness) whose raw range is always
	// renormalized to a canonical 0..100 on the Channel regardless of the
	// device's native raw_min/raw_max.
	ScalePercent bool

	// IsAvailability marks the implicit connectivity binding, which has no
	// backing Z2M property and is instead driven by availability/last_seen.
	IsAvailability bool
}

// ValueScaleOrDefault returns ValueScale, defaulting to 1.0 when unset.
func (b *Binding) ValueScaleOrDefault() float64 {
	if b.ValueScale == 0 {
		return 1.0
	}
	return b.ValueScale
}

// Device is the canonical, host-facing device record.
type Device struct {
	ID           string
	Name         string
	Class        DeviceClass
	Flags        DeviceFlag
	Manufacturer string
	Firmware     string
	Model        string
	Meta         map[string]any
}

// DeviceEntry is the adapter-internal record for a single Z2M device: the
// canonical Device plus every channel/binding compiled from its exposes, and
// the bookkeeping needed to translate between the stable external id and
// the mutable MQTT friendly name.
type DeviceEntry struct {
	Device Device

	// MqttID is the device's current Z2M friendly name (the topic segment).
	MqttID string

	Channels          []*Channel
	BindingsByChannel map[string]*Binding
	ChannelByProperty map[string]string

	// IsCoordinator marks the Z2M coordinator pseudo-device, which receives
	// its DeviceClass/meta from a buffered bridge/info payload rather than
	// from its (usually absent) exposes tree.
	IsCoordinator bool
}

// ChannelByID returns the channel with the given id, or nil.
func (e *DeviceEntry) ChannelByID(id string) *Channel {
	for _, c := range e.Channels {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// BindingByProperty resolves a Z2M property name to its binding, or nil.
func (e *DeviceEntry) BindingByProperty(property string) *Binding {
	channelID, ok := e.ChannelByProperty[property]
	if !ok {
		return nil
	}
	return e.BindingsByChannel[channelID]
}
