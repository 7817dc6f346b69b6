// Package expose compiles a Zigbee2MQTT device's definition.exposes tree
// into the canonical []model.Channel / map[string]*model.Binding pair the
// rest of the adapter operates on. It is the only place that reasons about
// Z2M's self-describing schema format.
package expose

import (
	"strconv"
	"strings"

	"z2m-adapter/internal/codec"
	"z2m-adapter/internal/model"
)

// Node mirrors a single entry in Z2M's definition.exposes tree. Composite
// nodes (type "composite" or "light"/"switch" groupings, and the color
// node itself) carry their children in Features.
type Node struct {
	Type       string   `json:"type"`
	Property   string   `json:"property"`
	Name       string   `json:"name"`
	Unit       string   `json:"unit"`
	Access     int      `json:"access"`
	Endpoint   string   `json:"endpoint"`
	ValueMin   *float64 `json:"value_min"`
	ValueMax   *float64 `json:"value_max"`
	ValueStep  *float64 `json:"value_step"`
	Values     []string `json:"values"`
	Features   []*Node  `json:"features"`
}

const (
	accessState = 1 << 0
	accessSet   = 1 << 1
)

// tableEntry is one row of Table T1: the static property-name -> mapping
// table used to resolve a flattened node into a channel kind/type.
type tableEntry struct {
	kind         model.ChannelKind
	dataType     model.DataType
	unit         string
	scalePercent bool
}

// table is Table T1 plus the supplemented production entries (§4.B).
var table = map[string]tableEntry{
	"state":        {model.KindPowerOnOff, model.DataTypeBool, "", false},
	"brightness":   {model.KindBrightness, model.DataTypeFloat, "%", true},
	"color_temp":   {model.KindColorTemperature, model.DataTypeFloat, "mired", false},
	"color":        {model.KindColorRGB, model.DataTypeColor, "", false},
	"temperature":  {model.KindTemperature, model.DataTypeFloat, "C", false},
	"humidity":     {model.KindHumidity, model.DataTypeFloat, "%", false},
	"illuminance":  {model.KindIlluminance, model.DataTypeInt, "lx", false},
	"illumination": {model.KindAmbientLightLevel, model.DataTypeEnum, "", false},
	"occupancy":    {model.KindMotion, model.DataTypeBool, "", false},
	"motion":       {model.KindMotion, model.DataTypeBool, "", false},
	"battery":      {model.KindBattery, model.DataTypeInt, "%", false},
	"battery_low":  {model.KindUnknown, model.DataTypeBool, "", false},
	"linkquality":  {model.KindLinkQuality, model.DataTypeFloat, "%", false},
	"keep_time":    {model.KindDuration, model.DataTypeInt, "s", false},
	"tamper":       {model.KindTamper, model.DataTypeBool, "", false},
	"power":        {model.KindPower, model.DataTypeFloat, "W", false},
	"voltage":      {model.KindVoltage, model.DataTypeFloat, "V", false},
	"current":      {model.KindCurrent, model.DataTypeFloat, "A", false},
	"energy":       {model.KindEnergy, model.DataTypeFloat, "kWh", false},
	"co2":          {model.KindCO2, model.DataTypeFloat, "ppm", false},
	"action":       {model.KindButtonEvent, model.DataTypeInt, "", false},

	"water_leak": {model.KindUnknown, model.DataTypeBool, "", false},
	"smoke":      {model.KindUnknown, model.DataTypeBool, "", false},
	"gas":        {model.KindUnknown, model.DataTypeBool, "", false},
	"sensitivity": {model.KindUnknown, model.DataTypeEnum, "", false},
	"device_mode":    {model.KindUnknown, model.DataTypeEnum, "", false},
	"operation_mode": {model.KindUnknown, model.DataTypeEnum, "", false},
}

// configTokens are the substrings that keep a Sensor-class measurement or
// Unknown-kind property writable, even though most sensor properties are
// forced read-only (§4.B).
var configTokens = []string{"calibration", "sensitivity", "threshold", "alarm", "keep_time", "interval", "unit", "mode"}

// sensorMeasurementKinds are forced read-only for Sensor-class devices
// unless the property name carries a configuration token.
var sensorMeasurementKinds = map[model.ChannelKind]bool{
	model.KindTemperature:       true,
	model.KindHumidity:          true,
	model.KindIlluminance:       true,
	model.KindMotion:            true,
	model.KindBattery:           true,
	model.KindCO2:               true,
	model.KindPower:             true,
	model.KindVoltage:           true,
	model.KindCurrent:           true,
	model.KindEnergy:            true,
	model.KindLinkQuality:       true,
	model.KindTamper:            true,
	model.KindAmbientLightLevel: true,
}

// Compiled is the output of compiling one device's exposes tree.
type Compiled struct {
	Channels          []*model.Channel
	BindingsByChannel map[string]*model.Binding
	ChannelByProperty map[string]string
	Class             model.DeviceClass
}

// Compile flattens a Z2M exposes tree into channels and bindings, infers
// the device class, and appends the implicit connectivity and
// device_software_update channels. isCoordinator forces class Gateway.
// existingEnumMaps carries forward persisted enum assignments, keyed by
// property, so integer assignments survive a restart. The fixed RockerMode /
// SensitivityLevel enums always use their fixed table and ignore it.
func Compile(exposes []*Node, isCoordinator bool, existingEnumMaps map[string]map[string]int) Compiled {
	out := Compiled{
		BindingsByChannel: make(map[string]*model.Binding),
		ChannelByProperty: make(map[string]string),
	}

	seen := make(map[string]bool)
	var seenProperties []string

	for _, n := range flatten(exposes) {
		ch, b := compileNode(n, existingEnumMaps)
		if ch == nil {
			continue
		}
		if seen[ch.ID] {
			continue
		}
		seen[ch.ID] = true
		out.Channels = append(out.Channels, ch)
		out.BindingsByChannel[ch.ID] = b
		out.ChannelByProperty[b.Property] = ch.ID
		seenProperties = append(seenProperties, n.Property)
	}

	out.Class = inferClass(seenProperties)
	if isCoordinator {
		out.Class = model.DeviceGateway
	}

	for _, sensorCh := range out.Channels {
		if out.Class != model.DeviceSensor {
			continue
		}
		b := out.BindingsByChannel[sensorCh.ID]
		if b == nil || b.IsAvailability {
			continue
		}
		if !sensorMeasurementKinds[b.Kind] && b.Kind != model.KindUnknown {
			continue
		}
		if hasConfigToken(b.Property) {
			continue
		}
		sensorCh.Flags &^= model.FlagWritable
	}

	appendImplicitChannels(&out)
	return out
}

// flatten performs the depth-first collection described in §4.B: composite
// color nodes are recorded as themselves without descending into their
// features; every other composite is descended into.
func flatten(nodes []*Node) []*Node {
	var out []*Node
	for _, n := range nodes {
		if n.Property == "color" || (n.Type == "composite" && hasColorFeatures(n)) {
			out = append(out, n)
			continue
		}
		if n.Property != "" {
			out = append(out, n)
		}
		if len(n.Features) > 0 && n.Property != "color" {
			out = append(out, flatten(n.Features)...)
		}
	}
	return out
}

func hasColorFeatures(n *Node) bool {
	has := func(name string) bool {
		for _, f := range n.Features {
			if f.Property == name {
				return true
			}
		}
		return false
	}
	return (has("x") && has("y")) || (has("hue") && has("saturation"))
}

func isMinMaxHelper(property string) bool {
	if property == "min" || property == "max" {
		return true
	}
	for _, pfx := range []string{"min_", "max_"} {
		if strings.HasPrefix(property, pfx) {
			return true
		}
	}
	for _, sfx := range []string{"_min", "_max"} {
		if strings.HasSuffix(property, sfx) {
			return true
		}
	}
	return false
}

func hasConfigToken(property string) bool {
	lower := strings.ToLower(property)
	for _, tok := range configTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

func channelID(property, endpoint string) string {
	if endpoint != "" {
		return property + "_" + endpoint
	}
	return property
}

func flagsFromAccess(access int) model.Flag {
	var f model.Flag
	if access&accessState != 0 {
		f |= model.FlagReadable | model.FlagReportable | model.FlagRetained
	}
	if access&accessSet != 0 {
		f |= model.FlagWritable
	}
	if f == 0 {
		f = model.FlagsDefaultRead
	}
	return f
}

func dataTypeFromZ2MType(t string) model.DataType {
	switch t {
	case "binary":
		return model.DataTypeBool
	case "numeric":
		return model.DataTypeFloat
	case "enum":
		return model.DataTypeEnum
	default:
		return model.DataTypeString
	}
}

func compileNode(n *Node, existingEnumMaps map[string]map[string]int) (*model.Channel, *model.Binding) {
	if n.Property == "" || isMinMaxHelper(n.Property) {
		return nil, nil
	}

	entry, known := table[n.Property]
	if !known {
		switch n.Type {
		case "enum", "binary", "numeric":
			entry = tableEntry{kind: model.KindUnknown, dataType: dataTypeFromZ2MType(n.Type)}
		default:
			return nil, nil
		}
	}

	id := channelID(n.Property, n.Endpoint)
	ch := &model.Channel{
		ID:       id,
		Name:     n.Name,
		Kind:     entry.kind,
		DataType: entry.dataType,
		Unit:     entry.unit,
		Flags:    flagsFromAccess(n.Access),
		Meta:     map[string]any{},
	}
	b := &model.Binding{
		Property: n.Property,
		Kind:     entry.kind,
		DataType: entry.dataType,
		Unit:     entry.unit,
		Flags:    ch.Flags,
		Endpoint: n.Endpoint,
	}

	if n.ValueMin != nil {
		b.RawMin = *n.ValueMin
	}
	if n.ValueMax != nil {
		b.RawMax = *n.ValueMax
	}
	if n.ValueStep != nil {
		b.RawStep = *n.ValueStep
	}

	switch {
	case entry.kind == model.KindBrightness:
		b.ScalePercent = true
		ch.Min, ch.Max = 0, 100
		if b.RawMax > b.RawMin {
			ch.Step = 100 * b.RawStep / (b.RawMax - b.RawMin)
		}
	case entry.kind == model.KindLinkQuality:
		ch.Min, ch.Max = 0, 100
	case entry.kind == model.KindBattery:
		ch.Min = 0
		if b.RawMax > 0 {
			ch.Max = b.RawMax
		} else {
			ch.Max = 100
		}
	default:
		ch.Min, ch.Max, ch.Step = b.RawMin, b.RawMax, b.RawStep
	}

	if entry.dataType == model.DataTypeEnum {
		compileEnum(n, ch, b, existingEnumMaps)
	}

	if entry.kind == model.KindVoltage && strings.EqualFold(n.Unit, "mV") {
		ch.Unit = "V"
		b.Unit = "V"
		b.ValueScale = 0.001
		ch.Min, ch.Max, ch.Step = b.RawMin/1000, b.RawMax/1000, b.RawStep/1000
	}

	if entry.kind == model.KindColorRGB {
		if hasColorFeatures(n) {
			has := func(name string) bool {
				for _, f := range n.Features {
					if f.Property == name {
						return true
					}
				}
				return false
			}
			if has("x") && has("y") {
				b.ColorMode = "xy"
			} else {
				b.ColorMode = "hs"
			}
		} else {
			b.ColorMode = "xy"
		}
	}

	return ch, b
}

func compileEnum(n *Node, ch *model.Channel, b *model.Binding, existingEnumMaps map[string]map[string]int) {
	enumName := fixedEnumName(n.Property)
	b.EnumName = enumName

	var rawToValue map[string]int
	isFixed := false
	if fixed, ok := codec.FixedEnumMap(enumName); ok {
		rawToValue = fixed
		isFixed = true
	} else {
		existing := existingEnumMaps[n.Property]
		rawToValue = codec.BuildEnumMap(n.Values, existing)
	}
	b.EnumRawToValue = rawToValue
	b.EnumValueToRaw = codec.InvertEnumMap(rawToValue)

	for _, raw := range n.Values {
		v := rawToValue[raw]
		label := raw
		if isFixed {
			if canonical, ok := model.EnumLabel(enumName, v); ok {
				label = canonical
			}
		}
		ch.Choices = append(ch.Choices, model.Choice{Value: strconv.Itoa(v), Label: label})
	}
	ch.Meta["enumName"] = enumName
	ch.Meta["enumMap"] = rawToValue
}

func fixedEnumName(property string) string {
	switch property {
	case "sensitivity":
		return "SensitivityLevel"
	case "device_mode", "operation_mode":
		return "RockerMode"
	default:
		return property
	}
}

func inferClass(properties []string) model.DeviceClass {
	has := func(name string) bool {
		for _, p := range properties {
			if p == name {
				return true
			}
		}
		return false
	}
	switch {
	case has("brightness") || has("color_temp") || has("color"):
		return model.DeviceLight
	case has("state"):
		return model.DeviceSwitch
	case has("action"):
		return model.DeviceButton
	}
	for _, p := range properties {
		if _, ok := sensorMeasurementKindsByProperty[p]; ok {
			return model.DeviceSensor
		}
	}
	return model.DeviceUnknown
}

var sensorMeasurementKindsByProperty = map[string]bool{
	"temperature": true, "humidity": true, "illuminance": true, "illumination": true,
	"occupancy": true, "motion": true, "battery": true, "co2": true, "power": true,
	"voltage": true, "current": true, "energy": true, "linkquality": true, "tamper": true,
	"water_leak": true, "smoke": true, "gas": true,
}

func appendImplicitChannels(out *Compiled) {
	connectivity := &model.Channel{
		ID:       "connectivity",
		Name:     "Connectivity",
		Kind:     model.KindConnectivityStatus,
		DataType: model.DataTypeEnum,
		Flags:    model.FlagsDefaultRead,
		Choices: []model.Choice{
			{Value: "0", Label: "Unknown"},
			{Value: "1", Label: "Connected"},
			{Value: "2", Label: "Limited"},
			{Value: "3", Label: "Disconnected"},
		},
		Meta: map[string]any{},
	}
	out.Channels = append(out.Channels, connectivity)
	out.BindingsByChannel[connectivity.ID] = &model.Binding{
		Kind:           model.KindConnectivityStatus,
		DataType:       model.DataTypeEnum,
		Flags:          connectivity.Flags,
		IsAvailability: true,
	}

	update := &model.Channel{
		ID:       "device_software_update",
		Name:     "Software Update",
		Kind:     model.KindDeviceSoftwareUpdate,
		DataType: model.DataTypeEnum,
		Flags:    model.FlagsDefaultRead,
		Choices: []model.Choice{
			{Value: "0", Label: "idle"},
			{Value: "1", Label: "available"},
			{Value: "2", Label: "updating"},
		},
		Meta: map[string]any{},
	}
	out.Channels = append(out.Channels, update)
	out.BindingsByChannel[update.ID] = &model.Binding{
		Property: "update",
		Kind:     model.KindDeviceSoftwareUpdate,
		DataType: model.DataTypeEnum,
		Flags:    update.Flags,
		EnumName: "DeviceSoftwareUpdateState",
		EnumRawToValue: map[string]int{
			"idle": 0, "available": 1, "updating": 2,
		},
		EnumValueToRaw: map[int]string{
			0: "idle", 1: "available", 2: "updating",
		},
	}
	out.ChannelByProperty["update"] = update.ID
}
