// Package model defines the canonical device/channel data model shared by
// every component of the adapter: the value codec, the expose compiler, the
// device registry, and the command pipeline all operate on these types.
package model

import "strings"

// ChannelKind is a closed set of semantic channel meanings, independent of
// the wire protocol that produced the value.
type ChannelKind uint16

const (
	KindUnknown ChannelKind = iota

	KindPowerOnOff
	KindButtonEvent

	KindBrightness
	KindColorTemperature
	KindColorRGB

	KindTemperature
	KindHumidity
	KindIlluminance
	KindMotion
	KindBattery
	KindCO2
	KindConnectivityStatus
	KindDeviceSoftwareUpdate
	KindSignalStrength
	KindPower
	KindVoltage
	KindCurrent
	KindEnergy
	KindLinkQuality
	KindDuration
	KindContact
	KindTamper
	KindAmbientLightLevel
)

func (k ChannelKind) String() string {
	switch k {
	case KindPowerOnOff:
		return "PowerOnOff"
	case KindButtonEvent:
		return "ButtonEvent"
	case KindBrightness:
		return "Brightness"
	case KindColorTemperature:
		return "ColorTemperature"
	case KindColorRGB:
		return "ColorRGB"
	case KindTemperature:
		return "Temperature"
	case KindHumidity:
		return "Humidity"
	case KindIlluminance:
		return "Illuminance"
	case KindMotion:
		return "Motion"
	case KindBattery:
		return "Battery"
	case KindCO2:
		return "CO2"
	case KindConnectivityStatus:
		return "ConnectivityStatus"
	case KindDeviceSoftwareUpdate:
		return "DeviceSoftwareUpdate"
	case KindSignalStrength:
		return "SignalStrength"
	case KindPower:
		return "Power"
	case KindVoltage:
		return "Voltage"
	case KindCurrent:
		return "Current"
	case KindEnergy:
		return "Energy"
	case KindLinkQuality:
		return "LinkQuality"
	case KindDuration:
		return "Duration"
	case KindContact:
		return "Contact"
	case KindTamper:
		return "Tamper"
	case KindAmbientLightLevel:
		return "AmbientLightLevel"
	default:
		return "Unknown"
	}
}

// DataType is the canonical wire-independent representation of a channel's
// value.
type DataType uint8

const (
	DataTypeUnknown DataType = iota
	DataTypeBool
	DataTypeInt
	DataTypeFloat
	DataTypeString
	DataTypeColor
	DataTypeEnum
)

// Flag is a bitmask describing channel behavior.
type Flag uint32

const (
	FlagNone       Flag = 0
	FlagReadable   Flag = 1 << 0
	FlagWritable   Flag = 1 << 1
	FlagReportable Flag = 1 << 2
	FlagRetained   Flag = 1 << 3
	FlagInactive   Flag = 1 << 4
	FlagNoTrigger  Flag = 1 << 5
	FlagSuppress   Flag = 1 << 6
)

// FlagsDefaultWrite and FlagsDefaultRead are the two common flag sets
// assigned from Z2M's expose access bits (§4.B).
const (
	FlagsDefaultWrite = FlagReadable | FlagWritable | FlagReportable | FlagRetained
	FlagsDefaultRead  = FlagReadable | FlagReportable | FlagRetained
)

func (f Flag) Has(bit Flag) bool { return f&bit != 0 }

// ConnectivityStatus mirrors the reference implementation's enum exactly,
// including the zero-value Unknown member.
type ConnectivityStatus uint8

const (
	ConnectivityUnknown ConnectivityStatus = iota
	ConnectivityConnected
	ConnectivityLimited
	ConnectivityDisconnected
)

func (c ConnectivityStatus) String() string {
	switch c {
	case ConnectivityConnected:
		return "Connected"
	case ConnectivityLimited:
		return "Limited"
	case ConnectivityDisconnected:
		return "Disconnected"
	default:
		return "Unknown"
	}
}

// RockerMode is a normalized enum used by ChannelDataType Enum channels
// describing rocker/push-button wiring modes.
type RockerMode uint8

const (
	RockerUnknown RockerMode = iota
	RockerSingleRocker
	RockerDualRocker
	RockerSinglePush
	RockerDualPush
)

var rockerModeNames = map[RockerMode]string{
	RockerUnknown:      "Unknown",
	RockerSingleRocker: "SingleRocker",
	RockerDualRocker:   "DualRocker",
	RockerSinglePush:   "SinglePush",
	RockerDualPush:     "DualPush",
}

// SensitivityLevel is a normalized enum for motion/vibration sensitivity
// settings.
type SensitivityLevel uint8

const (
	SensitivityUnknown SensitivityLevel = iota
	SensitivityLow
	SensitivityMedium
	SensitivityHigh
	SensitivityVeryHigh
	SensitivityMax
)

var sensitivityLevelNames = map[SensitivityLevel]string{
	SensitivityUnknown:  "Unknown",
	SensitivityLow:      "Low",
	SensitivityMedium:   "Medium",
	SensitivityHigh:     "High",
	SensitivityVeryHigh: "VeryHigh",
	SensitivityMax:      "Max",
}

// EnumLabel resolves the canonical choice label for a fixed enum by its
// compiled integer value (e.g. EnumLabel("RockerMode", 1) == "SingleRocker").
// It reports false for an unrecognized enumName or the enum's zero/Unknown
// member, so callers fall back to the raw Z2M key in those cases.
func EnumLabel(enumName string, value int) (string, bool) {
	switch strings.ToLower(enumName) {
	case "rockermode":
		if value == int(RockerUnknown) {
			return "", false
		}
		name, ok := rockerModeNames[RockerMode(value)]
		return name, ok
	case "sensitivitylevel":
		if value == int(SensitivityUnknown) {
			return "", false
		}
		name, ok := sensitivityLevelNames[SensitivityLevel(value)]
		return name, ok
	default:
		return "", false
	}
}

// ButtonEventCode is the canonical representation of a stateless button or
// remote press, independent of the originating vendor's action strings.
type ButtonEventCode uint8

const (
	ButtonNone ButtonEventCode = 0

	ButtonInitialPress   ButtonEventCode = 1
	ButtonDoublePress    ButtonEventCode = 2
	ButtonTriplePress    ButtonEventCode = 3
	ButtonQuadruplePress ButtonEventCode = 4
	ButtonQuintuplePress ButtonEventCode = 5

	ButtonLongPress         ButtonEventCode = 10
	ButtonLongPressRelease  ButtonEventCode = 11
	ButtonShortPressRelease ButtonEventCode = 12

	ButtonRepeat ButtonEventCode = 20
)

// DeviceClass is the canonical coarse category a device is bucketed into.
type DeviceClass uint8

const (
	DeviceUnknown DeviceClass = iota
	DeviceLight
	DeviceSwitch
	DeviceSensor
	DeviceButton
	DevicePlug
	DeviceCover
	DeviceThermostat
	DeviceGateway
	DeviceMediaPlayer
	DeviceHeater
	DeviceGate
	DeviceValve
)

func (d DeviceClass) String() string {
	switch d {
	case DeviceLight:
		return "Light"
	case DeviceSwitch:
		return "Switch"
	case DeviceSensor:
		return "Sensor"
	case DeviceButton:
		return "Button"
	case DevicePlug:
		return "Plug"
	case DeviceCover:
		return "Cover"
	case DeviceThermostat:
		return "Thermostat"
	case DeviceGateway:
		return "Gateway"
	case DeviceMediaPlayer:
		return "MediaPlayer"
	case DeviceHeater:
		return "Heater"
	case DeviceGate:
		return "Gate"
	case DeviceValve:
		return "Valve"
	default:
		return "Unknown"
	}
}

// DeviceFlag is a bitmask of coarse device attributes.
type DeviceFlag uint32

const (
	DeviceFlagNone      DeviceFlag = 0
	DeviceFlagWireless  DeviceFlag = 1 << 0
	DeviceFlagBattery   DeviceFlag = 1 << 1
	DeviceFlagFlushable DeviceFlag = 1 << 2
	DeviceFlagBLE       DeviceFlag = 1 << 3
)

// CmdStatus is the execution result of a single command on a single channel
// or adapter action.
type CmdStatus uint8

const (
	StatusSuccess CmdStatus = iota
	StatusFailure
	StatusTimeout
	StatusNotSupported
	StatusInvalidArgument
	StatusBusy
	StatusTemporarilyOffline
	StatusNotAuthorized
	StatusNotImplemented
	StatusInternalError CmdStatus = 255
)

func (s CmdStatus) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusFailure:
		return "Failure"
	case StatusTimeout:
		return "Timeout"
	case StatusNotSupported:
		return "NotSupported"
	case StatusInvalidArgument:
		return "InvalidArgument"
	case StatusBusy:
		return "Busy"
	case StatusTemporarilyOffline:
		return "TemporarilyOffline"
	case StatusNotAuthorized:
		return "NotAuthorized"
	case StatusNotImplemented:
		return "NotImplemented"
	case StatusInternalError:
		return "InternalError"
	default:
		return "Unknown"
	}
}

// CmdID is a host-assigned correlation id echoed back on CmdResponse.
type CmdID uint64

// CmdResponse is the execution result of a single channel command.
// It carries no persistent channel value; state changes are always
// delivered later via ChannelStateUpdated.
type CmdResponse struct {
	ID         CmdID
	Status     CmdStatus
	Error      string
	FinalValue any
	TsMs       int64
}

// ActionResponse is the execution result of an adapter-level action.
type ActionResponse struct {
	ID          CmdID
	Status      CmdStatus
	Error       string
	ResultValue any
	TsMs        int64
}
