// Package codec implements the bidirectional value conversions between a
// Z2M device's raw wire representation and the adapter's canonical channel
// model: percentage scaling, color space conversion, enum stabilization,
// and the handful of boolean/string coercions Z2M devices rely on.
package codec

import "math"

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DecodeBrightness maps a raw value in [rawMin, rawMax] to a canonical
// percentage in [0, 100]. When rawMax <= rawMin the raw value passes
// through unchanged (no usable range was advertised).
func DecodeBrightness(raw, rawMin, rawMax float64) float64 {
	if rawMax <= rawMin {
		return raw
	}
	return 100 * (clamp(raw, rawMin, rawMax) - rawMin) / (rawMax - rawMin)
}

// EncodeBrightness is the inverse of DecodeBrightness; percent is clamped
// to [0, 100] before scaling back into the raw range.
func EncodeBrightness(percent, rawMin, rawMax float64) float64 {
	percent = clamp(percent, 0, 100)
	if rawMax <= rawMin {
		return percent
	}
	return rawMin + percent/100*(rawMax-rawMin)
}

// DecodeLinkQuality rescales a raw 0..255 link quality reading to a
// canonical 0..100 percentage.
func DecodeLinkQuality(raw float64) float64 {
	return clamp(raw*(100.0/255.0), 0, 100)
}

// EncodeLinkQuality is the inverse of DecodeLinkQuality.
func EncodeLinkQuality(percent float64) float64 {
	return clamp(percent, 0, 100) * (255.0 / 100.0)
}

// DecodeNumeric applies a generic multiplicative scale (value_scale in the
// binding), defaulting to 1.0 when scale is zero.
func DecodeNumeric(raw, scale float64) float64 {
	if scale == 0 {
		scale = 1.0
	}
	return raw * scale
}

// EncodeNumeric is the inverse of DecodeNumeric.
func EncodeNumeric(canonical, scale float64) float64 {
	if scale == 0 {
		scale = 1.0
	}
	return canonical / scale
}

// KelvinToMired converts a color temperature in Kelvin to mired
// (micro-reciprocal-Kelvin): mired = 1e6 / K.
func KelvinToMired(kelvin float64) float64 {
	if kelvin <= 0 {
		return 0
	}
	return 1e6 / kelvin
}

// MiredToKelvin is the inverse of KelvinToMired.
func MiredToKelvin(mired float64) float64 {
	if mired <= 0 {
		return 0
	}
	return 1e6 / mired
}

// DecodePowerOnOff coerces a Z2M "state"-style raw value into a bool.
// Accepts a native bool, a nonzero number, or a string matched
// case-insensitively against valueOn/valueOff (falling back to "ON").
func DecodePowerOnOff(raw any, valueOn, valueOff string) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	case string:
		if valueOn != "" && foldEqual(v, valueOn) {
			return true
		}
		if valueOff != "" && foldEqual(v, valueOff) {
			return false
		}
		return foldEqual(v, "ON")
	default:
		return false
	}
}

func foldEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// EncodePowerOnOff produces the wire string for a boolean state, preferring
// the binding's configured valueOn/valueOff and falling back to "ON"/"OFF".
func EncodePowerOnOff(on bool, valueOn, valueOff string) string {
	if on {
		if valueOn != "" {
			return valueOn
		}
		return "ON"
	}
	if valueOff != "" {
		return valueOff
	}
	return "OFF"
}

// DecodeBool coerces Motion/Contact/Tamper-style raw values into a bool,
// treating the strings "true", "on", and "occupied" (case-insensitively)
// as true in addition to a native bool or nonzero number.
func DecodeBool(raw any) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	case string:
		return foldEqual(v, "true") || foldEqual(v, "on") || foldEqual(v, "occupied")
	default:
		return false
	}
}

// Round2 rounds to two decimal places, used when formatting encoded values
// for JSON publication so floating point noise doesn't leak onto the wire.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
