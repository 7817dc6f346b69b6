package codec

import (
	"fmt"
	"strconv"

	"z2m-adapter/internal/model"
)

// DecodeValue converts a raw Z2M property value into its canonical channel
// representation, per the binding's kind/data type. It is the single entry
// point state ingest (§4.E) uses for every mapped property.
func DecodeValue(b *model.Binding, raw any) (any, error) {
	switch b.Kind {
	case model.KindBrightness:
		f, ok := toFloat(raw)
		if !ok {
			return nil, fmt.Errorf("brightness: not numeric: %v", raw)
		}
		return Round2(DecodeBrightness(f, b.RawMin, b.RawMax)), nil

	case model.KindColorTemperature:
		f, ok := toFloat(raw)
		if !ok {
			return nil, fmt.Errorf("color_temp: not numeric: %v", raw)
		}
		return f, nil

	case model.KindLinkQuality, model.KindSignalStrength:
		f, ok := toFloat(raw)
		if !ok {
			return nil, fmt.Errorf("linkquality: not numeric: %v", raw)
		}
		return Round2(DecodeLinkQuality(f)), nil

	case model.KindVoltage:
		f, ok := toFloat(raw)
		if !ok {
			return nil, fmt.Errorf("voltage: not numeric: %v", raw)
		}
		return Round2(DecodeNumeric(f, b.ValueScaleOrDefault())), nil

	case model.KindPowerOnOff:
		return DecodePowerOnOff(raw, b.ValueOn, b.ValueOff), nil

	case model.KindMotion, model.KindContact, model.KindTamper:
		return DecodeBool(raw), nil

	case model.KindColorRGB:
		return decodeColor(b, raw)

	case model.KindButtonEvent:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("action: not a string: %v", raw)
		}
		return int(DecodeButtonAction(s)), nil

	default:
		if b.DataType == model.DataTypeEnum {
			return decodeEnum(b, raw)
		}
		if f, ok := toFloat(raw); ok {
			return Round2(DecodeNumeric(f, b.ValueScaleOrDefault())), nil
		}
		return raw, nil
	}
}

// EncodeValue converts a host-issued canonical channel value back into its
// raw Z2M wire representation, the inverse of DecodeValue, used by the
// command pipeline (§4.F).
func EncodeValue(b *model.Binding, canonical any) (any, error) {
	switch b.Kind {
	case model.KindBrightness:
		f, ok := toFloat(canonical)
		if !ok {
			return nil, fmt.Errorf("brightness: not numeric: %v", canonical)
		}
		return Round2(EncodeBrightness(f, b.RawMin, b.RawMax)), nil

	case model.KindColorTemperature:
		f, ok := toFloat(canonical)
		if !ok {
			return nil, fmt.Errorf("color_temp: not numeric: %v", canonical)
		}
		return f, nil

	case model.KindLinkQuality, model.KindSignalStrength:
		f, ok := toFloat(canonical)
		if !ok {
			return nil, fmt.Errorf("linkquality: not numeric: %v", canonical)
		}
		return Round2(EncodeLinkQuality(f)), nil

	case model.KindVoltage:
		f, ok := toFloat(canonical)
		if !ok {
			return nil, fmt.Errorf("voltage: not numeric: %v", canonical)
		}
		return Round2(EncodeNumeric(f, b.ValueScaleOrDefault())), nil

	case model.KindPowerOnOff:
		on, ok := canonical.(bool)
		if !ok {
			return nil, fmt.Errorf("state: not a bool: %v", canonical)
		}
		return EncodePowerOnOff(on, b.ValueOn, b.ValueOff), nil

	case model.KindMotion, model.KindContact, model.KindTamper:
		return nil, fmt.Errorf("channel %q is read-only", b.Property)

	case model.KindColorRGB:
		return encodeColor(b, canonical)

	case model.KindButtonEvent:
		return nil, fmt.Errorf("button event channels are read-only")

	default:
		if b.DataType == model.DataTypeEnum {
			return encodeEnum(b, canonical)
		}
		if f, ok := toFloat(canonical); ok {
			return Round2(EncodeNumeric(f, b.ValueScaleOrDefault())), nil
		}
		return canonical, nil
	}
}

func decodeColor(b *model.Binding, raw any) (Color, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return Color{}, fmt.Errorf("color: not an object: %v", raw)
	}
	if b.ColorMode == "hs" {
		hue, _ := toFloat(m["hue"])
		sat, _ := toFloat(m["saturation"])
		if sat > 1 {
			sat = sat / 100
		}
		return HSToColor(HS{Hue: hue, Saturation: sat}), nil
	}
	x, _ := toFloat(m["x"])
	y, _ := toFloat(m["y"])
	return XYToColor(XY{X: x, Y: y, Brightness: 1.0}), nil
}

func encodeColor(b *model.Binding, canonical any) (any, error) {
	c, ok := canonical.(Color)
	if !ok {
		return nil, fmt.Errorf("color: expected codec.Color, got %T", canonical)
	}
	if b.ColorMode == "hs" {
		hs := ColorToHS(c)
		return map[string]any{"hue": Round2(hs.Hue), "saturation": Round2(hs.Saturation * 100)}, nil
	}
	xy := ColorToXY(c)
	return map[string]any{"x": Round2(xy.X), "y": Round2(xy.Y)}, nil
}

func decodeEnum(b *model.Binding, raw any) (int, error) {
	raws, err := rawString(raw)
	if err != nil {
		return 0, err
	}
	v, ok := b.EnumRawToValue[raws]
	if !ok {
		return 0, fmt.Errorf("enum %q: unmapped raw value %q", b.EnumName, raws)
	}
	return v, nil
}

func encodeEnum(b *model.Binding, canonical any) (string, error) {
	var v int
	switch n := canonical.(type) {
	case int:
		v = n
	case float64:
		v = int(n)
	default:
		return "", fmt.Errorf("enum %q: expected integer value, got %T", b.EnumName, canonical)
	}
	raw, ok := b.EnumValueToRaw[v]
	if !ok {
		return "", fmt.Errorf("enum %q: unmapped value %d", b.EnumName, v)
	}
	return raw, nil
}

func rawString(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	default:
		return "", fmt.Errorf("enum: unsupported raw type %T", raw)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
