package codec

import (
	"sort"
	"strconv"
	"strings"

	"z2m-adapter/internal/model"
)

// buttonActionOrder lists the substrings matched against a Z2M "action"
// string, in priority order, per §4.A. The first match wins.
var buttonActionOrder = []struct {
	substr string
	code   model.ButtonEventCode
}{
	{"double", model.ButtonDoublePress},
	{"triple", model.ButtonTriplePress},
	{"quad", model.ButtonQuadruplePress},
	{"quint", model.ButtonQuintuplePress},
	{"long_release", model.ButtonLongPressRelease},
	{"hold_release", model.ButtonLongPressRelease},
	{"release", model.ButtonShortPressRelease},
	{"hold", model.ButtonLongPress},
	{"long", model.ButtonLongPress},
	{"single", model.ButtonInitialPress},
	{"press", model.ButtonInitialPress},
}

// DecodeButtonAction maps a Z2M action string to the canonical
// ButtonEventCode via a case-insensitive substring match, in priority
// order. Returns ButtonNone when nothing matches.
func DecodeButtonAction(action string) model.ButtonEventCode {
	lower := strings.ToLower(action)
	for _, m := range buttonActionOrder {
		if strings.Contains(lower, m.substr) {
			return m.code
		}
	}
	return model.ButtonNone
}

// fixedEnumMaps holds the reference mapping tables for the two named
// canonical enums. Keys are the lower-case raw Z2M strings, and lookups
// match them exactly.
var fixedEnumMaps = map[string]map[string]int{
	"RockerMode": {
		"single_rocker": int(model.RockerSingleRocker),
		"dual_rocker":   int(model.RockerDualRocker),
		"single_push":   int(model.RockerSinglePush),
		"dual_push":     int(model.RockerDualPush),
	},
	"SensitivityLevel": {
		"low":       int(model.SensitivityLow),
		"medium":    int(model.SensitivityMedium),
		"high":      int(model.SensitivityHigh),
		"very_high": int(model.SensitivityVeryHigh),
		"max":       int(model.SensitivityMax),
	},
}

// FixedEnumMap returns the raw->int mapping for a known canonical enum
// name, and whether that name is recognized.
func FixedEnumMap(enumName string) (map[string]int, bool) {
	m, ok := fixedEnumMaps[enumName]
	if !ok {
		return nil, false
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out, true
}

// BuildEnumMap implements the §4.A stable enum mapping: existing
// assignments in `existing` are preserved verbatim; any raw key not already
// present is assigned the next integer after the current maximum, in
// ascending case-insensitive sorted order of the new keys. A raw key that
// already parses as an integer maps to itself instead of being assigned a
// fresh slot, so devices whose Z2M exposes already enumerate integers are
// left untouched.
func BuildEnumMap(rawKeys []string, existing map[string]int) map[string]int {
	result := make(map[string]int, len(rawKeys))
	maxAssigned := 0
	for k, v := range existing {
		result[k] = v
		if v > maxAssigned {
			maxAssigned = v
		}
	}

	var fresh []string
	for _, raw := range rawKeys {
		if _, ok := result[raw]; ok {
			continue
		}
		if n, err := strconv.Atoi(raw); err == nil {
			result[raw] = n
			if n > maxAssigned {
				maxAssigned = n
			}
			continue
		}
		fresh = append(fresh, raw)
	}

	sort.Slice(fresh, func(i, j int) bool {
		return strings.ToLower(fresh[i]) < strings.ToLower(fresh[j])
	})
	for _, raw := range fresh {
		maxAssigned++
		result[raw] = maxAssigned
	}
	return result
}

// InvertEnumMap builds the value->raw map needed to encode a host-issued
// enum value back into its Z2M wire string. When multiple raw keys map to
// the same integer (should not happen for a well-formed map) the first one
// encountered wins.
func InvertEnumMap(rawToValue map[string]int) map[int]string {
	out := make(map[int]string, len(rawToValue))
	for raw, v := range rawToValue {
		if _, exists := out[v]; !exists {
			out[v] = raw
		}
	}
	return out
}
