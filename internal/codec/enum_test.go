package codec

import (
	"testing"

	"z2m-adapter/internal/model"
)

func TestDecodeButtonAction(t *testing.T) {
	tests := []struct {
		action string
		want   model.ButtonEventCode
	}{
		{"single", model.ButtonInitialPress},
		{"double", model.ButtonDoublePress},
		{"triple", model.ButtonTriplePress},
		{"hold", model.ButtonLongPress},
		{"long_release", model.ButtonLongPressRelease},
		{"release", model.ButtonShortPressRelease},
		{"", model.ButtonNone},
		{"on", model.ButtonNone},
	}
	for _, tt := range tests {
		if got := DecodeButtonAction(tt.action); got != tt.want {
			t.Errorf("DecodeButtonAction(%q) = %v, want %v", tt.action, got, tt.want)
		}
	}
}

func TestDecodeButtonActionPriority(t *testing.T) {
	// "long_release" must win over the plain "long"/"release" substrings.
	if got := DecodeButtonAction("button_long_release"); got != model.ButtonLongPressRelease {
		t.Errorf("DecodeButtonAction(button_long_release) = %v, want LongPressRelease", got)
	}
}

func TestFixedEnumMap(t *testing.T) {
	m, ok := FixedEnumMap("RockerMode")
	if !ok {
		t.Fatal("expected RockerMode to be a known fixed enum")
	}
	if m["single_rocker"] != int(model.RockerSingleRocker) {
		t.Errorf("single_rocker = %d, want %d", m["single_rocker"], model.RockerSingleRocker)
	}
	if _, ok := FixedEnumMap("not_a_real_enum"); ok {
		t.Error("expected unknown enum name to report ok=false")
	}
}

func TestBuildEnumMapPreservesExisting(t *testing.T) {
	existing := map[string]int{"off": 1, "auto": 2}
	got := BuildEnumMap([]string{"off", "auto", "boost"}, existing)
	if got["off"] != 1 || got["auto"] != 2 {
		t.Errorf("existing assignments not preserved: %v", got)
	}
	if got["boost"] != 3 {
		t.Errorf("new key boost = %d, want 3", got["boost"])
	}
}

func TestBuildEnumMapSortsNewKeysCaseInsensitively(t *testing.T) {
	got := BuildEnumMap([]string{"Zebra", "apple", "Mango"}, nil)
	if got["apple"] != 1 || got["Mango"] != 2 || got["Zebra"] != 3 {
		t.Errorf("unexpected assignment order: %v", got)
	}
}

func TestBuildEnumMapIntegerRawKeysMapToThemselves(t *testing.T) {
	got := BuildEnumMap([]string{"0", "1", "extra"}, nil)
	if got["0"] != 0 || got["1"] != 1 {
		t.Errorf("integer raw keys should map to themselves: %v", got)
	}
	if got["extra"] != 2 {
		t.Errorf("extra = %d, want 2 (max+1 after integer keys)", got["extra"])
	}
}

func TestInvertEnumMap(t *testing.T) {
	fwd := map[string]int{"low": 1, "high": 2}
	inv := InvertEnumMap(fwd)
	if inv[1] != "low" || inv[2] != "high" {
		t.Errorf("InvertEnumMap(%v) = %v", fwd, inv)
	}
}
