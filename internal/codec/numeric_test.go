package codec

import "testing"

func TestDecodeBrightnessRange(t *testing.T) {
	tests := []struct {
		raw, min, max float64
		want          float64
	}{
		{0, 0, 254, 0},
		{254, 0, 254, 100},
		{127, 0, 254, 50},
		{300, 0, 254, 100},
		{-10, 0, 254, 0},
		{42, 0, 0, 42},
	}
	for _, tt := range tests {
		got := DecodeBrightness(tt.raw, tt.min, tt.max)
		if Round2(got) != Round2(tt.want) {
			t.Errorf("DecodeBrightness(%v,%v,%v) = %v, want %v", tt.raw, tt.min, tt.max, got, tt.want)
		}
	}
}

func TestBrightnessRoundTrip(t *testing.T) {
	for _, percent := range []float64{0, 1, 50, 99, 100} {
		raw := EncodeBrightness(percent, 0, 254)
		back := DecodeBrightness(raw, 0, 254)
		if Round2(back) != Round2(percent) {
			t.Errorf("round trip %v -> %v -> %v", percent, raw, back)
		}
	}
}

func TestDecodeLinkQuality(t *testing.T) {
	if got := DecodeLinkQuality(255); got != 100 {
		t.Errorf("DecodeLinkQuality(255) = %v, want 100", got)
	}
	if got := DecodeLinkQuality(0); got != 0 {
		t.Errorf("DecodeLinkQuality(0) = %v, want 0", got)
	}
	if got := DecodeLinkQuality(300); got != 100 {
		t.Errorf("DecodeLinkQuality(300) = %v, want clamped 100", got)
	}
}

func TestKelvinMiredRoundTrip(t *testing.T) {
	for _, k := range []float64{2700, 4000, 6500} {
		mired := KelvinToMired(k)
		back := MiredToKelvin(mired)
		if Round2(back) != Round2(k) {
			t.Errorf("kelvin round trip %v -> %v -> %v", k, mired, back)
		}
	}
	if KelvinToMired(0) != 0 {
		t.Errorf("KelvinToMired(0) should be 0")
	}
}

func TestDecodePowerOnOff(t *testing.T) {
	tests := []struct {
		raw            any
		valueOn, valueOff string
		want           bool
	}{
		{true, "", "", true},
		{false, "", "", false},
		{float64(1), "", "", true},
		{float64(0), "", "", false},
		{"ON", "", "", true},
		{"OFF", "", "", false},
		{"LOCK", "LOCK", "UNLOCK", true},
		{"UNLOCK", "LOCK", "UNLOCK", false},
		{"lock", "LOCK", "UNLOCK", true},
	}
	for _, tt := range tests {
		got := DecodePowerOnOff(tt.raw, tt.valueOn, tt.valueOff)
		if got != tt.want {
			t.Errorf("DecodePowerOnOff(%v,%q,%q) = %v, want %v", tt.raw, tt.valueOn, tt.valueOff, got, tt.want)
		}
	}
}

func TestEncodePowerOnOff(t *testing.T) {
	if got := EncodePowerOnOff(true, "", ""); got != "ON" {
		t.Errorf("EncodePowerOnOff(true) = %q, want ON", got)
	}
	if got := EncodePowerOnOff(false, "LOCK", "UNLOCK"); got != "UNLOCK" {
		t.Errorf("EncodePowerOnOff(false,LOCK,UNLOCK) = %q, want UNLOCK", got)
	}
}

func TestDecodeBool(t *testing.T) {
	tests := []struct {
		raw  any
		want bool
	}{
		{"true", true},
		{"false", false},
		{"occupied", true},
		{"on", true},
		{"none", false},
		{float64(1), true},
	}
	for _, tt := range tests {
		if got := DecodeBool(tt.raw); got != tt.want {
			t.Errorf("DecodeBool(%v) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
