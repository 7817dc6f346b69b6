package codec

import "testing"

func closeEnough(a, b, eps float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= eps
}

func TestColorXYRoundTrip(t *testing.T) {
	colors := []Color{
		{R: 1, G: 0, B: 0},
		{R: 0, G: 1, B: 0},
		{R: 0, G: 0, B: 1},
		{R: 1, G: 1, B: 1},
		{R: 0.5, G: 0.25, B: 0.75},
	}
	for _, c := range colors {
		xy := ColorToXY(c)
		back := XYToColor(xy)
		if !closeEnough(back.R, c.R, 0.02) || !closeEnough(back.G, c.G, 0.02) || !closeEnough(back.B, c.B, 0.02) {
			t.Errorf("xy round trip %v -> %v -> %v", c, xy, back)
		}
	}
}

func TestColorToXYBlackFallsBackToWhitePoint(t *testing.T) {
	xy := ColorToXY(Color{R: 0, G: 0, B: 0})
	if xy.X != d65WhitePointX || xy.Y != d65WhitePointY || xy.Brightness != 0 {
		t.Errorf("ColorToXY(black) = %+v, want D65 white point with brightness 0", xy)
	}
}

func TestColorHSRoundTrip(t *testing.T) {
	colors := []Color{
		{R: 1, G: 0, B: 0},
		{R: 0, G: 1, B: 0},
		{R: 0, G: 0, B: 1},
		{R: 1, G: 1, B: 0},
	}
	for _, c := range colors {
		hs := ColorToHS(c)
		back := HSToColor(hs)
		if !closeEnough(back.R, c.R, 1e-6) || !closeEnough(back.G, c.G, 1e-6) || !closeEnough(back.B, c.B, 1e-6) {
			t.Errorf("hs round trip %v -> %v -> %v", c, hs, back)
		}
	}
}

func TestLuminance(t *testing.T) {
	if got := Luminance(Color{R: 1, G: 1, B: 1}); !closeEnough(got, 1.0, 1e-9) {
		t.Errorf("Luminance(white) = %v, want 1.0", got)
	}
	if got := Luminance(Color{}); got != 0 {
		t.Errorf("Luminance(black) = %v, want 0", got)
	}
}
