package codec

import "math"

// Color is the canonical sRGB representation, each component in [0, 1].
type Color struct {
	R, G, B float64
}

// XY is a CIE 1931 chromaticity coordinate plus relative brightness, the
// wire representation Z2M uses for color_mode "xy".
type XY struct {
	X, Y, Brightness float64
}

// HS is hue (degrees, [0,360)) plus saturation ([0,1]), the wire
// representation Z2M uses for color_mode "hs".
type HS struct {
	Hue, Saturation float64
}

// Luminance is the standard sRGB/D65 relative luminance of a color.
func Luminance(c Color) float64 {
	return 0.2126*c.R + 0.7152*c.G + 0.0722*c.B
}

// srgbToLinear and linearToSrgb implement the sRGB transfer function.
func srgbToLinear(c float64) float64 {
	if c <= 0.04045 {
		return c / 12.92
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}

func linearToSrgb(c float64) float64 {
	if c <= 0.0031308 {
		return 12.92 * c
	}
	return 1.055*math.Pow(c, 1/2.4) - 0.055
}

// linearRGBToXYZ converts linear RGB to XYZ using the sRGB/D65 primary
// matrix (preserved verbatim from the reference implementation).
func linearRGBToXYZ(r, g, b float64) (x, y, z float64) {
	x = 0.4124*r + 0.3576*g + 0.1805*b
	y = 0.2126*r + 0.7152*g + 0.0722*b
	z = 0.0193*r + 0.1192*g + 0.9505*b
	return
}

// xyzToLinearRGB is the inverse of linearRGBToXYZ, clamped to [0,1].
func xyzToLinearRGB(x, y, z float64) (r, g, b float64) {
	r = 3.2406*x - 1.5372*y - 0.4986*z
	g = -0.9689*x + 1.8758*y + 0.0415*z
	b = 0.0557*x - 0.2040*y + 1.0570*z
	return clamp(r, 0, 1), clamp(g, 0, 1), clamp(b, 0, 1)
}

// d65WhitePointX/Y are the fallback chromaticity coordinates returned when
// a color's XYZ sum is too close to zero to normalize.
const (
	d65WhitePointX = 0.3127
	d65WhitePointY = 0.3290
)

// ColorToXY converts a canonical sRGB color to its CIE xy chromaticity plus
// relative brightness (the linear-light CIE Y, which XYToColor takes back
// as Y).
func ColorToXY(c Color) XY {
	r, g, b := srgbToLinear(c.R), srgbToLinear(c.G), srgbToLinear(c.B)
	x, y, z := linearRGBToXYZ(r, g, b)
	sum := x + y + z
	if sum <= 1e-9 {
		return XY{X: d65WhitePointX, Y: d65WhitePointY, Brightness: 0}
	}
	return XY{X: x / sum, Y: y / sum, Brightness: y}
}

// XYToColor is the inverse of ColorToXY.
func XYToColor(xy XY) Color {
	if xy.Y <= 1e-6 {
		gray := clamp(xy.Brightness, 0, 1)
		return Color{R: gray, G: gray, B: gray}
	}
	Y := xy.Brightness
	if Y <= 0 {
		Y = 1
	}
	X := (Y / xy.Y) * xy.X
	Z := (Y / xy.Y) * (1 - xy.X - xy.Y)
	r, g, b := xyzToLinearRGB(X, Y, Z)
	return Color{
		R: clamp(linearToSrgb(r), 0, 1),
		G: clamp(linearToSrgb(g), 0, 1),
		B: clamp(linearToSrgb(b), 0, 1),
	}
}

// ColorToHS converts a canonical sRGB color to hue/saturation (value is
// dropped; brightness is carried on a separate channel in this model).
func ColorToHS(c Color) HS {
	maxc := math.Max(c.R, math.Max(c.G, c.B))
	minc := math.Min(c.R, math.Min(c.G, c.B))
	delta := maxc - minc

	var hue float64
	switch {
	case delta == 0:
		hue = 0
	case maxc == c.R:
		hue = 60 * math.Mod((c.G-c.B)/delta, 6)
	case maxc == c.G:
		hue = 60 * ((c.B-c.R)/delta + 2)
	default:
		hue = 60 * ((c.R-c.G)/delta + 4)
	}
	if hue < 0 {
		hue += 360
	}

	var sat float64
	if maxc > 0 {
		sat = delta / maxc
	}
	return HS{Hue: hue, Saturation: sat}
}

// HSToColor converts hue (degrees)/saturation back to sRGB at full value,
// the inverse used when decoding an "hs" color from a state payload.
func HSToColor(hs HS) Color {
	h := math.Mod(hs.Hue, 360)
	if h < 0 {
		h += 360
	}
	s := clamp(hs.Saturation, 0, 1)
	v := 1.0

	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return Color{R: r + m, G: g + m, B: b + m}
}
