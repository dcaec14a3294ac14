package adjust

import (
	"fmt"
	"image/color"
	"math"
)

const (
	MinLevel     = 0
	MaxLevel     = 200
	NeutralLevel = 100
)

// Params are CSS-style filter percentages. 100 leaves the channel untouched.
type Params struct {
	Brightness int `json:"brightness"`
	Contrast   int `json:"contrast"`
	Saturation int `json:"saturation"`
}

// Neutral returns 100/100/100.
func Neutral() Params {
	return Params{Brightness: NeutralLevel, Contrast: NeutralLevel, Saturation: NeutralLevel}
}

// IsNeutral reports whether the params leave the image unchanged.
func (p Params) IsNeutral() bool {
	return p == Neutral()
}

// Validate checks every field lies within [0, 200].
func (p Params) Validate() error {
	for _, f := range []struct {
		name  string
		value int
	}{
		{"brightness", p.Brightness},
		{"contrast", p.Contrast},
		{"saturation", p.Saturation},
	} {
		if f.value < MinLevel || f.value > MaxLevel {
			return fmt.Errorf("%w: %s must be between %d and %d, got %d", ErrInvalidParams, f.name, MinLevel, MaxLevel, f.value)
		}
	}
	return nil
}

// CSS renders the params as a CSS filter value, in application order.
func (p Params) CSS() string {
	return fmt.Sprintf("brightness(%d%%) contrast(%d%%) saturate(%d%%)", p.Brightness, p.Contrast, p.Saturation)
}

// pixelFunc builds the per-pixel chain brightness, then contrast, then saturate.
// Each stage clamps to [0, 1] before the next, as browsers do between filter primitives.
func (p Params) pixelFunc() func(color.NRGBA) color.NRGBA {
	b := float64(p.Brightness) / 100
	k := float64(p.Contrast) / 100
	m := saturateMatrix(float64(p.Saturation) / 100)

	return func(c color.NRGBA) color.NRGBA {
		r := float64(c.R) / 255
		g := float64(c.G) / 255
		bl := float64(c.B) / 255

		r, g, bl = clamp01(r*b), clamp01(g*b), clamp01(bl*b)
		r, g, bl = clamp01((r-0.5)*k+0.5), clamp01((g-0.5)*k+0.5), clamp01((bl-0.5)*k+0.5)
		r, g, bl = clamp01(m[0][0]*r+m[0][1]*g+m[0][2]*bl),
			clamp01(m[1][0]*r+m[1][1]*g+m[1][2]*bl),
			clamp01(m[2][0]*r+m[2][1]*g+m[2][2]*bl)

		return color.NRGBA{R: to8(r), G: to8(g), B: to8(bl), A: c.A}
	}
}

// saturateMatrix is the feColorMatrix type="saturate" matrix.
func saturateMatrix(s float64) [3][3]float64 {
	return [3][3]float64{
		{0.213 + 0.787*s, 0.715 - 0.715*s, 0.072 - 0.072*s},
		{0.213 - 0.213*s, 0.715 + 0.285*s, 0.072 - 0.072*s},
		{0.213 - 0.213*s, 0.715 - 0.715*s, 0.072 + 0.928*s},
	}
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}

func to8(v float64) uint8 {
	return uint8(math.Round(v * 255))
}
