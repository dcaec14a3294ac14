package overlay

import (
	"fmt"
	"math"
	"strconv"
)

const (
	MinScale    = 0.1
	MaxScale    = 5.0
	MaxRotation = 180.0
)

// Point is one contact (finger or mouse) in client pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Transform is the rendered placement of the overlaid item.
type Transform struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Scale   float64 `json:"scale"`
	RotateX float64 `json:"rotateX"`
	RotateY float64 `json:"rotateY"`
	RotateZ float64 `json:"rotateZ"`
}

// Identity returns the untransformed placement.
func Identity() Transform {
	return Transform{Scale: 1}
}

// CSS renders the transform for an element positioned at top/left 50%.
// Rotations do not commute, so the order translate, X, Y, Z, scale is fixed.
func (t Transform) CSS() string {
	return fmt.Sprintf("translate(-50%%, -50%%) translate(%spx, %spx) rotateX(%sdeg) rotateY(%sdeg) rotateZ(%sdeg) scale(%s)",
		formatNumber(t.X), formatNumber(t.Y),
		formatNumber(t.RotateX), formatNumber(t.RotateY), formatNumber(t.RotateZ),
		formatNumber(t.Scale))
}

// Axis names one of the three rotation controls.
type Axis string

const (
	AxisX Axis = "x"
	AxisY Axis = "y"
	AxisZ Axis = "z"
)

// ParseAxis accepts "x", "y" or "z", upper or lower case, or the "rotateX" style names.
func ParseAxis(raw string) (Axis, error) {
	switch raw {
	case "x", "X", "rotateX":
		return AxisX, nil
	case "y", "Y", "rotateY":
		return AxisY, nil
	case "z", "Z", "rotateZ":
		return AxisZ, nil
	default:
		return "", fmt.Errorf("overlay: unknown axis %q", raw)
	}
}

// ClampScale bounds a scale factor to [MinScale, MaxScale].
func ClampScale(scale float64) float64 {
	if math.IsNaN(scale) {
		return MinScale
	}
	return math.Min(math.Max(scale, MinScale), MaxScale)
}

func clampRotation(degrees float64) float64 {
	if math.IsNaN(degrees) {
		return 0
	}
	return math.Min(math.Max(degrees, -MaxRotation), MaxRotation)
}

func distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
