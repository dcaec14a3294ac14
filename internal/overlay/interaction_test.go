package overlay

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pinch(d float64) []Point {
	return []Point{{X: 0, Y: 0}, {X: d, Y: 0}}
}

func TestInteraction_StartsIdleAtIdentity(t *testing.T) {
	in := NewInteraction()
	assert.Equal(t, Idle, in.Mode())
	assert.Nil(t, in.Gesture())
	assert.Equal(t, Identity(), in.Transform())
}

func TestInteraction_PinchScales(t *testing.T) {
	in := NewInteraction()
	in.Start(pinch(100))
	require.Equal(t, Scaling, in.Mode())

	in.Move(pinch(250))
	assert.InDelta(t, 2.5, in.Transform().Scale, 1e-9)
}

func TestInteraction_PinchClampsToCeiling(t *testing.T) {
	in := NewInteraction()
	in.Start(pinch(100))
	in.Move(pinch(300))
	in.End()
	require.InDelta(t, 3.0, in.Transform().Scale, 1e-9)

	in.Start(pinch(100))
	in.Move(pinch(250))
	assert.Equal(t, MaxScale, in.Transform().Scale)
}

func TestInteraction_ScaleIsClampedProduct(t *testing.T) {
	baselines := []float64{0.1, 0.5, 1, 2, 3, 5}
	ratios := []float64{0, 0.01, 0.2, 0.5, 1, 1.7, 2.5, 10, 1000}

	for _, s0 := range baselines {
		for _, r := range ratios {
			in := NewInteraction()
			in.transform.Scale = s0
			in.Start(pinch(100))
			in.Move(pinch(100 * r))

			want := math.Min(math.Max(s0*r, MinScale), MaxScale)
			assert.InDeltaf(t, want, in.Transform().Scale, 1e-9, "s0=%v r=%v", s0, r)
		}
	}
}

func TestInteraction_DragIsPathIndependent(t *testing.T) {
	paths := [][]Point{
		{{X: 30, Y: 40}},
		{{X: 5, Y: 5}, {X: -200, Y: 900}, {X: 30, Y: 40}},
		{{X: 1000, Y: -1000}, {X: 30, Y: 40}},
	}

	var finals []Transform
	for _, path := range paths {
		in := NewInteraction()
		in.Start([]Point{{X: 10, Y: 10}})
		for _, p := range path {
			in.Move([]Point{p})
		}
		in.End()
		finals = append(finals, in.Transform())
	}

	for _, got := range finals {
		assert.Equal(t, 20.0, got.X)
		assert.Equal(t, 30.0, got.Y)
	}
}

func TestInteraction_DragAccumulatesAcrossGestures(t *testing.T) {
	in := NewInteraction()
	in.Start([]Point{{X: 0, Y: 0}})
	in.Move([]Point{{X: 50, Y: -20}})
	in.End()

	in.Start([]Point{{X: 500, Y: 500}})
	in.Move([]Point{{X: 510, Y: 490}})

	assert.Equal(t, 60.0, in.Transform().X)
	assert.Equal(t, -30.0, in.Transform().Y)
}

func TestInteraction_TranslationIsUnclamped(t *testing.T) {
	in := NewInteraction()
	in.Start([]Point{{X: 0, Y: 0}})
	in.Move([]Point{{X: -1e6, Y: 1e6}})
	assert.Equal(t, -1e6, in.Transform().X)
	assert.Equal(t, 1e6, in.Transform().Y)
}

func TestInteraction_MoveWhileIdleIsIgnored(t *testing.T) {
	in := NewInteraction()
	in.Move([]Point{{X: 40, Y: 40}})
	in.Move(pinch(400))
	assert.Equal(t, Identity(), in.Transform())
}

func TestInteraction_EndDiscardsGesture(t *testing.T) {
	in := NewInteraction()
	in.Start([]Point{{X: 1, Y: 1}})
	require.NotNil(t, in.Gesture())

	in.End()
	assert.Nil(t, in.Gesture())
	assert.Equal(t, Idle, in.Mode())
}

func TestInteraction_CountChangeRebaselinesWithoutJump(t *testing.T) {
	in := NewInteraction()
	in.Start([]Point{{X: 0, Y: 0}})
	in.Move([]Point{{X: 40, Y: 0}})

	// second finger lands: the transform must not move on this event
	in.Move([]Point{{X: 40, Y: 0}, {X: 140, Y: 0}})
	assert.Equal(t, Scaling, in.Mode())
	assert.Equal(t, 40.0, in.Transform().X)
	assert.Equal(t, 1.0, in.Transform().Scale)

	in.Move([]Point{{X: 40, Y: 0}, {X: 240, Y: 0}})
	assert.InDelta(t, 2.0, in.Transform().Scale, 1e-9)

	// back to one finger: drag resumes from the live position
	in.Move([]Point{{X: 40, Y: 0}})
	in.Move([]Point{{X: 50, Y: 5}})
	assert.Equal(t, 50.0, in.Transform().X)
	assert.Equal(t, 5.0, in.Transform().Y)
	assert.InDelta(t, 2.0, in.Transform().Scale, 1e-9)
}

func TestInteraction_ExtraContactsIgnored(t *testing.T) {
	two := NewInteraction()
	two.Start(pinch(100))
	two.Move(pinch(150))

	three := NewInteraction()
	three.Start([]Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 900, Y: 900}})
	three.Move([]Point{{X: 0, Y: 0}, {X: 150, Y: 0}, {X: -50, Y: 12}})

	assert.Equal(t, two.Transform(), three.Transform())
}

func TestInteraction_ZeroBaselineDistance(t *testing.T) {
	in := NewInteraction()
	in.Start([]Point{{X: 10, Y: 10}, {X: 10, Y: 10}})
	in.Move([]Point{{X: 10, Y: 10}, {X: 10, Y: 10}})
	assert.Equal(t, 1.0, in.Transform().Scale)

	in.Move(pinch(50))
	assert.Equal(t, 1.0, in.Transform().Scale)

	in.Move(pinch(100))
	assert.InDelta(t, 2.0, in.Transform().Scale, 1e-9)
}

func TestInteraction_SetRotation(t *testing.T) {
	in := NewInteraction()
	in.SetRotation(AxisX, 45)
	in.SetRotation(AxisY, -90)
	in.SetRotation(AxisZ, 720)

	got := in.Transform()
	assert.Equal(t, 45.0, got.RotateX)
	assert.Equal(t, -90.0, got.RotateY)
	assert.Equal(t, 180.0, got.RotateZ)

	in.SetRotation(AxisX, -181)
	assert.Equal(t, -180.0, in.Transform().RotateX)
}

func TestTransform_CSSOrder(t *testing.T) {
	tr := Transform{X: 12.5, Y: -3, Scale: 1.25, RotateX: 10, RotateY: 20, RotateZ: -30}
	assert.Equal(t,
		"translate(-50%, -50%) translate(12.5px, -3px) rotateX(10deg) rotateY(20deg) rotateZ(-30deg) scale(1.25)",
		tr.CSS())
}

func TestParseAxis(t *testing.T) {
	for raw, want := range map[string]Axis{"x": AxisX, "Y": AxisY, "rotateZ": AxisZ} {
		got, err := ParseAxis(raw)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseAxis("w")
	assert.Error(t, err)
}
