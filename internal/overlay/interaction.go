package overlay

// Mode is the state of the pointer interaction.
type Mode int

const (
	Idle Mode = iota
	Dragging
	Scaling
)

func (m Mode) String() string {
	switch m {
	case Dragging:
		return "dragging"
	case Scaling:
		return "scaling"
	default:
		return "idle"
	}
}

// Gesture is the baseline captured when contacts go down. It only exists
// between a start and the matching end.
type Gesture struct {
	Mode          Mode
	StartPoint    Point
	StartX        float64
	StartY        float64
	StartDistance float64
	StartScale    float64
}

// Interaction turns contact events into a transform.
type Interaction struct {
	transform Transform
	gesture   *Gesture
}

// NewInteraction starts from the identity transform with no active gesture.
func NewInteraction() *Interaction {
	return &Interaction{transform: Identity()}
}

// Transform returns the live transform.
func (i *Interaction) Transform() Transform {
	return i.transform
}

// Mode reports idle when no gesture is active.
func (i *Interaction) Mode() Mode {
	if i.gesture == nil {
		return Idle
	}
	return i.gesture.Mode
}

// Gesture returns a copy of the active baseline, or nil while idle.
func (i *Interaction) Gesture() *Gesture {
	if i.gesture == nil {
		return nil
	}
	g := *i.gesture
	return &g
}

// Start records a baseline for the current contacts. Calling it again with a
// different count (a finger added) re-baselines from the live transform.
func (i *Interaction) Start(points []Point) {
	switch {
	case len(points) == 0:
		return
	case len(points) == 1:
		i.gesture = &Gesture{
			Mode:       Dragging,
			StartPoint: points[0],
			StartX:     i.transform.X,
			StartY:     i.transform.Y,
		}
	default:
		i.gesture = &Gesture{
			Mode:          Scaling,
			StartDistance: distance(points[0], points[1]),
			StartScale:    i.transform.Scale,
		}
	}
}

// Move applies the delta from the baseline. Moves without an active gesture are ignored.
func (i *Interaction) Move(points []Point) {
	if i.gesture == nil || len(points) == 0 {
		return
	}

	want := Dragging
	if len(points) >= 2 {
		want = Scaling
	}
	if i.gesture.Mode != want {
		i.Start(points)
		return
	}

	switch i.gesture.Mode {
	case Dragging:
		i.transform.X = i.gesture.StartX + (points[0].X - i.gesture.StartPoint.X)
		i.transform.Y = i.gesture.StartY + (points[0].Y - i.gesture.StartPoint.Y)
	case Scaling:
		current := distance(points[0], points[1])
		if i.gesture.StartDistance == 0 {
			if current > 0 {
				i.gesture.StartDistance = current
				i.gesture.StartScale = i.transform.Scale
			}
			return
		}
		i.transform.Scale = ClampScale(i.gesture.StartScale * (current / i.gesture.StartDistance))
	}
}

// End releases all contacts and discards the baseline.
func (i *Interaction) End() {
	i.gesture = nil
}

// SetRotation assigns one rotation angle directly, bounded to a full turn.
func (i *Interaction) SetRotation(axis Axis, degrees float64) {
	degrees = clampRotation(degrees)
	switch axis {
	case AxisX:
		i.transform.RotateX = degrees
	case AxisY:
		i.transform.RotateY = degrees
	case AxisZ:
		i.transform.RotateZ = degrees
	}
}
