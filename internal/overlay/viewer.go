package overlay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	// ErrCameraUnavailable means no live feed could be acquired; the caller must leave the view.
	ErrCameraUnavailable = errors.New("overlay: camera unavailable")
	// ErrClosed is returned by a viewer after Close.
	ErrClosed = errors.New("overlay: viewer closed")
)

// Stream is an acquired camera feed. Stop must release every track.
type Stream interface {
	Stop()
}

// Camera acquires an environment-facing video feed.
type Camera interface {
	Open(ctx context.Context) (Stream, error)
}

// Item is the product image laid over the feed.
type Item struct {
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
}

// Phase identifies a pointer event.
type Phase string

const (
	PhaseStart Phase = "start"
	PhaseMove  Phase = "move"
	PhaseEnd   Phase = "end"
)

// State is a snapshot of the viewer for rendering.
type State struct {
	Item      Item      `json:"item"`
	Transform Transform `json:"transform"`
	Mode      string    `json:"mode"`
	CSS       string    `json:"css"`
}

// Viewer owns a camera stream and the interaction for one overlay view.
// Events are applied one at a time, each to completion.
type Viewer struct {
	mu          sync.Mutex
	item        Item
	stream      Stream
	interaction *Interaction
	closed      bool
	stopOnce    sync.Once
}

// Open acquires the camera and starts an overlay for item.
func Open(ctx context.Context, camera Camera, item Item) (*Viewer, error) {
	if camera == nil {
		return nil, ErrCameraUnavailable
	}
	stream, err := camera.Open(ctx)
	if err != nil {
		if errors.Is(err, ErrCameraUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}
	if stream == nil {
		return nil, ErrCameraUnavailable
	}
	if err := ctx.Err(); err != nil {
		stream.Stop()
		return nil, err
	}
	return &Viewer{
		item:        item,
		stream:      stream,
		interaction: NewInteraction(),
	}, nil
}

// Pointer applies one pointer event. An end that leaves contacts down
// re-baselines on the remaining ones.
func (v *Viewer) Pointer(phase Phase, points []Point) (State, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return State{}, ErrClosed
	}
	switch phase {
	case PhaseStart:
		v.interaction.Start(points)
	case PhaseMove:
		v.interaction.Move(points)
	case PhaseEnd:
		if len(points) > 0 {
			v.interaction.Start(points)
		} else {
			v.interaction.End()
		}
	default:
		return State{}, fmt.Errorf("overlay: unknown pointer phase %q", phase)
	}
	return v.snapshot(), nil
}

// Rotate sets one rotation control.
func (v *Viewer) Rotate(axis Axis, degrees float64) (State, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return State{}, ErrClosed
	}
	v.interaction.SetRotation(axis, degrees)
	return v.snapshot(), nil
}

// State returns the current snapshot.
func (v *Viewer) State() (State, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return State{}, ErrClosed
	}
	return v.snapshot(), nil
}

// Close stops the camera stream and discards the transform. Safe to call more than once.
func (v *Viewer) Close() {
	v.mu.Lock()
	v.closed = true
	v.interaction.End()
	v.mu.Unlock()

	v.stopOnce.Do(v.stream.Stop)
}

func (v *Viewer) snapshot() State {
	t := v.interaction.Transform()
	return State{
		Item:      v.item,
		Transform: t,
		Mode:      v.interaction.Mode().String(),
		CSS:       t.CSS(),
	}
}

// DeclaredCamera stands in for a feed acquired by the browser: the client
// reports whether getUserMedia succeeded and the server holds a lease for it.
type DeclaredCamera struct {
	Available bool
}

// Open returns a lease, or ErrCameraUnavailable when the client had no feed.
func (c DeclaredCamera) Open(_ context.Context) (Stream, error) {
	if !c.Available {
		return nil, ErrCameraUnavailable
	}
	return &Lease{}, nil
}

// Lease tracks a client-held stream on the server side.
type Lease struct {
	stopped atomic.Bool
}

// Stop marks the lease released.
func (l *Lease) Stop() {
	l.stopped.Store(true)
}

// Stopped reports whether Stop was called.
func (l *Lease) Stopped() bool {
	return l.stopped.Load()
}
