package adjust

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"
)

// JPEGQuality is used for previews and the confirmed image.
const JPEGQuality = 90

var (
	ErrClosed        = errors.New("adjust: editor closed")
	ErrInvalidParams = errors.New("adjust: invalid params")
)

// Editor applies filter params to an uploaded photo. The decoded source is
// never modified; every render starts from it.
type Editor struct {
	mu     sync.Mutex
	source image.Image
	params Params
	closed bool
}

// NewEditor decodes data (JPEG or PNG, EXIF orientation applied) and starts at neutral params.
func NewEditor(data []byte) (*Editor, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("adjust: decode source: %w", err)
	}
	return NewEditorFromImage(img), nil
}

// NewEditorFromImage wraps an already decoded image.
func NewEditorFromImage(img image.Image) *Editor {
	return &Editor{source: img, params: Neutral()}
}

// Params returns the current params.
func (e *Editor) Params() (Params, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return Params{}, ErrClosed
	}
	return e.params, nil
}

// Set replaces all three params. Out-of-range values are rejected and the
// previous params kept.
func (e *Editor) Set(p Params) error {
	_, err := e.Update(func(current *Params) { *current = p })
	return err
}

// Update applies fn to a copy of the current params and keeps the result if
// it validates. Concurrent updates are applied one after another.
func (e *Editor) Update(fn func(*Params)) (Params, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return Params{}, ErrClosed
	}
	next := e.params
	fn(&next)
	if err := next.Validate(); err != nil {
		return Params{}, err
	}
	e.params = next
	return next, nil
}

// Reset restores neutral params.
func (e *Editor) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.params = Neutral()
	return nil
}

// Render returns the source with the current params applied.
func (e *Editor) Render() (image.Image, error) {
	e.mu.Lock()
	source, params, closed := e.source, e.params, e.closed
	e.mu.Unlock()

	if closed {
		return nil, ErrClosed
	}
	return render(source, params), nil
}

// Preview encodes the current render as JPEG.
func (e *Editor) Preview() ([]byte, error) {
	img, err := e.Render()
	if err != nil {
		return nil, err
	}
	return encodeJPEG(img)
}

// Confirm bakes the current render into a JPEG and closes the editor.
func (e *Editor) Confirm() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}

	data, err := encodeJPEG(render(e.source, e.params))
	if err != nil {
		return nil, err
	}
	e.closed = true
	e.source = nil
	return data, nil
}

// Close discards the editor without producing an image.
func (e *Editor) Close() {
	e.mu.Lock()
	e.closed = true
	e.source = nil
	e.mu.Unlock()
}

func render(source image.Image, p Params) *image.NRGBA {
	if p.IsNeutral() {
		return imaging.Clone(source)
	}
	return imaging.AdjustFunc(source, p.pixelFunc())
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, fmt.Errorf("adjust: encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
