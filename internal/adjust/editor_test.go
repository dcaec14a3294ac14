package adjust

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestParams_Validate(t *testing.T) {
	assert.NoError(t, Neutral().Validate())
	assert.NoError(t, Params{Brightness: 0, Contrast: 200, Saturation: 0}.Validate())

	for _, p := range []Params{
		{Brightness: -1, Contrast: 100, Saturation: 100},
		{Brightness: 100, Contrast: 201, Saturation: 100},
		{Brightness: 100, Contrast: 100, Saturation: 500},
	} {
		assert.ErrorIs(t, p.Validate(), ErrInvalidParams)
	}
}

func TestParams_CSS(t *testing.T) {
	p := Params{Brightness: 120, Contrast: 80, Saturation: 0}
	assert.Equal(t, "brightness(120%) contrast(80%) saturate(0%)", p.CSS())
}

func TestPixelFunc(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		in     color.NRGBA
		want   color.NRGBA
	}{
		{"neutral", Neutral(), color.NRGBA{R: 12, G: 130, B: 250, A: 255}, color.NRGBA{R: 12, G: 130, B: 250, A: 255}},
		{"half brightness", Params{50, 100, 100}, color.NRGBA{R: 200, G: 100, B: 0, A: 255}, color.NRGBA{R: 100, G: 50, B: 0, A: 255}},
		{"brightness clamps", Params{200, 100, 100}, color.NRGBA{R: 200, G: 10, B: 0, A: 255}, color.NRGBA{R: 255, G: 20, B: 0, A: 255}},
		{"zero contrast is mid gray", Params{100, 0, 100}, color.NRGBA{R: 0, G: 90, B: 255, A: 255}, color.NRGBA{R: 128, G: 128, B: 128, A: 255}},
		{"zero saturation", Params{100, 100, 0}, color.NRGBA{R: 255, G: 0, B: 0, A: 255}, color.NRGBA{R: 54, G: 54, B: 54, A: 255}},
		{"alpha kept", Params{50, 100, 100}, color.NRGBA{R: 100, G: 100, B: 100, A: 7}, color.NRGBA{R: 50, G: 50, B: 50, A: 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.params.pixelFunc()(tt.in))
		})
	}
}

func TestEditor_RenderNeverMutatesSource(t *testing.T) {
	src := solid(color.NRGBA{R: 100, G: 150, B: 200, A: 255})
	ed := NewEditorFromImage(src)

	require.NoError(t, ed.Set(Params{Brightness: 0, Contrast: 100, Saturation: 100}))
	dark, err := ed.Render()
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{A: 255}, dark.(*image.NRGBA).NRGBAAt(1, 1))

	require.NoError(t, ed.Set(Params{Brightness: 100, Contrast: 100, Saturation: 100}))
	back, err := ed.Render()
	require.NoError(t, err)
	assert.Equal(t, src.NRGBAAt(1, 1), back.(*image.NRGBA).NRGBAAt(1, 1))
	assert.Equal(t, color.NRGBA{R: 100, G: 150, B: 200, A: 255}, src.NRGBAAt(2, 2))
}

func TestEditor_SetRejectsOutOfRange(t *testing.T) {
	ed := NewEditorFromImage(solid(color.NRGBA{A: 255}))
	want := Params{Brightness: 150, Contrast: 90, Saturation: 10}
	require.NoError(t, ed.Set(want))

	err := ed.Set(Params{Brightness: 201, Contrast: 100, Saturation: 100})
	require.ErrorIs(t, err, ErrInvalidParams)

	got, err := ed.Params()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestEditor_UpdateMergesConcurrentChanges(t *testing.T) {
	ed := NewEditorFromImage(solid(color.NRGBA{A: 255}))
	require.NoError(t, ed.Set(Params{Brightness: 0, Contrast: 0, Saturation: 100}))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := ed.Update(func(p *Params) { p.Brightness++ })
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := ed.Update(func(p *Params) { p.Contrast++ })
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := ed.Params()
	require.NoError(t, err)
	assert.Equal(t, Params{Brightness: 100, Contrast: 100, Saturation: 100}, got)

	_, err = ed.Update(func(p *Params) { p.Saturation = 250 })
	require.ErrorIs(t, err, ErrInvalidParams)
	got, err = ed.Params()
	require.NoError(t, err)
	assert.Equal(t, 100, got.Saturation)
}

func TestEditor_Reset(t *testing.T) {
	ed := NewEditorFromImage(solid(color.NRGBA{A: 255}))
	require.NoError(t, ed.Set(Params{Brightness: 3, Contrast: 4, Saturation: 5}))
	require.NoError(t, ed.Reset())

	got, err := ed.Params()
	require.NoError(t, err)
	assert.Equal(t, Params{Brightness: 100, Contrast: 100, Saturation: 100}, got)
}

func TestEditor_DecodesPNGAndConfirmsJPEG(t *testing.T) {
	ed, err := NewEditor(pngBytes(t, solid(color.NRGBA{R: 10, G: 20, B: 30, A: 255})))
	require.NoError(t, err)

	preview, err := ed.Preview()
	require.NoError(t, err)
	_, format, err := image.DecodeConfig(bytes.NewReader(preview))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)

	out, err := ed.Confirm()
	require.NoError(t, err)
	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 4), img.Bounds())

	_, err = ed.Confirm()
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, ed.Set(Neutral()), ErrClosed)
	_, err = ed.Render()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNewEditor_RejectsGarbage(t *testing.T) {
	_, err := NewEditor([]byte("just some text"))
	assert.Error(t, err)
}

func TestEditor_Close(t *testing.T) {
	ed := NewEditorFromImage(solid(color.NRGBA{A: 255}))
	ed.Close()
	_, err := ed.Preview()
	assert.ErrorIs(t, err, ErrClosed)
}
