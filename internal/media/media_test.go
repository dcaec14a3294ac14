package media

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for x := 0; x < 8; x++ {
		img.Set(x, 3, color.RGBA{R: 200, A: 255})
	}
	return img
}

func encodePNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage()))
	return buf.Bytes()
}

func TestValidateUpload(t *testing.T) {
	pngData := encodePNG(t)
	jpegData, err := ToJPEG(pngData)
	require.NoError(t, err)

	got, err := ValidateUpload("image/png", pngData)
	require.NoError(t, err)
	assert.Equal(t, MIMEPNG, got)

	got, err = ValidateUpload("", jpegData)
	require.NoError(t, err)
	assert.Equal(t, MIMEJPEG, got)

	_, err = ValidateUpload("text/plain", []byte("hello there"))
	assert.ErrorIs(t, err, ErrUnsupportedImage)

	_, err = ValidateUpload("image/png", []byte("renamed notes.txt"))
	assert.ErrorIs(t, err, ErrUnsupportedImage)

	_, err = ValidateUpload("image/gif", pngData)
	assert.ErrorIs(t, err, ErrUnsupportedImage)

	_, err = ValidateUpload("image/png", nil)
	assert.ErrorIs(t, err, ErrUnsupportedImage)

	_, err = ValidateUpload("image/png", make([]byte, MaxUploadBytes+1))
	assert.ErrorIs(t, err, ErrImageTooLarge)
}

func TestToJPEG(t *testing.T) {
	out, err := ToJPEG(encodePNG(t))
	require.NoError(t, err)
	format, err := Format(out)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)

	again, err := ToJPEG(out)
	require.NoError(t, err)
	assert.Equal(t, out, again)

	var gifBuf bytes.Buffer
	require.NoError(t, gif.Encode(&gifBuf, testImage(), nil))
	out, err = ToJPEG(gifBuf.Bytes())
	require.NoError(t, err)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Width)
	assert.Equal(t, 6, cfg.Height)

	_, err = ToJPEG([]byte("<html></html>"))
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}

func TestToJPEG_FlattensTransparencyOntoWhite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 4, 4))))

	out, err := ToJPEG(buf.Bytes())
	require.NoError(t, err)
	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	r, g, b, _ := img.At(2, 2).RGBA()
	assert.Greater(t, r>>8, uint32(245))
	assert.Greater(t, g>>8, uint32(245))
	assert.Greater(t, b>>8, uint32(245))
}

func TestDataURI(t *testing.T) {
	uri := DataURI("image/png", []byte{1, 2, 3})
	assert.Equal(t, "data:image/png;base64,AQID", uri)

}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	res, err := store.Upload(ctx, UploadInput{Filename: "room.JPG", Body: strings.NewReader("jpeg-bytes")})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(res.Key, ".jpg"))
	assert.Empty(t, res.URL)

	obj, err := store.Fetch(ctx, res.Key)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), obj.Data)
	assert.Equal(t, "image/jpeg", obj.ContentType)

	_, err = store.Fetch(ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	require.NoError(t, store.Delete(ctx, res.Key))
	_, err = store.Fetch(ctx, res.Key)
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.ErrorIs(t, store.Delete(ctx, res.Key), ErrObjectNotFound)

	_, err = store.Upload(ctx, UploadInput{Filename: "x.png"})
	assert.Error(t, err)
}

func TestDisabledAndUnconfiguredS3(t *testing.T) {
	ctx := context.Background()
	store, err := NewS3Store(ctx, Config{Bucket: "only-bucket"})
	require.NoError(t, err)

	_, err = store.Upload(ctx, UploadInput{Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = store.Fetch(ctx, "k")
	assert.ErrorIs(t, err, ErrDisabled)
	assert.ErrorIs(t, store.Delete(ctx, "k"), ErrDisabled)
}

func TestOpen_FallsBackToLocal(t *testing.T) {
	dir := t.TempDir()
	store, backend, err := Open(context.Background(), Config{}, dir)
	require.NoError(t, err)
	assert.Equal(t, "local", backend)
	local, ok := store.(*LocalStore)
	require.True(t, ok)
	assert.Equal(t, dir, local.BaseDir)
}
