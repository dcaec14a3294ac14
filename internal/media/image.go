package media

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/png"
	"mime"
	"net/http"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"

	// MaxUploadBytes bounds a room photo upload.
	MaxUploadBytes = 10 << 20
)

var (
	ErrUnsupportedImage = errors.New("please upload a valid image file (JPEG or PNG)")
	ErrImageTooLarge    = errors.New("image exceeds the 10 MB limit")
)

// ValidateUpload checks a room photo. Both the declared content type (when
// present) and the sniffed bytes must be JPEG or PNG. It returns the sniffed type.
func ValidateUpload(declared string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty file", ErrUnsupportedImage)
	}
	if len(data) > MaxUploadBytes {
		return "", ErrImageTooLarge
	}

	if declared != "" {
		mediaType, _, err := mime.ParseMediaType(declared)
		if err != nil || !uploadAllowed(mediaType) {
			return "", fmt.Errorf("%w: declared %q", ErrUnsupportedImage, declared)
		}
	}

	sniffed := http.DetectContentType(data)
	if !uploadAllowed(sniffed) {
		return "", fmt.Errorf("%w: detected %q", ErrUnsupportedImage, sniffed)
	}
	return sniffed, nil
}

func uploadAllowed(mediaType string) bool {
	return mediaType == MIMEJPEG || mediaType == MIMEPNG
}

// Format returns the registered decoder name for data (jpeg, png, gif, webp).
func Format(data []byte) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return format, nil
}

// ToJPEG re-encodes any decodable image as JPEG at quality 90, flattening
// transparency onto white. JPEG input is returned as-is.
func ToJPEG(data []byte) ([]byte, error) {
	format, err := Format(data)
	if err != nil {
		return nil, err
	}
	if format == "jpeg" {
		return data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s image: %w", format, err)
	}

	bounds := img.Bounds()
	flat := imaging.Overlay(imaging.New(bounds.Dx(), bounds.Dy(), color.White), img, image.Pt(0, 0), 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, flat, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURI renders data as a base64 data URI.
func DataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
