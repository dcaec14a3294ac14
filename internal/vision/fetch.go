package vision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"furnishAi/internal/media"
)

// MaxProductImageBytes bounds a downloaded product photo.
const MaxProductImageBytes = 10 * 1024 * 1024

// ErrProductImage marks a product photo that could not be downloaded or decoded.
var ErrProductImage = errors.New("could not process the furniture image from the URL")

// ProductFetcher downloads product photos and normalizes them to JPEG.
type ProductFetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewProductFetcher builds a fetcher. A nil client gets a 30s timeout client.
func NewProductFetcher(client *http.Client) *ProductFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ProductFetcher{client: client, maxBytes: MaxProductImageBytes}
}

// Fetch returns the photo at imageURL as JPEG. Errors name the URL.
func (f *ProductFetcher) Fetch(ctx context.Context, imageURL string) ([]byte, error) {
	data, err := f.download(ctx, imageURL)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrProductImage, imageURL, err)
	}
	jpegData, err := media.ToJPEG(data)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrProductImage, imageURL, err)
	}
	return jpegData, nil
}

func (f *ProductFetcher) download(ctx context.Context, imageURL string) ([]byte, error) {
	parsed, err := url.Parse(strings.TrimSpace(imageURL))
	if err != nil {
		return nil, err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mediaType, _, _ := mime.ParseMediaType(ct)
		if !strings.HasPrefix(mediaType, "image/") && mediaType != "application/octet-stream" {
			return nil, fmt.Errorf("unexpected content type %q", ct)
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", f.maxBytes)
	}
	return data, nil
}
