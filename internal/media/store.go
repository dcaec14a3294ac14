package media

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrDisabled indicates that no object storage is configured.
	ErrDisabled = errors.New("media store disabled")
	// ErrObjectNotFound is returned by Fetch and Delete for unknown keys.
	ErrObjectNotFound = errors.New("media object not found")
)

// UploadInput wraps the payload required for persisting a file.
type UploadInput struct {
	Filename    string
	ContentType string
	Body        io.Reader
	Size        int64
}

// UploadResult captures the canonical object key and its accessible URL.
// URL is empty when the backend has no public address.
type UploadResult struct {
	Key string
	URL string
}

// Object is a stored file read back into memory.
type Object struct {
	Key         string
	ContentType string
	Data        []byte
}

// Store hides the backing implementation for storing room and blend images.
type Store interface {
	Upload(ctx context.Context, input UploadInput) (UploadResult, error)
	Fetch(ctx context.Context, key string) (Object, error)
	Delete(ctx context.Context, key string) error
}

type disabledStore struct{}

func (disabledStore) Upload(context.Context, UploadInput) (UploadResult, error) {
	return UploadResult{}, ErrDisabled
}

func (disabledStore) Fetch(context.Context, string) (Object, error) {
	return Object{}, ErrDisabled
}

func (disabledStore) Delete(context.Context, string) error {
	return ErrDisabled
}

// Disabled returns a store that always signals disabled storage.
func Disabled() Store {
	return disabledStore{}
}

// Open returns the S3 store when cfg is complete, otherwise a local store in localDir.
// The second result names the backend for logging.
func Open(ctx context.Context, cfg Config, localDir string) (Store, string, error) {
	if cfg.Enabled() {
		store, err := NewS3Store(ctx, cfg)
		if err != nil {
			return nil, "", err
		}
		return store, "s3", nil
	}
	store, err := NewLocalStore(localDir)
	if err != nil {
		return nil, "", err
	}
	return store, "local", nil
}
