package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStore keeps images on the local filesystem.
type LocalStore struct {
	BaseDir string
}

// NewLocalStore constructs a store that writes to the provided directory.
// If baseDir is empty, a furnish directory under os.TempDir() is used.
func NewLocalStore(baseDir string) (*LocalStore, error) {
	dir := baseDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "furnish-media")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create local media dir: %w", err)
	}
	return &LocalStore{BaseDir: dir}, nil
}

// Upload writes the content under a random name. The key is the file name
// relative to BaseDir; no public URL is produced.
func (l *LocalStore) Upload(_ context.Context, input UploadInput) (UploadResult, error) {
	if input.Body == nil {
		return UploadResult{}, fmt.Errorf("upload body is required")
	}

	ext := strings.ToLower(filepath.Ext(input.Filename))
	if len(ext) > 10 {
		ext = ext[:10]
	}
	key := uuid.NewString() + ext

	file, err := os.OpenFile(l.path(key), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return UploadResult{}, fmt.Errorf("create media file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, input.Body); err != nil {
		os.Remove(file.Name())
		return UploadResult{}, fmt.Errorf("write media file: %w", err)
	}

	return UploadResult{Key: key}, nil
}

// Fetch reads a stored file; the content type is derived from its extension.
func (l *LocalStore) Fetch(_ context.Context, key string) (Object, error) {
	data, err := os.ReadFile(l.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Object{}, ErrObjectNotFound
		}
		return Object{}, fmt.Errorf("read media file: %w", err)
	}
	return Object{
		Key:         key,
		ContentType: mime.TypeByExtension(filepath.Ext(key)),
		Data:        data,
	}, nil
}

// Delete removes a stored file.
func (l *LocalStore) Delete(_ context.Context, key string) error {
	if err := os.Remove(l.path(key)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("remove media file: %w", err)
	}
	return nil
}

// path confines keys to BaseDir.
func (l *LocalStore) path(key string) string {
	return filepath.Join(l.BaseDir, filepath.Base(filepath.Clean("/"+key)))
}
