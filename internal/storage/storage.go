package storage

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("picture not found")
	ErrUnsupportedType = errors.New("picture must be a jpg, jpeg, png, gif or webp image")
	ErrInvalidName     = errors.New("invalid picture name")
)

var allowedExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// PictureStore keeps owner profile pictures under flat names.
type PictureStore interface {
	Save(ctx context.Context, name string, r io.Reader, size int64) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Remove(ctx context.Context, name string) error
}

// NewName derives a stored file name from the client's file name, keeping
// only its extension.
func NewName(original string) (string, error) {
	ext := strings.ToLower(filepath.Ext(original))
	if _, ok := allowedExt[ext]; !ok {
		return "", ErrUnsupportedType
	}
	return uuid.NewString() + ext, nil
}

func ContentType(name string) string {
	if ct, ok := allowedExt[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

func checkName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return ErrInvalidName
	}
	return nil
}
