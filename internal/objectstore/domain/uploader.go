package domain

import (
	"context"
	"errors"
)

// Uploader stores a local binary under key and returns a resolvable locator.
// Implementations must not modify or remove the local file.
type Uploader interface {
	Upload(ctx context.Context, path, key string) (string, error)
}

var ErrUpload = errors.New("upload_failed")
