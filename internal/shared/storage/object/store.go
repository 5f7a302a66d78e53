package object

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"invoice-backend/internal/shared/util"
)

// ErrNotFound is returned when a storage key does not exist.
var ErrNotFound = errors.New("object not found")

// Object describes a stored blob.
type Object struct {
	Key      string
	Size     int64
	MimeType string
}

// Location addresses a blob inside its backing bucket, in the form external
// services (the analysis engine) expect.
type Location struct {
	Bucket string
	Key    string
}

// ObjectStore defines the contract for saving and retrieving binary objects.
type ObjectStore interface {
	Save(ctx context.Context, ownerID string, fileName string, r io.Reader) (Object, error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Delete(ctx context.Context, storageKey string) error
	Presign(ctx context.Context, storageKey string, ttl time.Duration) (string, error)
	Locate(storageKey string) Location
}

// NewKey builds the storage key for an upload: invoices/{owner}/{unix-ms}-{name}.
func NewKey(ownerID, fileName string, now time.Time) (string, error) {
	name, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", fmt.Errorf("sanitize file name: %w", err)
	}
	return path.Join("invoices", util.ShortHash(ownerID, 16), fmt.Sprintf("%d-%s", now.UnixMilli(), name)), nil
}
