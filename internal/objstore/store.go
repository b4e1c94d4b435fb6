// Package objstore reaches the S3 compatible bucket holding uploaded files.
package objstore

import (
	"context"
	"io"
	"time"
)

type ObjectStore interface {
	// PresignPut returns a URL accepting a single PUT of key until expiry.
	PresignPut(ctx context.Context, key string, expiry time.Duration) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
	PublicURL(key string) string
}
