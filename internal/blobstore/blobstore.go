// Package blobstore wraps the external object-storage capability. It defines
// the Store port and an S3 implementation. A missing object is reported as
// ErrNotFound, distinct from every other transfer failure, because the
// orchestrator treats a vanished source as a benign skip.
package blobstore

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Download when the object does not exist in the
// bucket.
var ErrNotFound = errors.New("object not found")

// Store is the port for blob storage.
type Store interface {
	// Download fetches bucket/key into the local file at destPath.
	// Returns ErrNotFound if the object does not exist, or a *TransferError
	// for any other failure.
	Download(ctx context.Context, bucket, key, destPath string) error

	// Upload stores the local file at srcPath as bucket/key and marks the
	// object publicly readable. Returns a *TransferError on failure.
	Upload(ctx context.Context, srcPath, bucket, key string) error
}

// TransferError represents a storage failure other than "not found", such as
// a network, permission, or quota error.
type TransferError struct {
	Op     string // "download" or "upload"
	Bucket string
	Key    string
	Err    error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s s3://%s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}
