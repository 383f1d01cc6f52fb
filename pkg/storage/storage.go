// Package storage writes backup objects to a bucket store.
package storage

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"google.golang.org/api/googleapi"
)

// ObjectStore defines the interface for object storage operations
type ObjectStore interface {
	Put(ctx context.Context, bucket, name string, r io.Reader, size int64, contentType string) (*Object, error)
}

// Object describes a stored object
type Object struct {
	Bucket string
	Key    string
	Size   int64
	URL    string
}

// StatusCode extracts the HTTP status of a failed storage call. Errors that
// carry no status report 500.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code != 0 {
		return gerr.Code
	}
	var merr minio.ErrorResponse
	if errors.As(err, &merr) && merr.StatusCode != 0 {
		return merr.StatusCode
	}
	return http.StatusInternalServerError
}
