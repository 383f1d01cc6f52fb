package storage

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"gcs", &googleapi.Error{Code: http.StatusForbidden}, http.StatusForbidden},
		{"wrapped gcs", fmt.Errorf("upload: %w", &googleapi.Error{Code: http.StatusNotFound}), http.StatusNotFound},
		{"minio", minio.ErrorResponse{StatusCode: http.StatusServiceUnavailable}, http.StatusServiceUnavailable},
		{"wrapped minio", fmt.Errorf("upload: %w", minio.ErrorResponse{StatusCode: http.StatusConflict}), http.StatusConflict},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}

func TestMinIOObjectURL(t *testing.T) {
	s := &MinIOStorage{endpoint: "minio:9000"}
	assert.Equal(t, "http://minio:9000/backups/a.jsonl", s.objectURL("backups", "a.jsonl"))

	s.useSSL = true
	assert.Equal(t, "https://minio:9000/backups/a.jsonl", s.objectURL("backups", "a.jsonl"))

	s.publicURL = "https://files.example.com/"
	assert.Equal(t, "https://files.example.com/backups/a.jsonl", s.objectURL("backups", "a.jsonl"))
}
