// Package storage publishes token images and metadata documents to
// content-addressed storage and returns their public URIs.
package storage

import (
	"context"
	"errors"
)

var (
	ErrNotConfigured = errors.New("storage: backend not configured")
	ErrEmptyURI      = errors.New("storage: upload response has empty uri")
)

const jsonContentType = "application/json"

// Uploader stores one object and returns a URI anyone can fetch it from.
type Uploader interface {
	Upload(ctx context.Context, name, contentType string, data []byte) (string, error)
}
