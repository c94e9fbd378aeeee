// Package storage provides the blob store consumed by the image message
// path. Implementations return a public URL for each stored object.
package storage

import (
	"context"
	"io"
	"path"

	"github.com/google/uuid"
)

// Storage is the blob store interface
type Storage interface {
	// Upload stores the content and returns its public URL.
	Upload(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (string, error)

	// Delete removes the object behind a previously returned public URL.
	Delete(ctx context.Context, publicURL string) error
}

// objectKey builds a unique key under images/, keeping the original file
// extension so content sniffing keeps working downstream.
func objectKey(filename string) string {
	return "images/" + uuid.New().String() + path.Ext(filename)
}
