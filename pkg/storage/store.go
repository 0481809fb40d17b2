// Package storage is the flat object-store layer behind both the catalog scan and the
// admin upload API. Keys are slash separated; a "/" delimiter turns key prefixes into folders.
package storage

import (
	"context"
	"io"
	"path"
	"strings"

	"video-catalog/pkg/models"
)

// Store is an object store with folder-style listing.
type Store interface {
	// List returns the immediate sub-prefixes and objects below prefix.
	// All pages are drained before returning.
	List(ctx context.Context, prefix string) (*models.Listing, error)
	// Stat returns size, modification time and etag of a single object.
	Stat(ctx context.Context, key string) (models.ObjectInfo, error)
	// Open opens an object for reading.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Put writes an object and returns its etag.
	Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	// Delete removes an object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Compose concatenates srcs, in order, into dst.
	Compose(ctx context.Context, dst string, srcs []string) error
	// URL returns a URL a browser can fetch the object from.
	URL(key string) (string, error)
}

// CleanKey normalizes a user supplied key: forward slashes, no leading slash,
// no "." or ".." segments.
func CleanKey(key string) string {
	key = strings.ReplaceAll(key, "\\", "/")
	key = path.Clean("/" + key)
	return strings.TrimPrefix(key, "/")
}

// NormalizePrefix returns prefix with a single trailing slash, or "" for the root.
func NormalizePrefix(prefix string) string {
	prefix = CleanKey(prefix)
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// Hidden reports whether a key or prefix segment is internal (dot-prefixed).
func Hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// Walk calls fn for every object below prefix, depth first in listing order.
// Hidden prefixes are skipped.
func Walk(ctx context.Context, s Store, prefix string, fn func(models.ObjectInfo) error) error {
	listing, err := s.List(ctx, prefix)
	if err != nil {
		return err
	}
	for _, obj := range listing.Objects {
		if err := fn(obj); err != nil {
			return err
		}
	}
	prefix = NormalizePrefix(prefix)
	for _, name := range listing.Prefixes {
		if Hidden(name) {
			continue
		}
		if err := Walk(ctx, s, prefix+name, fn); err != nil {
			return err
		}
	}
	return nil
}
