package services

import (
	"context"
	"io"
	"mime"
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"

	"video-catalog/pkg/storage"
)

// StoreSource walks an object store (local media root or GCS bucket) as a folder tree.
type StoreSource struct {
	kind  string
	store storage.Store
}

// NewStoreSource wraps store. kind is used in logs and metrics ("fs", "gcs").
func NewStoreSource(kind string, store storage.Store) *StoreSource {
	return &StoreSource{kind: kind, store: store}
}

// Kind returns the source kind
func (s *StoreSource) Kind() string {
	return s.kind
}

// Root returns the folder entry for a key prefix. IDs below it are relative to it.
func (s *StoreSource) Root(_ context.Context, id string) (Entry, error) {
	prefix := storage.NormalizePrefix(id)
	return Entry{
		Name:    path.Base("/" + strings.TrimSuffix(prefix, "/")),
		IsDir:   true,
		locator: prefix,
	}, nil
}

// ListChildren lists one level below dir.
func (s *StoreSource) ListChildren(ctx context.Context, dir Entry) ([]Entry, error) {
	listing, err := s.store.List(ctx, dir.locator)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(listing.Prefixes)+len(listing.Objects))
	for _, name := range listing.Prefixes {
		entries = append(entries, Entry{
			ID:      childID(dir.ID, name),
			Name:    name,
			IsDir:   true,
			locator: dir.locator + name + "/",
		})
	}
	for _, obj := range listing.Objects {
		name := path.Base(obj.Key)
		entries = append(entries, Entry{
			ID:       childID(dir.ID, name),
			Name:     name,
			MimeType: mime.TypeByExtension(strings.ToLower(path.Ext(name))),
			Modified: obj.Uploaded,
			Size:     obj.Size,
			locator:  obj.Key,
		})
	}
	return entries, nil
}

// childID joins a parent id and a name. Names are NFC normalized so the same
// title stored by different filesystems maps to one id.
func childID(parent, name string) string {
	name = norm.NFC.String(name)
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

// Open reads a file entry from the store.
func (s *StoreSource) Open(ctx context.Context, file Entry) (io.ReadCloser, error) {
	return s.store.Open(ctx, file.locator)
}

// URL returns the store URL of a file entry.
func (s *StoreSource) URL(file Entry) (string, error) {
	return s.store.URL(file.locator)
}

// Key returns the object key behind an entry.
func (s *StoreSource) Key(e Entry) string {
	return e.locator
}
