package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"video-catalog/pkg/errs"
	"video-catalog/pkg/models"
)

// maxComposeSources is the GCS limit on sources per compose request.
const maxComposeSources = 32

// GCS is a Store backed by a Google Cloud Storage bucket.
type GCS struct {
	client     *storage.Client
	bucket     *storage.BucketHandle
	name       string
	publicBase string
}

// NewGCS creates a bucket store. When publicBase is empty, URL returns 24-hour signed URLs.
func NewGCS(ctx context.Context, bucketName, publicBase string, opts ...option.ClientOption) (*GCS, error) {
	if bucketName == "" {
		return nil, errs.Missing("BUCKET_NAME")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCS{
		client:     client,
		bucket:     client.Bucket(bucketName),
		name:       bucketName,
		publicBase: strings.TrimSuffix(publicBase, "/"),
	}, nil
}

// Close releases the storage client.
func (s *GCS) Close() error {
	return s.client.Close()
}

// List iterates every page of objects below prefix using "/" as delimiter.
func (s *GCS) List(ctx context.Context, prefix string) (*models.Listing, error) {
	prefix = NormalizePrefix(prefix)
	listing := &models.Listing{Prefixes: []string{}, Objects: []models.ObjectInfo{}}

	it := s.bucket.Objects(ctx, &storage.Query{Prefix: prefix, Delimiter: "/"})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, errs.Retrieval("list gs://"+s.name+"/"+prefix, err)
		}

		if attrs.Prefix != "" {
			name := strings.TrimSuffix(strings.TrimPrefix(attrs.Prefix, prefix), "/")
			if name != "" && !Hidden(name) {
				listing.Prefixes = append(listing.Prefixes, name)
			}
			continue
		}

		name := strings.TrimPrefix(attrs.Name, prefix)
		if name == "" || Hidden(name) {
			continue // folder placeholder objects
		}
		listing.Objects = append(listing.Objects, models.ObjectInfo{
			Key:      attrs.Name,
			Size:     attrs.Size,
			Uploaded: attrs.Updated.UTC(),
			ETag:     attrs.Etag,
		})
	}
	return listing, nil
}

// Stat returns object attributes.
func (s *GCS) Stat(ctx context.Context, key string) (models.ObjectInfo, error) {
	key = CleanKey(key)
	attrs, err := s.bucket.Object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return models.ObjectInfo{}, errs.NotFound("object", key)
	}
	if err != nil {
		return models.ObjectInfo{}, errs.Retrieval("stat "+key, err)
	}
	return models.ObjectInfo{
		Key:      key,
		Size:     attrs.Size,
		Uploaded: attrs.Updated.UTC(),
		ETag:     attrs.Etag,
	}, nil
}

// Open opens an object reader.
func (s *GCS) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	key = CleanKey(key)
	reader, err := s.bucket.Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, errs.NotFound("object", key)
	}
	if err != nil {
		return nil, errs.Retrieval(fmt.Sprintf("Object(%q).NewReader", key), err)
	}
	return reader, nil
}

// Put uploads r to key.
func (s *GCS) Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	key = CleanKey(key)
	if key == "" {
		return "", fmt.Errorf("empty key")
	}

	// Cancelling the writer's context abandons the upload; Close would commit it.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writer := s.bucket.Object(key).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := io.Copy(writer, r); err != nil {
		cancel()
		return "", fmt.Errorf("Writer.Write: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("Writer.Close: %w", err)
	}
	return writer.Attrs().Etag, nil
}

// Delete removes an object; a missing object is ignored.
func (s *GCS) Delete(ctx context.Context, key string) error {
	err := s.bucket.Object(CleanKey(key)).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Compose joins srcs into dst, folding batches into dst when there are more
// sources than a single compose call accepts.
func (s *GCS) Compose(ctx context.Context, dst string, srcs []string) error {
	dst = CleanKey(dst)
	if len(srcs) == 0 {
		_, err := s.Put(ctx, dst, strings.NewReader(""), "")
		return err
	}

	target := s.bucket.Object(dst)
	for _, batch := range composeBatches(len(srcs)) {
		handles := make([]*storage.ObjectHandle, 0, maxComposeSources)
		if batch.withTarget {
			handles = append(handles, target)
		}
		for _, src := range srcs[batch.start:batch.end] {
			handles = append(handles, s.bucket.Object(CleanKey(src)))
		}
		if _, err := target.ComposerFrom(handles...).Run(ctx); err != nil {
			return fmt.Errorf("failed to compose %s: %w", dst, err)
		}
	}
	return nil
}

type composeBatch struct {
	start, end int
	withTarget bool
}

// composeBatches splits n sources into compose calls. Every call after the
// first re-includes the partially composed target as its first source.
func composeBatches(n int) []composeBatch {
	var batches []composeBatch
	start := 0
	for start < n {
		size := maxComposeSources
		withTarget := start > 0
		if withTarget {
			size--
		}
		end := start + size
		if end > n {
			end = n
		}
		batches = append(batches, composeBatch{start: start, end: end, withTarget: withTarget})
		start = end
	}
	return batches
}

// URL returns a public URL when a base is configured, otherwise a signed 24-hour URL.
func (s *GCS) URL(key string) (string, error) {
	key = CleanKey(key)
	if s.publicBase != "" {
		parts := strings.Split(key, "/")
		for i, part := range parts {
			parts[i] = url.PathEscape(part)
		}
		return s.publicBase + "/" + strings.Join(parts, "/"), nil
	}
	return s.bucket.SignedURL(key, &storage.SignedURLOptions{
		Expires: time.Now().Add(24 * time.Hour),
		Method:  "GET",
	})
}
