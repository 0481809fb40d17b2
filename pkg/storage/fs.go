package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"video-catalog/pkg/errs"
	"video-catalog/pkg/models"
)

// FS is a Store rooted at a local directory.
type FS struct {
	root       string
	publicBase string
}

// NewFS returns a filesystem store. publicBase is the URL prefix the root is served under.
func NewFS(root, publicBase string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &errs.ConfigError{Setting: "MEDIA_ROOT", Err: err}
	}
	return &FS{root: abs, publicBase: strings.TrimSuffix(publicBase, "/")}, nil
}

// Root returns the absolute directory the store is rooted at.
func (s *FS) Root() string {
	return s.root
}

func (s *FS) path(key string) (string, error) {
	p := filepath.Join(s.root, filepath.FromSlash(CleanKey(key)))
	if !IsSubpath(s.root, p) {
		return "", os.ErrPermission
	}
	return p, nil
}

// List returns the directories and regular files directly below prefix.
func (s *FS) List(_ context.Context, prefix string) (*models.Listing, error) {
	prefix = NormalizePrefix(prefix)
	listing := &models.Listing{Prefixes: []string{}, Objects: []models.ObjectInfo{}}

	dir, err := s.path(prefix)
	if err != nil {
		return nil, errs.Retrieval("list "+prefix, err)
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return listing, nil
	}
	if err != nil {
		return nil, errs.Retrieval("list "+prefix, err)
	}

	for _, e := range entries {
		name := e.Name()
		if Hidden(name) {
			continue
		}
		if e.IsDir() {
			listing.Prefixes = append(listing.Prefixes, name)
			continue
		}
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // removed between ReadDir and Info
		}
		listing.Objects = append(listing.Objects, models.ObjectInfo{
			Key:      prefix + name,
			Size:     info.Size(),
			Uploaded: info.ModTime().UTC(),
		})
	}

	sort.Strings(listing.Prefixes)
	sort.Slice(listing.Objects, func(i, j int) bool {
		return listing.Objects[i].Key < listing.Objects[j].Key
	})
	return listing, nil
}

// Stat returns object metadata. The etag is the hex MD5 of the content.
func (s *FS) Stat(_ context.Context, key string) (models.ObjectInfo, error) {
	p, err := s.path(key)
	if err != nil {
		return models.ObjectInfo{}, err
	}
	fi, err := os.Stat(p)
	if errors.Is(err, os.ErrNotExist) || (err == nil && fi.IsDir()) {
		return models.ObjectInfo{}, errs.NotFound("object", key)
	}
	if err != nil {
		return models.ObjectInfo{}, errs.Retrieval("stat "+key, err)
	}

	f, err := os.Open(p)
	if err != nil {
		return models.ObjectInfo{}, errs.Retrieval("stat "+key, err)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return models.ObjectInfo{}, errs.Retrieval("stat "+key, err)
	}

	return models.ObjectInfo{
		Key:      CleanKey(key),
		Size:     fi.Size(),
		Uploaded: fi.ModTime().UTC(),
		ETag:     hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// Open opens a file for reading.
func (s *FS) Open(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errs.NotFound("object", key)
	}
	if err != nil {
		return nil, errs.Retrieval("open "+key, err)
	}
	return f, nil
}

// Put writes r to key through a temporary file and renames it into place.
func (s *FS) Put(_ context.Context, key string, r io.Reader, _ string) (string, error) {
	p, err := s.path(key)
	if err != nil {
		return "", err
	}
	if CleanKey(key) == "" {
		return "", fmt.Errorf("empty key")
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".put-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	h := md5.New()
	if _, err := io.Copy(io.MultiWriter(tmp, h), r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return "", fmt.Errorf("failed to move %s into place: %w", key, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Delete removes a file and any directories it leaves empty.
func (s *FS) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	for dir := filepath.Dir(p); dir != s.root && IsSubpath(s.root, dir); dir = filepath.Dir(dir) {
		if os.Remove(dir) != nil {
			break
		}
	}
	return nil
}

// Compose concatenates srcs into dst.
func (s *FS) Compose(ctx context.Context, dst string, srcs []string) error {
	readers := make([]io.Reader, 0, len(srcs))
	for _, src := range srcs {
		rc, err := s.Open(ctx, src)
		if err != nil {
			return err
		}
		defer rc.Close()
		readers = append(readers, rc)
	}
	_, err := s.Put(ctx, dst, io.MultiReader(readers...), "")
	return err
}

// URL maps a key to the public media base.
func (s *FS) URL(key string) (string, error) {
	parts := strings.Split(CleanKey(key), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return s.publicBase + "/" + strings.Join(parts, "/"), nil
}

// IsSubpath ensures child is within root, preventing path traversal.
func IsSubpath(root, child string) bool {
	absRoot, _ := filepath.Abs(root)
	absChild, _ := filepath.Abs(child)
	rel, err := filepath.Rel(absRoot, absChild)
	if err != nil {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != ".."
}
