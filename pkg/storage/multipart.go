package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"video-catalog/pkg/errs"
	"video-catalog/pkg/metrics"
	"video-catalog/pkg/models"
)

const (
	sessionPrefix = ".multipart/"
	sessionFile   = "session.json"
	maxParts      = 10000
)

// ErrInvalidUpload is returned for malformed multipart requests.
var ErrInvalidUpload = errors.New("invalid multipart request")

type session struct {
	Key     string    `json:"key"`
	Created time.Time `json:"created"`
}

// Multipart implements the start/put/complete upload protocol on top of a Store.
// Parts are staged under a hidden per-session prefix and composed on completion.
type Multipart struct {
	store    Store
	partSize int64
	now      func() time.Time
}

// NewMultipart returns a multipart coordinator handing out partSize as the part size.
func NewMultipart(store Store, partSize int64) *Multipart {
	return &Multipart{store: store, partSize: partSize, now: time.Now}
}

// PartSize returns the part size handed to clients.
func (m *Multipart) PartSize() int64 {
	return m.partSize
}

func sessionDir(uploadID string) string {
	return sessionPrefix + uploadID + "/"
}

func partKey(uploadID string, partNumber int) string {
	return fmt.Sprintf("%s%05d", sessionDir(uploadID), partNumber)
}

// Start registers a new upload for key.
func (m *Multipart) Start(ctx context.Context, key string) (models.MultipartStart, error) {
	key = CleanKey(key)
	if key == "" || Hidden(key) {
		return models.MultipartStart{}, fmt.Errorf("%w: bad key %q", ErrInvalidUpload, key)
	}

	uploadID := uuid.NewString()
	data, err := json.Marshal(session{Key: key, Created: m.now().UTC()})
	if err != nil {
		return models.MultipartStart{}, err
	}
	if _, err := m.store.Put(ctx, sessionDir(uploadID)+sessionFile, bytes.NewReader(data), "application/json"); err != nil {
		return models.MultipartStart{}, fmt.Errorf("failed to register upload: %w", err)
	}

	metrics.UploadSessions.WithLabelValues("started").Inc()
	return models.MultipartStart{UploadID: uploadID, PartSize: m.partSize}, nil
}

func (m *Multipart) load(ctx context.Context, key, uploadID string) (session, error) {
	if _, err := uuid.Parse(uploadID); err != nil {
		return session{}, errs.NotFound("upload", uploadID)
	}
	rc, err := m.store.Open(ctx, sessionDir(uploadID)+sessionFile)
	if err != nil {
		if errs.IsNotFound(err) {
			return session{}, errs.NotFound("upload", uploadID)
		}
		return session{}, err
	}
	defer rc.Close()

	var s session
	if err := json.NewDecoder(rc).Decode(&s); err != nil {
		return session{}, fmt.Errorf("failed to decode upload session: %w", err)
	}
	if key != "" && CleanKey(key) != s.Key {
		return session{}, fmt.Errorf("%w: upload %s is for a different key", ErrInvalidUpload, uploadID)
	}
	return s, nil
}

// PutPart stores one part and returns its etag.
func (m *Multipart) PutPart(ctx context.Context, key, uploadID string, partNumber int, r io.Reader) (string, error) {
	if partNumber < 1 || partNumber > maxParts {
		return "", fmt.Errorf("%w: part number %d out of range", ErrInvalidUpload, partNumber)
	}
	if _, err := m.load(ctx, key, uploadID); err != nil {
		return "", err
	}

	etag, err := m.store.Put(ctx, partKey(uploadID, partNumber), r, "application/octet-stream")
	if err != nil {
		return "", fmt.Errorf("failed to store part %d: %w", partNumber, err)
	}
	metrics.UploadParts.Inc()
	return etag, nil
}

// Complete verifies the listed parts and composes them into the final object.
func (m *Multipart) Complete(ctx context.Context, key, uploadID string, parts []models.CompletedPart) error {
	s, err := m.load(ctx, key, uploadID)
	if err != nil {
		return err
	}

	srcs := make([]string, 0, len(parts))
	last := 0
	for _, part := range parts {
		if part.PartNumber <= last {
			return fmt.Errorf("%w: parts must be in ascending order", ErrInvalidUpload)
		}
		last = part.PartNumber

		k := partKey(uploadID, part.PartNumber)
		info, err := m.store.Stat(ctx, k)
		if errs.IsNotFound(err) {
			return fmt.Errorf("%w: part %d was never uploaded", ErrInvalidUpload, part.PartNumber)
		}
		if err != nil {
			return err
		}
		if strings.Trim(part.ETag, `"`) != strings.Trim(info.ETag, `"`) {
			return fmt.Errorf("%w: etag mismatch for part %d", ErrInvalidUpload, part.PartNumber)
		}
		srcs = append(srcs, k)
	}

	if err := m.store.Compose(ctx, s.Key, srcs); err != nil {
		return err
	}
	metrics.UploadSessions.WithLabelValues("completed").Inc()
	return m.discard(ctx, uploadID)
}

// Abort drops a session and every part uploaded for it.
func (m *Multipart) Abort(ctx context.Context, key, uploadID string) error {
	if _, err := m.load(ctx, key, uploadID); err != nil {
		return err
	}
	metrics.UploadSessions.WithLabelValues("aborted").Inc()
	return m.discard(ctx, uploadID)
}

func (m *Multipart) discard(ctx context.Context, uploadID string) error {
	listing, err := m.store.List(ctx, sessionDir(uploadID))
	if err != nil {
		return err
	}
	// session.json goes last so a failed cleanup can still be swept.
	for _, obj := range listing.Objects {
		if strings.HasSuffix(obj.Key, "/"+sessionFile) {
			continue
		}
		if err := m.store.Delete(ctx, obj.Key); err != nil {
			return err
		}
	}
	return m.store.Delete(ctx, sessionDir(uploadID)+sessionFile)
}

// Sweep removes sessions started more than maxAge ago and returns how many were removed.
func (m *Multipart) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	listing, err := m.store.List(ctx, sessionPrefix)
	if err != nil {
		return 0, err
	}

	cutoff := m.now().Add(-maxAge)
	removed := 0
	for _, uploadID := range listing.Prefixes {
		s, err := m.load(ctx, "", uploadID)
		if err != nil && !errs.IsNotFound(err) {
			return removed, err
		}
		if err == nil && s.Created.After(cutoff) {
			continue
		}
		if err := m.discard(ctx, uploadID); err != nil {
			return removed, err
		}
		metrics.UploadSessions.WithLabelValues("swept").Inc()
		removed++
	}
	return removed, nil
}
