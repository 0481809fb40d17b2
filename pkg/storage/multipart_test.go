package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-catalog/pkg/errs"
	"video-catalog/pkg/models"
)

func newMultipart(t *testing.T) (*FS, *Multipart) {
	t.Helper()
	s, err := NewFS(t.TempDir(), "")
	require.NoError(t, err)
	return s, NewMultipart(s, 4)
}

func TestMultipartLifecycle(t *testing.T) {
	s, m := newMultipart(t)
	ctx := context.Background()

	start, err := m.Start(ctx, "Studio/Show/ep1.mp4")
	require.NoError(t, err)
	assert.Equal(t, int64(4), start.PartSize)
	assert.NotEmpty(t, start.UploadID)

	var parts []models.CompletedPart
	for i, chunk := range []string{"abcd", "efgh", "i"} {
		etag, err := m.PutPart(ctx, "Studio/Show/ep1.mp4", start.UploadID, i+1, strings.NewReader(chunk))
		require.NoError(t, err)
		parts = append(parts, models.CompletedPart{PartNumber: i + 1, ETag: `"` + etag + `"`})
	}

	// Staged parts never show up in listings.
	top, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, top.Prefixes)

	require.NoError(t, m.Complete(ctx, "Studio/Show/ep1.mp4", start.UploadID, parts))

	rc, err := s.Open(ctx, "Studio/Show/ep1.mp4")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "abcdefghi", string(data))

	sessions, err := s.List(ctx, sessionPrefix)
	require.NoError(t, err)
	assert.Empty(t, sessions.Prefixes, "session is cleaned up")

	err = m.Complete(ctx, "Studio/Show/ep1.mp4", start.UploadID, parts)
	assert.True(t, errs.IsNotFound(err))
}

func TestMultipartRejectsBadParts(t *testing.T) {
	_, m := newMultipart(t)
	ctx := context.Background()

	start, err := m.Start(ctx, "k.bin")
	require.NoError(t, err)

	_, err = m.PutPart(ctx, "k.bin", start.UploadID, 0, strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrInvalidUpload)

	_, err = m.PutPart(ctx, "other.bin", start.UploadID, 1, strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrInvalidUpload)

	etag1, err := m.PutPart(ctx, "k.bin", start.UploadID, 1, strings.NewReader("abcd"))
	require.NoError(t, err)
	etag2, err := m.PutPart(ctx, "k.bin", start.UploadID, 2, strings.NewReader("e"))
	require.NoError(t, err)

	err = m.Complete(ctx, "k.bin", start.UploadID, []models.CompletedPart{{PartNumber: 2, ETag: etag2}, {PartNumber: 1, ETag: etag1}})
	assert.ErrorIs(t, err, ErrInvalidUpload)

	err = m.Complete(ctx, "k.bin", start.UploadID, []models.CompletedPart{{PartNumber: 1, ETag: etag2}, {PartNumber: 2, ETag: etag2}})
	assert.ErrorIs(t, err, ErrInvalidUpload)

	err = m.Complete(ctx, "k.bin", start.UploadID, []models.CompletedPart{{PartNumber: 1, ETag: etag1}, {PartNumber: 3, ETag: etag2}})
	assert.ErrorIs(t, err, ErrInvalidUpload)

	_, err = m.PutPart(ctx, "k.bin", "not-a-uuid", 1, strings.NewReader("x"))
	assert.True(t, errs.IsNotFound(err))
}

func TestMultipartStartRejectsHiddenKey(t *testing.T) {
	_, m := newMultipart(t)
	_, err := m.Start(context.Background(), ".multipart/x")
	assert.ErrorIs(t, err, ErrInvalidUpload)
	_, err = m.Start(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidUpload)
}

func TestMultipartAbortAndSweep(t *testing.T) {
	s, m := newMultipart(t)
	ctx := context.Background()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	old, err := m.Start(ctx, "old.bin")
	require.NoError(t, err)
	_, err = m.PutPart(ctx, "old.bin", old.UploadID, 1, strings.NewReader("x"))
	require.NoError(t, err)

	aborted, err := m.Start(ctx, "aborted.bin")
	require.NoError(t, err)
	require.NoError(t, m.Abort(ctx, "aborted.bin", aborted.UploadID))

	now = now.Add(20 * time.Hour)
	fresh, err := m.Start(ctx, "fresh.bin")
	require.NoError(t, err)

	now = now.Add(6 * time.Hour)
	removed, err := m.Sweep(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	sessions, err := s.List(ctx, sessionPrefix)
	require.NoError(t, err)
	assert.Equal(t, []string{fresh.UploadID}, sessions.Prefixes)
}
