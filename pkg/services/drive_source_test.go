package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"video-catalog/pkg/errs"
	"video-catalog/pkg/logging"
)

type driveFile struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	ModifiedTime string `json:"modifiedTime,omitempty"`
	Thumbnail    string `json:"thumbnailLink,omitempty"`
}

// fakeDrive serves files.list for a fixed folder tree, two files per page.
type fakeDrive struct {
	mu       sync.Mutex
	children map[string][]driveFile
	queries  []string
}

func (f *fakeDrive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/files") {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query().Get("q")
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()

	parent := strings.TrimPrefix(q, "'")
	parent = parent[:strings.Index(parent, "'")]
	files := f.children[parent]

	start := 0
	if tok := r.URL.Query().Get("pageToken"); tok != "" {
		start = len(tok)
	}
	end := start + 2
	resp := map[string]any{}
	if end < len(files) {
		resp["nextPageToken"] = strings.Repeat("x", end)
	} else {
		end = len(files)
	}
	resp["files"] = files[start:end]

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

const folderMime = "application/vnd.google-apps.folder"

func newFakeDrive(t *testing.T) (*fakeDrive, *DriveSource) {
	t.Helper()
	fake := &fakeDrive{children: map[string][]driveFile{
		"root": {
			{ID: "studio1", Name: "Acme", MimeType: folderMime},
		},
		"studio1": {
			{ID: "logo1", Name: "logo.png", MimeType: "image/png"},
			{ID: "show1", Name: "Roadrunner", MimeType: folderMime},
		},
		"show1": {
			{ID: "s2", Name: "Season 2", MimeType: folderMime},
			{ID: "s1", Name: "Season 1", MimeType: folderMime},
			{ID: "extras", Name: "Extras", MimeType: folderMime},
		},
		"s1": {
			{ID: "v1", Name: "Beep_Beep.mp4", MimeType: "video/mp4", ModifiedTime: "2024-03-01T10:00:00Z", Thumbnail: "https://lh3.test/v1"},
			{ID: "v2", Name: "Zip.bin", MimeType: "video/webm"},
			{ID: "doc", Name: "notes.txt", MimeType: "text/plain"},
			{ID: "v3", Name: "Coyote.mkv", MimeType: "application/octet-stream"},
			{ID: "v4", Name: "Crash.mov", MimeType: "video/quicktime"},
		},
		"s2": {
			{ID: "v5", Name: "Later.mp4", MimeType: "video/mp4"},
		},
	}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	src, err := NewDriveSource(context.Background(), "test-key",
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return fake, src
}

func TestDriveListChildrenDrainsPages(t *testing.T) {
	fake, src := newFakeDrive(t)

	entries, err := src.ListChildren(context.Background(), Entry{ID: "s1", IsDir: true, locator: "s1"})
	require.NoError(t, err)
	require.Len(t, entries, 5)
	assert.Equal(t, "v1", entries[0].ID)
	assert.Equal(t, "v4", entries[4].ID)
	assert.Equal(t, "https://lh3.test/v1", entries[0].Thumbnail)
	assert.Equal(t, "https://drive.google.com/thumbnail?id=v2", entries[1].Thumbnail)
	assert.Equal(t, 2024, entries[0].Modified.Year())

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Len(t, fake.queries, 3)
	assert.Equal(t, "'s1' in parents and trashed = false", fake.queries[0])
}

func TestDriveScan(t *testing.T) {
	_, src := newFakeDrive(t)

	cat, err := NewScanner(src, false, logging.Discard()).Scan(context.Background(), []string{"root"})
	require.NoError(t, err)
	require.Len(t, cat.Studios, 1)

	studio := cat.Studios[0]
	assert.Equal(t, "studio1", studio.ID)
	assert.Equal(t, "https://drive.google.com/thumbnail?sz=w1280&id=logo1", studio.Logo)
	require.Len(t, studio.Shows, 1)

	show := studio.Shows[0]
	require.Len(t, show.Seasons, 2)
	assert.Equal(t, "Season 1", show.Seasons[0].Name)
	assert.Equal(t, "Season 2", show.Seasons[1].Name)

	var names []string
	for _, ep := range show.Seasons[0].Episodes {
		names = append(names, ep.Name)
	}
	assert.Equal(t, []string{"Beep Beep", "Coyote", "Crash", "Zip"}, names)

	ep := show.Seasons[0].Episodes[0]
	assert.Equal(t, "https://drive.google.com/file/d/v1/preview", ep.Src)
	assert.Equal(t, "https://lh3.test/v1", ep.Thumb)
	assert.Len(t, cat.Videos, 5)
}

func TestDriveRequiresKeyAndRoot(t *testing.T) {
	_, err := NewDriveSource(context.Background(), "")
	require.Error(t, err)
	assert.True(t, errs.IsConfig(err))

	_, src := newFakeDrive(t)
	_, err = src.Root(context.Background(), "")
	assert.True(t, errs.IsConfig(err))
}

func TestDriveListFailureIsRetrievalError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"denied"}}`, http.StatusForbidden)
	}))
	defer srv.Close()

	src, err := NewDriveSource(context.Background(), "k", option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	_, err = NewScanner(src, false, logging.Discard()).Scan(context.Background(), []string{"root"})
	require.Error(t, err)
	assert.True(t, errs.IsRetrieval(err))
}
