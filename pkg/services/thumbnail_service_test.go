package services

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-catalog/pkg/config"
	"video-catalog/pkg/errs"
	"video-catalog/pkg/logging"
)

func writePNG(t *testing.T, path string, striped bool) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			c := color.RGBA{R: 10, G: 10, B: 10, A: 255}
			if striped && (x/5)%2 == 1 {
				c = color.RGBA{R: 250, G: 200, B: 100, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestValidateThumbnail(t *testing.T) {
	dir := t.TempDir()
	solid := filepath.Join(dir, "solid.png")
	striped := filepath.Join(dir, "striped.png")
	writePNG(t, solid, false)
	writePNG(t, striped, true)

	assert.Error(t, validateThumbnail(solid))
	assert.NoError(t, validateThumbnail(striped))
	assert.Error(t, validateThumbnail(filepath.Join(dir, "missing.png")))
}

func TestSampleDifferencesCentersSamplesInCells(t *testing.T) {
	// Two pixel bands: cell corners all land on the dark band, cell centers
	// on the bright one.
	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			c := color.RGBA{R: 10, G: 10, B: 10, A: 255}
			if (x/2)%2 == 1 {
				c = color.RGBA{R: 250, G: 200, B: 100, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	differ, samples := sampleDifferences(img, 10)
	assert.Equal(t, 100, samples)
	assert.Equal(t, 100, differ)
}

func TestThumbnailKey(t *testing.T) {
	assert.Equal(t, "A/B/Season 1/ep1.jpg", ThumbnailKey("A/B/Season 1/ep1.mp4"))
	assert.Equal(t, "x.jpg", ThumbnailKey("x"))
}

func TestFFmpegTimestamp(t *testing.T) {
	assert.Equal(t, "00:00:01.000", ffmpegTimestamp(1000))
	assert.Equal(t, "01:02:03.045", ffmpegTimestamp(3723045))
}

func TestGetSafeFilename(t *testing.T) {
	assert.Equal(t, "A_B_ep.mp4", getSafeFilename("A/B/ep.mp4"))

	long := strings.Repeat("a", 250) + ".mp4"
	safe := getSafeFilename(long)
	assert.Less(t, len(safe), 60)
	assert.True(t, strings.HasSuffix(safe, ".mp4"))
}

func TestBulkGenerateThumbnails(t *testing.T) {
	root := t.TempDir()
	touch(t, root,
		"A/Show/Season 1/has.mp4",
		"A/Show/Season 1/needs.mp4",
		"A/Show/Season 1/broken.mp4",
		"A/Show/logo.png",
	)
	writePNG(t, filepath.Join(root, "A/Show/Season 1/has.png"), true)

	svc, _ := newTestService(t, root)
	var extracted []string
	svc.SetFrameExtractor(func(_ context.Context, video, out string, _ int) error {
		extracted = append(extracted, filepath.Base(video))
		if strings.Contains(video, "broken") {
			return errors.New("no frames")
		}
		writePNG(t, out, true)
		return nil
	})

	res, err := svc.BulkGenerateThumbnails(context.Background(), "", 1000, false, nil)
	require.NoError(t, err)
	assert.Equal(t, ThumbnailResult{Processed: 1, Skipped: 1, Errors: 1}, res)
	assert.Len(t, extracted, 2)
	assert.FileExists(t, filepath.Join(root, "A/Show/Season 1/needs.jpg"))

	cat, err := svc.Catalog(context.Background())
	require.NoError(t, err)
	for _, ep := range cat.Videos {
		if ep.Name == "needs" {
			assert.True(t, strings.HasSuffix(ep.Thumb, "needs.jpg"), ep.Thumb)
		}
	}

	n, err := svc.BulkClearThumbnails(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.FileExists(t, filepath.Join(root, "A/Show/logo.png"))
	assert.NoFileExists(t, filepath.Join(root, "A/Show/Season 1/has.png"))
}

func TestThumbnailsNeedAStore(t *testing.T) {
	cfg := config.Default()
	svc := NewService(cfg, fsSource(t, t.TempDir()), nil, logging.Discard())
	_, err := svc.BulkGenerateThumbnails(context.Background(), "", 0, false, nil)
	assert.ErrorIs(t, err, ErrNoStore)
	assert.ErrorIs(t, svc.GenerateThumbnail(context.Background(), "x.mp4", 0, nil), ErrNoStore)
}

func TestFetchShowArtwork(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "Acme/Road Runner (1949)/ep1.mp4")

	var (
		mu    sync.Mutex
		query string
	)
	tmdb := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/3/search/tv":
			mu.Lock()
			query = r.URL.Query().Get("query")
			mu.Unlock()
			_, _ = w.Write([]byte(`{"results":[
				{"id":1,"name":"Road Runner Returns","backdrop_path":"/other.jpg","first_air_date":"2001-01-01"},
				{"id":2,"name":"Road Runner","backdrop_path":"/rr.jpg","first_air_date":"1949-09-17"},
				{"id":3,"name":"Road Runner Show","poster_path":null}
			]}`))
		case r.URL.Path == "/img/w1280/rr.jpg":
			_, _ = w.Write([]byte("jpeg-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer tmdb.Close()

	svc, _ := newTestService(t, root, func(c *config.Config) { c.TMDBAPIKey = "k" })
	svc.SetTMDbEndpoints(tmdb.URL+"/3", tmdb.URL+"/img")

	results, err := svc.SearchArtwork(context.Background(), "Road Runner")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "1949", results[1].Year)

	err = svc.FetchShowArtwork(context.Background(), "Acme/Road Runner (1949)", "", nil)
	require.NoError(t, err)
	mu.Lock()
	assert.Equal(t, "Road Runner", query)
	mu.Unlock()

	data, err := os.ReadFile(filepath.Join(root, "Acme/Road Runner (1949)/banner.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	detail, err := svc.Show(context.Background(), "Acme/Road Runner (1949)")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(detail.Banner, "/banner.jpg"))

	err = svc.FetchShowArtwork(context.Background(), "Acme/Nope", "", nil)
	assert.True(t, errs.IsNotFound(err))
}

func TestArtworkNeedsAPIKey(t *testing.T) {
	svc, _ := newTestService(t, t.TempDir())
	_, err := svc.SearchArtwork(context.Background(), "x")
	assert.True(t, errs.IsConfig(err))
}

func TestCleanShowTitle(t *testing.T) {
	assert.Equal(t, "The Pepperonis", cleanShowTitle("The Pepperonis (1998) [DVD]"))
	assert.Equal(t, "Road Runner", cleanShowTitle("Road_Runner"))
}
