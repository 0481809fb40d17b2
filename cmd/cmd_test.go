package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-catalog/pkg/models"
	"video-catalog/pkg/upload"
)

func sampleCatalog() *models.Catalog {
	cat := &models.Catalog{Studios: []models.Studio{{
		ID:   "Acme",
		Name: "Acme",
		Shows: []models.Show{{
			ID:   "Acme/Rockets",
			Name: "Rockets",
			Seasons: []models.Season{
				{ID: "s1", Name: "Season 1", Episodes: []models.Episode{
					{ID: "e1", Name: "Liftoff", Src: "http://media/e1.mp4", Modified: time.Now().Add(-time.Hour)},
					{ID: "e2", Name: "Orbit", Src: "http://media/e2.mp4"},
				}},
				{ID: "s2", Name: "Season 2", Episodes: []models.Episode{
					{ID: "e3", Name: "Landing", Src: "http://media/e3.mp4"},
				}},
			},
		}},
	}}}
	cat.Flatten()
	return cat
}

func TestRenderTablePadsShortRows(t *testing.T) {
	var buf bytes.Buffer
	renderTable(&buf, []string{"Name", "Count"}, [][]string{{"a", "1"}, {"b"}}, []columnAlignment{alignLeft, alignRight})
	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "COUNT")
	assert.Contains(t, out, "a")
	assert.Contains(t, out, "b")
}

func TestRenderTableWithoutHeadersWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	renderTable(&buf, nil, [][]string{{"x"}}, nil)
	assert.Empty(t, buf.String())
}

func TestScanSummaryTotals(t *testing.T) {
	var buf bytes.Buffer
	writeScanSummary(&buf, sampleCatalog(), 1500*time.Millisecond)
	out := buf.String()
	assert.Contains(t, out, "Acme")
	assert.Contains(t, out, "Total")
	assert.Contains(t, out, "Scanned in 1.5s")
}

func TestWriteShowListsEveryEpisode(t *testing.T) {
	var buf bytes.Buffer
	cat := sampleCatalog()
	writeShow(&buf, models.ShowDetail{Show: cat.Studios[0].Shows[0], Studio: "Acme"})
	out := buf.String()
	assert.Contains(t, out, "Show: Rockets")
	assert.Contains(t, out, "Episodes: 3")
	for _, name := range []string{"Liftoff", "Orbit", "Landing", "Season 2", "1 hour ago"} {
		assert.Contains(t, out, name)
	}
}

func TestExportCatalogRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, exportCatalog(&buf, sampleCatalog()))

	var got models.Catalog
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got.Studios, 1)
	assert.Len(t, got.Videos, 3)
}

func TestWriteUploadResultsShowsSizeAndErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ep.mp4")
	require.NoError(t, os.WriteFile(path, make([]byte, 2048), 0o644))

	var buf bytes.Buffer
	writeUploadResults(&buf, []upload.Result{
		{File: upload.File{Path: path, Key: "Acme/ep.mp4"}},
		{File: upload.File{Path: filepath.Join(dir, "gone.mp4"), Key: "Acme/gone.mp4"}, Err: &upload.UploadError{Key: "Acme/gone.mp4", Phase: "start", Status: 500}},
	})
	out := buf.String()
	assert.Contains(t, out, "Acme/ep.mp4")
	assert.Contains(t, out, "2.0 kB")
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "start")
}

func TestLoadConfigAppliesFlags(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("CATALOG_SOURCE", "")
	t.Setenv("MEDIA_ROOT", "")
	t.Setenv("PORT", "")

	sourceKind, mediaRoot, portNumber = "fs", dir, "9999"
	t.Cleanup(func() { sourceKind, mediaRoot, portNumber = "", "", "" })

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "fs", cfg.Source)
	assert.Equal(t, dir, cfg.MediaRoot)
	assert.Equal(t, "9999", cfg.Port)
}

func TestRootRegistersCommands(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"serve", "scan", "list-studios", "list-shows", "show", "export", "upload", "admin", "generate-thumbnails", "fetch-artwork"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}
