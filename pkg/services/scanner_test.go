package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-catalog/pkg/errs"
	"video-catalog/pkg/logging"
	"video-catalog/pkg/models"
	"video-catalog/pkg/storage"
)

func touch(t *testing.T, root string, rel ...string) {
	t.Helper()
	for _, r := range rel {
		p := filepath.Join(root, filepath.FromSlash(r))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(r), 0o644))
	}
}

func mkdir(t *testing.T, root string, rel ...string) {
	t.Helper()
	for _, r := range rel {
		require.NoError(t, os.MkdirAll(filepath.Join(root, filepath.FromSlash(r)), 0o755))
	}
}

func fsSource(t *testing.T, root string) *StoreSource {
	t.Helper()
	fs, err := storage.NewFS(root, "http://media.test/media")
	require.NoError(t, err)
	return NewStoreSource("fs", fs)
}

func scan(t *testing.T, root string, roots ...string) *models.Catalog {
	t.Helper()
	if len(roots) == 0 {
		roots = []string{""}
	}
	cat, err := NewScanner(fsSource(t, root), false, logging.Discard()).Scan(context.Background(), roots)
	require.NoError(t, err)
	return cat
}

func TestScanSeasonFolders(t *testing.T) {
	root := t.TempDir()
	touch(t, root,
		"StudioA/ShowX/Season 1/ep1.mp4",
		"StudioA/ShowX/Season 1/ep2.mp4",
	)

	cat := scan(t, root)
	detail, ok := FindShow(cat, "StudioA/ShowX")
	require.True(t, ok)

	assert.Equal(t, "StudioA", detail.Studio)
	require.Len(t, detail.Seasons, 1)
	season := detail.Seasons[0]
	assert.Equal(t, "Season 1", season.Name)
	assert.Equal(t, "StudioA/ShowX/Season 1", season.ID)
	require.Len(t, season.Episodes, 2)
	assert.Equal(t, "ep1", season.Episodes[0].Name)
	assert.Equal(t, "ep2", season.Episodes[1].Name)
	assert.Equal(t, "StudioA/ShowX/Season 1/ep1.mp4", season.Episodes[0].ID)
	assert.Equal(t, "http://media.test/media/StudioA/ShowX/Season%201/ep1.mp4", season.Episodes[0].Src)
}

func TestScanSynthesizesSeasonOne(t *testing.T) {
	root := t.TempDir()
	touch(t, root,
		"StudioA/Flat/pilot.mkv",
		"StudioA/Flat/finale.webm",
		"StudioA/Flat/notes.txt",
	)

	cat := scan(t, root)
	detail, ok := FindShow(cat, "StudioA/Flat")
	require.True(t, ok)
	require.Len(t, detail.Seasons, 1)
	assert.Equal(t, "Season 1", detail.Seasons[0].Name)
	assert.Equal(t, "StudioA/Flat/Season 1", detail.Seasons[0].ID)

	var names []string
	for _, ep := range detail.Seasons[0].Episodes {
		names = append(names, ep.Name)
	}
	assert.Equal(t, []string{"finale", "pilot"}, names)
}

func TestScanDropsShowsWithoutEpisodes(t *testing.T) {
	root := t.TempDir()
	touch(t, root,
		"StudioA/Real/Season 1/ep1.mp4",
		"StudioA/Hollow/Season 1/readme.txt",
	)
	mkdir(t, root, "StudioA/Hollow/Season 2", "StudioA/Nothing")

	cat := scan(t, root)
	require.Len(t, cat.Studios, 1)
	require.Len(t, cat.Studios[0].Shows, 1)
	assert.Equal(t, "Real", cat.Studios[0].Shows[0].Name)

	_, ok := FindShow(cat, "StudioA/Hollow")
	assert.False(t, ok)
}

func TestScanOrdersSeasonsNumerically(t *testing.T) {
	root := t.TempDir()
	touch(t, root,
		"S/Show/Season 10/a.mp4",
		"S/Show/Season 2/b.mp4",
		"S/Show/season 1/c.mp4",
	)

	cat := scan(t, root)
	var names []string
	for _, season := range cat.Studios[0].Shows[0].Seasons {
		names = append(names, season.Name)
	}
	assert.Equal(t, []string{"season 1", "Season 2", "Season 10"}, names)
}

func TestScanEveryEpisodeExactlyOnce(t *testing.T) {
	root := t.TempDir()
	files := []string{
		"A/One/Season 1/e1.mp4",
		"A/One/Season 1/e2.m4v",
		"A/One/Season 2/e3.mov",
		"A/Two/x.mp4",
		"B/Three/Season 3/y.avi",
		"B/Three/Season 3/y.jpg",
	}
	touch(t, root, files...)

	cat := scan(t, root)

	seen := map[string]int{}
	for _, studio := range cat.Studios {
		for _, show := range studio.Shows {
			for _, season := range show.Seasons {
				for _, ep := range season.Episodes {
					seen[ep.ID]++
				}
			}
		}
	}
	assert.Len(t, seen, 5)
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
	assert.Len(t, cat.Videos, 5)
}

func TestScanArtworkAndThumbnails(t *testing.T) {
	root := t.TempDir()
	touch(t, root,
		"StudioA/logo.png",
		"StudioA/ShowX/logo.jpg",
		"StudioA/ShowX/logo.png",
		"StudioA/ShowX/banner.webp",
		"StudioA/ShowX/Season 1/cover.jpg",
		"StudioA/ShowX/Season 1/the_big-day.mp4",
		"StudioA/ShowX/Season 1/the_big-day.png",
		"StudioA/ShowX/Season 1/other.mp4",
		"StudioA/ShowX/Season 2/plain.mp4",
	)

	cat := scan(t, root)
	studio := cat.Studios[0]
	assert.Equal(t, "http://media.test/media/StudioA/logo.png", studio.Logo)

	show := studio.Shows[0]
	assert.Equal(t, "http://media.test/media/StudioA/ShowX/logo.jpg", show.Logo, "first match in name order")
	assert.Equal(t, "http://media.test/media/StudioA/ShowX/banner.webp", show.Banner)

	s1 := show.Seasons[0]
	assert.Equal(t, "http://media.test/media/StudioA/ShowX/Season%201/cover.jpg", s1.Thumb)
	require.Len(t, s1.Episodes, 2)
	assert.Equal(t, "other", s1.Episodes[0].Name)
	assert.Equal(t, s1.Thumb, s1.Episodes[0].Thumb)
	assert.Equal(t, "the big day", s1.Episodes[1].Name)
	assert.Equal(t, "http://media.test/media/StudioA/ShowX/Season%201/the_big-day.png", s1.Episodes[1].Thumb)

	s2 := show.Seasons[1]
	assert.Equal(t, show.Logo, s2.Thumb)
	assert.Equal(t, show.Logo, s2.Episodes[0].Thumb)
}

func TestScanIgnoresHiddenAndLogoFolders(t *testing.T) {
	root := t.TempDir()
	touch(t, root,
		"StudioA/logo/x.mp4",
		"StudioA/.trash/Season 1/x.mp4",
		"StudioA/Show/ep.mp4",
		".multipart/abc/00001",
	)

	cat := scan(t, root)
	require.Len(t, cat.Studios, 1)
	require.Len(t, cat.Studios[0].Shows, 1)
	assert.Equal(t, "Show", cat.Studios[0].Shows[0].Name)
}

func TestScanIDsAreStable(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "A/B/Season 1/e.mp4", "A/C/f.mp4")

	first := scan(t, root)
	second := scan(t, root)
	assert.Equal(t, first, second)
}

func TestScanMergesDuplicateRoots(t *testing.T) {
	root := t.TempDir()
	touch(t, root,
		"one/StudioA/ShowX/Season 1/ep1.mp4",
		"one/StudioA/OnlyOne/a.mp4",
		"two/StudioA/ShowX/Season 1/ep2.mp4",
		"two/StudioA/ShowX/Season 2/ep3.mp4",
		"two/StudioB/Other/b.mp4",
	)

	cat := scan(t, root, "one", "two")
	require.Len(t, cat.Studios, 2)
	studioA := cat.Studios[0]
	assert.Equal(t, "StudioA", studioA.Name)
	require.Len(t, studioA.Shows, 2)

	detail, ok := FindShow(cat, "StudioA/ShowX")
	require.True(t, ok)
	require.Len(t, detail.Seasons, 2)
	assert.Len(t, detail.Seasons[0].Episodes, 2)
	assert.Len(t, detail.Seasons[1].Episodes, 1)
	assert.Len(t, cat.Videos, 5)
}

func TestScanKeepsSamePathUnderTwoRoots(t *testing.T) {
	root := t.TempDir()
	touch(t, root,
		"one/StudioA/ShowX/Season 1/ep1.mp4",
		"two/StudioA/ShowX/Season 1/ep1.mp4",
	)

	cat := scan(t, root, "one", "two")
	require.Len(t, cat.Videos, 2)
	assert.NotEqual(t, cat.Videos[0].ID, cat.Videos[1].ID)
	assert.Contains(t, cat.Videos[0].Src, "/one/")
	assert.Contains(t, cat.Videos[1].Src, "/two/")
}

func TestScanMergedSeasonKeepsNaturalOrder(t *testing.T) {
	root := t.TempDir()
	touch(t, root,
		"one/StudioA/ShowX/Season 1/ep2.mp4",
		"one/StudioA/ShowX/Season 1/ep10.mp4",
		"two/StudioA/ShowX/Season 1/ep1.mp4",
	)

	cat := scan(t, root, "one", "two")
	detail, ok := FindShow(cat, "StudioA/ShowX")
	require.True(t, ok)
	require.Len(t, detail.Seasons, 1)
	var names []string
	for _, ep := range detail.Seasons[0].Episodes {
		names = append(names, ep.Name)
	}
	assert.Equal(t, []string{"ep1", "ep2", "ep10"}, names)
}

func TestScanSameRootTwiceDropsDuplicates(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "StudioA/ShowX/Season 1/ep1.mp4")

	cat := scan(t, root, "", "")
	assert.Len(t, cat.Videos, 1)
}

func TestScanStrictRootsRejectsDuplicates(t *testing.T) {
	root := t.TempDir()
	touch(t, root,
		"one/StudioA/ShowX/ep1.mp4",
		"two/StudioA/ShowY/ep2.mp4",
	)

	_, err := NewScanner(fsSource(t, root), true, logging.Discard()).Scan(context.Background(), []string{"one", "two"})
	require.Error(t, err)
	assert.True(t, errs.IsConfig(err))
}

func TestScanEmptyRoot(t *testing.T) {
	cat := scan(t, t.TempDir())
	assert.NotNil(t, cat.Studios)
	assert.Empty(t, cat.Studios)
	assert.Empty(t, cat.Videos)
}

func TestEpisodeName(t *testing.T) {
	assert.Equal(t, "ep1", EpisodeName("ep1.mp4"))
	assert.Equal(t, "The Big Day", EpisodeName("The__Big--Day.mkv"))
	assert.Equal(t, "x", EpisodeName("_x_.mov"))
}

func TestIsSeasonName(t *testing.T) {
	assert.True(t, IsSeasonName("Season 1"))
	assert.True(t, IsSeasonName("season12"))
	assert.True(t, IsSeasonName("SEASON  3"))
	assert.False(t, IsSeasonName("Season One"))
	assert.False(t, IsSeasonName("Specials"))
	assert.False(t, IsSeasonName("Season 1 extras"))
}
