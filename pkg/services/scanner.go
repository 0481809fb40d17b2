package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"video-catalog/pkg/errs"
	"video-catalog/pkg/metrics"
	"video-catalog/pkg/models"
)

// implicitSeason names the season synthesized for shows without season folders
const implicitSeason = "Season 1"

// Scanner maps a Source folder tree (root → studio → show → season → episode)
// onto a Catalog. The same algorithm serves every Source.
type Scanner struct {
	source Source
	strict bool
	log    *logrus.Entry
}

// NewScanner creates a scanner. With strict set, a studio or show id found under
// more than one root is a configuration error instead of being merged.
func NewScanner(source Source, strict bool, log *logrus.Entry) *Scanner {
	return &Scanner{source: source, strict: strict, log: log}
}

// Scan walks every root depth-first and returns a freshly built catalog.
func (s *Scanner) Scan(ctx context.Context, rootIDs []string) (cat *models.Catalog, err error) {
	start := time.Now()
	defer func() { metrics.ObserveScan(s.source.Kind(), start, err) }()

	var studios []models.Studio
	index := make(map[string]int)

	for _, rootID := range rootIDs {
		root, err := s.source.Root(ctx, rootID)
		if err != nil {
			return nil, err
		}
		children, err := s.source.ListChildren(ctx, root)
		if err != nil {
			return nil, err
		}

		for _, child := range sortEntries(children) {
			if !child.IsDir || skipFolder(child.Name) {
				continue
			}
			studio, err := s.scanStudio(ctx, child)
			if err != nil {
				return nil, err
			}

			if i, ok := index[studio.ID]; ok {
				if s.strict {
					return nil, &errs.ConfigError{
						Setting: "CATALOG_ROOTS",
						Err:     fmt.Errorf("studio %q appears under more than one root", studio.ID),
					}
				}
				studios[i] = s.mergeStudios(studios[i], studio, rootID)
				continue
			}
			index[studio.ID] = len(studios)
			studios = append(studios, studio)
		}
	}

	sort.SliceStable(studios, func(i, j int) bool {
		return naturalLess(studios[i].Name, studios[j].Name)
	})

	cat = &models.Catalog{Studios: studios}
	if cat.Studios == nil {
		cat.Studios = []models.Studio{}
	}
	cat.Flatten()

	s.log.WithFields(logrus.Fields{
		"source":   s.source.Kind(),
		"studios":  len(cat.Studios),
		"episodes": len(cat.Videos),
		"took":     time.Since(start).String(),
	}).Info("catalog scanned")
	return cat, nil
}

func (s *Scanner) scanStudio(ctx context.Context, dir Entry) (models.Studio, error) {
	children, err := s.source.ListChildren(ctx, dir)
	if err != nil {
		return models.Studio{}, err
	}
	children = sortEntries(children)

	studio := models.Studio{ID: dir.ID, Name: dir.Name, Shows: []models.Show{}}
	if logo, ok := firstMatch(children, isLogo); ok {
		studio.Logo = s.url(logo)
	}

	for _, child := range children {
		if !child.IsDir || skipFolder(child.Name) {
			continue
		}
		show, err := s.scanShow(ctx, child)
		if err != nil {
			return models.Studio{}, err
		}
		if show.EpisodeCount() == 0 {
			continue
		}
		studio.Shows = append(studio.Shows, show)
	}
	return studio, nil
}

func (s *Scanner) scanShow(ctx context.Context, dir Entry) (models.Show, error) {
	children, err := s.source.ListChildren(ctx, dir)
	if err != nil {
		return models.Show{}, err
	}
	children = sortEntries(children)

	show := models.Show{ID: dir.ID, Name: dir.Name, Seasons: []models.Season{}}
	if logo, ok := firstMatch(children, isLogo); ok {
		show.Logo = s.url(logo)
	}
	if banner, ok := firstMatch(children, isBanner); ok {
		show.Banner = s.url(banner)
	}

	for _, child := range children {
		if !child.IsDir || !IsSeasonName(child.Name) {
			continue
		}
		files, err := s.source.ListChildren(ctx, child)
		if err != nil {
			return models.Show{}, err
		}
		show.Seasons = append(show.Seasons, s.buildSeason(child.ID, child.Name, sortEntries(files), show.Logo))
	}

	if len(show.Seasons) == 0 {
		season := s.buildSeason(strings.TrimSuffix(dir.ID, "/")+"/"+implicitSeason, implicitSeason, children, show.Logo)
		if len(season.Episodes) > 0 {
			show.Seasons = append(show.Seasons, season)
		}
	}

	sort.SliceStable(show.Seasons, func(i, j int) bool {
		return naturalLess(show.Seasons[i].Name, show.Seasons[j].Name)
	})
	return show, nil
}

// buildSeason turns the files of one folder into a season. Episode thumbnails
// prefer an image with the same base name, then the provider thumbnail, then
// the first loose image in the folder, then the show logo.
func (s *Scanner) buildSeason(id, name string, files []Entry, showLogo string) models.Season {
	season := models.Season{ID: id, Name: name, Episodes: []models.Episode{}}

	thumbs := make(map[string]Entry)
	for _, f := range files {
		if !IsImage(f) || isArtwork(f.Name) {
			continue
		}
		if season.Thumb == "" {
			season.Thumb = s.url(f)
		}
		if _, ok := thumbs[baseName(f.Name)]; !ok {
			thumbs[baseName(f.Name)] = f
		}
	}
	if season.Thumb == "" {
		season.Thumb = showLogo
	}

	for _, f := range files {
		if !IsVideo(f) {
			continue
		}
		src, err := s.source.URL(f)
		if err != nil {
			s.log.WithError(err).WithField("episode", f.ID).Warn("skipping episode without URL")
			continue
		}

		thumb := f.Thumbnail
		if img, ok := thumbs[baseName(f.Name)]; ok {
			thumb = s.url(img)
		}
		if thumb == "" {
			thumb = season.Thumb
		}

		season.Episodes = append(season.Episodes, models.Episode{
			ID:       f.ID,
			Name:     EpisodeName(f.Name),
			Src:      src,
			Thumb:    thumb,
			Modified: f.Modified,
		})
	}
	return season
}

// url resolves artwork URLs; artwork that cannot be resolved is dropped.
func (s *Scanner) url(e Entry) string {
	u, err := s.source.URL(e)
	if err != nil {
		s.log.WithError(err).WithField("file", e.ID).Warn("failed to resolve artwork URL")
		return ""
	}
	return u
}

func isLogo(e Entry) bool   { return !e.IsDir && logoPattern.MatchString(e.Name) }
func isBanner(e Entry) bool { return !e.IsDir && bannerPattern.MatchString(e.Name) }

func firstMatch(entries []Entry, match func(Entry) bool) (Entry, bool) {
	for _, e := range entries {
		if match(e) {
			return e, true
		}
	}
	return Entry{}, false
}

// skipFolder ignores hidden folders and stray "logo" folders.
func skipFolder(name string) bool {
	return strings.HasPrefix(name, ".") || strings.EqualFold(name, "logo")
}

func sortEntries(entries []Entry) []Entry {
	sort.SliceStable(entries, func(i, j int) bool {
		return naturalLess(entries[i].Name, entries[j].Name)
	})
	return entries
}

func (s *Scanner) mergeStudios(a, b models.Studio, rootID string) models.Studio {
	if a.Logo == "" {
		a.Logo = b.Logo
	}
	index := make(map[string]int, len(a.Shows))
	for i, show := range a.Shows {
		index[show.ID] = i
	}
	for _, show := range b.Shows {
		if i, ok := index[show.ID]; ok {
			a.Shows[i] = s.mergeShows(a.Shows[i], show, rootID)
			continue
		}
		index[show.ID] = len(a.Shows)
		a.Shows = append(a.Shows, show)
	}
	sort.SliceStable(a.Shows, func(i, j int) bool {
		return naturalLess(a.Shows[i].Name, a.Shows[j].Name)
	})
	return a
}

// mergeShows folds the seasons of b into a. An episode whose id is already
// taken by a different file is kept under an id qualified by its root; the
// same file listed twice is dropped.
func (s *Scanner) mergeShows(a, b models.Show, rootID string) models.Show {
	if a.Logo == "" {
		a.Logo = b.Logo
	}
	if a.Banner == "" {
		a.Banner = b.Banner
	}
	index := make(map[string]int, len(a.Seasons))
	for i, season := range a.Seasons {
		index[season.ID] = i
	}
	for _, season := range b.Seasons {
		i, ok := index[season.ID]
		if !ok {
			index[season.ID] = len(a.Seasons)
			a.Seasons = append(a.Seasons, season)
			continue
		}

		merged := &a.Seasons[i]
		seen := make(map[string]string, len(merged.Episodes))
		for _, ep := range merged.Episodes {
			seen[ep.ID] = ep.Src
		}
		for _, ep := range season.Episodes {
			src, taken := seen[ep.ID]
			if taken && src == ep.Src {
				s.log.WithField("episode", ep.ID).Warn("dropping episode listed under more than one root")
				continue
			}
			if taken {
				ep.ID = qualifyID(ep.ID, rootID, seen)
			}
			seen[ep.ID] = ep.Src
			merged.Episodes = append(merged.Episodes, ep)
		}
		sort.SliceStable(merged.Episodes, func(x, y int) bool {
			return naturalLess(merged.Episodes[x].Name, merged.Episodes[y].Name)
		})
	}
	sort.SliceStable(a.Seasons, func(i, j int) bool {
		return naturalLess(a.Seasons[i].Name, a.Seasons[j].Name)
	})
	return a
}

// qualifyID prefixes id with its root, adding a counter while the result is
// still taken.
func qualifyID(id, rootID string, taken map[string]string) string {
	base := id
	if rootID != "" {
		base = strings.TrimSuffix(rootID, "/") + "/" + id
	}
	qualified := base
	for n := 2; ; n++ {
		if _, ok := taken[qualified]; !ok {
			return qualified
		}
		qualified = fmt.Sprintf("%s~%d", base, n)
	}
}
