package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"video-catalog/pkg/errs"
	"video-catalog/pkg/models"
	"video-catalog/pkg/storage"
)

const (
	tmdbAPIBase   = "https://api.themoviedb.org/3"
	tmdbImageBase = "https://image.tmdb.org/t/p"

	bannerFileName = "banner.jpg"
)

// tmdbShow is one TV search result from TMDb
type tmdbShow struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	PosterPath   *string `json:"poster_path"`
	BackdropPath *string `json:"backdrop_path"`
	FirstAirDate string  `json:"first_air_date"`
}

// TMDbSearchResult represents a TV search response from TMDb
type TMDbSearchResult struct {
	Results []tmdbShow `json:"results"`
}

// ArtworkResult represents a show artwork search result
type ArtworkResult struct {
	Title        string `json:"title"`
	Year         string `json:"year"`
	BannerURL    string `json:"bannerUrl"`
	ThumbnailURL string `json:"thumbnailUrl"`
}

// SetTMDbEndpoints points TMDb calls at another host.
func (s *Service) SetTMDbEndpoints(apiBase, imageBase string) {
	s.tmdbBase = strings.TrimSuffix(apiBase, "/")
	s.tmdbImages = strings.TrimSuffix(imageBase, "/")
}

// FetchShowArtwork searches TMDb for a show and stores its backdrop as banner.jpg
// in the show folder. An empty title searches for the show's own name.
func (s *Service) FetchShowArtwork(ctx context.Context, showID, title string, progressCb ProgressCallback) error {
	sendProgress := func(step string, progress int) {
		if progressCb != nil {
			progressCb(step, progress)
		}
	}
	if s.store == nil {
		return ErrNoStore
	}

	sendProgress("Finding show folder", 5)
	folder, name, err := s.ShowFolder(ctx, showID)
	if err != nil {
		return err
	}
	if title == "" {
		title = name
	}

	sendProgress("Searching for show", 15)
	results, err := s.searchTV(ctx, title)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return errs.NotFound("artwork", title)
	}

	// Try to find exact match first, then fall back to partial match
	show := findBestMatch(results, cleanShowTitle(title))
	imagePath := show.BackdropPath
	size := "w1280"
	if imagePath == nil || *imagePath == "" {
		imagePath, size = show.PosterPath, "w780"
	}
	if imagePath == nil || *imagePath == "" {
		return errs.NotFound("artwork", title)
	}

	sendProgress("Downloading artwork", 40)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.tmdbImages+"/"+size+*imagePath, nil)
	if err != nil {
		return err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return errs.Retrieval("download artwork", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errs.Retrieval("download artwork", fmt.Errorf("status %d", resp.StatusCode))
	}

	sendProgress("Uploading to storage", 70)
	key := folder + bannerFileName
	if _, err := s.store.Put(ctx, key, resp.Body, "image/jpeg"); err != nil {
		return fmt.Errorf("error uploading artwork: %w", err)
	}

	sendProgress("Clearing cache", 95)
	s.Refresh()

	sendProgress("Complete", 100)
	s.log.WithField("show", showID).WithField("match", show.Name).Info("stored show artwork")
	return nil
}

// SearchArtwork searches TMDb and returns the available artwork for a title
func (s *Service) SearchArtwork(ctx context.Context, title string) ([]ArtworkResult, error) {
	results, err := s.searchTV(ctx, title)
	if err != nil {
		return nil, err
	}

	artwork := []ArtworkResult{}
	for _, show := range results {
		p := show.BackdropPath
		if p == nil || *p == "" {
			p = show.PosterPath
		}
		if p == nil || *p == "" {
			continue
		}
		artwork = append(artwork, ArtworkResult{
			Title:        show.Name,
			Year:         extractYear(show.FirstAirDate),
			BannerURL:    s.tmdbImages + "/w1280" + *p,
			ThumbnailURL: s.tmdbImages + "/w300" + *p,
		})
	}
	return artwork, nil
}

// ShowFolder resolves a show id to its folder prefix in the store and returns
// the show's display name.
func (s *Service) ShowFolder(ctx context.Context, showID string) (string, string, error) {
	if s.store == nil {
		return "", "", ErrNoStore
	}
	show, err := s.Show(ctx, showID)
	if err != nil {
		return "", "", err
	}
	for _, root := range s.config.ScanRoots() {
		folder := storage.NormalizePrefix(storage.NormalizePrefix(root) + show.ID)
		listing, err := s.store.List(ctx, folder)
		if err != nil {
			return "", "", err
		}
		if len(listing.Objects) > 0 || len(listing.Prefixes) > 0 {
			return folder, show.Name, nil
		}
	}
	return "", "", errs.NotFound("show folder", showID)
}

func (s *Service) searchTV(ctx context.Context, title string) ([]tmdbShow, error) {
	apiKey := s.config.TMDBAPIKey
	if apiKey == "" {
		return nil, errs.Missing("TMDB_API_KEY")
	}

	// Clean the title for better search results
	q := url.Values{}
	q.Set("api_key", apiKey)
	q.Set("query", cleanShowTitle(title))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.tmdbBase+"/search/tv?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, errs.Retrieval("search tv", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, errs.Retrieval("search tv", fmt.Errorf("TMDb API error (status %d): %s", resp.StatusCode, string(body)))
	}

	var result TMDbSearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search result: %w", err)
	}
	return result.Results, nil
}

// MissingBanners lists shows in the catalog without banner artwork.
func MissingBanners(cat *models.Catalog) []models.ShowDetail {
	var out []models.ShowDetail
	for _, studio := range cat.Studios {
		for _, show := range studio.Shows {
			if show.Banner == "" {
				out = append(out, models.ShowDetail{Show: show, Studio: studio.Name})
			}
		}
	}
	return out
}

func extractYear(releaseDate string) string {
	if len(releaseDate) >= 4 {
		return releaseDate[:4]
	}
	return ""
}

// findBestMatch finds the best matching show from results
// First tries exact match (case-insensitive), then falls back to partial match
func findBestMatch(results []tmdbShow, searchTitle string) tmdbShow {
	searchLower := strings.ToLower(searchTitle)

	for _, show := range results {
		if strings.ToLower(show.Name) == searchLower {
			return show
		}
	}

	for _, show := range results {
		if strings.Contains(strings.ToLower(show.Name), searchLower) {
			return show
		}
	}

	// No match found, return first result
	return results[0]
}

// cleanShowTitle removes common metadata from folder names for better search results
// Examples: "The Pepperonis (1998) [DVD]" -> "The Pepperonis"
func cleanShowTitle(title string) string {
	// Remove content in parentheses (e.g., year, quality)
	if idx := strings.Index(title, "("); idx != -1 {
		title = title[:idx]
	}

	// Remove content in brackets
	if idx := strings.Index(title, "["); idx != -1 {
		title = title[:idx]
	}

	title = separatorRunes.ReplaceAllString(title, " ")
	return strings.TrimSpace(title)
}
