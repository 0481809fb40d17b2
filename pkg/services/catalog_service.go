package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"video-catalog/pkg/config"
	"video-catalog/pkg/errs"
	"video-catalog/pkg/models"
	"video-catalog/pkg/storage"
)

const catalogKey = "catalog"

// Service handles operations related to the catalog, its artwork and thumbnails
type Service struct {
	config  *config.Config
	source  Source
	store   storage.Store
	scanner *Scanner
	catalog *Memo[*models.Catalog]
	log     *logrus.Entry

	extractFrame FrameExtractor
	tmdbBase     string
	tmdbImages   string
	http         *http.Client
}

// NewService creates a catalog service. store may be nil when the source is
// not backed by an object store (Drive); thumbnail and artwork writes are then
// unavailable.
func NewService(cfg *config.Config, source Source, store storage.Store, log *logrus.Entry) *Service {
	s := &Service{
		config:  cfg,
		source:  source,
		store:   store,
		scanner: NewScanner(source, cfg.StrictRoots, log),
		log:     log,

		tmdbBase:   tmdbAPIBase,
		tmdbImages: tmdbImageBase,
		http:       &http.Client{Timeout: 30 * time.Second},
	}
	s.catalog = NewMemo(cfg.CacheTTL, s.build)
	return s
}

// Store returns the object store behind the source, or nil.
func (s *Service) Store() storage.Store {
	return s.store
}

// Source returns the catalog source.
func (s *Service) Source() Source {
	return s.source
}

func (s *Service) build(ctx context.Context, _ string) (*models.Catalog, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	cat, err := s.scanner.Scan(ctx, s.config.ScanRoots())
	if err == nil {
		return cat, nil
	}
	if s.config.FallbackCatalog == "" || errs.IsConfig(err) {
		return nil, err
	}

	s.log.WithError(err).WithField("fallback", s.config.FallbackCatalog).Warn("scan failed, serving fallback catalog")
	fallback, ferr := LoadCatalogFile(s.config.FallbackCatalog)
	if ferr != nil {
		return nil, fmt.Errorf("%w (fallback: %v)", err, ferr)
	}
	return fallback, nil
}

// Catalog returns the cached catalog, scanning the source on a miss
func (s *Service) Catalog(ctx context.Context) (*models.Catalog, error) {
	return s.catalog.Get(ctx, catalogKey)
}

// Refresh drops the cached catalog so the next read rescans
func (s *Service) Refresh() {
	s.catalog.Flush()
	s.log.Debug("catalog cache flushed")
}

// Studios returns every studio name in catalog order
func (s *Service) Studios(ctx context.Context) ([]string, error) {
	cat, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(cat.Studios))
	for _, studio := range cat.Studios {
		names = append(names, studio.Name)
	}
	return names, nil
}

// Shows returns the show names of a studio. An unknown studio yields an empty list.
func (s *Service) Shows(ctx context.Context, studioName string) ([]string, error) {
	cat, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	names := []string{}
	for _, studio := range cat.Studios {
		if studio.Name != studioName {
			continue
		}
		for _, show := range studio.Shows {
			names = append(names, show.Name)
		}
		break
	}
	return names, nil
}

// Show returns a show by its id or by its "studio/show" name
func (s *Service) Show(ctx context.Context, id string) (models.ShowDetail, error) {
	cat, err := s.Catalog(ctx)
	if err != nil {
		return models.ShowDetail{}, err
	}
	if detail, ok := FindShow(cat, id); ok {
		return detail, nil
	}
	return models.ShowDetail{}, errs.NotFound("show", id)
}

// FindShow looks a show up by id or by "studio/show" name.
func FindShow(cat *models.Catalog, id string) (models.ShowDetail, bool) {
	studio, show, ok := cat.Locate(id)
	if !ok {
		return models.ShowDetail{}, false
	}
	return models.ShowDetail{Show: show, Studio: studio.Name}, true
}

// LoadCatalogFile reads a catalog previously written by the export command.
func LoadCatalogFile(path string) (*models.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	var cat models.Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file %s: %w", path, err)
	}
	if cat.Studios == nil {
		cat.Studios = []models.Studio{}
	}
	if cat.Videos == nil {
		cat.Flatten()
	}
	return &cat, nil
}
