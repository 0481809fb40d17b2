package services

import (
	"context"
	"fmt"

	"google.golang.org/api/option"

	"video-catalog/pkg/config"
	"video-catalog/pkg/storage"
)

// Backend bundles the configured catalog source with the object store behind it.
type Backend struct {
	Source Source
	// Store is nil for the Drive source.
	Store storage.Store
	close func() error
}

// Close releases clients held by the backend.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// OpenBackend creates the source selected by cfg.Source.
func OpenBackend(ctx context.Context, cfg *config.Config, opts ...option.ClientOption) (*Backend, error) {
	if err := cfg.ValidateSource(); err != nil {
		return nil, err
	}

	switch cfg.Source {
	case config.SourceFS:
		fs, err := storage.NewFS(cfg.MediaRoot, cfg.PublicMediaBase)
		if err != nil {
			return nil, err
		}
		return &Backend{Source: NewStoreSource(config.SourceFS, fs), Store: fs}, nil

	case config.SourceGCS:
		gcs, err := storage.NewGCS(ctx, cfg.BucketName, cfg.PublicMediaBase, opts...)
		if err != nil {
			return nil, err
		}
		return &Backend{Source: NewStoreSource(config.SourceGCS, gcs), Store: gcs, close: gcs.Close}, nil

	case config.SourceDrive:
		drv, err := NewDriveSource(ctx, cfg.DriveAPIKey, opts...)
		if err != nil {
			return nil, err
		}
		return &Backend{Source: drv}, nil
	}
	return nil, fmt.Errorf("unknown source %q", cfg.Source)
}
