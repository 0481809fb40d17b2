package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"video-catalog/pkg/client"
	"video-catalog/pkg/config"
	"video-catalog/pkg/handlers"
	"video-catalog/pkg/logging"
	"video-catalog/pkg/offline"
	"video-catalog/pkg/services"
	"video-catalog/pkg/storage"
)

const (
	shutdownTimeout = 10 * time.Second
	sweepInterval   = time.Hour
	watchDebounce   = 2 * time.Second
)

// newServeCmd creates a new command for serving the web application
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Long: `Start the web server to serve the catalog API, the browsable site and, when admin
credentials are configured, the admin upload API.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Serve(ctx, cfg, logging.New("server"))
		},
	}
}

// Serve runs the web server until ctx is cancelled.
func Serve(ctx context.Context, cfg *config.Config, log *logrus.Entry) error {
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	backend, err := services.OpenBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			log.WithError(err).Warn("error closing catalog backend")
		}
	}()
	svc := services.NewService(cfg, backend.Source, backend.Store, log.WithField("component", "catalog"))

	var opts []handlers.Option
	if cfg.APIURL != "" {
		loader, err := remoteLoader(ctx, cfg, log.WithField("component", "offline"))
		if err != nil {
			return err
		}
		opts = append(opts, handlers.WithCatalogLoader(loader))
	}
	server := handlers.NewServer(cfg, svc, log, opts...)

	if mp := server.Multipart(); mp != nil {
		go sweepLoop(ctx, mp, cfg.StaleUploadAge, log)
	}
	if cfg.Watch && cfg.Source == config.SourceFS {
		watcher, err := services.NewWatcher(cfg.MediaRoot, watchDebounce, svc.Refresh, log.WithField("component", "watcher"))
		if err != nil {
			return err
		}
		defer watcher.Close()
		go watcher.Run(ctx)
	}

	srv := handlers.NewHTTPServer(cfg.ServerAddress(), server.Router())
	errCh := make(chan error, 1)
	go func() {
		cfg.PrintServerStartMessage()
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// remoteLoader builds a catalog client for CATALOG_API_URL behind the offline
// worker. A failed install is logged and the worker stays inactive.
func remoteLoader(ctx context.Context, cfg *config.Config, log *logrus.Entry) (*client.Client, error) {
	worker, err := offline.New(offline.Config{
		Version:  cfg.OfflineVersion,
		Origin:   cfg.APIURL,
		Precache: []string{"/api/catalog"},
		Log:      log,
	}, offline.NewRegistry())
	if err != nil {
		return nil, err
	}
	if err := worker.Install(ctx); err != nil {
		log.WithError(err).Warn("offline install failed, using the network only")
	} else {
		worker.Activate()
	}
	return client.New(cfg.APIURL, worker), nil
}

func sweepLoop(ctx context.Context, mp *storage.Multipart, maxAge time.Duration, log *logrus.Entry) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		removed, err := mp.Sweep(ctx, maxAge)
		if err != nil && ctx.Err() == nil {
			log.WithError(err).Warn("upload sweep failed")
		} else if removed > 0 {
			log.WithField("removed", removed).Info("removed stale uploads")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
