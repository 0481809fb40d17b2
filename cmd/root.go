package cmd

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"video-catalog/pkg/config"
	"video-catalog/pkg/logging"
	"video-catalog/pkg/services"
)

// Configuration flags
var (
	configFile string
	secretKey  string
	bucketName string
	portNumber string
	sourceKind string
	mediaRoot  string
	apiURL     string
	adminToken string
)

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "video-catalog",
		Short: "Video Catalog scans a media library into studios, shows and seasons",
		Long: `Video Catalog is a command line application that scans a media library stored on
disk, in Google Cloud Storage or in Google Drive into a catalog of studios, shows, seasons
and episodes. It serves the catalog as a JSON API and a browsable site, and uploads new
media through the admin API.`,
		SilenceUsage: true,
	}

	// Define persistent flags that will be available for all commands
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "TOML configuration file (overrides CONFIG_FILE)")
	rootCmd.PersistentFlags().StringVarP(&secretKey, "secret-key", "s", "", "Set the SECRET_KEY (overrides environment variable)")
	rootCmd.PersistentFlags().StringVarP(&bucketName, "bucket", "b", "", "Set the BUCKET_NAME (overrides environment variable)")
	rootCmd.PersistentFlags().StringVarP(&portNumber, "port", "p", "", "Set the PORT (overrides environment variable)")
	rootCmd.PersistentFlags().StringVar(&sourceKind, "source", "", "Catalog source: fs, gcs or drive (overrides CATALOG_SOURCE)")
	rootCmd.PersistentFlags().StringVar(&mediaRoot, "media-root", "", "Media directory for the fs source (overrides MEDIA_ROOT)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Remote catalog API (overrides CATALOG_API_URL)")
	rootCmd.PersistentFlags().StringVar(&adminToken, "token", "", "Admin bearer token (overrides ADMIN_TOKEN)")

	// Add commands to root
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newListStudiosCmd())
	rootCmd.AddCommand(newListShowsCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newAdminCmd())
	rootCmd.AddCommand(newGenerateThumbnailsCmd())
	rootCmd.AddCommand(newFetchArtworkCmd())

	return rootCmd
}

// LoadConfig loads configuration with respect to command line flags
func LoadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	// Set environment variables from flags if provided
	flagEnv := map[string]string{
		"SECRET_KEY":      secretKey,
		"BUCKET_NAME":     bucketName,
		"PORT":            portNumber,
		"CATALOG_SOURCE":  sourceKind,
		"MEDIA_ROOT":      mediaRoot,
		"CATALOG_API_URL": apiURL,
		"ADMIN_TOKEN":     adminToken,
	}
	for key, value := range flagEnv {
		if value != "" {
			if err := os.Setenv(key, value); err != nil {
				return nil, err
			}
		}
	}

	// Load configuration from the config file and environment (potentially set above)
	return config.Load(configFile)
}

// openService opens the catalog service over the configured source. The
// returned close function releases the backend.
func openService(ctx context.Context, cfg *config.Config, log *logrus.Entry) (*services.Service, func(), error) {
	backend, err := services.OpenBackend(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := backend.Close(); err != nil {
			log.WithError(err).Warn("error closing catalog backend")
		}
	}
	return services.NewService(cfg, backend.Source, backend.Store, log), closeFn, nil
}

func cliLogger() *logrus.Entry {
	return logging.New("cli")
}
