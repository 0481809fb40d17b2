package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"video-catalog/pkg/errs"
)

// Source kinds
const (
	SourceFS    = "fs"
	SourceGCS   = "gcs"
	SourceDrive = "drive"
)

// DefaultPartSize is the multipart part size handed out by the admin API
const DefaultPartSize int64 = 8 * 1024 * 1024

// Config holds all configuration for the application
type Config struct {
	SecretKey  string `toml:"secret_key"`
	BucketName string `toml:"bucket_name"`
	Port       string `toml:"port"`
	Host       string `toml:"host"`

	Source          string   `toml:"source"`
	MediaRoot       string   `toml:"media_root"`
	PublicMediaBase string   `toml:"public_media_base"`
	DriveAPIKey     string   `toml:"drive_api_key"`
	Roots           []string `toml:"roots"`
	StrictRoots     bool     `toml:"strict_roots"`
	Watch           bool     `toml:"watch"`
	FallbackCatalog string   `toml:"catalog_fallback"`

	CacheTTLValue       string `toml:"cache_ttl"`
	StaleUploadAgeValue string `toml:"stale_upload_age"`
	PartSize            int64  `toml:"part_size"`

	AdminUser         string `toml:"admin_user"`
	AdminPasswordHash string `toml:"admin_password_hash"`

	CORSOrigins []string `toml:"cors_origins"`
	ViewsDir    string   `toml:"views_dir"`
	PublicDir   string   `toml:"public_dir"`

	TMDBAPIKey string `toml:"tmdb_api_key"`

	// Client side settings used by upload and remote rendering
	APIURL         string `toml:"catalog_api_url"`
	AdminToken     string `toml:"admin_token"`
	OfflineVersion string `toml:"offline_version"`

	CacheTTL       time.Duration `toml:"-"`
	StaleUploadAge time.Duration `toml:"-"`
}

// ErrSecretKeyNotSet is returned when the SECRET_KEY environment variable is not set
var ErrSecretKeyNotSet = errors.New("SECRET_KEY environment variable not set")

// ErrBucketNameNotSet is returned when the BUCKET_NAME environment variable is not set
var ErrBucketNameNotSet = errors.New("BUCKET_NAME environment variable not set")

// ErrDriveAPIKeyNotSet is returned when the Drive source has no API key
var ErrDriveAPIKeyNotSet = errors.New("DRIVE_API_KEY environment variable not set")

// ErrNoRoots is returned when the Drive source has no root folders
var ErrNoRoots = errors.New("CATALOG_ROOTS must list at least one folder id")

// ErrAPIURLNotSet is returned when a client command has no API to talk to
var ErrAPIURLNotSet = errors.New("CATALOG_API_URL environment variable not set")

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Port:                "8080",
		Host:                "0.0.0.0",
		Source:              SourceFS,
		MediaRoot:           "./media",
		CacheTTLValue:       "5m",
		StaleUploadAgeValue: "24h",
		PartSize:            DefaultPartSize,
		ViewsDir:            "./views",
		PublicDir:           "./public",
		OfflineVersion:      "v1",
	}
}

// LoadDotEnv loads a .env file from the working directory when one exists
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// Load loads configuration from an optional TOML file and then environment variables.
// When path is empty CONFIG_FILE is consulted.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &errs.ConfigError{Setting: "config file", Err: err}
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, &errs.ConfigError{Setting: "config file", Err: err}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setList := func(dst *[]string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = splitList(v)
		}
	}
	setBool := func(dst *bool, key string) error {
		v := os.Getenv(key)
		if v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &errs.ConfigError{Setting: key, Err: err}
		}
		*dst = b
		return nil
	}

	setString(&c.SecretKey, "SECRET_KEY")
	setString(&c.BucketName, "BUCKET_NAME")
	setString(&c.Port, "PORT")
	setString(&c.Host, "HOST")
	setString(&c.Source, "CATALOG_SOURCE")
	setString(&c.MediaRoot, "MEDIA_ROOT")
	setString(&c.PublicMediaBase, "PUBLIC_MEDIA_BASE")
	setString(&c.DriveAPIKey, "DRIVE_API_KEY")
	setList(&c.Roots, "CATALOG_ROOTS")
	setString(&c.FallbackCatalog, "CATALOG_FALLBACK")
	setString(&c.CacheTTLValue, "CACHE_TTL")
	setString(&c.StaleUploadAgeValue, "STALE_UPLOAD_AGE")
	setString(&c.AdminUser, "ADMIN_USER")
	setString(&c.AdminPasswordHash, "ADMIN_PASSWORD_HASH")
	setList(&c.CORSOrigins, "CORS_ORIGINS")
	setString(&c.ViewsDir, "VIEWS_DIR")
	setString(&c.PublicDir, "PUBLIC_DIR")
	setString(&c.TMDBAPIKey, "TMDB_API_KEY")
	setString(&c.APIURL, "CATALOG_API_URL")
	setString(&c.AdminToken, "ADMIN_TOKEN")
	setString(&c.OfflineVersion, "OFFLINE_VERSION")

	if err := setBool(&c.StrictRoots, "STRICT_ROOTS"); err != nil {
		return err
	}
	if err := setBool(&c.Watch, "WATCH_MEDIA"); err != nil {
		return err
	}

	if v := os.Getenv("MULTIPART_PART_SIZE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return &errs.ConfigError{Setting: "MULTIPART_PART_SIZE", Err: err}
		}
		c.PartSize = n
	}
	return nil
}

func (c *Config) normalize() error {
	var err error
	if c.CacheTTL, err = time.ParseDuration(c.CacheTTLValue); err != nil {
		return &errs.ConfigError{Setting: "cache_ttl", Err: err}
	}
	if c.StaleUploadAge, err = time.ParseDuration(c.StaleUploadAgeValue); err != nil {
		return &errs.ConfigError{Setting: "stale_upload_age", Err: err}
	}
	if c.PartSize <= 0 {
		c.PartSize = DefaultPartSize
	}
	c.Source = strings.ToLower(strings.TrimSpace(c.Source))
	c.PublicMediaBase = strings.TrimSuffix(c.PublicMediaBase, "/")
	if c.PublicMediaBase == "" && c.Source == SourceFS {
		c.PublicMediaBase = fmt.Sprintf("http://localhost:%s/media", c.Port)
	}
	c.APIURL = strings.TrimSuffix(c.APIURL, "/")
	return nil
}

// ValidateServer checks the settings the web server cannot run without
func (c *Config) ValidateServer() error {
	if c.SecretKey == "" {
		return &errs.ConfigError{Setting: "SECRET_KEY", Err: ErrSecretKeyNotSet}
	}
	return c.ValidateSource()
}

// ValidateSource checks the settings required by the configured catalog source
func (c *Config) ValidateSource() error {
	switch c.Source {
	case SourceFS:
		fi, err := os.Stat(c.MediaRoot)
		if err != nil {
			return &errs.ConfigError{Setting: "MEDIA_ROOT", Err: err}
		}
		if !fi.IsDir() {
			return &errs.ConfigError{Setting: "MEDIA_ROOT", Err: fmt.Errorf("%s is not a directory", c.MediaRoot)}
		}
	case SourceGCS:
		if c.BucketName == "" {
			return &errs.ConfigError{Setting: "BUCKET_NAME", Err: ErrBucketNameNotSet}
		}
	case SourceDrive:
		if c.DriveAPIKey == "" {
			return &errs.ConfigError{Setting: "DRIVE_API_KEY", Err: ErrDriveAPIKeyNotSet}
		}
		if len(c.Roots) == 0 {
			return &errs.ConfigError{Setting: "CATALOG_ROOTS", Err: ErrNoRoots}
		}
	default:
		return &errs.ConfigError{Setting: "CATALOG_SOURCE", Err: fmt.Errorf("unknown source %q", c.Source)}
	}
	return nil
}

// ValidateClient checks the settings required to talk to a remote API
func (c *Config) ValidateClient() error {
	if c.APIURL == "" {
		return &errs.ConfigError{Setting: "CATALOG_API_URL", Err: ErrAPIURLNotSet}
	}
	return nil
}

// AdminEnabled reports whether the admin API can accept logins and uploads
func (c *Config) AdminEnabled() bool {
	return c.AdminUser != "" && c.AdminPasswordHash != "" && c.Source != SourceDrive
}

// ScanRoots returns the configured roots, defaulting to the store root
func (c *Config) ScanRoots() []string {
	if len(c.Roots) == 0 {
		return []string{""}
	}
	return c.Roots
}

// ServerAddress returns the server address with port
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// PrintServerStartMessage prints a message when the server starts
func (c *Config) PrintServerStartMessage() {
	fmt.Printf("Starting server at port %s\n", c.Port)
	fmt.Printf("Catalog URL: http://localhost:%s/api/catalog\n", c.Port)
	fmt.Printf("Site URL: http://localhost:%s/\n", c.Port)
	if c.Source == SourceFS {
		fmt.Printf("Serving media from %s at %s\n", c.MediaRoot, c.PublicMediaBase)
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
