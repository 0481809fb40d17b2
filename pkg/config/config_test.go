package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-catalog/pkg/errs"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, SourceFS, cfg.Source)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 24*time.Hour, cfg.StaleUploadAge)
	assert.Equal(t, DefaultPartSize, cfg.PartSize)
	assert.Equal(t, "http://localhost:8080/media", cfg.PublicMediaBase)
	assert.Equal(t, []string{""}, cfg.ScanRoots())
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.toml")
	content := `
source = "gcs"
bucket_name = "from-file"
cache_ttl = "30s"
roots = ["Studios", "Kids"]
strict_roots = true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("BUCKET_NAME", "from-env")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, SourceGCS, cfg.Source)
	assert.Equal(t, "from-env", cfg.BucketName)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, []string{"Studios", "Kids"}, cfg.ScanRoots())
	assert.True(t, cfg.StrictRoots)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	require.NoError(t, cfg.ValidateSource())
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("CACHE_TTL", "soon")
	_, err := Load("")
	require.Error(t, err)
	assert.True(t, errs.IsConfig(err))
}

func TestValidateServerRequiresSecret(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.normalize())

	err := cfg.ValidateServer()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSecretKeyNotSet)
}

func TestValidateDrive(t *testing.T) {
	cfg := Default()
	cfg.Source = SourceDrive
	require.NoError(t, cfg.normalize())

	assert.ErrorIs(t, cfg.ValidateSource(), ErrDriveAPIKeyNotSet)

	cfg.DriveAPIKey = "key"
	assert.ErrorIs(t, cfg.ValidateSource(), ErrNoRoots)

	cfg.Roots = []string{"folder"}
	assert.NoError(t, cfg.ValidateSource())
	assert.False(t, cfg.AdminEnabled())
}

func TestValidateFSMissingRoot(t *testing.T) {
	cfg := Default()
	cfg.MediaRoot = filepath.Join(t.TempDir(), "missing")
	require.NoError(t, cfg.normalize())

	err := cfg.ValidateSource()
	require.Error(t, err)
	assert.True(t, errs.IsConfig(err))
}
