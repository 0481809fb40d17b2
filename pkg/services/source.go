package services

import (
	"context"
	"io"
	"path"
	"regexp"
	"strings"
	"time"
)

// Entry is one item returned by a Source listing.
type Entry struct {
	// ID is stable across scans: a path relative to the scan root, or a provider id.
	ID       string
	Name     string
	IsDir    bool
	MimeType string
	Modified time.Time
	Size     int64
	// Thumbnail is a provider supplied preview URL, if any.
	Thumbnail string
	// locator is source specific (object key, Drive file id).
	locator string
}

// Source lists a folder hierarchy. Implementations exist for object stores
// (filesystem, GCS bucket) and for Google Drive.
type Source interface {
	// Kind names the source for logs and metrics.
	Kind() string
	// Root resolves a configured root identifier into a folder entry.
	Root(ctx context.Context, id string) (Entry, error)
	// ListChildren returns every child of dir, all pages drained.
	ListChildren(ctx context.Context, dir Entry) ([]Entry, error)
	// Open reads a file entry.
	Open(ctx context.Context, file Entry) (io.ReadCloser, error)
	// URL returns the playback or display URL of a file entry.
	URL(file Entry) (string, error)
}

var (
	videoExtensions = []string{".mp4", ".m4v", ".mkv", ".mov", ".webm", ".avi"}
	imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

	seasonPattern  = regexp.MustCompile(`(?i)^season\s*\d+$`)
	logoPattern    = regexp.MustCompile(`(?i)^logo\.(png|jpe?g|webp)$`)
	bannerPattern  = regexp.MustCompile(`(?i)^banner\.(png|jpe?g|webp)$`)
	separatorRunes = regexp.MustCompile(`[_-]+`)
)

func hasExtension(name string, exts []string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// IsVideo reports whether an entry is a playable video.
func IsVideo(e Entry) bool {
	if e.IsDir {
		return false
	}
	return strings.HasPrefix(e.MimeType, "video/") || hasExtension(e.Name, videoExtensions)
}

// IsImage reports whether an entry is an image file.
func IsImage(e Entry) bool {
	if e.IsDir {
		return false
	}
	return strings.HasPrefix(e.MimeType, "image/") || hasExtension(e.Name, imageExtensions)
}

// IsSeasonName reports whether a folder name follows the "Season N" convention.
func IsSeasonName(name string) bool {
	return seasonPattern.MatchString(strings.TrimSpace(name))
}

func isArtwork(name string) bool {
	return logoPattern.MatchString(name) || bannerPattern.MatchString(name)
}

// baseName strips the extension from a file name.
func baseName(name string) string {
	return strings.TrimSuffix(name, path.Ext(name))
}

// EpisodeName turns a file name into a display name: no extension, and runs of
// underscores or dashes become a single space.
func EpisodeName(fileName string) string {
	return strings.TrimSpace(separatorRunes.ReplaceAllString(baseName(fileName), " "))
}
