package services

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"video-catalog/pkg/errs"
)

const (
	driveFolderMimeType = "application/vnd.google-apps.folder"
	driveListFields     = "nextPageToken, files(id, name, mimeType, modifiedTime, size, thumbnailLink)"
	drivePageSize       = 1000
)

// DriveSource lists public Google Drive folders with an API key.
type DriveSource struct {
	svc *drive.Service
}

// NewDriveSource creates a Drive source. Extra client options are appended
// after the API key option.
func NewDriveSource(ctx context.Context, apiKey string, opts ...option.ClientOption) (*DriveSource, error) {
	if apiKey == "" {
		return nil, errs.Missing("DRIVE_API_KEY")
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive client: %w", err)
	}
	return &DriveSource{svc: svc}, nil
}

// Kind returns the source kind
func (d *DriveSource) Kind() string {
	return "drive"
}

// Root returns a folder entry for a Drive folder id.
func (d *DriveSource) Root(_ context.Context, id string) (Entry, error) {
	if id == "" {
		return Entry{}, errs.Missing("CATALOG_ROOTS")
	}
	return Entry{ID: id, Name: id, IsDir: true, locator: id}, nil
}

// ListChildren drains every page of the folder listing.
func (d *DriveSource) ListChildren(ctx context.Context, dir Entry) ([]Entry, error) {
	q := fmt.Sprintf("'%s' in parents and trashed = false", strings.ReplaceAll(dir.locator, "'", `\'`))
	call := d.svc.Files.List().
		Q(q).
		Fields(driveListFields).
		PageSize(drivePageSize)

	var entries []Entry
	err := call.Pages(ctx, func(page *drive.FileList) error {
		for _, f := range page.Files {
			modified, _ := time.Parse(time.RFC3339, f.ModifiedTime)
			thumb := f.ThumbnailLink
			if thumb == "" && strings.HasPrefix(f.MimeType, "video/") {
				thumb = "https://drive.google.com/thumbnail?id=" + url.QueryEscape(f.Id)
			}
			entries = append(entries, Entry{
				ID:        f.Id,
				Name:      f.Name,
				IsDir:     f.MimeType == driveFolderMimeType,
				MimeType:  f.MimeType,
				Modified:  modified.UTC(),
				Size:      f.Size,
				Thumbnail: thumb,
				locator:   f.Id,
			})
		}
		return nil
	})
	if err != nil {
		return nil, errs.Retrieval("drive list "+dir.locator, err)
	}
	return entries, nil
}

// Open downloads a file's content.
func (d *DriveSource) Open(ctx context.Context, file Entry) (io.ReadCloser, error) {
	resp, err := d.svc.Files.Get(file.locator).Context(ctx).Download()
	if err != nil {
		return nil, errs.Retrieval("drive download "+file.locator, err)
	}
	return resp.Body, nil
}

// URL returns the embeddable preview for videos and a sized thumbnail for images.
func (d *DriveSource) URL(file Entry) (string, error) {
	id := url.PathEscape(file.locator)
	if IsVideo(file) {
		return "https://drive.google.com/file/d/" + id + "/preview", nil
	}
	return "https://drive.google.com/thumbnail?sz=w1280&id=" + url.QueryEscape(file.locator), nil
}
