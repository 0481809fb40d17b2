package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"time"

	"video-catalog/pkg/models"
	"video-catalog/pkg/storage"
)

// colorDifferenceThreshold is roughly one 8-bit step in 16-bit color space.
const colorDifferenceThreshold = uint32(256)

// ErrNoStore is returned by write operations when the source has no object store
var ErrNoStore = errors.New("catalog source is read-only")

// ProgressCallback is a function that receives progress updates
type ProgressCallback func(step string, progress int)

// FrameExtractor writes one frame of videoPath, taken at timeMs, to imagePath.
type FrameExtractor func(ctx context.Context, videoPath, imagePath string, timeMs int) error

// ThumbnailResult summarizes a bulk thumbnail run
type ThumbnailResult struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// ThumbnailKey returns the key of the thumbnail image for a video key
func ThumbnailKey(videoKey string) string {
	return strings.TrimSuffix(videoKey, path.Ext(videoKey)) + ".jpg"
}

// GenerateThumbnail generates a thumbnail for a specific video with progress updates
func (s *Service) GenerateThumbnail(ctx context.Context, videoKey string, timeMs int, progressCb ProgressCallback) error {
	sendProgress := func(step string, progress int) {
		if progressCb != nil {
			progressCb(step, progress)
		}
	}
	if s.store == nil {
		return ErrNoStore
	}

	sendProgress("Checking FFmpeg", 5)
	if err := s.checkExtractor(); err != nil {
		return err
	}

	sendProgress("Setting up directories", 10)
	outputDir, err := thumbnailWorkDir()
	if err != nil {
		return err
	}

	videoKey = storage.CleanKey(videoKey)
	if _, err := s.store.Stat(ctx, videoKey); err != nil {
		return err
	}

	sendProgress("Extracting frame", 30)
	if err := s.makeThumbnail(ctx, outputDir, videoKey, timeMs); err != nil {
		return err
	}

	sendProgress("Clearing cache", 95)
	s.Refresh()

	sendProgress("Complete", 100)
	return nil
}

// BulkGenerateThumbnails generates thumbnails for every video below prefix that
// has no image with the same base name. With force, existing thumbnails are replaced.
func (s *Service) BulkGenerateThumbnails(ctx context.Context, prefix string, timeMs int, force bool, progressCb ProgressCallback) (ThumbnailResult, error) {
	var result ThumbnailResult
	if s.store == nil {
		return result, ErrNoStore
	}
	if err := s.checkExtractor(); err != nil {
		return result, err
	}
	outputDir, err := thumbnailWorkDir()
	if err != nil {
		return result, err
	}

	// First pass: find all videos and thumbnails
	thumbnails := make(map[string]bool)
	var videos []string
	err = storage.Walk(ctx, s.store, prefix, func(obj models.ObjectInfo) error {
		e := Entry{Name: path.Base(obj.Key)}
		switch {
		case IsVideo(e):
			videos = append(videos, obj.Key)
		case IsImage(e) && !isArtwork(e.Name):
			thumbnails[strings.TrimSuffix(obj.Key, path.Ext(obj.Key))] = true
		}
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("failed to list media: %w", err)
	}

	// Second pass: generate the missing ones
	for i, videoKey := range videos {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if thumbnails[strings.TrimSuffix(videoKey, path.Ext(videoKey))] && !force {
			result.Skipped++
			continue
		}
		if progressCb != nil {
			progressCb(videoKey, (i*100)/len(videos))
		}
		if err := s.makeThumbnail(ctx, outputDir, videoKey, timeMs); err != nil {
			s.log.WithError(err).WithField("video", videoKey).Warn("thumbnail failed")
			result.Errors++
			continue
		}
		result.Processed++
	}
	if progressCb != nil {
		progressCb("Complete", 100)
	}

	if result.Processed > 0 {
		s.Refresh()
	}
	return result, nil
}

// ClearThumbnail removes the thumbnail of a video from storage
func (s *Service) ClearThumbnail(ctx context.Context, videoKey string) error {
	if s.store == nil {
		return ErrNoStore
	}
	if err := s.store.Delete(ctx, ThumbnailKey(storage.CleanKey(videoKey))); err != nil {
		return fmt.Errorf("failed to delete thumbnail: %w", err)
	}

	// Clear cache so thumbnail removal is visible
	s.Refresh()
	return nil
}

// BulkClearThumbnails removes every episode thumbnail below prefix. Logo and
// banner artwork is kept.
func (s *Service) BulkClearThumbnails(ctx context.Context, prefix string) (int, error) {
	if s.store == nil {
		return 0, ErrNoStore
	}

	var keys []string
	err := storage.Walk(ctx, s.store, prefix, func(obj models.ObjectInfo) error {
		e := Entry{Name: path.Base(obj.Key)}
		if IsImage(e) && !isArtwork(e.Name) {
			keys = append(keys, obj.Key)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list media: %w", err)
	}

	totalDeleted := 0
	for _, key := range keys {
		if err := s.store.Delete(ctx, key); err != nil {
			s.log.WithError(err).WithField("key", key).Warn("failed to delete thumbnail")
			continue
		}
		totalDeleted++
	}

	s.Refresh()
	return totalDeleted, nil
}

// makeThumbnail downloads a video, extracts a frame, validates it and stores it
// next to the video.
func (s *Service) makeThumbnail(ctx context.Context, outputDir, videoKey string, timeMs int) error {
	tmpVideoPath := filepath.Join(outputDir, getSafeFilename(videoKey))
	if err := s.downloadObject(ctx, videoKey, tmpVideoPath); err != nil {
		return fmt.Errorf("error downloading video: %w", err)
	}
	defer os.Remove(tmpVideoPath)

	thumbnailKey := ThumbnailKey(videoKey)
	tmpThumbnailPath := filepath.Join(outputDir, getSafeFilename(thumbnailKey))
	if err := s.extractFrame(ctx, tmpVideoPath, tmpThumbnailPath, timeMs); err != nil {
		return fmt.Errorf("error creating thumbnail: %w", err)
	}
	defer os.Remove(tmpThumbnailPath)

	if err := validateThumbnail(tmpThumbnailPath); err != nil {
		return fmt.Errorf("thumbnail validation failed: %w", err)
	}

	f, err := os.Open(tmpThumbnailPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := s.store.Put(ctx, thumbnailKey, f, "image/jpeg"); err != nil {
		return fmt.Errorf("error uploading thumbnail: %w", err)
	}
	s.log.WithField("thumbnail", thumbnailKey).Info("thumbnail stored")
	return nil
}

func (s *Service) downloadObject(ctx context.Context, key, dst string) error {
	r, err := s.store.Open(ctx, key)
	if err != nil {
		return err
	}
	defer r.Close()

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("os.Create: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("io.Copy: %w", err)
	}
	return f.Close()
}

func (s *Service) checkExtractor() error {
	if s.extractFrame != nil {
		return nil
	}
	if err := checkFFmpeg(); err != nil {
		return fmt.Errorf("FFmpeg is required but not found: %w", err)
	}
	s.extractFrame = createThumbnailWithFFmpeg
	return nil
}

// SetFrameExtractor replaces ffmpeg as the frame source.
func (s *Service) SetFrameExtractor(fn FrameExtractor) {
	s.extractFrame = fn
}

func thumbnailWorkDir() (string, error) {
	outputDir := filepath.Join(os.TempDir(), "video-catalog-thumbnails")
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	return outputDir, nil
}

func checkFFmpeg() error {
	if err := exec.Command("ffmpeg", "-version").Run(); err != nil {
		return fmt.Errorf("ffmpeg not found or not working: %w", err)
	}
	return nil
}

// ffmpegTimestamp formats ms as HH:MM:SS.mmm.
func ffmpegTimestamp(ms int) string {
	d := time.Duration(ms) * time.Millisecond
	h := int(d / time.Hour)
	m := int(d/time.Minute) % 60
	sec := int(d/time.Second) % 60
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, sec, ms%1000)
}

func createThumbnailWithFFmpeg(ctx context.Context, videoPath, thumbnailPath string, timeMs int) error {
	var stderr strings.Builder
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-ss", ffmpegTimestamp(timeMs),
		"-i", videoPath,
		"-vf", "thumbnail",
		"-frames:v", "1",
		"-q:v", "2",
		"-y", thumbnailPath,
	)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, stderr.String())
	}
	return nil
}

// validateThumbnail rejects frames where fewer than 1% of a 10x10 sample
// grid differ from the top-left pixel.
func validateThumbnail(thumbnailPath string) error {
	f, err := os.Open(thumbnailPath)
	if err != nil {
		return fmt.Errorf("failed to open thumbnail: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("failed to decode thumbnail: %w", err)
	}

	differ, samples := sampleDifferences(img, 10)
	if samples > 0 && float64(differ)/float64(samples) < 0.01 {
		return fmt.Errorf("thumbnail appears to be a solid color (only %d/%d sampled pixels differ)", differ, samples)
	}
	return nil
}

func sampleDifferences(img image.Image, grid int) (differ, samples int) {
	b := img.Bounds()
	stepX, stepY := max(b.Dx()/grid, 1), max(b.Dy()/grid, 1)
	ref := img.At(b.Min.X, b.Min.Y)
	// Samples sit in the middle of each grid cell so stripes aligned to the
	// grid cannot hide.
	for y := b.Min.Y + stepY/2; y < b.Max.Y; y += stepY {
		for x := b.Min.X + stepX/2; x < b.Max.X; x += stepX {
			samples++
			if colorsDiffer(ref, img.At(x, y)) {
				differ++
			}
		}
	}
	return differ, samples
}

func colorsDiffer(a, b color.Color) bool {
	r1, g1, b1, a1 := a.RGBA()
	r2, g2, b2, a2 := b.RGBA()
	for _, d := range [][2]uint32{{r1, r2}, {g1, g2}, {b1, b2}, {a1, a2}} {
		if delta(d[0], d[1]) > colorDifferenceThreshold {
			return true
		}
	}
	return false
}

func delta(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}

// getSafeFilename flattens a key into a temp file name. Names longer than
// 200 bytes keep a 20 byte prefix plus a hash of the key and the extension.
func getSafeFilename(key string) string {
	name := strings.ReplaceAll(key, "/", "_")
	if len(name) <= 200 {
		return name
	}
	sum := sha256.Sum256([]byte(key))
	prefix := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`<>:"\|?*`, r) {
			return '_'
		}
		return r
	}, name[:20])
	return prefix + "-" + hex.EncodeToString(sum[:8]) + filepath.Ext(name)
}
