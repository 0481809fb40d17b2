package cmd

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"video-catalog/pkg/services"
)

// newGenerateThumbnailsCmd creates a new command for generating thumbnails for episodes
func newGenerateThumbnailsCmd() *cobra.Command {
	var (
		prefix          string
		forceRegenerate bool
		frameTimeMs     int
		clearOnly       bool
	)
	cmd := &cobra.Command{
		Use:   "generate-thumbnails",
		Short: "Generate thumbnails for episodes without existing thumbnails",
		Long: `Generate thumbnails for episodes that have no image with the same base name. Frames are
extracted with ffmpeg, checked for solid colors and stored next to the video.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig()
			if err != nil {
				return err
			}
			svc, closeFn, err := openService(cmd.Context(), cfg, cliLogger())
			if err != nil {
				return err
			}
			defer closeFn()

			out := cmd.OutOrStdout()
			if clearOnly {
				deleted, err := svc.BulkClearThumbnails(cmd.Context(), prefix)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Deleted %d thumbnails\n", deleted)
				return nil
			}

			progress, finish := thumbnailProgress(out)
			res, err := svc.BulkGenerateThumbnails(cmd.Context(), prefix, frameTimeMs, forceRegenerate, progress)
			finish()
			if err != nil {
				return err
			}
			writeThumbnailSummary(out, res)
			if res.Errors > 0 {
				return fmt.Errorf("%d thumbnails failed", res.Errors)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Only process videos below this prefix")
	cmd.Flags().BoolVarP(&forceRegenerate, "force", "f", false, "Force regeneration of all thumbnails, even if they exist")
	cmd.Flags().IntVarP(&frameTimeMs, "time", "t", 1000, "Time in milliseconds where to extract the thumbnail frame")
	cmd.Flags().BoolVar(&clearOnly, "clear", false, "Delete episode thumbnails instead of generating them")
	return cmd
}

// thumbnailProgress reports bulk progress as a bar on a terminal and as
// plain lines otherwise.
func thumbnailProgress(w io.Writer) (services.ProgressCallback, func()) {
	if !stdoutIsTerminal() {
		return func(step string, progress int) {
			fmt.Fprintf(w, "[%3d%%] %s\n", progress, step)
		}, func() {}
	}

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("thumbnails"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	return func(step string, progress int) {
			bar.Describe(step)
			_ = bar.Set(progress)
		}, func() {
			_ = bar.Finish()
		}
}

func writeThumbnailSummary(w io.Writer, res services.ThumbnailResult) {
	renderTable(w, []string{"Processed", "Skipped", "Errors"}, [][]string{{
		fmt.Sprint(res.Processed), fmt.Sprint(res.Skipped), fmt.Sprint(res.Errors),
	}}, []columnAlignment{alignRight, alignRight, alignRight})
}
