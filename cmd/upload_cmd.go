package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"video-catalog/pkg/config"
	"video-catalog/pkg/upload"
)

// newUploadCmd creates a command that uploads files through the admin API
func newUploadCmd() *cobra.Command {
	var (
		prefix   string
		user     string
		password string
	)
	cmd := &cobra.Command{
		Use:   "upload [path]",
		Short: "Upload a file or directory through the admin API",
		Long: `Upload a file or every file below a directory to the catalog server. Keys are the prefix
followed by the path relative to the directory. Files are uploaded concurrently and one failing
file does not stop the others.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateClient(); err != nil {
				return err
			}
			files, err := upload.Collect(args[0], prefix)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to upload")
				return nil
			}

			c, err := adminClient(cmd.Context(), cfg, user, password)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			progress, finish := uploadProgress(out, len(files))
			results := c.UploadAll(cmd.Context(), files, progress)
			finish()

			writeUploadResults(out, results)
			if failed := upload.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d of %d files failed", len(failed), len(results))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Destination prefix, e.g. \"Studio/Show/Season 1\"")
	cmd.Flags().StringVar(&user, "user", "", "Admin user, defaults to ADMIN_USER")
	cmd.Flags().StringVar(&password, "password", "", "Admin password, defaults to ADMIN_PASSWORD")
	return cmd
}

// adminClient returns an upload client holding a token, logging in when
// ADMIN_TOKEN is not set. Credentials fall back to ADMIN_USER and
// ADMIN_PASSWORD.
func adminClient(ctx context.Context, cfg *config.Config, user, password string) (*upload.Client, error) {
	c := upload.New(cfg.APIURL, cfg.AdminToken)
	if c.Token != "" {
		return c, nil
	}
	if user == "" {
		user = cfg.AdminUser
	}
	if password == "" {
		password = os.Getenv("ADMIN_PASSWORD")
	}
	if user == "" || password == "" {
		return nil, errors.New("set ADMIN_TOKEN or pass --user and --password")
	}
	if _, err := c.Login(ctx, user, password); err != nil {
		return nil, err
	}
	return c, nil
}

// uploadProgress shows one bar for the whole batch. Each file contributes
// its own percentage.
func uploadProgress(w io.Writer, files int) (func(upload.File, int), func()) {
	if !stdoutIsTerminal() {
		return nil, func() {}
	}

	bar := progressbar.NewOptions(files*100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(fmt.Sprintf("uploading %d files", files)),
		progressbar.OptionClearOnFinish(),
	)
	var mu sync.Mutex
	done := make(map[string]int, files)
	total := 0
	return func(f upload.File, percent int) {
			mu.Lock()
			defer mu.Unlock()
			total += percent - done[f.Key]
			done[f.Key] = percent
			_ = bar.Set(total)
		}, func() {
			_ = bar.Finish()
		}
}

func writeUploadResults(w io.Writer, results []upload.Result) {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		size := ""
		if fi, err := os.Stat(r.File.Path); err == nil {
			size = humanize.Bytes(uint64(fi.Size()))
		}
		status := "ok"
		if r.Err != nil {
			status = r.Err.Error()
		}
		rows = append(rows, []string{r.File.Key, size, status})
	}
	renderTable(w, []string{"Key", "Size", "Status"}, rows, []columnAlignment{alignLeft, alignRight, alignLeft})
}
