package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"video-catalog/pkg/client"
	"video-catalog/pkg/errs"
	"video-catalog/pkg/models"
	"video-catalog/pkg/services"
)

// catalogLoader loads a catalog from the local source or a remote API.
type catalogLoader interface {
	Catalog(ctx context.Context) (*models.Catalog, error)
}

// loadCatalog reads the catalog from CATALOG_API_URL when set, otherwise it
// scans the configured source.
func loadCatalog(ctx context.Context) (*models.Catalog, func(), error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	var loader catalogLoader
	closeFn := func() {}
	if cfg.APIURL != "" {
		loader = client.New(cfg.APIURL, nil)
	} else {
		svc, release, err := openService(ctx, cfg, cliLogger())
		if err != nil {
			return nil, nil, err
		}
		loader, closeFn = svc, release
	}

	cat, err := loader.Catalog(ctx)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return cat, closeFn, nil
}

// newScanCmd creates a command that scans the source and prints a summary
func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan the catalog source",
		Long:  `Scan the configured source once and print the number of shows, seasons and episodes per studio.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			cat, closeFn, err := loadCatalog(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			writeScanSummary(cmd.OutOrStdout(), cat, time.Since(start))
			return nil
		},
	}
}

func writeScanSummary(w io.Writer, cat *models.Catalog, took time.Duration) {
	rows := make([][]string, 0, len(cat.Studios))
	var shows, seasons int
	for _, studio := range cat.Studios {
		studioSeasons, episodes := 0, 0
		for _, show := range studio.Shows {
			studioSeasons += len(show.Seasons)
			episodes += show.EpisodeCount()
		}
		shows += len(studio.Shows)
		seasons += studioSeasons
		rows = append(rows, []string{
			studio.Name,
			strconv.Itoa(len(studio.Shows)),
			strconv.Itoa(studioSeasons),
			strconv.Itoa(episodes),
		})
	}
	rows = append(rows, []string{"Total", strconv.Itoa(shows), strconv.Itoa(seasons), strconv.Itoa(len(cat.Videos))})

	renderTable(w, []string{"Studio", "Shows", "Seasons", "Episodes"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight})
	fmt.Fprintf(w, "Scanned in %s\n", took.Round(time.Millisecond))
}

// newListStudiosCmd creates a new command for listing studios
func newListStudiosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-studios",
		Short: "List all studios",
		Long:  `List all studios with the number of shows in each.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, closeFn, err := loadCatalog(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			rows := make([][]string, 0, len(cat.Studios))
			for _, studio := range cat.Studios {
				rows = append(rows, []string{studio.Name, strconv.Itoa(len(studio.Shows))})
			}
			renderTable(cmd.OutOrStdout(), []string{"Studio", "Shows"}, rows, []columnAlignment{alignLeft, alignRight})
			fmt.Fprintf(cmd.OutOrStdout(), "Total: %d studios\n", len(cat.Studios))
			return nil
		},
	}
}

// newListShowsCmd creates a new command for listing shows
func newListShowsCmd() *cobra.Command {
	var studioName string
	cmd := &cobra.Command{
		Use:   "list-shows",
		Short: "List all shows",
		Long:  `List all shows grouped by studio, optionally limited to one studio.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, closeFn, err := loadCatalog(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			var rows [][]string
			for _, studio := range cat.Studios {
				if studioName != "" && studio.Name != studioName {
					continue
				}
				for _, show := range studio.Shows {
					rows = append(rows, []string{
						show.ID,
						show.Name,
						studio.Name,
						strconv.Itoa(len(show.Seasons)),
						strconv.Itoa(show.EpisodeCount()),
					})
				}
			}
			renderTable(cmd.OutOrStdout(), []string{"ID", "Show", "Studio", "Seasons", "Episodes"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight})
			fmt.Fprintf(cmd.OutOrStdout(), "Total: %d shows\n", len(rows))
			return nil
		},
	}
	cmd.Flags().StringVar(&studioName, "studio", "", "Only list shows of this studio")
	return cmd
}

// newShowCmd creates a new command for showing the episodes of a show
func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show the seasons and episodes of a show",
		Long:  `Show the seasons and episodes of a show identified by its id or "studio/show" name.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, closeFn, err := loadCatalog(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			show, ok := services.FindShow(cat, args[0])
			if !ok {
				return errs.NotFound("show", args[0])
			}
			writeShow(cmd.OutOrStdout(), show)
			return nil
		},
	}
}

func writeShow(w io.Writer, show models.ShowDetail) {
	fmt.Fprintf(w, "Show: %s\n", show.Name)
	fmt.Fprintf(w, "Studio: %s\n", show.Studio)
	fmt.Fprintf(w, "Episodes: %d\n", show.EpisodeCount())

	var rows [][]string
	for _, season := range show.Seasons {
		for i, ep := range season.Episodes {
			modified := ""
			if !ep.Modified.IsZero() {
				modified = humanize.Time(ep.Modified)
			}
			rows = append(rows, []string{season.Name, strconv.Itoa(i + 1), ep.Name, modified, ep.Src})
		}
	}
	renderTable(w, []string{"Season", "#", "Episode", "Modified", "URL"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft})
}

// newExportCmd creates a new command for exporting catalog data
func newExportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export [format]",
		Short: "Export catalog data",
		Long: `Export the catalog in the specified format. Currently supported formats: json.
The export can be used as CATALOG_FALLBACK when the source is unreachable.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format := "json"
			if len(args) > 0 {
				format = args[0]
			}
			if format != "json" {
				return fmt.Errorf("unsupported export format %q (supported: json)", format)
			}

			cat, closeFn, err := loadCatalog(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return exportCatalog(w, cat)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}

func exportCatalog(w io.Writer, cat *models.Catalog) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cat); err != nil {
		return fmt.Errorf("error marshaling catalog: %w", err)
	}
	return nil
}
