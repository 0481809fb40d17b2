package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"video-catalog/pkg/services"
)

// newFetchArtworkCmd creates a command that stores TMDb banners for shows
func newFetchArtworkCmd() *cobra.Command {
	var (
		title   string
		missing bool
		search  string
	)
	cmd := &cobra.Command{
		Use:   "fetch-artwork [show-id]",
		Short: "Fetch show banners from TMDb",
		Long: `Search TMDb for a show and store its backdrop as banner.jpg in the show folder.
Use --missing to fetch banners for every show without one, or --search to list matches.`,
		Args: cobra.MaximumNArgs(1),
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

			if search != "" {
				results, err := svc.SearchArtwork(cmd.Context(), search)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					rows = append(rows, []string{r.Title, r.Year, r.BannerURL})
				}
				renderTable(out, []string{"Title", "Year", "Banner"}, rows, nil)
				return nil
			}

			var showIDs []string
			switch {
			case len(args) == 1:
				showIDs = args
			case missing:
				cat, err := svc.Catalog(cmd.Context())
				if err != nil {
					return err
				}
				for _, show := range services.MissingBanners(cat) {
					showIDs = append(showIDs, show.ID)
				}
			default:
				return errors.New("pass a show id, --missing or --search")
			}

			failed := 0
			for _, id := range showIDs {
				if err := svc.FetchShowArtwork(cmd.Context(), id, title, nil); err != nil {
					fmt.Fprintf(out, "%s: %v\n", id, err)
					failed++
					continue
				}
				fmt.Fprintf(out, "%s: banner stored\n", id)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d shows failed", failed, len(showIDs))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Search title (defaults to the show name)")
	cmd.Flags().BoolVar(&missing, "missing", false, "Fetch banners for every show without one")
	cmd.Flags().StringVar(&search, "search", "", "List TMDb matches for a title")
	return cmd
}
