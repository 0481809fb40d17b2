package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"video-catalog/pkg/auth"
	"video-catalog/pkg/storage"
)

// newAdminCmd groups the admin subcommands
func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage stored media and admin credentials",
	}
	cmd.AddCommand(newAdminListCmd(), newAdminRemoveCmd(), newAdminSweepCmd(), newAdminTokenCmd(), newAdminHashCmd())
	return cmd
}

func newAdminListCmd() *cobra.Command {
	var user, password string
	cmd := &cobra.Command{
		Use:   "ls [prefix]",
		Short: "List one level of the store through the admin API",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateClient(); err != nil {
				return err
			}
			c, err := adminClient(cmd.Context(), cfg, user, password)
			if err != nil {
				return err
			}
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			listing, err := c.List(cmd.Context(), prefix)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(listing.Prefixes)+len(listing.Objects))
			for _, p := range listing.Prefixes {
				rows = append(rows, []string{strings.TrimSuffix(p, "/") + "/", "", ""})
			}
			for _, obj := range listing.Objects {
				rows = append(rows, []string{obj.Key, humanize.Bytes(uint64(obj.Size)), humanize.Time(obj.Uploaded)})
			}
			renderTable(cmd.OutOrStdout(), []string{"Key", "Size", "Uploaded"}, rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft})
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "Admin user, defaults to ADMIN_USER")
	cmd.Flags().StringVar(&password, "password", "", "Admin password, defaults to ADMIN_PASSWORD")
	return cmd
}

func newAdminRemoveCmd() *cobra.Command {
	var user, password string
	cmd := &cobra.Command{
		Use:   "rm [key...]",
		Short: "Delete objects through the admin API",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateClient(); err != nil {
				return err
			}
			c, err := adminClient(cmd.Context(), cfg, user, password)
			if err != nil {
				return err
			}
			var failed int
			for _, key := range args {
				if err := c.Delete(cmd.Context(), key); err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", key, err)
					failed++
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", key)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d deletes failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "Admin user, defaults to ADMIN_USER")
	cmd.Flags().StringVar(&password, "password", "", "Admin password, defaults to ADMIN_PASSWORD")
	return cmd
}

func newAdminSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove multipart uploads older than STALE_UPLOAD_AGE",
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
			if svc.Store() == nil {
				return errors.New("the configured source has no object store")
			}
			removed, err := storage.NewMultipart(svc.Store(), cfg.PartSize).Sweep(cmd.Context(), cfg.StaleUploadAge)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d stale uploads\n", removed)
			return nil
		},
	}
}

func newAdminTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Issue an admin token signed with SECRET_KEY",
		Long:  `Issue an admin bearer token for ADMIN_USER without a login round trip. Use it as ADMIN_TOKEN.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig()
			if err != nil {
				return err
			}
			if cfg.SecretKey == "" || cfg.AdminUser == "" {
				return errors.New("SECRET_KEY and ADMIN_USER must be set")
			}
			token, err := auth.New(cfg.SecretKey, cfg.AdminUser, cfg.AdminPasswordHash).Issue(cfg.AdminUser)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

func newAdminHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
