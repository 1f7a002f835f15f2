package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"terratruce-gateway/internal/app"
	"terratruce-gateway/internal/cache"
)

func newCacheCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the response cache",
	}

	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete expired cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if cfg.Cache.Backend == cache.BackendMemory {
				return fmt.Errorf("purge needs a persistent backend, config has %q", cfg.Cache.Backend)
			}
			store, closeStore, err := app.OpenStore(cmd.Context(), cfg, opts.logger())
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()

			n, err := store.PurgeExpired(cmd.Context())
			if errors.Is(err, cache.ErrPurgeUnsupported) {
				fmt.Fprintf(cmd.OutOrStdout(), "The %s backend expires entries on its own; nothing to purge.\n", cfg.Cache.Backend)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Purged %d expired entries.\n", n)
			return nil
		},
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache entries per kind (sqlite backend)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if cfg.Cache.Backend != cache.BackendSQLite {
				return fmt.Errorf("stats need the sqlite backend, config has %q", cfg.Cache.Backend)
			}
			store, err := cache.OpenSQLiteStore(cfg.Cache.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KIND\tENTRIES\tLIVE")
			for _, s := range stats {
				fmt.Fprintf(tw, "%s\t%d\t%d\n", s.Kind, s.Entries, s.Live)
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(purgeCmd, statsCmd)
	return cmd
}
