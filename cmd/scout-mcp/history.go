package main

import (
	"errors"
	"fmt"

	"github.com/josepht96/scout-mcp/internal/config"
	"github.com/josepht96/scout-mcp/internal/mcpserver"
	"github.com/josepht96/scout-mcp/internal/storage"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <collectionId>",
		Short: "Show recorded runs of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return errors.New("run history requires a database (DATABASE_URL)")
			}

			logger.Debug().Str("database", config.MaskConnectionString(cfg.Database.URL)).Msg("connecting to database")
			store, err := storage.NewStorage(cfg.Database.URL, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No recorded runs for collection %s\n", args[0])
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), mcpserver.FormatHistory(runs))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", storage.DefaultHistoryLimit, "maximum number of runs")
	return cmd
}
