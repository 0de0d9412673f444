package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/josepht96/scout-mcp/internal/runner"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var params runner.Params

	cmd := &cobra.Command{
		Use:   "run <collectionId>",
		Short: "Run a collection once and print the report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			params.CollectionID = args[0]
			output, err := a.runner.RunCollection(ctx, params)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&params.EnvironmentID, "environment", "e", "", "environment ID for variable substitution")
	flags.StringVarP(&params.FolderID, "folder", "f", "", "folder name or ID to run")
	flags.BoolVar(&params.StopOnError, "stop-on-error", false, "gracefully halt on errors")
	flags.BoolVar(&params.StopOnFailure, "stop-on-failure", false, "gracefully halt on test failures")
	flags.BoolVar(&params.AbortOnError, "abort-on-error", false, "abruptly halt on errors")
	flags.BoolVar(&params.AbortOnFailure, "abort-on-failure", false, "abruptly halt on test failures")
	flags.IntVarP(&params.IterationCount, "iterations", "n", runner.DefaultIterationCount, "number of iterations")
	flags.IntVar(&params.RequestTimeout, "request-timeout", runner.DefaultRequestTimeoutMs, "request timeout in milliseconds")
	flags.IntVar(&params.ScriptTimeout, "script-timeout", runner.DefaultScriptTimeoutMs, "script timeout in milliseconds")
	return cmd
}
