package main

import (
	"os"
	"time"

	"github.com/josepht96/scout-mcp/internal/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configFile string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "scout-mcp",
	Short: "Run Postman collections from MCP clients",
	Long: `scout-mcp is an MCP server that runs stored Postman collections through
newman, reports per-request test results and records run history and metrics.`,
	SilenceUsage: true,
}

func execute() {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(`{{printf "scout-mcp version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// loadConfig reads the config file and environment and builds the logger.
// Logs always go to stderr so stdout stays free for the stdio transport.
func loadConfig() (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	return cfg, newLogger(cfg.Log), nil
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	if debug {
		level = zerolog.DebugLevel
	}

	var logger zerolog.Logger
	if cfg.Format == "json" {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339Nano,
		})
	}
	return logger.Level(level).With().Timestamp().Logger()
}
