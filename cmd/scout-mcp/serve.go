package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/josepht96/scout-mcp/internal/api"
	"github.com/josepht96/scout-mcp/internal/config"
	"github.com/josepht96/scout-mcp/internal/mcpserver"
	"github.com/josepht96/scout-mcp/internal/scheduler"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var transport string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP tools over stdio or SSE",
		Long: `Serve the runCollection tool and the Postman API tools over MCP.

With the stdio transport the server talks on stdin/stdout. With the sse
transport an HTTP server exposes /sse, /message, /health, /metrics and
/api endpoints. Configured schedules run in the background in both modes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("transport") {
				cfg.Server.Transport = transport
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			mcpServer := mcpserver.NewServer(mcpserver.Config{
				Version: version,
				Runner:  a.runner,
				API:     a.client,
				History: historyStore(a),
				Logger:  logger,
			})

			sched := scheduler.NewScheduler(scheduler.Config{
				Runner:    a.runner,
				Schedules: cfg.Schedules,
				Logger:    logger,
			})
			if len(cfg.Schedules) > 0 {
				sched.Start()
				defer sched.Stop()
			}

			if cfg.Server.Transport == config.TransportStdio {
				return mcpServer.ServeStdio()
			}

			baseURL := cfg.Server.BaseURL
			if baseURL == "" {
				baseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
			}
			server := api.NewServer(api.Config{
				Runner:    a.runner,
				History:   historyStore(a),
				Scheduler: sched,
				Gatherer:  a.registry,
				MCP:       mcpServer.SSEServer(baseURL),
				Port:      cfg.Server.Port,
				Logger:    logger,
			})

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Start()
			}()

			logger.Info().Str("url", baseURL+"/sse").Msg("scout-mcp is running")

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", config.TransportStdio, "MCP transport: stdio or sse")
	cmd.Flags().IntVar(&port, "port", 8080, "HTTP port for the sse transport")
	return cmd
}

// historyStore avoids handing a typed nil *storage.Storage to an interface
func historyStore(a *app) api.HistoryStore {
	if a.store == nil {
		return nil
	}
	return a.store
}
