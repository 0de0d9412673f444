package mcpserver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/josepht96/scout-mcp/internal/runner"
	"github.com/josepht96/scout-mcp/internal/storage"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

const ServerName = "scout-mcp"

// CollectionRunner runs one collection and returns its report
type CollectionRunner interface {
	RunCollection(ctx context.Context, params runner.Params) (string, error)
}

// APIClient performs raw Postman API calls for the pass-through tools
type APIClient interface {
	Do(ctx context.Context, method, path, body string, headers map[string]string) (json.RawMessage, error)
}

// HistoryStore lists persisted runs
type HistoryStore interface {
	ListRuns(ctx context.Context, collectionID string, limit int) ([]storage.RunRecord, error)
}

// Config contains MCP server configuration. History is optional.
type Config struct {
	Version string
	Runner  CollectionRunner
	API     APIClient
	History HistoryStore
	Logger  zerolog.Logger
}

// Server exposes the collection runner and Postman API tools over MCP
type Server struct {
	mcp     *server.MCPServer
	runner  CollectionRunner
	api     APIClient
	history HistoryStore
	logger  zerolog.Logger
}

// NewServer creates the MCP server and registers every tool
func NewServer(cfg Config) *Server {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		mcp: server.NewMCPServer(
			ServerName,
			version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
		runner:  cfg.Runner,
		api:     cfg.API,
		history: cfg.History,
		logger:  cfg.Logger.With().Str("component", "mcpserver").Logger(),
	}

	s.mcp.AddTool(runCollectionTool(), s.handleRunCollection)
	if s.api != nil {
		for _, def := range passThroughTools {
			s.mcp.AddTool(def.tool(), s.passThroughHandler(def))
		}
	}
	if s.history != nil {
		s.mcp.AddTool(runHistoryTool(), s.handleRunHistory)
	}

	return s
}

// MCPServer returns the underlying server
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ServeStdio serves MCP over stdin/stdout until the input is closed
func (s *Server) ServeStdio() error {
	s.logger.Info().Msg("serving MCP over stdio")
	return server.ServeStdio(s.mcp)
}

// SSEServer builds the SSE transport. It implements http.Handler and is
// mounted by the HTTP API server.
func (s *Server) SSEServer(baseURL string) *server.SSEServer {
	return server.NewSSEServer(
		s.mcp,
		server.WithBaseURL(baseURL),
		server.WithSSEEndpoint("/sse"),
		server.WithMessageEndpoint("/message"),
		server.WithKeepAlive(true),
		server.WithKeepAliveInterval(30*time.Second),
	)
}
