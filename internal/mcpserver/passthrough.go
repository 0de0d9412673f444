package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// apiTool describes a tool that forwards to a single Postman API endpoint.
// Path segments written as {name} are filled from required string arguments.
type apiTool struct {
	name        string
	description string
	method      string
	path        string
	pathParams  []param
	queryParams []param
}

type param struct {
	name        string
	description string
}

var passThroughTools = []apiTool{
	{
		name:        "getCollections",
		description: "Gets all of your collections, optionally filtered by workspace.",
		method:      http.MethodGet,
		path:        "/collections",
		queryParams: []param{
			{"workspace", "The workspace's ID."},
			{"name", "Filter results by collections that match the given name."},
		},
	},
	{
		name:        "getCollection",
		description: "Gets information about a collection.",
		method:      http.MethodGet,
		path:        "/collections/{collectionId}",
		pathParams:  []param{{"collectionId", "The collection's ID."}},
		queryParams: []param{
			{"access_key", "A collection's read-only access key."},
			{"model", "Set to `minimal` to return only root-level folder and request IDs."},
		},
	},
	{
		name:        "getCollectionFolder",
		description: "Gets information about a folder in a collection.",
		method:      http.MethodGet,
		path:        "/collections/{collectionId}/folders/{folderId}",
		pathParams: []param{
			{"collectionId", "The collection's ID."},
			{"folderId", "The folder's ID."},
		},
	},
	{
		name:        "getCollectionRequest",
		description: "Gets information about a request in a collection.",
		method:      http.MethodGet,
		path:        "/collections/{collectionId}/requests/{requestId}",
		pathParams: []param{
			{"collectionId", "The collection's ID."},
			{"requestId", "The request's ID."},
		},
	},
	{
		name:        "getEnvironments",
		description: "Gets information about all of your environments.",
		method:      http.MethodGet,
		path:        "/environments",
		queryParams: []param{{"workspace", "The workspace's ID."}},
	},
	{
		name:        "getEnvironment",
		description: "Gets information about an environment.",
		method:      http.MethodGet,
		path:        "/environments/{environmentId}",
		pathParams:  []param{{"environmentId", "The environment's ID."}},
	},
	{
		name:        "getWorkspaces",
		description: "Gets all workspaces you have access to.",
		method:      http.MethodGet,
		path:        "/workspaces",
		queryParams: []param{{"type", "The type of workspace to filter the response by (personal, team, private, public, partner)."}},
	},
	{
		name:        "getWorkspace",
		description: "Gets information about a workspace.",
		method:      http.MethodGet,
		path:        "/workspaces/{workspaceId}",
		pathParams:  []param{{"workspaceId", "The workspace's ID."}},
	},
	{
		name:        "getMonitors",
		description: "Gets all monitors.",
		method:      http.MethodGet,
		path:        "/monitors",
		queryParams: []param{{"workspace", "Return only monitors found in the given workspace."}},
	},
	{
		name:        "getMonitor",
		description: "Gets information about a monitor.",
		method:      http.MethodGet,
		path:        "/monitors/{monitorId}",
		pathParams:  []param{{"monitorId", "The monitor's ID."}},
	},
	{
		name:        "runMonitor",
		description: "Runs a monitor and returns its run results.",
		method:      http.MethodPost,
		path:        "/monitors/{monitorId}/run",
		pathParams:  []param{{"monitorId", "The monitor's ID."}},
	},
	{
		name:        "getAuthenticatedUser",
		description: "Gets information about the authenticated user.",
		method:      http.MethodGet,
		path:        "/me",
	},
}

func (t apiTool) readOnly() bool {
	return t.method == http.MethodGet
}

func (t apiTool) tool() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(t.description),
		mcp.WithTitleAnnotation(t.description),
		mcp.WithReadOnlyHintAnnotation(t.readOnly()),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(t.readOnly()),
	}
	for _, p := range t.pathParams {
		opts = append(opts, mcp.WithString(p.name, mcp.Required(), mcp.Description(p.description)))
	}
	for _, p := range t.queryParams {
		opts = append(opts, mcp.WithString(p.name, mcp.Description(p.description)))
	}
	return mcp.NewTool(t.name, opts...)
}

// endpoint renders the request path from the call arguments
func (t apiTool) endpoint(args map[string]interface{}) (string, error) {
	path := t.path
	for _, p := range t.pathParams {
		v, err := requiredString(args, p.name)
		if err != nil {
			return "", err
		}
		path = strings.ReplaceAll(path, "{"+p.name+"}", url.PathEscape(v))
	}

	query := url.Values{}
	for _, p := range t.queryParams {
		v, err := optionalString(args, p.name)
		if err != nil {
			return "", err
		}
		if v != "" {
			query.Set(p.name, v)
		}
	}
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	return path, nil
}

func (s *Server) passThroughHandler(t apiTool) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := t.endpoint(request.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		body := ""
		if t.method == http.MethodPost {
			body = "{}"
		}

		result, err := s.api.Do(ctx, t.method, path, body, nil)
		if err != nil {
			s.logger.Error().Err(err).Str("tool", t.name).Str("path", path).Msg("postman api call failed")
			return nil, err
		}
		return mcp.NewToolResultText(prettyJSON(result)), nil
	}
}

func prettyJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
