package mcpserver

import (
	"context"
	"fmt"

	"github.com/josepht96/scout-mcp/internal/runner"
	"github.com/mark3labs/mcp-go/mcp"
)

const runCollectionDescription = "Runs a Postman collection by ID with detailed test results and execution statistics. " +
	"Supports optional environment for variable substitution and optional folder filtering to run only requests " +
	"within a specific folder. Note: Advanced parameters like custom delays and other runtime options are not yet available."

func runCollectionTool() mcp.Tool {
	return mcp.NewTool("runCollection",
		mcp.WithDescription(runCollectionDescription),
		mcp.WithTitleAnnotation("Run Postman Collection"),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithString("collectionId",
			mcp.Required(),
			mcp.Description("The collection ID in the format <OWNER_ID>-<UUID> (e.g. 12345-33823532ab9e41c9b6fd12d0fd459b8b)."),
		),
		mcp.WithString("environmentId",
			mcp.Description("Optional environment ID to use for variable substitution during the run."),
		),
		mcp.WithString("folderId",
			mcp.Description("Optional folder name or ID to filter the run to only requests within that folder (and nested subfolders). Folder names are preferred; IDs will be automatically resolved to names."),
		),
		mcp.WithBoolean("stopOnError", mcp.Description("Gracefully halt on errors (default: false)")),
		mcp.WithBoolean("stopOnFailure", mcp.Description("Gracefully halt on test failures (default: false)")),
		mcp.WithBoolean("abortOnError", mcp.Description("Abruptly halt on errors (default: false)")),
		mcp.WithBoolean("abortOnFailure", mcp.Description("Abruptly halt on test failures (default: false)")),
		mcp.WithNumber("iterationCount", mcp.Description("Number of iterations to run (default: 1)")),
		mcp.WithNumber("requestTimeout", mcp.Description("Request timeout in milliseconds (default: 60000)")),
		mcp.WithNumber("scriptTimeout", mcp.Description("Script timeout in milliseconds (default: 5000)")),
	)
}

// handleRunCollection runs the collection and returns the text report.
// Fetch and engine failures are returned as tool call errors.
func (s *Server) handleRunCollection(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params, err := parseRunParams(request.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	output, err := s.runner.RunCollection(ctx, params)
	if err != nil {
		s.logger.Error().Err(err).Str("collection_id", params.CollectionID).Msg("runCollection failed")
		return nil, err
	}
	return mcp.NewToolResultText(output), nil
}

func parseRunParams(args map[string]interface{}) (runner.Params, error) {
	var p runner.Params
	var err error

	if p.CollectionID, err = requiredString(args, "collectionId"); err != nil {
		return p, err
	}
	if p.EnvironmentID, err = optionalString(args, "environmentId"); err != nil {
		return p, err
	}
	if p.FolderID, err = optionalString(args, "folderId"); err != nil {
		return p, err
	}

	for key, dst := range map[string]*bool{
		"stopOnError":    &p.StopOnError,
		"stopOnFailure":  &p.StopOnFailure,
		"abortOnError":   &p.AbortOnError,
		"abortOnFailure": &p.AbortOnFailure,
	} {
		if *dst, err = optionalBool(args, key); err != nil {
			return p, err
		}
	}
	for key, dst := range map[string]*int{
		"iterationCount": &p.IterationCount,
		"requestTimeout": &p.RequestTimeout,
		"scriptTimeout":  &p.ScriptTimeout,
	} {
		if *dst, err = optionalInt(args, key); err != nil {
			return p, err
		}
	}

	return p, nil
}

func requiredString(args map[string]interface{}, key string) (string, error) {
	v, err := optionalString(args, key)
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", fmt.Errorf("%s parameter is required", key)
	}
	return v, nil
}

func optionalString(args map[string]interface{}, key string) (string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", key)
	}
	return s, nil
}

func optionalBool(args map[string]interface{}, key string) (bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return false, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return false, fmt.Errorf("%s must be a boolean", key)
	}
	return b, nil
}

// optionalInt accepts JSON numbers, which decode as float64
func optionalInt(args map[string]interface{}, key string) (int, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return 0, nil
	}
	switch n := raw.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("%s must be a number", key)
	}
}
