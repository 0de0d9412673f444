package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/josepht96/scout-mcp/internal/storage"
	"github.com/mark3labs/mcp-go/mcp"
)

func runHistoryTool() mcp.Tool {
	return mcp.NewTool("getRunHistory",
		mcp.WithDescription("Lists recent recorded runs of a collection with test counts and duration, newest first."),
		mcp.WithTitleAnnotation("Get Collection Run History"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithString("collectionId",
			mcp.Required(),
			mcp.Description("The collection ID whose runs to list."),
		),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum number of runs (default: %d, max: %d)", storage.DefaultHistoryLimit, storage.MaxHistoryLimit)),
		),
	)
}

func (s *Server) handleRunHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	collectionID, err := requiredString(args, "collectionId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit, err := optionalInt(args, "limit")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	runs, err := s.history.ListRuns(ctx, collectionID, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load run history: %v", err)), nil
	}
	if len(runs) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No recorded runs for collection %s", collectionID)), nil
	}
	return mcp.NewToolResultText(FormatHistory(runs)), nil
}

// FormatHistory renders runs one per line
func FormatHistory(runs []storage.RunRecord) string {
	var b strings.Builder
	for i, r := range runs {
		if i > 0 {
			b.WriteString("\n")
		}
		status := "✅"
		if !r.Succeeded() {
			status = "❌"
		}
		fmt.Fprintf(&b, "%s %s  %s  %d tests | ✓ %d passed | ✗ %d failed | %d requests | %.2fs",
			status,
			r.StartedAt.UTC().Format("2006-01-02 15:04:05"),
			r.CollectionName,
			r.TotalTests, r.PassedTests, r.FailedTests,
			r.TotalRequests,
			float64(r.DurationMs)/1000,
		)
	}
	return b.String()
}
