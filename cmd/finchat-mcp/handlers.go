package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/spektr-org/finchat/engine"
	"github.com/spektr-org/finchat/internal/chat"
	"github.com/spektr-org/finchat/internal/store"
	"github.com/spektr-org/finchat/schema"
)

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

// handleAnalyzeQuery implements the analyze_financial_query tool. It always
// takes the local analysis path; the model fallback is never consulted.
func handleAnalyzeQuery(svc *chat.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil || strings.TrimSpace(query) == "" {
			return textResult("Error: query parameter is required"), nil
		}

		res, err := svc.Analyze(query)
		if err != nil {
			logger.Error().Err(err).Str("query", query).Msg("Analysis failed")
			return textResult(fmt.Sprintf("Analysis error: %v", err)), nil
		}

		if request.GetString("format", "markdown") == "json" {
			b, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return textResult(fmt.Sprintf("Encoding error: %v", err)), nil
			}
			return textResult(string(b)), nil
		}
		return textResult(res.Reply), nil
	}
}

// handleListDatasetValues implements the list_dataset_values tool
func handleListDatasetValues(st *store.Store, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := request.GetInt("limit", 50)
		if limit < 1 {
			limit = 50
		}
		if limit > 500 {
			limit = 500
		}

		view := st.View()
		present := engine.Presence(view)
		column := strings.TrimSpace(request.GetString("column", ""))

		if column == "" {
			return textResult(formatColumnOverview(view, present)), nil
		}

		if !isDimension(column) {
			return textResult(fmt.Sprintf("Unknown column %q. Known columns: %s", column, strings.Join(schema.DimensionColumns, ", "))), nil
		}
		if !present.Has(column) {
			return textResult(fmt.Sprintf("Column %s is not present in the loaded dataset", column)), nil
		}

		values := engine.UniqueValues(view, column)
		if d, ok := schema.Default().Dimension(column); ok && d.IsTemporal {
			engine.SortPeriods(values)
		} else {
			sort.Strings(values)
		}
		logger.Debug().Str("column", column).Int("values", len(values)).Msg("Listed dataset values")
		return textResult(formatValues(column, values, limit)), nil
	}
}

func isDimension(column string) bool {
	for _, c := range schema.DimensionColumns {
		if c == column {
			return true
		}
	}
	return false
}

func formatColumnOverview(view engine.RecordView, present schema.Presence) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Dataset\n\n%d records\n\n", view.Len()))
	sb.WriteString("| Column | Distinct values |\n|---|---|\n")
	for _, col := range schema.DimensionColumns {
		if !present.Has(col) {
			sb.WriteString(fmt.Sprintf("| %s | missing |\n", col))
			continue
		}
		sb.WriteString(fmt.Sprintf("| %s | %d |\n", col, len(engine.UniqueValues(view, col))))
	}
	return sb.String()
}

func formatValues(column string, values []string, limit int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", column))
	if len(values) == 0 {
		sb.WriteString("No values.\n")
		return sb.String()
	}
	shown := values
	if len(shown) > limit {
		shown = shown[:limit]
	}
	for _, v := range shown {
		sb.WriteString(fmt.Sprintf("- %s\n", v))
	}
	if len(values) > limit {
		sb.WriteString(fmt.Sprintf("\n(%d of %d values shown)\n", limit, len(values)))
	}
	return sb.String()
}
