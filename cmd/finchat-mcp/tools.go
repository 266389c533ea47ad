package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createAnalyzeQueryTool returns the analyze_financial_query tool definition
func createAnalyzeQueryTool() mcp.Tool {
	return mcp.NewTool("analyze_financial_query",
		mcp.WithDescription("Analyze the financial dataset for a free-text question (Spanish or English). Returns aggregates, period-over-period changes and anomalies computed locally"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Question, e.g. 'originacion pyme los ultimos 3 meses elaboracion 08-01-2025'"),
		),
		mcp.WithString("format",
			mcp.Description("Output format: markdown (default) or json"),
		),
	)
}

// createListDatasetValuesTool returns the list_dataset_values tool definition
func createListDatasetValuesTool() mcp.Tool {
	return mcp.NewTool("list_dataset_values",
		mcp.WithDescription("List the distinct values of a dataset column, or every column with its value count when no column is given"),
		mcp.WithString("column",
			mcp.Description("Column name: Elaboracion, Periodo, Pais, Negocio, Concepto, Clasificación, Cohort_Act, Escenario"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum values to return (default: 50, max: 500)"),
		),
	)
}
