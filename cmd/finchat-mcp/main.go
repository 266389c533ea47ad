package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"

	"github.com/spektr-org/finchat/internal/app"
	"github.com/spektr-org/finchat/internal/common"
)

func main() {
	configPath := os.Getenv("FINCHAT_CONFIG")

	config, err := common.LoadFromFiles(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the MCP protocol; warnings only, no file output
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	a, err := app.New(context.Background(), config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer a.Close()

	mcpServer := newMCPServer(a)

	// Start server (blocks on stdio)
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}

func newMCPServer(a *app.App) *server.MCPServer {
	mcpServer := server.NewMCPServer(
		common.ServiceName,
		common.Version,
		server.WithToolCapabilities(true),
	)
	mcpServer.AddTool(createAnalyzeQueryTool(), handleAnalyzeQuery(a.Chat, a.Logger))
	mcpServer.AddTool(createListDatasetValuesTool(), handleListDatasetValues(a.Store, a.Logger))
	return mcpServer
}
