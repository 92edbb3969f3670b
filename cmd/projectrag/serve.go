package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/projectrag-mcp/internal/logger"
	"github.com/dshills/projectrag-mcp/internal/mcp"
	"github.com/dshills/projectrag-mcp/internal/rag"
	"github.com/dshills/projectrag-mcp/internal/storage"
)

var serveEphemeral bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server on stdio",
	Long: `Start the Model Context Protocol server. Requests are read from stdin
and responses written to stdout; all logging goes to stderr.

MCP client configuration:
  {
    "mcpServers": {
      "projectrag": {
        "command": "/path/to/projectrag",
        "args": ["serve"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveEphemeral, "ephemeral", false, "keep indexes in memory only")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger.SetOutput(os.Stderr)
	logger.Info("projectrag MCP server %s starting...", version)
	logger.Info("Build Mode: %s, Driver: %s", storage.BuildMode, storage.DriverName)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	svc, err := rag.Open(ctx, cfg, rag.SetupOptions{Ephemeral: serveEphemeral})
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer func() { _ = svc.Close() }()

	server := mcp.NewServer(svc)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("MCP server ready, listening on stdio...")
		errChan <- server.Serve(ctx)
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Received signal %v, shutting down gracefully...", sig)
		cancel()
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("Server stopped")
	return nil
}
