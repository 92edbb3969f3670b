package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/projectrag-mcp/internal/rag"
)

const (
	// ServerName is the MCP server name
	ServerName = "projectrag-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp *server.MCPServer
	rag *rag.Service
}

// NewServer creates a new MCP server backed by svc
func NewServer(svc *rag.Service) *Server {
	s := &Server{
		mcp: server.NewMCPServer(ServerName, ServerVersion),
		rag: svc,
	}
	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.rag.Close() }()
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(initializeProjectTool(), s.handleInitializeProject)
	s.mcp.AddTool(askProjectTool(), s.handleAskProject)
	s.mcp.AddTool(projectStatusTool(), s.handleProjectStatus)
}
