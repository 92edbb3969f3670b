package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/projectrag-mcp/internal/answerer"
	"github.com/dshills/projectrag-mcp/internal/chunker"
	"github.com/dshills/projectrag-mcp/internal/embedder"
	"github.com/dshills/projectrag-mcp/internal/rag"
	"github.com/dshills/projectrag-mcp/internal/searcher"
	"github.com/dshills/projectrag-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams        = -32602 // Invalid method parameters
	ErrorCodeInternalError        = -32603 // Internal JSON-RPC error
	ErrorCodeInvalidProject       = -32001 // project_data cannot be decoded or yields no chunks
	ErrorCodeEmbeddingUnavailable = -32002 // Embedding model failed
	ErrorCodeNotInitialized       = -32003 // Project not initialized
	ErrorCodeEmptyQuery           = -32004 // Question parameter is empty
	ErrorCodeModelUnavailable     = -32005 // Chat model failed
)

// handleInitializeProject handles the initialize_project tool invocation
func (s *Server) handleInitializeProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	projectID, err := requireString(args, "project_id")
	if err != nil {
		return nil, err
	}

	raw, err := projectDataArg(args)
	if err != nil {
		return nil, err
	}

	force := getBoolDefault(args, "force_rebuild", false)

	res, err := s.rag.InitializeJSON(ctx, projectID, raw, force)
	if err != nil {
		return nil, toMCPError(err)
	}

	response := map[string]interface{}{
		"initialized": true,
		"project_id":  res.ProjectID,
		"outcome":     res.Outcome.String(),
		"chunks":      res.Chunks,
		"persisted":   res.Persisted,
		"fingerprint": res.Fingerprint,
		"duration_ms": res.Duration.Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleAskProject handles the ask_project tool invocation
func (s *Server) handleAskProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	projectID, err := requireString(args, "project_id")
	if err != nil {
		return nil, err
	}

	question, _ := args["question"].(string)
	if strings.TrimSpace(question) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "question parameter is required and cannot be empty", map[string]interface{}{
			"param":  "question",
			"reason": "missing or empty",
		})
	}

	topK := getIntDefault(args, "top_k", 0)
	if topK < 0 || topK > searcher.MaxLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("top_k must be between 1 and %d", searcher.MaxLimit), map[string]interface{}{
			"param": "top_k",
			"value": topK,
		})
	}

	minScore, err := getScore(args, "min_score")
	if err != nil {
		return nil, err
	}

	chunkTypes, err := getChunkTypes(args, "chunk_types")
	if err != nil {
		return nil, err
	}

	ans, err := s.rag.QueryWith(ctx, projectID, question, rag.QueryOptions{
		TopK:     topK,
		MinScore: minScore,
		Types:    chunkTypes,
	})
	if err != nil {
		return nil, toMCPError(err)
	}

	if !getBoolDefault(args, "include_sources", false) {
		return mcp.NewToolResultText(ans.Text), nil
	}

	sources := make([]map[string]interface{}, len(ans.Sources))
	for i, r := range ans.Sources {
		src := map[string]interface{}{
			"rank":   r.Rank,
			"score":  r.Score,
			"source": r.Chunk.Metadata.Source,
			"type":   r.Chunk.Metadata.Type,
			"text":   r.Chunk.Text,
		}
		if r.Chunk.Metadata.ModuleName != "" {
			src["module"] = r.Chunk.Metadata.ModuleName
		}
		sources[i] = src
	}
	response := map[string]interface{}{
		"answer":  ans.Text,
		"sources": sources,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleProjectStatus handles the project_status tool invocation
func (s *Server) handleProjectStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	projectID, err := requireString(args, "project_id")
	if err != nil {
		return nil, err
	}

	st := s.rag.Status(ctx, projectID)
	response := map[string]interface{}{
		"project_id":  st.ProjectID,
		"initialized": st.Resident,
		"building":    st.Building,
	}
	if st.Resident {
		response["index"] = map[string]interface{}{
			"chunks":      st.Chunks,
			"fingerprint": st.Fingerprint,
			"persisted":   st.Persisted,
			"ready_at":    st.ReadyAt.Format(time.RFC3339),
		}
	} else {
		response["message"] = "Project not initialized. Use initialize_project to index it."
	}
	if st.Snapshot != nil {
		response["snapshot"] = map[string]interface{}{
			"path":           st.Snapshot.Path,
			"schema_version": st.Snapshot.SchemaVersion,
			"chunks":         st.Snapshot.Meta.ChunkCount,
			"records":        st.Snapshot.Records,
			"dimension":      st.Snapshot.Meta.Dimension,
			"model":          st.Snapshot.Meta.Provider + "/" + st.Snapshot.Meta.Model,
			"created_at":     st.Snapshot.Meta.CreatedAt.Format(time.RFC3339),
			"size_kb":        fmt.Sprintf("%.1f", float64(st.Snapshot.SizeBytes)/1024),
			"chunk_types":    st.Snapshot.ChunkTypes,
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// toMCPError maps service errors to MCP error codes
func toMCPError(err error) error {
	data := map[string]interface{}{"error": err.Error()}
	var rerr *rag.Error
	if errors.As(err, &rerr) {
		data["stage"] = string(rerr.Stage)
	}

	switch {
	case errors.Is(err, rag.ErrNotInitialized):
		return newMCPError(ErrorCodeNotInitialized, "project not initialized; call initialize_project first", data)
	case errors.Is(err, searcher.ErrEmptyQuery):
		return newMCPError(ErrorCodeEmptyQuery, "question cannot be empty", data)
	case errors.Is(err, types.ErrInvalidProject), errors.Is(err, chunker.ErrEmptyCorpus):
		return newMCPError(ErrorCodeInvalidProject, "invalid project data", data)
	case errors.Is(err, answerer.ErrModelUnavailable):
		return newMCPError(ErrorCodeModelUnavailable, "language model unavailable", data)
	case errors.Is(err, embedder.ErrProviderFailed), errors.Is(err, embedder.ErrEmbeddingUnavailable):
		return newMCPError(ErrorCodeEmbeddingUnavailable, "embedding model unavailable", data)
	default:
		return newMCPError(ErrorCodeInternalError, "internal error", data)
	}
}

// projectDataArg accepts project_data as an object or a JSON string.
// mcp-go decodes object arguments into a map before the handler runs, so the
// re-encoded object has sorted keys. Only the string form keeps member order,
// which is the order tech stack categories are chunked in.
func projectDataArg(args map[string]interface{}) ([]byte, error) {
	switch v := args["project_data"].(type) {
	case map[string]interface{}:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid project_data", map[string]interface{}{
				"param":  "project_data",
				"reason": err.Error(),
			})
		}
		return raw, nil
	case string:
		if strings.TrimSpace(v) == "" {
			break
		}
		return []byte(v), nil
	}
	return nil, newMCPError(ErrorCodeInvalidParams, "project_data parameter is required", map[string]interface{}{
		"param":  "project_data",
		"reason": "missing, empty, or not an object",
	})
}

// requireString extracts a non-empty string parameter
func requireString(args map[string]interface{}, key string) (string, error) {
	val, ok := args[key].(string)
	if !ok || strings.TrimSpace(val) == "" {
		return "", newMCPError(ErrorCodeInvalidParams, key+" parameter is required", map[string]interface{}{
			"param":  key,
			"reason": "missing or empty",
		})
	}
	return val, nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getScore extracts an optional similarity threshold in [0, 1]
func getScore(args map[string]interface{}, key string) (float32, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return 0, nil
	}
	val, ok := raw.(float64)
	if !ok || val < 0 || val > 1 {
		return 0, newMCPError(ErrorCodeInvalidParams, key+" must be a number between 0 and 1", map[string]interface{}{
			"param": key,
			"value": raw,
		})
	}
	return float32(val), nil
}

// getChunkTypes extracts an optional list of chunk type names
func getChunkTypes(args map[string]interface{}, key string) ([]types.ChunkType, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, key+" must be an array of strings", map[string]interface{}{
			"param": key,
			"value": raw,
		})
	}

	out := make([]types.ChunkType, 0, len(items))
	for _, item := range items {
		name, _ := item.(string)
		t, err := types.ParseChunkType(name)
		if err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid "+key, map[string]interface{}{
				"param":   key,
				"reason":  err.Error(),
				"allowed": chunkTypeNames(),
			})
		}
		out = append(out, t)
	}
	return out, nil
}
