package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/projectrag-mcp/internal/searcher"
	"github.com/dshills/projectrag-mcp/pkg/types"
)

// initializeProjectTool returns the tool definition for initialize_project
func initializeProjectTool() mcp.Tool {
	return mcp.Tool{
		Name:        "initialize_project",
		Description: "Build or refresh the searchable index for a project's specification data (modules, user stories, features, business rules, tech stack, UI/UX guidelines)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project_id": map[string]interface{}{
					"type":        "string",
					"description": "Stable identifier of the project",
				},
				"project_data": map[string]interface{}{
					"type":        []string{"object", "string"},
					"description": "Project record as a JSON object, or a string containing it. Object keys arrive unordered, so pass a string to keep tech stack categories in document order",
				},
				"force_rebuild": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, re-embed even when the data is unchanged",
					"default":     false,
				},
			},
			Required: []string{"project_id", "project_data"},
		},
	}
}

// askProjectTool returns the tool definition for ask_project
func askProjectTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ask_project",
		Description: "Answer a natural language question about an initialized project",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project_id": map[string]interface{}{
					"type":        "string",
					"description": "Project identifier used with initialize_project",
				},
				"question": map[string]interface{}{
					"type":        "string",
					"description": "Question about the project",
				},
				"top_k": map[string]interface{}{
					"type":        "integer",
					"description": "Number of chunks given to the model as context",
					"default":     searcher.DefaultLimit,
					"minimum":     1,
					"maximum":     searcher.MaxLimit,
				},
				"min_score": map[string]interface{}{
					"type":        "number",
					"description": "Drop chunks whose similarity to the question is below this",
					"minimum":     0,
					"maximum":     1,
				},
				"chunk_types": map[string]interface{}{
					"type":        "array",
					"description": "Only retrieve chunks of these types",
					"items": map[string]interface{}{
						"type": "string",
						"enum": chunkTypeNames(),
					},
				},
				"include_sources": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, include the retrieved chunks in the response",
					"default":     false,
				},
			},
			Required: []string{"project_id", "question"},
		},
	}
}

// projectStatusTool returns the tool definition for project_status
func projectStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "project_status",
		Description: "Report whether a project index is loaded, persisted, or being built",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project_id": map[string]interface{}{
					"type":        "string",
					"description": "Project identifier",
				},
			},
			Required: []string{"project_id"},
		},
	}
}

func chunkTypeNames() []string {
	names := make([]string, len(types.ChunkTypes))
	for i, t := range types.ChunkTypes {
		names[i] = string(t)
	}
	return names
}
