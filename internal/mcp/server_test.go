package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/projectrag-mcp/internal/answerer"
	"github.com/dshills/projectrag-mcp/internal/embedder"
	"github.com/dshills/projectrag-mcp/internal/indexer"
	"github.com/dshills/projectrag-mcp/internal/llm"
	"github.com/dshills/projectrag-mcp/internal/rag"
	"github.com/dshills/projectrag-mcp/internal/searcher"
)

type stubModel struct {
	reply string
	err   error
}

func (m stubModel) Generate(context.Context, string, llm.GenerateOptions) (string, error) {
	return m.reply, m.err
}

func (stubModel) ModelName() string { return "stub" }

func newTestServer(t *testing.T, model llm.Generator) *Server {
	t.Helper()
	emb := embedder.NewLocalProvider(64, nil)
	cache, err := indexer.New(emb, indexer.Config{Root: t.TempDir()})
	require.NoError(t, err)
	svc := rag.New(cache, answerer.New(searcher.NewSearcher(emb), model), emb, rag.Config{})
	return NewServer(svc)
}

func call(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func resultJSON(t *testing.T, res *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	return out
}

func requireCode(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, code, mcpErr.Code, mcpErr.Message)
}

var projectData = map[string]interface{}{
	"project": map[string]interface{}{"name": "Shop"},
	"modules": []interface{}{
		map[string]interface{}{"id": 1.0, "module_name": "Auth"},
		map[string]interface{}{"id": 2.0, "module_name": "Catalog"},
	},
}

func TestInitializeProject(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t, stubModel{reply: "ok"})

	res, err := s.handleInitializeProject(ctx, call(map[string]interface{}{
		"project_id":   "shop",
		"project_data": projectData,
	}))
	require.NoError(t, err)
	out := resultJSON(t, res)
	assert.Equal(t, true, out["initialized"])
	assert.Equal(t, "rebuilt", out["outcome"])
	assert.Equal(t, 4.0, out["chunks"])
	assert.Equal(t, true, out["persisted"])

	t.Run("string payload reuses", func(t *testing.T) {
		raw, err := json.Marshal(projectData)
		require.NoError(t, err)
		res, err := s.handleInitializeProject(ctx, call(map[string]interface{}{
			"project_id":   "shop",
			"project_data": string(raw),
		}))
		require.NoError(t, err)
		assert.Equal(t, "reused", resultJSON(t, res)["outcome"])
	})

	t.Run("force rebuild", func(t *testing.T) {
		res, err := s.handleInitializeProject(ctx, call(map[string]interface{}{
			"project_id":    "shop",
			"project_data":  projectData,
			"force_rebuild": true,
		}))
		require.NoError(t, err)
		assert.Equal(t, "rebuilt", resultJSON(t, res)["outcome"])
	})

	t.Run("validation", func(t *testing.T) {
		_, err := s.handleInitializeProject(ctx, call(map[string]interface{}{"project_data": projectData}))
		requireCode(t, err, ErrorCodeInvalidParams)

		_, err = s.handleInitializeProject(ctx, call(map[string]interface{}{"project_id": "shop"}))
		requireCode(t, err, ErrorCodeInvalidParams)

		_, err = s.handleInitializeProject(ctx, call(map[string]interface{}{"project_id": "shop", "project_data": "[1]"}))
		requireCode(t, err, ErrorCodeInvalidProject)

		_, err = s.handleInitializeProject(ctx, call(map[string]interface{}{"project_id": "shop", "project_data": map[string]interface{}{}}))
		requireCode(t, err, ErrorCodeInvalidProject)

		var req mcp.CallToolRequest
		req.Params.Arguments = "not a map"
		_, err = s.handleInitializeProject(ctx, req)
		requireCode(t, err, ErrorCodeInvalidParams)
	})
}

func TestAskProject(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t, stubModel{reply: "  Auth and Catalog. "})

	_, err := s.handleAskProject(ctx, call(map[string]interface{}{"project_id": "shop", "question": "modules?"}))
	requireCode(t, err, ErrorCodeNotInitialized)

	_, err = s.handleInitializeProject(ctx, call(map[string]interface{}{"project_id": "shop", "project_data": projectData}))
	require.NoError(t, err)

	res, err := s.handleAskProject(ctx, call(map[string]interface{}{"project_id": "shop", "question": "What modules are there?"}))
	require.NoError(t, err)
	assert.Equal(t, "Auth and Catalog.", resultText(t, res))

	t.Run("with sources", func(t *testing.T) {
		res, err := s.handleAskProject(ctx, call(map[string]interface{}{
			"project_id":      "shop",
			"question":        "What modules are there?",
			"top_k":           2.0,
			"include_sources": true,
		}))
		require.NoError(t, err)
		out := resultJSON(t, res)
		assert.Equal(t, "Auth and Catalog.", out["answer"])
		sources, ok := out["sources"].([]interface{})
		require.True(t, ok)
		assert.Len(t, sources, 2)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := s.handleAskProject(ctx, call(map[string]interface{}{"project_id": "shop", "question": "  "}))
		requireCode(t, err, ErrorCodeEmptyQuery)

		_, err = s.handleAskProject(ctx, call(map[string]interface{}{"project_id": "shop", "question": "q", "top_k": 500.0}))
		requireCode(t, err, ErrorCodeInvalidParams)
	})
}

func TestAskProject_Filters(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t, stubModel{reply: "ok"})

	_, err := s.handleInitializeProject(ctx, call(map[string]interface{}{"project_id": "shop", "project_data": projectData}))
	require.NoError(t, err)

	t.Run("chunk types", func(t *testing.T) {
		res, err := s.handleAskProject(ctx, call(map[string]interface{}{
			"project_id":      "shop",
			"question":        "What modules are there?",
			"chunk_types":     []interface{}{"module_list"},
			"include_sources": true,
		}))
		require.NoError(t, err)
		sources, ok := resultJSON(t, res)["sources"].([]interface{})
		require.True(t, ok)
		require.Len(t, sources, 1)
		src := sources[0].(map[string]interface{})
		assert.Equal(t, "module_list", src["type"])
	})

	t.Run("min score", func(t *testing.T) {
		res, err := s.handleAskProject(ctx, call(map[string]interface{}{
			"project_id":      "shop",
			"question":        "What modules are there?",
			"top_k":           10.0,
			"min_score":       0.0,
			"include_sources": true,
		}))
		require.NoError(t, err)
		sources, ok := resultJSON(t, res)["sources"].([]interface{})
		require.True(t, ok)
		assert.Len(t, sources, 4)
	})

	t.Run("validation", func(t *testing.T) {
		for name, args := range map[string]map[string]interface{}{
			"score above one":    {"min_score": 1.5},
			"negative score":     {"min_score": -0.1},
			"score not a number": {"min_score": "high"},
			"unknown chunk type": {"chunk_types": []interface{}{"roadmap"}},
			"types not an array": {"chunk_types": "module_list"},
			"type not a string":  {"chunk_types": []interface{}{3.0}},
		} {
			t.Run(name, func(t *testing.T) {
				args["project_id"] = "shop"
				args["question"] = "modules?"
				_, err := s.handleAskProject(ctx, call(args))
				requireCode(t, err, ErrorCodeInvalidParams)
			})
		}
	})
}

func TestInitializeProject_TechStackOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t, stubModel{reply: "ok"})
	const raw = `{"tech_stack": {"zeta": ["Z1"], "alpha": ["A1"]}}`

	techText := func(t *testing.T) string {
		t.Helper()
		res, err := s.handleAskProject(ctx, call(map[string]interface{}{
			"project_id":      "stack",
			"question":        "Which technologies are used?",
			"chunk_types":     []interface{}{"technology"},
			"include_sources": true,
		}))
		require.NoError(t, err)
		sources, ok := resultJSON(t, res)["sources"].([]interface{})
		require.True(t, ok)
		require.Len(t, sources, 1)
		text, _ := sources[0].(map[string]interface{})["text"].(string)
		return text
	}

	_, err := s.handleInitializeProject(ctx, call(map[string]interface{}{"project_id": "stack", "project_data": raw}))
	require.NoError(t, err)
	assert.Equal(t, "Technology Stack:\n\nzeta:\n  • Z1\n\nalpha:\n  • A1\n\n", techText(t))

	// An object argument has already lost its member order.
	var obj map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &obj))
	_, err = s.handleInitializeProject(ctx, call(map[string]interface{}{"project_id": "stack", "project_data": obj}))
	require.NoError(t, err)
	assert.Equal(t, "Technology Stack:\n\nalpha:\n  • A1\n\nzeta:\n  • Z1\n\n", techText(t))
}

func TestAskProject_ModelUnavailable(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t, stubModel{err: llm.ErrRequestFailed})

	_, err := s.handleInitializeProject(ctx, call(map[string]interface{}{"project_id": "shop", "project_data": projectData}))
	require.NoError(t, err)

	_, err = s.handleAskProject(ctx, call(map[string]interface{}{"project_id": "shop", "question": "modules?"}))
	requireCode(t, err, ErrorCodeModelUnavailable)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	data, ok := mcpErr.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "model", data["stage"])
}

func TestProjectStatus(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t, stubModel{reply: "ok"})

	res, err := s.handleProjectStatus(ctx, call(map[string]interface{}{"project_id": "shop"}))
	require.NoError(t, err)
	out := resultJSON(t, res)
	assert.Equal(t, false, out["initialized"])
	assert.Contains(t, out, "message")
	assert.NotContains(t, out, "snapshot")

	_, err = s.handleInitializeProject(ctx, call(map[string]interface{}{"project_id": "shop", "project_data": projectData}))
	require.NoError(t, err)

	res, err = s.handleProjectStatus(ctx, call(map[string]interface{}{"project_id": "shop"}))
	require.NoError(t, err)
	out = resultJSON(t, res)
	assert.Equal(t, true, out["initialized"])
	index, ok := out["index"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 4.0, index["chunks"])
	snapshot, ok := out["snapshot"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 4.0, snapshot["chunks"])
	assert.Equal(t, 4.0, snapshot["records"])

	_, err = s.handleProjectStatus(ctx, call(map[string]interface{}{}))
	requireCode(t, err, ErrorCodeInvalidParams)
}

func TestToolDefinitions(t *testing.T) {
	for _, tool := range []mcp.Tool{initializeProjectTool(), askProjectTool(), projectStatusTool()} {
		assert.NotEmpty(t, tool.Description, tool.Name)
		assert.Contains(t, tool.InputSchema.Required, "project_id", tool.Name)
		for _, req := range tool.InputSchema.Required {
			assert.Contains(t, tool.InputSchema.Properties, req, tool.Name)
		}
	}
}
