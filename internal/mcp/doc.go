// Package mcp implements the Model Context Protocol (MCP) server for projectrag.
//
// The server exposes three tools over stdio:
//   - initialize_project: index a project's specification data
//   - ask_project: answer a question about an initialized project
//   - project_status: report resident and persisted index state
//
// # Tool: initialize_project
//
//	Request:
//	{
//	  "name": "initialize_project",
//	  "arguments": {
//	    "project_id": "shop-42",
//	    "project_data": {"modules": [...], "user_stories": [...], "features": [...]},
//	    "force_rebuild": false
//	  }
//	}
//
//	Response:
//	{
//	  "initialized": true,
//	  "outcome": "rebuilt",
//	  "chunks": 14,
//	  "persisted": true
//	}
//
// Repeating the call with unchanged data returns outcome "reused" (or "loaded"
// after a restart) without calling the embedding model.
//
// # Tool: ask_project
//
//	{
//	  "name": "ask_project",
//	  "arguments": {"project_id": "shop-42", "question": "List all modules", "top_k": 3}
//	}
//
// min_score (0 to 1) and chunk_types (e.g. ["module_list", "technology"])
// narrow which chunks reach the model. The response is the answer text, or a
// JSON object with the answer and the retrieved chunks when include_sources
// is true.
//
// project_data sent as an object reaches the server as a decoded map, so its
// key order is gone. Send it as a JSON string to keep tech stack categories in
// document order.
//
// # MCP Client Configuration
//
//	{
//	  "mcpServers": {
//	    "projectrag": {
//	      "command": "/usr/local/bin/projectrag",
//	      "args": ["serve"],
//	      "env": {
//	        "OPENROUTER_API_KEY": "your-api-key"
//	      }
//	    }
//	  }
//	}
//
// # Error Handling
//
// Failures are returned as JSON-RPC errors:
//   - -32602: Invalid params
//   - -32603: Internal error
//   - -32001: Invalid project data
//   - -32002: Embedding model unavailable
//   - -32003: Project not initialized
//   - -32004: Empty question
//   - -32005: Language model unavailable
//
// The error data carries the pipeline stage (chunk, embed, index, query, model).
//
// # Logging
//
// Stdout is reserved for the protocol. All diagnostics go to stderr through
// internal/logger; set RAG_DEBUG=true to trace retrieval and model input.
package mcp
