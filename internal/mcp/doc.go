// Package mcp implements the Model Context Protocol (MCP) server for semindex.
//
// The MCP server exposes five tools to AI coding assistants:
//   - register_project: Register a source directory under a project id
//   - list_projects: List registered projects with their index status
//   - index_project: Run a full index of a project
//   - search_code: Search an indexed project with natural language queries
//   - get_status: Check the index status of one or more projects
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Stdout carries protocol messages only, so all logging goes to stderr.
//
// # Basic Usage
//
// The MCP server is started via the serve command:
//
//	semindex serve
//
// # Tool: register_project
//
//	Request:
//	{
//	  "name": "register_project",
//	  "arguments": {
//	    "project_id": "api",
//	    "root_path": "/home/me/src/api",
//	    "ignore_patterns": ["build/", "*_pb2.py"]
//	  }
//	}
//
// Registering an existing id replaces the stored record. The new ignore
// patterns apply to the next full index; a running change watcher keeps the
// patterns it started with.
//
// # Tool: index_project
//
//	Request:
//	{
//	  "name": "index_project",
//	  "arguments": {"project_id": "api"}
//	}
//
//	Response:
//	{
//	  "project_id": "api",
//	  "chunks_indexed": 1289,
//	  "files_indexed": 214,
//	  "chunks_pruned": 12,
//	  "duration_ms": 5120,
//	  "status": {"state": "indexed", "note": "Indexed 1289 chunks", ...}
//	}
//
// The call blocks until the pass finishes. After it, the project is watched
// and file edits are applied without another full index.
//
// # Tool: search_code
//
//	Request:
//	{
//	  "name": "search_code",
//	  "arguments": {"project_id": "api", "query": "refresh token rotation", "k": 5}
//	}
//
//	Response:
//	{
//	  "results": [
//	    {
//	      "text": "func (s *Service) Rotate(...",
//	      "score": 0.82,
//	      "meta": {"chunk_id": "auth/rotate.go:0", "file_path": "auth/rotate.go",
//	               "start": 1, "end": 38, "modified": "2024-05-01T10:00:00Z"}
//	    }
//	  ],
//	  "total": 1
//	}
//
// A registered project that was never indexed returns no results.
//
// # Tool: get_status
//
// Without project_ids, every registered project is reported. Unknown ids and
// projects not indexed since the server started report "uninitialized".
//
// # Error Handling
//
// Errors are returned as MCPError with JSON-RPC codes:
//
//	-32602  invalid params
//	-32603  internal error (indexing or search failed)
//	-32001  project not found
//	-32002  indexing already in progress
//	-32004  empty query
package mcp
