package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// registerProjectTool returns the tool definition for register_project
func registerProjectTool() mcp.Tool {
	return mcp.Tool{
		Name:        "register_project",
		Description: "Register a source directory so it can be indexed and searched",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project_id": map[string]interface{}{
					"type":        "string",
					"description": "Stable identifier used by the other tools",
				},
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Human readable project name (defaults to project_id)",
				},
				"root_path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the project root directory",
				},
				"ignore_patterns": map[string]interface{}{
					"type":        "array",
					"description": "Extra glob patterns to skip, applied after the built-in ones (e.g. 'build/', '*_pb2.py')",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
			},
			Required: []string{"project_id", "root_path"},
		},
	}
}

// listProjectsTool returns the tool definition for list_projects
func listProjectsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_projects",
		Description: "List registered projects and their index status",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// indexProjectTool returns the tool definition for index_project
func indexProjectTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_project",
		Description: "Run a full index of a registered project and start watching it for changes",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project_id": map[string]interface{}{
					"type":        "string",
					"description": "Registered project identifier",
				},
			},
			Required: []string{"project_id"},
		},
	}
}

// searchCodeTool returns the tool definition for search_code
func searchCodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_code",
		Description: "Search an indexed project with a natural language query",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project_id": map[string]interface{}{
					"type":        "string",
					"description": "Registered project identifier",
				},
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"k": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return",
					"default":     12,
					"minimum":     1,
				},
			},
			Required: []string{"project_id", "query"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Query the index status of one or more projects",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project_ids": map[string]interface{}{
					"type":        "array",
					"description": "Projects to report on (defaults to every registered project)",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
			},
		},
	}
}
