package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/semindex/internal/indexer"
	"github.com/dshills/semindex/internal/searcher"
	"github.com/dshills/semindex/internal/storage"
	"github.com/dshills/semindex/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeProjectNotFound    = -32001 // Project id is not registered
	ErrorCodeIndexingInProgress = -32002 // Another full index of the project is running
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
)

// handleRegisterProject handles the register_project tool invocation.
// Registering an existing id replaces its name, root and ignore patterns.
func (s *Server) handleRegisterProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	projectID, err := requireString(args, "project_id")
	if err != nil {
		return nil, err
	}

	root, err := requireString(args, "root_path")
	if err != nil {
		return nil, err
	}
	if err := validatePath(root); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid root_path", map[string]interface{}{
			"param":  "root_path",
			"reason": err.Error(),
		})
	}

	patterns, err := getStringSlice(args, "ignore_patterns")
	if err != nil {
		return nil, err
	}

	project := &types.Project{
		ID:             projectID,
		Name:           getStringDefault(args, "name", projectID),
		RootPath:       filepath.Clean(root),
		IgnorePatterns: patterns,
	}

	created := true
	err = s.storage.CreateProject(ctx, project)
	if errors.Is(err, storage.ErrAlreadyExists) {
		created = false
		err = s.storage.UpdateProject(ctx, project)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to register project", map[string]interface{}{
			"error": err.Error(),
		})
	}

	s.logger.Info("project registered", "project", project.ID, "root", project.RootPath, "created", created)

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"created": created,
		"project": projectJSON(project),
	})), nil
}

// handleListProjects handles the list_projects tool invocation
func (s *Server) handleListProjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.storage.ListProjects(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list projects", map[string]interface{}{
			"error": err.Error(),
		})
	}

	items := make([]map[string]interface{}, 0, len(projects))
	for _, p := range projects {
		item := projectJSON(p)
		item["status"] = s.indexer.Status(p.ID)
		items = append(items, item)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"projects": items,
	})), nil
}

// handleIndexProject handles the index_project tool invocation
func (s *Server) handleIndexProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	projectID, err := requireString(args, "project_id")
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	result, err := s.indexer.IndexProjectByID(ctx, projectID)
	switch {
	case errors.Is(err, indexer.ErrProjectNotFound):
		return nil, newMCPError(ErrorCodeProjectNotFound, "project not found", map[string]interface{}{
			"project_id": projectID,
		})
	case errors.Is(err, indexer.ErrIndexInProgress):
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", map[string]interface{}{
			"project_id": projectID,
		})
	case err != nil:
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"project_id": projectID,
			"error":      err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"project_id":     result.ProjectID,
		"chunks_indexed": result.ChunksIndexed,
		"files_indexed":  result.FilesIndexed,
		"chunks_pruned":  result.ChunksPruned,
		"duration_ms":    time.Since(startTime).Milliseconds(),
		"status":         s.indexer.Status(projectID),
	})), nil
}

// handleSearchCode handles the search_code tool invocation
func (s *Server) handleSearchCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	projectID, err := requireString(args, "project_id")
	if err != nil {
		return nil, err
	}

	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	k := getIntDefault(args, "k", searcher.DefaultLimit)
	if k < 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "k must be at least 1", map[string]interface{}{
			"param": "k",
			"value": k,
		})
	}

	if _, err := s.storage.GetProject(ctx, projectID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, newMCPError(ErrorCodeProjectNotFound, "project not found", map[string]interface{}{
				"project_id": projectID,
			})
		}
		return nil, newMCPError(ErrorCodeInternalError, "failed to load project", map[string]interface{}{
			"error": err.Error(),
		})
	}

	hits, err := s.searcher.Search(ctx, projectID, query, k)
	if errors.Is(err, searcher.ErrEmptyQuery) {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"project_id": projectID,
		"query":      query,
		"results":    hits,
		"total":      len(hits),
	})), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	ids, err := getStringSlice(args, "project_ids")
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		projects, err := s.storage.ListProjects(ctx)
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "failed to list projects", map[string]interface{}{
				"error": err.Error(),
			})
		}
		for _, p := range projects {
			ids = append(ids, p.ID)
		}
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"statuses": s.indexer.Statuses(ids),
	})), nil
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

func projectJSON(p *types.Project) map[string]interface{} {
	patterns := p.IgnorePatterns
	if patterns == nil {
		patterns = []string{}
	}
	return map[string]interface{}{
		"project_id":      p.ID,
		"name":            p.DisplayName(),
		"root_path":       p.RootPath,
		"ignore_patterns": patterns,
	}
}

// validatePath checks that a project root is an existing, readable directory
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}

	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}

	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	return nil
}

// formatJSON formats a value as indented JSON
func formatJSON(data interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
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

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}

// getStringSlice extracts an optional array of strings. Later duplicates
// are dropped; order is otherwise kept.
func getStringSlice(args map[string]interface{}, key string) ([]string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}

	var items []string
	switch v := raw.(type) {
	case []string:
		items = v
	case []interface{}:
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, newMCPError(ErrorCodeInvalidParams, key+" must be an array of strings", map[string]interface{}{
					"param": key,
				})
			}
			items = append(items, str)
		}
	default:
		return nil, newMCPError(ErrorCodeInvalidParams, key+" must be an array of strings", map[string]interface{}{
			"param": key,
		})
	}

	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	return out, nil
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
