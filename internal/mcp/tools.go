package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/codegrove/chunkdex/internal/chunk"
	"github.com/codegrove/chunkdex/internal/filetree"
	"github.com/codegrove/chunkdex/internal/project"
	"github.com/codegrove/chunkdex/internal/taskstore"
	"github.com/codegrove/chunkdex/internal/watcher"
)

// MCP error codes
const (
	ErrorCodeInvalidParams   = -32602 // Invalid method parameters
	ErrorCodeInternalError   = -32603 // Internal JSON-RPC error
	ErrorCodeProjectNotFound = -32001 // No project configured under that name
	ErrorCodeFileNotFound    = -32002 // Path not present in the project index
	ErrorCodeChunkNotFound   = -32003 // No chunk with that id
	ErrorCodeTaskNotFound    = -32004 // No task with that id
)

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// handleConfigureProject handles the configure_project tool invocation
func (s *Server) handleConfigureProject(ctx context.Context, request mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	root, err := requireString(args, "root_path")
	if err != nil {
		return nil, err
	}
	name, err := requireString(args, "project_name")
	if err != nil {
		return nil, err
	}
	if info, statErr := os.Stat(root); statErr != nil || !info.IsDir() {
		return nil, newMCPError(ErrorCodeInvalidParams, "root_path must be an existing directory", map[string]interface{}{
			"param": "root_path",
		})
	}

	p, err := project.New(ctx, root, project.Options{FilesPerWorker: s.cfg.FilesPerWorker})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "project scan failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	w, err := watcher.New(p, s.cfg.DebounceDelay)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "watcher setup failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	s.setProject(name, &managedProject{project: p, watcher: w})

	response := map[string]interface{}{
		"project_name":  name,
		"root":          p.Root,
		"files_indexed": len(p.PathsUnderRoot()),
		"git_repo":      p.Repo != nil,
	}
	return mcpgo.NewToolResultText(formatJSON(response)), nil
}

// handleListAllFiles handles the list_all_files_in_project tool invocation
func (s *Server) handleListAllFiles(_ context.Context, request mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	mp, err := s.requireProject(args)
	if err != nil {
		return nil, err
	}
	filter, err := optionalStringList(args, "path_filter")
	if err != nil {
		return nil, err
	}
	depth, err := optionalInt(args, "limit_depth")
	if err != nil {
		return nil, err
	}

	tree, ok := filetree.Render(mp.project.Root, mp.project.PathsUnderRoot(), filetree.Options{
		Filter:     filter,
		LimitDepth: depth,
	})
	if !ok {
		return mcpgo.NewToolResultText("No files matched."), nil
	}
	return mcpgo.NewToolResultText(tree), nil
}

// handleFindFilesByChunkContent handles the find_files_by_chunk_content tool invocation
func (s *Server) handleFindFilesByChunkContent(_ context.Context, request mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	mp, err := s.requireProject(args)
	if err != nil {
		return nil, err
	}
	filter, err := optionalStringList(args, "filter")
	if err != nil {
		return nil, err
	}
	if len(filter) == 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "filter parameter is required", map[string]interface{}{
			"param":  "filter",
			"reason": "missing or empty",
		})
	}

	var matched []string
	for path, f := range mp.project.Files() {
		if len(f.MatchingChunks(filter, chunk.FilterNameOrContent)) > 0 {
			matched = append(matched, path)
		}
	}
	tree, ok := filetree.Render(mp.project.Root, matched, filetree.Options{})
	if !ok {
		return mcpgo.NewToolResultText("No files matched."), nil
	}
	return mcpgo.NewToolResultText(tree), nil
}

// chunkSummary is the wire shape of one chunk listing entry.
type chunkSummary struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Name     string `json:"name"`
	Line     *int   `json:"line"`
	NumChars int    `json:"num_chars"`
}

// handleFindMatchingChunksInFile handles the find_matching_chunks_in_file tool invocation
func (s *Server) handleFindMatchingChunksInFile(_ context.Context, request mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	mp, err := s.requireProject(args)
	if err != nil {
		return nil, err
	}
	absPath, err := requireString(args, "abs_path")
	if err != nil {
		return nil, err
	}
	filter, err := optionalStringList(args, "filter")
	if err != nil {
		return nil, err
	}
	category, err := optionalString(args, "category")
	if err != nil {
		return nil, err
	}
	if category != "" && !chunk.Category(category).Valid() {
		return nil, newMCPError(ErrorCodeInvalidParams, "unknown category", map[string]interface{}{
			"param": "category",
			"value": category,
		})
	}

	f, ok := mp.project.GetFile(absPath)
	if !ok {
		return nil, newMCPError(ErrorCodeFileNotFound, "file not in project index", map[string]interface{}{
			"abs_path": absPath,
		})
	}

	summaries := make([]chunkSummary, 0)
	for _, c := range f.MatchingChunks(filter, chunk.FilterNameOrContent) {
		if category != "" && c.Category != chunk.Category(category) {
			continue
		}
		s.chunkCache.Add(c.ID(), c)
		summaries = append(summaries, chunkSummary{
			ID:       c.ID(),
			Category: string(c.Category),
			Name:     c.Name,
			Line:     c.Line,
			NumChars: len(c.Content),
		})
	}
	return mcpgo.NewToolResultText(formatJSON(summaries)), nil
}

// handleChunkDetails handles the chunk_details tool invocation
func (s *Server) handleChunkDetails(_ context.Context, request mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	id, err := requireString(args, "chunk_id")
	if err != nil {
		return nil, err
	}
	c, ok := s.lookupChunk(id)
	if !ok {
		return nil, newMCPError(ErrorCodeChunkNotFound, "no chunk with that id", map[string]interface{}{
			"chunk_id": id,
		})
	}

	parts := c.Split(s.cfg.MaxChunkSize, chunk.DefaultSplitPrefix)
	if len(parts) == 1 {
		return mcpgo.NewToolResultText(parts[0].Content), nil
	}
	contents := make([]string, len(parts))
	for i, part := range parts {
		contents[i] = part.Content
	}
	return mcpgo.NewToolResultText(formatJSON(contents)), nil
}

// lookupChunk resolves a chunk id, preferring the cache and falling back to
// a scan of every configured project. Ids are content-derived so cached
// entries never go stale in a way that matters: a hit always carries the
// exact content the id was minted from.
func (s *Server) lookupChunk(id string) (*chunk.Chunk, bool) {
	if c, ok := s.chunkCache.Get(id); ok {
		return c, true
	}

	s.mu.Lock()
	managed := make([]*managedProject, 0, len(s.projects))
	for _, mp := range s.projects {
		managed = append(managed, mp)
	}
	s.mu.Unlock()

	for _, mp := range managed {
		for _, f := range mp.project.Files() {
			for _, c := range f.Chunks {
				if c.ID() == id {
					s.chunkCache.Add(id, c)
					return c, true
				}
			}
		}
	}
	return nil, false
}

// handleAddTasks handles the add_tasks tool invocation
func (s *Server) handleAddTasks(ctx context.Context, request mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	actions, err := optionalStringList(args, "actions")
	if err != nil {
		return nil, err
	}
	if len(actions) == 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "actions parameter is required", map[string]interface{}{
			"param":  "actions",
			"reason": "missing or empty",
		})
	}

	ids := make([]int64, 0, len(actions))
	for _, action := range actions {
		id, err := s.tasks.AddTask(ctx, action)
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "failed to queue task", map[string]interface{}{
				"error": err.Error(),
			})
		}
		ids = append(ids, id)
	}
	return mcpgo.NewToolResultText(formatJSON(map[string]interface{}{
		"queued":   len(ids),
		"task_ids": ids,
	})), nil
}

// handleGetTask handles the get_task tool invocation
func (s *Server) handleGetTask(ctx context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	task, err := s.tasks.GetTask(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to claim task", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if task == nil {
		return mcpgo.NewToolResultText("No tasks available."), nil
	}
	return mcpgo.NewToolResultText(formatJSON(map[string]interface{}{
		"id":      task.ID,
		"action":  task.Action,
		"state":   string(task.State),
		"created": task.Created,
	})), nil
}

// handleSetTaskDone handles the set_task_done tool invocation
func (s *Server) handleSetTaskDone(ctx context.Context, request mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	id, err := requireInt(args, "task_id")
	if err != nil {
		return nil, err
	}
	outcome, err := requireString(args, "outcome")
	if err != nil {
		return nil, err
	}
	criticality, err := requireString(args, "follow_up_criticality")
	if err != nil {
		return nil, err
	}
	if !taskstore.FollowUpCriticality(criticality).Valid() {
		return nil, newMCPError(ErrorCodeInvalidParams, "unknown follow_up_criticality", map[string]interface{}{
			"param": "follow_up_criticality",
			"value": criticality,
		})
	}

	err = s.tasks.SetTaskDone(ctx, int64(id), outcome, taskstore.FollowUpCriticality(criticality))
	if errors.Is(err, taskstore.ErrNotFound) {
		return nil, newMCPError(ErrorCodeTaskNotFound, "no task with that id", map[string]interface{}{
			"task_id": id,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to finish task", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return mcpgo.NewToolResultText(formatJSON(map[string]interface{}{
		"task_id": id,
		"state":   string(taskstore.StateDone),
	})), nil
}

// requireProject resolves the project_name argument to a registration.
func (s *Server) requireProject(args map[string]interface{}) (*managedProject, error) {
	name, err := requireString(args, "project_name")
	if err != nil {
		return nil, err
	}
	mp, ok := s.getProject(name)
	if !ok {
		return nil, newMCPError(ErrorCodeProjectNotFound, "no project configured under that name", map[string]interface{}{
			"project_name": name,
		})
	}
	return mp, nil
}

// Argument extraction helpers. JSON numbers arrive as float64 and arrays as
// []interface{}.

func requireString(args map[string]interface{}, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return "", newMCPError(ErrorCodeInvalidParams, key+" parameter is required", map[string]interface{}{
			"param":  key,
			"reason": "missing or empty",
		})
	}
	return v, nil
}

func optionalString(args map[string]interface{}, key string) (string, error) {
	raw, present := args[key]
	if !present || raw == nil {
		return "", nil
	}
	v, ok := raw.(string)
	if !ok {
		return "", newMCPError(ErrorCodeInvalidParams, key+" must be a string", map[string]interface{}{
			"param": key,
		})
	}
	return v, nil
}

// optionalStringList accepts an array of strings or, for convenience, a
// bare string treated as a single-element list. Absent means nil.
func optionalStringList(args map[string]interface{}, key string) ([]string, error) {
	raw, present := args[key]
	if !present || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case string:
		return []string{v}, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, newMCPError(ErrorCodeInvalidParams, key+" must contain only strings", map[string]interface{}{
					"param": key,
				})
			}
			out = append(out, str)
		}
		return out, nil
	}
	return nil, newMCPError(ErrorCodeInvalidParams, key+" must be a string or array of strings", map[string]interface{}{
		"param": key,
	})
}

func optionalInt(args map[string]interface{}, key string) (int, error) {
	raw, present := args[key]
	if !present || raw == nil {
		return 0, nil
	}
	v, ok := raw.(float64)
	if !ok || v != float64(int(v)) {
		return 0, newMCPError(ErrorCodeInvalidParams, key+" must be an integer", map[string]interface{}{
			"param": key,
		})
	}
	return int(v), nil
}

func requireInt(args map[string]interface{}, key string) (int, error) {
	if _, present := args[key]; !present {
		return 0, newMCPError(ErrorCodeInvalidParams, key+" parameter is required", map[string]interface{}{
			"param":  key,
			"reason": "missing",
		})
	}
	return optionalInt(args, key)
}

// formatJSON renders a tool response payload.
func formatJSON(v interface{}) string {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(out)
}
