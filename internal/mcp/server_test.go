package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegrove/chunkdex/internal/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		DBPath:         filepath.Join(t.TempDir(), "tasks.db"),
		DebounceDelay:  50 * time.Millisecond,
		MaxChunkSize:   10000,
		FilesPerWorker: 10,
	}
	s, err := NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func callRequest(args map[string]interface{}) mcpgo.CallToolRequest {
	var req mcpgo.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcpgo.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcpgo.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

// configureTestProject writes a small tree and configures it on the server.
func configureTestProject(t *testing.T, s *Server, name string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), []byte("# Intro\nwelcome\n# Usage\nrun it\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644))

	res, err := s.handleConfigureProject(context.Background(), callRequest(map[string]interface{}{
		"root_path":    dir,
		"project_name": name,
	}))
	require.NoError(t, err)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &response))
	assert.Equal(t, name, response["project_name"])
	assert.Equal(t, float64(2), response["files_indexed"])
	return dir
}

func TestConfigureProject_InvalidRoot(t *testing.T) {
	s := newTestServer(t)
	_, err := s.handleConfigureProject(context.Background(), callRequest(map[string]interface{}{
		"root_path":    filepath.Join(t.TempDir(), "missing"),
		"project_name": "x",
	}))
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

func TestConfigureProject_ReplacesExisting(t *testing.T) {
	s := newTestServer(t)
	configureTestProject(t, s, "proj")
	configureTestProject(t, s, "proj")

	s.mu.Lock()
	count := len(s.projects)
	s.mu.Unlock()
	assert.Equal(t, 1, count)
}

func TestListAllFiles(t *testing.T) {
	s := newTestServer(t)
	configureTestProject(t, s, "proj")

	res, err := s.handleListAllFiles(context.Background(), callRequest(map[string]interface{}{
		"project_name": "proj",
	}))
	require.NoError(t, err)
	out := resultText(t, res)
	assert.Contains(t, out, "readme.md")
	assert.Contains(t, out, "main.go")
}

func TestListAllFiles_WithFilter(t *testing.T) {
	s := newTestServer(t)
	configureTestProject(t, s, "proj")

	res, err := s.handleListAllFiles(context.Background(), callRequest(map[string]interface{}{
		"project_name": "proj",
		"path_filter":  []interface{}{".md"},
	}))
	require.NoError(t, err)
	out := resultText(t, res)
	assert.Contains(t, out, "readme.md")
	assert.NotContains(t, out, "main.go")
}

func TestListAllFiles_UnknownProject(t *testing.T) {
	s := newTestServer(t)
	_, err := s.handleListAllFiles(context.Background(), callRequest(map[string]interface{}{
		"project_name": "nope",
	}))
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeProjectNotFound, mcpErr.Code)
}

func TestFindFilesByChunkContent(t *testing.T) {
	s := newTestServer(t)
	configureTestProject(t, s, "proj")

	res, err := s.handleFindFilesByChunkContent(context.Background(), callRequest(map[string]interface{}{
		"project_name": "proj",
		"filter":       []interface{}{"welcome"},
	}))
	require.NoError(t, err)
	out := resultText(t, res)
	assert.Contains(t, out, "readme.md")
	assert.NotContains(t, out, "main.go")
}

func TestFindFilesByChunkContent_RequiresFilter(t *testing.T) {
	s := newTestServer(t)
	configureTestProject(t, s, "proj")

	_, err := s.handleFindFilesByChunkContent(context.Background(), callRequest(map[string]interface{}{
		"project_name": "proj",
	}))
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

func TestFindMatchingChunksAndDetails(t *testing.T) {
	s := newTestServer(t)
	dir := configureTestProject(t, s, "proj")
	readme := filepath.Join(dir, "readme.md")

	res, err := s.handleFindMatchingChunksInFile(context.Background(), callRequest(map[string]interface{}{
		"project_name": "proj",
		"abs_path":     readme,
	}))
	require.NoError(t, err)

	var summaries []chunkSummary
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &summaries))
	require.Len(t, summaries, 2)
	assert.Equal(t, "Intro", summaries[0].Name)
	assert.Equal(t, "markdown_section", summaries[0].Category)
	require.NotNil(t, summaries[0].Line)

	details, err := s.handleChunkDetails(context.Background(), callRequest(map[string]interface{}{
		"chunk_id": summaries[0].ID,
	}))
	require.NoError(t, err)
	assert.Equal(t, "# Intro\nwelcome", resultText(t, details))
}

func TestFindMatchingChunks_CategoryFilter(t *testing.T) {
	s := newTestServer(t)
	dir := configureTestProject(t, s, "proj")

	res, err := s.handleFindMatchingChunksInFile(context.Background(), callRequest(map[string]interface{}{
		"project_name": "proj",
		"abs_path":     filepath.Join(dir, "main.go"),
		"category":     "callable",
	}))
	require.NoError(t, err)

	var summaries []chunkSummary
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "main", summaries[0].Name)
}

func TestFindMatchingChunks_UnknownCategory(t *testing.T) {
	s := newTestServer(t)
	dir := configureTestProject(t, s, "proj")

	_, err := s.handleFindMatchingChunksInFile(context.Background(), callRequest(map[string]interface{}{
		"project_name": "proj",
		"abs_path":     filepath.Join(dir, "main.go"),
		"category":     "bogus",
	}))
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

func TestChunkDetails_LookupWithoutPriorListing(t *testing.T) {
	s := newTestServer(t)
	dir := configureTestProject(t, s, "proj")

	// Compute the id out of band: the cache is cold, forcing a full scan.
	mp, ok := s.getProject("proj")
	require.True(t, ok)
	f, ok := mp.project.GetFile(filepath.Join(dir, "main.go"))
	require.True(t, ok)
	require.NotEmpty(t, f.Chunks)
	id := f.Chunks[0].ID()

	res, err := s.handleChunkDetails(context.Background(), callRequest(map[string]interface{}{
		"chunk_id": id,
	}))
	require.NoError(t, err)
	assert.Equal(t, f.Chunks[0].Content, resultText(t, res))
}

func TestChunkDetails_UnknownID(t *testing.T) {
	s := newTestServer(t)
	_, err := s.handleChunkDetails(context.Background(), callRequest(map[string]interface{}{
		"chunk_id": "deadbeef00",
	}))
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeChunkNotFound, mcpErr.Code)
}

func TestTaskTools_Lifecycle(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleAddTasks(ctx, callRequest(map[string]interface{}{
		"actions": []interface{}{"first", "second"},
	}))
	require.NoError(t, err)
	var added map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &added))
	assert.Equal(t, float64(2), added["queued"])

	res, err = s.handleGetTask(ctx, callRequest(nil))
	require.NoError(t, err)
	var task map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &task))
	assert.Equal(t, "first", task["action"])
	assert.Equal(t, "doing", task["state"])

	res, err = s.handleSetTaskDone(ctx, callRequest(map[string]interface{}{
		"task_id":               task["id"],
		"outcome":               "handled",
		"follow_up_criticality": "low",
	}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "done")
}

func TestSetTaskDone_UnknownTask(t *testing.T) {
	s := newTestServer(t)
	_, err := s.handleSetTaskDone(context.Background(), callRequest(map[string]interface{}{
		"task_id":               float64(999),
		"outcome":               "n/a",
		"follow_up_criticality": "low",
	}))
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeTaskNotFound, mcpErr.Code)
}

func TestGetTask_EmptyQueue(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handleGetTask(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, "No tasks available.", resultText(t, res))
}
