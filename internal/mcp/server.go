package mcp

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mark3labs/mcp-go/server"

	"github.com/codegrove/chunkdex/internal/chunk"
	"github.com/codegrove/chunkdex/internal/config"
	"github.com/codegrove/chunkdex/internal/project"
	"github.com/codegrove/chunkdex/internal/taskstore"
	"github.com/codegrove/chunkdex/internal/watcher"
)

const (
	// ServerName is the MCP server name
	ServerName = "chunkdex"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"

	// chunkCacheSize bounds the id -> chunk lookup cache. Ids are derived
	// from chunk contents, so a stale entry can never serve wrong data.
	chunkCacheSize = 4096
)

// managedProject is one configured project and its change feed.
type managedProject struct {
	project *project.Project
	watcher *watcher.Watcher
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp   *server.MCPServer
	cfg   *config.Config
	tasks *taskstore.Store

	chunkCache *lru.Cache[string, *chunk.Chunk]

	mu       sync.Mutex
	projects map[string]*managedProject
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config) (*Server, error) {
	tasks, err := taskstore.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize task store: %w", err)
	}

	cache, err := lru.New[string, *chunk.Chunk](chunkCacheSize)
	if err != nil {
		_ = tasks.Close()
		return nil, fmt.Errorf("failed to create chunk cache: %w", err)
	}

	s := &Server{
		mcp:        server.NewMCPServer(ServerName, ServerVersion),
		cfg:        cfg,
		tasks:      tasks,
		chunkCache: cache,
		projects:   make(map[string]*managedProject),
	}
	s.registerTools()
	return s, nil
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(configureProjectTool(), s.handleConfigureProject)
	s.mcp.AddTool(listAllFilesTool(), s.handleListAllFiles)
	s.mcp.AddTool(findFilesByChunkContentTool(), s.handleFindFilesByChunkContent)
	s.mcp.AddTool(findMatchingChunksInFileTool(), s.handleFindMatchingChunksInFile)
	s.mcp.AddTool(chunkDetailsTool(), s.handleChunkDetails)
	s.mcp.AddTool(addTasksTool(), s.handleAddTasks)
	s.mcp.AddTool(getTaskTool(), s.handleGetTask)
	s.mcp.AddTool(setTaskDoneTool(), s.handleSetTaskDone)
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer s.Close()
	return server.ServeStdio(s.mcp)
}

// Close stops every watcher and closes the task store.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, mp := range s.projects {
		_ = mp.watcher.Close()
		delete(s.projects, name)
	}
	_ = s.tasks.Close()
}

// getProject looks up a configured project by name.
func (s *Server) getProject(name string) (*managedProject, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mp, ok := s.projects[name]
	return mp, ok
}

// setProject registers a project, tearing down any previous registration
// under the same name.
func (s *Server) setProject(name string, mp *managedProject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.projects[name]; ok {
		_ = prev.watcher.Close()
	}
	s.projects[name] = mp
}
