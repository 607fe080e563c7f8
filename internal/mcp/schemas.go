package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// configureProjectTool returns the tool definition for configure_project
func configureProjectTool() mcp.Tool {
	return mcp.Tool{
		Name:        "configure_project",
		Description: "Analyze a source tree and start watching it for changes, making its files and chunks queryable",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"root_path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the project root directory",
				},
				"project_name": map[string]interface{}{
					"type":        "string",
					"description": "Name to register the project under; reconfiguring the same name replaces the old registration",
				},
			},
			Required: []string{"root_path", "project_name"},
		},
	}
}

// listAllFilesTool returns the tool definition for list_all_files_in_project
func listAllFilesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_all_files_in_project",
		Description: "List all files in a configured project as a compact tree",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project_name": map[string]interface{}{
					"type":        "string",
					"description": "Name the project was configured under",
				},
				"path_filter": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Keep only paths containing at least one of these substrings; omit for all files",
				},
				"limit_depth": map[string]interface{}{
					"type":        "integer",
					"description": "Truncate the tree this many levels below the root; omit for unlimited",
					"minimum":     1,
				},
			},
			Required: []string{"project_name"},
		},
	}
}

// findFilesByChunkContentTool returns the tool definition for find_files_by_chunk_content
func findFilesByChunkContentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "find_files_by_chunk_content",
		Description: "Find files containing at least one chunk whose name or content matches the filter",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project_name": map[string]interface{}{
					"type":        "string",
					"description": "Name the project was configured under",
				},
				"filter": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Substrings to search for; a chunk matches if its name or content contains any of them",
				},
			},
			Required: []string{"project_name", "filter"},
		},
	}
}

// findMatchingChunksInFileTool returns the tool definition for find_matching_chunks_in_file
func findMatchingChunksInFileTool() mcp.Tool {
	return mcp.Tool{
		Name:        "find_matching_chunks_in_file",
		Description: "List a file's chunks (id, category, name, line, size), optionally filtered by substring or category",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project_name": map[string]interface{}{
					"type":        "string",
					"description": "Name the project was configured under",
				},
				"abs_path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path of the file inside the project",
				},
				"filter": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Substrings to match against chunk name or content; omit for all chunks",
				},
				"category": map[string]interface{}{
					"type":        "string",
					"description": "Keep only chunks of this category",
					"enum": []string{
						"callable", "markdown_section", "imports",
						"module_level", "whole_file", "other",
					},
				},
			},
			Required: []string{"project_name", "abs_path"},
		},
	}
}

// chunkDetailsTool returns the tool definition for chunk_details
func chunkDetailsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "chunk_details",
		Description: "Fetch a chunk's full content by id; oversized chunks come back as multiple parts",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"chunk_id": map[string]interface{}{
					"type":        "string",
					"description": "Chunk id from a previous find_matching_chunks_in_file call",
				},
			},
			Required: []string{"chunk_id"},
		},
	}
}

// addTasksTool returns the tool definition for add_tasks
func addTasksTool() mcp.Tool {
	return mcp.Tool{
		Name:        "add_tasks",
		Description: "Queue follow-up tasks for later pickup",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"actions": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "One task is queued per action description",
				},
			},
			Required: []string{"actions"},
		},
	}
}

// getTaskTool returns the tool definition for get_task
func getTaskTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_task",
		Description: "Claim the next workable task (oldest queued, or one abandoned mid-work)",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// setTaskDoneTool returns the tool definition for set_task_done
func setTaskDoneTool() mcp.Tool {
	return mcp.Tool{
		Name:        "set_task_done",
		Description: "Mark a claimed task done, recording its outcome",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"task_id": map[string]interface{}{
					"type":        "integer",
					"description": "Id of the task to finish",
				},
				"outcome": map[string]interface{}{
					"type":        "string",
					"description": "What happened",
				},
				"follow_up_criticality": map[string]interface{}{
					"type":        "string",
					"description": "How urgently the outcome needs attention",
					"enum":        []string{"no_followup", "low", "medium", "high"},
				},
			},
			Required: []string{"task_id", "outcome", "follow_up_criticality"},
		},
	}
}
