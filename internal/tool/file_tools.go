package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/forgeline/forgeline/internal/apperr"
	"github.com/forgeline/forgeline/internal/workspace"
)

// FileTools returns write_file, read_file, edit_file_tool, and
// list_files_tool — the general-purpose workspace file operations, all
// confined to the calling session's workspace by internal/workspace.Store.
func FileTools() []Definition {
	return []Definition{
		{
			Name:        "write_file",
			Description: "Write content to a file in the session workspace, creating parent directories as needed.",
			Category:    CategoryEssential,
			Params: []Param{
				{Name: "path", Type: "string", Description: "File path relative to the session workspace.", Required: true},
				{Name: "content", Type: "string", Description: "File content to write.", Required: true},
				{Name: "exclusive", Type: "boolean", Description: "Fail instead of overwriting if the file already exists.", Default: false},
			},
			Handler: handleWriteFile,
		},
		{
			Name:        "read_file",
			Description: "Read a file from the session workspace.",
			Category:    CategoryEssential,
			Params: []Param{
				{Name: "path", Type: "string", Description: "File path relative to the session workspace.", Required: true},
			},
			Handler: handleReadFile,
		},
		{
			Name:        "edit_file_tool",
			Description: "Apply an ordered list of edits to a workspace file and return a unified-diff summary. Each edit replaces either the first occurrence of anchor, or the inclusive 1-indexed line range [line_start, line_end], with new_text.",
			Category:    CategoryEditing,
			Params: []Param{
				{Name: "path", Type: "string", Description: "File path relative to the session workspace.", Required: true},
				{Name: "edits", Type: "array", Description: "Edits to apply in order; each is an object with new_text plus either anchor or line_start/line_end.", Required: true, Items: "object"},
			},
			Handler: handleEditFile,
		},
		{
			Name:        "list_files_tool",
			Description: "List files under a workspace subtree, annotated with size and artifact kind.",
			Category:    CategoryEssential,
			Params: []Param{
				{Name: "path", Type: "string", Description: "Subtree path relative to the session workspace; empty for the whole workspace.", Default: ""},
			},
			Handler: handleListFiles,
		},
	}
}

func handleWriteFile(ctx context.Context, tc *Context, args map[string]interface{}) *Result {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return Err("write_file: %s", apperr.New(apperr.KindBadArgs, "path is required"))
	}
	content, _ := args["content"].(string)

	mode := workspace.CreateOrReplace
	if exclusive, _ := args["exclusive"].(bool); exclusive {
		mode = workspace.CreateExclusive
	}

	if err := tc.Workspace.WriteFile(tc.SessionID, path, []byte(content), mode); err != nil {
		return Err("write_file %q: %v", path, err)
	}
	return Ok(fmt.Sprintf("wrote %d bytes to %s", len(content), path))
}

func handleReadFile(ctx context.Context, tc *Context, args map[string]interface{}) *Result {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return Err("read_file: path is required")
	}
	data, err := tc.Workspace.ReadFile(tc.SessionID, path)
	if err != nil {
		return Err("read_file %q: %v", path, err)
	}
	return Ok(string(data))
}

func handleEditFile(ctx context.Context, tc *Context, args map[string]interface{}) *Result {
	path, _ := args["path"].(string)
	if path == "" {
		return Err("edit_file_tool: path is required")
	}
	rawEdits, _ := args["edits"].([]interface{})

	edits := make([]workspace.Edit, 0, len(rawEdits))
	for i, raw := range rawEdits {
		obj, ok := raw.(map[string]interface{})
		if !ok {
			return Err("edit_file_tool: edit %d is not an object", i)
		}
		e := workspace.Edit{}
		e.Anchor, _ = obj["anchor"].(string)
		e.NewText, _ = obj["new_text"].(string)
		if v, ok := obj["line_start"].(float64); ok {
			e.LineStart = int(v)
		}
		if v, ok := obj["line_end"].(float64); ok {
			e.LineEnd = int(v)
		}
		if e.Anchor == "" && e.LineStart == 0 {
			return Err("edit_file_tool: edit %d needs either anchor or line_start", i)
		}
		edits = append(edits, e)
	}

	diff, err := tc.Workspace.EditFile(tc.SessionID, path, edits)
	if err != nil {
		return Err("edit_file_tool %q: %v", path, err)
	}
	if diff == "" || len(edits) == 0 {
		return Ok(fmt.Sprintf("no changes to %s", path))
	}
	return Ok(diff)
}

func handleListFiles(ctx context.Context, tc *Context, args map[string]interface{}) *Result {
	subtree, _ := args["path"].(string)
	entries, err := tc.Workspace.ListFiles(tc.SessionID, subtree)
	if err != nil {
		return Err("list_files_tool %q: %v", subtree, err)
	}
	if len(entries) == 0 {
		return Ok("(no files)")
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s\t%d bytes\t%s\n", e.Path, e.Size, e.Kind)
	}
	return Ok(b.String())
}
