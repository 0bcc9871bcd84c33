package tool

import (
	"context"

	"github.com/forgeline/forgeline/internal/subprocess"
)

// FormalTool returns sby_tool: runs the configured formal verification
// driver (an sby-style `.sby` task file runner) against a workspace
// property file, through the same subprocess dispatch as LintTool.
func FormalTool() Definition {
	return Definition{
		Name:        "sby_tool",
		Description: "Run the configured formal verification driver against a workspace .sby task file.",
		Category:    CategoryVerification,
		Params: []Param{
			{Name: "task_file", Type: "string", Description: "Workspace-relative path to the .sby task file.", Required: true},
		},
		Handler: handleFormal,
	}
}

func handleFormal(ctx context.Context, tc *Context, args map[string]interface{}) *Result {
	taskFile, _ := args["task_file"].(string)
	if taskFile == "" {
		return Err("sby_tool: task_file is required")
	}
	if tc.Config.FormalPath == "" {
		return Err("sby_tool: no formal verification driver configured")
	}

	res, err := tc.Runner.Run(ctx, subprocess.Request{
		Path:   tc.Config.FormalPath,
		Args:   []string{taskFile},
		Dir:    tc.workspaceDir(),
		Soft:   tc.Config.DefaultSoftTO,
		Hard:   tc.Config.DefaultHardTO,
		MaxOut: tc.Config.MaxOutputBytes,
	})
	if err != nil {
		return Err("sby_tool: %v", err)
	}
	return Ok(formatSubprocessResult(res))
}
