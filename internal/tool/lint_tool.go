package tool

import (
	"context"
	"fmt"

	"github.com/forgeline/forgeline/internal/subprocess"
)

// LintTool returns linter_tool: shells out to the configured EDA linter
// and surfaces its combined stdout/stderr as the tool result.
func LintTool() Definition {
	return Definition{
		Name:        "linter_tool",
		Description: "Run the configured HDL linter against one or more workspace source files.",
		Category:    CategoryEssential,
		Params: []Param{
			{Name: "files", Type: "array", Description: "Workspace-relative source file paths to lint.", Required: true, Items: "string"},
		},
		Handler: handleLint,
	}
}

func handleLint(ctx context.Context, tc *Context, args map[string]interface{}) *Result {
	files := stringSliceArg(args["files"])
	if len(files) == 0 {
		return Err("linter_tool: files is required")
	}
	if tc.Config.LinterPath == "" {
		return Err("linter_tool: no linter configured")
	}

	req := subprocess.Request{
		Path:   tc.Config.LinterPath,
		Args:   append(append([]string{}, tc.Config.LinterArgs...), files...),
		Dir:    tc.workspaceDir(),
		Soft:   tc.Config.DefaultSoftTO,
		Hard:   tc.Config.DefaultHardTO,
		MaxOut: tc.Config.MaxOutputBytes,
	}
	res, err := tc.Runner.Run(ctx, req)
	if err != nil {
		return Err("linter_tool: %v", err)
	}
	return Ok(formatSubprocessResult(res))
}

func formatSubprocessResult(res *subprocess.Result) string {
	status := "passed"
	if res.ExitCode != 0 {
		status = "failed"
	}
	return fmt.Sprintf("exit %d (%s)\n--- stdout ---\n%s\n--- stderr ---\n%s", res.ExitCode, status, res.Stdout, res.Stderr)
}
