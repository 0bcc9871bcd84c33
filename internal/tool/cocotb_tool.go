package tool

import (
	"context"

	"github.com/forgeline/forgeline/internal/subprocess"
)

// CocotbTool returns cocotb_tool: runs the configured cocotb Python
// testbench harness against a workspace design. Invocation goes through
// `make` the way cocotb's own Makefile-based runner convention expects,
// rather than the tool hand-rolling simulator flags itself.
func CocotbTool() Definition {
	return Definition{
		Name:        "cocotb_tool",
		Description: "Run the configured cocotb Python testbench against the workspace design via its Makefile-based runner.",
		Category:    CategoryVerification,
		Params: []Param{
			{Name: "top_module", Type: "string", Description: "Top-level module under test.", Required: true},
			{Name: "test_module", Type: "string", Description: "Python module name containing the cocotb tests.", Required: true},
			{Name: "files", Type: "array", Description: "Workspace-relative HDL source file paths.", Required: true, Items: "string"},
		},
		Handler: handleCocotb,
	}
}

func handleCocotb(ctx context.Context, tc *Context, args map[string]interface{}) *Result {
	top, _ := args["top_module"].(string)
	testModule, _ := args["test_module"].(string)
	files := stringSliceArg(args["files"])
	if top == "" || testModule == "" || len(files) == 0 {
		return Err("cocotb_tool: top_module, test_module, and files are required")
	}
	if tc.Config.CocotbPath == "" {
		return Err("cocotb_tool: no cocotb runner configured")
	}

	env := map[string]string{
		"TOPLEVEL":    top,
		"MODULE":      testModule,
		"VERILOG_SOURCES": joinSpace(files),
	}

	res, err := tc.Runner.Run(ctx, subprocess.Request{
		Path:   tc.Config.CocotbPath,
		Dir:    tc.workspaceDir(),
		Env:    env,
		Soft:   tc.Config.DefaultSoftTO,
		Hard:   tc.Config.DefaultHardTO,
		MaxOut: tc.Config.MaxOutputBytes,
	})
	if err != nil {
		return Err("cocotb_tool: %v", err)
	}
	return Ok(formatSubprocessResult(res))
}

func joinSpace(items []string) string {
	out := ""
	for i, item := range items {
		if i > 0 {
			out += " "
		}
		out += item
	}
	return out
}
