package tool

import (
	"context"

	"github.com/forgeline/forgeline/internal/subprocess"
)

// SimTool returns simulation_tool, running the configured RTL simulator
// against workspace source and testbench files through the same
// subprocess dispatch as LintTool.
func SimTool() Definition {
	return Definition{
		Name:        "simulation_tool",
		Description: "Run the configured RTL simulator against workspace source and testbench files, producing a waveform dump if the testbench requests one.",
		Category:    CategoryEssential,
		Params: []Param{
			{Name: "top_module", Type: "string", Description: "Top-level simulation entry module.", Required: true},
			{Name: "files", Type: "array", Description: "Workspace-relative source and testbench file paths.", Required: true, Items: "string"},
		},
		Handler: handleSim,
	}
}

func handleSim(ctx context.Context, tc *Context, args map[string]interface{}) *Result {
	top, _ := args["top_module"].(string)
	files := stringSliceArg(args["files"])
	if top == "" || len(files) == 0 {
		return Err("simulation_tool: top_module and files are required")
	}
	if tc.Config.SimulatorPath == "" {
		return Err("simulation_tool: no simulator configured")
	}

	argv := append(append([]string{}, tc.Config.SimulatorArgs...), "-top", top)
	argv = append(argv, files...)

	res, err := tc.Runner.Run(ctx, subprocess.Request{
		Path:   tc.Config.SimulatorPath,
		Args:   argv,
		Dir:    tc.workspaceDir(),
		Soft:   tc.Config.DefaultSoftTO,
		Hard:   tc.Config.DefaultHardTO,
		MaxOut: tc.Config.MaxOutputBytes,
	})
	if err != nil {
		return Err("simulation_tool: %v", err)
	}
	return Ok(formatSubprocessResult(res))
}
