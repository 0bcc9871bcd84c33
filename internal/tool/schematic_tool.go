package tool

import (
	"context"

	"github.com/forgeline/forgeline/internal/subprocess"
)

// SchematicTool returns schematic_tool: renders a netlist to a schematic
// image via a configured external script. The rendered file is written
// directly into the session workspace by the script rather than returned
// inline, since schematic output is binary.
func SchematicTool() Definition {
	return Definition{
		Name:        "schematic_tool",
		Description: "Render a netlist to a schematic image using the configured external renderer script, writing the result into the workspace.",
		Category:    CategorySynthesis,
		Params: []Param{
			{Name: "netlist_file", Type: "string", Description: "Workspace-relative netlist input path.", Required: true},
			{Name: "output_file", Type: "string", Description: "Workspace-relative output image path.", Required: true},
		},
		Handler: handleSchematic,
	}
}

func handleSchematic(ctx context.Context, tc *Context, args map[string]interface{}) *Result {
	netlist, _ := args["netlist_file"].(string)
	output, _ := args["output_file"].(string)
	if netlist == "" || output == "" {
		return Err("schematic_tool: netlist_file and output_file are required")
	}
	if tc.Config.SchematicScript == "" {
		return Err("schematic_tool: no schematic renderer configured")
	}

	res, err := tc.Runner.Run(ctx, subprocess.Request{
		Path:   tc.Config.SchematicScript,
		Args:   []string{netlist, output},
		Dir:    tc.workspaceDir(),
		Soft:   tc.Config.DefaultSoftTO,
		Hard:   tc.Config.DefaultHardTO,
		MaxOut: tc.Config.MaxOutputBytes,
	})
	if err != nil {
		return Err("schematic_tool: %v", err)
	}
	if res.ExitCode != 0 {
		return Err("schematic_tool: renderer failed\n%s", formatSubprocessResult(res))
	}
	return Ok("rendered schematic to " + output)
}
