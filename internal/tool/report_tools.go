package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/forgeline/forgeline/internal/workspace"
)

const reportTemplate = `# Synthesis Report: {{.TopModule}}

Run: {{.RunID}}
State: {{.State}}

## Power / Performance / Area

{{if .WNS}}- Worst negative slack: {{.WNS}} ns
{{end}}{{if .TNS}}- Total negative slack: {{.TNS}} ns
{{end}}{{if .Area}}- Area: {{.Area}} um^2
{{end}}{{if .Power}}- Power: {{.Power}} mW
{{end}}
## Notes

{{.Notes}}
`

type reportData struct {
	TopModule string
	RunID     string
	State     string
	WNS       string
	TNS       string
	Area      string
	Power     string
	Notes     string
}

// ReportTools returns save_metrics_tool and generate_report_tool. Report
// generation uses a fixed text/template — a template, not a pluggable
// templating engine.
func ReportTools() []Definition {
	return []Definition{
		{
			Name:        "save_metrics_tool",
			Description: "Persist a synthesis run's PPA metrics as a workspace JSON artifact.",
			Category:    CategoryReporting,
			Params: []Param{
				{Name: "run_id", Type: "string", Description: "Run id to save metrics for.", Required: true},
				{Name: "path", Type: "string", Description: "Workspace-relative output path.", Default: "metrics.json"},
			},
			Handler: handleSaveMetrics,
		},
		{
			Name:        "generate_report_tool",
			Description: "Render a synthesis run's status and metrics into a Markdown report saved in the workspace.",
			Category:    CategoryReporting,
			Params: []Param{
				{Name: "run_id", Type: "string", Description: "Run id to report on.", Required: true},
				{Name: "path", Type: "string", Description: "Workspace-relative output path.", Default: "report.md"},
				{Name: "notes", Type: "string", Description: "Free-text notes appended to the report.", Default: ""},
			},
			Handler: handleGenerateReport,
		},
	}
}

func handleSaveMetrics(ctx context.Context, tc *Context, args map[string]interface{}) *Result {
	runID := stringArg(args, "run_id")
	if runID == "" {
		return Err("save_metrics_tool: run_id is required")
	}
	path := stringArg(args, "path")
	if path == "" {
		path = "metrics.json"
	}

	ppa, err := tc.Jobs.Metrics(runID)
	if err != nil {
		return Err("save_metrics_tool: %v", err)
	}

	raw, err := json.MarshalIndent(ppa, "", "  ")
	if err != nil {
		return Err("save_metrics_tool: marshal: %v", err)
	}
	if err := tc.Workspace.WriteFile(tc.SessionID, path, raw, workspace.CreateOrReplace); err != nil {
		return Err("save_metrics_tool: %v", err)
	}
	return Ok("saved metrics to " + path)
}

func handleGenerateReport(ctx context.Context, tc *Context, args map[string]interface{}) *Result {
	runID := stringArg(args, "run_id")
	if runID == "" {
		return Err("generate_report_tool: run_id is required")
	}
	path := stringArg(args, "path")
	if path == "" {
		path = "report.md"
	}
	notes := stringArg(args, "notes")

	j, err := tc.Jobs.Status(runID)
	if err != nil {
		return Err("generate_report_tool: %v", err)
	}

	data := reportData{
		TopModule: j.Stage,
		RunID:     j.RunID,
		State:     string(j.State),
		Notes:     notes,
	}
	if ppa, err := tc.Jobs.Metrics(runID); err == nil {
		if ppa.WNSns != nil {
			data.WNS = fmt.Sprintf("%g", *ppa.WNSns)
		}
		if ppa.TNSns != nil {
			data.TNS = fmt.Sprintf("%g", *ppa.TNSns)
		}
		if ppa.AreaUm2 != nil {
			data.Area = fmt.Sprintf("%g", *ppa.AreaUm2)
		}
		if ppa.PowerMw != nil {
			data.Power = fmt.Sprintf("%g", *ppa.PowerMw)
		}
	}

	tmpl, err := template.New("report").Parse(reportTemplate)
	if err != nil {
		return Err("generate_report_tool: template: %v", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return Err("generate_report_tool: render: %v", err)
	}

	if err := tc.Workspace.WriteFile(tc.SessionID, path, buf.Bytes(), workspace.CreateOrReplace); err != nil {
		return Err("generate_report_tool: %v", err)
	}
	return Ok("generated report at " + path)
}
