package tool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/forgeline/forgeline/internal/job"
)

// SynthesisTools returns start_synthesis, get_synthesis_job,
// wait_for_synthesis, get_synthesis_metrics, and search_logs_tool, thin argument-marshaling wrappers over internal/job.Supervisor.
func SynthesisTools() []Definition {
	return []Definition{
		{
			Name:        "start_synthesis",
			Description: "Start an asynchronous synthesis run for the session's current design, returning a run id immediately.",
			Category:    CategorySynthesis,
			Params: []Param{
				{Name: "top_module", Type: "string", Description: "Top-level module to synthesize.", Required: true},
				{Name: "files", Type: "array", Description: "Workspace-relative source file paths.", Required: true, Items: "string"},
				{Name: "constraints_file", Type: "string", Description: "Workspace-relative SDC constraints path.", Default: ""},
				{Name: "clock_period_ns", Type: "number", Description: "Target clock period in nanoseconds.", Default: 0},
				{Name: "utilization", Type: "number", Description: "Target utilization fraction (0-1).", Default: 0},
				{Name: "margin", Type: "number", Description: "Target timing margin in nanoseconds.", Default: 0},
				{Name: "override", Type: "string", Description: "Set to \"restart-stuck\" to replace a stuck job for this session.", Default: ""},
			},
			Handler: handleStartSynthesis,
		},
		{
			Name:        "get_synthesis_job",
			Description: "Get the current status of a synthesis run.",
			Category:    CategorySynthesis,
			Params: []Param{
				{Name: "run_id", Type: "string", Description: "Run id returned by start_synthesis.", Required: true},
			},
			Handler: handleGetSynthesisJob,
		},
		{
			Name:        "wait_for_synthesis",
			Description: "Block until a synthesis run reaches a terminal state or a timeout elapses, then report its status.",
			Category:    CategorySynthesis,
			Params: []Param{
				{Name: "run_id", Type: "string", Description: "Run id returned by start_synthesis.", Required: true},
				{Name: "timeout_seconds", Type: "integer", Description: "Maximum seconds to wait.", Default: 30},
			},
			Handler: handleWaitForSynthesis,
		},
		{
			Name:        "get_synthesis_metrics",
			Description: "Get the power/performance/area metrics extracted from a succeeded synthesis run.",
			Category:    CategorySynthesis,
			Params: []Param{
				{Name: "run_id", Type: "string", Description: "Run id returned by start_synthesis.", Required: true},
			},
			Handler: handleGetSynthesisMetrics,
		},
		{
			Name:        "search_logs_tool",
			Description: "Search a synthesis run's captured logs for a substring.",
			Category:    CategorySynthesis,
			Params: []Param{
				{Name: "run_id", Type: "string", Description: "Run id returned by start_synthesis.", Required: true},
				{Name: "query", Type: "string", Description: "Substring to search for.", Required: true},
			},
			Handler: handleSearchLogs,
		},
	}
}

func handleStartSynthesis(ctx context.Context, tc *Context, args map[string]interface{}) *Result {
	top, _ := args["top_module"].(string)
	files := stringSliceArg(args["files"])
	if top == "" || len(files) == 0 {
		return Err("start_synthesis: top_module and files are required")
	}

	params := job.Params{
		TopModule:       top,
		SourceFiles:     files,
		ConstraintsFile: stringArg(args, "constraints_file"),
		ClockPeriodNs:   floatArg(args, "clock_period_ns"),
		Utilization:     floatArg(args, "utilization"),
		Margin:          floatArg(args, "margin"),
		Override:        stringArg(args, "override"),
	}

	root := tc.workspaceDir()
	runID, err := tc.Jobs.Start(ctx, tc.SessionID, params, map[string]string{root: "/workspace"})
	if err != nil {
		return Err("start_synthesis: %v", err)
	}
	return AsyncOk(fmt.Sprintf("started synthesis run %s", runID))
}

func handleGetSynthesisJob(ctx context.Context, tc *Context, args map[string]interface{}) *Result {
	runID := stringArg(args, "run_id")
	if runID == "" {
		return Err("get_synthesis_job: run_id is required")
	}
	j, err := tc.Jobs.Status(runID)
	if err != nil {
		return Err("get_synthesis_job: %v", err)
	}
	return Ok(formatJobStatus(j))
}

func handleWaitForSynthesis(ctx context.Context, tc *Context, args map[string]interface{}) *Result {
	runID := stringArg(args, "run_id")
	if runID == "" {
		return Err("wait_for_synthesis: run_id is required")
	}
	timeoutSec := intArg(args, "timeout_seconds", 30)

	j, err := tc.Jobs.Wait(ctx, runID, time.Duration(timeoutSec)*time.Second)
	if err != nil {
		return Err("wait_for_synthesis: %v", err)
	}
	return Ok(formatJobStatus(j))
}

func handleGetSynthesisMetrics(ctx context.Context, tc *Context, args map[string]interface{}) *Result {
	runID := stringArg(args, "run_id")
	if runID == "" {
		return Err("get_synthesis_metrics: run_id is required")
	}
	ppa, err := tc.Jobs.Metrics(runID)
	if err != nil {
		return Err("get_synthesis_metrics: %v", err)
	}
	return Ok(formatPPA(ppa))
}

func handleSearchLogs(ctx context.Context, tc *Context, args map[string]interface{}) *Result {
	runID := stringArg(args, "run_id")
	query := stringArg(args, "query")
	if runID == "" || query == "" {
		return Err("search_logs_tool: run_id and query are required")
	}
	hits, err := tc.Jobs.SearchLogs(runID, query)
	if err != nil {
		return Err("search_logs_tool: %v", err)
	}
	if len(hits) == 0 {
		return Ok("(no matches)")
	}
	return Ok(strings.Join(hits, "\n"))
}

func formatJobStatus(j job.Job) string {
	var b strings.Builder
	fmt.Fprintf(&b, "run_id: %s\nstate: %s\nstage: %s\n", j.RunID, j.State, j.Stage)
	if j.Err != "" {
		fmt.Fprintf(&b, "error: %s\n", j.Err)
	}
	if len(j.LogTail) > 0 {
		tail := j.LogTail
		if len(tail) > 10 {
			tail = tail[len(tail)-10:]
		}
		fmt.Fprintf(&b, "--- recent log ---\n%s\n", strings.Join(tail, "\n"))
	}
	return b.String()
}

func formatPPA(p job.PPA) string {
	var b strings.Builder
	writeMetric(&b, "WNS (ns)", p.WNSns)
	writeMetric(&b, "TNS (ns)", p.TNSns)
	writeMetric(&b, "Area (um^2)", p.AreaUm2)
	writeMetric(&b, "Power (mW)", p.PowerMw)
	if b.Len() == 0 {
		return "(no metrics extracted)"
	}
	return b.String()
}

func writeMetric(b *strings.Builder, label string, v *float64) {
	if v == nil {
		return
	}
	fmt.Fprintf(b, "%s: %g\n", label, *v)
}

func stringArg(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}

func floatArg(args map[string]interface{}, key string) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func intArg(args map[string]interface{}, key string, deflt int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return deflt
	}
}
