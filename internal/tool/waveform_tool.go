package tool

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"
)

// maxTransitionsPerSignal bounds how many transitions one signal reports,
// so a free-running clock cannot flood the model with its every edge.
const maxTransitionsPerSignal = 100

// WaveformTool returns waveform_tool: a read-only inspector over a VCD
// dump already present in the workspace, reporting each requested signal's
// value transitions (with timestamps) inside a time window. The dump is
// read whole from the workspace and then scanned line by line.
func WaveformTool() Definition {
	return Definition{
		Name:        "waveform_tool",
		Description: "Inspect a VCD waveform dump: report each requested signal's value transitions, with timestamps, inside a time window.",
		Category:    CategoryVerification,
		Params: []Param{
			{Name: "path", Type: "string", Description: "Workspace-relative path to the VCD file.", Required: true},
			{Name: "signals", Type: "array", Description: "Signal names to inspect; empty for every declared signal.", Items: "string"},
			{Name: "time_start", Type: "integer", Description: "Window start in the dump's time units.", Default: 0},
			{Name: "time_end", Type: "integer", Description: "Window end in the dump's time units; 0 means unbounded.", Default: 0},
		},
		Handler: handleWaveform,
	}
}

type vcdTransition struct {
	time  uint64
	value string
}

type vcdSignal struct {
	identifier  string
	name        string
	width       string
	transitions []vcdTransition // within the requested window, capped
	total       int             // all transitions within the window
}

func handleWaveform(ctx context.Context, tc *Context, args map[string]interface{}) *Result {
	path, _ := args["path"].(string)
	if path == "" {
		return Err("waveform_tool: path is required")
	}
	wanted := stringSliceArg(args["signals"])
	startArg := intArg(args, "time_start", 0)
	endArg := intArg(args, "time_end", 0)
	if startArg < 0 || endArg < 0 {
		return Err("waveform_tool: time_start and time_end must not be negative")
	}
	start, end := uint64(startArg), uint64(endArg)
	if end > 0 && end < start {
		return Err("waveform_tool: time_end %d precedes time_start %d", end, start)
	}

	data, err := tc.Workspace.ReadFile(tc.SessionID, path)
	if err != nil {
		return Err("waveform_tool %q: %v", path, err)
	}

	signals, err := parseVCD(string(data), start, end)
	if err != nil {
		return Err("waveform_tool %q: %v", path, err)
	}
	if len(signals) == 0 {
		return Ok("(no signals declared)")
	}

	byName := make(map[string]*vcdSignal, len(signals))
	for i := range signals {
		byName[signals[i].name] = &signals[i]
	}

	selected := make([]*vcdSignal, 0, len(signals))
	if len(wanted) == 0 {
		for i := range signals {
			selected = append(selected, &signals[i])
		}
	} else {
		for _, name := range wanted {
			s, ok := byName[name]
			if !ok {
				return Err("waveform_tool %q: signal %q not found", path, name)
			}
			selected = append(selected, s)
		}
	}

	var b strings.Builder
	for _, s := range selected {
		fmt.Fprintf(&b, "%s [%s]\n", s.name, s.width)
		if s.total == 0 {
			b.WriteString("  (no transitions in window)\n")
			continue
		}
		for _, tr := range s.transitions {
			fmt.Fprintf(&b, "  #%d -> %s\n", tr.time, tr.value)
		}
		if s.total > len(s.transitions) {
			fmt.Fprintf(&b, "  ... (%d more transitions in window)\n", s.total-len(s.transitions))
		}
	}
	return Ok(b.String())
}

// parseVCD extracts $var declarations and collects each signal's value
// transitions in the [start, end] window (end == 0 means unbounded),
// tracking simulation time from the dump's #<time> markers.
func parseVCD(content string, start, end uint64) ([]vcdSignal, error) {
	byIdent := make(map[string]*vcdSignal)
	var order []string

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 64*1024), 8<<20)
	inDumpSection := false
	var now uint64

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "$var"):
			fields := strings.Fields(line)
			// $var <type> <width> <id> <name> [range] $end
			if len(fields) >= 5 {
				ident, width, name := fields[3], fields[2], fields[4]
				if _, ok := byIdent[ident]; !ok {
					byIdent[ident] = &vcdSignal{identifier: ident, name: name, width: width}
					order = append(order, ident)
				}
			}
		case strings.HasPrefix(line, "$enddefinitions"):
			inDumpSection = true
		case inDumpSection && strings.HasPrefix(line, "#"):
			if t, err := strconv.ParseUint(line[1:], 10, 64); err == nil {
				now = t
			}
		case inDumpSection && line != "":
			ident, value := vcdValueChange(line)
			if ident == "" {
				continue
			}
			s, ok := byIdent[ident]
			if !ok {
				continue
			}
			if now < start || (end > 0 && now > end) {
				continue
			}
			s.total++
			if len(s.transitions) < maxTransitionsPerSignal {
				s.transitions = append(s.transitions, vcdTransition{time: now, value: value})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan VCD: %w", err)
	}

	out := make([]vcdSignal, 0, len(order))
	for _, id := range order {
		out = append(out, *byIdent[id])
	}
	return out, nil
}

// vcdValueChange splits a VCD value-change line into its identifier and
// value: scalar changes are "<value><ident>" (e.g. "1!"), vector changes
// are "b<bits> <ident>" or "r<real> <ident>".
func vcdValueChange(line string) (ident, value string) {
	if line[0] == '$' {
		return "", ""
	}
	if line[0] == 'b' || line[0] == 'B' || line[0] == 'r' || line[0] == 'R' {
		parts := strings.Fields(line)
		if len(parts) == 2 {
			return parts[1], parts[0]
		}
		return "", ""
	}
	if len(line) >= 2 {
		return line[1:], string(line[0])
	}
	return "", ""
}
