package workspace

import (
	"bytes"
	"path/filepath"
	"strings"
)

// ArtifactKind classifies a workspace file by extension and, where the
// extension is ambiguous, a content sniff. Artifacts are never first-class
// stored objects — they're discovered by
// scanning, so classification happens on read/list, not on write.
type ArtifactKind string

const (
	KindSpec        ArtifactKind = "spec"         // YAML design spec
	KindVerilog     ArtifactKind = "verilog"      // .v/.sv source
	KindTestbench   ArtifactKind = "testbench"    // _tb.v / testbench.sv
	KindWaveform    ArtifactKind = "waveform"     // VCD
	KindSchematic   ArtifactKind = "schematic"    // SVG rendering of a netlist
	KindLayout      ArtifactKind = "layout"       // SVG/GDS-derived layout rendering
	KindConstraints ArtifactKind = "constraints"  // SDC
	KindReport      ArtifactKind = "report"       // Markdown report
	KindSynthLog    ArtifactKind = "synthesis_log"
	KindOther       ArtifactKind = "other"
)

// Classify determines a file's ArtifactKind from its relative path and,
// when the extension alone is ambiguous, a content sniff of its first
// bytes. content may be nil when only a directory listing (no read) is
// available; classification then relies on name alone.
func Classify(relPath string, content []byte) ArtifactKind {
	name := filepath.Base(relPath)
	lower := strings.ToLower(name)
	ext := strings.ToLower(filepath.Ext(name))

	switch {
	case ext == ".yaml" || ext == ".yml":
		return KindSpec
	case ext == ".vcd":
		return KindWaveform
	case ext == ".sdc":
		return KindConstraints
	case ext == ".md":
		return KindReport
	case ext == ".v" || ext == ".sv":
		if strings.Contains(lower, "_tb") || strings.Contains(lower, "testbench") {
			return KindTestbench
		}
		return KindVerilog
	case ext == ".svg":
		if strings.Contains(lower, "layout") || strings.Contains(lower, "gds") {
			return KindLayout
		}
		return KindSchematic
	case ext == ".log":
		if strings.Contains(lower, "synth") {
			return KindSynthLog
		}
		return KindOther
	}

	if content != nil {
		if looksLikeVCD(content) {
			return KindWaveform
		}
		if looksLikeVerilog(content) {
			if strings.Contains(lower, "_tb") || strings.Contains(lower, "testbench") {
				return KindTestbench
			}
			return KindVerilog
		}
	}
	return KindOther
}

func looksLikeVCD(content []byte) bool {
	return bytes.HasPrefix(bytes.TrimSpace(content), []byte("$date"))
}

func looksLikeVerilog(content []byte) bool {
	trimmed := bytes.TrimSpace(content)
	return bytes.HasPrefix(trimmed, []byte("module ")) || bytes.Contains(trimmed, []byte("\nmodule "))
}
