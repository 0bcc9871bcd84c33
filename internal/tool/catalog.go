package tool

// AllDefinitions returns every tool definition in the fixed catalog, in
// the shape NewRegistry expects. This is the single
// assembly point production wiring (cmd/) and tests both call, so the
// catalog can never drift between the two.
func AllDefinitions() []Definition {
	var defs []Definition
	defs = append(defs, SpecTools()...)
	defs = append(defs, FileTools()...)
	defs = append(defs, LintTool(), SimTool(), WaveformTool(), CocotbTool(), FormalTool(), SchematicTool())
	defs = append(defs, SynthesisTools()...)
	defs = append(defs, ReportTools()...)
	defs = append(defs, FilterTool())
	defs = append(defs, SessionTools()...)
	return defs
}
