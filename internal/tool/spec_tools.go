package tool

import (
	"fmt"

	"context"

	"gopkg.in/yaml.v3"

	"github.com/forgeline/forgeline/internal/workspace"
)

const specFileName = "design_spec.yaml"

// SpecTools returns write_spec, read_spec, and load_yaml_spec_file. The
// design spec is stored as a single YAML document at a fixed workspace
// path and parsed with gopkg.in/yaml.v3, since the document is structured
// (module name, ports, parameters, behavior notes) rather than free text.
func SpecTools() []Definition {
	return []Definition{
		{
			Name:        "write_spec",
			Description: "Write or replace the session's design specification document.",
			Category:    CategoryEssential,
			Params: []Param{
				{Name: "module_name", Type: "string", Description: "Top-level module name the spec describes.", Required: true},
				{Name: "description", Type: "string", Description: "Free-text behavior description.", Required: true},
				{Name: "ports", Type: "array", Description: "Port list, each as \"name:direction:width\".", Items: "string"},
				{Name: "parameters", Type: "array", Description: "Parameter list, each as \"name:default\".", Items: "string"},
			},
			Handler: handleWriteSpec,
		},
		{
			Name:        "read_spec",
			Description: "Read the session's current design specification document.",
			Category:    CategoryEssential,
			Params:      nil,
			Handler:     handleReadSpec,
		},
		{
			Name:        "load_yaml_spec_file",
			Description: "Load a design specification from a YAML file already present in the workspace, replacing the session's current spec.",
			Category:    CategoryEditing,
			Params: []Param{
				{Name: "path", Type: "string", Description: "Workspace-relative path to the YAML spec file.", Required: true},
			},
			Handler: handleLoadYAMLSpec,
		},
	}
}

// designSpec is the structured form persisted at specFileName.
type designSpec struct {
	ModuleName  string   `yaml:"module_name"`
	Description string   `yaml:"description"`
	Ports       []string `yaml:"ports,omitempty"`
	Parameters  []string `yaml:"parameters,omitempty"`
}

func handleWriteSpec(ctx context.Context, tc *Context, args map[string]interface{}) *Result {
	moduleName, _ := args["module_name"].(string)
	description, _ := args["description"].(string)
	if moduleName == "" || description == "" {
		return Err("write_spec: module_name and description are required")
	}

	spec := designSpec{
		ModuleName:  moduleName,
		Description: description,
		Ports:       stringSliceArg(args["ports"]),
		Parameters:  stringSliceArg(args["parameters"]),
	}

	raw, err := yaml.Marshal(spec)
	if err != nil {
		return Err("write_spec: marshal: %v", err)
	}
	if err := tc.Workspace.WriteFile(tc.SessionID, specFileName, raw, workspace.CreateOrReplace); err != nil {
		return Err("write_spec: %v", err)
	}
	return Ok(fmt.Sprintf("wrote design spec for module %q", moduleName))
}

func handleReadSpec(ctx context.Context, tc *Context, args map[string]interface{}) *Result {
	raw, err := tc.Workspace.ReadFile(tc.SessionID, specFileName)
	if err != nil {
		return Err("read_spec: %v", err)
	}
	return Ok(string(raw))
}

func handleLoadYAMLSpec(ctx context.Context, tc *Context, args map[string]interface{}) *Result {
	path, _ := args["path"].(string)
	if path == "" {
		return Err("load_yaml_spec_file: path is required")
	}
	raw, err := tc.Workspace.ReadFile(tc.SessionID, path)
	if err != nil {
		return Err("load_yaml_spec_file %q: %v", path, err)
	}

	var spec designSpec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return Err("load_yaml_spec_file %q: invalid YAML: %v", path, err)
	}
	if spec.ModuleName == "" {
		return Err("load_yaml_spec_file %q: missing module_name", path)
	}

	normalized, err := yaml.Marshal(spec)
	if err != nil {
		return Err("load_yaml_spec_file: marshal: %v", err)
	}
	if err := tc.Workspace.WriteFile(tc.SessionID, specFileName, normalized, workspace.CreateOrReplace); err != nil {
		return Err("load_yaml_spec_file: %v", err)
	}
	return Ok(fmt.Sprintf("loaded design spec for module %q from %s", spec.ModuleName, path))
}

func stringSliceArg(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
