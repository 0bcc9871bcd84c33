package tool

import (
	"context"
	"fmt"
	"strings"
)

// FilterTool returns configure_tool_filter: lets a
// session switch its own tool visibility between all/essential/custom.
// Always visible regardless of the active filter (internal/tool/policy.go's
// sessionToolNames).
func FilterTool() Definition {
	return Definition{
		Name:        "configure_tool_filter",
		Description: "Change which tools are visible to this session: all, essential, or a custom set of categories.",
		Category:    CategorySession,
		Params: []Param{
			{Name: "mode", Type: "string", Description: "Visibility mode.", Required: true, Enum: []string{"all", "essential", "custom"}},
			{Name: "categories", Type: "array", Description: "Category tags to allow when mode is \"custom\".", Items: "string"},
		},
		Handler: handleConfigureFilter,
	}
}

func handleConfigureFilter(ctx context.Context, tc *Context, args map[string]interface{}) *Result {
	mode, _ := args["mode"].(string)
	switch FilterMode(mode) {
	case FilterAll, FilterEssential, FilterCustom:
	default:
		return Err("configure_tool_filter: mode must be one of all, essential, custom")
	}

	var categories []Category
	for _, c := range stringSliceArg(args["categories"]) {
		categories = append(categories, Category(c))
	}
	if FilterMode(mode) == FilterCustom && len(categories) == 0 {
		return Err("configure_tool_filter: custom mode requires at least one category")
	}

	tc.SetFilter(FilterMode(mode), categories)

	visible := 0
	if tc.Registry != nil {
		f := Filter{Mode: FilterMode(mode), Categories: categories}
		for _, d := range tc.Registry.All() {
			if f.Visible(d) {
				visible++
			}
		}
	}
	cats := make([]string, len(categories))
	for i, c := range categories {
		cats[i] = string(c)
	}
	return Ok(fmt.Sprintf("tool filter set to %s%s (%d tools visible)", mode, filterSuffix(cats), visible))
}

func filterSuffix(cats []string) string {
	if len(cats) == 0 {
		return ""
	}
	return " [" + strings.Join(cats, ",") + "]"
}
