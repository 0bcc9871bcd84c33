package tool

import (
	"context"
	"strings"
	"testing"
)

func echoDef() Definition {
	return Definition{
		Name:        "echo",
		Description: "echo back the message argument",
		Category:    CategoryOther,
		Params: []Param{
			{Name: "message", Type: "string", Required: true},
			{Name: "count", Type: "integer", Default: 1},
		},
		Handler: func(ctx context.Context, tc *Context, args map[string]interface{}) *Result {
			msg, _ := args["message"].(string)
			return Ok(msg)
		},
	}
}

func panicDef() Definition {
	return Definition{
		Name:        "boom",
		Description: "always panics",
		Category:    CategoryOther,
		Handler: func(ctx context.Context, tc *Context, args map[string]interface{}) *Result {
			panic("handler bug")
		},
	}
}

func TestExecutor_Success(t *testing.T) {
	reg := NewRegistry(echoDef())
	e := NewExecutor(reg, NewFilterStore(Filter{Mode: FilterAll}))

	res := e.Execute(context.Background(), "sess-1",
		Invocation{CallID: "c1", Name: "echo", Args: map[string]interface{}{"message": "hi"}}, &Context{})

	if res.Status != "success" {
		t.Fatalf("Status = %q (payload %q), want success", res.Status, res.Payload)
	}
	if res.Payload != "hi" {
		t.Errorf("Payload = %q, want hi", res.Payload)
	}
	if res.CallID != "c1" {
		t.Errorf("CallID = %q, want c1", res.CallID)
	}
	if res.Bytes != len("hi") {
		t.Errorf("Bytes = %d, want %d", res.Bytes, len("hi"))
	}
}

func TestExecutor_UnknownToolIsNotVisible(t *testing.T) {
	e := NewExecutor(NewRegistry(), NewFilterStore(Filter{Mode: FilterAll}))
	res := e.Execute(context.Background(), "sess-1", Invocation{CallID: "c1", Name: "nope"}, &Context{})
	if res.Status != "error" || !strings.Contains(res.Payload, "ToolNotVisible") {
		t.Fatalf("result = %+v, want ToolNotVisible error", res)
	}
}

func TestExecutor_FilteredToolIsNotVisible(t *testing.T) {
	reg := NewRegistry(echoDef())
	filters := NewFilterStore(Filter{Mode: FilterEssential})
	e := NewExecutor(reg, filters)

	res := e.Execute(context.Background(), "sess-1",
		Invocation{CallID: "c1", Name: "echo", Args: map[string]interface{}{"message": "hi"}}, &Context{})
	if res.Status != "error" || !strings.Contains(res.Payload, "ToolNotVisible") {
		t.Fatalf("result = %+v, want ToolNotVisible under essential filter", res)
	}

	// Widening the filter to the tool's category makes the same call succeed.
	filters.Set("sess-1", Filter{Mode: FilterCustom, Categories: []Category{CategoryOther}})
	res = e.Execute(context.Background(), "sess-1",
		Invocation{CallID: "c2", Name: "echo", Args: map[string]interface{}{"message": "hi"}}, &Context{})
	if res.Status != "success" {
		t.Fatalf("result after widening filter = %+v, want success", res)
	}
}

func TestExecutor_BadArgs(t *testing.T) {
	reg := NewRegistry(echoDef())
	e := NewExecutor(reg, NewFilterStore(Filter{Mode: FilterAll}))

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"missing required", map[string]interface{}{}},
		{"mistyped string", map[string]interface{}{"message": 42}},
		{"mistyped integer", map[string]interface{}{"message": "hi", "count": "three"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Execute(context.Background(), "sess-1",
				Invocation{CallID: "c1", Name: "echo", Args: tt.args}, &Context{})
			if res.Status != "error" || !strings.Contains(res.Payload, "BadArgs") {
				t.Fatalf("result = %+v, want BadArgs error", res)
			}
		})
	}
}

func TestExecutor_HandlerPanicBecomesErrorResult(t *testing.T) {
	reg := NewRegistry(panicDef())
	e := NewExecutor(reg, NewFilterStore(Filter{Mode: FilterAll}))

	res := e.Execute(context.Background(), "sess-1", Invocation{CallID: "c1", Name: "boom"}, &Context{})
	if res.Status != "error" || !strings.Contains(res.Payload, "panicked") {
		t.Fatalf("result = %+v, want converted panic error", res)
	}
}

func TestFilter_CustomUnionOfCategories(t *testing.T) {
	f := Filter{Mode: FilterCustom, Categories: []Category{CategoryEssential, CategorySynthesis}}

	if !f.Visible(Definition{Name: "linter_tool", Category: CategoryEssential}) {
		t.Error("essential-category tool should be visible")
	}
	if !f.Visible(Definition{Name: "start_synthesis", Category: CategorySynthesis}) {
		t.Error("synthesis-category tool should be visible")
	}
	if f.Visible(Definition{Name: "waveform_tool", Category: CategoryVerification}) {
		t.Error("verification-category tool should not be visible")
	}
	if !f.Visible(Definition{Name: "delete_session", Category: CategorySession}) {
		t.Error("session tools are visible under every mode")
	}
}

func TestFilterStore_VisibleDefs(t *testing.T) {
	reg := NewRegistry(AllDefinitions()...)
	filters := NewFilterStore(Filter{Mode: FilterEssential})

	defs := filters.VisibleDefs(reg, "sess-1")
	seen := make(map[string]bool, len(defs))
	for _, d := range defs {
		seen[d.Name] = true
	}
	for name := range essentialAllowList {
		if !seen[name] {
			t.Errorf("essential tool %q missing from visible set", name)
		}
	}
	if seen["start_synthesis"] {
		t.Error("start_synthesis should be hidden under essential mode")
	}
	if !seen["create_session"] {
		t.Error("session tools must always be visible")
	}
}
