package tool

import (
	"context"
	"strings"
	"testing"

	"github.com/forgeline/forgeline/internal/workspace"
)

func newFileToolContext(t *testing.T) *Context {
	t.Helper()
	return &Context{
		SessionID: "sess-1",
		Workspace: workspace.NewStore(t.TempDir(), 0, nil),
	}
}

func TestHandleWriteThenRead(t *testing.T) {
	tc := newFileToolContext(t)
	ctx := context.Background()

	res := handleWriteFile(ctx, tc, map[string]interface{}{
		"path":    "rtl/counter.v",
		"content": "module counter; endmodule\n",
	})
	if res.IsError {
		t.Fatalf("write_file error: %s", res.Text)
	}

	res = handleReadFile(ctx, tc, map[string]interface{}{"path": "rtl/counter.v"})
	if res.IsError {
		t.Fatalf("read_file error: %s", res.Text)
	}
	if res.Text != "module counter; endmodule\n" {
		t.Errorf("read_file = %q", res.Text)
	}
}

func TestHandleWriteFile_EscapeIsToolError(t *testing.T) {
	tc := newFileToolContext(t)
	res := handleWriteFile(context.Background(), tc, map[string]interface{}{
		"path":    "../../evil.v",
		"content": "x",
	})
	if !res.IsError || !strings.Contains(res.Text, "WorkspacePathEscape") {
		t.Fatalf("result = %+v, want WorkspacePathEscape tool error", res)
	}
}

func TestHandleEditFile_AppliesEditsAndReturnsDiff(t *testing.T) {
	tc := newFileToolContext(t)
	ctx := context.Background()

	handleWriteFile(ctx, tc, map[string]interface{}{
		"path":    "counter.v",
		"content": "always @(posedge clk)\n  count <= 8'd1;\nendmodule\n",
	})

	res := handleEditFile(ctx, tc, map[string]interface{}{
		"path": "counter.v",
		"edits": []interface{}{
			map[string]interface{}{"anchor": "count <= 8'd1;", "new_text": "count <= 8'd0;"},
		},
	})
	if res.IsError {
		t.Fatalf("edit_file_tool error: %s", res.Text)
	}
	if !strings.Contains(res.Text, "-  count <= 8'd1;") || !strings.Contains(res.Text, "+  count <= 8'd0;") {
		t.Errorf("diff missing expected hunks:\n%s", res.Text)
	}

	read := handleReadFile(ctx, tc, map[string]interface{}{"path": "counter.v"})
	if !strings.Contains(read.Text, "count <= 8'd0;") {
		t.Errorf("edit not applied: %q", read.Text)
	}
}

func TestHandleEditFile_MissingAnchor(t *testing.T) {
	tc := newFileToolContext(t)
	ctx := context.Background()
	handleWriteFile(ctx, tc, map[string]interface{}{"path": "f.txt", "content": "hello"})

	res := handleEditFile(ctx, tc, map[string]interface{}{
		"path": "f.txt",
		"edits": []interface{}{
			map[string]interface{}{"anchor": "absent", "new_text": "x"},
		},
	})
	if !res.IsError || !strings.Contains(res.Text, "ConflictNotFound") {
		t.Fatalf("result = %+v, want ConflictNotFound tool error", res)
	}
}

func TestHandleEditFile_EmptyEditsIsNoOp(t *testing.T) {
	tc := newFileToolContext(t)
	ctx := context.Background()
	handleWriteFile(ctx, tc, map[string]interface{}{"path": "f.txt", "content": "hello"})

	res := handleEditFile(ctx, tc, map[string]interface{}{"path": "f.txt", "edits": []interface{}{}})
	if res.IsError {
		t.Fatalf("edit_file_tool error: %s", res.Text)
	}
	if !strings.Contains(res.Text, "no changes") {
		t.Errorf("result = %q, want no-changes confirmation", res.Text)
	}
}

func TestHandleListFiles_AnnotatesKinds(t *testing.T) {
	tc := newFileToolContext(t)
	ctx := context.Background()
	handleWriteFile(ctx, tc, map[string]interface{}{"path": "counter.yaml", "content": "module: counter"})
	handleWriteFile(ctx, tc, map[string]interface{}{"path": "counter_tb.v", "content": "module counter_tb; endmodule"})

	res := handleListFiles(ctx, tc, map[string]interface{}{})
	if res.IsError {
		t.Fatalf("list_files_tool error: %s", res.Text)
	}
	if !strings.Contains(res.Text, "counter.yaml") || !strings.Contains(res.Text, "spec") {
		t.Errorf("listing missing spec annotation:\n%s", res.Text)
	}
	if !strings.Contains(res.Text, "counter_tb.v") || !strings.Contains(res.Text, "testbench") {
		t.Errorf("listing missing testbench annotation:\n%s", res.Text)
	}
}

func TestHandleListFiles_EmptyWorkspace(t *testing.T) {
	tc := newFileToolContext(t)
	res := handleListFiles(context.Background(), tc, map[string]interface{}{})
	if res.IsError {
		t.Fatalf("list_files_tool error: %s", res.Text)
	}
	if res.Text != "(no files)" {
		t.Errorf("result = %q, want (no files)", res.Text)
	}
}
