package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forgeline/forgeline/internal/apperr"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir(), 0, nil)
}

func TestStore_WriteReadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	content := []byte("module counter(input clk);\nendmodule\n")
	if err := s.WriteFile("sess-1", "rtl/counter.v", content, CreateOrReplace); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	got, err := s.ReadFile("sess-1", "rtl/counter.v")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("ReadFile() = %q, want %q", got, content)
	}
}

func TestStore_ReadMissingIsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ReadFile("sess-1", "nope.v")
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("ReadFile() kind = %v, want NotFound", apperr.KindOf(err))
	}
}

func TestStore_PathEscapeRejected(t *testing.T) {
	s := newTestStore(t)

	for _, rel := range []string{
		"../outside.v",
		"../../etc/passwd",
		"a/../../../outside.v",
	} {
		t.Run(rel, func(t *testing.T) {
			err := s.WriteFile("sess-1", rel, []byte("x"), CreateOrReplace)
			if apperr.KindOf(err) != apperr.KindWorkspacePathEscape {
				t.Fatalf("WriteFile(%q) kind = %v, want WorkspacePathEscape", rel, apperr.KindOf(err))
			}
		})
	}
}

func TestStore_SymlinkEscapeRejected(t *testing.T) {
	s := newTestStore(t)
	if err := s.WriteFile("sess-1", "keep.txt", []byte("x"), CreateOrReplace); err != nil {
		t.Fatalf("seed write error = %v", err)
	}

	outside := t.TempDir()
	link := filepath.Join(s.Root("sess-1"), "escape")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	err := s.WriteFile("sess-1", "escape/evil.txt", []byte("x"), CreateOrReplace)
	if apperr.KindOf(err) != apperr.KindWorkspacePathEscape {
		t.Fatalf("WriteFile() through symlink kind = %v, want WorkspacePathEscape", apperr.KindOf(err))
	}
}

func TestStore_CreateExclusiveConflicts(t *testing.T) {
	s := newTestStore(t)
	if err := s.WriteFile("sess-1", "a.txt", []byte("1"), CreateExclusive); err != nil {
		t.Fatalf("first WriteFile() error = %v", err)
	}
	err := s.WriteFile("sess-1", "a.txt", []byte("2"), CreateExclusive)
	if apperr.KindOf(err) != apperr.KindConflictNotFound {
		t.Fatalf("second WriteFile() kind = %v, want ConflictNotFound", apperr.KindOf(err))
	}
	// CreateOrReplace still wins.
	if err := s.WriteFile("sess-1", "a.txt", []byte("3"), CreateOrReplace); err != nil {
		t.Fatalf("replace WriteFile() error = %v", err)
	}
}

func TestStore_FileTooLarge(t *testing.T) {
	s := NewStore(t.TempDir(), 8, nil)
	err := s.WriteFile("sess-1", "big.bin", []byte("123456789"), CreateOrReplace)
	if apperr.KindOf(err) != apperr.KindFileTooLarge {
		t.Fatalf("WriteFile() kind = %v, want FileTooLarge", apperr.KindOf(err))
	}
}

func TestStore_DeleteFileIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.WriteFile("sess-1", "tmp.log", []byte("x"), CreateOrReplace); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := s.DeleteFile("sess-1", "tmp.log"); err != nil {
		t.Fatalf("DeleteFile() error = %v", err)
	}
	if err := s.DeleteFile("sess-1", "tmp.log"); err != nil {
		t.Fatalf("second DeleteFile() error = %v", err)
	}
}

func TestStore_ListFilesClassifiedAndSorted(t *testing.T) {
	s := newTestStore(t)
	files := map[string]string{
		"spec.yaml":        "module: counter",
		"rtl/counter.v":    "module counter; endmodule",
		"tb/counter_tb.v":  "module counter_tb; endmodule",
		"sim/waves.vcd":    "$date today $end",
		"report.md":        "# Report",
		"synth/synth.log":  "stage1",
	}
	for path, content := range files {
		if err := s.WriteFile("sess-1", path, []byte(content), CreateOrReplace); err != nil {
			t.Fatalf("WriteFile(%q) error = %v", path, err)
		}
	}

	entries, err := s.ListFiles("sess-1", "")
	if err != nil {
		t.Fatalf("ListFiles() error = %v", err)
	}
	if len(entries) != len(files) {
		t.Fatalf("ListFiles() returned %d entries, want %d", len(entries), len(files))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Path >= entries[i].Path {
			t.Fatalf("entries not sorted: %q before %q", entries[i-1].Path, entries[i].Path)
		}
	}

	kinds := make(map[string]ArtifactKind)
	for _, e := range entries {
		kinds[e.Path] = e.Kind
	}
	want := map[string]ArtifactKind{
		"spec.yaml":       KindSpec,
		"rtl/counter.v":   KindVerilog,
		"tb/counter_tb.v": KindTestbench,
		"sim/waves.vcd":   KindWaveform,
		"report.md":       KindReport,
		"synth/synth.log": KindSynthLog,
	}
	for path, k := range want {
		if kinds[path] != k {
			t.Errorf("kind(%q) = %q, want %q", path, kinds[path], k)
		}
	}
}

func TestStore_CrossSessionIsolation(t *testing.T) {
	s := newTestStore(t)
	if err := s.WriteFile("sess-a", "design.v", []byte("a"), CreateOrReplace); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := s.ReadFile("sess-b", "design.v"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("sess-b read of sess-a file kind = %v, want NotFound", apperr.KindOf(err))
	}
}

func TestStore_EditFileAnchor(t *testing.T) {
	s := newTestStore(t)
	original := "line one\nline two\nline three\n"
	if err := s.WriteFile("sess-1", "f.txt", []byte(original), CreateOrReplace); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	diff, err := s.EditFile("sess-1", "f.txt", []Edit{{Anchor: "line two", NewText: "line 2"}})
	if err != nil {
		t.Fatalf("EditFile() error = %v", err)
	}
	if !strings.Contains(diff, "-line two") || !strings.Contains(diff, "+line 2") {
		t.Errorf("diff missing expected hunks:\n%s", diff)
	}

	got, _ := s.ReadFile("sess-1", "f.txt")
	if string(got) != "line one\nline 2\nline three\n" {
		t.Errorf("content after edit = %q", got)
	}
}

func TestStore_EditFileLineRange(t *testing.T) {
	s := newTestStore(t)
	if err := s.WriteFile("sess-1", "f.txt", []byte("a\nb\nc\nd"), CreateOrReplace); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := s.EditFile("sess-1", "f.txt", []Edit{{LineStart: 2, LineEnd: 3, NewText: "B"}}); err != nil {
		t.Fatalf("EditFile() error = %v", err)
	}
	got, _ := s.ReadFile("sess-1", "f.txt")
	if string(got) != "a\nB\nd" {
		t.Errorf("content after line-range edit = %q, want a\\nB\\nd", got)
	}
}

func TestStore_EditFileMissingAnchor(t *testing.T) {
	s := newTestStore(t)
	if err := s.WriteFile("sess-1", "f.txt", []byte("hello"), CreateOrReplace); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	_, err := s.EditFile("sess-1", "f.txt", []Edit{{Anchor: "absent", NewText: "x"}})
	if apperr.KindOf(err) != apperr.KindConflictNotFound {
		t.Fatalf("EditFile() kind = %v, want ConflictNotFound", apperr.KindOf(err))
	}
	// The file must be untouched after a failed edit sequence.
	got, _ := s.ReadFile("sess-1", "f.txt")
	if string(got) != "hello" {
		t.Errorf("content after failed edit = %q, want hello", got)
	}
}

func TestStore_EditFileEmptyEditsIsNoOp(t *testing.T) {
	s := newTestStore(t)
	if err := s.WriteFile("sess-1", "f.txt", []byte("hello"), CreateOrReplace); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	diff, err := s.EditFile("sess-1", "f.txt", nil)
	if err != nil {
		t.Fatalf("EditFile() error = %v", err)
	}
	if diff != "" {
		t.Errorf("empty edit list diff = %q, want empty", diff)
	}
}

func TestStore_MutationNotifies(t *testing.T) {
	var touched []string
	s := NewStore(t.TempDir(), 0, func(sessionID string) { touched = append(touched, sessionID) })

	if err := s.WriteFile("sess-1", "a.txt", []byte("x"), CreateOrReplace); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := s.DeleteFile("sess-1", "a.txt"); err != nil {
		t.Fatalf("DeleteFile() error = %v", err)
	}
	if len(touched) != 2 {
		t.Fatalf("onMutate fired %d times, want 2", len(touched))
	}
}
