package workspace

import (
	"fmt"
	"strings"

	"github.com/forgeline/forgeline/internal/apperr"
)

// Edit is one substitution in an EditFile call. Exactly one of the two
// modes applies: substring mode (Anchor set, LineStart == 0) replaces the
// first occurrence of Anchor; line-range mode (LineStart > 0) replaces the
// inclusive 1-indexed line range [LineStart, LineEnd] wholesale.
type Edit struct {
	Anchor    string
	LineStart int
	LineEnd   int
	NewText   string
}

// EditFile applies edits to rel's content in order and returns a
// unified-diff summary of the net change. Fails with
// apperr.KindConflictNotFound if a substring-mode anchor is not found in
// the content as it stands at that point in the edit sequence.
func (s *Store) EditFile(sessionID, rel string, edits []Edit) (string, error) {
	original, err := s.ReadFile(sessionID, rel)
	if err != nil {
		return "", err
	}
	before := string(original)
	content := before

	for i, e := range edits {
		next, err := applyEdit(content, e)
		if err != nil {
			return "", apperr.New(apperr.KindConflictNotFound, "edit %d of %q: %v", i, rel, err)
		}
		content = next
	}

	if err := s.WriteFile(sessionID, rel, []byte(content), CreateOrReplace); err != nil {
		return "", err
	}
	return unifiedDiff(rel, before, content), nil
}

func applyEdit(content string, e Edit) (string, error) {
	if e.LineStart > 0 {
		lines := strings.Split(content, "\n")
		start, end := e.LineStart-1, e.LineEnd
		if start < 0 || end > len(lines) || start >= end {
			return "", fmt.Errorf("line range %d-%d out of bounds (file has %d lines)", e.LineStart, e.LineEnd, len(lines))
		}
		replacement := strings.Split(e.NewText, "\n")
		merged := append([]string{}, lines[:start]...)
		merged = append(merged, replacement...)
		merged = append(merged, lines[end:]...)
		return strings.Join(merged, "\n"), nil
	}

	idx := strings.Index(content, e.Anchor)
	if idx < 0 {
		return "", fmt.Errorf("anchor not found: %q", truncateForError(e.Anchor))
	}
	return content[:idx] + e.NewText + content[idx+len(e.Anchor):], nil
}

func truncateForError(s string) string {
	const max = 60
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// unifiedDiff writes a minimal unified-diff-style summary: a line-level
// longest-common-subsequence diff with 3 lines of context, enough for the
// model and a human to see what an edit_file call actually changed. An
// unchanged file produces an empty diff.
func unifiedDiff(path, before, after string) string {
	if before == after {
		return ""
	}
	a := strings.Split(before, "\n")
	b := strings.Split(after, "\n")
	ops := diffLines(a, b)

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- a/%s\n+++ b/%s\n", path, path)
	const context = 3

	for i := 0; i < len(ops); {
		if ops[i].kind == diffEqual {
			i++
			continue
		}
		// Find the extent of this changed run. Each run gets its own hunk;
		// runs closer than the context window are not merged, so their
		// context lines can repeat.
		start := i
		for i < len(ops) && ops[i].kind != diffEqual {
			i++
		}
		end := i

		ctxBefore := start - context
		if ctxBefore < 0 {
			ctxBefore = 0
		}
		ctxAfter := end + context
		if ctxAfter > len(ops) {
			ctxAfter = len(ops)
		}

		fmt.Fprintf(&sb, "@@ line %d @@\n", ops[start].aLine+1)
		for _, op := range ops[ctxBefore:ctxAfter] {
			switch op.kind {
			case diffEqual:
				fmt.Fprintf(&sb, " %s\n", op.text)
			case diffDelete:
				fmt.Fprintf(&sb, "-%s\n", op.text)
			case diffInsert:
				fmt.Fprintf(&sb, "+%s\n", op.text)
			}
		}
	}
	return sb.String()
}

type diffKind int

const (
	diffEqual diffKind = iota
	diffDelete
	diffInsert
)

type diffOp struct {
	kind  diffKind
	text  string
	aLine int // line number in the "before" side, for @@ headers
}

// diffLines computes a simple LCS-based line diff. Workspace files are
// source/report-sized (kilobytes), not the megabyte inputs an O(n*m) table
// would make impractical.
func diffLines(a, b []string) []diffOp {
	n, m := len(a), len(b)
	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	var ops []diffOp
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case a[i] == b[j]:
			ops = append(ops, diffOp{kind: diffEqual, text: a[i], aLine: i})
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			ops = append(ops, diffOp{kind: diffDelete, text: a[i], aLine: i})
			i++
		default:
			ops = append(ops, diffOp{kind: diffInsert, text: b[j], aLine: i})
			j++
		}
	}
	for ; i < n; i++ {
		ops = append(ops, diffOp{kind: diffDelete, text: a[i], aLine: i})
	}
	for ; j < m; j++ {
		ops = append(ops, diffOp{kind: diffInsert, text: b[j], aLine: i})
	}
	return ops
}
