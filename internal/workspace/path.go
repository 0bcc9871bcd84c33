// Package workspace implements the Workspace Store: per-session filesystem
// confinement, file CRUD, unified-diff edit summaries, and artifact
// classification. Path validation lives in one value type — SessionPath —
// that every file tool shares instead of re-deriving and re-validating
// paths independently.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/forgeline/forgeline/internal/apperr"
)

// SessionPath is a filesystem path that has been validated to stay within
// one session's workspace root. It is the only way file tools touch disk —
// there is no path-taking API in this package that skips confinement.
type SessionPath struct {
	root     string // canonical session workspace root
	relative string // path relative to root, slash-cleaned
	abs      string // canonical absolute path
}

// String returns the path relative to the session's workspace root, the
// form tools should report back to the model.
func (p SessionPath) String() string { return p.relative }

// Abs returns the real filesystem path for os/io operations.
func (p SessionPath) Abs() string { return p.abs }

// resolve validates rel against root and returns a confined SessionPath:
// canonicalizes through symlinks (for existing paths) or through the
// deepest existing ancestor (for new files), and rejects anything that
// escapes root — including via a symlink chain whose final target lands
// outside it.
func resolve(root, rel string) (SessionPath, error) {
	var candidate string
	if filepath.IsAbs(rel) {
		candidate = filepath.Clean(rel)
	} else {
		candidate = filepath.Clean(filepath.Join(root, rel))
	}

	rootReal, err := filepath.EvalSymlinks(root)
	if err != nil {
		rootReal = root // workspace not yet created on disk
	}

	real, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		if !os.IsNotExist(err) {
			return SessionPath{}, apperr.New(apperr.KindWorkspacePathEscape, "cannot resolve path %q: %v", rel, err)
		}
		real, err = resolveThroughAncestors(candidate)
		if err != nil {
			return SessionPath{}, apperr.New(apperr.KindWorkspacePathEscape, "cannot resolve path %q: %v", rel, err)
		}
	}

	if !isInside(real, rootReal) {
		return SessionPath{}, apperr.New(apperr.KindWorkspacePathEscape, "path %q escapes the session workspace", rel)
	}

	relClean, err := filepath.Rel(rootReal, real)
	if err != nil {
		return SessionPath{}, apperr.New(apperr.KindWorkspacePathEscape, "path %q escapes the session workspace", rel)
	}
	return SessionPath{root: rootReal, relative: filepath.ToSlash(relClean), abs: real}, nil
}

// resolveThroughAncestors canonicalizes a path that does not yet exist by
// resolving the deepest existing ancestor and re-appending the remaining
// components, so a not-yet-created file still gets a confinement check
// against its real (symlink-resolved) parent directory.
func resolveThroughAncestors(path string) (string, error) {
	current := path
	var tail []string
	for {
		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("no existing ancestor found for %q", path)
		}
		tail = append([]string{filepath.Base(current)}, tail...)
		current = parent

		if real, err := filepath.EvalSymlinks(current); err == nil {
			result := real
			for _, t := range tail {
				result = filepath.Join(result, t)
			}
			return result, nil
		}
	}
}

func isInside(child, parent string) bool {
	if child == parent {
		return true
	}
	return len(child) > len(parent) && child[:len(parent)] == parent && os.IsPathSeparator(child[len(parent)])
}
