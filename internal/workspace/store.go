package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/forgeline/forgeline/internal/apperr"
)

// WriteMode selects write-collision behavior for Store.WriteFile.
type WriteMode int

const (
	// CreateOrReplace overwrites an existing file.
	CreateOrReplace WriteMode = iota
	// CreateExclusive fails if the file already exists.
	CreateExclusive
)

const defaultMaxFileBytes = 16 << 20 // 16 MiB

// Entry describes one file discovered under a workspace subtree.
type Entry struct {
	Path       string // relative to the session workspace root
	Size       int64
	Kind       ArtifactKind
	ModifiedAt int64 // unix seconds
}

// OnMutate is invoked after every mutating operation, so callers (typically
// internal/session.Manager) can bump the session's last-updated timestamp
// without the Workspace Store depending on the Session Manager.
type OnMutate func(sessionID string)

// Store is the Workspace Store: a per-session bounded filesystem view
// rooted at <dataRoot>/workspaces/<sessionId>. All path handling goes
// through the SessionPath value type so every file-touching tool shares one
// confinement check instead of re-implementing it.
type Store struct {
	dataRoot     string
	maxFileBytes int64
	onMutate     OnMutate
}

// NewStore constructs a Store rooted at dataRoot. maxFileBytes <= 0 uses
// the 16 MiB default.
func NewStore(dataRoot string, maxFileBytes int64, onMutate OnMutate) *Store {
	if maxFileBytes <= 0 {
		maxFileBytes = defaultMaxFileBytes
	}
	return &Store{dataRoot: dataRoot, maxFileBytes: maxFileBytes, onMutate: onMutate}
}

func (s *Store) sessionRoot(sessionID string) string {
	return filepath.Join(s.dataRoot, "workspaces", sessionID)
}

// Root returns the absolute host-filesystem directory backing sessionID's
// workspace, for callers (e.g. the Subprocess Runner) that need a working
// directory rather than a confined-read/write path.
func (s *Store) Root(sessionID string) string {
	return s.sessionRoot(sessionID)
}

func (s *Store) resolve(sessionID, rel string) (SessionPath, error) {
	root := s.sessionRoot(sessionID)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return SessionPath{}, apperr.Wrap(apperr.KindPersistenceError, fmt.Errorf("create workspace root: %w", err))
	}
	return resolve(root, rel)
}

func (s *Store) notify(sessionID string) {
	if s.onMutate != nil {
		s.onMutate(sessionID)
	}
}

// WriteFile writes content at rel under sessionID's workspace. mode
// CreateExclusive fails with apperr.KindConflictNotFound if the file
// already exists.
func (s *Store) WriteFile(sessionID, rel string, content []byte, mode WriteMode) error {
	if int64(len(content)) > s.maxFileBytes {
		return apperr.New(apperr.KindFileTooLarge, "file %q is %d bytes, exceeds the %d byte cap", rel, len(content), s.maxFileBytes)
	}
	p, err := s.resolve(sessionID, rel)
	if err != nil {
		return err
	}
	if mode == CreateExclusive {
		if _, err := os.Stat(p.Abs()); err == nil {
			return apperr.New(apperr.KindConflictNotFound, "file %q already exists", rel)
		}
	}
	if err := os.MkdirAll(filepath.Dir(p.Abs()), 0o755); err != nil {
		return apperr.Wrap(apperr.KindPersistenceError, fmt.Errorf("create parent dirs for %q: %w", rel, err))
	}
	if err := os.WriteFile(p.Abs(), content, 0o644); err != nil {
		return apperr.Wrap(apperr.KindPersistenceError, fmt.Errorf("write %q: %w", rel, err))
	}
	s.notify(sessionID)
	return nil
}

// ReadFile returns the content at rel, or apperr.KindNotFound.
func (s *Store) ReadFile(sessionID, rel string) ([]byte, error) {
	p, err := s.resolve(sessionID, rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p.Abs())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.New(apperr.KindNotFound, "file %q not found", rel)
		}
		return nil, apperr.Wrap(apperr.KindPersistenceError, fmt.Errorf("read %q: %w", rel, err))
	}
	return data, nil
}

// DeleteFile removes rel. Used only for synthesis intermediates; does not
// error if the file is already absent.
func (s *Store) DeleteFile(sessionID, rel string) error {
	p, err := s.resolve(sessionID, rel)
	if err != nil {
		return err
	}
	if err := os.Remove(p.Abs()); err != nil && !os.IsNotExist(err) {
		return apperr.Wrap(apperr.KindPersistenceError, fmt.Errorf("delete %q: %w", rel, err))
	}
	s.notify(sessionID)
	return nil
}

// ListFiles returns every file under rel (relative subtree), annotated by
// the artifact classifier, sorted by path.
func (s *Store) ListFiles(sessionID, rel string) ([]Entry, error) {
	p, err := s.resolve(sessionID, rel)
	if err != nil {
		return nil, err
	}
	root := p.Abs()

	var out []Entry
	err = filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) {
				return nil
			}
			return walkErr
		}
		if info.IsDir() {
			return nil
		}
		relPath, relErr := filepath.Rel(s.sessionRoot(sessionID), path)
		if relErr != nil {
			return nil
		}
		out = append(out, Entry{
			Path:       filepath.ToSlash(relPath),
			Size:       info.Size(),
			Kind:       Classify(relPath, nil),
			ModifiedAt: info.ModTime().Unix(),
		})
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.KindPersistenceError, fmt.Errorf("list %q: %w", rel, err))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// RemoveSession deletes a session's entire workspace directory. Implements
// internal/session.WorkspaceRemover.
func (s *Store) RemoveSession(sessionID string) error {
	if err := os.RemoveAll(s.sessionRoot(sessionID)); err != nil {
		return fmt.Errorf("remove workspace for %q: %w", sessionID, err)
	}
	return nil
}
