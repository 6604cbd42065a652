// Package corpus discovers scoring work items in a two-level condition
// hierarchy: root/<t60>/<rir>/<file>.wav.
package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Condition identifies one reverberation scenario in the corpus.
type Condition struct {
	T60Label string // top-level directory name, e.g. "0.3"
	RIRLabel string // sub-directory name, e.g. "rir_1"
}

// Item is a single degraded recording with its owning condition.
type Item struct {
	Condition Condition
	Path      string
}

// TraversalError reports a missing or invalid corpus directory. It aborts a
// run before any output table is created.
type TraversalError struct {
	Path string
	Err  error
}

func (e *TraversalError) Error() string {
	return fmt.Sprintf("corpus traversal failed at %s: %v", e.Path, e.Err)
}

func (e *TraversalError) Unwrap() error { return e.Err }

// Traverser enumerates audio items beneath Root. Enumeration order follows
// the sorted directory listing, so repeated walks over an unchanged corpus
// visit items in the same order.
type Traverser struct {
	Root string
	Ext  string // audio file extension filter, default ".wav"
}

func NewTraverser(root string) *Traverser {
	return &Traverser{Root: root, Ext: ".wav"}
}

// Walk calls fn for every audio file in the corpus, t60 directory by t60
// directory, rir directory by rir directory. The walk is restartable: each
// call re-enumerates from scratch. A non-nil error from fn stops the walk
// and is returned unchanged.
func (t *Traverser) Walk(fn func(Item) error) error {
	ext := t.Ext
	if ext == "" {
		ext = ".wav"
	}

	t60Dirs, err := readSubdirs(t.Root)
	if err != nil {
		return &TraversalError{Path: t.Root, Err: err}
	}

	for _, t60 := range t60Dirs {
		t60Path := filepath.Join(t.Root, t60)
		rirDirs, err := readSubdirs(t60Path)
		if err != nil {
			return &TraversalError{Path: t60Path, Err: err}
		}

		for _, rir := range rirDirs {
			rirPath := filepath.Join(t60Path, rir)
			entries, err := os.ReadDir(rirPath)
			if err != nil {
				return &TraversalError{Path: rirPath, Err: err}
			}

			for _, entry := range entries {
				if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ext) {
					continue
				}
				item := Item{
					Condition: Condition{T60Label: t60, RIRLabel: rir},
					Path:      filepath.Join(rirPath, entry.Name()),
				}
				if err := fn(item); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// Conditions returns every (t60, rir) pair in the corpus, in walk order.
func (t *Traverser) Conditions() ([]Condition, error) {
	var conds []Condition

	t60Dirs, err := readSubdirs(t.Root)
	if err != nil {
		return nil, &TraversalError{Path: t.Root, Err: err}
	}
	for _, t60 := range t60Dirs {
		t60Path := filepath.Join(t.Root, t60)
		rirDirs, err := readSubdirs(t60Path)
		if err != nil {
			return nil, &TraversalError{Path: t60Path, Err: err}
		}
		for _, rir := range rirDirs {
			conds = append(conds, Condition{T60Label: t60, RIRLabel: rir})
		}
	}

	return conds, nil
}

// readSubdirs returns the names of the immediate subdirectories of path.
// os.ReadDir already sorts entries by name.
func readSubdirs(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
		}
	}
	return dirs, nil
}
