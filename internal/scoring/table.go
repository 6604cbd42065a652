// Package scoring drives metric computation over a corpus and persists
// per-condition score tables with per-item failure isolation.
package scoring

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Status of one score record.
type Status int

const (
	Ok Status = iota
	Failed
)

// Record is the outcome of scoring one audio item. Name is the composite
// "rir/filename" identifier, unique within one table.
type Record struct {
	Name    string
	Score   float64
	Status  Status
	Message string // failure reason when Status is Failed
}

// PersistenceError reports a table that could not be opened or written.
// It is fatal for that table; other tables proceed independently.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("score table %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Table is an append-only score table. It is truncated exactly once, at
// open time, and each appended record is flushed to disk before Append
// returns, so an interrupted run loses at most the in-flight item.
type Table struct {
	path string
	f    *os.File
	seen map[string]bool
}

// OpenTable creates (or truncates) the table file at path.
func OpenTable(path string) (*Table, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, &PersistenceError{Path: path, Err: err}
	}
	return &Table{path: path, f: f, seen: make(map[string]bool)}, nil
}

func (t *Table) Path() string { return t.path }

// Append writes one record as a single newline-terminated line and syncs
// the file. Appending a duplicate record name is an error.
func (t *Table) Append(r Record) error {
	if t.seen[r.Name] {
		return &PersistenceError{Path: t.path, Err: fmt.Errorf("duplicate record name %q", r.Name)}
	}

	var line string
	if r.Status == Ok {
		line = r.Name + "," + strconv.FormatFloat(r.Score, 'g', -1, 64) + "\n"
	} else {
		msg := strings.ReplaceAll(r.Message, "\n", " ")
		line = r.Name + ",Error: " + msg + "\n"
	}

	if _, err := t.f.WriteString(line); err != nil {
		return &PersistenceError{Path: t.path, Err: err}
	}
	if err := t.f.Sync(); err != nil {
		return &PersistenceError{Path: t.path, Err: err}
	}

	t.seen[r.Name] = true
	return nil
}

func (t *Table) Close() error {
	return t.f.Close()
}

// ParseTable reads a table back into records by splitting each line on its
// first comma. The inverse of Append's formatting.
func ParseTable(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &PersistenceError{Path: path, Err: err}
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		name, value, found := strings.Cut(line, ",")
		if !found {
			return nil, &PersistenceError{Path: path, Err: fmt.Errorf("malformed row %q", line)}
		}

		if msg, isErr := strings.CutPrefix(value, "Error: "); isErr {
			records = append(records, Record{Name: name, Status: Failed, Message: msg})
			continue
		}

		score, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, &PersistenceError{Path: path, Err: fmt.Errorf("malformed score in row %q: %w", line, err)}
		}
		records = append(records, Record{Name: name, Status: Ok, Score: score})
	}
	if err := scanner.Err(); err != nil {
		return nil, &PersistenceError{Path: path, Err: err}
	}

	return records, nil
}
