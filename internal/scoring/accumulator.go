package scoring

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/speechmetrics/intelliscore/internal/corpus"
	"github.com/speechmetrics/intelliscore/internal/metrics"
	"github.com/speechmetrics/intelliscore/pkg/utils"
)

// DecodeFunc decodes one audio file into mono samples and a sample rate.
type DecodeFunc func(path string) ([]float64, int, error)

// ReferenceFunc resolves the clean counterpart of a degraded item for
// reference-based metrics.
type ReferenceFunc func(item corpus.Item) ([]float64, int, error)

// Logger is the minimal logging surface the accumulator needs.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// TableSummary holds the per-table outcome counts of one run.
type TableSummary struct {
	T60    string
	Path   string
	Ok     int
	Failed int
}

// Summary aggregates a whole scoring run.
type Summary struct {
	Tables []TableSummary
	Ok     int
	Failed int
}

// Accumulator walks a corpus, scores every item with Engine, and appends
// one record per item to the owning per-T60 table. Per-item failures are
// contained as Failed records; only traversal and table-level persistence
// problems surface as errors.
type Accumulator struct {
	OutDir    string
	Metric    string
	Engine    metrics.Engine
	Decode    DecodeFunc
	Reference ReferenceFunc // required when Engine.NeedsReference()
	Log       Logger

	tables map[string]*Table
	broken map[string]bool // tables that failed to open or write
}

// Run scores the corpus under trav. The returned Summary is valid even
// when err is non-nil, unless traversal itself failed before any table was
// created.
func (a *Accumulator) Run(ctx context.Context, trav *corpus.Traverser) (*Summary, error) {
	// Enumerate conditions first: a broken hierarchy must abort the run
	// before any output table is created.
	conds, err := trav.Conditions()
	if err != nil {
		return nil, err
	}

	if err := utils.MakeDir(a.OutDir); err != nil {
		return nil, &PersistenceError{Path: a.OutDir, Err: err}
	}

	a.tables = make(map[string]*Table)
	a.broken = make(map[string]bool)
	var tableOrder []string
	var runErrs []error

	// One table per t60 label, created even when every rir folder under it
	// turns out to be empty.
	for _, c := range conds {
		if _, open := a.tables[c.T60Label]; open || a.broken[c.T60Label] {
			continue
		}
		path := filepath.Join(a.OutDir, fmt.Sprintf("%s_%s_scores.csv", c.T60Label, a.Metric))
		table, err := OpenTable(path)
		if err != nil {
			a.Log.Errorf("cannot open table for t60=%s: %v", c.T60Label, err)
			a.broken[c.T60Label] = true
			runErrs = append(runErrs, err)
			continue
		}
		a.tables[c.T60Label] = table
		tableOrder = append(tableOrder, c.T60Label)
	}

	defer func() {
		for _, table := range a.tables {
			table.Close()
		}
	}()

	counts := make(map[string]*TableSummary)
	for _, t60 := range tableOrder {
		counts[t60] = &TableSummary{T60: t60, Path: a.tables[t60].Path()}
	}

	walkErr := trav.Walk(func(item corpus.Item) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		t60 := item.Condition.T60Label
		table, open := a.tables[t60]
		if !open {
			return nil // table failed earlier, skip its items
		}

		record := a.scoreItem(item)
		if err := table.Append(record); err != nil {
			a.Log.Errorf("table for t60=%s broken, abandoning it: %v", t60, err)
			table.Close()
			delete(a.tables, t60)
			a.broken[t60] = true
			runErrs = append(runErrs, err)
			return nil
		}

		if record.Status == Ok {
			counts[t60].Ok++
			a.Log.Infof("processed %s: %s=%.3f", record.Name, a.Metric, record.Score)
		} else {
			counts[t60].Failed++
			a.Log.Warnf("failed to process %s: %s", record.Name, record.Message)
		}
		return nil
	})
	if walkErr != nil {
		runErrs = append(runErrs, walkErr)
	}

	summary := &Summary{}
	for _, t60 := range tableOrder {
		ts := counts[t60]
		summary.Tables = append(summary.Tables, *ts)
		summary.Ok += ts.Ok
		summary.Failed += ts.Failed
	}

	return summary, errors.Join(runErrs...)
}

// scoreItem decodes and scores a single item. Every failure mode maps to a
// Failed record; this function never aborts the run.
func (a *Accumulator) scoreItem(item corpus.Item) Record {
	name := item.Condition.RIRLabel + "/" + filepath.Base(item.Path)

	signal, rate, err := a.Decode(item.Path)
	if err != nil {
		return Record{Name: name, Status: Failed, Message: err.Error()}
	}

	var reference []float64
	if a.Engine.NeedsReference() {
		if a.Reference == nil {
			return Record{Name: name, Status: Failed, Message: "no reference source configured"}
		}
		ref, refRate, err := a.Reference(item)
		if err != nil {
			return Record{Name: name, Status: Failed, Message: err.Error()}
		}
		if refRate != rate {
			return Record{Name: name, Status: Failed,
				Message: fmt.Sprintf("sampling rates do not match: clean %d Hz, degraded %d Hz", refRate, rate)}
		}
		reference = metrics.AlignReference(ref, signal)
	}

	score, err := a.Engine.Score(reference, signal, rate)
	if err != nil {
		return Record{Name: name, Status: Failed, Message: err.Error()}
	}

	return Record{Name: name, Status: Ok, Score: score}
}
