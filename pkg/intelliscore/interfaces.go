package intelliscore

import (
	"context"

	"github.com/speechmetrics/intelliscore/internal/scoring"
)

// Service is the batch scoring facade.
type Service interface {
	// ScoreCorpus walks the configured corpus, scores every recording, and
	// writes one table per T60 label. The summary is valid even when err is
	// non-nil, as long as traversal itself succeeded.
	ScoreCorpus(ctx context.Context) (*scoring.Summary, error)
	// Summarize aggregates score tables into per-RIR mean tables.
	Summarize(scoresDir, outDir string) error
	Close() error
}

type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}
