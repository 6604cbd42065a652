// Package intelliscore exposes the batch intelligibility-scoring pipeline
// behind a small service facade.
package intelliscore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/speechmetrics/intelliscore/internal/analysis"
	"github.com/speechmetrics/intelliscore/internal/archive"
	"github.com/speechmetrics/intelliscore/internal/audio"
	"github.com/speechmetrics/intelliscore/internal/corpus"
	"github.com/speechmetrics/intelliscore/internal/metrics"
	"github.com/speechmetrics/intelliscore/internal/scoring"
	"github.com/speechmetrics/intelliscore/pkg/logger"
	"github.com/speechmetrics/intelliscore/pkg/utils"
)

type scoreService struct {
	config *Config
	log    Logger
	engine metrics.Engine
	arch   *archive.Archive
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}

	policy := metrics.ResampleToRate
	if cfg.StrictRate {
		policy = metrics.StrictRate
	}
	engine, err := metrics.ForName(cfg.Metric, policy)
	if err != nil {
		return nil, err
	}

	if engine.NeedsReference() {
		if cfg.CleanDir == "" {
			return nil, fmt.Errorf("metric %s requires a clean-speech directory", cfg.Metric)
		}
		if !utils.IsDir(cfg.CleanDir) {
			return nil, fmt.Errorf("clean-speech directory %s does not exist", cfg.CleanDir)
		}
	}

	s := &scoreService{
		config: cfg,
		log:    cfg.Logger,
		engine: engine,
	}

	// The archive is best-effort run history; scoring proceeds without it.
	if cfg.ArchivePath != "" {
		arch, err := archive.Open(cfg.ArchivePath)
		if err != nil {
			cfg.Logger.Warnf("run archive unavailable: %v", err)
		} else {
			s.arch = arch
		}
	}

	return s, nil
}

func (s *scoreService) ScoreCorpus(ctx context.Context) (*scoring.Summary, error) {
	s.log.Infof("scoring corpus %s with metric %s", s.config.CorpusRoot, s.engine.Name())
	started := time.Now()

	trav := corpus.NewTraverser(s.config.CorpusRoot)
	if s.config.Extension != "" {
		trav.Ext = s.config.Extension
	}

	acc := &scoring.Accumulator{
		OutDir: s.config.OutputDir,
		Metric: s.engine.Name(),
		Engine: s.engine,
		Decode: audio.ReadWavMono,
		Log:    s.log,
	}
	if s.engine.NeedsReference() {
		acc.Reference = s.cleanReference
	}

	summary, err := acc.Run(ctx, trav)
	if summary != nil {
		for _, t := range summary.Tables {
			s.log.Infof("table %s: %d ok, %d failed", filepath.Base(t.Path), t.Ok, t.Failed)
		}
		s.archiveRun(summary, started)
	}

	return summary, err
}

// cleanReference resolves the clean counterpart of a degraded recording by
// its base name in the configured clean directory.
func (s *scoreService) cleanReference(item corpus.Item) ([]float64, int, error) {
	cleanPath := filepath.Join(s.config.CleanDir, filepath.Base(item.Path))
	if _, err := os.Stat(cleanPath); err != nil {
		return nil, 0, fmt.Errorf("no clean counterpart for %s", filepath.Base(item.Path))
	}
	return audio.ReadWavMono(cleanPath)
}

// archiveRun records the finished run in the sqlite history, best-effort.
func (s *scoreService) archiveRun(summary *scoring.Summary, started time.Time) {
	if s.arch == nil {
		return
	}

	run := &archive.Run{
		ID:          utils.NewRunID(),
		Metric:      s.engine.Name(),
		CorpusRoot:  s.config.CorpusRoot,
		OutputDir:   s.config.OutputDir,
		StartedAt:   started,
		FinishedAt:  time.Now(),
		OkCount:     summary.Ok,
		FailedCount: summary.Failed,
	}
	if err := s.arch.SaveRun(run); err != nil {
		s.log.Warnf("archiving run: %v", err)
		return
	}

	for _, t := range summary.Tables {
		records, err := scoring.ParseTable(t.Path)
		if err != nil {
			s.log.Warnf("archiving table %s: %v", t.Path, err)
			continue
		}
		if err := s.arch.SaveRecords(run.ID, t.T60, records); err != nil {
			s.log.Warnf("archiving table %s: %v", t.Path, err)
		}
	}
	s.log.Debugf("archived run %s", run.ID)
}

func (s *scoreService) Summarize(scoresDir, outDir string) error {
	s.log.Infof("summarizing %s into %s", scoresDir, outDir)
	return analysis.Summarize(scoresDir, outDir)
}

func (s *scoreService) Close() error {
	if s.arch != nil {
		return s.arch.Close()
	}
	return nil
}
