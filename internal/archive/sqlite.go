// Package archive persists scoring-run history in a local sqlite
// database. The CSV tables remain the durability channel for scores; the
// archive only serves the run-history listing and is always best-effort.
package archive

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/speechmetrics/intelliscore/internal/scoring"
	"github.com/speechmetrics/intelliscore/pkg/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const DefaultDBFile = "intelliscore.sqlite3"

// Run records one scoring run.
type Run struct {
	ID          string `gorm:"primaryKey;type:varchar(36)"`
	Metric      string `gorm:"index:idx_run_metric"`
	CorpusRoot  string
	OutputDir   string
	StartedAt   time.Time
	FinishedAt  time.Time
	OkCount     int
	FailedCount int
}

// ScoreRow is one persisted score record of a run.
type ScoreRow struct {
	ID      uint   `gorm:"primaryKey;autoIncrement"`
	RunID   string `gorm:"type:varchar(36);index:idx_row_run"`
	T60     string `gorm:"index:idx_row_t60"`
	Name    string
	Score   float64
	Failed  bool
	Message string
}

// Archive wraps the sqlite-backed run history.
type Archive struct {
	db *gorm.DB
}

// Open creates or opens the archive database at dbPath.
func Open(dbPath string) (*Archive, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := utils.MakeDir(dir); err != nil {
			return nil, fmt.Errorf("creating archive dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening archive db: %w", err)
	}

	if err := db.AutoMigrate(&Run{}, &ScoreRow{}); err != nil {
		return nil, fmt.Errorf("migrating archive schema: %w", err)
	}

	return &Archive{db: db}, nil
}

// SaveRun upserts a run row.
func (a *Archive) SaveRun(run *Run) error {
	if err := a.db.Save(run).Error; err != nil {
		return fmt.Errorf("saving run %s: %w", run.ID, err)
	}
	return nil
}

// SaveRecords stores the records of one table under the given run.
func (a *Archive) SaveRecords(runID, t60 string, records []scoring.Record) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([]ScoreRow, len(records))
	for i, r := range records {
		rows[i] = ScoreRow{
			RunID:   runID,
			T60:     t60,
			Name:    r.Name,
			Score:   r.Score,
			Failed:  r.Status == scoring.Failed,
			Message: r.Message,
		}
	}

	if err := a.db.CreateInBatches(rows, 200).Error; err != nil {
		return fmt.Errorf("saving %d records for run %s: %w", len(rows), runID, err)
	}
	return nil
}

// ListRuns returns all archived runs, most recent first.
func (a *Archive) ListRuns() ([]Run, error) {
	var runs []Run
	if err := a.db.Order("started_at desc").Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// RunRecords returns the persisted records of one run.
func (a *Archive) RunRecords(runID string) ([]ScoreRow, error) {
	var rows []ScoreRow
	if err := a.db.Where("run_id = ?", runID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading records of run %s: %w", runID, err)
	}
	return rows, nil
}

func (a *Archive) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
