// Package analysis consumes persisted score tables: per-RIR mean
// summaries, rank-correlation reports, variance-homogeneity tests, and
// plots.
package analysis

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/speechmetrics/intelliscore/internal/scoring"
	"github.com/speechmetrics/intelliscore/pkg/utils"
)

const meanSuffix = "_mean_scores.csv"

// MeanScore is one per-RIR aggregate loaded from a mean-scores table.
type MeanScore struct {
	T60   float64
	RIR   string
	Score float64
	Count int
}

// T60Range bounds the reverberation times considered by an analysis.
// Inclusive on both ends.
type T60Range struct {
	Min, Max float64
}

func (r *T60Range) contains(t60 float64) bool {
	return r == nil || (t60 >= r.Min && t60 <= r.Max)
}

// Summarize aggregates every `<t60>_<metric>_scores.csv` table in
// scoresDir into `<t60>_mean_scores.csv` files under outDir, one row per
// RIR: `rir,mean,count`. Failed records are skipped.
func Summarize(scoresDir, outDir string) error {
	entries, err := os.ReadDir(scoresDir)
	if err != nil {
		return fmt.Errorf("reading scores dir %s: %w", scoresDir, err)
	}
	if err := utils.MakeDir(outDir); err != nil {
		return fmt.Errorf("creating summary dir %s: %w", outDir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, "_scores.csv") || strings.HasSuffix(name, meanSuffix) {
			continue
		}

		// Table names are <t60>_<metric>_scores.csv. The t60 label may
		// itself contain underscores; the metric name never does, so the
		// label ends at the last underscore.
		base := strings.TrimSuffix(name, "_scores.csv")
		idx := strings.LastIndex(base, "_")
		if idx < 0 {
			continue
		}
		t60 := base[:idx]

		records, err := scoring.ParseTable(filepath.Join(scoresDir, name))
		if err != nil {
			return err
		}

		sums := make(map[string]float64)
		counts := make(map[string]int)
		for _, r := range records {
			if r.Status != scoring.Ok {
				continue
			}
			rir, _, _ := strings.Cut(r.Name, "/")
			sums[rir] += r.Score
			counts[rir]++
		}

		rirs := make([]string, 0, len(sums))
		for rir := range sums {
			rirs = append(rirs, rir)
		}
		sort.Strings(rirs)

		var sb strings.Builder
		for _, rir := range rirs {
			mean := sums[rir] / float64(counts[rir])
			fmt.Fprintf(&sb, "%s,%s,%d\n", rir, strconv.FormatFloat(mean, 'g', -1, 64), counts[rir])
		}

		outPath := filepath.Join(outDir, t60+meanSuffix)
		if err := os.WriteFile(outPath, []byte(sb.String()), 0o644); err != nil {
			return fmt.Errorf("writing summary %s: %w", outPath, err)
		}
	}

	return nil
}

// LoadMeanScores reads every `<t60>_mean_scores.csv` in folder, optionally
// filtered to a T60 range. Rows with non-numeric scores are skipped rather
// than failing the load.
func LoadMeanScores(folder string, t60Range *T60Range) ([]MeanScore, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("reading mean-scores dir %s: %w", folder, err)
	}

	var scores []MeanScore
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, meanSuffix) {
			continue
		}

		t60, err := strconv.ParseFloat(strings.TrimSuffix(name, meanSuffix), 64)
		if err != nil {
			continue
		}
		if !t60Range.contains(t60) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(folder, name))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}

		for _, line := range strings.Split(string(data), "\n") {
			if line == "" {
				continue
			}
			fields := strings.Split(line, ",")
			if len(fields) < 2 {
				continue
			}
			score, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				continue
			}
			count := 0
			if len(fields) >= 3 {
				count, _ = strconv.Atoi(fields[2])
			}
			scores = append(scores, MeanScore{T60: t60, RIR: fields[0], Score: score, Count: count})
		}
	}

	return scores, nil
}

// joinScores inner-joins two mean-score sets on (t60, rir), returning the
// paired score sequences in deterministic key order.
func joinScores(a, b []MeanScore) (x, y []float64, t60s []float64) {
	type key struct {
		t60 float64
		rir string
	}

	bByKey := make(map[key]float64, len(b))
	for _, s := range b {
		bByKey[key{s.T60, s.RIR}] = s.Score
	}

	sorted := make([]MeanScore, len(a))
	copy(sorted, a)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].T60 != sorted[j].T60 {
			return sorted[i].T60 < sorted[j].T60
		}
		return sorted[i].RIR < sorted[j].RIR
	})

	for _, s := range sorted {
		if bScore, ok := bByKey[key{s.T60, s.RIR}]; ok {
			x = append(x, s.Score)
			y = append(y, bScore)
			t60s = append(t60s, s.T60)
		}
	}

	return x, y, t60s
}
