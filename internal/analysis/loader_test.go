package analysis

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// writeMeanFolder materializes a mean-scores folder from a map of
// t60 -> rir -> mean score.
func writeMeanFolder(t *testing.T, data map[float64]map[string]float64) string {
	t.Helper()

	dir := t.TempDir()
	for t60, rirs := range data {
		var content string
		for rir, score := range rirs {
			content += fmt.Sprintf("%s,%g,12\n", rir, score)
		}
		name := fmt.Sprintf("%g%s", t60, meanSuffix)
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestSummarize(t *testing.T) {
	scoresDir := t.TempDir()
	outDir := t.TempDir()

	table := "rir_1/a.wav,0.4\n" +
		"rir_1/b.wav,0.6\n" +
		"rir_1/c.wav,Error: decoding failed\n" + // failed rows are skipped
		"rir_2/a.wav,0.9\n"
	if err := os.WriteFile(filepath.Join(scoresDir, "0.3_stipa_scores.csv"), []byte(table), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Summarize(scoresDir, outDir); err != nil {
		t.Fatalf("Summarize: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(outDir, "0.3"+meanSuffix))
	if err != nil {
		t.Fatalf("mean table missing: %v", err)
	}
	want := "rir_1,0.5,2\nrir_2,0.9,1\n"
	if string(data) != want {
		t.Errorf("mean table = %q, want %q", data, want)
	}
}

func TestSummarizeUnderscoredT60Labels(t *testing.T) {
	scoresDir := t.TempDir()
	outDir := t.TempDir()

	// The t60 label may itself contain underscores; each table must still
	// produce its own mean file instead of colliding on a shared prefix.
	tables := map[string]string{
		"t60_0.3_stipa_scores.csv": "rir_1/a.wav,0.8\n",
		"t60_0.6_stipa_scores.csv": "rir_1/a.wav,0.2\n",
	}
	for name, content := range tables {
		if err := os.WriteFile(filepath.Join(scoresDir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := Summarize(scoresDir, outDir); err != nil {
		t.Fatalf("Summarize: %v", err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Fatalf("got %d summary files %v, want 2 (one per t60 label)", len(entries), names)
	}

	for t60, want := range map[string]string{
		"t60_0.3": "rir_1,0.8,1\n",
		"t60_0.6": "rir_1,0.2,1\n",
	} {
		data, err := os.ReadFile(filepath.Join(outDir, t60+meanSuffix))
		if err != nil {
			t.Fatalf("mean table for %s missing: %v", t60, err)
		}
		if string(data) != want {
			t.Errorf("mean table for %s = %q, want %q", t60, data, want)
		}
	}
}

func TestSummarizeIgnoresMeanTables(t *testing.T) {
	scoresDir := t.TempDir()
	// A previous summary output sitting in the scores dir must not be
	// re-aggregated.
	if err := os.WriteFile(filepath.Join(scoresDir, "0.3"+meanSuffix), []byte("rir_1,0.5,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	outDir := t.TempDir()
	if err := Summarize(scoresDir, outDir); err != nil {
		t.Fatalf("Summarize: %v", err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("summary dir has %d entries, want none", len(entries))
	}
}

func TestLoadMeanScores(t *testing.T) {
	dir := writeMeanFolder(t, map[float64]map[string]float64{
		0.3: {"rir_1": 0.5, "rir_2": 0.7},
		1.0: {"rir_1": 0.3},
		4.0: {"rir_1": 0.1},
	})

	all, err := LoadMeanScores(dir, nil)
	if err != nil {
		t.Fatalf("LoadMeanScores: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("loaded %d scores, want 4", len(all))
	}
	for _, s := range all {
		if s.Count != 12 {
			t.Errorf("score %v has count %d, want 12", s, s.Count)
		}
	}

	ranged, err := LoadMeanScores(dir, &T60Range{Min: 0.5, Max: 2})
	if err != nil {
		t.Fatalf("LoadMeanScores with range: %v", err)
	}
	if len(ranged) != 1 || ranged[0].T60 != 1.0 {
		t.Errorf("ranged load = %v, want only t60=1", ranged)
	}
}

func TestLoadMeanScoresSkipsMalformedRows(t *testing.T) {
	dir := t.TempDir()
	content := "rir_1,0.5,3\nrir_2,garbage,3\nrir_3\n"
	if err := os.WriteFile(filepath.Join(dir, "0.3"+meanSuffix), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	scores, err := LoadMeanScores(dir, nil)
	if err != nil {
		t.Fatalf("LoadMeanScores: %v", err)
	}
	if len(scores) != 1 || scores[0].RIR != "rir_1" {
		t.Errorf("got %v, want only the well-formed row", scores)
	}
}

func TestJoinScores(t *testing.T) {
	a := []MeanScore{
		{T60: 1, RIR: "rir_2", Score: 0.4},
		{T60: 0.3, RIR: "rir_1", Score: 0.8},
		{T60: 1, RIR: "rir_1", Score: 0.6},
		{T60: 2, RIR: "rir_9", Score: 0.1}, // no counterpart in b
	}
	b := []MeanScore{
		{T60: 0.3, RIR: "rir_1", Score: 0.75},
		{T60: 1, RIR: "rir_1", Score: 0.55},
		{T60: 1, RIR: "rir_2", Score: 0.35},
	}

	x, y, t60s := joinScores(a, b)
	if len(x) != 3 {
		t.Fatalf("joined %d pairs, want 3", len(x))
	}

	// Pairs come back sorted by (t60, rir).
	wantX := []float64{0.8, 0.6, 0.4}
	wantY := []float64{0.75, 0.55, 0.35}
	wantT := []float64{0.3, 1, 1}
	for i := range x {
		if x[i] != wantX[i] || y[i] != wantY[i] || t60s[i] != wantT[i] {
			t.Errorf("pair %d = (%g, %g, t60=%g), want (%g, %g, t60=%g)",
				i, x[i], y[i], t60s[i], wantX[i], wantY[i], wantT[i])
		}
	}
}
