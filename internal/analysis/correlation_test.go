package analysis

import (
	"errors"
	"math"
	"testing"
)

func TestCorrelatePerfectlyConcordantScores(t *testing.T) {
	// Metric B is an affine transform of metric A over the same conditions:
	// rank order agrees everywhere.
	folderA := writeMeanFolder(t, map[float64]map[string]float64{
		0.3: {"rir_1": 0.9, "rir_2": 0.8},
		1.0: {"rir_1": 0.6, "rir_2": 0.5},
		4.0: {"rir_1": 0.3, "rir_2": 0.2},
	})
	folderB := writeMeanFolder(t, map[float64]map[string]float64{
		0.3: {"rir_1": 0.95, "rir_2": 0.85},
		1.0: {"rir_1": 0.65, "rir_2": 0.55},
		4.0: {"rir_1": 0.35, "rir_2": 0.25},
	})

	report, err := Correlate(folderA, folderB, nil)
	if err != nil {
		t.Fatalf("Correlate: %v", err)
	}

	if report.Pairs != 6 {
		t.Errorf("pairs = %d, want 6", report.Pairs)
	}
	if math.Abs(report.Kendall-1) > 1e-12 {
		t.Errorf("Kendall tau = %g, want 1 for fully concordant scores", report.Kendall)
	}
	if math.Abs(report.Pearson-1) > 1e-9 {
		t.Errorf("Pearson = %g, want 1 for an affine relation", report.Pearson)
	}
	if math.Abs(report.RMSE-0.05) > 1e-9 {
		t.Errorf("RMSE = %g, want 0.05 for a constant offset", report.RMSE)
	}
	if report.KendallP <= 0 || report.KendallP > 1 {
		t.Errorf("p-value = %g, want in (0,1]", report.KendallP)
	}
}

func TestCorrelateDiscordantScores(t *testing.T) {
	folderA := writeMeanFolder(t, map[float64]map[string]float64{
		0.3: {"rir_1": 0.1, "rir_2": 0.2, "rir_3": 0.3, "rir_4": 0.4},
	})
	folderB := writeMeanFolder(t, map[float64]map[string]float64{
		0.3: {"rir_1": 0.4, "rir_2": 0.3, "rir_3": 0.2, "rir_4": 0.1},
	})

	report, err := Correlate(folderA, folderB, nil)
	if err != nil {
		t.Fatalf("Correlate: %v", err)
	}
	if math.Abs(report.Kendall+1) > 1e-12 {
		t.Errorf("Kendall tau = %g, want -1 for fully reversed ranks", report.Kendall)
	}
}

func TestCorrelateT60RangeFilter(t *testing.T) {
	folderA := writeMeanFolder(t, map[float64]map[string]float64{
		0.3: {"rir_1": 0.9, "rir_2": 0.8},
		8.0: {"rir_1": 0.1, "rir_2": 0.2},
	})
	folderB := writeMeanFolder(t, map[float64]map[string]float64{
		0.3: {"rir_1": 0.7, "rir_2": 0.6},
		8.0: {"rir_1": 0.3, "rir_2": 0.4},
	})

	report, err := Correlate(folderA, folderB, &T60Range{Min: 0.1, Max: 1})
	if err != nil {
		t.Fatalf("Correlate: %v", err)
	}
	if report.Pairs != 2 {
		t.Errorf("pairs = %d, want 2 after filtering out t60=8", report.Pairs)
	}
}

func TestCorrelateNoCommonPairs(t *testing.T) {
	folderA := writeMeanFolder(t, map[float64]map[string]float64{
		0.3: {"rir_1": 0.9},
	})
	folderB := writeMeanFolder(t, map[float64]map[string]float64{
		8.0: {"rir_7": 0.1},
	})

	_, err := Correlate(folderA, folderB, nil)
	if !errors.Is(err, ErrNoCommonPairs) {
		t.Fatalf("got %v, want ErrNoCommonPairs", err)
	}
}
