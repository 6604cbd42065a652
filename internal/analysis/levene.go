package analysis

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"
)

// LeveneResult is the variance-homogeneity test outcome for one T60.
type LeveneResult struct {
	T60      float64
	Stat     float64
	PValue   float64
	SamplesA int
	SamplesB int
}

// LeveneBetween tests, for every T60 both folders share, whether the two
// metrics' per-RIR mean scores have equal variance. Median-centered
// (Brown–Forsythe) variant. T60s with too few samples on either side are
// skipped.
func LeveneBetween(folderA, folderB string) ([]LeveneResult, error) {
	a, err := LoadMeanScores(folderA, nil)
	if err != nil {
		return nil, err
	}
	b, err := LoadMeanScores(folderB, nil)
	if err != nil {
		return nil, err
	}

	byT60 := func(scores []MeanScore) map[float64][]float64 {
		groups := make(map[float64][]float64)
		for _, s := range scores {
			groups[s.T60] = append(groups[s.T60], s.Score)
		}
		return groups
	}
	groupsA := byT60(a)
	groupsB := byT60(b)

	var common []float64
	for t60 := range groupsA {
		if _, ok := groupsB[t60]; ok {
			common = append(common, t60)
		}
	}
	sort.Float64s(common)

	var results []LeveneResult
	for _, t60 := range common {
		stat, p, err := leveneTwoGroups(groupsA[t60], groupsB[t60])
		if err != nil {
			continue
		}
		results = append(results, LeveneResult{
			T60:      t60,
			Stat:     stat,
			PValue:   p,
			SamplesA: len(groupsA[t60]),
			SamplesB: len(groupsB[t60]),
		})
	}

	if len(results) == 0 {
		return nil, ErrNoCommonPairs
	}
	return results, nil
}

// WriteLeveneCSV persists results sorted by T60 with a header row.
func WriteLeveneCSV(results []LeveneResult, path string) error {
	var sb strings.Builder
	sb.WriteString("T60,Levene_Stat,P_Value\n")
	for _, r := range results {
		fmt.Fprintf(&sb, "%g,%.5f,%.5f\n", r.T60, r.Stat, r.PValue)
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("writing levene results %s: %w", path, err)
	}
	return nil
}

// leveneTwoGroups computes the median-centered Levene W statistic for two
// groups and its p-value under the F(k-1, N-k) null distribution.
func leveneTwoGroups(g1, g2 []float64) (float64, float64, error) {
	if len(g1) < 2 || len(g2) < 2 {
		return 0, 0, fmt.Errorf("levene: need at least 2 samples per group")
	}

	z1 := absDeviationsFromMedian(g1)
	z2 := absDeviationsFromMedian(g2)

	n1 := float64(len(z1))
	n2 := float64(len(z2))
	total := n1 + n2

	mean1 := mean(z1)
	mean2 := mean(z2)
	grand := (n1*mean1 + n2*mean2) / total

	between := n1*(mean1-grand)*(mean1-grand) + n2*(mean2-grand)*(mean2-grand)

	var within float64
	for _, z := range z1 {
		within += (z - mean1) * (z - mean1)
	}
	for _, z := range z2 {
		within += (z - mean2) * (z - mean2)
	}
	if within == 0 {
		return 0, 0, fmt.Errorf("levene: zero within-group deviation")
	}

	const k = 2
	w := ((total - k) / (k - 1)) * between / within

	f := distuv.F{D1: k - 1, D2: total - k}
	p := f.Survival(w)

	return w, p, nil
}

func absDeviationsFromMedian(x []float64) []float64 {
	med := median(x)
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Abs(v - med)
	}
	return out
}

func median(x []float64) float64 {
	sorted := make([]float64, len(x))
	copy(sorted, x)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func mean(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}
