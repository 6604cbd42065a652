package analysis

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrNoCommonPairs indicates the two score folders share no (t60, rir)
// condition within the requested range.
var ErrNoCommonPairs = errors.New("no common (t60, rir) pairs between the two folders")

// CorrelationReport compares two metric score collections over their
// shared conditions.
type CorrelationReport struct {
	Pairs    int
	Pearson  float64
	Kendall  float64
	KendallP float64
	RMSE     float64
}

// Correlate loads the mean scores of two metric folders, inner-joins them
// on (t60, rir), and reports Kendall's tau (with a normal-approximation
// p-value), Pearson's correlation, and the RMSE of the paired scores.
func Correlate(folderA, folderB string, t60Range *T60Range) (*CorrelationReport, error) {
	a, err := LoadMeanScores(folderA, t60Range)
	if err != nil {
		return nil, err
	}
	b, err := LoadMeanScores(folderB, t60Range)
	if err != nil {
		return nil, err
	}

	x, y, _ := joinScores(a, b)
	if len(x) < 2 {
		return nil, ErrNoCommonPairs
	}

	tau := stat.Kendall(x, y, nil)

	// Normal approximation of the tau null distribution.
	n := float64(len(x))
	z := 3 * tau * math.Sqrt(n*(n-1)) / math.Sqrt(2*(2*n+5))
	p := 2 * distuv.UnitNormal.Survival(math.Abs(z))
	if p > 1 {
		p = 1
	}

	var sqErr float64
	for i := range x {
		d := x[i] - y[i]
		sqErr += d * d
	}

	return &CorrelationReport{
		Pairs:    len(x),
		Pearson:  stat.Correlation(x, y, nil),
		Kendall:  tau,
		KendallP: p,
		RMSE:     math.Sqrt(sqErr / n),
	}, nil
}
