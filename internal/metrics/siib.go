package metrics

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/window"
)

const (
	siibRate    = 16000
	siibWinLen  = 512
	siibHop     = 256
	siibNumBand = 22
	siibFirstCF = 150.0

	// Per-band correlation cap: bounds the per-channel capacity so that a
	// perfect channel yields a finite information rate.
	siibRhoCap = 0.99

	// Short recordings are tiled so the envelope statistics have enough
	// support.
	siibTileShort    = 10
	siibTileLong     = 5
	siibShortSeconds = 5.0
)

// SIIB estimates speech intelligibility in bits per second using the
// Gaussian channel capacity of third-octave log-envelope correlations
// between clean and degraded signals. Reference-based.
type SIIB struct {
	policy RatePolicy
}

func NewSIIB(policy RatePolicy) *SIIB {
	return &SIIB{policy: policy}
}

func (s *SIIB) Name() string         { return "siib" }
func (s *SIIB) ProcessingRate() int  { return siibRate }
func (s *SIIB) NeedsReference() bool { return true }

// Score returns a non-negative information rate in bits/s. Reference and
// degraded signals must have equal length; alignment is the caller's
// responsibility.
func (s *SIIB) Score(reference, degraded []float64, sampleRate int) (float64, error) {
	if len(reference) == 0 {
		return 0, &MetricInputError{Metric: s.Name(), Reason: "missing reference signal"}
	}
	if len(reference) != len(degraded) {
		return 0, &MetricInputError{Metric: s.Name(), Reason: "reference/degraded length mismatch"}
	}

	ref, err := prepare(s.Name(), reference, sampleRate, siibRate, s.policy)
	if err != nil {
		return 0, err
	}
	deg, err := prepare(s.Name(), degraded, sampleRate, siibRate, s.policy)
	if err != nil {
		return 0, err
	}

	ref, err = s.preprocess(ref)
	if err != nil {
		return 0, err
	}
	deg, err = s.preprocess(deg)
	if err != nil {
		return 0, err
	}

	win, err := window.Hamming(siibWinLen)
	if err != nil {
		return 0, &MetricInputError{Metric: s.Name(), Reason: err.Error()}
	}

	refFrames := stftMagnitudes(ref, win, siibHop)
	degFrames := stftMagnitudes(deg, win, siibHop)
	if len(refFrames) < 2 {
		return 0, &MetricInputError{Metric: s.Name(), Reason: "signal too short for envelope analysis"}
	}

	bands := thirdOctaveBands(siibFirstCF, siibNumBand, siibWinLen, siibRate)
	refEnv := logEnvelopes(bandEnergies(refFrames, bands))
	degEnv := logEnvelopes(bandEnergies(degFrames, bands))

	// Gaussian capacity: each band contributes -1/2 log2(1-rho^2) bits per
	// frame, summed across bands and scaled to bits per second.
	var bitsPerFrame float64
	for j := range refEnv {
		rho := math.Abs(correlation(refEnv[j], degEnv[j]))
		if rho > siibRhoCap {
			rho = siibRhoCap
		}
		bitsPerFrame += -0.5 * math.Log2(1-rho*rho)
	}

	frameRate := float64(siibRate) / float64(siibHop)
	return checkScore(s.Name(), bitsPerFrame*frameRate, 0, math.MaxFloat64)
}

// preprocess normalizes the signal to unit peak and tiles it so short
// inputs still carry enough envelope frames.
func (s *SIIB) preprocess(x []float64) ([]float64, error) {
	peak := maxAbs(x)
	if peak == 0 {
		return nil, &MetricInputError{Metric: s.Name(), Reason: "silent signal"}
	}

	norm := make([]float64, len(x))
	for i, v := range x {
		norm[i] = v / peak
	}

	repeat := siibTileLong
	if float64(len(norm))/siibRate <= siibShortSeconds {
		repeat = siibTileShort
	}

	out := make([]float64, 0, len(norm)*repeat)
	for i := 0; i < repeat; i++ {
		out = append(out, norm...)
	}
	return out, nil
}

func logEnvelopes(env [][]float64) [][]float64 {
	for j := range env {
		for m := range env[j] {
			env[j][m] = math.Log(env[j][m] + 1e-12)
		}
	}
	return env
}
