// Package metrics implements objective speech-intelligibility engines
// (STIPA, ESTOI, SIIB) behind a common scoring contract.
package metrics

import (
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/fft"
	"github.com/speechmetrics/intelliscore/internal/audio"
)

// RatePolicy controls what an engine does when the input sample rate
// differs from its processing rate.
type RatePolicy int

const (
	// ResampleToRate converts the input deterministically before scoring.
	ResampleToRate RatePolicy = iota
	// StrictRate rejects mismatched input with SampleRateError.
	StrictRate
)

// Engine scores one intelligibility metric. Reference-based engines
// (ESTOI, SIIB) require a time-aligned clean signal; STIPA passes nil.
type Engine interface {
	Name() string
	ProcessingRate() int
	NeedsReference() bool
	Score(reference, degraded []float64, sampleRate int) (float64, error)
}

// MetricInputError reports a violated engine precondition, such as an empty
// or silent signal or mismatched reference/degraded lengths.
type MetricInputError struct {
	Metric string
	Reason string
}

func (e *MetricInputError) Error() string {
	return fmt.Sprintf("%s: invalid input: %s", e.Metric, e.Reason)
}

// SampleRateError reports input at a rate the engine does not process,
// raised only under the StrictRate policy.
type SampleRateError struct {
	Metric string
	Got    int
	Want   int
}

func (e *SampleRateError) Error() string {
	return fmt.Sprintf("%s: sample rate %d Hz, engine requires %d Hz", e.Metric, e.Got, e.Want)
}

// ForName returns the engine registered under name ("stipa", "estoi",
// "siib").
func ForName(name string, policy RatePolicy) (Engine, error) {
	switch name {
	case "stipa":
		return NewSTIPA(policy), nil
	case "estoi":
		return NewESTOI(policy), nil
	case "siib":
		return NewSIIB(policy), nil
	default:
		return nil, fmt.Errorf("unknown metric %q", name)
	}
}

// AlignReference pads the reference with trailing zeros or truncates it so
// both signals have the degraded signal's length. This is an explicit
// pipeline step; the engines themselves reject mismatched lengths.
func AlignReference(reference, degraded []float64) []float64 {
	switch {
	case len(reference) == len(degraded):
		return reference
	case len(reference) > len(degraded):
		return reference[:len(degraded)]
	default:
		out := make([]float64, len(degraded))
		copy(out, reference)
		return out
	}
}

// prepare validates the signal and brings it to the engine's processing
// rate according to the configured policy.
func prepare(metric string, signal []float64, sampleRate, want int, policy RatePolicy) ([]float64, error) {
	if len(signal) == 0 {
		return nil, &MetricInputError{Metric: metric, Reason: "empty signal"}
	}
	if sampleRate <= 0 {
		return nil, &MetricInputError{Metric: metric, Reason: "sample rate must be positive"}
	}
	if sampleRate == want {
		return signal, nil
	}
	if policy == StrictRate {
		return nil, &SampleRateError{Metric: metric, Got: sampleRate, Want: want}
	}

	out, err := audio.Resample(signal, sampleRate, want)
	if err != nil {
		return nil, &MetricInputError{Metric: metric, Reason: err.Error()}
	}
	return out, nil
}

// checkScore enforces the finite-score guarantee: NaN or Inf is an error,
// never a returned value. Values slightly outside [lo,hi] from numeric
// round-off are clamped.
func checkScore(metric string, v, lo, hi float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s: non-finite score", metric)
	}
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return v, nil
}

// stftMagnitudes computes the one-sided magnitude spectrogram of x with the
// given analysis window and hop. Each row holds len(window)/2+1 bins.
func stftMagnitudes(x, window []float64, hop int) [][]float64 {
	n := len(window)
	if len(x) < n || hop <= 0 {
		return nil
	}

	half := n/2 + 1
	frame := make([]float64, n)
	var frames [][]float64

	for start := 0; start+n <= len(x); start += hop {
		for i := 0; i < n; i++ {
			frame[i] = x[start+i] * window[i]
		}
		spec := fft.FFTReal(frame)
		mags := make([]float64, half)
		for k := 0; k < half; k++ {
			re := real(spec[k])
			im := imag(spec[k])
			mags[k] = math.Hypot(re, im)
		}
		frames = append(frames, mags)
	}

	return frames
}

// thirdOctaveBands returns [lo,hi) FFT-bin ranges for third-octave bands
// with centers firstCenter*2^(j/3), for an n-point FFT at sampleRate. Bands
// whose upper edge exceeds Nyquist are dropped.
func thirdOctaveBands(firstCenter float64, numBands, n, sampleRate int) [][2]int {
	binWidth := float64(sampleRate) / float64(n)
	nyquistBin := n / 2

	var bands [][2]int
	for j := 0; j < numBands; j++ {
		center := firstCenter * math.Pow(2, float64(j)/3)
		loHz := center / math.Pow(2, 1.0/6)
		hiHz := center * math.Pow(2, 1.0/6)

		lo := int(math.Round(loHz / binWidth))
		hi := int(math.Round(hiHz / binWidth))
		if hi > nyquistBin {
			break
		}
		if hi <= lo {
			hi = lo + 1
		}
		bands = append(bands, [2]int{lo, hi})
	}

	return bands
}

// bandEnergies folds a magnitude spectrogram into per-band envelope values,
// one row per band, one column per frame.
func bandEnergies(frames [][]float64, bands [][2]int) [][]float64 {
	env := make([][]float64, len(bands))
	for j := range env {
		env[j] = make([]float64, len(frames))
	}

	for m, mags := range frames {
		for j, band := range bands {
			var sum float64
			for k := band[0]; k < band[1] && k < len(mags); k++ {
				sum += mags[k] * mags[k]
			}
			env[j][m] = math.Sqrt(sum)
		}
	}

	return env
}

// correlation returns the Pearson correlation of x and y, or 0 when either
// side has no variance.
func correlation(x, y []float64) float64 {
	n := len(x)
	if n == 0 || n != len(y) {
		return 0
	}

	var mx, my float64
	for i := 0; i < n; i++ {
		mx += x[i]
		my += y[i]
	}
	mx /= float64(n)
	my /= float64(n)

	var sxy, sxx, syy float64
	for i := 0; i < n; i++ {
		dx := x[i] - mx
		dy := y[i] - my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0
	}

	return sxy / math.Sqrt(sxx*syy)
}

func maxAbs(x []float64) float64 {
	var m float64
	for _, v := range x {
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	return m
}
