package metrics

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/window"
)

const (
	estoiRate    = 10000
	estoiWinLen  = 512
	estoiHop     = 256
	estoiSegLen  = 30 // analysis segment length in frames (~384 ms)
	estoiNumBand = 15
	estoiFirstCF = 150.0

	// Energy-VAD parameters: 256-sample frames, 50% overlap, frames more
	// than 40 dB below the loudest reference frame are discarded.
	vadFrameLen = 256
	vadHop      = 128
	vadDynRange = 40.0
)

// ESTOI implements the extended short-time objective intelligibility
// measure (Jensen & Taal, 2016). Reference-based.
type ESTOI struct {
	policy RatePolicy
}

func NewESTOI(policy RatePolicy) *ESTOI {
	return &ESTOI{policy: policy}
}

func (e *ESTOI) Name() string         { return "estoi" }
func (e *ESTOI) ProcessingRate() int  { return estoiRate }
func (e *ESTOI) NeedsReference() bool { return true }

// Score returns the ESTOI value in [-1,1]. Reference and degraded signals
// must have equal length; alignment is the caller's responsibility.
func (e *ESTOI) Score(reference, degraded []float64, sampleRate int) (float64, error) {
	if len(reference) == 0 {
		return 0, &MetricInputError{Metric: e.Name(), Reason: "missing reference signal"}
	}
	if len(reference) != len(degraded) {
		return 0, &MetricInputError{Metric: e.Name(), Reason: "reference/degraded length mismatch"}
	}

	ref, err := prepare(e.Name(), reference, sampleRate, estoiRate, e.policy)
	if err != nil {
		return 0, err
	}
	deg, err := prepare(e.Name(), degraded, sampleRate, estoiRate, e.policy)
	if err != nil {
		return 0, err
	}
	if maxAbs(ref) == 0 {
		return 0, &MetricInputError{Metric: e.Name(), Reason: "silent reference"}
	}

	ref, deg = removeSilentFrames(ref, deg, vadFrameLen, vadHop, vadDynRange)

	win, err := window.Hann(estoiWinLen)
	if err != nil {
		return 0, &MetricInputError{Metric: e.Name(), Reason: err.Error()}
	}

	refFrames := stftMagnitudes(ref, win, estoiHop)
	degFrames := stftMagnitudes(deg, win, estoiHop)
	if len(refFrames) < estoiSegLen {
		return 0, &MetricInputError{Metric: e.Name(), Reason: "too little active speech for analysis"}
	}

	bands := thirdOctaveBands(estoiFirstCF, estoiNumBand, estoiWinLen, estoiRate)
	refEnv := bandEnergies(refFrames, bands)
	degEnv := bandEnergies(degFrames, bands)

	numSegs := len(refFrames) - estoiSegLen + 1
	var total float64
	for m := 0; m < numSegs; m++ {
		total += segmentCorrelation(refEnv, degEnv, m, estoiSegLen)
	}

	return checkScore(e.Name(), total/float64(numSegs), -1, 1)
}

// segmentCorrelation computes the intermediate intelligibility of one
// N-frame segment: both band-envelope matrices are row- then
// column-normalized and correlated column by column.
func segmentCorrelation(refEnv, degEnv [][]float64, start, n int) float64 {
	j := len(refEnv)

	x := extractSegment(refEnv, start, n)
	y := extractSegment(degEnv, start, n)

	normalizeRows(x)
	normalizeRows(y)
	normalizeCols(x)
	normalizeCols(y)

	var sum float64
	for r := 0; r < j; r++ {
		for c := 0; c < n; c++ {
			sum += x[r][c] * y[r][c]
		}
	}

	return sum / float64(n)
}

func extractSegment(env [][]float64, start, n int) [][]float64 {
	out := make([][]float64, len(env))
	for r := range env {
		out[r] = make([]float64, n)
		copy(out[r], env[r][start:start+n])
	}
	return out
}

func normalizeRows(m [][]float64) {
	for r := range m {
		zeroMeanUnitNorm(m[r])
	}
}

func normalizeCols(m [][]float64) {
	if len(m) == 0 {
		return
	}
	col := make([]float64, len(m))
	for c := range m[0] {
		for r := range m {
			col[r] = m[r][c]
		}
		zeroMeanUnitNorm(col)
		for r := range m {
			m[r][c] = col[r]
		}
	}
}

func zeroMeanUnitNorm(v []float64) {
	var mean float64
	for _, x := range v {
		mean += x
	}
	mean /= float64(len(v))

	var norm float64
	for i := range v {
		v[i] -= mean
		norm += v[i] * v[i]
	}
	if norm == 0 {
		return
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] /= norm
	}
}

// removeSilentFrames drops frames whose reference energy falls more than
// dynRange dB below the loudest frame, reconstructing both signals with
// Hann-windowed overlap-add. The mask is derived from the reference and
// applied to both signals to keep them aligned.
func removeSilentFrames(ref, deg []float64, frameLen, hop int, dynRange float64) ([]float64, []float64) {
	if len(ref) < frameLen {
		return ref, deg
	}

	win, err := window.Hann(frameLen)
	if err != nil {
		return ref, deg
	}

	numFrames := (len(ref)-frameLen)/hop + 1
	energies := make([]float64, numFrames)
	maxEnergy := math.Inf(-1)
	for i := 0; i < numFrames; i++ {
		var sum float64
		for k := 0; k < frameLen; k++ {
			v := ref[i*hop+k] * win[k]
			sum += v * v
		}
		energies[i] = 10 * math.Log10(sum+1e-20)
		if energies[i] > maxEnergy {
			maxEnergy = energies[i]
		}
	}

	var kept int
	for i := 0; i < numFrames; i++ {
		if energies[i] > maxEnergy-dynRange {
			kept++
		}
	}
	if kept == numFrames {
		return ref, deg
	}

	outLen := (kept-1)*hop + frameLen
	if kept == 0 {
		return nil, nil
	}
	outRef := make([]float64, outLen)
	outDeg := make([]float64, outLen)

	pos := 0
	for i := 0; i < numFrames; i++ {
		if energies[i] <= maxEnergy-dynRange {
			continue
		}
		for k := 0; k < frameLen; k++ {
			outRef[pos*hop+k] += ref[i*hop+k] * win[k]
			outDeg[pos*hop+k] += deg[i*hop+k] * win[k]
		}
		pos++
	}

	return outRef, outDeg
}
