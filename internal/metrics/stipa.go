package metrics

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design/pass"
)

const (
	stipaRate = 32000

	// Modulation depth of the STIPA test signal per IEC 60268-16. Measured
	// modulation indices are normalized by this depth.
	stipaTestDepth = 0.55

	// Octave band filter order (per HP/LP half).
	stipaFilterOrder = 4

	// Intensity envelope lowpass cutoff.
	stipaEnvelopeCutoff = 100.0

	// SNR clipping range in dB.
	stipaSNRClip = 15.0
)

// stipaBand pairs an octave-band center frequency with the two modulation
// frequencies probed in that band by the STIPA test signal.
type stipaBand struct {
	center float64
	fm     [2]float64
}

var stipaBands = [7]stipaBand{
	{125, [2]float64{1.6, 8.0}},
	{250, [2]float64{1.0, 5.0}},
	{500, [2]float64{0.63, 3.15}},
	{1000, [2]float64{2.0, 10.0}},
	{2000, [2]float64{1.25, 6.25}},
	{4000, [2]float64{0.8, 4.0}},
	{8000, [2]float64{2.5, 12.5}},
}

// Male-voice octave band weights from IEC 60268-16.
var (
	stipaAlpha = [7]float64{0.085, 0.127, 0.230, 0.233, 0.309, 0.224, 0.173}
	stipaBeta  = [6]float64{0.085, 0.078, 0.065, 0.011, 0.047, 0.095}
)

// STIPA measures the Speech Transmission Index from a recorded STIPA test
// signal. Reference-free.
type STIPA struct {
	policy RatePolicy
}

func NewSTIPA(policy RatePolicy) *STIPA {
	return &STIPA{policy: policy}
}

func (s *STIPA) Name() string         { return "stipa" }
func (s *STIPA) ProcessingRate() int  { return stipaRate }
func (s *STIPA) NeedsReference() bool { return false }

// Score returns the STI in [0,1]. The signal must contain at least one full
// period of the slowest modulation frequency (0.63 Hz), about 1.6 seconds.
func (s *STIPA) Score(_, degraded []float64, sampleRate int) (float64, error) {
	x, err := prepare(s.Name(), degraded, sampleRate, stipaRate, s.policy)
	if err != nil {
		return 0, err
	}

	duration := float64(len(x)) / stipaRate
	if math.Floor(duration*stipaBands[2].fm[0]) < 1 {
		return 0, &MetricInputError{Metric: s.Name(), Reason: "signal too short for modulation analysis"}
	}
	if maxAbs(x) == 0 {
		return 0, &MetricInputError{Metric: s.Name(), Reason: "silent signal"}
	}

	var mti [7]float64
	for k, band := range stipaBands {
		envelope := octaveIntensityEnvelope(x, band.center)

		var tiSum float64
		for _, fm := range band.fm {
			m := modulationIndex(envelope, fm, stipaRate) / stipaTestDepth
			tiSum += transmissionIndex(m)
		}
		mti[k] = tiSum / 2
	}

	sti := 0.0
	for k := 0; k < 7; k++ {
		sti += stipaAlpha[k] * mti[k]
	}
	for k := 0; k < 6; k++ {
		sti -= stipaBeta[k] * math.Sqrt(mti[k]*mti[k+1])
	}

	return checkScore(s.Name(), sti, 0, 1)
}

// octaveIntensityEnvelope bandpasses x around center (Butterworth HP+LP at
// the octave edges), squares it, and smooths the intensity with a 100 Hz
// lowpass.
func octaveIntensityEnvelope(x []float64, center float64) []float64 {
	loEdge := center / math.Sqrt2
	hiEdge := center * math.Sqrt2

	band := make([]float64, len(x))
	copy(band, x)

	hp := biquad.NewChain(pass.ButterworthHP(loEdge, stipaFilterOrder, stipaRate))
	hp.ProcessBlock(band)
	lp := biquad.NewChain(pass.ButterworthLP(hiEdge, stipaFilterOrder, stipaRate))
	lp.ProcessBlock(band)

	for i, v := range band {
		band[i] = v * v
	}
	env := biquad.NewChain(pass.ButterworthLP(stipaEnvelopeCutoff, 2, stipaRate))
	env.ProcessBlock(band)

	return band
}

// modulationIndex measures the intensity modulation depth at fm by
// correlating the envelope with a complex exponential over a whole number
// of modulation periods.
func modulationIndex(envelope []float64, fm float64, sampleRate int) float64 {
	duration := float64(len(envelope)) / float64(sampleRate)
	periods := math.Floor(duration * fm)
	if periods < 1 {
		return 0
	}
	n := int(periods / fm * float64(sampleRate))
	if n > len(envelope) {
		n = len(envelope)
	}

	var re, im, dc float64
	w := 2 * math.Pi * fm / float64(sampleRate)
	for i := 0; i < n; i++ {
		re += envelope[i] * math.Cos(w*float64(i))
		im += envelope[i] * math.Sin(w*float64(i))
		dc += envelope[i]
	}
	if dc <= 0 {
		return 0
	}

	m := 2 * math.Hypot(re, im) / dc
	if m > 1 {
		m = 1
	}
	return m
}

// transmissionIndex converts a modulation index to a transmission index via
// the apparent SNR, clipped to ±15 dB.
func transmissionIndex(m float64) float64 {
	if m >= 1 {
		return 1
	}
	if m <= 0 {
		return 0
	}

	snr := 10 * math.Log10(m/(1-m))
	if snr > stipaSNRClip {
		snr = stipaSNRClip
	}
	if snr < -stipaSNRClip {
		snr = -stipaSNRClip
	}

	return (snr + stipaSNRClip) / (2 * stipaSNRClip)
}
