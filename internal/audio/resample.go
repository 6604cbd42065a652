package audio

import (
	"fmt"

	"github.com/cwbudde/algo-dsp/dsp/resample"
)

// Resample converts signal from inRate to outRate using a polyphase FIR
// resampler. The conversion is deterministic: the same input always yields
// the same output. Returns the input unchanged when the rates already match.
func Resample(signal []float64, inRate, outRate int) ([]float64, error) {
	if inRate == outRate {
		return signal, nil
	}
	if inRate <= 0 || outRate <= 0 {
		return nil, fmt.Errorf("resample: invalid rates %d -> %d", inRate, outRate)
	}

	r, err := resample.NewForRates(float64(inRate), float64(outRate))
	if err != nil {
		return nil, fmt.Errorf("resample %d -> %d Hz: %w", inRate, outRate, err)
	}

	want := r.PredictOutputLen(len(signal))
	out := r.Process(signal)

	// Flush the FIR tail with zero input until the predicted length is
	// reached. The guard bounds the loop if the predictor over-estimates.
	zeros := make([]float64, 512)
	for guard := 0; len(out) < want && guard < 64; guard++ {
		out = append(out, r.Process(zeros)...)
	}
	if len(out) > want {
		out = out[:want]
	}

	return out, nil
}
