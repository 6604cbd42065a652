package metrics

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

// speechLikeSignal produces amplitude-modulated noise: broadband like
// speech, with slow envelope movement so the band envelopes carry
// structure.
func speechLikeSignal(n, sampleRate int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		env := 0.5 + 0.4*math.Sin(2*math.Pi*4*float64(i)/float64(sampleRate))
		out[i] = env * rng.NormFloat64() * 0.2
	}
	return out
}

func addNoise(x []float64, level float64, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = v + rng.NormFloat64()*level
	}
	return out
}

func TestESTOIIdenticalSignals(t *testing.T) {
	engine := NewESTOI(ResampleToRate)

	ref := speechLikeSignal(2*estoiRate, estoiRate, 1)
	score, err := engine.Score(ref, ref, estoiRate)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if score < 0.99 {
		t.Errorf("identical signals scored %.4f, want near 1", score)
	}
}

func TestESTOIDegradationLowersScore(t *testing.T) {
	engine := NewESTOI(ResampleToRate)
	ref := speechLikeSignal(2*estoiRate, estoiRate, 1)

	clean, err := engine.Score(ref, ref, estoiRate)
	if err != nil {
		t.Fatalf("clean Score: %v", err)
	}

	noisy, err := engine.Score(ref, addNoise(ref, 0.3, 2), estoiRate)
	if err != nil {
		t.Fatalf("noisy Score: %v", err)
	}

	if noisy >= clean {
		t.Errorf("noisy scored %.4f, clean %.4f; want noisy < clean", noisy, clean)
	}
	if noisy < -1 || noisy > 1 {
		t.Errorf("noisy score %.4f outside [-1,1]", noisy)
	}
}

func TestESTOIMoreNoiseScoresLower(t *testing.T) {
	engine := NewESTOI(ResampleToRate)
	ref := speechLikeSignal(2*estoiRate, estoiRate, 1)

	mild, err := engine.Score(ref, addNoise(ref, 0.05, 2), estoiRate)
	if err != nil {
		t.Fatalf("mild Score: %v", err)
	}
	severe, err := engine.Score(ref, addNoise(ref, 0.5, 3), estoiRate)
	if err != nil {
		t.Fatalf("severe Score: %v", err)
	}

	if severe >= mild {
		t.Errorf("severe noise scored %.4f, mild %.4f; want severe < mild", severe, mild)
	}
}

func TestESTOIInputValidation(t *testing.T) {
	engine := NewESTOI(ResampleToRate)
	ref := speechLikeSignal(2*estoiRate, estoiRate, 1)

	for _, tc := range []struct {
		name      string
		reference []float64
		degraded  []float64
	}{
		{"missing reference", nil, ref},
		{"length mismatch", ref[:len(ref)-100], ref},
		{"silent reference", make([]float64, len(ref)), ref[:len(ref)]},
		{"too short", ref[:500], ref[:500]},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.Score(tc.reference, tc.degraded, estoiRate)
			var inputErr *MetricInputError
			if !errors.As(err, &inputErr) {
				t.Fatalf("got %v, want MetricInputError", err)
			}
		})
	}
}

func TestRemoveSilentFramesDropsSilence(t *testing.T) {
	// 1 s of speech-like signal with a long silent gap in the middle.
	active := speechLikeSignal(estoiRate, estoiRate, 4)
	ref := make([]float64, 0, 2*estoiRate)
	ref = append(ref, active[:estoiRate/2]...)
	ref = append(ref, make([]float64, estoiRate)...)
	ref = append(ref, active[estoiRate/2:]...)
	deg := make([]float64, len(ref))
	copy(deg, ref)

	outRef, outDeg := removeSilentFrames(ref, deg, vadFrameLen, vadHop, vadDynRange)

	if len(outRef) >= len(ref) {
		t.Errorf("VAD kept %d of %d samples, want the silent gap removed", len(outRef), len(ref))
	}
	if len(outRef) != len(outDeg) {
		t.Errorf("VAD output lengths differ: %d vs %d", len(outRef), len(outDeg))
	}
	if len(outRef) < estoiRate/2 {
		t.Errorf("VAD kept only %d samples, removed active speech", len(outRef))
	}
}
