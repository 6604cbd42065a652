// Package audio decodes PCM WAV recordings into mono float64 sample
// sequences and converts them between sample rates.
package audio

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

// DecodeError reports an unreadable or corrupt audio file. A decode failure
// is contained by the scoring run: the file is logged as Failed and the run
// continues.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ReadWavMono reads a PCM WAV file and returns mono samples normalized to
// [-1,1] together with the file's native sample rate. Multi-channel input
// is folded to mono by averaging the channels.
func ReadWavMono(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, &DecodeError{Path: path, Err: err}
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, &DecodeError{Path: path, Err: errors.New("not a valid WAV file")}
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, &DecodeError{Path: path, Err: err}
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, 0, &DecodeError{Path: path, Err: errors.New("no PCM data")}
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		return nil, 0, &DecodeError{Path: path, Err: errors.New("invalid channel count")}
	}

	bitDepth := int(dec.BitDepth)
	if bitDepth == 0 {
		bitDepth = 16
	}
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))

	frames := len(buf.Data) / channels
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c]) * scale
		}
		out[i] = sum / float64(channels)
	}

	rate := buf.Format.SampleRate
	if rate <= 0 {
		return nil, 0, &DecodeError{Path: path, Err: errors.New("invalid sample rate")}
	}

	return out, rate, nil
}
