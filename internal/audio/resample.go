package audio

import (
	"fmt"
	"math"

	resampling "github.com/tphakala/go-audio-resampling"
)

// resampledLen is the number of samples n input samples occupy at the
// target rate.
func resampledLen(n, from, to int) int {
	return int(math.Round(float64(n) * float64(to) / float64(from)))
}

// Resample converts mono samples from one rate to another with the
// high-quality preset. Equal rates return the input unchanged.
func Resample(samples []float32, from, to int) ([]float32, error) {
	if from == to || len(samples) == 0 {
		return samples, nil
	}
	if from <= 0 || to <= 0 {
		return nil, fmt.Errorf("resample: invalid rates %d -> %d", from, to)
	}

	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}

	in := make([]float64, len(samples))
	for i, s := range samples {
		in[i] = float64(s)
	}
	out, err := r.Process(in)
	if err != nil {
		return nil, fmt.Errorf("resample error: %w", err)
	}
	tail, err := r.Flush()
	if err != nil {
		return nil, fmt.Errorf("resample flush: %w", err)
	}
	out = append(out, tail...)
	if n := resampledLen(len(samples), from, to); len(out) > n {
		out = out[:n]
	}

	res := make([]float32, len(out))
	for i, s := range out {
		switch {
		case s > 1:
			s = 1
		case s < -1:
			s = -1
		}
		res[i] = float32(s)
	}
	return res, nil
}
