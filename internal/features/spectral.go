package features

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// spectralCentroid returns the magnitude-weighted mean frequency per frame.
func spectralCentroid(mag *mat.Dense, sr float64) []float64 {
	freqs := fftFrequencies(sr)
	_, frames := mag.Dims()
	out := make([]float64, frames)
	col := make([]float64, numBins)
	for t := range out {
		mat.Col(col, t, mag)
		sum, weighted := 0.0, 0.0
		for k, v := range col {
			sum += v
			weighted += freqs[k] * v
		}
		if sum >= tiny {
			weighted /= sum
		}
		out[t] = weighted
	}
	return out
}

// spectralRolloff returns, per frame, the lowest bin frequency below which
// rollPercent of the magnitude is concentrated.
func spectralRolloff(mag *mat.Dense, sr float64) []float64 {
	freqs := fftFrequencies(sr)
	_, frames := mag.Dims()
	out := make([]float64, frames)
	col := make([]float64, numBins)
	cum := make([]float64, numBins)
	for t := range out {
		mat.Col(col, t, mag)
		acc := 0.0
		for k, v := range col {
			acc += v
			cum[k] = acc
		}
		threshold := rollPercent * acc
		out[t] = freqs[numBins-1]
		for k, c := range cum {
			if c >= threshold {
				out[t] = freqs[k]
				break
			}
		}
	}
	return out
}

const zcrThreshold = 1e-10

// zeroCrossingRate returns the fraction of sign changes in each
// fftSize-sample frame. The signal is edge-padded so frames line up with
// the STFT.
func zeroCrossingRate(y []float32) []float64 {
	n := len(y)
	pad := fftSize / 2
	at := func(i int) float64 {
		switch {
		case i < pad:
			i = 0
		case i >= n+pad:
			i = n - 1
		default:
			i -= pad
		}
		v := float64(y[i])
		if math.Abs(v) <= zcrThreshold {
			return 0
		}
		return v
	}

	frames := 1 + n/hopLength
	out := make([]float64, frames)
	for t := range out {
		start := t * hopLength
		crossings := 0
		prev := math.Signbit(at(start))
		for k := 1; k < fftSize; k++ {
			cur := math.Signbit(at(start + k))
			if cur != prev {
				crossings++
			}
			prev = cur
		}
		out[t] = float64(crossings) / fftSize
	}
	return out
}
