package features

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"
)

// spectrogram holds the [numBins x frames] power and magnitude of a
// centered short-time Fourier transform.
type spectrogram struct {
	power  *mat.Dense
	mag    *mat.Dense
	frames int
}

// stft frames y with a periodic Hann window, zero-padding fftSize/2 samples
// on each side so frame t is centered on sample t*hopLength.
func stft(y []float32) spectrogram {
	n := len(y)
	frames := 1 + n/hopLength
	pad := fftSize / 2

	win := hannWindow(fftSize)
	fft := fourier.NewFFT(fftSize)
	power := mat.NewDense(numBins, frames, nil)
	mag := mat.NewDense(numBins, frames, nil)

	buf := make([]float64, fftSize)
	coeffs := make([]complex128, numBins)
	for t := 0; t < frames; t++ {
		start := t*hopLength - pad
		for k := range buf {
			i := start + k
			if i >= 0 && i < n {
				buf[k] = float64(y[i]) * win[k]
			} else {
				buf[k] = 0
			}
		}
		coeffs = fft.Coefficients(coeffs, buf)
		for b, c := range coeffs {
			re, im := real(c), imag(c)
			p := re*re + im*im
			power.Set(b, t, p)
			mag.Set(b, t, math.Sqrt(p))
		}
	}
	return spectrogram{power: power, mag: mag, frames: frames}
}

// hannWindow is the periodic (DFT-even) Hann window.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// fftFrequencies returns the center frequency of each STFT bin.
func fftFrequencies(sr float64) []float64 {
	f := make([]float64, numBins)
	for k := range f {
		f[k] = float64(k) * sr / fftSize
	}
	return f
}
