package features

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

const (
	pitchFmin       = 150.0
	pitchFmax       = 4000.0
	pitchThreshold  = 0.1
	tuningStep      = 0.01
	chromaCenterOct = 5.0
	chromaOctWidth  = 2.0
)

// tiny is the smallest normal float64; norms below it are left unscaled.
const tiny = 0x1p-1022

// chromaMatrix returns [NumChroma x frames] pitch-class energy, each frame
// scaled so its largest bin is 1.
func chromaMatrix(power *mat.Dense, sr float64) *mat.Dense {
	tuning := estimateTuning(power, sr)

	var raw mat.Dense
	raw.Mul(chromaFilterBank(sr, tuning), power)

	_, frames := raw.Dims()
	for t := 0; t < frames; t++ {
		peak := 0.0
		for c := 0; c < NumChroma; c++ {
			peak = math.Max(peak, math.Abs(raw.At(c, t)))
		}
		if peak < tiny {
			continue
		}
		for c := 0; c < NumChroma; c++ {
			raw.Set(c, t, raw.At(c, t)/peak)
		}
	}
	return &raw
}

// hzToOcts converts Hz to octaves above A0, shifted by tuning (fractions of
// a semitone).
func hzToOcts(hz, tuning float64) float64 {
	a440 := 440.0 * math.Pow(2, tuning/NumChroma)
	return math.Log2(hz / (a440 / 16))
}

// chromaFilterBank maps STFT bins to 12 pitch classes with Gaussian bumps,
// weighted toward octave chromaCenterOct and rotated so row 0 is C.
func chromaFilterBank(sr, tuning float64) *mat.Dense {
	const n = fftSize

	frqbins := make([]float64, n)
	for i := 1; i < n; i++ {
		frqbins[i] = NumChroma * hzToOcts(float64(i)*sr/n, tuning)
	}
	frqbins[0] = frqbins[1] - 1.5*NumChroma

	binwidth := make([]float64, n)
	for i := 0; i < n-1; i++ {
		binwidth[i] = math.Max(frqbins[i+1]-frqbins[i], 1)
	}
	binwidth[n-1] = 1

	const half = NumChroma / 2
	wts := make([][]float64, NumChroma)
	for c := range wts {
		wts[c] = make([]float64, n)
		for i := 0; i < n; i++ {
			d := math.Mod(frqbins[i]-float64(c)+half+10*NumChroma, NumChroma)
			if d < 0 {
				d += NumChroma
			}
			d -= half
			x := 2 * d / binwidth[i]
			wts[c][i] = math.Exp(-0.5 * x * x)
		}
	}

	for i := 0; i < n; i++ {
		norm := 0.0
		for c := range wts {
			norm += wts[c][i] * wts[c][i]
		}
		norm = math.Sqrt(norm)
		octW := (frqbins[i]/NumChroma - chromaCenterOct) / chromaOctWidth
		octW = math.Exp(-0.5 * octW * octW)
		for c := range wts {
			if norm >= tiny {
				wts[c][i] /= norm
			}
			wts[c][i] *= octW
		}
	}

	// Rows are A-based until rotated by three semitones.
	bank := mat.NewDense(NumChroma, numBins, nil)
	for c := 0; c < NumChroma; c++ {
		src := wts[(c+3)%NumChroma]
		for k := 0; k < numBins; k++ {
			bank.Set(c, k, src[k])
		}
	}
	return bank
}

// estimateTuning finds the dominant deviation from A440 tuning, in
// fractions of a semitone within [-0.5, 0.5), from parabolically
// interpolated spectral peaks.
func estimateTuning(power *mat.Dense, sr float64) float64 {
	pitches, mags := pickPitches(power, sr)
	if len(pitches) == 0 {
		return 0
	}

	threshold := median(mags)
	var selected []float64
	for i, p := range pitches {
		if mags[i] >= threshold {
			selected = append(selected, p)
		}
	}
	return pitchTuning(selected)
}

// pickPitches returns the frequency and magnitude of every local spectral
// peak in [pitchFmin, pitchFmax) that exceeds pitchThreshold of its frame's
// maximum.
func pickPitches(power *mat.Dense, sr float64) (pitches, mags []float64) {
	bins, frames := power.Dims()
	fmax := math.Min(pitchFmax, sr/2)
	col := make([]float64, bins)
	gated := make([]float64, bins)

	for t := 0; t < frames; t++ {
		mat.Col(col, t, power)
		peak := 0.0
		for _, v := range col {
			peak = math.Max(peak, v)
		}
		ref := pitchThreshold * peak
		for i, v := range col {
			if v > ref {
				gated[i] = v
			} else {
				gated[i] = 0
			}
		}

		for i := 1; i < bins-1; i++ {
			f := float64(i) * sr / fftSize
			if f < pitchFmin || f >= fmax {
				continue
			}
			if !(gated[i] > gated[i-1] && gated[i] >= gated[i+1]) {
				continue
			}
			avg := 0.5 * (col[i+1] - col[i-1])
			curv := 2*col[i] - col[i+1] - col[i-1]
			if math.Abs(curv) < tiny {
				curv++
			}
			shift := avg / curv
			p := (float64(i) + shift) * sr / fftSize
			if p <= 0 {
				continue
			}
			pitches = append(pitches, p)
			mags = append(mags, col[i]+0.5*avg*shift)
		}
	}
	return pitches, mags
}

// pitchTuning histograms each frequency's deviation from the nearest
// semitone and returns the left edge of the fullest bin.
func pitchTuning(freqs []float64) float64 {
	nBins := int(math.Ceil(1 / tuningStep))
	counts := make([]int, nBins)
	seen := 0
	for _, f := range freqs {
		if f <= 0 {
			continue
		}
		r := math.Mod(NumChroma*hzToOcts(f, 0), 1)
		if r < 0 {
			r++
		}
		if r >= 0.5 {
			r--
		}
		b := int(math.Floor((r + 0.5) / tuningStep))
		if b >= nBins {
			b = nBins - 1
		}
		if b < 0 {
			b = 0
		}
		counts[b]++
		seen++
	}
	if seen == 0 {
		return 0
	}

	best := 0
	for i, c := range counts {
		if c > counts[best] {
			best = i
		}
	}
	return -0.5 + float64(best)*tuningStep
}

func median(xs []float64) float64 {
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return 0.5 * (s[n/2-1] + s[n/2])
}
