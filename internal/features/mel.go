package features

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Slaney mel scale: linear below 1 kHz, logarithmic above.
const (
	melLinearStep = 200.0 / 3
	melMinLogHz   = 1000.0
	melMinLog     = melMinLogHz / melLinearStep
)

var melLogStep = math.Log(6.4) / 27.0

func hzToMel(hz float64) float64 {
	if hz < melMinLogHz {
		return hz / melLinearStep
	}
	return melMinLog + math.Log(hz/melMinLogHz)/melLogStep
}

func melToHz(mel float64) float64 {
	if mel < melMinLog {
		return mel * melLinearStep
	}
	return melMinLogHz * math.Exp(melLogStep*(mel-melMinLog))
}

// melFilterBank builds [nMels x numBins] triangular filters between fmin
// and fmax, each scaled to unit area (Slaney normalization).
func melFilterBank(sr float64, nMels int, fmin, fmax float64) *mat.Dense {
	lo, hi := hzToMel(fmin), hzToMel(fmax)
	melF := make([]float64, nMels+2)
	for i := range melF {
		melF[i] = melToHz(lo + float64(i)*(hi-lo)/float64(nMels+1))
	}
	freqs := fftFrequencies(sr)

	bank := mat.NewDense(nMels, numBins, nil)
	for m := 0; m < nMels; m++ {
		left, center, right := melF[m], melF[m+1], melF[m+2]
		enorm := 2.0 / (right - left)
		for k, f := range freqs {
			lower := (f - left) / (center - left)
			upper := (right - f) / (right - center)
			w := math.Max(0, math.Min(lower, upper))
			if w > 0 {
				bank.Set(m, k, w*enorm)
			}
		}
	}
	return bank
}

// dctMatrix is the orthonormal DCT-II basis truncated to nOut rows.
func dctMatrix(nOut, nIn int) *mat.Dense {
	d := mat.NewDense(nOut, nIn, nil)
	for k := 0; k < nOut; k++ {
		scale := math.Sqrt(2.0 / float64(nIn))
		if k == 0 {
			scale = math.Sqrt(1.0 / float64(nIn))
		}
		for n := 0; n < nIn; n++ {
			d.Set(k, n, scale*math.Cos(math.Pi*float64(k)*float64(2*n+1)/float64(2*nIn)))
		}
	}
	return d
}

// mfccMatrix returns [NumMFCC x frames] cepstral coefficients of the log
// mel power spectrogram (dB, ref 1.0, clipped to topDB below the peak).
func mfccMatrix(power *mat.Dense, sr float64) *mat.Dense {
	var melSpec mat.Dense
	melSpec.Mul(melFilterBank(sr, numMels, 0, sr/2), power)

	db := mat.DenseCopyOf(&melSpec)
	raw := db.RawMatrix().Data
	peak := math.Inf(-1)
	for i, v := range raw {
		raw[i] = 10 * math.Log10(math.Max(amin, v))
		peak = math.Max(peak, raw[i])
	}
	floor := peak - topDB
	for i, v := range raw {
		raw[i] = math.Max(v, floor)
	}

	var mfcc mat.Dense
	mfcc.Mul(dctMatrix(NumMFCC, numMels), db)
	return &mfcc
}
