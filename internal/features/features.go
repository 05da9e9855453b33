// Package features computes the fixed acoustic descriptor vector used for
// genre classification.
//
// The layout is, in order:
//
//	mfcc_mean_0 .. mfcc_mean_39      40 mean MFCCs
//	chroma_mean_0 .. chroma_mean_11  12 mean chroma bins (C first)
//	spectral_centroid_mean
//	spectral_rolloff_mean
//	zcr_mean
//
// Every value is a mean over all analysis frames of the waveform. The same
// function feeds the offline feature table and online inference, so any
// change to framing, order or reduction must bump SchemaVersion.
package features

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/satindergrewal/genreid/internal/audio"
)

// SchemaVersion identifies the extraction procedure. Trained artifacts
// record the version they were fitted against.
const SchemaVersion = 1

const (
	NumMFCC   = 40
	NumChroma = 12
	Size      = NumMFCC + NumChroma + 3 // 55

	fftSize     = 2048
	hopLength   = 512
	numBins     = fftSize/2 + 1
	numMels     = 128
	rollPercent = 0.85
	topDB       = 80.0
	amin        = 1e-10
)

// Vector is one clip's feature vector.
type Vector []float32

// Columns returns the feature table column names in vector order.
func Columns() []string {
	cols := make([]string, 0, Size)
	for i := 0; i < NumMFCC; i++ {
		cols = append(cols, fmt.Sprintf("mfcc_mean_%d", i))
	}
	for i := 0; i < NumChroma; i++ {
		cols = append(cols, fmt.Sprintf("chroma_mean_%d", i))
	}
	return append(cols, "spectral_centroid_mean", "spectral_rolloff_mean", "zcr_mean")
}

// Extract computes the feature vector of w. The five descriptors are
// independent reads of the same spectrogram and run concurrently.
func Extract(w audio.Waveform) (Vector, error) {
	if len(w.Samples) == 0 {
		return nil, fmt.Errorf("features: empty waveform")
	}
	if w.SampleRate <= 0 {
		return nil, fmt.Errorf("features: invalid sample rate %d", w.SampleRate)
	}
	sr := float64(w.SampleRate)
	spec := stft(w.Samples)

	var (
		mfcc, chroma      []float64
		centroid, rolloff float64
		zcr               float64
		wg                sync.WaitGroup
	)
	wg.Add(5)
	go func() { defer wg.Done(); mfcc = rowMeans(mfccMatrix(spec.power, sr)) }()
	go func() { defer wg.Done(); chroma = rowMeans(chromaMatrix(spec.power, sr)) }()
	go func() { defer wg.Done(); centroid = stat.Mean(spectralCentroid(spec.mag, sr), nil) }()
	go func() { defer wg.Done(); rolloff = stat.Mean(spectralRolloff(spec.mag, sr), nil) }()
	go func() { defer wg.Done(); zcr = stat.Mean(zeroCrossingRate(w.Samples), nil) }()
	wg.Wait()

	v := make(Vector, 0, Size)
	for _, x := range mfcc {
		v = append(v, float32(x))
	}
	for _, x := range chroma {
		v = append(v, float32(x))
	}
	return append(v, float32(centroid), float32(rolloff), float32(zcr)), nil
}

// rowMeans averages each row of m over the time axis.
func rowMeans(m *mat.Dense) []float64 {
	r, _ := m.Dims()
	out := make([]float64, r)
	for i := range out {
		out[i] = stat.Mean(mat.Row(nil, i, m), nil)
	}
	return out
}
