package features

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// LabelColumn is the target column of the training feature table.
const LabelColumn = "label"

// Schema is the ordered feature columns a trained classifier expects.
type Schema struct {
	Columns []string
}

// Len returns the expected feature count.
func (s Schema) Len() int { return len(s.Columns) }

// ReadSchema reads the header row of a CSV feature table. The label column
// is dropped; the remaining columns, in order, are the schema.
func ReadSchema(r io.Reader) (Schema, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Schema{}, errors.New("schema: empty feature table")
	}
	if err != nil {
		return Schema{}, fmt.Errorf("schema: read header: %w", err)
	}

	cols := make([]string, 0, len(header))
	for _, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == LabelColumn {
			continue
		}
		cols = append(cols, h)
	}
	if len(cols) == 0 {
		return Schema{}, errors.New("schema: no feature columns in header")
	}
	return Schema{Columns: cols}, nil
}

// Reconcile returns v resized to n values. Equal lengths pass through
// untouched; otherwise the result is zero-filled and the first min(len(v), n)
// values are copied. A size mismatch means the extractor and the trained
// artifact disagree, and every occurrence is logged as a warning.
func Reconcile(v Vector, n int) Vector {
	if len(v) == n {
		return v
	}
	logrus.WithFields(logrus.Fields{
		"component": "schema",
		"extracted": len(v),
		"expected":  n,
	}).Warn("feature vector length does not match trained schema; padding/truncating")

	out := make(Vector, n)
	copy(out, v)
	return out
}

// Spec describes the extraction procedure. It is written next to every
// offline feature table so a trained artifact can be traced back to the
// exact procedure that produced its inputs.
type Spec struct {
	Version     int      `yaml:"version"`
	SampleRate  int      `yaml:"sample_rate"`
	MaxSeconds  int      `yaml:"max_seconds"`
	FFTSize     int      `yaml:"n_fft"`
	HopLength   int      `yaml:"hop_length"`
	NumMels     int      `yaml:"n_mels"`
	NumMFCC     int      `yaml:"n_mfcc"`
	NumChroma   int      `yaml:"n_chroma"`
	RollPercent float64  `yaml:"roll_percent"`
	Columns     []string `yaml:"columns"`
}

// CurrentSpec returns the Spec of this build's Extract.
func CurrentSpec(sampleRate, maxSeconds int) Spec {
	return Spec{
		Version:     SchemaVersion,
		SampleRate:  sampleRate,
		MaxSeconds:  maxSeconds,
		FFTSize:     fftSize,
		HopLength:   hopLength,
		NumMels:     numMels,
		NumMFCC:     NumMFCC,
		NumChroma:   NumChroma,
		RollPercent: rollPercent,
		Columns:     Columns(),
	}
}

// WriteYAML encodes s as YAML.
func (s Spec) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return err
	}
	return enc.Close()
}

// ReadSpec decodes a YAML Spec.
func ReadSpec(r io.Reader) (Spec, error) {
	var s Spec
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		return Spec{}, fmt.Errorf("spec: %w", err)
	}
	return s, nil
}
