// Package model loads a trained genre classifier and evaluates it.
//
// The classifier is a standardizing scaler followed by a one-vs-one
// support vector classifier with libsvm semantics. It is exported by the
// training pipeline as a msgpack Artifact.
package model

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Kernel names as written by the exporter.
const (
	KernelRBF     = "rbf"
	KernelLinear  = "linear"
	KernelPoly    = "poly"
	KernelSigmoid = "sigmoid"
)

// Artifact is the serialized classifier pipeline.
type Artifact struct {
	// SchemaVersion is the features.SchemaVersion the model was fitted on.
	SchemaVersion int      `msgpack:"schema_version"`
	Classes       []string `msgpack:"classes"`
	Scaler        Scaler   `msgpack:"scaler"`
	SVC           SVC      `msgpack:"svc"`
}

// Scaler standardizes features: (x - Mean) / Scale.
type Scaler struct {
	Mean  []float64 `msgpack:"mean"`
	Scale []float64 `msgpack:"scale"`
}

// SVC holds a fitted libsvm model in its internal layout.
//
// Support vectors are grouped by class in Classes order, NSupport[i] of
// them for class i. DualCoef has len(Classes)-1 rows, one coefficient per
// support vector. Intercept and the optional ProbA/ProbB Platt parameters
// have one entry per class pair (0,1), (0,2), ... (1,2), ...
type SVC struct {
	Kernel         string      `msgpack:"kernel"`
	Gamma          float64     `msgpack:"gamma"`
	Coef0          float64     `msgpack:"coef0"`
	Degree         int         `msgpack:"degree"`
	NSupport       []int       `msgpack:"n_support"`
	SupportVectors [][]float64 `msgpack:"support_vectors"`
	DualCoef       [][]float64 `msgpack:"dual_coef"`
	Intercept      []float64   `msgpack:"intercept"`
	ProbA          []float64   `msgpack:"prob_a,omitempty"`
	ProbB          []float64   `msgpack:"prob_b,omitempty"`
}

// NumFeatures returns the input width the artifact was fitted on.
func (a *Artifact) NumFeatures() int { return len(a.Scaler.Mean) }

// HasProbability reports whether Platt parameters were exported.
func (a *Artifact) HasProbability() bool { return len(a.SVC.ProbA) > 0 }

// Validate checks that every array agrees with the class count and the
// feature width.
func (a *Artifact) Validate() error {
	k := len(a.Classes)
	if k < 2 {
		return fmt.Errorf("need at least 2 classes, got %d", k)
	}
	n := len(a.Scaler.Mean)
	if n == 0 {
		return fmt.Errorf("empty scaler")
	}
	if len(a.Scaler.Scale) != n {
		return fmt.Errorf("scaler scale has %d values, mean has %d", len(a.Scaler.Scale), n)
	}

	s := a.SVC
	switch s.Kernel {
	case KernelRBF, KernelLinear, KernelPoly, KernelSigmoid:
	default:
		return fmt.Errorf("unsupported kernel %q", s.Kernel)
	}
	if len(s.NSupport) != k {
		return fmt.Errorf("n_support has %d entries for %d classes", len(s.NSupport), k)
	}
	total := 0
	for _, c := range s.NSupport {
		if c < 0 {
			return fmt.Errorf("negative support count")
		}
		total += c
	}
	if len(s.SupportVectors) != total {
		return fmt.Errorf("%d support vectors, n_support sums to %d", len(s.SupportVectors), total)
	}
	for i, sv := range s.SupportVectors {
		if len(sv) != n {
			return fmt.Errorf("support vector %d has %d features, want %d", i, len(sv), n)
		}
	}
	if len(s.DualCoef) != k-1 {
		return fmt.Errorf("dual_coef has %d rows, want %d", len(s.DualCoef), k-1)
	}
	for i, row := range s.DualCoef {
		if len(row) != total {
			return fmt.Errorf("dual_coef row %d has %d values, want %d", i, len(row), total)
		}
	}
	pairs := k * (k - 1) / 2
	if len(s.Intercept) != pairs {
		return fmt.Errorf("intercept has %d values, want %d", len(s.Intercept), pairs)
	}
	if len(s.ProbA) > 0 || len(s.ProbB) > 0 {
		if len(s.ProbA) != pairs || len(s.ProbB) != pairs {
			return fmt.Errorf("platt parameters have %d/%d values, want %d", len(s.ProbA), len(s.ProbB), pairs)
		}
	}
	return nil
}

// DecodeArtifact reads a msgpack-encoded Artifact.
func DecodeArtifact(r io.Reader) (*Artifact, error) {
	var a Artifact
	if err := msgpack.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	return &a, nil
}

// EncodeArtifact writes a as msgpack.
func EncodeArtifact(w io.Writer, a *Artifact) error {
	return msgpack.NewEncoder(w).Encode(a)
}
