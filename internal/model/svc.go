package model

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// machine is the evaluable form of an Artifact.
type machine struct {
	classes []string
	mean    []float64
	scale   []float64
	svc     SVC
	start   []int // first support vector index per class
}

func newMachine(a *Artifact) *machine {
	start := make([]int, len(a.SVC.NSupport))
	for i := 1; i < len(start); i++ {
		start[i] = start[i-1] + a.SVC.NSupport[i-1]
	}
	return &machine{
		classes: a.Classes,
		mean:    a.Scaler.Mean,
		scale:   a.Scaler.Scale,
		svc:     a.SVC,
		start:   start,
	}
}

// standardize applies the scaler to x.
func (m *machine) standardize(x []float32) []float64 {
	z := make([]float64, len(x))
	for i, v := range x {
		s := m.scale[i]
		if s == 0 {
			s = 1
		}
		z[i] = (float64(v) - m.mean[i]) / s
	}
	return z
}

func (m *machine) kernel(x, sv []float64) float64 {
	s := m.svc
	switch s.Kernel {
	case KernelLinear:
		return floats.Dot(x, sv)
	case KernelPoly:
		return math.Pow(s.Gamma*floats.Dot(x, sv)+s.Coef0, float64(s.Degree))
	case KernelSigmoid:
		return math.Tanh(s.Gamma*floats.Dot(x, sv) + s.Coef0)
	default:
		d := floats.Distance(x, sv, 2)
		return math.Exp(-s.Gamma * d * d)
	}
}

// decisionValues returns one value per class pair (i<j, row-major). A
// positive value favours class i.
func (m *machine) decisionValues(z []float64) []float64 {
	sv := m.svc.SupportVectors
	kv := make([]float64, len(sv))
	for i := range sv {
		kv[i] = m.kernel(z, sv[i])
	}

	k := len(m.classes)
	dec := make([]float64, 0, k*(k-1)/2)
	p := 0
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			si, sj := m.start[i], m.start[j]
			ci, cj := m.svc.NSupport[i], m.svc.NSupport[j]
			coef1, coef2 := m.svc.DualCoef[j-1], m.svc.DualCoef[i]

			sum := 0.0
			for n := 0; n < ci; n++ {
				sum += coef1[si+n] * kv[si+n]
			}
			for n := 0; n < cj; n++ {
				sum += coef2[sj+n] * kv[sj+n]
			}
			dec = append(dec, sum+m.svc.Intercept[p])
			p++
		}
	}
	return dec
}

// vote returns the index of the class with the most pairwise wins; ties go
// to the earliest class.
func (m *machine) vote(dec []float64) int {
	k := len(m.classes)
	votes := make([]int, k)
	p := 0
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			if dec[p] > 0 {
				votes[i]++
			} else {
				votes[j]++
			}
			p++
		}
	}
	best := 0
	for i := 1; i < k; i++ {
		if votes[i] > votes[best] {
			best = i
		}
	}
	return best
}
