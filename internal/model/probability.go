package model

import "math"

const minProb = 1e-7

// sigmoid evaluates a Platt sigmoid in the overflow-safe form.
func sigmoid(dec, a, b float64) float64 {
	fApB := dec*a + b
	if fApB >= 0 {
		return math.Exp(-fApB) / (1 + math.Exp(-fApB))
	}
	return 1 / (1 + math.Exp(fApB))
}

// probabilities converts pairwise decision values into class probabilities.
func probabilities(dec, probA, probB []float64, k int) []float64 {
	r := make([][]float64, k)
	for i := range r {
		r[i] = make([]float64, k)
	}
	p := 0
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			v := math.Min(math.Max(sigmoid(dec[p], probA[p], probB[p]), minProb), 1-minProb)
			r[i][j] = v
			r[j][i] = 1 - v
			p++
		}
	}
	if k == 2 {
		return []float64{r[0][1], r[1][0]}
	}
	return coupleProbabilities(r)
}

// coupleProbabilities solves for class probabilities consistent with the
// pairwise estimates r (Wu, Lin and Weng, method 2) by fixed-point
// iteration.
func coupleProbabilities(r [][]float64) []float64 {
	k := len(r)
	maxIter := max(100, k)
	eps := 0.005 / float64(k)

	q := make([][]float64, k)
	for i := range q {
		q[i] = make([]float64, k)
	}
	p := make([]float64, k)
	qp := make([]float64, k)

	for t := 0; t < k; t++ {
		p[t] = 1 / float64(k)
		for j := 0; j < t; j++ {
			q[t][t] += r[j][t] * r[j][t]
			q[t][j] = q[j][t]
		}
		for j := t + 1; j < k; j++ {
			q[t][t] += r[j][t] * r[j][t]
			q[t][j] = -r[j][t] * r[t][j]
		}
	}

	for iter := 0; iter < maxIter; iter++ {
		pQp := 0.0
		for t := 0; t < k; t++ {
			qp[t] = 0
			for j := 0; j < k; j++ {
				qp[t] += q[t][j] * p[j]
			}
			pQp += p[t] * qp[t]
		}

		maxErr := 0.0
		for t := 0; t < k; t++ {
			maxErr = math.Max(maxErr, math.Abs(qp[t]-pQp))
		}
		if maxErr < eps {
			break
		}

		for t := 0; t < k; t++ {
			diff := (-qp[t] + pQp) / q[t][t]
			p[t] += diff
			pQp = (pQp + diff*(diff*q[t][t]+2*qp[t])) / (1 + diff) / (1 + diff)
			for j := 0; j < k; j++ {
				qp[j] = (qp[j] + diff*q[t][j]) / (1 + diff)
				p[j] /= 1 + diff
			}
		}
	}
	return p
}
