package model

import (
	"fmt"
	"sort"
)

// TopK is the number of ranked genres reported per prediction.
const TopK = 3

// Score is one ranked genre.
type Score struct {
	Genre string  `json:"genre"`
	Prob  float64 `json:"prob"`
}

// Classifier predicts a genre from a feature vector of NumFeatures values.
type Classifier interface {
	Predict(x []float32) (string, error)
	Rank(x []float32, k int) ([]Score, error)
	// PredictRank returns what Predict and Rank would, evaluating the
	// support vectors once.
	PredictRank(x []float32, k int) (string, []Score, error)
	Classes() []string
	NumFeatures() int
}

// New builds the classifier variant the artifact supports. Artifacts with
// Platt parameters get a *Probabilistic; all others a *PointOnly.
func New(a *Artifact) (Classifier, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	base := PointOnly{m: newMachine(a)}
	if a.HasProbability() {
		return &Probabilistic{PointOnly: base}, nil
	}
	return &base, nil
}

// PointOnly predicts a single genre without probability estimates.
type PointOnly struct {
	m *machine
}

func (c *PointOnly) Classes() []string { return c.m.classes }

func (c *PointOnly) NumFeatures() int { return len(c.m.mean) }

func (c *PointOnly) check(x []float32) error {
	if len(x) != len(c.m.mean) {
		return fmt.Errorf("model: got %d features, want %d", len(x), len(c.m.mean))
	}
	return nil
}

// Predict returns the one-vs-one vote winner.
func (c *PointOnly) Predict(x []float32) (string, error) {
	if err := c.check(x); err != nil {
		return "", err
	}
	dec := c.m.decisionValues(c.m.standardize(x))
	return c.m.classes[c.m.vote(dec)], nil
}

// Rank returns the predicted genre with probability 1.0.
func (c *PointOnly) Rank(x []float32, _ int) ([]Score, error) {
	g, err := c.Predict(x)
	if err != nil {
		return nil, err
	}
	return []Score{{Genre: g, Prob: 1.0}}, nil
}

// PredictRank returns the predicted genre and the single-entry ranking.
func (c *PointOnly) PredictRank(x []float32, _ int) (string, []Score, error) {
	g, err := c.Predict(x)
	if err != nil {
		return "", nil, err
	}
	return g, []Score{{Genre: g, Prob: 1.0}}, nil
}

// Probabilistic additionally ranks genres by Platt-calibrated probability.
type Probabilistic struct {
	PointOnly
}

// Probabilities returns one probability per class, in Classes order.
func (c *Probabilistic) Probabilities(x []float32) ([]float64, error) {
	if err := c.check(x); err != nil {
		return nil, err
	}
	dec := c.m.decisionValues(c.m.standardize(x))
	return probabilities(dec, c.m.svc.ProbA, c.m.svc.ProbB, len(c.m.classes)), nil
}

// Rank returns the k most probable genres, highest first. Equal
// probabilities keep class order.
func (c *Probabilistic) Rank(x []float32, k int) ([]Score, error) {
	probs, err := c.Probabilities(x)
	if err != nil {
		return nil, err
	}
	return c.rank(probs, k), nil
}

// PredictRank returns the vote winner and the k most probable genres from
// one set of decision values.
func (c *Probabilistic) PredictRank(x []float32, k int) (string, []Score, error) {
	if err := c.check(x); err != nil {
		return "", nil, err
	}
	dec := c.m.decisionValues(c.m.standardize(x))
	probs := probabilities(dec, c.m.svc.ProbA, c.m.svc.ProbB, len(c.m.classes))
	return c.m.classes[c.m.vote(dec)], c.rank(probs, k), nil
}

func (c *Probabilistic) rank(probs []float64, k int) []Score {
	scores := make([]Score, len(probs))
	for i, p := range probs {
		scores[i] = Score{Genre: c.m.classes[i], Prob: p}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Prob > scores[j].Prob })
	if k > 0 && k < len(scores) {
		scores = scores[:k]
	}
	return scores
}
