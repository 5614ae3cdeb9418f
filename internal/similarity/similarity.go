// Package similarity scores pairs of feature vectors and instruction
// sequences.
package similarity

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrDimensionMismatch is returned when two vectors come from different
// schema versions. Re-extract both with the same schema.
var ErrDimensionMismatch = errors.New("dimension mismatch")

// confidenceHalf is the vector norm at which confidence reaches 0.5.
const confidenceHalf = 0.25

// Result is the outcome of scoring one pair.
type Result struct {
	Score           float64            `json:"final_score"`
	Confidence      float64            `json:"confidence"`       // 0.0 to 1.0
	DimensionScores map[string]float64 `json:"dimension_scores"` // non-zero terms of the dot product, sum to Score
	GroupScores     map[string]float64 `json:"group_scores"`     // cosine over each name prefix
}

// Scorer compares two vectors of equal length.
type Scorer interface {
	Score(a, b []float64) (Result, error)
}

// Cosine is the cosine-similarity Scorer. Names labels the dimensions in
// DimensionScores; the text before the first ':' of a name is its group.
type Cosine struct {
	Names []string
}

// NewCosine returns a Cosine scorer for vectors laid out as names.
func NewCosine(names []string) *Cosine {
	return &Cosine{Names: names}
}

func (c *Cosine) name(i int) string {
	if i < len(c.Names) {
		return c.Names[i]
	}
	return "dim_" + strconv.Itoa(i)
}

func group(name string) string {
	if g, _, ok := strings.Cut(name, ":"); ok {
		return g
	}
	return "all"
}

// Score returns the cosine similarity of a and b clamped to [0,1]. Two zero
// vectors score 1 and a zero vector against a non-zero one scores 0; both
// carry the low confidence of the smaller norm.
func (c *Cosine) Score(a, b []float64) (Result, error) {
	if len(a) != len(b) {
		return Result{}, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	if c.Names != nil && len(c.Names) != len(a) {
		return Result{}, fmt.Errorf("%w: vectors have %d dimensions, schema has %d", ErrDimensionMismatch, len(a), len(c.Names))
	}

	na, nb := norm(a), norm(b)
	res := Result{
		Confidence:      confidence(math.Min(na, nb)),
		DimensionScores: make(map[string]float64),
		GroupScores:     make(map[string]float64),
	}

	type acc struct{ dot, aa, bb float64 }
	groups := make(map[string]*acc)
	var order []string
	dot := 0.0
	for i := range a {
		p := a[i] * b[i]
		dot += p
		if p != 0 {
			res.DimensionScores[c.name(i)] = p / (na * nb)
		}
		g := group(c.name(i))
		ga, ok := groups[g]
		if !ok {
			ga = &acc{}
			groups[g] = ga
			order = append(order, g)
		}
		ga.dot += p
		ga.aa += a[i] * a[i]
		ga.bb += b[i] * b[i]
	}

	res.Score = cosine(dot, na, nb)
	for _, g := range order {
		ga := groups[g]
		if ga.aa == 0 && ga.bb == 0 {
			continue
		}
		res.GroupScores[g] = cosine(ga.dot, math.Sqrt(ga.aa), math.Sqrt(ga.bb))
	}
	return res, nil
}

func norm(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x * x
	}
	return math.Sqrt(s)
}

func cosine(dot, na, nb float64) float64 {
	switch {
	case na == 0 && nb == 0:
		return 1
	case na == 0 || nb == 0:
		return 0
	}
	return clamp(dot / (na * nb))
}

func confidence(m float64) float64 {
	if m <= 0 || math.IsNaN(m) {
		return 0
	}
	return clamp(m / (m + confidenceHalf))
}

func clamp(x float64) float64 {
	switch {
	case math.IsNaN(x) || x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
