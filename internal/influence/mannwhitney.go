package influence

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// ErrDegenerateSamples is returned when the rank test is undefined for the
// given samples (an empty side, or all values tied).
var ErrDegenerateSamples = errors.New("rank test undefined for degenerate samples")

// mannWhitneyU runs a two-sided Mann-Whitney U test comparing x and y,
// using the normal approximation with midranks, tie correction and
// continuity correction. The exact method is deliberately not implemented:
// sample sizes here run into the thousands, where only the asymptotic
// variant is tractable.
func mannWhitneyU(x, y []float64) (float64, error) {
	n1, n2 := len(x), len(y)
	if n1 == 0 || n2 == 0 {
		return math.NaN(), fmt.Errorf("%w: sizes %d and %d", ErrDegenerateSamples, n1, n2)
	}

	n := n1 + n2
	combined := make([]float64, 0, n)
	combined = append(combined, x...)
	combined = append(combined, y...)

	ranks, tieTerm := midranks(combined)

	var r1 float64
	for i := 0; i < n1; i++ {
		r1 += ranks[i]
	}

	nf1, nf2, nf := float64(n1), float64(n2), float64(n)
	u1 := r1 - nf1*(nf1+1)/2
	u2 := nf1*nf2 - u1
	u := math.Max(u1, u2)

	mu := nf1 * nf2 / 2
	sigma := math.Sqrt(nf1 * nf2 / 12 * ((nf + 1) - tieTerm/(nf*(nf-1))))
	if sigma == 0 {
		return math.NaN(), fmt.Errorf("%w: all values tied", ErrDegenerateSamples)
	}

	// Continuity correction of 0.5; two-sided p clipped at 1.
	z := (u - mu - 0.5) / sigma
	p := 2 * distuv.UnitNormal.Survival(z)
	if p > 1 {
		p = 1
	}
	return p, nil
}

// midranks assigns average ranks (1-based) to vals, returning the rank of
// each input position and the tie-correction term Σ(t³−t).
func midranks(vals []float64) ([]float64, float64) {
	n := len(vals)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return vals[order[i]] < vals[order[j]] })

	ranks := make([]float64, n)
	var tieTerm float64
	for i := 0; i < n; {
		j := i
		for j < n && vals[order[j]] == vals[order[i]] {
			j++
		}
		// Positions i..j-1 share the average of ranks i+1..j.
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[order[k]] = avg
		}
		t := float64(j - i)
		tieTerm += t*t*t - t
		i = j
	}
	return ranks, tieTerm
}
