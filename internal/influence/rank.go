package influence

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// RankedRow is one row of the final influence table, in ranked order.
type RankedRow struct {
	Factor        string
	TargetScore   float64
	TargetScaled  float64
	GScore        float64
	GScoreScaled  float64
	Sum           float64
	SumScaled     float64
	DirectTargets int
	FactorFC      float64
}

// rankedHeader is the column layout of the final influence table.
const rankedHeader = "factor\ttargetscore\ttargetScaled\tGscore\tGscoreScaled\tsum\tsumScaled\tdirectTargets\tfactor_fc"

// denseRank assigns contiguous integer ranks starting at 1, smallest value
// first; tied values share a rank.
func denseRank(xs []float64) []float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	rank := make(map[float64]float64, len(sorted))
	next := 1.0
	for _, v := range sorted {
		if _, ok := rank[v]; !ok {
			rank[v] = next
			next++
		}
	}

	out := make([]float64, len(xs))
	for i, v := range xs {
		out[i] = rank[v]
	}
	return out
}

// minmaxScale maps values linearly onto [0, 1]. A constant input scales to
// all zeros.
func minmaxScale(xs []float64) []float64 {
	if len(xs) == 0 {
		return nil
	}
	lo, hi := xs[0], xs[0]
	for _, v := range xs {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	out := make([]float64, len(xs))
	if hi == lo {
		return out
	}
	for i, v := range xs {
		out[i] = (v - lo) / (hi - lo)
	}
	return out
}

// scaledDenseRank is the shared transform of the final table: dense-rank the
// values, then min-max scale the ranks onto [0, 1].
func scaledDenseRank(xs []float64) []float64 {
	return minmaxScale(denseRank(xs))
}

// Rank converts per-factor score records into the final influence table:
// target and expression scores are dense-ranked and min-max scaled, their
// raw sum is kept, and the table is ordered by the scaled rank of the
// combined scaled scores. The sort is stable, so factors with identical
// combined scores keep their input order.
func Rank(records []ScoreRecord) []RankedRow {
	n := len(records)
	targetScores := make([]float64, n)
	gScores := make([]float64, n)
	for i, r := range records {
		targetScores[i] = r.TargetScore
		gScores[i] = r.GScore
	}

	targetScaled := scaledDenseRank(targetScores)
	gScaled := scaledDenseRank(gScores)

	combined := make([]float64, n)
	for i := range combined {
		combined[i] = targetScaled[i] + gScaled[i]
	}
	sumScaled := scaledDenseRank(combined)

	rows := make([]RankedRow, n)
	for i, r := range records {
		rows[i] = RankedRow{
			Factor:        r.Factor,
			TargetScore:   r.TargetScore,
			TargetScaled:  targetScaled[i],
			GScore:        r.GScore,
			GScoreScaled:  gScaled[i],
			Sum:           r.TargetScore + r.GScore,
			SumScaled:     sumScaled[i],
			DirectTargets: r.DirectTargets,
			FactorFC:      r.FactorFC,
		}
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].SumScaled > rows[j].SumScaled })
	return rows
}

// WriteRanked writes the final influence table to path.
func WriteRanked(rows []RankedRow, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating influence table: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, rankedHeader)
	for _, r := range rows {
		cols := []string{
			r.Factor,
			formatFloat(r.TargetScore),
			formatFloat(r.TargetScaled),
			formatFloat(r.GScore),
			formatFloat(r.GScoreScaled),
			formatFloat(r.Sum),
			formatFloat(r.SumScaled),
			strconv.Itoa(r.DirectTargets),
			formatFloat(r.FactorFC),
		}
		fmt.Fprintln(w, strings.Join(cols, "\t"))
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing influence table: %w", err)
	}
	return nil
}
