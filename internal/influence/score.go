package influence

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/larkspur-bio/tfrank/internal/expression"
	"github.com/larkspur-bio/tfrank/internal/grn"
)

// ScoreRecord is the per-TF scoring result, the unit of work exchanged
// between workers and the collector. Immutable once produced.
type ScoreRecord struct {
	Factor        string
	DirectTargets int
	TotalTargets  int
	TargetScore   float64
	GScore        float64
	FactorFC      float64
	PValue        float64 // NaN when the rank test is undefined
	TargetFCDelta float64 // NaN when either partition is empty
}

// scoreContext is the shared, read-only state every worker scores against.
// Expression lookups are pre-resolved to node IDs so the hot path never
// touches the name-keyed table.
type scoreContext struct {
	graph   *grn.Graph
	records []expression.Record // indexed by node ID
	present []bool              // node has an expression record
	de      []bool              // node is differentially expressed
	cutoff  float64
}

func newScoreContext(g *grn.Graph, table *expression.Table, cutoff float64) *scoreContext {
	n := g.NumNodes()
	ctx := &scoreContext{
		graph:   g,
		records: make([]expression.Record, n),
		present: make([]bool, n),
		de:      make([]bool, n),
		cutoff:  cutoff,
	}
	for id := int32(0); id < int32(n); id++ {
		rec, ok := table.Get(g.Name(id))
		if !ok {
			continue
		}
		ctx.records[id] = rec
		ctx.present[id] = true
		ctx.de[id] = rec.Score > 0
	}
	return ctx
}

// scoreTF computes the full ScoreRecord for one transcription factor:
// probability-weighted reach into differentially expressed genes, direct and
// total target counts, the factor's own expression statistics, and the
// direct-vs-background fold change comparison.
func (ctx *scoreContext) scoreTF(tf int32) (ScoreRecord, error) {
	reached, err := ProbPaths(ctx.graph, tf, ctx.cutoff)
	if err != nil {
		return ScoreRecord{}, err
	}

	var targetScore float64
	for node, res := range reached {
		if ctx.de[node] {
			targetScore += ctx.records[node].Score * res.Probability
		}
	}

	pval, fcDelta := ctx.foldChangeScores(tf)

	rec := ScoreRecord{
		Factor:        ctx.graph.Name(tf),
		DirectTargets: ctx.graph.OutDegree(tf),
		TotalTargets:  len(reached),
		TargetScore:   targetScore,
		PValue:        pval,
		TargetFCDelta: fcDelta,
	}
	if ctx.present[tf] {
		rec.GScore = ctx.records[tf].Score
		rec.FactorFC = ctx.records[tf].AbsFC
	}
	return rec, nil
}

// foldChangeScores compares the absolute fold changes of the TF's direct
// targets against every other gene in the network that has an expression
// record. Degenerate partitions and rank-test failures yield NaN sentinels
// rather than errors: they invalidate this factor's test, not the run.
func (ctx *scoreContext) foldChangeScores(tf int32) (pval, fcDelta float64) {
	direct := make(map[int32]struct{})
	var directFC []float64
	for _, e := range ctx.graph.Out(tf) {
		if _, dup := direct[e.Target]; dup {
			continue
		}
		if ctx.present[e.Target] {
			direct[e.Target] = struct{}{}
			directFC = append(directFC, ctx.records[e.Target].AbsFC)
		}
	}
	if len(directFC) == 0 {
		return math.NaN(), math.NaN()
	}

	var restFC []float64
	for id := int32(0); id < int32(ctx.graph.NumNodes()); id++ {
		if !ctx.present[id] {
			continue
		}
		if _, isDirect := direct[id]; isDirect {
			continue
		}
		restFC = append(restFC, ctx.records[id].AbsFC)
	}
	if len(restFC) == 0 {
		return math.NaN(), math.NaN()
	}

	p, err := mannWhitneyU(directFC, restFC)
	if err != nil {
		p = math.NaN()
	}
	return p, stat.Mean(directFC, nil) - stat.Mean(restFC, nil)
}
