package grn

import (
	"errors"
	"fmt"
)

// ErrNoDifference indicates the differential network came out empty:
// no interaction is stronger in the target state than in the source state.
var ErrNoDifference = errors.New("no differences between networks")

// DiffDetail holds the raw and delta attribute values of one extended
// differential edge, as written to the full diff-network output.
type DiffDetail struct {
	WeightSource float64
	WeightTarget float64
	TFExprDiff   float64
	TFExprSource float64
	TFExprTarget float64
	TGExprDiff   float64
	TGExprSource float64
	TGExprTarget float64
	WBDiff       float64
	WBSource     float64
	WBTarget     float64
	ActDiff      float64
	ActSource    float64
	ActTarget    float64
}

// DiffRow is one differential interaction in output order. Detail is nil in
// minimal mode.
type DiffRow struct {
	TF     string
	Target string
	Weight float64
	Detail *DiffDetail
}

// DiffResult is the differential network: a scoring graph whose edge weights
// are the positive probability deltas, plus the ordered rows for the
// diff-network output file.
type DiffResult struct {
	Graph    *Graph
	Rows     []DiffRow
	extended bool
}

// Extended reports whether the rows carry full attribute detail.
func (d *DiffResult) Extended() bool { return d.extended }

// Diff computes the differential network between a source-state and a
// target-state graph. Both graphs must have been loaded over the same
// interaction universe: every target edge must exist in the source graph,
// and a missing edge is a precondition violation, not a recoverable case.
// An edge is included iff target.weight − source.weight > 0.
func Diff(source, target *Graph) (*DiffResult, error) {
	extended := source.Extended() && target.Extended()
	diff := &DiffResult{Graph: NewGraph(false), extended: extended}

	for from := int32(0); from < int32(target.NumNodes()); from++ {
		tf := target.Name(from)
		for _, e := range target.Out(from) {
			tg := target.Name(e.Target)

			srcFrom, ok := source.Lookup(tf)
			if !ok {
				return nil, fmt.Errorf("%w: %s (source network not loaded over the shared interaction set?)", ErrNodeNotFound, tf)
			}
			srcTo, ok := source.Lookup(tg)
			if !ok {
				return nil, fmt.Errorf("%w: %s (source network not loaded over the shared interaction set?)", ErrNodeNotFound, tg)
			}
			srcEdge, ok := source.FindEdge(srcFrom, srcTo)
			if !ok {
				return nil, fmt.Errorf("source network is missing edge %s → %s (networks not loaded over the shared interaction set?)", tf, tg)
			}

			delta := e.Weight - srcEdge.Weight
			if delta <= 0 {
				continue
			}

			if err := diff.Graph.addEdgeUnchecked(tf, tg, delta, nil); err != nil {
				return nil, err
			}
			row := DiffRow{TF: tf, Target: tg, Weight: delta}
			if extended {
				sa, ta := srcEdge.Attrs, e.Attrs
				row.Detail = &DiffDetail{
					WeightSource: srcEdge.Weight,
					WeightTarget: e.Weight,
					TFExprDiff:   ta.TFExpression - sa.TFExpression,
					TFExprSource: sa.TFExpression,
					TFExprTarget: ta.TFExpression,
					TGExprDiff:   ta.TargetExpression - sa.TargetExpression,
					TGExprSource: sa.TargetExpression,
					TGExprTarget: ta.TargetExpression,
					WBDiff:       ta.WeightedBinding - sa.WeightedBinding,
					WBSource:     sa.WeightedBinding,
					WBTarget:     ta.WeightedBinding,
					ActDiff:      ta.Activity - sa.Activity,
					ActSource:    sa.Activity,
					ActTarget:    ta.Activity,
				}
			}
			diff.Rows = append(diff.Rows, row)
		}
	}

	if len(diff.Rows) == 0 {
		return nil, ErrNoDifference
	}
	return diff, nil
}

// SingleNetwork wraps an undiffed graph as a DiffResult, for runs where only
// one network file was supplied and the graph itself is scored directly.
// Rows are always minimal: the full attribute detail only exists for diffs.
func SingleNetwork(g *Graph) *DiffResult {
	res := &DiffResult{Graph: g}
	for from := int32(0); from < int32(g.NumNodes()); from++ {
		for _, e := range g.Out(from) {
			res.Rows = append(res.Rows, DiffRow{
				TF:     g.Name(from),
				Target: g.Name(e.Target),
				Weight: e.Weight,
			})
		}
	}
	return res
}
