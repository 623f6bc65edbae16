// Package influence scores transcription factors by their reach into
// differentially expressed genes through a differential regulatory network,
// and rank-scales the per-factor scores into the final influence table.
package influence

import (
	"container/heap"
	"errors"
	"fmt"
	"math"

	"github.com/larkspur-bio/tfrank/internal/grn"
)

// ErrContradictoryPaths indicates the search relaxed an already-finalized
// node to a smaller distance. With non-negative log costs this cannot
// happen; if it does, the input weights are pathological and the whole run
// is invalid.
var ErrContradictoryPaths = errors.New("contradictory paths found: negative weights?")

// ErrBadCutoff is returned when the path probability cutoff is outside (0, 1].
var ErrBadCutoff = errors.New("path probability cutoff must be in (0, 1]")

// PathResult is one reachable node: the realized path from the source TF
// (inclusive on both ends) and the combined, length-normalized probability
// of reaching it.
type PathResult struct {
	Path        []int32
	Probability float64
}

// pqItem orders the search frontier by distance, with a strictly increasing
// push sequence as tie-break so candidate order never depends on node
// identity or map iteration.
type pqItem struct {
	dist float64
	seq  int64
	node int32
}

type frontier []pqItem

func (f frontier) Len() int { return len(f) }
func (f frontier) Less(i, j int) bool {
	if f[i].dist != f[j].dist {
		return f[i].dist < f[j].dist
	}
	return f[i].seq < f[j].seq
}
func (f frontier) Swap(i, j int)      { f[i], f[j] = f[j], f[i] }
func (f *frontier) Push(x any)        { *f = append(*f, x.(pqItem)) }
func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	item := old[n-1]
	*f = old[:n-1]
	return item
}

// ProbPaths finds every node reachable from source with a combined,
// length-normalized probability of at least cutoff.
//
// Edge probabilities p become non-negative costs -log10(p). The relaxation
// step folds the current path length L into the candidate distance,
//
//	newDist = dist(v) + cost(v,u) - log10(1/L) + [L>1]*log10(1/(L-1))
//
// which rewards reaching a node through fewer intermediate hops rather than
// purely the lowest cumulative cost. A cutoff of exactly 1 disables the
// distance budget. The source itself and nodes whose best path never left
// the source are not reported.
func ProbPaths(g *grn.Graph, source int32, cutoff float64) (map[int32]PathResult, error) {
	if cutoff <= 0 || cutoff > 1 {
		return nil, fmt.Errorf("%w: %v", ErrBadCutoff, cutoff)
	}
	budget := math.Inf(1)
	if cutoff < 1 {
		budget = -math.Log10(cutoff)
	}

	dist := make(map[int32]float64)
	seen := make(map[int32]float64)
	paths := make(map[int32][]int32)
	paths[source] = []int32{source}

	var seq int64
	fr := &frontier{}
	heap.Init(fr)
	seen[source] = 0
	heap.Push(fr, pqItem{dist: 0, seq: seq, node: source})
	seq++

	for fr.Len() > 0 {
		item := heap.Pop(fr).(pqItem)
		v := item.node
		if _, done := dist[v]; done {
			continue // already finalized
		}
		dist[v] = item.dist

		length := float64(len(paths[v]))
		for _, e := range g.Out(v) {
			cost := -math.Log10(e.Weight)
			vuDist := dist[v] + cost - math.Log10(1/length)
			if length > 1 {
				vuDist += math.Log10(1 / (length - 1))
			}
			if vuDist > budget {
				continue
			}

			u := e.Target
			if uDist, done := dist[u]; done {
				if vuDist < uDist {
					return nil, fmt.Errorf("%w (%s → %s)", ErrContradictoryPaths, g.Name(v), g.Name(u))
				}
				continue
			}
			if prev, ok := seen[u]; !ok || vuDist < prev {
				seen[u] = vuDist
				heap.Push(fr, pqItem{dist: vuDist, seq: seq, node: u})
				seq++
				paths[u] = append(append([]int32(nil), paths[v]...), u)
			}
		}
	}

	results := make(map[int32]PathResult, len(dist))
	for node, d := range dist {
		path := paths[node]
		if len(path) <= 1 {
			continue
		}
		results[node] = PathResult{Path: path, Probability: math.Pow(10, -d)}
	}
	return results, nil
}
