package influence

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/larkspur-bio/tfrank/internal/grn"
)

// FilterOptions configures the greedy redundancy filter.
type FilterOptions struct {
	// Overlap is the maximum tolerated fraction of a factor's targets
	// already covered by any higher-ranked factor. Strictly greater than
	// this threshold rejects the factor; exactly the threshold keeps it.
	Overlap float64

	// TPM is the expression level at or above which a factor is rejected
	// (already highly expressed in the origin cell type).
	TPM float64
}

// DefaultFilterOptions returns the production thresholds: overlap 0.98,
// TPM 20.
func DefaultFilterOptions() FilterOptions {
	return FilterOptions{Overlap: 0.98, TPM: 20}
}

// ReadTPM parses a two-column (gene, value) expression-level table. The
// first line is assumed to be a header and skipped.
func ReadTPM(path string) (map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening expression level file: %w", err)
	}
	defer f.Close()

	levels := make(map[string]float64)
	sc := bufio.NewScanner(f)
	first := true
	for sc.Scan() {
		if first {
			first = false
			continue
		}
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing expression level for %q: %w", fields[0], err)
		}
		levels[fields[0]] = v
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading expression level file: %w", err)
	}
	return levels, nil
}

// FilterRedundant greedily prunes the ranked influence table. Factors are
// scanned in ranked order; a factor is kept only when its expression level
// is below the TPM threshold and its target set does not exceed the overlap
// threshold against any higher-ranked factor. The scan compares against
// every earlier factor, kept or not, so the result depends on the ranked
// order itself.
func FilterRedundant(rows []RankedRow, g *grn.Graph, levels map[string]float64, opts FilterOptions) []RankedRow {
	targets := make([]map[string]struct{}, len(rows))
	for i, row := range rows {
		set := make(map[string]struct{})
		if id, ok := g.Lookup(row.Factor); ok {
			for _, e := range g.Out(id) {
				set[g.Name(e.Target)] = struct{}{}
			}
		}
		targets[i] = set
	}

	var kept []RankedRow
	for i, row := range rows {
		if len(targets[i]) == 0 {
			continue
		}

		redundant := false
		for j := 0; j < i; j++ {
			shared := 0
			for t := range targets[i] {
				if _, ok := targets[j][t]; ok {
					shared++
				}
			}
			if float64(shared)/float64(len(targets[i])) > opts.Overlap {
				redundant = true
				break
			}
		}
		if redundant {
			continue
		}

		level, ok := levels[row.Factor]
		if !ok || level >= opts.TPM {
			continue
		}
		kept = append(kept, row)
	}
	return kept
}
