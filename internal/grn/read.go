package grn

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// DefaultSeparator joins the TF and target halves of the composite key
// column in network files.
const DefaultSeparator = "—"

// ErrMissingColumn is returned when a required column is absent from an
// input file header.
var ErrMissingColumn = errors.New("missing column")

// ReadOptions controls how a network file is loaded.
type ReadOptions struct {
	// Edges keeps only the top-N interactions by the sort column.
	// Zero or negative means no limit.
	Edges int

	// Interactions, when non-nil, restricts loading to these composite
	// keys and takes precedence over Edges.
	Interactions map[string]struct{}

	// SortBy names the column used to select top interactions.
	SortBy string

	// Extended also loads tf_expression, target_expression,
	// weighted_binding and activity onto every edge.
	Extended bool

	// Separator splits the composite tf_target key.
	Separator string
}

// DefaultReadOptions returns the loader defaults: top 100k edges by
// interaction probability, minimal mode.
func DefaultReadOptions() ReadOptions {
	return ReadOptions{
		Edges:     100_000,
		SortBy:    "prob",
		Separator: DefaultSeparator,
	}
}

func (o ReadOptions) sortBy() string {
	if o.SortBy == "" {
		return "prob"
	}
	return o.SortBy
}

func (o ReadOptions) separator() string {
	if o.Separator == "" {
		return DefaultSeparator
	}
	return o.Separator
}

// networkRow is one parsed line of a network file.
type networkRow struct {
	key     string
	weight  float64
	sortVal float64
	attrs   *EdgeAttrs
}

func colIndex(header []string, name string) (int, error) {
	for i, h := range header {
		if h == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrMissingColumn, name)
}

// readRows parses a network TSV into rows, sorted descending by the sort
// column. The sort is stable so ties keep file order, which keeps top-N
// selection reproducible.
func readRows(path string, opts ReadOptions) ([]networkRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening network file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading network header: %w", err)
	}

	keyCol, err := colIndex(header, "tf_target")
	if err != nil {
		return nil, err
	}
	probCol, err := colIndex(header, "prob")
	if err != nil {
		return nil, err
	}
	sortCol, err := colIndex(header, opts.sortBy())
	if err != nil {
		return nil, err
	}

	var attrCols [4]int
	if opts.Extended {
		for i, name := range []string{"tf_expression", "target_expression", "weighted_binding", "activity"} {
			attrCols[i], err = colIndex(header, name)
			if err != nil {
				return nil, err
			}
		}
	}

	var rows []networkRow
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading network file: %w", err)
		}

		weight, err := strconv.ParseFloat(rec[probCol], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing prob for %q: %w", rec[keyCol], err)
		}
		sortVal := weight
		if sortCol != probCol {
			sortVal, err = strconv.ParseFloat(rec[sortCol], 64)
			if err != nil {
				return nil, fmt.Errorf("parsing %s for %q: %w", opts.sortBy(), rec[keyCol], err)
			}
		}

		row := networkRow{key: rec[keyCol], weight: weight, sortVal: sortVal}
		if opts.Extended {
			vals := [4]float64{}
			for i, col := range attrCols {
				vals[i], err = strconv.ParseFloat(rec[col], 64)
				if err != nil {
					return nil, fmt.Errorf("parsing %s for %q: %w", header[col], rec[keyCol], err)
				}
			}
			row.attrs = &EdgeAttrs{
				TFExpression:     vals[0],
				TargetExpression: vals[1],
				WeightedBinding:  vals[2],
				Activity:         vals[3],
			}
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].sortVal > rows[j].sortVal })
	return rows, nil
}

// ReadTopInteractions returns the composite keys of the top-N interactions
// of a network file, ranked by the sort column. Used to build the common
// edge universe over which both networks are loaded before diffing.
func ReadTopInteractions(path string, opts ReadOptions) (map[string]struct{}, error) {
	rows, err := readRows(path, ReadOptions{Edges: opts.Edges, SortBy: opts.SortBy, Separator: opts.Separator})
	if err != nil {
		return nil, err
	}
	if opts.Edges > 0 && len(rows) > opts.Edges {
		rows = rows[:opts.Edges]
	}
	top := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		top[row.key] = struct{}{}
	}
	return top, nil
}

// ReadNetwork loads a network file into a Graph. When opts.Interactions is
// set, only those composite keys are loaded; otherwise the top opts.Edges
// interactions are kept.
func ReadNetwork(path string, opts ReadOptions) (*Graph, error) {
	rows, err := readRows(path, opts)
	if err != nil {
		return nil, err
	}

	if opts.Interactions != nil {
		kept := rows[:0]
		for _, row := range rows {
			if _, ok := opts.Interactions[row.key]; ok {
				kept = append(kept, row)
			}
		}
		rows = kept
	} else if opts.Edges > 0 && len(rows) > opts.Edges {
		rows = rows[:opts.Edges]
	}

	sep := opts.separator()
	g := NewGraph(opts.Extended)
	for _, row := range rows {
		tf, target, ok := strings.Cut(row.key, sep)
		if !ok {
			return nil, fmt.Errorf("interaction key %q has no separator %q", row.key, sep)
		}
		if err := g.AddEdge(tf, target, row.weight, row.attrs); err != nil {
			return nil, err
		}
	}
	return g, nil
}
