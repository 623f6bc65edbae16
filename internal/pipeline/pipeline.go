// Package pipeline wires the full influence run: load one or two regulatory
// networks, build the differential network, read the expression table, score
// every candidate factor in parallel, rank-scale the scores, and optionally
// prune redundant factors.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/larkspur-bio/tfrank/internal/expression"
	"github.com/larkspur-bio/tfrank/internal/grn"
	"github.com/larkspur-bio/tfrank/internal/influence"
	"github.com/larkspur-bio/tfrank/internal/telemetry"
)

// ErrNoNetwork indicates neither a source nor a target network was supplied.
var ErrNoNetwork = errors.New("at least one network file is required")

// Options configures a pipeline run.
type Options struct {
	SourcePath string // source-state network (optional if TargetPath set)
	TargetPath string // target-state network (optional if SourcePath set)
	DEGenes    string // differential expression table
	Outfile    string // final influence table destination

	Edges      int     // top-N edge limit per network
	Workers    int     // worker pool size
	Extended   bool    // load and emit extended edge attributes
	SortBy     string  // network sort column
	Separator  string  // composite key separator
	PadjCutoff float64 // differential expression significance cutoff
	PathCutoff float64 // path probability cutoff

	FilterTFs bool    // prune redundant factors after ranking
	TPMPath   string  // expression-level table for the filter
	Overlap   float64 // filter overlap threshold
	TPM       float64 // filter expression threshold

	Mapper    expression.GeneMapper // optional identifier remapping
	Logger    io.Writer             // progress log; nil discards
	Telemetry *telemetry.Emitter    // optional event stream
}

func (o Options) logf(format string, args ...any) {
	if o.Logger != nil {
		fmt.Fprintf(o.Logger, format+"\n", args...)
	}
}

func (o Options) readOptions() grn.ReadOptions {
	ro := grn.DefaultReadOptions()
	if o.Edges != 0 {
		ro.Edges = o.Edges
	}
	if o.SortBy != "" {
		ro.SortBy = o.SortBy
	}
	if o.Separator != "" {
		ro.Separator = o.Separator
	}
	ro.Extended = o.Extended
	return ro
}

// DiffNetworkPath returns the destination of the diff-network table for a
// given outfile.
func DiffNetworkPath(outfile string) string {
	ext := filepath.Ext(outfile)
	return strings.TrimSuffix(outfile, ext) + "_diffnetwork.tsv"
}

// FilteredPath returns the destination of the filtered influence table for
// a given outfile.
func FilteredPath(outfile string) string {
	ext := filepath.Ext(outfile)
	return strings.TrimSuffix(outfile, ext) + "_filtered.txt"
}

// loadDiff builds the scoring network. With both network files present,
// each is loaded over the union of both top-N interaction sets and diffed;
// with a single file, that network is scored directly.
func loadDiff(opts Options) (*grn.DiffResult, error) {
	ro := opts.readOptions()

	switch {
	case opts.SourcePath == "" && opts.TargetPath == "":
		return nil, ErrNoNetwork

	case opts.SourcePath == "" || opts.TargetPath == "":
		path := opts.TargetPath
		which := "target"
		if path == "" {
			path = opts.SourcePath
			which = "source"
		}
		opts.logf("only the %s network was provided, scoring it directly", which)
		g, err := grn.ReadNetwork(path, ro)
		if err != nil {
			return nil, err
		}
		opts.Telemetry.Emit(telemetry.Event{Kind: telemetry.KindNetworkLoaded, Data: map[string]any{"path": path, "edges": g.NumEdges()}})
		return grn.SingleNetwork(g), nil
	}

	opts.logf("loading network data, using the top %d edges", ro.Edges)
	topSource, err := grn.ReadTopInteractions(opts.SourcePath, ro)
	if err != nil {
		return nil, err
	}
	topTarget, err := grn.ReadTopInteractions(opts.TargetPath, ro)
	if err != nil {
		return nil, err
	}

	// Both networks are loaded over the union of their top interactions,
	// so every target edge has a source counterpart to diff against.
	union := make(map[string]struct{}, len(topSource)+len(topTarget))
	for k := range topSource {
		union[k] = struct{}{}
	}
	for k := range topTarget {
		union[k] = struct{}{}
	}
	ro.Interactions = union

	source, err := grn.ReadNetwork(opts.SourcePath, ro)
	if err != nil {
		return nil, err
	}
	opts.Telemetry.Emit(telemetry.Event{Kind: telemetry.KindNetworkLoaded, Data: map[string]any{"path": opts.SourcePath, "edges": source.NumEdges()}})
	target, err := grn.ReadNetwork(opts.TargetPath, ro)
	if err != nil {
		return nil, err
	}
	opts.Telemetry.Emit(telemetry.Event{Kind: telemetry.KindNetworkLoaded, Data: map[string]any{"path": opts.TargetPath, "edges": target.NumEdges()}})

	diff, err := grn.Diff(source, target)
	if err != nil {
		return nil, err
	}
	opts.logf("differential network has %d edges", diff.Graph.NumEdges())
	opts.Telemetry.Emit(telemetry.Event{Kind: telemetry.KindDiffDone, Data: map[string]any{"edges": diff.Graph.NumEdges()}})
	return diff, nil
}

// Run executes the full pipeline, writing the diff-network table, the final
// influence table, and (when enabled) the filtered table.
func Run(opts Options) error {
	opts.Telemetry.Emit(telemetry.Event{Kind: telemetry.KindRunStart, Data: map[string]any{"outfile": opts.Outfile}})

	diff, err := loadDiff(opts)
	if err != nil {
		return err
	}

	opts.logf("saving differential network")
	if err := diff.WriteTSV(DiffNetworkPath(opts.Outfile)); err != nil {
		return err
	}

	table, err := expression.Read(opts.DEGenes, diff.Graph.NodeSet(), expression.ReadOptions{
		PadjCutoff: opts.PadjCutoff,
		Mapper:     opts.Mapper,
		Logger:     opts.Logger,
	})
	if err != nil {
		return err
	}
	opts.Telemetry.Emit(telemetry.Event{Kind: telemetry.KindExpressionLoaded, Data: map[string]any{"genes": table.Len()}})

	opts.logf("calculating target scores")
	engine := influence.NewEngine(diff.Graph, table,
		influence.WithWorkers(opts.Workers),
		influence.WithLogger(opts.Logger),
		influence.WithTelemetry(opts.Telemetry),
	)
	if opts.PathCutoff != 0 {
		influence.WithCutoff(opts.PathCutoff)(engine)
	}
	records, err := engine.Run(opts.Outfile)
	if err != nil {
		return err
	}

	opts.logf("calculating influence scores")
	rows := influence.Rank(records)
	if err := influence.WriteRanked(rows, opts.Outfile); err != nil {
		return err
	}
	opts.Telemetry.Emit(telemetry.Event{Kind: telemetry.KindRankDone, Data: map[string]any{"factors": len(rows)}})

	if opts.FilterTFs {
		levels, err := influence.ReadTPM(opts.TPMPath)
		if err != nil {
			return err
		}
		fo := influence.DefaultFilterOptions()
		if opts.Overlap != 0 {
			fo.Overlap = opts.Overlap
		}
		if opts.TPM != 0 {
			fo.TPM = opts.TPM
		}
		kept := influence.FilterRedundant(rows, diff.Graph, levels, fo)
		if err := influence.WriteRanked(kept, FilteredPath(opts.Outfile)); err != nil {
			return err
		}
		opts.Telemetry.Emit(telemetry.Event{Kind: telemetry.KindFilterResult, Data: map[string]any{"kept": len(kept), "of": len(rows)}})
	}

	opts.Telemetry.Emit(telemetry.Event{Kind: telemetry.KindRunDone})
	return nil
}
