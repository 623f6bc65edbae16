// Package expression builds the per-gene differential expression table
// consumed by influence scoring: a significance-gated score, the absolute
// log2 fold change, and the signed log2 fold change.
package expression

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
)

// ErrNoOverlap indicates that no gene is shared between the expression
// table and the network, even after an optional remapping attempt.
var ErrNoOverlap = errors.New("no genes shared between expression table and network")

// ErrMissingColumn is returned when padj or log2FoldChange is absent.
var ErrMissingColumn = errors.New("missing column in differential expression file")

// minOverlap is the fraction of network genes that must be found in the
// expression table before remapping is attempted.
const minOverlap = 0.6

// Record holds the expression-change statistics of one gene.
type Record struct {
	Score  float64 // |log2FoldChange| when padj < cutoff, else 0
	AbsFC  float64 // |log2FoldChange|
	RealFC float64 // signed log2FoldChange
}

// Table is an immutable per-gene expression-change lookup.
type Table struct {
	records map[string]Record
}

// Get returns the record for a gene.
func (t *Table) Get(gene string) (Record, bool) {
	r, ok := t.records[gene]
	return r, ok
}

// Has reports whether the table has a record for gene.
func (t *Table) Has(gene string) bool {
	_, ok := t.records[gene]
	return ok
}

// Len returns the number of genes in the table.
func (t *Table) Len() int { return len(t.records) }

// Genes returns all gene names in lexicographic order.
func (t *Table) Genes() []string {
	genes := make([]string, 0, len(t.records))
	for g := range t.records {
		genes = append(genes, g)
	}
	sort.Strings(genes)
	return genes
}

// GeneMapper remaps gene or transcript identifiers to the naming scheme used
// by the network, via an external annotation source. It is only consulted
// when the direct overlap between table and network is poor.
type GeneMapper interface {
	// MapIDs returns a replacement identifier for each input ID it can
	// resolve; unresolved IDs keep their original name.
	MapIDs(ids []string) (map[string]string, error)
}

// ReadOptions controls expression table construction.
type ReadOptions struct {
	// PadjCutoff flags genes as differentially expressed. Default 0.05.
	PadjCutoff float64

	// Mapper, when non-nil, is invoked if fewer than 60% of network genes
	// are found in the table. If remapping does not improve the overlap,
	// the original identifiers are kept.
	Mapper GeneMapper

	// Logger receives progress lines; nil discards them.
	Logger io.Writer
}

type entry struct {
	gene string
	padj float64
	lfc  float64
}

func (o ReadOptions) logf(format string, args ...any) {
	if o.Logger != nil {
		fmt.Fprintf(o.Logger, format+"\n", args...)
	}
}

// Read parses a differential expression TSV (index column of gene IDs plus
// named columns padj and log2FoldChange) into a Table. Rows with
// unparseable values are dropped; duplicated genes are averaged. networkGenes
// is the gene universe of the (diff) network, used for the overlap check.
func Read(path string, networkGenes map[string]struct{}, opts ReadOptions) (*Table, error) {
	if opts.PadjCutoff == 0 {
		opts.PadjCutoff = 0.05
	}

	entries, err := readEntries(path)
	if err != nil {
		return nil, err
	}

	pct := overlap(entries, networkGenes)
	opts.logf("%d%% of network genes found in the expression table", int(100*pct))

	if pct < minOverlap && opts.Mapper != nil {
		opts.logf("low overlap, remapping expression table identifiers")
		remapped, err := remap(entries, opts.Mapper)
		if err != nil {
			return nil, fmt.Errorf("remapping gene identifiers: %w", err)
		}
		if newPct := overlap(remapped, networkGenes); newPct > pct {
			opts.logf("%d%% of network genes found after remapping", int(100*newPct))
			entries = remapped
			pct = newPct
		} else {
			opts.logf("remapping did not improve overlap, keeping original identifiers")
		}
	}

	if count(entries, networkGenes) == 0 {
		return nil, ErrNoOverlap
	}

	entries = averageDuplicates(entries, opts)

	records := make(map[string]Record, len(entries))
	for _, e := range entries {
		fc := math.Abs(e.lfc)
		score := 0.0
		if e.padj < opts.PadjCutoff {
			score = fc
		}
		records[e.gene] = Record{Score: score, AbsFC: fc, RealFC: e.lfc}
	}
	return &Table{records: records}, nil
}

func readEntries(path string) ([]entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening expression file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading expression header: %w", err)
	}
	padjCol, lfcCol := -1, -1
	for i, h := range header {
		switch h {
		case "padj":
			padjCol = i
		case "log2FoldChange":
			lfcCol = i
		}
	}
	if padjCol < 0 {
		return nil, fmt.Errorf("%w: padj", ErrMissingColumn)
	}
	if lfcCol < 0 {
		return nil, fmt.Errorf("%w: log2FoldChange", ErrMissingColumn)
	}

	var entries []entry
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading expression file: %w", err)
		}
		padj, err := strconv.ParseFloat(rec[padjCol], 64)
		if err != nil || math.IsNaN(padj) {
			continue // NA rows are dropped, not fatal
		}
		lfc, err := strconv.ParseFloat(rec[lfcCol], 64)
		if err != nil || math.IsNaN(lfc) {
			continue
		}
		entries = append(entries, entry{gene: rec[0], padj: padj, lfc: lfc})
	}
	return entries, nil
}

// overlap returns the fraction of network genes present in the entries.
func overlap(entries []entry, networkGenes map[string]struct{}) float64 {
	if len(networkGenes) == 0 {
		return 0
	}
	return float64(count(entries, networkGenes)) / float64(len(networkGenes))
}

func count(entries []entry, networkGenes map[string]struct{}) int {
	seen := make(map[string]struct{})
	for _, e := range entries {
		if _, ok := networkGenes[e.gene]; ok {
			seen[e.gene] = struct{}{}
		}
	}
	return len(seen)
}

func remap(entries []entry, mapper GeneMapper) ([]entry, error) {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.gene
	}
	mapping, err := mapper.MapIDs(ids)
	if err != nil {
		return nil, err
	}

	// After remapping, several transcripts can collapse onto one gene;
	// keep the most significant values per gene.
	best := make(map[string]entry)
	order := make([]string, 0, len(entries))
	for _, e := range entries {
		gene := e.gene
		if mapped, ok := mapping[gene]; ok {
			gene = mapped
		}
		cur, ok := best[gene]
		if !ok {
			best[gene] = entry{gene: gene, padj: e.padj, lfc: e.lfc}
			order = append(order, gene)
			continue
		}
		cur.padj = math.Min(cur.padj, e.padj)
		cur.lfc = math.Min(cur.lfc, e.lfc)
		best[gene] = cur
	}

	out := make([]entry, len(order))
	for i, gene := range order {
		out[i] = best[gene]
	}
	return out, nil
}

// averageDuplicates collapses duplicated gene rows by averaging their
// values, keeping first-appearance order.
func averageDuplicates(entries []entry, opts ReadOptions) []entry {
	counts := make(map[string]int, len(entries))
	for _, e := range entries {
		counts[e.gene]++
	}

	dup := false
	for gene, n := range counts {
		if n > 1 {
			if !dup {
				opts.logf("duplicated gene names detected (e.g. %q), averaging values", gene)
				dup = true
			}
		}
	}
	if !dup {
		return entries
	}

	type acc struct {
		padj, lfc float64
		n         int
	}
	sums := make(map[string]*acc, len(counts))
	order := make([]string, 0, len(counts))
	for _, e := range entries {
		a, ok := sums[e.gene]
		if !ok {
			a = &acc{}
			sums[e.gene] = a
			order = append(order, e.gene)
		}
		a.padj += e.padj
		a.lfc += e.lfc
		a.n++
	}

	out := make([]entry, len(order))
	for i, gene := range order {
		a := sums[gene]
		out[i] = entry{gene: gene, padj: a.padj / float64(a.n), lfc: a.lfc / float64(a.n)}
	}
	return out
}
