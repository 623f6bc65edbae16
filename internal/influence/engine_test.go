package influence

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/larkspur-bio/tfrank/internal/expression"
	"github.com/larkspur-bio/tfrank/internal/grn"
)

// buildEngineGraph creates a single-regulator network: FOXK2 with ten
// targets at probabilities 0.95 down to 0.50 in steps of 0.05.
func buildEngineGraph(t *testing.T) *grn.Graph {
	t.Helper()
	g := grn.NewGraph(false)
	for i := 1; i <= 10; i++ {
		target := fmt.Sprintf("T%02d", i)
		w := 0.95 - 0.05*float64(i-1)
		if err := g.AddEdge("FOXK2", target, w, nil); err != nil {
			t.Fatal(err)
		}
	}
	return g
}

func readTable(t *testing.T, g *grn.Graph, content string) *expression.Table {
	t.Helper()
	path := filepath.Join(t.TempDir(), "degenes.tsv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	genes := make(map[string]struct{})
	for _, name := range g.SortedNames() {
		genes[name] = struct{}{}
	}
	table, err := expression.Read(path, genes, expression.ReadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	return table
}

// engineFixtureTable gives FOXK2 the largest fold change and the ten
// targets distinct smaller ones.
func engineFixtureTable(t *testing.T, g *grn.Graph) *expression.Table {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("gene\tlog2FoldChange\tpadj\n")
	sb.WriteString("FOXK2\t1.83\t0.001\n")
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&sb, "T%02d\t%g\t0.001\n", i, 0.1*float64(i))
	}
	return readTable(t, g, sb.String())
}

func TestEngineRunSingleFactor(t *testing.T) {
	g := buildEngineGraph(t)
	table := engineFixtureTable(t, g)

	e := NewEngine(g, table)
	path := filepath.Join(t.TempDir(), "scores.tsv")
	records, err := e.Run(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	rec := records[0]
	if rec.Factor != "FOXK2" {
		t.Errorf("Factor = %q, want FOXK2", rec.Factor)
	}
	if rec.DirectTargets != 10 {
		t.Errorf("DirectTargets = %d, want 10", rec.DirectTargets)
	}
	// Cutoff 0.6 admits the eight targets with probability 0.60 and above;
	// the boundary value itself is within budget.
	if rec.TotalTargets != 8 {
		t.Errorf("TotalTargets = %d, want 8", rec.TotalTargets)
	}
	if math.Abs(rec.TargetScore-2.58) > 1e-9 {
		t.Errorf("TargetScore = %v, want 2.58", rec.TargetScore)
	}
	if rec.GScore != 1.83 {
		t.Errorf("GScore = %v, want 1.83", rec.GScore)
	}
	if rec.FactorFC != 1.83 {
		t.Errorf("FactorFC = %v, want 1.83", rec.FactorFC)
	}
	// Ten direct targets against FOXK2 itself: U = 10, z = 4.5/sqrt(10).
	if math.Round(rec.PValue*100)/100 != 0.15 {
		t.Errorf("PValue = %v, want ≈0.15", rec.PValue)
	}
	if math.Abs(rec.TargetFCDelta-(-1.28)) > 1e-9 {
		t.Errorf("TargetFCDelta = %v, want -1.28", rec.TargetFCDelta)
	}

	// The same fixture through the pool yields the same record.
	parallel, err := NewEngine(g, table, WithWorkers(4)).Run(filepath.Join(t.TempDir(), "scores.tsv"))
	if err != nil {
		t.Fatal(err)
	}
	if len(parallel) != 1 || parallel[0] != rec {
		t.Errorf("pooled record %+v differs from serial %+v", parallel[0], rec)
	}
}

func TestEngineWritesScoreTable(t *testing.T) {
	g := buildEngineGraph(t)
	table := engineFixtureTable(t, g)

	path := filepath.Join(t.TempDir(), "scores.tsv")
	if _, err := NewEngine(g, table).Run(path); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0] != scoreHeader {
		t.Errorf("header = %q", lines[0])
	}
	if got := len(strings.Split(lines[1], "\t")); got != 8 {
		t.Errorf("row has %d columns, want 8", got)
	}
	if _, err := os.Stat(path + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Error("temporary file left behind")
	}
}

// multiFactorFixture builds five regulators with partially overlapping
// target sets, all increasingly expressed.
func multiFactorFixture(t *testing.T) (*grn.Graph, *expression.Table) {
	t.Helper()
	g := grn.NewGraph(false)
	for f := 0; f < 5; f++ {
		tf := fmt.Sprintf("TF%d", f)
		for i := 0; i < 8; i++ {
			target := fmt.Sprintf("g%02d", (f*3+i)%15)
			w := 0.9 - 0.05*float64(i)
			if err := g.AddEdge(tf, target, w, nil); err != nil {
				t.Fatal(err)
			}
		}
	}

	var sb strings.Builder
	sb.WriteString("gene\tlog2FoldChange\tpadj\n")
	for f := 0; f < 5; f++ {
		fmt.Fprintf(&sb, "TF%d\t%g\t0.001\n", f, 0.5+0.1*float64(f))
	}
	for i := 0; i < 15; i++ {
		fmt.Fprintf(&sb, "g%02d\t%g\t0.01\n", i, 0.2+0.05*float64(i))
	}
	return g, readTable(t, g, sb.String())
}

func TestEngineOutputIndependentOfWorkerCount(t *testing.T) {
	g, table := multiFactorFixture(t)
	dir := t.TempDir()

	var outputs [][]byte
	for _, workers := range []int{1, 4, 13} {
		path := filepath.Join(dir, fmt.Sprintf("scores_%d.tsv", workers))
		e := NewEngine(g, table, WithWorkers(workers))
		if _, err := e.Run(path); err != nil {
			t.Fatal(err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		outputs = append(outputs, data)
	}

	for i := 1; i < len(outputs); i++ {
		if !bytes.Equal(outputs[0], outputs[i]) {
			t.Errorf("output with %d-worker pool differs from serial output", []int{1, 4, 13}[i])
		}
	}
}

func TestEngineRecordsInFactorOrder(t *testing.T) {
	g, table := multiFactorFixture(t)

	records, err := NewEngine(g, table, WithWorkers(4)).Run(filepath.Join(t.TempDir(), "scores.tsv"))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 5 {
		t.Fatalf("got %d records, want 5", len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i-1].Factor >= records[i].Factor {
			t.Errorf("records out of order: %q before %q", records[i-1].Factor, records[i].Factor)
		}
	}
}

func TestEngineNoFactorOverlap(t *testing.T) {
	g := buildEngineGraph(t)
	// Expression records only for targets; the regulator itself is absent.
	table := readTable(t, g,
		"gene\tlog2FoldChange\tpadj\nT01\t1.0\t0.01\nT02\t0.5\t0.01\n")

	_, err := NewEngine(g, table).Run(filepath.Join(t.TempDir(), "scores.tsv"))
	if !errors.Is(err, ErrNoFactorOverlap) {
		t.Fatalf("got %v, want ErrNoFactorOverlap", err)
	}
}

func TestEngineNoUpregulatedFactors(t *testing.T) {
	g := buildEngineGraph(t)
	table := readTable(t, g,
		"gene\tlog2FoldChange\tpadj\nFOXK2\t-1.2\t0.001\nT01\t1.0\t0.01\n")

	_, err := NewEngine(g, table).Run(filepath.Join(t.TempDir(), "scores.tsv"))
	if !errors.Is(err, ErrNoUpregulated) {
		t.Fatalf("got %v, want ErrNoUpregulated", err)
	}
}
