package influence

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDenseRank(t *testing.T) {
	got := denseRank([]float64{0.5, 0.1, 0.5, 0.9})
	want := []float64{2, 1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("rank[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestMinmaxScale(t *testing.T) {
	got := minmaxScale([]float64{1, 3, 2})
	want := []float64{0, 1, 0.5}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("scaled[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestMinmaxScaleConstantInput(t *testing.T) {
	got := minmaxScale([]float64{4, 4, 4})
	for i, v := range got {
		if v != 0 {
			t.Errorf("scaled[%d] = %v, want 0 for constant input", i, v)
		}
	}
}

func TestRankOrdersByScaledSum(t *testing.T) {
	records := []ScoreRecord{
		{Factor: "low", TargetScore: 1, GScore: 0.1},
		{Factor: "high", TargetScore: 10, GScore: 2.0},
		{Factor: "mid", TargetScore: 5, GScore: 1.0},
	}

	rows := Rank(records)
	wantOrder := []string{"high", "mid", "low"}
	for i, factor := range wantOrder {
		if rows[i].Factor != factor {
			t.Errorf("rows[%d].Factor = %q, want %q", i, rows[i].Factor, factor)
		}
	}

	if rows[0].SumScaled != 1 {
		t.Errorf("top SumScaled = %v, want 1", rows[0].SumScaled)
	}
	if rows[len(rows)-1].SumScaled != 0 {
		t.Errorf("bottom SumScaled = %v, want 0", rows[len(rows)-1].SumScaled)
	}
	// Sum stays on the raw scale.
	if math.Abs(rows[0].Sum-12.0) > 1e-12 {
		t.Errorf("top Sum = %v, want 12.0", rows[0].Sum)
	}
}

func TestRankTiedFactorsShareScaledScores(t *testing.T) {
	records := []ScoreRecord{
		{Factor: "a", TargetScore: 3, GScore: 1},
		{Factor: "b", TargetScore: 3, GScore: 1},
		{Factor: "c", TargetScore: 1, GScore: 0.5},
	}

	rows := Rank(records)
	if rows[0].SumScaled != rows[1].SumScaled {
		t.Errorf("tied factors got different SumScaled: %v vs %v", rows[0].SumScaled, rows[1].SumScaled)
	}
	// Stable sort keeps the input order for the tie.
	if rows[0].Factor != "a" || rows[1].Factor != "b" {
		t.Errorf("tie order = %q, %q, want a, b", rows[0].Factor, rows[1].Factor)
	}
}

func TestWriteRanked(t *testing.T) {
	rows := Rank([]ScoreRecord{
		{Factor: "FOXK2", TargetScore: 2, GScore: 1, DirectTargets: 12, FactorFC: 1.83},
		{Factor: "ZIC2", TargetScore: 1, GScore: 0.5, DirectTargets: 4, FactorFC: 0.6},
	})

	path := filepath.Join(t.TempDir(), "influence.tsv")
	if err := WriteRanked(rows, path); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	if lines[0] != rankedHeader {
		t.Errorf("header = %q", lines[0])
	}
	for i, line := range lines {
		if got := len(strings.Split(line, "\t")); got != 9 {
			t.Errorf("line %d has %d columns, want 9", i, got)
		}
	}
	if !strings.HasPrefix(lines[1], "FOXK2\t") {
		t.Errorf("first data row = %q, want FOXK2 on top", lines[1])
	}
}
