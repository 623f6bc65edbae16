package grn

import (
	"errors"
	"testing"
)

func TestAddEdgeRejectsBadWeights(t *testing.T) {
	g := NewGraph(false)
	for _, w := range []float64{0, -0.1, 1.5} {
		if err := g.AddEdge("TF1", "g1", w, nil); !errors.Is(err, ErrBadWeight) {
			t.Errorf("weight %v: got %v, want ErrBadWeight", w, err)
		}
	}
	if err := g.AddEdge("TF1", "g1", 1.0, nil); err != nil {
		t.Fatalf("weight 1.0 should be accepted: %v", err)
	}
}

func TestAddEdgeOverwritesDuplicate(t *testing.T) {
	g := NewGraph(false)
	if err := g.AddEdge("TF1", "g1", 0.5, nil); err != nil {
		t.Fatal(err)
	}
	if err := g.AddEdge("TF1", "g1", 0.9, nil); err != nil {
		t.Fatal(err)
	}

	if g.NumEdges() != 1 {
		t.Fatalf("NumEdges = %d, want 1", g.NumEdges())
	}
	from, _ := g.Lookup("TF1")
	to, _ := g.Lookup("g1")
	e, ok := g.FindEdge(from, to)
	if !ok {
		t.Fatal("edge TF1 → g1 not found")
	}
	if e.Weight != 0.9 {
		t.Errorf("Weight = %v, want 0.9 (last write wins)", e.Weight)
	}
}

func TestDenseIDsAssignedInFirstAppearanceOrder(t *testing.T) {
	g := NewGraph(false)
	edges := [][2]string{{"TF1", "g1"}, {"TF1", "g2"}, {"TF2", "g1"}}
	for _, e := range edges {
		if err := g.AddEdge(e[0], e[1], 0.5, nil); err != nil {
			t.Fatal(err)
		}
	}

	want := []string{"TF1", "g1", "g2", "TF2"}
	if g.NumNodes() != len(want) {
		t.Fatalf("NumNodes = %d, want %d", g.NumNodes(), len(want))
	}
	for i, name := range want {
		if got := g.Name(int32(i)); got != name {
			t.Errorf("Name(%d) = %q, want %q", i, got, name)
		}
	}

	tf1, _ := g.Lookup("TF1")
	if g.OutDegree(tf1) != 2 {
		t.Errorf("OutDegree(TF1) = %d, want 2", g.OutDegree(tf1))
	}
}

func TestFindEdgeMissing(t *testing.T) {
	g := NewGraph(false)
	if err := g.AddEdge("TF1", "g1", 0.5, nil); err != nil {
		t.Fatal(err)
	}
	from, _ := g.Lookup("g1")
	to, _ := g.Lookup("TF1")
	if _, ok := g.FindEdge(from, to); ok {
		t.Error("reverse edge should not exist")
	}
}

func TestSortedNames(t *testing.T) {
	g := NewGraph(false)
	if err := g.AddEdge("ZIC2", "ABCA7", 0.5, nil); err != nil {
		t.Fatal(err)
	}
	if err := g.AddEdge("FOXK2", "ABCA7", 0.5, nil); err != nil {
		t.Fatal(err)
	}

	names := g.SortedNames()
	want := []string{"ABCA7", "FOXK2", "ZIC2"}
	if len(names) != len(want) {
		t.Fatalf("len = %d, want %d", len(names), len(want))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}
