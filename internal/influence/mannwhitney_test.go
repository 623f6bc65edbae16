package influence

import (
	"errors"
	"math"
	"testing"
)

func TestMannWhitneyUSeparatedSamples(t *testing.T) {
	p, err := mannWhitneyU([]float64{1, 2, 3}, []float64{4, 5, 6})
	if err != nil {
		t.Fatal(err)
	}
	// Normal approximation with continuity correction: z = 4/sqrt(5.25).
	if math.Abs(p-0.0809) > 1e-3 {
		t.Errorf("p = %v, want ≈0.0809", p)
	}
}

func TestMannWhitneyUTieCorrection(t *testing.T) {
	p, err := mannWhitneyU([]float64{1, 1, 2}, []float64{1, 2, 2})
	if err != nil {
		t.Fatal(err)
	}
	// Tie term 48 shrinks sigma to sqrt(4.05); z = 1/sqrt(4.05).
	if math.Abs(p-0.6193) > 1e-3 {
		t.Errorf("p = %v, want ≈0.6193", p)
	}
}

func TestMannWhitneyUSymmetric(t *testing.T) {
	x := []float64{0.1, 0.9, 1.4, 2.2}
	y := []float64{0.3, 0.5, 0.6}

	p1, err := mannWhitneyU(x, y)
	if err != nil {
		t.Fatal(err)
	}
	p2, err := mannWhitneyU(y, x)
	if err != nil {
		t.Fatal(err)
	}
	// Two-sided with U = max(U1, U2): swapping the samples cannot change p.
	if math.Abs(p1-p2) > 1e-12 {
		t.Errorf("p(x,y) = %v, p(y,x) = %v", p1, p2)
	}
}

func TestMannWhitneyUEmptySide(t *testing.T) {
	if _, err := mannWhitneyU(nil, []float64{1, 2}); !errors.Is(err, ErrDegenerateSamples) {
		t.Errorf("empty x: got %v, want ErrDegenerateSamples", err)
	}
	if _, err := mannWhitneyU([]float64{1, 2}, nil); !errors.Is(err, ErrDegenerateSamples) {
		t.Errorf("empty y: got %v, want ErrDegenerateSamples", err)
	}
}

func TestMannWhitneyUAllTied(t *testing.T) {
	_, err := mannWhitneyU([]float64{2, 2}, []float64{2, 2})
	if !errors.Is(err, ErrDegenerateSamples) {
		t.Errorf("got %v, want ErrDegenerateSamples", err)
	}
}

func TestMidranks(t *testing.T) {
	ranks, tieTerm := midranks([]float64{3, 1, 1, 2})
	want := []float64{4, 1.5, 1.5, 3}
	for i := range want {
		if ranks[i] != want[i] {
			t.Errorf("ranks[%d] = %v, want %v", i, ranks[i], want[i])
		}
	}
	// One group of two tied values: 2³−2 = 6.
	if tieTerm != 6 {
		t.Errorf("tieTerm = %v, want 6", tieTerm)
	}
}
