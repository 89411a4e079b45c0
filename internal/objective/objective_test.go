package objective

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/descentviz/internal/optim"
)

func TestLookup(t *testing.T) {
	for _, name := range []string{"quadratic", "booth", "beale", "rosenbrock"} {
		fn, err := Lookup(name)
		if err != nil {
			t.Fatalf("Lookup(%q) failed: %v", name, err)
		}
		if fn.Name != name {
			t.Errorf("Lookup(%q) returned %q", name, fn.Name)
		}
	}
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("himmelblau")
	if !errors.Is(err, ErrUnknownFunction) {
		t.Fatalf("Expected ErrUnknownFunction, got %v", err)
	}

	var unknown *UnknownFunctionError
	if !errors.As(err, &unknown) || unknown.Name != "himmelblau" {
		t.Errorf("Expected UnknownFunctionError for himmelblau, got %#v", err)
	}
}

func TestNames(t *testing.T) {
	want := []string{"beale", "booth", "quadratic", "rosenbrock"}
	got := Names()
	if len(got) != len(want) {
		t.Fatalf("Expected %d names, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestQuadraticGradient(t *testing.T) {
	fn, _ := Lookup("quadratic")
	g := fn.Gradient(optim.Vector{5, 5})
	if g != (optim.Vector{10, 10}) {
		t.Errorf("Gradient at (5,5) = %v, want (10,10)", g)
	}
}

func TestMinimaAreStationary(t *testing.T) {
	for _, name := range Names() {
		fn, _ := Lookup(name)
		if v := fn.Value(fn.Minimum); math.Abs(v) > 1e-12 {
			t.Errorf("%s: value at minimum = %g, want 0", name, v)
		}
		g := fn.Gradient(fn.Minimum)
		if math.Abs(g[0]) > 1e-12 || math.Abs(g[1]) > 1e-12 {
			t.Errorf("%s: gradient at minimum = %v, want 0", name, g)
		}
		if !fn.Domain.Contains(fn.Minimum) {
			t.Errorf("%s: minimum %v outside domain %+v", name, fn.Minimum, fn.Domain)
		}
	}
}

func TestAnalyticGradientsMatchNumeric(t *testing.T) {
	points := []optim.Vector{
		{0, 0}, {1, 1}, {-1.5, 2}, {3, 0.5}, {2.2, -0.7}, {-0.3, -1.9},
	}
	for _, name := range Names() {
		fn, _ := Lookup(name)
		for _, p := range points {
			if e := GradientError(fn, p); e > 1e-5 {
				t.Errorf("%s at %v: relative gradient error %g", name, p, e)
			}
		}
	}
}

func TestNumericGradientQuadratic(t *testing.T) {
	fn, _ := Lookup("quadratic")
	g := NumericGradient(fn.Value, optim.Vector{3, -4})
	if math.Abs(g[0]-6) > 1e-8 || math.Abs(g[1]+8) > 1e-8 {
		t.Errorf("NumericGradient = %v, want (6,-8)", g)
	}
}

func TestDomainContains(t *testing.T) {
	d := Domain{-1, 1, 0, 2}
	if !d.Contains(optim.Vector{0, 1}) {
		t.Error("Expected (0,1) inside domain")
	}
	if d.Contains(optim.Vector{0, -0.5}) {
		t.Error("Expected (0,-0.5) outside domain")
	}
}
