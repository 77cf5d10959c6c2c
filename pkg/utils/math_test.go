package utils

import (
	"math"
	"testing"
)

func TestNormalizeL2(t *testing.T) {
	x := []float32{3, 4}
	norm := NormalizeL2(x)
	if math.Abs(norm-5) > 1e-9 {
		t.Errorf("norm = %v, want 5", norm)
	}
	if !IsUnit(x, 1e-6) {
		t.Errorf("not unit after normalize: %v", x)
	}
	if math.Abs(float64(x[0])-0.6) > 1e-6 || math.Abs(float64(x[1])-0.8) > 1e-6 {
		t.Errorf("got %v", x)
	}
}

func TestNormalizeL2_zero(t *testing.T) {
	x := []float32{0, 0, 0}
	if NormalizeL2(x) != 0 {
		t.Error("zero vector norm should be 0")
	}
	for _, v := range x {
		if v != 0 {
			t.Errorf("zero vector changed: %v", x)
		}
	}
}

func TestNormalized_copies(t *testing.T) {
	x := []float32{2, 0}
	y := Normalized(x)
	if x[0] != 2 {
		t.Error("input modified")
	}
	if y[0] != 1 {
		t.Errorf("got %v", y)
	}
}
