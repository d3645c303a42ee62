package utils

import (
	"math"
	"testing"
)

func TestNormalizeL2(t *testing.T) {
	x := []float32{3, 4}
	NormalizeL2(x)
	if math.Abs(float64(x[0])-0.6) > 1e-6 || math.Abs(float64(x[1])-0.8) > 1e-6 {
		t.Errorf("NormalizeL2 = %v", x)
	}
	zero := []float32{0, 0}
	NormalizeL2(zero)
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero vector changed: %v", zero)
	}
}

func TestMeanPool(t *testing.T) {
	data := []float32{
		1, 2,
		3, 4,
		100, 100,
	}
	got := MeanPool(data, []int64{1, 1, 0}, 3, 2)
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("masked MeanPool = %v, want [2 3]", got)
	}
	all := MeanPool(data[:4], nil, 2, 2)
	if all[0] != 2 || all[1] != 3 {
		t.Errorf("unmasked MeanPool = %v", all)
	}
	if MeanPool(data, []int64{0, 0, 0}, 3, 2) != nil {
		t.Error("fully masked input should return nil")
	}
	if MeanPool(data, nil, 4, 2) != nil {
		t.Error("short data should return nil")
	}
}

func TestAllFinite(t *testing.T) {
	if !AllFinite([]float32{0, 1.5, -2}) {
		t.Error("finite values reported as non-finite")
	}
	if AllFinite([]float32{1, float32(math.NaN())}) {
		t.Error("NaN not detected")
	}
	if AllFinite([]float32{float32(math.Inf(1))}) {
		t.Error("Inf not detected")
	}
}
