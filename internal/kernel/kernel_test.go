package kernel

import (
	"math"
	"testing"
)

func sum(k *Kernel) float64 {
	var s float64
	for _, v := range k.Data {
		s += v
	}
	return s
}

func TestGaussianNormalized(t *testing.T) {
	for _, fwhm := range []float64{0.5, 1, 2.5, 4, 10} {
		k := Gaussian(fwhm, 0)
		if math.Abs(sum(k)-1) > 1e-12 {
			t.Errorf("Gaussian(%v) sum = %v, want 1", fwhm, sum(k))
		}
		if k.Width%2 != 1 || k.Height%2 != 1 {
			t.Errorf("Gaussian(%v) size = %dx%d, want odd", fwhm, k.Width, k.Height)
		}
	}
}

func TestGaussianImpulse(t *testing.T) {
	k := Gaussian(0, 5)
	if k.At(2, 2) != 1 || sum(k) != 1 {
		t.Errorf("Gaussian(0, 5) center = %v sum = %v, want impulse", k.At(2, 2), sum(k))
	}
}

func TestGaussianSymmetricPeak(t *testing.T) {
	k := Gaussian(3, 11)
	c := k.Width / 2
	peak := k.At(c, c)
	for y := range k.Height {
		for x := range k.Width {
			if v := k.At(x, y); v > peak {
				t.Fatalf("value at (%d,%d) = %v exceeds center %v", x, y, v, peak)
			}
			if d := math.Abs(k.At(x, y) - k.At(k.Width-1-x, k.Height-1-y)); d > 1e-15 {
				t.Errorf("asymmetric at (%d,%d): diff %v", x, y, d)
			}
		}
	}
}

func TestGaussianEvenSizeRoundedUp(t *testing.T) {
	if k := Gaussian(2, 8); k.Width != 9 {
		t.Errorf("Gaussian(2, 8).Width = %d, want 9", k.Width)
	}
}

func TestOptimalSize(t *testing.T) {
	tests := []struct {
		fwhm float64
		want int
	}{
		{0, 1},
		{-1, 1},
		{2, 7},  // 3 sigma = 2.55
		{4, 13}, // 3 sigma = 5.10
	}
	for _, tt := range tests {
		if got := OptimalSize(tt.fwhm); got != tt.want {
			t.Errorf("OptimalSize(%v) = %d, want %d", tt.fwhm, got, tt.want)
		}
	}
}

func TestMoffatHalfMaximum(t *testing.T) {
	k := Moffat(4, 3, 21)
	c := k.Width / 2
	// At r = fwhm/2 the profile is half the center value.
	ratio := k.At(c+2, c) / k.At(c, c)
	if math.Abs(ratio-0.5) > 1e-12 {
		t.Errorf("Moffat value at fwhm/2 / center = %v, want 0.5", ratio)
	}
	if math.Abs(sum(k)-1) > 1e-12 {
		t.Errorf("Moffat sum = %v, want 1", sum(k))
	}
}

func TestResampleIdentity(t *testing.T) {
	k := Gaussian(2, 7)
	r := Resample(k, 1, 1, 1, 1)
	for i := range k.Data {
		if r.Data[i] != k.Data[i] {
			t.Fatalf("Resample identity differs at %d", i)
		}
	}
	r.Data[0] = 42
	if k.Data[0] == 42 {
		t.Error("Resample must copy")
	}
}

func TestResampleKeepsSumAndCenter(t *testing.T) {
	k := Gaussian(4, 15)
	r := Resample(k, 0.5, 0.5, 1, 1)
	if r.Width%2 != 1 || r.Height%2 != 1 {
		t.Fatalf("Resample size = %dx%d, want odd", r.Width, r.Height)
	}
	if r.Width != 9 {
		t.Errorf("Resample width = %d, want 9", r.Width)
	}
	if math.Abs(sum(r)-sum(k)) > 1e-12 {
		t.Errorf("Resample sum = %v, want %v", sum(r), sum(k))
	}
	c := r.Width / 2
	for y := range r.Height {
		for x := range r.Width {
			if r.At(x, y) > r.At(c, c) {
				t.Fatalf("peak moved to (%d,%d)", x, y)
			}
		}
	}
}

func TestCachedGaussianShared(t *testing.T) {
	a := CachedGaussian(2.5, 9)
	b := CachedGaussian(2.5, 9)
	if a != b {
		t.Error("CachedGaussian should return the same kernel for equal parameters")
	}
	if c := CachedMoffat(2.5, 2, 9); c == a {
		t.Error("Moffat and Gaussian must not share cache entries")
	}
}

func TestCacheEviction(t *testing.T) {
	c := &cache{items: make(map[cacheKey]*Kernel), maxLen: 4}
	for i := range 10 {
		c.get(cacheKey{kind: 'g', size: i}, func() *Kernel { return Gaussian(1, 3) })
	}
	if len(c.items) > 4 {
		t.Errorf("cache len = %d, want <= 4", len(c.items))
	}
}
