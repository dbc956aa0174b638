// Package kernel builds and resamples point-spread-function kernels.
package kernel

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// Kernel is a row-major PSF image. Kernels produced by this package have
// odd dimensions so the center pixel is (Width/2, Height/2).
type Kernel struct {
	Width, Height int
	Data          []float64
}

// At returns the value at (x, y), or 0 outside the kernel.
func (k *Kernel) At(x, y int) float64 {
	if x < 0 || x >= k.Width || y < 0 || y >= k.Height {
		return 0
	}
	return k.Data[y*k.Width+x]
}

// Normalize scales the kernel to unit sum. A kernel with a non-positive
// sum is left unchanged.
func (k *Kernel) Normalize() {
	if s := floats.Sum(k.Data); s > 0 {
		floats.Scale(1/s, k.Data)
	}
}

// sigmaFromFWHM converts a Gaussian full width at half maximum to sigma.
func sigmaFromFWHM(fwhm float64) float64 {
	return fwhm / (2 * math.Sqrt(2*math.Ln2))
}

// OptimalSize returns the odd kernel size covering three sigma of a
// Gaussian with the given FWHM.
func OptimalSize(fwhm float64) int {
	if fwhm <= 0 {
		return 1
	}
	return 2*int(math.Ceil(3*sigmaFromFWHM(fwhm))) + 1
}

// Gaussian returns a size x size circular Gaussian with the given FWHM in
// pixels, integrated over each pixel and normalized to unit sum. A size
// below 1 selects OptimalSize; even sizes are rounded up to odd. A
// non-positive FWHM yields the unit impulse.
func Gaussian(fwhm float64, size int) *Kernel {
	if size < 1 {
		size = OptimalSize(fwhm)
	}
	size |= 1
	k := &Kernel{Width: size, Height: size, Data: make([]float64, size*size)}
	half := size / 2
	if fwhm <= 0 {
		k.Data[half*size+half] = 1
		return k
	}

	sigma := sigmaFromFWHM(fwhm)
	// separable: integrate the 1D Gaussian over each pixel
	line := make([]float64, size)
	cdf := func(x float64) float64 { return 0.5 * math.Erfc(-x/(sigma*math.Sqrt2)) }
	for i := range line {
		x := float64(i - half)
		line[i] = cdf(x+0.5) - cdf(x-0.5)
	}
	for y := range size {
		for x := range size {
			k.Data[y*size+x] = line[y] * line[x]
		}
	}
	k.Normalize()
	return k
}

// Moffat returns a size x size Moffat kernel with the given FWHM in pixels
// and concentration, sampled at pixel centers and normalized to unit sum.
// A size below 1 selects 2*ceil(2*fwhm)+1.
func Moffat(fwhm, con float64, size int) *Kernel {
	if size < 1 {
		size = 2*int(math.Ceil(2*max(fwhm, 0))) + 1
	}
	size |= 1
	k := &Kernel{Width: size, Height: size, Data: make([]float64, size*size)}
	half := size / 2
	if fwhm <= 0 || con <= 0 {
		k.Data[half*size+half] = 1
		return k
	}
	rd := fwhm / (2 * math.Sqrt(math.Pow(2, 1/con)-1))
	for y := range size {
		dy := float64(y-half) / rd
		for x := range size {
			dx := float64(x-half) / rd
			k.Data[y*size+x] = math.Pow(1+dx*dx+dy*dy, -con)
		}
	}
	k.Normalize()
	return k
}

// Resample maps a kernel sampled at pixel scale (fromX, fromY) onto a grid
// of pixel scale (toX, toY) by bilinear interpolation about the kernel
// center. The result has odd dimensions and the same sum as k.
func Resample(k *Kernel, fromX, fromY, toX, toY float64) *Kernel {
	if fromX == toX && fromY == toY {
		out := &Kernel{Width: k.Width, Height: k.Height, Data: make([]float64, len(k.Data))}
		copy(out.Data, k.Data)
		return out
	}

	w := max(int(math.Ceil(float64(k.Width)*fromX/toX)), 1) | 1
	h := max(int(math.Ceil(float64(k.Height)*fromY/toY)), 1) | 1
	out := &Kernel{Width: w, Height: h, Data: make([]float64, w*h)}

	// physical center of the source kernel, in source pixel units
	scx, scy := float64(k.Width-1)/2, float64(k.Height-1)/2
	for y := range h {
		sy := scy + float64(y-h/2)*toY/fromY
		for x := range w {
			sx := scx + float64(x-w/2)*toX/fromX
			out.Data[y*w+x] = bilinear(k, sx, sy)
		}
	}

	if s := floats.Sum(out.Data); s > 0 {
		floats.Scale(floats.Sum(k.Data)/s, out.Data)
	}
	return out
}

func bilinear(k *Kernel, x, y float64) float64 {
	x0, y0 := math.Floor(x), math.Floor(y)
	fx, fy := x-x0, y-y0
	ix, iy := int(x0), int(y0)
	return (1-fx)*(1-fy)*k.At(ix, iy) +
		fx*(1-fy)*k.At(ix+1, iy) +
		(1-fx)*fy*k.At(ix, iy+1) +
		fx*fy*k.At(ix+1, iy+1)
}

type cacheKey struct {
	kind      byte
	fwhm, con int64
	size      int
}

// cache holds generated kernels keyed by quantized parameters.
type cache struct {
	mu     sync.RWMutex
	items  map[cacheKey]*Kernel
	maxLen int
}

var defaultCache = &cache{items: make(map[cacheKey]*Kernel), maxLen: 32}

func (c *cache) get(key cacheKey, gen func() *Kernel) *Kernel {
	c.mu.RLock()
	if k, ok := c.items[key]; ok {
		c.mu.RUnlock()
		return k
	}
	c.mu.RUnlock()

	k := gen()

	c.mu.Lock()
	if len(c.items) >= c.maxLen {
		// evict half, in map order
		n := 0
		for key := range c.items {
			delete(c.items, key)
			n++
			if n >= c.maxLen/2 {
				break
			}
		}
	}
	c.items[key] = k
	c.mu.Unlock()
	return k
}

func quantize(v float64) int64 { return int64(math.Round(v * 1e6)) }

// CachedGaussian is Gaussian with memoization. The returned kernel is
// shared and must not be modified.
func CachedGaussian(fwhm float64, size int) *Kernel {
	key := cacheKey{kind: 'g', fwhm: quantize(fwhm), size: size}
	return defaultCache.get(key, func() *Kernel { return Gaussian(fwhm, size) })
}

// CachedMoffat is Moffat with memoization. The returned kernel is shared
// and must not be modified.
func CachedMoffat(fwhm, con float64, size int) *Kernel {
	key := cacheKey{kind: 'm', fwhm: quantize(fwhm), con: quantize(con), size: size}
	return defaultCache.get(key, func() *Kernel { return Moffat(fwhm, con, size) })
}
