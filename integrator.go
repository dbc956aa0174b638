package profit

import "math"

// integrator estimates the mean of a profile over a rectangular image cell
// by adaptive subsampling.
//
// A cell at level L is split into resolution x resolution sub-cells sampled
// at their centers. A sub-cell is refined further when the relative
// difference between its sample and a test sample displaced by half a
// sub-cell along the minor axis exceeds acc. The depth is bounded by
// maxRecursions: a cell at level >= maxRecursions is represented by its
// center sample alone, so maxRecursions = 0 means center sampling.
type integrator struct {
	tr            transform
	value         func(r float64) float64
	resolution    int
	maxRecursions int
	acc           float64
}

// sample evaluates the profile at the image point (x, y).
func (it *integrator) sample(x, y float64) float64 {
	xp, yp := it.tr.apply(x, y)
	return it.value(it.tr.radius(xp, yp))
}

// integrate returns the mean profile value over [x0,x1] x [y0,y1].
func (it *integrator) integrate(x0, x1, y0, y1 float64, level int) float64 {
	if it.resolution <= 1 || level >= it.maxRecursions {
		return it.sample((x0+x1)/2, (y0+y1)/2)
	}

	n := it.resolution
	xbin := (x1 - x0) / float64(n)
	ybin := (y1 - y0) / float64(n)
	refine := level+1 < it.maxRecursions
	// displacement of the test sample in the profile frame
	dy := math.Abs(ybin / 2 * it.tr.invAxrat)

	var total float64
	for i := 0; i < n; i++ {
		sx0 := x0 + float64(i)*xbin
		for j := 0; j < n; j++ {
			sy0 := y0 + float64(j)*ybin
			xp, yp := it.tr.apply(sx0+xbin/2, sy0+ybin/2)
			v := it.value(it.tr.radius(xp, yp))

			if refine {
				test := it.value(it.tr.radius(xp, math.Abs(yp)+dy))
				if math.Abs(test/v-1) > it.acc {
					v = it.integrate(sx0, sx0+xbin, sy0, sy0+ybin, level+1)
				}
			}
			total += v
		}
	}
	return total / float64(n*n)
}
