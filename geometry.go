package profit

import (
	"math"

	"honnef.co/go/curve"
)

// transform maps image coordinates into the intrinsic frame of a profile:
// translate to the profile center, rotate by the position angle, and stretch
// the minor axis by 1/axrat so isophotes become circles (or superellipse
// contours when boxy).
type transform struct {
	aff curve.Affine
	// exponent of the generalized radius, box+2.
	p float64
	// invAxrat is 1/axrat, used when perturbing along the minor axis.
	invAxrat float64
}

func newTransform(xcen, ycen, angDeg, axrat, box float64) transform {
	ang := math.Mod(angDeg, 360)
	if ang < 0 {
		ang += 360
	}
	aff := curve.Translate(curve.Vec(-xcen, -ycen)).
		ThenRotate(ang * math.Pi / 180).
		ThenScale(1, 1/axrat)
	return transform{aff: aff, p: box + 2, invAxrat: 1 / axrat}
}

// apply returns the profile-frame coordinates of the image point (x, y).
func (t transform) apply(x, y float64) (float64, float64) {
	return curve.Pt(x, y).Transform(t.aff).Splat()
}

// radius returns the generalized radius (|x|^p + |y|^p)^(1/p) of a
// profile-frame point.
func (t transform) radius(x, y float64) float64 {
	if t.p == 2 {
		return math.Hypot(x, y)
	}
	return math.Pow(math.Pow(math.Abs(x), t.p)+math.Pow(math.Abs(y), t.p), 1/t.p)
}
