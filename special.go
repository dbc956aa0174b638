package profit

import (
	"math"

	"gonum.org/v1/gonum/mathext"
)

// SpecialFunctions holds the special functions used to normalize profiles.
// They are injected per model so tests and callers can substitute their own
// implementations. A nil field makes the profiles that need it fail
// initialization with ErrNoSpecialFunction.
type SpecialFunctions struct {
	// Gamma is the gamma function.
	Gamma func(x float64) float64
	// Beta is the beta function.
	Beta func(a, b float64) float64
	// GammaIncReg is the regularized lower incomplete gamma function P(a, x).
	GammaIncReg func(a, x float64) float64
	// GammaIncRegInv returns x such that P(a, x) = p.
	GammaIncRegInv func(a, p float64) float64
}

// DefaultSpecialFunctions returns the gonum implementations.
func DefaultSpecialFunctions() SpecialFunctions {
	return SpecialFunctions{
		Gamma:          math.Gamma,
		Beta:           mathext.Beta,
		GammaIncReg:    mathext.GammaIncReg,
		GammaIncRegInv: mathext.GammaIncRegInv,
	}
}

// QGammaInv returns the p-quantile of a gamma distribution with the given
// shape and scale.
func (sf SpecialFunctions) QGammaInv(p, shape, scale float64) (float64, error) {
	if sf.GammaIncRegInv == nil {
		return 0, ErrNoSpecialFunction
	}
	if !(p >= 0 && p <= 1) || !(shape > 0) {
		return 0, paramErr("qgamma", "p", p, "outside the domain of the inverse incomplete gamma")
	}
	x := sf.GammaIncRegInv(shape, p)
	if math.IsNaN(x) {
		return 0, paramErr("qgamma", "shape", shape, "inverse incomplete gamma did not converge")
	}
	return x * scale, nil
}

// boxNorm returns Rbox, the area of the unit circle divided by the area of
// the unit superellipse of exponent p = box+2, computed as
// pi*p / (4*B(1/p, 1+1/p)). It is 1 for box = 0.
func (sf SpecialFunctions) boxNorm(box float64) (float64, error) {
	if box == 0 {
		return 1, nil
	}
	if sf.Beta == nil {
		return 0, ErrNoSpecialFunction
	}
	p := box + 2
	return math.Pi * p / (4 * sf.Beta(1/p, 1+1/p)), nil
}
