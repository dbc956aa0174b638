package profit

import (
	"fmt"
	"math"
)

// Ferrer is the Ferrer (bar) profile
//
//	I(r) = Ie * (1 - (r/rout)^(2-b))^a   for r < rout
//
// and zero outside rout.
type Ferrer struct {
	Radial
	// Rout is the outer truncation radius.
	Rout float64
	// A is the outer slope.
	A float64
	// B is the central slope; must be below 2.
	B float64
}

// NewFerrer returns a Ferrer profile with rout = 3, a = 1 and b = 1.
func NewFerrer() *Ferrer {
	f := &Ferrer{Rout: 3, A: 1, B: 1}
	f.Radial = newRadial(KindFerrer, f)
	return f
}

func (f *Ferrer) params(t paramTable) {
	t.addFloat("rout", &f.Rout)
	t.addFloat("a", &f.A)
	t.addFloat("b", &f.B)
}

func (f *Ferrer) validate(kind string) error {
	switch {
	case !(f.Rout > 0):
		return paramErr(kind, "rout", f.Rout, "must be positive")
	case !(f.A >= 0):
		return paramErr(kind, "a", f.A, "must not be negative")
	case !(f.B < 2):
		return paramErr(kind, "b", f.B, "must be less than 2")
	}
	return nil
}

func (f *Ferrer) prepare(SpecialFunctions) error { return nil }

func (f *Ferrer) scaleRadius() float64 { return f.Rout }

func (f *Ferrer) intensity(r float64) float64 {
	if r >= f.Rout {
		return 0
	}
	return math.Pow(1-math.Pow(r/f.Rout, 2-f.B), f.A)
}

// flux is 2*pi*rout^2/c * B(2/c, a+1) with c = 2-b.
func (f *Ferrer) flux(sf SpecialFunctions, rmax float64) (float64, error) {
	if rmax < f.Rout {
		return numericFlux(f.intensity, rmax, f.Rout), nil
	}
	if sf.Beta == nil {
		return 0, fmt.Errorf("ferrer: beta: %w", ErrNoSpecialFunction)
	}
	c := 2 - f.B
	return 2 * math.Pi * f.Rout * f.Rout / c * sf.Beta(2/c, f.A+1), nil
}
