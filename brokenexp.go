package profit

import "math"

// BrokenExponential is a disk with two exponential scale lengths joined
// smoothly at a break radius:
//
//	I(r) = Ie * exp(-r/h1) * (1 + exp(a*(r-rb)))^((1/a)*(1/h1 - 1/h2))
//
// Inside rb the profile falls with scale h1, outside with scale h2; a sets
// the sharpness of the break.
type BrokenExponential struct {
	Radial
	H1 float64
	H2 float64
	Rb float64
	A  float64
}

// NewBrokenExponential returns a broken exponential with h1 = 1, h2 = 1,
// rb = 1 and a = 1.
func NewBrokenExponential() *BrokenExponential {
	b := &BrokenExponential{H1: 1, H2: 1, Rb: 1, A: 1}
	b.Radial = newRadial(KindBrokenExponential, b)
	return b
}

func (b *BrokenExponential) params(t paramTable) {
	t.addFloat("h1", &b.H1)
	t.addFloat("h2", &b.H2)
	t.addFloat("rb", &b.Rb)
	t.addFloat("a", &b.A)
}

func (b *BrokenExponential) validate(kind string) error {
	switch {
	case !(b.H1 > 0):
		return paramErr(kind, "h1", b.H1, "must be positive")
	case !(b.H2 > 0):
		return paramErr(kind, "h2", b.H2, "must be positive")
	case !(b.Rb > 0):
		return paramErr(kind, "rb", b.Rb, "must be positive")
	case !(b.A > 0):
		return paramErr(kind, "a", b.A, "must be positive")
	}
	return nil
}

func (b *BrokenExponential) prepare(SpecialFunctions) error { return nil }

func (b *BrokenExponential) scaleRadius() float64 { return b.H1 }

func (b *BrokenExponential) intensity(r float64) float64 {
	// log form; exp(a*(r-rb)) overflows far outside the break
	z := b.A * (r - b.Rb)
	softplus := max(z, 0) + math.Log1p(math.Exp(-math.Abs(z)))
	return math.Exp(-r/b.H1 + softplus/b.A*(1/b.H1-1/b.H2))
}

func (b *BrokenExponential) flux(_ SpecialFunctions, rmax float64) (float64, error) {
	return numericFlux(b.intensity, rmax, max(b.H1, b.H2), b.Rb), nil
}
