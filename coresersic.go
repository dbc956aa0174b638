package profit

import (
	"fmt"
	"math"
)

// CoreSersic is the core-Sersic profile
//
//	I(r) = Ie * (1 + (r/rb)^(-a))^(b/a) * exp(-bn * ((r^a + rb^a)/re^a)^(1/(a*nser)))
//
// a Sersic envelope with a power-law core of slope b inside the break
// radius rb. bn is the Sersic bn of nser.
type CoreSersic struct {
	Radial
	// Rb is the break radius.
	Rb float64
	// Re is the effective radius of the envelope.
	Re float64
	// Nser is the Sersic index of the envelope.
	Nser float64
	// A controls the sharpness of the transition.
	A float64
	// B is the inner power-law slope; must be below 2.
	B float64

	bn   float64
	rmin float64
}

// NewCoreSersic returns a core-Sersic profile with rb = 1, re = 1,
// nser = 4, a = 1 and b = 1.
func NewCoreSersic() *CoreSersic {
	c := &CoreSersic{Rb: 1, Re: 1, Nser: 4, A: 1, B: 1}
	c.Radial = newRadial(KindCoreSersic, c)
	return c
}

func (c *CoreSersic) params(t paramTable) {
	t.addFloat("rb", &c.Rb)
	t.addFloat("re", &c.Re)
	t.addFloat("nser", &c.Nser)
	t.addFloat("a", &c.A)
	t.addFloat("b", &c.B)
}

func (c *CoreSersic) validate(kind string) error {
	switch {
	case !(c.Rb > 0):
		return paramErr(kind, "rb", c.Rb, "must be positive")
	case !(c.Re > 0):
		return paramErr(kind, "re", c.Re, "must be positive")
	case !(c.Nser > 0):
		return paramErr(kind, "nser", c.Nser, "must be positive")
	case !(c.A > 0):
		return paramErr(kind, "a", c.A, "must be positive")
	case !(c.B < 2):
		return paramErr(kind, "b", c.B, "must be less than 2")
	}
	return nil
}

func (c *CoreSersic) prepare(sf SpecialFunctions) error {
	bn, err := sf.QGammaInv(0.5, 2*c.Nser, 1)
	if err != nil {
		return fmt.Errorf("coresersic: bn: %w", err)
	}
	c.bn = bn
	// The inner power law diverges at r = 0 for b > 0.
	c.rmin = 1e-6 * min(c.Rb, c.Re)
	return nil
}

func (c *CoreSersic) scaleRadius() float64 { return c.Rb }

func (c *CoreSersic) intensity(r float64) float64 {
	r = max(r, c.rmin)
	core := math.Pow(1+math.Pow(r/c.Rb, -c.A), c.B/c.A)
	env := math.Exp(-c.bn * math.Pow((math.Pow(r, c.A)+math.Pow(c.Rb, c.A))/math.Pow(c.Re, c.A), 1/(c.A*c.Nser)))
	return core * env
}

func (c *CoreSersic) flux(_ SpecialFunctions, rmax float64) (float64, error) {
	return numericFlux(c.intensity, rmax, c.Re, c.Rb/10, c.Rb, c.Re, 4*c.Re), nil
}
