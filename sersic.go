package profit

import (
	"fmt"
	"math"
)

// Sersic is the Sersic profile
//
//	I(r) = Ie * exp(-bn * ((r/re)^(1/nser) - 1))
//
// where bn solves P(2*nser, bn) = 1/2 so that re encloses half the flux.
type Sersic struct {
	Radial
	// Re is the effective (half-light) radius.
	Re float64
	// Nser is the Sersic index.
	Nser float64

	bn float64
}

// NewSersic returns a Sersic profile with re = 1 and nser = 1.
func NewSersic() *Sersic {
	s := &Sersic{Re: 1, Nser: 1}
	s.Radial = newRadial(KindSersic, s)
	return s
}

// Bn returns the bn constant computed by Init.
func (s *Sersic) Bn() float64 { return s.bn }

func (s *Sersic) params(t paramTable) {
	t.addFloat("re", &s.Re)
	t.addFloat("nser", &s.Nser)
}

func (s *Sersic) validate(kind string) error {
	if !(s.Re > 0) {
		return paramErr(kind, "re", s.Re, "must be positive")
	}
	if !(s.Nser > 0) || math.IsInf(s.Nser, 0) {
		return paramErr(kind, "nser", s.Nser, "must be positive")
	}
	return nil
}

func (s *Sersic) prepare(sf SpecialFunctions) error {
	bn, err := sf.QGammaInv(0.5, 2*s.Nser, 1)
	if err != nil {
		return fmt.Errorf("sersic: bn: %w", err)
	}
	s.bn = bn
	return nil
}

func (s *Sersic) scaleRadius() float64 { return s.Re }

func (s *Sersic) intensity(r float64) float64 {
	return math.Exp(-s.bn * (math.Pow(r/s.Re, 1/s.Nser) - 1))
}

func (s *Sersic) flux(sf SpecialFunctions, rmax float64) (float64, error) {
	if sf.Gamma == nil {
		return 0, fmt.Errorf("sersic: gamma: %w", ErrNoSpecialFunction)
	}
	n := s.Nser
	lf := 2*math.Log(s.Re) + math.Log(2*math.Pi*n) + math.Log(sf.Gamma(2*n)) + s.bn - 2*n*math.Log(s.bn)
	total := math.Exp(lf)
	if math.IsInf(rmax, 1) {
		return total, nil
	}
	if sf.GammaIncReg == nil {
		return 0, fmt.Errorf("sersic: incomplete gamma: %w", ErrNoSpecialFunction)
	}
	return total * sf.GammaIncReg(2*n, s.bn*math.Pow(rmax/s.Re, 1/n)), nil
}

// adjust picks sampling parameters from the index: peaked high-index
// profiles need finer and deeper sampling over a wider central region.
func (s *Sersic) adjust(r *Radial) {
	n := s.Nser
	r.Acc = max(0.1, 0.4/n) / r.Axrat
	r.RscaleSwitch = min(max(n/4, 2), 20)
	r.Resolution = min(max(int(math.Ceil(4*n))|1, 5), 15)
	r.MaxRecursions = min(max(int(math.Ceil(n))+1, 2), 5)
}
