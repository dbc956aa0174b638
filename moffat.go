package profit

import (
	"math"
)

// Moffat is the Moffat profile
//
//	I(r) = Ie * (1 + (r/rd)^2)^(-con)
//
// parameterized by its full width at half maximum, with
// rd = fwhm / (2*sqrt(2^(1/con) - 1)).
type Moffat struct {
	Radial
	// FWHM is the full width at half maximum.
	FWHM float64
	// Con is the concentration (the beta of the Moffat function).
	Con float64

	rd float64
}

// NewMoffat returns a Moffat profile with fwhm = 3 and con = 2.
func NewMoffat() *Moffat {
	m := &Moffat{FWHM: 3, Con: 2}
	m.Radial = newRadial(KindMoffat, m)
	return m
}

func (m *Moffat) params(t paramTable) {
	t.addFloat("fwhm", &m.FWHM)
	t.addFloat("con", &m.Con)
}

func (m *Moffat) validate(kind string) error {
	if !(m.FWHM > 0) {
		return paramErr(kind, "fwhm", m.FWHM, "must be positive")
	}
	if !(m.Con > 0) {
		return paramErr(kind, "con", m.Con, "must be positive")
	}
	return nil
}

func (m *Moffat) prepare(SpecialFunctions) error {
	m.rd = m.FWHM / (2 * math.Sqrt(math.Pow(2, 1/m.Con)-1))
	return nil
}

func (m *Moffat) scaleRadius() float64 { return m.rd }

func (m *Moffat) intensity(r float64) float64 {
	x := r / m.rd
	return math.Pow(1+x*x, -m.Con)
}

func (m *Moffat) flux(_ SpecialFunctions, rmax float64) (float64, error) {
	if math.IsInf(rmax, 1) {
		if !(m.Con > 1) {
			return 0, paramErr(m.kind, "con", m.Con, "must exceed 1 for a finite total flux")
		}
		return math.Pi * m.rd * m.rd / (m.Con - 1), nil
	}
	x := rmax / m.rd
	if m.Con == 1 {
		return math.Pi * m.rd * m.rd * math.Log1p(x*x), nil
	}
	return math.Pi * m.rd * m.rd / (m.Con - 1) * (1 - math.Pow(1+x*x, 1-m.Con)), nil
}

// adjust samples concentrated Moffats more finely: a larger con steepens
// the core relative to rd.
func (m *Moffat) adjust(r *Radial) {
	c := m.Con
	r.Acc = 0.1 / r.Axrat
	r.RscaleSwitch = min(max(c, 1), 4)
	r.Resolution = min(max(int(math.Ceil(2*c))|1, 9), 15)
	r.MaxRecursions = min(max(int(math.Ceil(c)), 3), 5)
}
