package profit

import "math"

// King is the generalized King profile
//
//	I(r) = Ie * ((1 + (r/rc)^2)^(-1/a) - (1 + (rt/rc)^2)^(-1/a))^a   for r < rt
//
// and zero outside the truncation radius rt. a = 2 is the classic King
// (1962) globular cluster profile.
type King struct {
	Radial
	// Rc is the core radius.
	Rc float64
	// Rt is the truncation radius.
	Rt float64
	// A is the power-law index.
	A float64

	tail float64
}

// NewKing returns a King profile with rc = 1, rt = 3 and a = 2.
func NewKing() *King {
	k := &King{Rc: 1, Rt: 3, A: 2}
	k.Radial = newRadial(KindKing, k)
	return k
}

func (k *King) params(t paramTable) {
	t.addFloat("rc", &k.Rc)
	t.addFloat("rt", &k.Rt)
	t.addFloat("a", &k.A)
}

func (k *King) validate(kind string) error {
	switch {
	case !(k.Rc > 0):
		return paramErr(kind, "rc", k.Rc, "must be positive")
	case !(k.Rt > 0):
		return paramErr(kind, "rt", k.Rt, "must be positive")
	case !(k.A > 0):
		return paramErr(kind, "a", k.A, "must be positive")
	}
	return nil
}

func (k *King) prepare(SpecialFunctions) error {
	x := k.Rt / k.Rc
	k.tail = math.Pow(1+x*x, -1/k.A)
	return nil
}

func (k *King) scaleRadius() float64 { return k.Rc }

func (k *King) intensity(r float64) float64 {
	if r >= k.Rt {
		return 0
	}
	x := r / k.Rc
	return math.Pow(math.Pow(1+x*x, -1/k.A)-k.tail, k.A)
}

func (k *King) flux(_ SpecialFunctions, rmax float64) (float64, error) {
	return numericFlux(k.intensity, min(rmax, k.Rt), k.Rc, k.Rc), nil
}
