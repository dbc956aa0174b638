package profit

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/integrate/quad"
)

// radialShape is the part of a radial profile that differs between kinds:
// the surface brightness as a function of the generalized radius and its
// flux integral.
type radialShape interface {
	// params registers the shape parameters.
	params(t paramTable)
	// validate checks the shape parameters.
	validate(kind string) error
	// prepare computes constants of the shape. Called after validate.
	prepare(sf SpecialFunctions) error
	// scaleRadius is the radius that rscale_switch and rscale_max are
	// multiples of.
	scaleRadius() float64
	// intensity is the unnormalized surface brightness at radius r.
	intensity(r float64) float64
	// flux returns 2*pi times the integral of r*intensity(r) over
	// [0, rmax]. rmax may be +Inf.
	flux(sf SpecialFunctions, rmax float64) (float64, error)
}

// adjuster is implemented by shapes that can tune the sampling parameters
// of their profile when the adjust flag is set.
type adjuster interface {
	adjust(r *Radial)
}

// Radial holds the parameters shared by all radial profiles and implements
// their initialization and rendering.
type Radial struct {
	// XCen and YCen locate the profile center in image units.
	XCen, YCen float64
	// Mag is the total magnitude.
	Mag float64
	// Ang is the position angle in degrees.
	Ang float64
	// Axrat is the minor to major axis ratio.
	Axrat float64
	// Box is the boxiness; 0 is a pure ellipse, >0 boxy, <0 disky.
	Box float64

	// Rough disables sub-pixel integration.
	Rough bool
	// Acc is the relative tolerance of the adaptive integrator.
	Acc float64
	// RscaleSwitch is the radius, in scale radii, beyond which pixels are
	// center sampled.
	RscaleSwitch float64
	// Resolution is the number of sub-cells per axis per level.
	Resolution int
	// MaxRecursions bounds the subdivision depth.
	MaxRecursions int
	// RscaleMax truncates the profile at RscaleMax scale radii. 0 disables
	// truncation.
	RscaleMax float64
	// RescaleFlux normalizes the flux inside the truncation radius to Mag.
	RescaleFlux bool
	// Adjust lets the profile pick Acc, RscaleSwitch, Resolution and
	// MaxRecursions from its shape. Sersic and Moffat tune them; the other
	// kinds keep the values set by the caller.
	Adjust bool
	// ToConvolve routes the profile through PSF convolution.
	ToConvolve bool

	kind  string
	shape radialShape
	table paramTable

	ie float64
	tr transform
}

func newRadial(kind string, shape radialShape) Radial {
	r := Radial{
		Mag:           15,
		Axrat:         1,
		Acc:           0.1,
		RscaleSwitch:  1,
		Resolution:    9,
		MaxRecursions: 3,
		kind:          kind,
		shape:         shape,
	}
	return r
}

func (r *Radial) params() paramTable {
	if r.table != nil {
		return r.table
	}
	t := paramTable{}
	t.addFloat("xcen", &r.XCen)
	t.addFloat("ycen", &r.YCen)
	t.addFloat("mag", &r.Mag)
	t.addFloat("ang", &r.Ang)
	t.addFloat("axrat", &r.Axrat)
	t.addFloat("box", &r.Box)
	t.addBool("rough", &r.Rough)
	t.addFloat("acc", &r.Acc)
	t.addFloat("rscale_switch", &r.RscaleSwitch)
	t.addInt("resolution", &r.Resolution)
	t.addInt("max_recursions", &r.MaxRecursions)
	t.addFloat("rscale_max", &r.RscaleMax)
	t.addBool("rescale_flux", &r.RescaleFlux)
	t.addBool("adjust", &r.Adjust)
	t.addBool("convolve", &r.ToConvolve)
	r.shape.params(t)
	r.table = t
	return t
}

// Kind returns the registry name of the profile.
func (r *Radial) Kind() string { return r.kind }

// SetParam sets a common or shape parameter by name.
func (r *Radial) SetParam(name string, value any) error {
	return r.params().set(r.kind, name, value)
}

// Convolve reports whether the profile is convolved with the PSF.
func (r *Radial) Convolve() bool { return r.ToConvolve }

// Ie returns the intensity normalization computed by Init.
func (r *Radial) Ie() float64 { return r.ie }

func (r *Radial) validate() error {
	switch {
	case !(r.Axrat > 0):
		return paramErr(r.kind, "axrat", r.Axrat, "must be positive")
	case !(r.Box > -2):
		return paramErr(r.kind, "box", r.Box, "must be greater than -2")
	case r.Acc < 0 || math.IsNaN(r.Acc):
		return paramErr(r.kind, "acc", r.Acc, "must not be negative")
	case r.RscaleSwitch < 0 || math.IsNaN(r.RscaleSwitch):
		return paramErr(r.kind, "rscale_switch", r.RscaleSwitch, "must not be negative")
	case r.RscaleMax < 0 || math.IsNaN(r.RscaleMax):
		return paramErr(r.kind, "rscale_max", r.RscaleMax, "must not be negative")
	case math.IsNaN(r.Mag) || math.IsInf(r.Mag, 0):
		return paramErr(r.kind, "mag", r.Mag, "must be finite")
	}
	return r.shape.validate(r.kind)
}

// Init validates the parameters and computes the normalization and the
// coordinate transform.
func (r *Radial) Init(f *Frame) error {
	if err := r.validate(); err != nil {
		return err
	}
	if err := r.shape.prepare(f.Special); err != nil {
		return err
	}
	if r.Adjust {
		if a, ok := r.shape.(adjuster); ok {
			a.adjust(r)
		}
	}

	rbox, err := f.Special.boxNorm(r.Box)
	if err != nil {
		return fmt.Errorf("%s: box normalization: %w", r.kind, err)
	}

	rmax := math.Inf(1)
	if r.RscaleMax > 0 && r.RescaleFlux {
		rmax = r.RscaleMax * r.shape.scaleRadius()
	}
	flux, err := r.shape.flux(f.Special, rmax)
	if err != nil {
		return err
	}
	total := flux * r.Axrat / rbox
	if !(total > 0) || math.IsInf(total, 0) {
		return paramErr(r.kind, "flux", total, "total flux is not a positive finite number")
	}

	r.ie = math.Pow(10, -0.4*(r.Mag-f.MagZero)) / total
	r.tr = newTransform(r.XCen, r.YCen, r.Ang, r.Axrat, r.Box)
	return nil
}

// Render adds the profile into dst.
func (r *Radial) Render(f *Frame, dst *Image) {
	rs := r.shape.scaleRadius()
	cut := math.Inf(1)
	if r.RscaleMax > 0 {
		cut = r.RscaleMax * rs
	}
	value := r.shape.intensity
	if !math.IsInf(cut, 1) {
		value = func(rad float64) float64 {
			if rad > cut {
				return 0
			}
			return r.shape.intensity(rad)
		}
	}

	sx, sy := f.ScaleX, f.ScaleY
	scale := sx * sy * r.ie
	f.Rows(func(j int) {
		it := integrator{
			tr:            r.tr,
			value:         value,
			resolution:    r.Resolution,
			maxRecursions: r.MaxRecursions,
			acc:           r.Acc,
		}
		row := dst.data[j*f.Width : (j+1)*f.Width]
		for i := range row {
			if !f.Enabled(i, j) {
				continue
			}
			x, y := f.PixelCenter(i, j)
			rad := r.tr.radius(r.tr.apply(x, y))
			if rad > cut {
				continue
			}
			var v float64
			if r.Rough || rad > r.RscaleSwitch*rs {
				v = value(rad)
			} else {
				v = it.integrate(x-sx/2, x+sx/2, y-sy/2, y+sy/2, 0)
			}
			row[i] += scale * v
		}
	})
}

const fluxPoints = 256

// numericFlux integrates 2*pi*r*intensity(r) over [0, rmax] piecewise,
// splitting at breaks. An infinite tail is integrated in units of scale.
func numericFlux(intensity func(float64) float64, rmax, scale float64, breaks ...float64) float64 {
	f := func(r float64) float64 { return 2 * math.Pi * r * intensity(r) }

	breaks = slices.Clone(breaks)
	slices.Sort(breaks)

	var total float64
	lo := 0.0
	for _, b := range breaks {
		if b <= lo {
			continue
		}
		if b >= rmax {
			break
		}
		total += quad.Fixed(f, lo, b, fluxPoints, quad.Legendre{}, 0)
		lo = b
	}
	if !math.IsInf(rmax, 1) {
		return total + quad.Fixed(f, lo, rmax, fluxPoints, quad.Legendre{}, 0)
	}
	tail := func(u float64) float64 { return f(lo+scale*u) * scale }
	return total + quad.Fixed(tail, 0, math.Inf(1), fluxPoints, nil, 0)
}
