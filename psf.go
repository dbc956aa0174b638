package profit

import "math"

// Psf injects the flux of a point source into the pixel containing its
// position. It always belongs to the convolve group, so with a PSF it
// renders as a PSF-shaped star; without one it stays a single pixel.
type Psf struct {
	XCen, YCen float64
	Mag        float64

	table paramTable
	flux  float64
}

// NewPsf returns a point source at the origin with magnitude 15.
func NewPsf() *Psf {
	p := &Psf{Mag: 15}
	p.table = paramTable{}
	p.table.addFloat("xcen", &p.XCen)
	p.table.addFloat("ycen", &p.YCen)
	p.table.addFloat("mag", &p.Mag)
	return p
}

// Kind returns KindPsf.
func (p *Psf) Kind() string { return KindPsf }

// SetParam sets xcen, ycen or mag.
func (p *Psf) SetParam(name string, value any) error {
	return p.table.set(KindPsf, name, value)
}

// Convolve is always true.
func (p *Psf) Convolve() bool { return true }

// Init checks the position and magnitude and computes the flux.
func (p *Psf) Init(f *Frame) error {
	switch {
	case math.IsNaN(p.XCen) || math.IsInf(p.XCen, 0):
		return paramErr(KindPsf, "xcen", p.XCen, "must be finite")
	case math.IsNaN(p.YCen) || math.IsInf(p.YCen, 0):
		return paramErr(KindPsf, "ycen", p.YCen, "must be finite")
	case math.IsNaN(p.Mag) || math.IsInf(p.Mag, 0):
		return paramErr(KindPsf, "mag", p.Mag, "must be finite")
	}
	p.flux = math.Pow(10, -0.4*(p.Mag-f.MagZero))
	return nil
}

// Render adds the flux to the pixel containing (XCen, YCen), if that
// pixel is inside the frame and enabled.
func (p *Psf) Render(f *Frame, dst *Image) {
	i := int(math.Floor((p.XCen - f.OriginX) / f.ScaleX))
	j := int(math.Floor((p.YCen - f.OriginY) / f.ScaleY))
	if i < 0 || i >= f.Width || j < 0 || j >= f.Height || !f.Enabled(i, j) {
		return
	}
	dst.data[j*f.Width+i] += p.flux
}
