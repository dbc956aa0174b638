package profit

import "math"

// Sky adds a constant background level to every enabled pixel. The level
// is a per-pixel value and is not scaled by the pixel area.
type Sky struct {
	// Bg is the background level.
	Bg float64
	// ToConvolve routes the sky through PSF convolution.
	ToConvolve bool

	table paramTable
}

// NewSky returns a sky profile with a zero background.
func NewSky() *Sky {
	s := &Sky{}
	s.table = paramTable{}
	s.table.addFloat("bg", &s.Bg)
	s.table.addBool("convolve", &s.ToConvolve)
	return s
}

// Kind returns KindSky.
func (s *Sky) Kind() string { return KindSky }

// SetParam sets bg or convolve.
func (s *Sky) SetParam(name string, value any) error {
	return s.table.set(KindSky, name, value)
}

// Convolve reports the convolve flag.
func (s *Sky) Convolve() bool { return s.ToConvolve }

// Init rejects a non-finite background.
func (s *Sky) Init(*Frame) error {
	if math.IsNaN(s.Bg) || math.IsInf(s.Bg, 0) {
		return paramErr(KindSky, "bg", s.Bg, "must be finite")
	}
	return nil
}

// Render adds Bg to every enabled pixel.
func (s *Sky) Render(f *Frame, dst *Image) {
	f.Rows(func(j int) {
		row := dst.data[j*f.Width : (j+1)*f.Width]
		for i := range row {
			if f.Enabled(i, j) {
				row[i] += s.Bg
			}
		}
	})
}
