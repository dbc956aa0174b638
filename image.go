package profit

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Image is a row-major grid of float64 pixel values.
type Image struct {
	width  int
	height int
	data   []float64
}

// NewImage creates a zero-filled image.
func NewImage(width, height int) *Image {
	return &Image{
		width:  width,
		height: height,
		data:   make([]float64, width*height),
	}
}

// NewImageFromData wraps data as a width x height image. The slice is not
// copied. It fails if len(data) != width*height.
func NewImageFromData(data []float64, width, height int) (*Image, error) {
	if width < 0 || height < 0 || len(data) != width*height {
		return nil, fmt.Errorf("%w: image data has %d values, want %dx%d",
			ErrInvalidConfig, len(data), width, height)
	}
	return &Image{width: width, height: height, data: data}, nil
}

// Width returns the width of the image.
func (im *Image) Width() int { return im.width }

// Height returns the height of the image.
func (im *Image) Height() int { return im.height }

// Data returns the underlying row-major pixel slice.
func (im *Image) Data() []float64 { return im.data }

// At returns the value at (x, y), or 0 outside the image.
func (im *Image) At(x, y int) float64 {
	if x < 0 || x >= im.width || y < 0 || y >= im.height {
		return 0
	}
	return im.data[y*im.width+x]
}

// Set stores v at (x, y). Out-of-range coordinates are ignored.
func (im *Image) Set(x, y int, v float64) {
	if x < 0 || x >= im.width || y < 0 || y >= im.height {
		return
	}
	im.data[y*im.width+x] = v
}

// Sum returns the sum of all pixel values.
func (im *Image) Sum() float64 {
	return floats.Sum(im.data)
}

// Max returns the largest pixel value, or 0 for an empty image.
func (im *Image) Max() float64 {
	if len(im.data) == 0 {
		return 0
	}
	return floats.Max(im.data)
}

// Scale multiplies every pixel by c.
func (im *Image) Scale(c float64) {
	floats.Scale(c, im.data)
}

// Add adds o pixel-wise into im. Both images must have the same size.
func (im *Image) Add(o *Image) error {
	if o.width != im.width || o.height != im.height {
		return fmt.Errorf("%w: cannot add %dx%d image to %dx%d image",
			ErrInvalidConfig, o.width, o.height, im.width, im.height)
	}
	floats.Add(im.data, o.data)
	return nil
}

// Clone returns a deep copy of the image.
func (im *Image) Clone() *Image {
	c := NewImage(im.width, im.height)
	copy(c.data, im.data)
	return c
}

// Crop returns the width x height window whose top-left corner is (x0, y0).
// Pixels outside im read as zero.
func (im *Image) Crop(x0, y0, width, height int) *Image {
	out := NewImage(width, height)
	for y := 0; y < height; y++ {
		sy := y + y0
		if sy < 0 || sy >= im.height {
			continue
		}
		for x := 0; x < width; x++ {
			sx := x + x0
			if sx < 0 || sx >= im.width {
				continue
			}
			out.data[y*width+x] = im.data[sy*im.width+sx]
		}
	}
	return out
}

// Pad returns a copy of im surrounded by padX zero columns on each side and
// padY zero rows on top and bottom.
func (im *Image) Pad(padX, padY int) *Image {
	return im.Crop(-padX, -padY, im.width+2*padX, im.height+2*padY)
}

// ToGray16 maps the image linearly onto 16-bit gray levels, black at the
// minimum value and white at the maximum. A constant image maps to black.
func (im *Image) ToGray16() *image.Gray16 {
	g := image.NewGray16(image.Rect(0, 0, im.width, im.height))
	if len(im.data) == 0 {
		return g
	}
	lo, hi := floats.Min(im.data), floats.Max(im.data)
	span := hi - lo
	for y := 0; y < im.height; y++ {
		for x := 0; x < im.width; x++ {
			var v uint16
			if span > 0 {
				v = uint16(math.Round((im.data[y*im.width+x] - lo) / span * math.MaxUint16))
			}
			g.SetGray16(x, y, color.Gray16{Y: v})
		}
	}
	return g
}

// Mask is a row-major boolean grid marking pixels that need evaluation.
type Mask struct {
	width  int
	height int
	data   []bool
}

// NewMask creates a mask with every pixel enabled.
func NewMask(width, height int) *Mask {
	m := &Mask{width: width, height: height, data: make([]bool, width*height)}
	for i := range m.data {
		m.data[i] = true
	}
	return m
}

// NewMaskFromData wraps data as a width x height mask. It fails if
// len(data) != width*height.
func NewMaskFromData(data []bool, width, height int) (*Mask, error) {
	if width < 0 || height < 0 || len(data) != width*height {
		return nil, fmt.Errorf("%w: mask data has %d values, want %dx%d",
			ErrInvalidConfig, len(data), width, height)
	}
	return &Mask{width: width, height: height, data: data}, nil
}

// Width returns the width of the mask.
func (m *Mask) Width() int { return m.width }

// Height returns the height of the mask.
func (m *Mask) Height() int { return m.height }

// At reports whether (x, y) is enabled. Out-of-range pixels are disabled.
func (m *Mask) At(x, y int) bool {
	if x < 0 || x >= m.width || y < 0 || y >= m.height {
		return false
	}
	return m.data[y*m.width+x]
}

// Set enables or disables (x, y).
func (m *Mask) Set(x, y int, v bool) {
	if x < 0 || x >= m.width || y < 0 || y >= m.height {
		return
	}
	m.data[y*m.width+x] = v
}

// Count returns the number of enabled pixels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.data {
		if v {
			n++
		}
	}
	return n
}

// Pad returns a copy of m surrounded by padX disabled columns on each side
// and padY disabled rows on top and bottom.
func (m *Mask) Pad(padX, padY int) *Mask {
	w, h := m.width+2*padX, m.height+2*padY
	out := &Mask{width: w, height: h, data: make([]bool, w*h)}
	for y := 0; y < m.height; y++ {
		copy(out.data[(y+padY)*w+padX:], m.data[y*m.width:(y+1)*m.width])
	}
	return out
}

// Expand returns a mask padded by (padX, padY) on each side in which every
// pixel within padX columns and padY rows of an enabled pixel is enabled.
// Convolution needs those neighbours to produce correct values on m's own
// enabled pixels.
func (m *Mask) Expand(padX, padY int) *Mask {
	w, h := m.width+2*padX, m.height+2*padY
	out := &Mask{width: w, height: h, data: make([]bool, w*h)}
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			if !m.data[y*m.width+x] {
				continue
			}
			// (x, y) lands at (x+padX, y+padY); its neighbourhood spans [x, x+2padX].
			for yy := y; yy <= y+2*padY; yy++ {
				row := out.data[yy*w:]
				for xx := x; xx <= x+2*padX; xx++ {
					row[xx] = true
				}
			}
		}
	}
	return out
}
