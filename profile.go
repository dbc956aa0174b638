package profit

import (
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/profit/internal/parallel"
)

// Profile kinds registered by this package.
const (
	KindSersic            = "sersic"
	KindMoffat            = "moffat"
	KindFerrer            = "ferrer"
	KindKing              = "king"
	KindCoreSersic        = "coresersic"
	KindBrokenExponential = "brokenexp"
	KindSky               = "sky"
	KindPsf               = "psf"
	KindNull              = "null"
)

// Profile is one additive contribution to a rendered image.
//
// A model calls SetParam during setup, Init once per evaluation, then
// Render. Render must only add into dst and must leave pixels disabled in
// the frame mask untouched. Render may be called from several goroutines
// of a worker pool through Frame.Rows, each handling disjoint rows.
type Profile interface {
	// Kind returns the registry name of the profile.
	Kind() string

	// SetParam sets a named parameter. Numeric parameters accept any Go
	// integer or float type; flags accept bool or a number (non-zero is true).
	SetParam(name string, value any) error

	// Convolve reports whether the contribution must pass through the
	// PSF convolution stage.
	Convolve() bool

	// Init validates the parameters and computes the derived constants
	// (normalization, rotation) for the frame.
	Init(f *Frame) error

	// Render adds the profile into dst, which has the frame's dimensions.
	Render(f *Frame, dst *Image)
}

// Frame describes the pixel grid a profile is initialized for and rendered
// into. Coordinates are physical: pixel (i, j) covers
// [OriginX + i*ScaleX, OriginX + (i+1)*ScaleX] horizontally and likewise
// vertically.
type Frame struct {
	Width, Height  int
	ScaleX, ScaleY float64
	// OriginX and OriginY locate the top-left corner of pixel (0, 0).
	// They are negative when the frame is padded for convolution.
	OriginX, OriginY float64
	MagZero          float64
	Special          SpecialFunctions
	// Mask, when non-nil, has the frame's dimensions.
	Mask *Mask

	pool *parallel.WorkerPool
}

// PixelCenter returns the physical coordinates of the center of (i, j).
func (f *Frame) PixelCenter(i, j int) (float64, float64) {
	return f.OriginX + (float64(i)+0.5)*f.ScaleX, f.OriginY + (float64(j)+0.5)*f.ScaleY
}

// Enabled reports whether (i, j) needs evaluation.
func (f *Frame) Enabled(i, j int) bool {
	return f.Mask == nil || f.Mask.At(i, j)
}

// Rows runs fn for every row of the frame, spreading rows over the
// model's worker pool. fn must only write to its own rows.
func (f *Frame) Rows(fn func(y int)) {
	f.pool.Rows(f.Height, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			fn(y)
		}
	})
}

// ProfileFactory creates a profile with default parameters.
type ProfileFactory func() Profile

var (
	profilesMu sync.RWMutex
	profiles   = make(map[string]ProfileFactory)
)

// RegisterProfile makes a profile kind available to NewProfile and
// Model.AddProfile. A kind registered twice is replaced.
func RegisterProfile(kind string, factory ProfileFactory) {
	profilesMu.Lock()
	defer profilesMu.Unlock()
	profiles[kind] = factory
}

// UnregisterProfile removes a profile kind. Useful in tests.
func UnregisterProfile(kind string) {
	profilesMu.Lock()
	defer profilesMu.Unlock()
	delete(profiles, kind)
}

// ProfileKinds returns the registered kinds in sorted order.
func ProfileKinds() []string {
	profilesMu.RLock()
	defer profilesMu.RUnlock()

	kinds := make([]string, 0, len(profiles))
	for k := range profiles {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// NewProfile creates a profile of the given kind with default parameters.
func NewProfile(kind string) (Profile, error) {
	profilesMu.RLock()
	factory, ok := profiles[kind]
	profilesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, kind)
	}
	return factory(), nil
}

func init() {
	RegisterProfile(KindSersic, func() Profile { return NewSersic() })
	RegisterProfile(KindMoffat, func() Profile { return NewMoffat() })
	RegisterProfile(KindFerrer, func() Profile { return NewFerrer() })
	RegisterProfile(KindKing, func() Profile { return NewKing() })
	RegisterProfile(KindCoreSersic, func() Profile { return NewCoreSersic() })
	RegisterProfile(KindBrokenExponential, func() Profile { return NewBrokenExponential() })
	RegisterProfile(KindSky, func() Profile { return NewSky() })
	RegisterProfile(KindPsf, func() Profile { return NewPsf() })
	RegisterProfile(KindNull, func() Profile { return NewNull() })
}
