package profit

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gogpu/profit/internal/kernel"
	"github.com/gogpu/profit/internal/parallel"
)

// Model composes profiles into an image of a fixed size.
//
// A Model is configured with options and AddProfile, evaluated once, and
// then discarded. It must not be used from several goroutines at once.
type Model struct {
	width, height int
	opts          modelOptions
	profiles      []Profile
	evaluated     bool
	shared        *SharedEnv
}

// NewModel creates a model for a width x height image. Invalid settings
// are reported by Evaluate.
func NewModel(width, height int, opts ...ModelOption) *Model {
	o := defaultModelOptions()
	for _, opt := range opts {
		opt(&o)
	}
	m := &Model{width: width, height: height, opts: o}
	if s, ok := o.env.(*SharedEnv); ok {
		m.shared = s.Acquire()
	}
	return m
}

// Width returns the canvas width in pixels.
func (m *Model) Width() int { return m.width }

// Height returns the canvas height in pixels.
func (m *Model) Height() int { return m.height }

// Profiles returns the profiles in insertion order.
func (m *Model) Profiles() []Profile { return m.profiles }

// AddProfile creates a profile of a registered kind with default
// parameters, appends it and returns it for SetParam calls.
func (m *Model) AddProfile(kind string) (Profile, error) {
	if m.evaluated {
		return nil, ErrEvaluated
	}
	p, err := NewProfile(kind)
	if err != nil {
		return nil, err
	}
	m.profiles = append(m.profiles, p)
	return p, nil
}

// Add appends an existing profile.
func (m *Model) Add(p Profile) error {
	if m.evaluated {
		return ErrEvaluated
	}
	m.profiles = append(m.profiles, p)
	return nil
}

// Close releases the model's reference on a shared compute environment.
func (m *Model) Close() error {
	if m.shared == nil {
		return nil
	}
	s := m.shared
	m.shared = nil
	return s.Release()
}

func (m *Model) validate() error {
	o := &m.opts
	switch {
	case m.width <= 0 || m.height <= 0:
		return configErr("image size %dx%d must be positive", m.width, m.height)
	case !(o.scaleX > 0) || !(o.scaleY > 0) || math.IsInf(o.scaleX, 0) || math.IsInf(o.scaleY, 0):
		return configErr("pixel scale (%v, %v) must be positive", o.scaleX, o.scaleY)
	case math.IsNaN(o.magZero) || math.IsInf(o.magZero, 0):
		return configErr("magzero %v must be finite", o.magZero)
	case o.threads < 0:
		return configErr("threads %d must not be negative", o.threads)
	}
	if o.mask != nil && (o.mask.width != m.width || o.mask.height != m.height) {
		return configErr("mask is %dx%d, image is %dx%d", o.mask.width, o.mask.height, m.width, m.height)
	}
	if o.psf != nil {
		if o.psf.width <= 0 || o.psf.height <= 0 {
			return configErr("psf size %dx%d must be positive", o.psf.width, o.psf.height)
		}
		if o.psfScaleX < 0 || o.psfScaleY < 0 {
			return configErr("psf scale (%v, %v) must not be negative", o.psfScaleX, o.psfScaleY)
		}
	}
	return nil
}

// kernel returns the PSF on the image pixel grid.
func (m *Model) kernel() *Image {
	o := &m.opts
	if o.psf == nil {
		return nil
	}
	sx, sy := o.psfScaleX, o.psfScaleY
	if sx == 0 {
		sx = o.scaleX
	}
	if sy == 0 {
		sy = o.scaleY
	}
	if sx == o.scaleX && sy == o.scaleY {
		return o.psf
	}
	k := kernel.Resample(&kernel.Kernel{Width: o.psf.width, Height: o.psf.height, Data: o.psf.data},
		sx, sy, o.scaleX, o.scaleY)
	return &Image{width: k.Width, height: k.Height, data: k.Data}
}

// initProfiles initializes every profile. Under PolicyDrop failing
// profiles are logged and left out; under PolicyPropagate all failures are
// returned together.
func (m *Model) initProfiles(f *Frame) ([]Profile, error) {
	active := make([]Profile, 0, len(m.profiles))
	var errs []error
	for i, p := range m.profiles {
		if err := p.Init(f); err != nil {
			if m.opts.policy == PolicyDrop {
				Logger().Warn("profit: dropping profile", "index", i, "kind", p.Kind(), "err", err)
				continue
			}
			errs = append(errs, fmt.Errorf("profile %d (%s): %w", i, p.Kind(), err))
			continue
		}
		active = append(active, p)
	}
	return active, errors.Join(errs...)
}

// Evaluate renders the model and returns the image with its offset: the
// position of canvas pixel (0, 0) in the returned image. The offset is
// zero unless cropping is disabled and the image was convolved.
//
// Configuration errors are reported before any pixel is evaluated. A
// Model can be evaluated only once.
func (m *Model) Evaluate() (*Image, Point, error) {
	if m.evaluated {
		return nil, Point{}, ErrEvaluated
	}
	m.evaluated = true
	if err := m.validate(); err != nil {
		return nil, Point{}, err
	}

	log := Logger()
	start := time.Now()
	o := &m.opts

	pool := parallel.NewWorkerPool(o.threads)
	defer pool.Close()

	canvas := &Frame{
		Width:   m.width,
		Height:  m.height,
		ScaleX:  o.scaleX,
		ScaleY:  o.scaleY,
		MagZero: o.magZero,
		Special: o.special,
		Mask:    o.mask,
		pool:    pool,
	}

	active, err := m.initProfiles(canvas)
	if err != nil {
		return nil, Point{}, err
	}

	var direct, convolved []Profile
	for _, p := range active {
		if p.Convolve() {
			convolved = append(convolved, p)
		} else {
			direct = append(direct, p)
		}
	}

	psf := m.kernel()
	if psf == nil || len(convolved) == 0 {
		out := NewImage(m.width, m.height)
		render(canvas, out, direct)
		render(canvas, out, convolved)
		log.Debug("profit: evaluated", "profiles", len(active), "convolved", false, "elapsed", time.Since(start))
		return out, Point{}, nil
	}

	padX, padY := psf.width/2, psf.height/2
	padded := *canvas
	padded.Width, padded.Height = m.width+2*padX, m.height+2*padY
	padded.OriginX, padded.OriginY = -float64(padX)*o.scaleX, -float64(padY)*o.scaleY
	if o.mask != nil {
		padded.Mask = o.mask.Expand(padX, padY)
	}

	conv, owned, err := m.convolver(padded.Width, padded.Height, psf)
	if err != nil {
		return nil, Point{}, err
	}
	if owned {
		defer func() {
			if cerr := conv.Close(); cerr != nil {
				log.Warn("profit: closing convolver", "kind", conv.Kind(), "err", cerr)
			}
		}()
	}

	src := NewImage(padded.Width, padded.Height)
	render(&padded, src, convolved)
	renderDone := time.Now()

	blurred, err := conv.Convolve(src, psf)
	if err != nil {
		var be *BackendError
		if !errors.As(err, &be) {
			err = &BackendError{Kind: conv.Kind(), Err: err}
		}
		return nil, Point{}, err
	}

	out := canvas
	offset := Point{}
	if o.crop {
		blurred = blurred.Crop(padX, padY, m.width, m.height)
	} else {
		full := padded
		full.Mask = nil
		if o.mask != nil {
			full.Mask = o.mask.Pad(padX, padY)
		}
		out = &full
		offset = Pt(float64(padX), float64(padY))
	}
	if out.Mask != nil {
		for i, on := range out.Mask.data {
			if !on {
				blurred.data[i] = 0
			}
		}
	}
	render(out, blurred, direct)

	log.Debug("profit: evaluated",
		"profiles", len(active),
		"convolved", len(convolved),
		"convolver", conv.Kind(),
		"render", renderDone.Sub(start),
		"elapsed", time.Since(start))
	return blurred, offset, nil
}

// convolver returns the configured convolver, or creates one. owned
// reports whether the caller must close it.
func (m *Model) convolver(srcW, srcH int, psf *Image) (Convolver, bool, error) {
	o := &m.opts
	if o.convolver != nil {
		return o.convolver, false, nil
	}
	var env ComputeEnv
	if m.shared != nil {
		env = m.shared
	} else if o.env != nil {
		env = o.env
	}
	c, err := NewConvolver(ConvolverConfig{
		Kind:           o.convKind,
		SrcWidth:       srcW,
		SrcHeight:      srcH,
		KernelWidth:    psf.width,
		KernelHeight:   psf.height,
		Threads:        o.convThreads,
		ReuseKernelFFT: o.reuseKernelFFT,
		Effort:         o.effort,
		Env:            env,
	})
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

func render(f *Frame, dst *Image, ps []Profile) {
	for _, p := range ps {
		p.Render(f, dst)
	}
}
