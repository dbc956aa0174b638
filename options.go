package profit

// ModelOption configures a Model during creation.
//
// Example:
//
//	m := profit.NewModel(100, 100,
//	    profit.WithMagZero(30),
//	    profit.WithPSF(psf, 0, 0),
//	    profit.WithConvolverKind(profit.ConvolverFFT),
//	)
type ModelOption func(*modelOptions)

// InitPolicy decides what Evaluate does when a profile fails to initialize.
type InitPolicy int

const (
	// PolicyPropagate aborts the evaluation and returns the initialization
	// errors of all failing profiles.
	PolicyPropagate InitPolicy = iota
	// PolicyDrop logs a warning and renders the image without the failing
	// profiles.
	PolicyDrop
)

func (p InitPolicy) String() string {
	switch p {
	case PolicyPropagate:
		return "propagate"
	case PolicyDrop:
		return "drop"
	}
	return "unknown"
}

type modelOptions struct {
	scaleX, scaleY float64
	magZero        float64

	psf                  *Image
	psfScaleX, psfScaleY float64
	mask                 *Mask

	convolver      Convolver
	convKind       ConvolverKind
	convThreads    int
	reuseKernelFFT bool
	effort         FFTEffort
	env            ComputeEnv

	threads int
	policy  InitPolicy
	crop    bool
	special SpecialFunctions
}

func defaultModelOptions() modelOptions {
	return modelOptions{
		scaleX:  1,
		scaleY:  1,
		crop:    true,
		special: DefaultSpecialFunctions(),
	}
}

// WithScale sets the pixel scale, in profile units per pixel.
func WithScale(x, y float64) ModelOption {
	return func(o *modelOptions) {
		o.scaleX, o.scaleY = x, y
	}
}

// WithMagZero sets the magnitude zero-point.
func WithMagZero(magZero float64) ModelOption {
	return func(o *modelOptions) {
		o.magZero = magZero
	}
}

// WithPSF sets the PSF image and its pixel scale. A zero scale means the
// PSF shares the image pixel scale; otherwise the PSF is resampled onto the
// image grid with its sum preserved.
func WithPSF(psf *Image, scaleX, scaleY float64) ModelOption {
	return func(o *modelOptions) {
		o.psf = psf
		o.psfScaleX, o.psfScaleY = scaleX, scaleY
	}
}

// WithMask restricts evaluation to the enabled pixels of mask, which must
// have the image dimensions. Disabled pixels are zero in the output.
func WithMask(mask *Mask) ModelOption {
	return func(o *modelOptions) {
		o.mask = mask
	}
}

// WithConvolver sets the convolver. The model does not close it, so a
// convolver (and its cached kernel spectrum) can serve many models.
func WithConvolver(c Convolver) ModelOption {
	return func(o *modelOptions) {
		o.convolver = c
	}
}

// WithConvolverKind selects the kind of the convolver the model creates
// when none is set with WithConvolver. The default is ConvolverBrute.
func WithConvolverKind(kind ConvolverKind) ModelOption {
	return func(o *modelOptions) {
		o.convKind = kind
	}
}

// WithConvolverThreads sets the worker count of a model-created convolver.
func WithConvolverThreads(n int) ModelOption {
	return func(o *modelOptions) {
		o.convThreads = n
	}
}

// WithReuseKernelFFT enables kernel spectrum caching in a model-created
// FFT convolver.
func WithReuseKernelFFT(reuse bool) ModelOption {
	return func(o *modelOptions) {
		o.reuseKernelFFT = reuse
	}
}

// WithEffort sets the planning effort of a model-created FFT convolver.
func WithEffort(e FFTEffort) ModelOption {
	return func(o *modelOptions) {
		o.effort = e
	}
}

// WithComputeEnv sets the compute environment for the gpu convolver. A
// *SharedEnv gains a reference that Model.Close releases.
func WithComputeEnv(env ComputeEnv) ModelOption {
	return func(o *modelOptions) {
		o.env = env
	}
}

// WithThreads sets the number of rendering workers; 0 uses GOMAXPROCS.
func WithThreads(n int) ModelOption {
	return func(o *modelOptions) {
		o.threads = n
	}
}

// WithInitPolicy sets the profile initialization failure policy.
func WithInitPolicy(p InitPolicy) ModelOption {
	return func(o *modelOptions) {
		o.policy = p
	}
}

// WithCrop controls whether a convolved image is cropped back to the
// canvas (the default). Without cropping the image keeps the PSF padding
// and Evaluate returns the padding as offset.
func WithCrop(crop bool) ModelOption {
	return func(o *modelOptions) {
		o.crop = crop
	}
}

// WithSpecialFunctions replaces the special functions used for profile
// normalization.
func WithSpecialFunctions(sf SpecialFunctions) ModelOption {
	return func(o *modelOptions) {
		o.special = sf
	}
}
