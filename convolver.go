package profit

import (
	"fmt"
	"slices"
	"sync"
)

// ConvolverKind names a convolution backend.
type ConvolverKind string

// Convolver kinds registered by this package.
const (
	// ConvolverBrute sums over the kernel footprint of every pixel.
	ConvolverBrute ConvolverKind = "brute"
	// ConvolverFFT multiplies in the frequency domain.
	ConvolverFFT ConvolverKind = "fft"
	// ConvolverGPU offloads the brute-force sum to a ComputeEnv.
	ConvolverGPU ConvolverKind = "gpu"
)

// FFTEffort trades one-time planning cost against transform speed.
type FFTEffort int

const (
	// EffortEstimate pads to the smallest size that avoids wrap-around.
	EffortEstimate FFTEffort = iota
	// EffortSmooth pads to the next size whose only prime factors are 2, 3
	// and 5.
	EffortSmooth
	// EffortMeasure times candidate sizes and keeps the fastest. Results
	// are cached per process.
	EffortMeasure
)

// Convolver convolves an image with a kernel.
//
// The output has the size of src. The kernel is centered at
// (kw/2, kh/2), so a unit impulse at that pixel returns src unchanged.
// Pixels outside src are treated as zero.
type Convolver interface {
	Kind() ConvolverKind
	Convolve(src, kernel *Image) (*Image, error)
	Close() error
}

// ConvolverConfig configures NewConvolver.
type ConvolverConfig struct {
	Kind ConvolverKind
	// SrcWidth, SrcHeight, KernelWidth and KernelHeight are the expected
	// operand sizes. Backends may plan for them up front; other sizes
	// still work.
	SrcWidth, SrcHeight       int
	KernelWidth, KernelHeight int
	// Threads is the worker count of CPU backends; 0 uses GOMAXPROCS.
	Threads int
	// ReuseKernelFFT caches the kernel spectrum across calls with the
	// same kernel image. The kernel must not be modified in between.
	ReuseKernelFFT bool
	Effort         FFTEffort
	// Env is required by ConvolverGPU.
	Env ComputeEnv
}

// ConvolverFactory creates a convolver from a configuration.
type ConvolverFactory func(cfg ConvolverConfig) (Convolver, error)

var (
	convolversMu sync.RWMutex
	convolvers   = make(map[ConvolverKind]ConvolverFactory)
)

// RegisterConvolver makes a convolver kind available to NewConvolver.
func RegisterConvolver(kind ConvolverKind, factory ConvolverFactory) {
	convolversMu.Lock()
	defer convolversMu.Unlock()
	convolvers[kind] = factory
}

// ConvolverKinds returns the registered kinds in sorted order.
func ConvolverKinds() []ConvolverKind {
	convolversMu.RLock()
	defer convolversMu.RUnlock()

	kinds := make([]ConvolverKind, 0, len(convolvers))
	for k := range convolvers {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// NewConvolver creates a convolver of cfg.Kind. An empty kind selects
// ConvolverBrute.
func NewConvolver(cfg ConvolverConfig) (Convolver, error) {
	if cfg.Kind == "" {
		cfg.Kind = ConvolverBrute
	}
	convolversMu.RLock()
	factory, ok := convolvers[cfg.Kind]
	convolversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownConvolver, cfg.Kind)
	}
	c, err := factory(cfg)
	if err != nil {
		return nil, &BackendError{Kind: cfg.Kind, Err: err}
	}
	return c, nil
}

func init() {
	RegisterConvolver(ConvolverBrute, func(cfg ConvolverConfig) (Convolver, error) {
		return newBruteConvolver(cfg), nil
	})
	RegisterConvolver(ConvolverFFT, func(cfg ConvolverConfig) (Convolver, error) {
		return newFFTConvolver(cfg), nil
	})
	RegisterConvolver(ConvolverGPU, func(cfg ConvolverConfig) (Convolver, error) {
		return newAcceleratedConvolver(cfg)
	})
}

func checkOperands(kind ConvolverKind, src, kernel *Image) error {
	if src == nil || kernel == nil {
		return &BackendError{Kind: kind, Err: fmt.Errorf("%w: nil operand", ErrInvalidConfig)}
	}
	if kernel.width == 0 || kernel.height == 0 {
		return &BackendError{Kind: kind, Err: fmt.Errorf("%w: empty kernel", ErrInvalidConfig)}
	}
	return nil
}
