package profit

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// DeviceInfo describes one compute device of a platform.
type DeviceInfo struct {
	Name            string
	DoublePrecision bool
}

// PlatformInfo describes a compute platform and its devices.
type PlatformInfo struct {
	Name    string
	Version string
	Devices []DeviceInfo
}

// ComputeEnv is a device that can run convolutions on behalf of the
// accelerated convolver. Convolve follows the same convention as the CPU
// convolvers (output has the source size, kernel centered at
// (kw/2, kh/2)) and blocks until the device has finished.
type ComputeEnv interface {
	Device() DeviceInfo
	Convolve(src []float64, width, height int, kernel []float64, kw, kh int) ([]float64, error)
	Close() error
}

// SharedEnv is a reference-counted ComputeEnv. The environment it wraps is
// closed when the last reference is released. A Model and the convolvers it
// creates each hold a reference.
type SharedEnv struct {
	env  ComputeEnv
	refs atomic.Int64
	once sync.Once
	err  error
}

// NewSharedEnv wraps env with a reference count of one, owned by the caller.
func NewSharedEnv(env ComputeEnv) *SharedEnv {
	s := &SharedEnv{env: env}
	s.refs.Store(1)
	return s
}

// Acquire adds a reference and returns s. Acquire on a released
// environment returns nil.
func (s *SharedEnv) Acquire() *SharedEnv {
	for {
		n := s.refs.Load()
		if n <= 0 {
			return nil
		}
		if s.refs.CompareAndSwap(n, n+1) {
			return s
		}
	}
}

// Release drops a reference, closing the wrapped environment when none
// remain. Extra releases are ignored.
func (s *SharedEnv) Release() error {
	for {
		n := s.refs.Load()
		if n <= 0 {
			return nil
		}
		if s.refs.CompareAndSwap(n, n-1) {
			if n == 1 {
				s.once.Do(func() { s.err = s.env.Close() })
				return s.err
			}
			return nil
		}
	}
}

// Refs returns the current reference count.
func (s *SharedEnv) Refs() int { return int(s.refs.Load()) }

// Device returns the wrapped device description.
func (s *SharedEnv) Device() DeviceInfo { return s.env.Device() }

// Convolve runs the wrapped environment's convolution.
func (s *SharedEnv) Convolve(src []float64, width, height int, kernel []float64, kw, kh int) ([]float64, error) {
	if s.refs.Load() <= 0 {
		return nil, ErrEnvReleased
	}
	return s.env.Convolve(src, width, height, kernel, kw, kh)
}

// Close is Release.
func (s *SharedEnv) Close() error { return s.Release() }

// PlatformDiscoverer lists the platforms of one compute API.
type PlatformDiscoverer func() ([]PlatformInfo, error)

var (
	discoverersMu sync.RWMutex
	discoverers   = make(map[string]PlatformDiscoverer)
)

// RegisterPlatformDiscoverer adds a discoverer to Platforms. It is called
// from init functions of backend packages such as profit/gpu.
func RegisterPlatformDiscoverer(name string, d PlatformDiscoverer) {
	discoverersMu.Lock()
	defer discoverersMu.Unlock()
	discoverers[name] = d
}

// Platforms returns the CPU platform followed by the platforms of every
// registered discoverer, in discoverer name order. Discoverer failures are
// joined into the error. Platforms returned alongside an error are kept,
// so indexes match what the discoverer's own package reports.
func Platforms() ([]PlatformInfo, error) {
	discoverersMu.RLock()
	names := make([]string, 0, len(discoverers))
	for n := range discoverers {
		names = append(names, n)
	}
	fns := make([]PlatformDiscoverer, 0, len(names))
	slices.Sort(names)
	for _, n := range names {
		fns = append(fns, discoverers[n])
	}
	discoverersMu.RUnlock()

	out := []PlatformInfo{cpuPlatform()}
	var errs []error
	for i, fn := range fns {
		// a discoverer may report partial results with an error
		ps, err := fn()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", names[i], err))
		}
		out = append(out, ps...)
	}
	return out, errors.Join(errs...)
}

// cpuPlatform describes the host CPU, which runs the brute and fft
// convolvers.
func cpuPlatform() PlatformInfo {
	var feats []string
	add := func(ok bool, name string) {
		if ok {
			feats = append(feats, name)
		}
	}
	switch runtime.GOARCH {
	case "amd64", "386":
		add(cpu.X86.HasSSE41, "sse4.1")
		add(cpu.X86.HasAVX, "avx")
		add(cpu.X86.HasAVX2, "avx2")
		add(cpu.X86.HasFMA, "fma")
		add(cpu.X86.HasAVX512F, "avx512f")
	case "arm64":
		add(cpu.ARM64.HasFP, "fp")
		add(cpu.ARM64.HasASIMD, "asimd")
		add(cpu.ARM64.HasSVE, "sve")
	}
	name := fmt.Sprintf("%s %d threads", runtime.GOARCH, runtime.NumCPU())
	if len(feats) > 0 {
		name += " (" + strings.Join(feats, " ") + ")"
	}
	return PlatformInfo{
		Name:    "cpu",
		Version: runtime.Version(),
		Devices: []DeviceInfo{{Name: name, DoublePrecision: true}},
	}
}
