// Package gpu provides the GPU compute environment for the accelerated
// convolver.
//
// Importing the package registers the GPU platforms with
// [profit.Platforms] and routes its logging through [profit.SetLogger].
// Environments run the convolution in single precision through wgpu/hal
// compute shaders; the Vulkan and software backends are linked in.
//
// Usage:
//
//	env, err := gpu.NewEnv(0, 0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer env.Release()
//
//	m := profit.NewModel(w, h, profit.WithPSF(psf, 0, 0), profit.WithComputeEnv(env))
package gpu

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/profit"
	gpuimpl "github.com/gogpu/profit/internal/gpu"
)

func init() {
	profit.RegisterPlatformDiscoverer("gpu", Platforms)
	profit.RegisterLoggerSink(loggerSink{})
}

type loggerSink struct{}

func (loggerSink) SetLogger(l *slog.Logger) { gpuimpl.SetLogger(l) }

// Platforms lists the GPU platforms (one per HAL backend with adapters) and
// their devices. Indexes into the result select the device for NewEnv.
func Platforms() ([]profit.PlatformInfo, error) {
	ps, err := gpuimpl.Discover()
	out := make([]profit.PlatformInfo, 0, len(ps))
	for _, p := range ps {
		info := profit.PlatformInfo{Name: p.Name, Version: p.Version}
		for _, a := range p.Adapters {
			info.Devices = append(info.Devices, profit.DeviceInfo{
				Name:            fmt.Sprintf("%s (%s)", a.Name, a.DeviceType),
				DoublePrecision: a.Float64,
			})
		}
		out = append(out, info)
	}
	return out, err
}

// env adapts the internal convolver to profit.ComputeEnv.
type env struct {
	c    *gpuimpl.Convolver
	info profit.DeviceInfo
}

func (e *env) Device() profit.DeviceInfo { return e.info }

func (e *env) Convolve(src []float64, width, height int, kernel []float64, kw, kh int) ([]float64, error) {
	return e.c.Convolve(src, width, height, kernel, kw, kh)
}

func (e *env) Close() error { return e.c.Close() }

// NewEnv opens the device'th device of the platform'th GPU platform, as
// listed by Platforms. The returned environment holds one reference owned
// by the caller.
func NewEnv(platform, device int) (*profit.SharedEnv, error) {
	c, err := gpuimpl.Open(platform, device)
	if err != nil {
		return nil, &profit.BackendError{Kind: profit.ConvolverGPU, Err: err}
	}
	a := c.Adapter()
	return profit.NewSharedEnv(&env{
		c:    c,
		info: profit.DeviceInfo{Name: a.Name, DoublePrecision: a.Float64},
	}), nil
}

// NewEnvFromProvider creates an environment on a device shared by another
// component, such as a windowing toolkit. The provider must also expose
// HalDevice() any and HalQueue() any. Releasing the environment does not
// destroy the shared device.
func NewEnvFromProvider(provider gpucontext.DeviceProvider) (*profit.SharedEnv, error) {
	name := provider.AdapterInfo().Name
	if name == "" {
		name = "shared device"
	}
	c, err := gpuimpl.FromProvider(provider, name)
	if err != nil {
		return nil, &profit.BackendError{Kind: profit.ConvolverGPU, Err: err}
	}
	return profit.NewSharedEnv(&env{c: c, info: profit.DeviceInfo{Name: name}}), nil
}
