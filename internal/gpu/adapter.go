package gpu

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Backends register themselves with the HAL registry.
	_ "github.com/gogpu/wgpu/hal/software"
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// ErrNoAdapter is returned when a platform or device index does not name an
// enumerated adapter.
var ErrNoAdapter = errors.New("gpu: no such adapter")

// Adapter describes one enumerated GPU adapter.
type Adapter struct {
	Name       string
	DeviceType gputypes.DeviceType
	Driver     string
	Float64    bool
}

// Platform groups the adapters exposed by one HAL backend.
type Platform struct {
	Backend  gputypes.Backend
	Name     string
	Version  string
	Adapters []Adapter
}

// backends returns the registered HAL backends with hardware backends first
// and the software rasterizer last.
func backends() []hal.Backend {
	var out []hal.Backend
	for _, v := range hal.AvailableBackends() {
		if b, ok := hal.GetBackend(v); ok {
			out = append(out, b)
		}
	}
	slices.SortStableFunc(out, func(a, b hal.Backend) int {
		return cmp.Compare(rank(a.Variant()), rank(b.Variant()))
	})
	return out
}

func rank(b gputypes.Backend) int {
	if b == gputypes.BackendEmpty {
		return 1
	}
	return 0
}

// platformName names a backend for display. The software backend reports
// the empty variant.
func platformName(b gputypes.Backend) string {
	if b == gputypes.BackendEmpty {
		return "Software"
	}
	return b.String()
}

// Discover enumerates the adapters of every registered backend. A backend
// whose instance cannot be created is skipped; its error is joined into
// the result.
func Discover() ([]Platform, error) {
	var (
		out  []Platform
		errs []error
	)
	for _, b := range backends() {
		instance, err := b.CreateInstance(&hal.InstanceDescriptor{Backends: gputypes.BackendsAll})
		if err != nil {
			slogger().Debug("gpu: backend unavailable", "backend", platformName(b.Variant()), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", platformName(b.Variant()), err))
			continue
		}
		exposed := instance.EnumerateAdapters(nil)
		p := Platform{Backend: b.Variant(), Name: platformName(b.Variant())}
		for _, ea := range exposed {
			if p.Version == "" {
				p.Version = ea.Info.DriverInfo
			}
			p.Adapters = append(p.Adapters, Adapter{
				Name:       ea.Info.Name,
				DeviceType: ea.Info.DeviceType,
				Driver:     ea.Info.Driver,
				Float64:    ea.Features.Contains(gputypes.FeatureShaderFloat64),
			})
		}
		instance.Destroy()
		if len(p.Adapters) > 0 {
			out = append(out, p)
		}
	}
	return out, errors.Join(errs...)
}

// openAdapter opens the device'th adapter of the platform'th platform, in
// Discover order. The returned instance owns the device.
func openAdapter(platform, device int) (hal.Instance, hal.OpenDevice, Adapter, error) {
	idx := 0
	for _, b := range backends() {
		instance, err := b.CreateInstance(&hal.InstanceDescriptor{Backends: gputypes.BackendsAll})
		if err != nil {
			continue
		}
		exposed := instance.EnumerateAdapters(nil)
		if len(exposed) == 0 {
			instance.Destroy()
			continue
		}
		if idx != platform {
			idx++
			instance.Destroy()
			continue
		}
		if device < 0 || device >= len(exposed) {
			instance.Destroy()
			return nil, hal.OpenDevice{}, Adapter{}, fmt.Errorf("%w: device %d of platform %d", ErrNoAdapter, device, platform)
		}
		ea := exposed[device]
		od, err := ea.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
		if err != nil {
			instance.Destroy()
			return nil, hal.OpenDevice{}, Adapter{}, fmt.Errorf("gpu: open %s: %w", ea.Info.Name, err)
		}
		info := Adapter{
			Name:       ea.Info.Name,
			DeviceType: ea.Info.DeviceType,
			Driver:     ea.Info.Driver,
			Float64:    ea.Features.Contains(gputypes.FeatureShaderFloat64),
		}
		return instance, od, info, nil
	}
	return nil, hal.OpenDevice{}, Adapter{}, fmt.Errorf("%w: platform %d", ErrNoAdapter, platform)
}
