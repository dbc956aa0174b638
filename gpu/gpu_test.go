package gpu

import (
	"errors"
	"math"
	"testing"

	"github.com/gogpu/profit"
)

func TestPlatformsRegistered(t *testing.T) {
	all, _ := profit.Platforms()
	if len(all) == 0 || all[0].Name != "cpu" {
		t.Fatalf("Platforms()[0] = %+v, want cpu platform", all)
	}
	gpus, _ := Platforms()
	if len(all) != 1+len(gpus) {
		t.Errorf("profit.Platforms() has %d entries, want %d", len(all), 1+len(gpus))
	}
}

func TestNewEnvBadIndex(t *testing.T) {
	_, err := NewEnv(1000, 0)
	if !errors.Is(err, profit.ErrBackendUnavailable) {
		t.Errorf("NewEnv(1000, 0) error = %v, want ErrBackendUnavailable", err)
	}
}

// hardwareEnv opens the first hardware GPU or skips.
func hardwareEnv(t *testing.T) *profit.SharedEnv {
	t.Helper()
	ps, _ := Platforms()
	for i, p := range ps {
		if p.Name == "Software" {
			continue
		}
		env, err := NewEnv(i, 0)
		if err != nil {
			t.Skipf("GPU not available: %v", err)
		}
		return env
	}
	t.Skip("no hardware GPU adapter")
	return nil
}

func TestModelOnGPU(t *testing.T) {
	env := hardwareEnv(t)
	defer env.Release()

	build := func(kind profit.ConvolverKind) *profit.Image {
		t.Helper()
		opts := []profit.ModelOption{
			profit.WithPSF(profit.GaussianPSF(2, 7), 0, 0),
			profit.WithConvolverKind(kind),
		}
		if kind == profit.ConvolverGPU {
			opts = append(opts, profit.WithComputeEnv(env))
		}
		m := profit.NewModel(24, 24, opts...)
		defer m.Close()
		p, err := m.AddProfile("sersic")
		if err != nil {
			t.Fatal(err)
		}
		for name, v := range map[string]any{"xcen": 12.0, "ycen": 12.0, "re": 3.0, "nser": 2.0, "convolve": true} {
			if err := p.SetParam(name, v); err != nil {
				t.Fatal(err)
			}
		}
		img, _, err := m.Evaluate()
		if err != nil {
			t.Fatalf("Evaluate(%s): %v", kind, err)
		}
		return img
	}

	want := build(profit.ConvolverBrute)
	got := build(profit.ConvolverGPU)
	tol := 1e-5 * want.Max()
	for i, v := range want.Data() {
		if math.Abs(got.Data()[i]-v) > tol {
			t.Fatalf("pixel %d = %v, want %v (tol %v)", i, got.Data()[i], v, tol)
		}
	}
	if env.Refs() != 1 {
		t.Errorf("Refs() = %d after models closed, want 1", env.Refs())
	}
}

// softwareEnv opens the software adapter or skips.
func softwareEnv(t *testing.T) *profit.SharedEnv {
	t.Helper()
	ps, _ := Platforms()
	for i, p := range ps {
		if p.Name != "Software" {
			continue
		}
		env, err := NewEnv(i, 0)
		if err != nil {
			t.Skipf("software adapter not available: %v", err)
		}
		return env
	}
	t.Skip("no software adapter")
	return nil
}

// ramp returns a w x h image with varied positive values.
func ramp(t *testing.T, w, h int) *profit.Image {
	t.Helper()
	data := make([]float64, w*h)
	for i := range data {
		data[i] = 1 + float64((i*7)%11)/4
	}
	im, err := profit.NewImageFromData(data, w, h)
	if err != nil {
		t.Fatal(err)
	}
	return im
}

func convolveOn(t *testing.T, kind profit.ConvolverKind, env profit.ComputeEnv, src, k *profit.Image) *profit.Image {
	t.Helper()
	c, err := profit.NewConvolver(profit.ConvolverConfig{Kind: kind, Env: env})
	if err != nil {
		t.Fatalf("NewConvolver(%s): %v", kind, err)
	}
	defer c.Close()
	out, err := c.Convolve(src, k)
	if err != nil {
		t.Fatalf("Convolve(%s): %v", kind, err)
	}
	return out
}

func assertClose(t *testing.T, got, want *profit.Image, tol float64) {
	t.Helper()
	if got.Width() != want.Width() || got.Height() != want.Height() {
		t.Fatalf("size %dx%d, want %dx%d", got.Width(), got.Height(), want.Width(), want.Height())
	}
	for i, v := range want.Data() {
		if math.Abs(got.Data()[i]-v) > tol {
			t.Fatalf("pixel %d = %v, want %v (tol %v)", i, got.Data()[i], v, tol)
		}
	}
}

func TestSoftwareConvolveIdentity(t *testing.T) {
	env := softwareEnv(t)
	defer env.Release()

	src := ramp(t, 13, 9)
	for _, size := range [][2]int{{1, 1}, {3, 3}, {5, 3}} {
		k := profit.NewImage(size[0], size[1])
		k.Set(size[0]/2, size[1]/2, 1)
		got := convolveOn(t, profit.ConvolverGPU, env, src, k)
		assertClose(t, got, src, 1e-5*src.Max())
	}
}

func TestSoftwareConvolveShift(t *testing.T) {
	env := softwareEnv(t)
	defer env.Release()

	src := profit.NewImage(7, 5)
	src.Set(2, 2, 1)
	k := profit.NewImage(3, 3)
	k.Set(2, 1, 2)
	got := convolveOn(t, profit.ConvolverGPU, env, src, k)
	if v := got.At(3, 2); math.Abs(v-2) > 1e-6 {
		t.Errorf("At(3, 2) = %v, want 2", v)
	}
	if s := got.Sum(); math.Abs(s-2) > 1e-6 {
		t.Errorf("sum = %v, want 2", s)
	}
}

func TestSoftwareMatchesBrute(t *testing.T) {
	env := softwareEnv(t)
	defer env.Release()

	src := ramp(t, 31, 22)
	k := profit.MoffatPSF(3, 2, 7)
	want := convolveOn(t, profit.ConvolverBrute, nil, src, k)
	got := convolveOn(t, profit.ConvolverGPU, env, src, k)
	assertClose(t, got, want, 1e-5*want.Max())
	if env.Refs() != 1 {
		t.Errorf("Refs() = %d after convolvers closed, want 1", env.Refs())
	}
}
