package profit

import (
	"errors"
	"math"
	"slices"
	"testing"
)

// fakeEnv is a ComputeEnv that convolves on the CPU.
type fakeEnv struct {
	err    error
	closed int
	calls  int
}

func (e *fakeEnv) Device() DeviceInfo {
	return DeviceInfo{Name: "fake", DoublePrecision: true}
}

func (e *fakeEnv) Convolve(src []float64, w, h int, kernel []float64, kw, kh int) ([]float64, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out, err := newBruteConvolver(ConvolverConfig{Threads: 1}).Convolve(
		&Image{width: w, height: h, data: src},
		&Image{width: kw, height: kh, data: kernel})
	if err != nil {
		return nil, err
	}
	return out.data, nil
}

func (e *fakeEnv) Close() error {
	e.closed++
	return nil
}

// testImage returns a deterministic non-trivial image.
func testImage(w, h int) *Image {
	im := NewImage(w, h)
	for y := range h {
		for x := range w {
			im.data[y*w+x] = math.Sin(float64(3*x+1)) + math.Cos(float64(y*y)) + 2
		}
	}
	return im
}

func impulse(w, h int) *Image {
	k := NewImage(w, h)
	k.Set(w/2, h/2, 1)
	return k
}

func allConvolvers(t *testing.T) map[string]Convolver {
	t.Helper()
	cfgs := map[string]ConvolverConfig{
		"brute":        {Kind: ConvolverBrute},
		"brute-serial": {Kind: ConvolverBrute, Threads: 1},
		"fft-estimate": {Kind: ConvolverFFT, Effort: EffortEstimate},
		"fft-smooth":   {Kind: ConvolverFFT, Effort: EffortSmooth, Threads: 1},
		"fft-measure":  {Kind: ConvolverFFT, Effort: EffortMeasure, SrcWidth: 13, SrcHeight: 9, KernelWidth: 5, KernelHeight: 3},
		"fft-reuse":    {Kind: ConvolverFFT, ReuseKernelFFT: true},
		"gpu":          {Kind: ConvolverGPU, Env: &fakeEnv{}},
	}
	out := make(map[string]Convolver, len(cfgs))
	for name, cfg := range cfgs {
		c, err := NewConvolver(cfg)
		if err != nil {
			t.Fatalf("NewConvolver(%s): %v", name, err)
		}
		t.Cleanup(func() { c.Close() })
		out[name] = c
	}
	return out
}

func TestConvolveImpulse(t *testing.T) {
	src := testImage(13, 9)
	for name, c := range allConvolvers(t) {
		for _, k := range []*Image{impulse(1, 1), impulse(3, 3), impulse(5, 3), impulse(4, 4)} {
			got, err := c.Convolve(src, k)
			if err != nil {
				t.Fatalf("%s: Convolve: %v", name, err)
			}
			if got.Width() != src.Width() || got.Height() != src.Height() {
				t.Fatalf("%s: output %dx%d, want source size", name, got.Width(), got.Height())
			}
			for i, v := range src.data {
				if math.Abs(got.data[i]-v) > 1e-12 {
					t.Fatalf("%s: %dx%d impulse: pixel %d = %v, want %v",
						name, k.Width(), k.Height(), i, got.data[i], v)
				}
			}
		}
	}
}

func TestConvolveShift(t *testing.T) {
	// a kernel with its only weight right of center moves content right
	src := NewImage(7, 5)
	src.Set(2, 2, 1)
	k := NewImage(3, 3)
	k.Set(2, 1, 2)
	for name, c := range allConvolvers(t) {
		got, err := c.Convolve(src, k)
		if err != nil {
			t.Fatalf("%s: Convolve: %v", name, err)
		}
		if v := got.At(3, 2); math.Abs(v-2) > 1e-12 {
			t.Errorf("%s: At(3, 2) = %v, want 2", name, v)
		}
		if s := got.Sum(); math.Abs(s-2) > 1e-12 {
			t.Errorf("%s: sum = %v, want 2", name, s)
		}
	}
}

func TestConvolveAgreement(t *testing.T) {
	src := testImage(31, 22)
	k := MoffatPSF(3, 2, 7)
	ref, err := newBruteConvolver(ConvolverConfig{Threads: 1}).Convolve(src, k)
	if err != nil {
		t.Fatal(err)
	}
	tol := 1e-9 * ref.Max()
	for name, c := range allConvolvers(t) {
		got, err := c.Convolve(src, k)
		if err != nil {
			t.Fatalf("%s: Convolve: %v", name, err)
		}
		for i, v := range ref.data {
			if math.Abs(got.data[i]-v) > tol {
				t.Fatalf("%s: pixel %d = %v, want %v", name, i, got.data[i], v)
			}
		}
	}
}

func TestConvolveEdgesAreZeroPadded(t *testing.T) {
	src := NewImage(4, 4)
	for i := range src.data {
		src.data[i] = 1
	}
	k := NewImage(3, 3)
	for i := range k.data {
		k.data[i] = 1
	}
	for name, c := range allConvolvers(t) {
		got, err := c.Convolve(src, k)
		if err != nil {
			t.Fatalf("%s: Convolve: %v", name, err)
		}
		for _, tt := range []struct{ x, y, want int }{{0, 0, 4}, {1, 0, 6}, {1, 1, 9}, {3, 3, 4}} {
			if v := got.At(tt.x, tt.y); math.Abs(v-float64(tt.want)) > 1e-12 {
				t.Errorf("%s: At(%d, %d) = %v, want %d", name, tt.x, tt.y, v, tt.want)
			}
		}
	}
}

func TestFFTReuseKernel(t *testing.T) {
	c := newFFTConvolver(ConvolverConfig{ReuseKernelFFT: true, Threads: 1})
	defer c.Close()
	k := GaussianPSF(2, 5)
	a, b := testImage(10, 10), testImage(10, 10)
	b.Scale(2)

	ra, err := c.Convolve(a, k)
	if err != nil {
		t.Fatal(err)
	}
	first := c.cached
	if first == nil || first.kernel != k {
		t.Fatal("kernel spectrum not cached")
	}
	rb, err := c.Convolve(b, k)
	if err != nil {
		t.Fatal(err)
	}
	if c.cached != first {
		t.Error("kernel spectrum recomputed for the same kernel")
	}
	for i := range ra.data {
		if math.Abs(rb.data[i]-2*ra.data[i]) > 1e-12 {
			t.Fatalf("pixel %d = %v, want %v", i, rb.data[i], 2*ra.data[i])
		}
	}

	// a different kernel or operand size replaces the cache
	if _, err := c.Convolve(a, GaussianPSF(3, 5)); err != nil {
		t.Fatal(err)
	}
	if c.cached == first {
		t.Error("cache kept for a different kernel")
	}
	second := c.cached
	if _, err := c.Convolve(testImage(12, 10), second.kernel); err != nil {
		t.Fatal(err)
	}
	if c.cached == second {
		t.Error("cache kept for a different padded size")
	}
}

func TestFFTNoReuse(t *testing.T) {
	c := newFFTConvolver(ConvolverConfig{Threads: 1})
	if _, err := c.Convolve(testImage(6, 6), GaussianPSF(1, 3)); err != nil {
		t.Fatal(err)
	}
	if c.cached != nil {
		t.Error("kernel spectrum cached without ReuseKernelFFT")
	}
}

func TestNextSmooth(t *testing.T) {
	tests := []struct{ n, want int }{
		{0, 1}, {1, 1}, {2, 2}, {7, 8}, {11, 12}, {13, 15}, {17, 18}, {31, 32}, {97, 100}, {121, 125},
	}
	for _, tt := range tests {
		if got := nextSmooth(tt.n); got != tt.want {
			t.Errorf("nextSmooth(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestNextPow2(t *testing.T) {
	tests := []struct{ n, want int }{{0, 1}, {1, 1}, {3, 4}, {64, 64}, {65, 128}}
	for _, tt := range tests {
		if got := nextPow2(tt.n); got != tt.want {
			t.Errorf("nextPow2(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestMeasuredSize(t *testing.T) {
	for _, n := range []int{37, 64, 101} {
		m := measuredSize(n)
		if m != n && m != nextSmooth(n) && m != nextPow2(n) {
			t.Errorf("measuredSize(%d) = %d, not a candidate", n, m)
		}
		if again := measuredSize(n); again != m {
			t.Errorf("measuredSize(%d) = %d then %d", n, m, again)
		}
	}
}

func TestNewConvolverErrors(t *testing.T) {
	if _, err := NewConvolver(ConvolverConfig{Kind: "opencl"}); !errors.Is(err, ErrUnknownConvolver) {
		t.Errorf("unknown kind error = %v, want ErrUnknownConvolver", err)
	}
	_, err := NewConvolver(ConvolverConfig{Kind: ConvolverGPU})
	if !errors.Is(err, ErrNoComputeEnv) || !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("gpu without env error = %v, want ErrNoComputeEnv", err)
	}

	env := NewSharedEnv(&fakeEnv{})
	env.Release()
	if _, err := NewConvolver(ConvolverConfig{Kind: ConvolverGPU, Env: env}); !errors.Is(err, ErrEnvReleased) {
		t.Errorf("released env error = %v, want ErrEnvReleased", err)
	}

	c, err := NewConvolver(ConvolverConfig{})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if c.Kind() != ConvolverBrute {
		t.Errorf("default Kind() = %q, want %q", c.Kind(), ConvolverBrute)
	}
}

func TestConvolverKinds(t *testing.T) {
	kinds := ConvolverKinds()
	for _, k := range []ConvolverKind{ConvolverBrute, ConvolverFFT, ConvolverGPU} {
		if !slices.Contains(kinds, k) {
			t.Errorf("ConvolverKinds() = %v, missing %q", kinds, k)
		}
	}
	if !slices.IsSorted(kinds) {
		t.Errorf("ConvolverKinds() = %v, not sorted", kinds)
	}
}

func TestConvolveBadOperands(t *testing.T) {
	for name, c := range allConvolvers(t) {
		if _, err := c.Convolve(nil, impulse(1, 1)); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%s: nil source error = %v, want ErrInvalidConfig", name, err)
		}
		_, err := c.Convolve(NewImage(3, 3), NewImage(0, 0))
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%s: empty kernel error = %v, want ErrInvalidConfig", name, err)
		}
		var be *BackendError
		if !errors.As(err, &be) || be.Kind != c.Kind() {
			t.Errorf("%s: error %v does not name the backend", name, err)
		}
	}
}

func TestSharedEnvRefcount(t *testing.T) {
	fe := &fakeEnv{}
	env := NewSharedEnv(fe)
	if env.Refs() != 1 {
		t.Fatalf("Refs() = %d, want 1", env.Refs())
	}

	c, err := NewConvolver(ConvolverConfig{Kind: ConvolverGPU, Env: env})
	if err != nil {
		t.Fatal(err)
	}
	if env.Refs() != 2 {
		t.Errorf("Refs() = %d with a convolver, want 2", env.Refs())
	}
	if err := env.Release(); err != nil {
		t.Fatal(err)
	}
	if fe.closed != 0 {
		t.Fatal("environment closed while a convolver holds it")
	}
	if _, err := c.Convolve(testImage(4, 4), impulse(3, 3)); err != nil {
		t.Errorf("Convolve with borrowed env: %v", err)
	}

	c.Close()
	c.Close()
	if fe.closed != 1 {
		t.Errorf("environment closed %d times, want 1", fe.closed)
	}
	if env.Acquire() != nil {
		t.Error("Acquire on a released environment succeeded")
	}
	if err := env.Release(); err != nil {
		t.Errorf("extra Release: %v", err)
	}
	if fe.closed != 1 {
		t.Errorf("environment closed %d times after extra Release, want 1", fe.closed)
	}
	if _, err := env.Convolve(nil, 0, 0, nil, 0, 0); !errors.Is(err, ErrEnvReleased) {
		t.Errorf("Convolve after release error = %v, want ErrEnvReleased", err)
	}
}

func TestGPUConvolverWrapsEnvError(t *testing.T) {
	boom := errors.New("out of memory")
	fe := &fakeEnv{err: boom}
	c, err := NewConvolver(ConvolverConfig{Kind: ConvolverGPU, Env: fe})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Convolve(testImage(3, 3), impulse(1, 1))
	var be *BackendError
	if !errors.Is(err, boom) || !errors.As(err, &be) || be.Kind != ConvolverGPU {
		t.Errorf("error = %v, want gpu BackendError wrapping %v", err, boom)
	}
	// a plain ComputeEnv is not owned by the convolver
	c.Close()
	if fe.closed != 0 {
		t.Errorf("plain environment closed %d times, want 0", fe.closed)
	}
}

func TestPlatformsCPUFirst(t *testing.T) {
	ps, _ := Platforms()
	if len(ps) == 0 || ps[0].Name != "cpu" {
		t.Fatalf("Platforms() = %+v, want cpu first", ps)
	}
	if len(ps[0].Devices) != 1 || !ps[0].Devices[0].DoublePrecision {
		t.Errorf("cpu devices = %+v", ps[0].Devices)
	}
}

func TestPlatformDiscovererErrors(t *testing.T) {
	boom := errors.New("driver missing")
	RegisterPlatformDiscoverer("zz-test-broken", func() ([]PlatformInfo, error) { return nil, boom })
	RegisterPlatformDiscoverer("zz-test-ok", func() ([]PlatformInfo, error) {
		return []PlatformInfo{{Name: "test", Devices: []DeviceInfo{{Name: "dev"}}}}, nil
	})
	defer func() {
		discoverersMu.Lock()
		delete(discoverers, "zz-test-broken")
		delete(discoverers, "zz-test-ok")
		discoverersMu.Unlock()
	}()

	ps, err := Platforms()
	if !errors.Is(err, boom) {
		t.Errorf("Platforms error = %v, want %v", err, boom)
	}
	if ps[len(ps)-1].Name != "test" {
		t.Errorf("last platform = %q, want test", ps[len(ps)-1].Name)
	}
}

func TestPlatformsKeepsPartialResults(t *testing.T) {
	partial := errors.New("vulkan: loader not found")
	RegisterPlatformDiscoverer("zz-test-partial", func() ([]PlatformInfo, error) {
		return []PlatformInfo{{Name: "Software", Devices: []DeviceInfo{{Name: "cpu rasterizer"}}}}, partial
	})
	defer func() {
		discoverersMu.Lock()
		delete(discoverers, "zz-test-partial")
		discoverersMu.Unlock()
	}()

	ps, err := Platforms()
	if !errors.Is(err, partial) {
		t.Errorf("Platforms error = %v, want %v", err, partial)
	}
	if last := ps[len(ps)-1]; last.Name != "Software" || len(last.Devices) != 1 {
		t.Errorf("last platform = %+v, want the platform returned with the error", last)
	}
}

func BenchmarkConvolve(b *testing.B) {
	src := testImage(256, 256)
	k := MoffatPSF(4, 2.5, 25)
	for _, cfg := range []ConvolverConfig{
		{Kind: ConvolverBrute},
		{Kind: ConvolverFFT, Effort: EffortSmooth},
		{Kind: ConvolverFFT, Effort: EffortSmooth, ReuseKernelFFT: true},
	} {
		name := string(cfg.Kind)
		if cfg.ReuseKernelFFT {
			name += "-reuse"
		}
		b.Run(name, func(b *testing.B) {
			c, err := NewConvolver(cfg)
			if err != nil {
				b.Fatal(err)
			}
			defer c.Close()
			b.ReportAllocs()
			for b.Loop() {
				if _, err := c.Convolve(src, k); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
