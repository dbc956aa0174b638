package gpu

import (
	"errors"
	"math"
	"testing"

	"github.com/gogpu/gputypes"
)

func TestWorkgroups(t *testing.T) {
	tests := []struct {
		w, h   int
		gx, gy uint32
	}{
		{1, 1, 1, 1},
		{8, 8, 1, 1},
		{9, 8, 2, 1},
		{100, 17, 13, 3},
	}
	for _, tt := range tests {
		gx, gy := workgroups(tt.w, tt.h)
		if gx != tt.gx || gy != tt.gy {
			t.Errorf("workgroups(%d, %d) = (%d, %d), want (%d, %d)", tt.w, tt.h, gx, gy, tt.gx, tt.gy)
		}
	}
}

func TestPackFloat32(t *testing.T) {
	in := []float64{0, 1, -2.5, 1e-3, 3.25}
	b := packFloat32(in)
	if len(b) != 4*len(in) {
		t.Fatalf("len = %d, want %d", len(b), 4*len(in))
	}
	out := unpackFloat32(b)
	for i := range in {
		if want := float64(float32(in[i])); out[i] != want {
			t.Errorf("out[%d] = %v, want %v", i, out[i], want)
		}
	}
}

func TestPlatformName(t *testing.T) {
	if got := platformName(gputypes.BackendEmpty); got != "Software" {
		t.Errorf("platformName(Empty) = %q, want Software", got)
	}
	if got := platformName(gputypes.BackendVulkan); got != gputypes.BackendVulkan.String() {
		t.Errorf("platformName(Vulkan) = %q", got)
	}
}

func TestDiscoverSoftwareLast(t *testing.T) {
	platforms, _ := Discover()
	for i, p := range platforms {
		if len(p.Adapters) == 0 {
			t.Errorf("platform %d (%s) has no adapters", i, p.Name)
		}
		if p.Backend == gputypes.BackendEmpty && i != len(platforms)-1 {
			t.Errorf("software platform at %d of %d, want last", i, len(platforms))
		}
	}
}

func TestOpenOutOfRange(t *testing.T) {
	_, err := Open(1000, 0)
	if !errors.Is(err, ErrNoAdapter) {
		t.Errorf("Open(1000, 0) error = %v, want ErrNoAdapter", err)
	}
}

func TestFromProviderRejects(t *testing.T) {
	if _, err := FromProvider(struct{}{}, "x"); err == nil {
		t.Error("FromProvider(struct{}) succeeded, want error")
	}
}

// openHardware opens the first non-software adapter or skips.
func openHardware(t *testing.T) *Convolver {
	t.Helper()
	platforms, _ := Discover()
	for i, p := range platforms {
		if p.Backend == gputypes.BackendEmpty {
			continue
		}
		c, err := Open(i, 0)
		if err != nil {
			t.Skipf("GPU not available: %v", err)
		}
		return c
	}
	t.Skip("no hardware GPU adapter")
	return nil
}

func TestConvolveImpulse(t *testing.T) {
	c := openHardware(t)
	defer c.Close()

	const w, h = 13, 9
	src := make([]float64, w*h)
	for i := range src {
		src[i] = float64(i%7) * 0.5
	}
	kernel := make([]float64, 9)
	kernel[4] = 1

	out, err := c.Convolve(src, w, h, kernel, 3, 3)
	if err != nil {
		t.Fatalf("Convolve: %v", err)
	}
	for i := range src {
		if math.Abs(out[i]-src[i]) > 1e-6 {
			t.Fatalf("out[%d] = %v, want %v", i, out[i], src[i])
		}
	}
}

func TestConvolveShift(t *testing.T) {
	c := openHardware(t)
	defer c.Close()

	const w, h = 5, 5
	src := make([]float64, w*h)
	src[2*w+2] = 1
	// kernel weight at (2, 1) of a 3x3 kernel moves the point by (+1, 0)
	kernel := make([]float64, 9)
	kernel[1*3+2] = 2

	out, err := c.Convolve(src, w, h, kernel, 3, 3)
	if err != nil {
		t.Fatalf("Convolve: %v", err)
	}
	if got := out[2*w+3]; math.Abs(got-2) > 1e-6 {
		t.Errorf("out(3,2) = %v, want 2", got)
	}
	if got := out[2*w+2]; got != 0 {
		t.Errorf("out(2,2) = %v, want 0", got)
	}
}

func TestConvolveAfterClose(t *testing.T) {
	c := openHardware(t)
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	_, err := c.Convolve([]float64{1}, 1, 1, []float64{1}, 1, 1)
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Convolve after Close error = %v, want ErrClosed", err)
	}
}

func TestConvolveRejectsMismatch(t *testing.T) {
	c := &Convolver{}
	if _, err := c.Convolve([]float64{1, 2}, 1, 1, []float64{1}, 1, 1); err == nil {
		t.Error("Convolve with bad length succeeded")
	}
	if _, err := c.Convolve(nil, 0, 1, []float64{1}, 1, 1); err == nil {
		t.Error("Convolve with zero width succeeded")
	}
}
