package profit

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/gogpu/profit/internal/parallel"
)

// fftConvolver convolves by zero padding both operands to at least
// src+kernel-1 in each dimension, multiplying their 2D spectra and
// transforming back. Rows use a real FFT, so spectra hold pw/2+1 columns.
type fftConvolver struct {
	pool   *parallel.WorkerPool
	effort FFTEffort
	reuse  bool

	mu     sync.Mutex
	cached *kernelSpectrum
}

// kernelSpectrum is the transform of a kernel padded to pw x ph.
type kernelSpectrum struct {
	kernel *Image
	kw, kh int
	pw, ph int
	data   []complex128
}

func newFFTConvolver(cfg ConvolverConfig) *fftConvolver {
	c := &fftConvolver{effort: cfg.Effort, reuse: cfg.ReuseKernelFFT}
	if cfg.Threads != 1 {
		c.pool = parallel.NewWorkerPool(cfg.Threads)
	}
	// plan ahead so the first Convolve does not pay for measuring
	if cfg.SrcWidth > 0 && cfg.KernelWidth > 0 {
		c.size(cfg.SrcWidth + cfg.KernelWidth - 1)
	}
	if cfg.SrcHeight > 0 && cfg.KernelHeight > 0 {
		c.size(cfg.SrcHeight + cfg.KernelHeight - 1)
	}
	return c
}

func (c *fftConvolver) Kind() ConvolverKind { return ConvolverFFT }

func (c *fftConvolver) Close() error {
	c.pool.Close()
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
	return nil
}

func (c *fftConvolver) Convolve(src, kernel *Image) (*Image, error) {
	if err := checkOperands(ConvolverFFT, src, kernel); err != nil {
		return nil, err
	}
	w, h := src.width, src.height
	kw, kh := kernel.width, kernel.height
	out := NewImage(w, h)
	if w == 0 || h == 0 {
		return out, nil
	}

	pw := c.size(w + kw - 1)
	ph := c.size(h + kh - 1)
	cw := pw/2 + 1

	kspec := c.kernelSpectrum(kernel, pw, ph)
	spec := c.forward(src, pw, ph)
	for i := range spec {
		spec[i] *= kspec[i]
	}

	// inverse columns, then rows; only the rows that land in the output
	c.pool.Rows(cw, func(u0, u1 int) {
		cfft := fourier.NewCmplxFFT(ph)
		col := make([]complex128, ph)
		for u := u0; u < u1; u++ {
			for v := range ph {
				col[v] = spec[v*cw+u]
			}
			cfft.Sequence(col, col)
			for v := range ph {
				spec[v*cw+u] = col[v]
			}
		}
	})

	cx, cy := kw/2, kh/2
	norm := 1 / float64(pw*ph)
	c.pool.Rows(h, func(y0, y1 int) {
		rfft := fourier.NewFFT(pw)
		line := make([]float64, pw)
		for y := y0; y < y1; y++ {
			v := y + cy
			rfft.Sequence(line, spec[v*cw:(v+1)*cw])
			row := out.data[y*w : (y+1)*w]
			for x := range row {
				row[x] = line[x+cx] * norm
			}
		}
	})
	return out, nil
}

// forward returns the 2D spectrum of im zero padded to pw x ph, stored
// row-major with pw/2+1 columns.
func (c *fftConvolver) forward(im *Image, pw, ph int) []complex128 {
	cw := pw/2 + 1
	spec := make([]complex128, ph*cw)

	c.pool.Rows(im.height, func(y0, y1 int) {
		rfft := fourier.NewFFT(pw)
		line := make([]float64, pw)
		for y := y0; y < y1; y++ {
			copy(line, im.data[y*im.width:(y+1)*im.width])
			rfft.Coefficients(spec[y*cw:(y+1)*cw], line)
		}
	})
	c.pool.Rows(cw, func(u0, u1 int) {
		cfft := fourier.NewCmplxFFT(ph)
		col := make([]complex128, ph)
		for u := u0; u < u1; u++ {
			for v := range ph {
				col[v] = spec[v*cw+u]
			}
			cfft.Coefficients(col, col)
			for v := range ph {
				spec[v*cw+u] = col[v]
			}
		}
	})
	return spec
}

func (c *fftConvolver) kernelSpectrum(kernel *Image, pw, ph int) []complex128 {
	if !c.reuse {
		return c.forward(kernel, pw, ph)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	k := c.cached
	if k != nil && k.kernel == kernel && k.kw == kernel.width && k.kh == kernel.height && k.pw == pw && k.ph == ph {
		return k.data
	}
	c.cached = &kernelSpectrum{
		kernel: kernel,
		kw:     kernel.width,
		kh:     kernel.height,
		pw:     pw,
		ph:     ph,
		data:   c.forward(kernel, pw, ph),
	}
	return c.cached.data
}

// size returns the transform length used for a linear convolution of
// length n.
func (c *fftConvolver) size(n int) int {
	switch c.effort {
	case EffortSmooth:
		return nextSmooth(n)
	case EffortMeasure:
		return measuredSize(n)
	default:
		return n
	}
}

// nextSmooth returns the smallest m >= n whose prime factors are all in
// {2, 3, 5}.
func nextSmooth(n int) int {
	if n <= 1 {
		return 1
	}
	for m := n; ; m++ {
		r := m
		for _, p := range [...]int{2, 3, 5} {
			for r%p == 0 {
				r /= p
			}
		}
		if r == 1 {
			return m
		}
	}
}

func nextPow2(n int) int {
	m := 1
	for m < n {
		m <<= 1
	}
	return m
}

var (
	planMu sync.Mutex
	plans  = make(map[int]int)
)

// measuredSize times a forward and inverse real transform at each
// candidate length and returns the fastest. Results are cached.
func measuredSize(n int) int {
	planMu.Lock()
	defer planMu.Unlock()
	if m, ok := plans[n]; ok {
		return m
	}

	candidates := []int{n}
	if s := nextSmooth(n); s != n {
		candidates = append(candidates, s)
	}
	if p := nextPow2(n); p != n && p != candidates[len(candidates)-1] {
		candidates = append(candidates, p)
	}

	best, bestTime := n, time.Duration(1<<62)
	for _, m := range candidates {
		fft := fourier.NewFFT(m)
		seq := make([]float64, m)
		coeff := make([]complex128, m/2+1)
		const reps = 8
		start := time.Now()
		for range reps {
			fft.Coefficients(coeff, seq)
			fft.Sequence(seq, coeff)
		}
		if d := time.Since(start); d < bestTime {
			best, bestTime = m, d
		}
	}
	plans[n] = best
	Logger().Debug("fft plan measured", "n", n, "size", best, "candidates", candidates)
	return best
}
