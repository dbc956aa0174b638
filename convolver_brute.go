package profit

import "github.com/gogpu/profit/internal/parallel"

// bruteConvolver sums over the kernel footprint of every output pixel.
type bruteConvolver struct {
	pool *parallel.WorkerPool
}

func newBruteConvolver(cfg ConvolverConfig) *bruteConvolver {
	c := &bruteConvolver{}
	if cfg.Threads != 1 {
		c.pool = parallel.NewWorkerPool(cfg.Threads)
	}
	return c
}

func (c *bruteConvolver) Kind() ConvolverKind { return ConvolverBrute }

func (c *bruteConvolver) Convolve(src, kernel *Image) (*Image, error) {
	if err := checkOperands(ConvolverBrute, src, kernel); err != nil {
		return nil, err
	}
	w, h := src.width, src.height
	kw, kh := kernel.width, kernel.height
	cx, cy := kw/2, kh/2
	out := NewImage(w, h)

	c.pool.Rows(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			// source row sy = y - j + cy must lie in [0, h)
			j0, j1 := max(0, y+cy-h+1), min(kh-1, y+cy)
			for x := 0; x < w; x++ {
				i0, i1 := max(0, x+cx-w+1), min(kw-1, x+cx)
				var sum float64
				for j := j0; j <= j1; j++ {
					srow := src.data[(y-j+cy)*w:]
					krow := kernel.data[j*kw:]
					for i := i0; i <= i1; i++ {
						sum += srow[x-i+cx] * krow[i]
					}
				}
				out.data[y*w+x] = sum
			}
		}
	})
	return out, nil
}

func (c *bruteConvolver) Close() error {
	c.pool.Close()
	return nil
}
