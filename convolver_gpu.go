package profit

import "fmt"

// acceleratedConvolver hands the convolution to a ComputeEnv. It holds a
// reference on shared environments until Close.
type acceleratedConvolver struct {
	env    ComputeEnv
	shared *SharedEnv
}

func newAcceleratedConvolver(cfg ConvolverConfig) (*acceleratedConvolver, error) {
	if cfg.Env == nil {
		return nil, ErrNoComputeEnv
	}
	c := &acceleratedConvolver{env: cfg.Env}
	if s, ok := cfg.Env.(*SharedEnv); ok {
		if c.shared = s.Acquire(); c.shared == nil {
			return nil, ErrEnvReleased
		}
	}
	return c, nil
}

func (c *acceleratedConvolver) Kind() ConvolverKind { return ConvolverGPU }

func (c *acceleratedConvolver) Convolve(src, kernel *Image) (*Image, error) {
	if err := checkOperands(ConvolverGPU, src, kernel); err != nil {
		return nil, err
	}
	data, err := c.env.Convolve(src.data, src.width, src.height, kernel.data, kernel.width, kernel.height)
	if err != nil {
		return nil, &BackendError{Kind: ConvolverGPU, Err: fmt.Errorf("%s: %w", c.env.Device().Name, err)}
	}
	out, err := NewImageFromData(data, src.width, src.height)
	if err != nil {
		return nil, &BackendError{Kind: ConvolverGPU, Err: err}
	}
	return out, nil
}

func (c *acceleratedConvolver) Close() error {
	if c.shared == nil {
		return nil
	}
	s := c.shared
	c.shared = nil
	return s.Release()
}
