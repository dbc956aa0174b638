package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ErrClosed is returned by Convolve after Close.
var ErrClosed = errors.New("gpu: convolver closed")

// paramsSize is the size of the shader's Params uniform (4 x u32).
const paramsSize = 16

// Convolver runs the convolution compute shader on one device. Calls to
// Convolve are serialized. Arithmetic on the device is single precision.
type Convolver struct {
	mu sync.Mutex

	instance hal.Instance // nil for external devices
	device   hal.Device
	queue    hal.Queue
	info     Adapter

	// externalDevice is true when the device belongs to a provider and must
	// not be destroyed on Close.
	externalDevice bool

	shader         hal.ShaderModule
	bindLayout     hal.BindGroupLayout
	pipelineLayout hal.PipelineLayout
	pipeline       hal.ComputePipeline

	closed bool
}

// Open creates a convolver on the device'th adapter of the platform'th
// platform returned by Discover.
func Open(platform, device int) (*Convolver, error) {
	instance, od, info, err := openAdapter(platform, device)
	if err != nil {
		return nil, err
	}
	c := &Convolver{instance: instance, device: od.Device, queue: od.Queue, info: info}
	if err := c.createPipeline(); err != nil {
		c.destroyDevice()
		return nil, err
	}
	slogger().Info("gpu: convolver ready", "adapter", info.Name, "type", info.DeviceType.String(), "float64", info.Float64)
	return c, nil
}

// FromProvider creates a convolver on a device owned by another component.
// The provider must expose HalDevice() any and HalQueue() any returning a
// hal.Device and a hal.Queue. The device is not destroyed on Close.
func FromProvider(provider any, name string) (*Convolver, error) {
	hp, ok := provider.(interface {
		HalDevice() any
		HalQueue() any
	})
	if !ok {
		return nil, fmt.Errorf("gpu: provider does not expose HAL device")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("gpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("gpu: provider HalQueue is not hal.Queue")
	}
	c := &Convolver{
		device:         device,
		queue:          queue,
		info:           Adapter{Name: name},
		externalDevice: true,
	}
	if err := c.createPipeline(); err != nil {
		return nil, err
	}
	slogger().Info("gpu: convolver ready (shared device)", "adapter", name)
	return c, nil
}

// Adapter returns the description of the device the convolver runs on.
func (c *Convolver) Adapter() Adapter { return c.info }

func (c *Convolver) createPipeline() error {
	spirv, err := compileShader(convolveShaderSource)
	if err != nil {
		return err
	}
	c.shader, err = c.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "profit_convolve",
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return fmt.Errorf("gpu: create shader module: %w", err)
	}

	storage := func(binding uint32, t gputypes.BufferBindingType) gputypes.BindGroupLayoutEntry {
		return gputypes.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: t},
		}
	}
	c.bindLayout, err = c.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "profit_convolve_bgl",
		Entries: []gputypes.BindGroupLayoutEntry{
			storage(0, gputypes.BufferBindingTypeUniform),
			storage(1, gputypes.BufferBindingTypeReadOnlyStorage),
			storage(2, gputypes.BufferBindingTypeReadOnlyStorage),
			storage(3, gputypes.BufferBindingTypeStorage),
		},
	})
	if err != nil {
		c.destroyPipeline()
		return fmt.Errorf("gpu: create bind group layout: %w", err)
	}

	c.pipelineLayout, err = c.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "profit_convolve_pl",
		BindGroupLayouts: []hal.BindGroupLayout{c.bindLayout},
	})
	if err != nil {
		c.destroyPipeline()
		return fmt.Errorf("gpu: create pipeline layout: %w", err)
	}

	c.pipeline, err = c.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   "profit_convolve",
		Layout:  c.pipelineLayout,
		Compute: hal.ComputeState{Module: c.shader, EntryPoint: "main"},
	})
	if err != nil {
		c.destroyPipeline()
		return fmt.Errorf("gpu: create compute pipeline: %w", err)
	}
	return nil
}

// Convolve convolves the width x height image src with the kw x kh kernel
// and returns an image of the source size.
func (c *Convolver) Convolve(src []float64, width, height int, kernel []float64, kw, kh int) ([]float64, error) {
	if width <= 0 || height <= 0 || kw <= 0 || kh <= 0 {
		return nil, fmt.Errorf("gpu: invalid dimensions %dx%d, kernel %dx%d", width, height, kw, kh)
	}
	if len(src) != width*height || len(kernel) != kw*kh {
		return nil, fmt.Errorf("gpu: data length mismatch")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	outSize := uint64(width*height) * 4
	var res resources
	defer res.destroy(c.device)

	params := make([]byte, paramsSize)
	binary.LittleEndian.PutUint32(params[0:], uint32(width))
	binary.LittleEndian.PutUint32(params[4:], uint32(height))
	binary.LittleEndian.PutUint32(params[8:], uint32(kw))
	binary.LittleEndian.PutUint32(params[12:], uint32(kh))

	uniform, err := res.buffer(c.device, "params", paramsSize, gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}
	srcBuf, err := res.buffer(c.device, "src", uint64(len(src))*4, gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}
	kernBuf, err := res.buffer(c.device, "kernel", uint64(len(kernel))*4, gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}
	dstBuf, err := res.buffer(c.device, "dst", outSize, gputypes.BufferUsageStorage|gputypes.BufferUsageCopySrc)
	if err != nil {
		return nil, err
	}
	staging, err := res.buffer(c.device, "staging", outSize, gputypes.BufferUsageMapRead|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}

	for _, w := range []struct {
		buf  hal.Buffer
		data []byte
	}{
		{uniform, params},
		{srcBuf, packFloat32(src)},
		{kernBuf, packFloat32(kernel)},
	} {
		if err := c.queue.WriteBuffer(w.buf, 0, w.data); err != nil {
			return nil, fmt.Errorf("gpu: write buffer: %w", err)
		}
	}

	res.group, err = c.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "profit_convolve_bg",
		Layout: c.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: uniform.NativeHandle(), Size: paramsSize}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: srcBuf.NativeHandle(), Size: uint64(len(src)) * 4}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: kernBuf.NativeHandle(), Size: uint64(len(kernel)) * 4}},
			{Binding: 3, Resource: gputypes.BufferBinding{Buffer: dstBuf.NativeHandle(), Size: outSize}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create bind group: %w", err)
	}

	encoder, err := c.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "profit_convolve"})
	if err != nil {
		return nil, fmt.Errorf("gpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("profit_convolve"); err != nil {
		return nil, fmt.Errorf("gpu: begin encoding: %w", err)
	}
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "profit_convolve"})
	pass.SetPipeline(c.pipeline)
	pass.SetBindGroup(0, res.group, nil)
	gx, gy := workgroups(width, height)
	pass.Dispatch(gx, gy, 1)
	pass.End()
	encoder.CopyBufferToBuffer(dstBuf, staging, []hal.BufferCopy{{Size: outSize}})
	cmd, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("gpu: end encoding: %w", err)
	}
	defer c.device.FreeCommandBuffer(cmd)

	if _, err := c.queue.Submit([]hal.CommandBuffer{cmd}); err != nil {
		return nil, fmt.Errorf("gpu: submit: %w", err)
	}
	if err := c.device.WaitIdle(); err != nil {
		return nil, fmt.Errorf("gpu: wait: %w", err)
	}

	mapping, err := c.device.MapBuffer(staging, 0, outSize)
	if err != nil {
		return nil, fmt.Errorf("gpu: map staging buffer: %w", err)
	}
	out := unpackFloat32(unsafe.Slice((*byte)(mapping.Ptr), outSize))
	if err := c.device.UnmapBuffer(staging); err != nil {
		return nil, fmt.Errorf("gpu: unmap staging buffer: %w", err)
	}

	slogger().Debug("gpu: convolve", "width", width, "height", height, "kw", kw, "kh", kh, "groups", gx*gy)
	return out, nil
}

// Close releases the pipeline and, unless the device is external, the
// device and instance. Close is idempotent.
func (c *Convolver) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.destroyPipeline()
	if !c.externalDevice {
		c.destroyDevice()
	}
	return nil
}

func (c *Convolver) destroyPipeline() {
	if c.device == nil {
		return
	}
	if c.pipeline != nil {
		c.device.DestroyComputePipeline(c.pipeline)
		c.pipeline = nil
	}
	if c.pipelineLayout != nil {
		c.device.DestroyPipelineLayout(c.pipelineLayout)
		c.pipelineLayout = nil
	}
	if c.bindLayout != nil {
		c.device.DestroyBindGroupLayout(c.bindLayout)
		c.bindLayout = nil
	}
	if c.shader != nil {
		c.device.DestroyShaderModule(c.shader)
		c.shader = nil
	}
}

func (c *Convolver) destroyDevice() {
	if c.device != nil {
		c.device.Destroy()
		c.device = nil
	}
	if c.instance != nil {
		c.instance.Destroy()
		c.instance = nil
	}
	c.queue = nil
}

// resources tracks the per-call GPU objects of one Convolve.
type resources struct {
	buffers []hal.Buffer
	group   hal.BindGroup
}

func (r *resources) buffer(device hal.Device, label string, size uint64, usage gputypes.BufferUsage) (hal.Buffer, error) {
	b, err := device.CreateBuffer(&hal.BufferDescriptor{Label: "profit_" + label, Size: size, Usage: usage})
	if err != nil {
		return nil, fmt.Errorf("gpu: create %s buffer: %w", label, err)
	}
	r.buffers = append(r.buffers, b)
	return b, nil
}

func (r *resources) destroy(device hal.Device) {
	if r.group != nil {
		device.DestroyBindGroup(r.group)
	}
	for _, b := range r.buffers {
		device.DestroyBuffer(b)
	}
}

// packFloat32 narrows v to little-endian f32 bytes.
func packFloat32(v []float64) []byte {
	b := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(float32(f)))
	}
	return b
}

// unpackFloat32 widens little-endian f32 bytes to float64.
func unpackFloat32(b []byte) []float64 {
	v := make([]float64, len(b)/4)
	for i := range v {
		v[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:])))
	}
	return v
}
