// Package config builds profit models from YAML documents.
//
// A document describes the canvas, the optional PSF and mask, the
// convolver and an ordered list of profiles:
//
//	width: 100
//	height: 100
//	scale: [1, 1]
//	policy: drop
//	psf:
//	  gaussian: {fwhm: 3, size: 15}
//	convolver: {type: fft, effort: 1}
//	profiles:
//	  sersic:
//	    - {xcen: 50, ycen: 50, mag: 15, re: 5, nser: 2}
//	  sky:
//	    - {bg: 1e-3}
//
// Profiles are added in document order. Parameter names are those accepted
// by the profile's SetParam.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/profit"
	"github.com/gogpu/profit/gpu"
)

// Document is the decoded form of a model description.
type Document struct {
	Width     int       `yaml:"width"`
	Height    int       `yaml:"height"`
	Scale     []float64 `yaml:"scale"`
	MagZero   float64   `yaml:"magzero"`
	Threads   int       `yaml:"threads"`
	Policy    string    `yaml:"policy"`
	Crop      *bool     `yaml:"crop"`
	PSF       *PSF      `yaml:"psf"`
	Mask      [][]bool  `yaml:"mask"`
	Convolver Convolver `yaml:"convolver"`
	Profiles  Profiles  `yaml:"profiles"`
}

// PSF selects the point spread function. Exactly one of Data, Gaussian
// and Moffat must be set.
type PSF struct {
	Data     [][]float64  `yaml:"data"`
	Gaussian *GaussianPSF `yaml:"gaussian"`
	Moffat   *MoffatPSF   `yaml:"moffat"`
	Scale    []float64    `yaml:"scale"`
}

// GaussianPSF is a pixel-integrated Gaussian kernel. A zero size picks the
// smallest odd size covering three sigma.
type GaussianPSF struct {
	FWHM float64 `yaml:"fwhm"`
	Size int     `yaml:"size"`
}

// MoffatPSF is a Moffat kernel.
type MoffatPSF struct {
	FWHM float64 `yaml:"fwhm"`
	Con  float64 `yaml:"con"`
	Size int     `yaml:"size"`
}

// Convolver configures the convolution backend. Platform and Device
// select the GPU (see gpu.Platforms) when Type is "gpu".
type Convolver struct {
	Type           string `yaml:"type"`
	Effort         int    `yaml:"effort"`
	ReuseKernelFFT bool   `yaml:"reuse_kernel_fft"`
	Threads        int    `yaml:"threads"`
	Platform       int    `yaml:"platform"`
	Device         int    `yaml:"device"`
}

// ProfileSpec is one profile entry.
type ProfileSpec struct {
	Kind   string
	Params map[string]any
}

// Profiles is the ordered profile list. In YAML it is a mapping from kind
// to a list of parameter mappings; the order of kinds is kept.
type Profiles []ProfileSpec

// UnmarshalYAML decodes the kind mapping in document order.
func (p *Profiles) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: profiles must be a mapping of kind to list", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		kind, list := n.Content[i].Value, n.Content[i+1]
		if list.Kind != yaml.SequenceNode {
			return fmt.Errorf("line %d: profiles.%s must be a list", list.Line, kind)
		}
		for _, item := range list.Content {
			params := make(map[string]any)
			if err := item.Decode(&params); err != nil {
				return fmt.Errorf("line %d: profiles.%s: %w", item.Line, kind, err)
			}
			*p = append(*p, ProfileSpec{Kind: kind, Params: params})
		}
	}
	return nil
}

// Load reads and parses the document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document. Unknown top-level fields are errors.
func Parse(data []byte) (*Document, error) {
	var d Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", profit.ErrInvalidConfig, err)
	}
	return &d, nil
}

// Build creates the model the document describes, with its profiles added
// and parameters set. Parameter errors are returned here; the remaining
// checks happen in Evaluate. The caller must Close the model.
func (d *Document) Build() (*profit.Model, error) {
	opts, release, err := d.options()
	if err != nil {
		return nil, err
	}
	m := profit.NewModel(d.Width, d.Height, opts...)
	// the model holds its own reference on a GPU environment
	release()

	for i, ps := range d.Profiles {
		p, err := m.AddProfile(ps.Kind)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("config: profile %d: %w", i, err)
		}
		names := make([]string, 0, len(ps.Params))
		for name := range ps.Params {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			if err := p.SetParam(name, ps.Params[name]); err != nil {
				m.Close()
				return nil, fmt.Errorf("config: profile %d (%s): %w", i, ps.Kind, err)
			}
		}
	}
	return m, nil
}

func (d *Document) options() ([]profit.ModelOption, func(), error) {
	release := func() {}
	var opts []profit.ModelOption

	switch len(d.Scale) {
	case 0:
	case 1:
		opts = append(opts, profit.WithScale(d.Scale[0], d.Scale[0]))
	case 2:
		opts = append(opts, profit.WithScale(d.Scale[0], d.Scale[1]))
	default:
		return nil, release, configErr("scale has %d values", len(d.Scale))
	}
	opts = append(opts, profit.WithMagZero(d.MagZero), profit.WithThreads(d.Threads))

	switch d.Policy {
	case "", profit.PolicyPropagate.String():
	case profit.PolicyDrop.String():
		opts = append(opts, profit.WithInitPolicy(profit.PolicyDrop))
	default:
		return nil, release, configErr("unknown policy %q", d.Policy)
	}
	if d.Crop != nil {
		opts = append(opts, profit.WithCrop(*d.Crop))
	}

	if d.PSF != nil {
		psf, sx, sy, err := d.PSF.image()
		if err != nil {
			return nil, release, err
		}
		opts = append(opts, profit.WithPSF(psf, sx, sy))
	}
	if len(d.Mask) > 0 {
		mask, err := maskFromRows(d.Mask)
		if err != nil {
			return nil, release, err
		}
		opts = append(opts, profit.WithMask(mask))
	}

	c := d.Convolver
	if c.Effort < int(profit.EffortEstimate) || c.Effort > int(profit.EffortMeasure) {
		return nil, release, configErr("convolver effort %d out of range [0, 2]", c.Effort)
	}
	opts = append(opts,
		profit.WithEffort(profit.FFTEffort(c.Effort)),
		profit.WithReuseKernelFFT(c.ReuseKernelFFT),
		profit.WithConvolverThreads(c.Threads),
	)
	kind := profit.ConvolverKind(c.Type)
	if kind == profit.ConvolverGPU {
		env, err := gpu.NewEnv(c.Platform, c.Device)
		if err != nil {
			profit.Logger().Warn("config: GPU unavailable, using fft convolver", "err", err)
			kind = profit.ConvolverFFT
		} else {
			opts = append(opts, profit.WithComputeEnv(env))
			release = func() {
				if err := env.Release(); err != nil {
					profit.Logger().Warn("config: releasing GPU environment", "err", err)
				}
			}
		}
	}
	opts = append(opts, profit.WithConvolverKind(kind))
	return opts, release, nil
}

func (p *PSF) image() (*profit.Image, float64, float64, error) {
	var sx, sy float64
	switch len(p.Scale) {
	case 0:
	case 1:
		sx, sy = p.Scale[0], p.Scale[0]
	case 2:
		sx, sy = p.Scale[0], p.Scale[1]
	default:
		return nil, 0, 0, configErr("psf scale has %d values", len(p.Scale))
	}

	set := 0
	for _, ok := range []bool{len(p.Data) > 0, p.Gaussian != nil, p.Moffat != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return nil, 0, 0, configErr("psf needs exactly one of data, gaussian, moffat")
	}

	switch {
	case p.Gaussian != nil:
		if p.Gaussian.FWHM <= 0 {
			return nil, 0, 0, configErr("psf gaussian fwhm must be positive")
		}
		return profit.GaussianPSF(p.Gaussian.FWHM, p.Gaussian.Size), sx, sy, nil
	case p.Moffat != nil:
		if p.Moffat.FWHM <= 0 || p.Moffat.Con <= 0 {
			return nil, 0, 0, configErr("psf moffat fwhm and con must be positive")
		}
		return profit.MoffatPSF(p.Moffat.FWHM, p.Moffat.Con, p.Moffat.Size), sx, sy, nil
	}

	w := len(p.Data[0])
	data := make([]float64, 0, w*len(p.Data))
	for y, row := range p.Data {
		if len(row) != w {
			return nil, 0, 0, configErr("psf row %d has %d values, want %d", y, len(row), w)
		}
		data = append(data, row...)
	}
	img, err := profit.NewImageFromData(data, w, len(p.Data))
	if err != nil {
		return nil, 0, 0, err
	}
	return img, sx, sy, nil
}

func maskFromRows(rows [][]bool) (*profit.Mask, error) {
	w := len(rows[0])
	data := make([]bool, 0, w*len(rows))
	for y, row := range rows {
		if len(row) != w {
			return nil, configErr("mask row %d has %d values, want %d", y, len(row), w)
		}
		data = append(data, row...)
	}
	return profit.NewMaskFromData(data, w, len(rows))
}

func configErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", profit.ErrInvalidConfig, fmt.Sprintf(format, args...))
}
