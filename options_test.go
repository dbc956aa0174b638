package profit

import "testing"

func TestDefaultModelOptions(t *testing.T) {
	m := NewModel(10, 20)
	o := m.opts
	if o.scaleX != 1 || o.scaleY != 1 {
		t.Errorf("scale = (%v, %v), want (1, 1)", o.scaleX, o.scaleY)
	}
	if !o.crop {
		t.Error("crop is off by default")
	}
	if o.policy != PolicyPropagate {
		t.Errorf("policy = %v, want %v", o.policy, PolicyPropagate)
	}
	if o.convKind != "" || o.convolver != nil || o.env != nil {
		t.Errorf("convolver options set by default: %+v", o)
	}
	if o.special.Gamma == nil {
		t.Error("default special functions missing")
	}
	if m.Width() != 10 || m.Height() != 20 {
		t.Errorf("size = %dx%d, want 10x20", m.Width(), m.Height())
	}
}

func TestModelOptionsApplied(t *testing.T) {
	psf := GaussianPSF(1, 3)
	mask := NewMask(4, 4)
	m := NewModel(4, 4,
		WithScale(0.5, 2),
		WithMagZero(27),
		WithPSF(psf, 0.25, 0.5),
		WithMask(mask),
		WithConvolverKind(ConvolverFFT),
		WithConvolverThreads(3),
		WithReuseKernelFFT(true),
		WithEffort(EffortMeasure),
		WithThreads(2),
		WithInitPolicy(PolicyDrop),
		WithCrop(false),
	)
	o := m.opts
	switch {
	case o.scaleX != 0.5 || o.scaleY != 2:
		t.Errorf("scale = (%v, %v)", o.scaleX, o.scaleY)
	case o.magZero != 27:
		t.Errorf("magZero = %v", o.magZero)
	case o.psf != psf || o.psfScaleX != 0.25 || o.psfScaleY != 0.5:
		t.Errorf("psf scale = (%v, %v)", o.psfScaleX, o.psfScaleY)
	case o.mask != mask:
		t.Error("mask not set")
	case o.convKind != ConvolverFFT || o.convThreads != 3 || !o.reuseKernelFFT || o.effort != EffortMeasure:
		t.Errorf("convolver options = %v %v %v %v", o.convKind, o.convThreads, o.reuseKernelFFT, o.effort)
	case o.threads != 2 || o.policy != PolicyDrop || o.crop:
		t.Errorf("threads %v policy %v crop %v", o.threads, o.policy, o.crop)
	}
}

func TestWithSpecialFunctions(t *testing.T) {
	m := NewModel(1, 1, WithSpecialFunctions(SpecialFunctions{}))
	if m.opts.special.Gamma != nil {
		t.Error("special functions not replaced")
	}
}

func TestInitPolicyString(t *testing.T) {
	tests := []struct {
		p    InitPolicy
		want string
	}{
		{PolicyPropagate, "propagate"},
		{PolicyDrop, "drop"},
		{InitPolicy(7), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.p.String(); got != tt.want {
			t.Errorf("InitPolicy(%d).String() = %q, want %q", int(tt.p), got, tt.want)
		}
	}
}
