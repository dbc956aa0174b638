// Package profit renders synthetic astronomical images from parametric
// surface-brightness profiles.
//
// # Overview
//
// A Model owns the canvas (size, pixel scale, magnitude zero-point, optional
// mask and PSF) and a list of profiles. Evaluate initializes every profile,
// renders it into the image, convolves the profiles flagged for convolution
// with the PSF and returns the summed image.
//
// # Quick Start
//
//	m := profit.NewModel(100, 100, profit.WithMagZero(0))
//	p, _ := m.AddProfile(profit.KindSersic)
//	p.SetParam("xcen", 50)
//	p.SetParam("ycen", 50)
//	p.SetParam("mag", 15)
//	p.SetParam("re", 8)
//	p.SetParam("nser", 2.5)
//
//	img, _, err := m.Evaluate()
//
// # Profiles
//
// Radial profiles (sersic, moffat, ferrer, king, coresersic, brokenexp)
// share center, magnitude, position angle, axis ratio and boxiness, and are
// integrated over each pixel by an adaptive sub-pixel integrator tuned with
// acc, resolution, max_recursions and rscale_switch. The sky profile adds a
// constant, psf adds a point source and null adds nothing. New kinds can be
// added with RegisterProfile.
//
// # Coordinate System
//
//   - Origin (0,0) at the top-left corner of pixel (0,0)
//   - Pixel (i,j) is centered at ((i+0.5)*scaleX, (j+0.5)*scaleY)
//   - Position angles in degrees, counter-clockwise from the x axis
//     when y points up
//
// # Convolution
//
// The brute and fft convolvers run on the CPU. The gpu convolver runs on a
// ComputeEnv; import github.com/gogpu/profit/gpu to discover devices and
// open one.
package profit
