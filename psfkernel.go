package profit

import "github.com/gogpu/profit/internal/kernel"

// GaussianPSF returns a size x size circular Gaussian PSF with the given
// FWHM in pixels, normalized to unit sum. A size below 1 picks one that
// covers three sigma. The image is freshly allocated.
func GaussianPSF(fwhm float64, size int) *Image {
	k := kernel.CachedGaussian(fwhm, size)
	return kernelImage(k)
}

// MoffatPSF returns a size x size Moffat PSF with the given FWHM in pixels
// and concentration, normalized to unit sum.
func MoffatPSF(fwhm, con float64, size int) *Image {
	k := kernel.CachedMoffat(fwhm, con, size)
	return kernelImage(k)
}

func kernelImage(k *kernel.Kernel) *Image {
	im := NewImage(k.Width, k.Height)
	copy(im.data, k.Data)
	return im
}
