// Package preprocess implements the intensity normalization and smoothing
// applied before atlas registration.
package preprocess

import (
	"fmt"
	"math"

	"neuroproc/internal/imaging"
)

// Params selects the preprocessing behavior. NormalizeMethod is "zscore"
// or "minmax"; Sigma is the Gaussian smoothing width in voxels, 0 disables
// smoothing.
type Params struct {
	NormalizeMethod string
	Sigma           float64
}

// Run normalizes and smooths img, returning a new volume.
func Run(img *imaging.Volume, params Params) (*imaging.Volume, error) {
	if err := img.Validate(); err != nil {
		return nil, fmt.Errorf("preprocess input: %w", err)
	}

	out, err := Normalize(img, params.NormalizeMethod)
	if err != nil {
		return nil, err
	}
	if params.Sigma > 0 {
		out = GaussianSmooth(out, params.Sigma)
	}
	return out, nil
}

// Normalize rescales voxel intensities using the named method.
func Normalize(img *imaging.Volume, method string) (*imaging.Volume, error) {
	switch method {
	case "zscore":
		return zscore(img), nil
	case "minmax":
		return minmax(img), nil
	default:
		return nil, fmt.Errorf("unknown normalization method %q", method)
	}
}

func zscore(img *imaging.Volume) *imaging.Volume {
	out := img.Clone()
	n := float64(len(out.Data))
	if n == 0 {
		return out
	}

	var sum float64
	for _, v := range out.Data {
		sum += v
	}
	mean := sum / n

	var variance float64
	for _, v := range out.Data {
		d := v - mean
		variance += d * d
	}
	std := math.Sqrt(variance / n)
	if std < 1e-12 {
		for i := range out.Data {
			out.Data[i] = 0
		}
		return out
	}

	for i, v := range out.Data {
		out.Data[i] = (v - mean) / std
	}
	return out
}

func minmax(img *imaging.Volume) *imaging.Volume {
	out := img.Clone()
	if len(out.Data) == 0 {
		return out
	}

	lo, hi := out.Data[0], out.Data[0]
	for _, v := range out.Data {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	span := hi - lo
	if span < 1e-12 {
		for i := range out.Data {
			out.Data[i] = 0
		}
		return out
	}

	for i, v := range out.Data {
		out.Data[i] = (v - lo) / span
	}
	return out
}

// GaussianSmooth applies a separable Gaussian filter with the given sigma
// (in voxels) along each axis. Edges are handled by kernel renormalization.
func GaussianSmooth(img *imaging.Volume, sigma float64) *imaging.Volume {
	if sigma <= 0 {
		return img.Clone()
	}
	kernel := gaussianKernel(sigma)
	out := convolveAxis(img, kernel, 0)
	out = convolveAxis(out, kernel, 1)
	out = convolveAxis(out, kernel, 2)
	return out
}

func gaussianKernel(sigma float64) []float64 {
	radius := int(math.Ceil(3 * sigma))
	if radius < 1 {
		radius = 1
	}
	kernel := make([]float64, 2*radius+1)
	var sum float64
	for i := -radius; i <= radius; i++ {
		w := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		kernel[i+radius] = w
		sum += w
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

func convolveAxis(img *imaging.Volume, kernel []float64, axis int) *imaging.Volume {
	out := img.Clone()
	radius := len(kernel) / 2
	dims := img.Dims()

	for z := 0; z < img.NZ; z++ {
		for y := 0; y < img.NY; y++ {
			for x := 0; x < img.NX; x++ {
				var acc, weight float64
				for k := -radius; k <= radius; k++ {
					pos := [3]int{x, y, z}
					pos[axis] += k
					if pos[axis] < 0 || pos[axis] >= dims[axis] {
						continue
					}
					w := kernel[k+radius]
					acc += w * img.At(pos[0], pos[1], pos[2])
					weight += w
				}
				if weight > 0 {
					out.Set(x, y, z, acc/weight)
				}
			}
		}
	}
	return out
}
