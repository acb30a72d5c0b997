// Package register implements the atlas-based extraction step: locate the
// atlas brain mask, bring it onto the subject grid, and apply it.
package register

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"neuroproc/internal/imaging"
)

// Kind selects the transform model used to bring the atlas mask onto the
// subject grid.
type Kind string

const (
	// Rigid maps grid extents with nearest-neighbour sampling, keeping a
	// binary mask binary.
	Rigid Kind = "rigid"
	// Affine maps grid extents with trilinear sampling, producing
	// fractional mask values near the boundary.
	Affine Kind = "affine"
)

// ParseKind validates a registration type string from configuration.
func ParseKind(value string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case Rigid:
		return Rigid, nil
	case Affine:
		return Affine, nil
	default:
		return "", fmt.Errorf("unknown registration type %q", value)
	}
}

// SkullStrip registers the atlas mask from atlasDir onto img's grid and
// applies it, zeroing non-brain voxels. Fractional mask values scale the
// image proportionally.
func SkullStrip(img *imaging.Volume, atlasDir string, kind Kind) (*imaging.Volume, error) {
	mask, err := LoadAtlasMask(atlasDir)
	if err != nil {
		return nil, err
	}
	registered := Resample(mask, img.Dims(), kind)
	return Apply(img, registered)
}

// LoadAtlasMask finds and loads the brain mask volume inside atlasDir.
// Preference order: brain_mask.nii.gz, brain_mask.nii, then the lexically
// first volume file whose name contains "mask".
func LoadAtlasMask(atlasDir string) (*imaging.Volume, error) {
	for _, name := range []string{"brain_mask.nii.gz", "brain_mask.nii"} {
		path := filepath.Join(atlasDir, name)
		if _, err := os.Stat(path); err == nil {
			return imaging.Load(path)
		}
	}

	entries, err := os.ReadDir(atlasDir)
	if err != nil {
		return nil, fmt.Errorf("read atlas directory: %w", err)
	}
	var candidates []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && imaging.IsVolumeFile(name) && strings.Contains(strings.ToLower(name), "mask") {
			candidates = append(candidates, name)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no brain mask volume found in atlas directory %s", atlasDir)
	}
	sort.Strings(candidates)
	return imaging.Load(filepath.Join(atlasDir, candidates[0]))
}

// Resample maps mask onto a target grid. Rigid uses nearest-neighbour
// sampling; Affine uses trilinear interpolation.
func Resample(mask *imaging.Volume, dims [3]int, kind Kind) *imaging.Volume {
	if mask.Dims() == dims {
		return mask.Clone()
	}

	out := imaging.NewVolume(dims[0], dims[1], dims[2])
	out.Spacing = mask.Spacing

	sx := float64(mask.NX) / float64(dims[0])
	sy := float64(mask.NY) / float64(dims[1])
	sz := float64(mask.NZ) / float64(dims[2])

	for z := 0; z < dims[2]; z++ {
		for y := 0; y < dims[1]; y++ {
			for x := 0; x < dims[0]; x++ {
				fx := (float64(x) + 0.5) * sx
				fy := (float64(y) + 0.5) * sy
				fz := (float64(z) + 0.5) * sz
				var value float64
				if kind == Affine {
					value = trilinear(mask, fx-0.5, fy-0.5, fz-0.5)
				} else {
					value = nearest(mask, fx, fy, fz)
				}
				out.Set(x, y, z, value)
			}
		}
	}
	return out
}

// Apply multiplies img by mask voxelwise. The shapes must match exactly.
func Apply(img, mask *imaging.Volume) (*imaging.Volume, error) {
	if img.Dims() != mask.Dims() {
		return nil, fmt.Errorf("mask shape %v doesn't match image shape %v", mask.Dims(), img.Dims())
	}
	out := img.Clone()
	for i := range out.Data {
		out.Data[i] *= mask.Data[i]
	}
	return out, nil
}

func nearest(vol *imaging.Volume, fx, fy, fz float64) float64 {
	x := clamp(int(fx), 0, vol.NX-1)
	y := clamp(int(fy), 0, vol.NY-1)
	z := clamp(int(fz), 0, vol.NZ-1)
	return vol.At(x, y, z)
}

func trilinear(vol *imaging.Volume, fx, fy, fz float64) float64 {
	x0 := clamp(int(math.Floor(fx)), 0, vol.NX-1)
	y0 := clamp(int(math.Floor(fy)), 0, vol.NY-1)
	z0 := clamp(int(math.Floor(fz)), 0, vol.NZ-1)
	x1 := clamp(x0+1, 0, vol.NX-1)
	y1 := clamp(y0+1, 0, vol.NY-1)
	z1 := clamp(z0+1, 0, vol.NZ-1)

	dx := clampf(fx-float64(x0), 0, 1)
	dy := clampf(fy-float64(y0), 0, 1)
	dz := clampf(fz-float64(z0), 0, 1)

	c000 := vol.At(x0, y0, z0)
	c100 := vol.At(x1, y0, z0)
	c010 := vol.At(x0, y1, z0)
	c110 := vol.At(x1, y1, z0)
	c001 := vol.At(x0, y0, z1)
	c101 := vol.At(x1, y0, z1)
	c011 := vol.At(x0, y1, z1)
	c111 := vol.At(x1, y1, z1)

	c00 := c000*(1-dx) + c100*dx
	c10 := c010*(1-dx) + c110*dx
	c01 := c001*(1-dx) + c101*dx
	c11 := c011*(1-dx) + c111*dx

	c0 := c00*(1-dy) + c10*dy
	c1 := c01*(1-dy) + c11*dy

	return c0*(1-dz) + c1*dz
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
