package imaging

import (
	"fmt"
	"math"
)

// Volume is a 3-D scalar image with voxel spacing in millimetres. Voxels are
// stored x-fastest: index = x + nx*(y + ny*z), matching NIfTI data order.
type Volume struct {
	NX, NY, NZ int
	Spacing    [3]float64
	Data       []float64
}

// NewVolume allocates a zero-filled volume with 1mm isotropic spacing.
func NewVolume(nx, ny, nz int) *Volume {
	return &Volume{
		NX:      nx,
		NY:      ny,
		NZ:      nz,
		Spacing: [3]float64{1, 1, 1},
		Data:    make([]float64, nx*ny*nz),
	}
}

// At returns the voxel value at (x, y, z). No bounds checking.
func (v *Volume) At(x, y, z int) float64 {
	return v.Data[x+v.NX*(y+v.NY*z)]
}

// Set stores value at (x, y, z). No bounds checking.
func (v *Volume) Set(x, y, z int, value float64) {
	v.Data[x+v.NX*(y+v.NY*z)] = value
}

// Dims returns the grid dimensions.
func (v *Volume) Dims() [3]int {
	return [3]int{v.NX, v.NY, v.NZ}
}

// Clone returns a deep copy sharing no data with the receiver.
func (v *Volume) Clone() *Volume {
	out := &Volume{NX: v.NX, NY: v.NY, NZ: v.NZ, Spacing: v.Spacing}
	out.Data = make([]float64, len(v.Data))
	copy(out.Data, v.Data)
	return out
}

// VoxelVolumeMM3 returns the volume of a single voxel in cubic millimetres.
func (v *Volume) VoxelVolumeMM3() float64 {
	return math.Abs(v.Spacing[0] * v.Spacing[1] * v.Spacing[2])
}

// Validate rejects volumes the pipeline cannot process: empty grids,
// mismatched buffers, and non-finite voxel values.
func (v *Volume) Validate() error {
	if v.NX <= 0 || v.NY <= 0 || v.NZ <= 0 {
		return fmt.Errorf("invalid dimensions %dx%dx%d", v.NX, v.NY, v.NZ)
	}
	if want := v.NX * v.NY * v.NZ; len(v.Data) != want {
		return fmt.Errorf("data length %d does not match dimensions %dx%dx%d", len(v.Data), v.NX, v.NY, v.NZ)
	}
	for i, value := range v.Data {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return fmt.Errorf("non-finite voxel value at index %d", i)
		}
	}
	return nil
}
