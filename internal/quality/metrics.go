// Package quality computes skull-stripping quality metrics and renders the
// textual report persisted next to each output volume.
package quality

import (
	"math"
	"sort"

	"neuroproc/internal/imaging"
)

// IntensityStats summarizes the intensity distribution of brain voxels.
type IntensityStats struct {
	Mean   float64
	Std    float64
	Min    float64
	Max    float64
	Median float64
	Q25    float64
	Q75    float64
}

// Metrics carries every quality measurement plus per-check verdicts.
type Metrics struct {
	MaskCoveragePercent      float64
	BrainVolumeCM3           float64
	NumComponents            int
	LargestComponentFraction float64
	EdgeDensity              float64
	Intensity                IntensityStats

	CoverageOK    bool
	VolumeOK      bool
	ComponentsOK  bool
	EdgeDensityOK bool
	IntensityOK   bool

	PassedChecks int
	TotalChecks  int
	OverallPass  bool
}

// Check thresholds. Coverage and volume bounds reflect typical adult head
// scans; a skull-stripped brain occupies 10-20% of the field of view and
// 1000-1500 cm3.
const (
	minCoveragePercent = 5.0
	maxCoveragePercent = 40.0
	minVolumeCM3       = 800.0
	maxVolumeCM3       = 2000.0
	maxEdgeDensity     = 50.0
	minIntensityStd    = 0.01
)

// Assess computes all quality metrics for a skull-stripped volume. The
// overall verdict tolerates one failing check.
func Assess(vol *imaging.Volume) Metrics {
	var m Metrics

	total := len(vol.Data)
	brain := 0
	for _, v := range vol.Data {
		if v > 0 {
			brain++
		}
	}

	if total > 0 {
		m.MaskCoveragePercent = float64(brain) / float64(total) * 100
	}
	m.BrainVolumeCM3 = float64(brain) * vol.VoxelVolumeMM3() / 1000.0

	m.NumComponents, m.LargestComponentFraction = connectedComponents(vol)
	m.EdgeDensity = edgeDensity(vol)
	m.Intensity = intensityStats(vol)

	m.CoverageOK = m.MaskCoveragePercent > minCoveragePercent && m.MaskCoveragePercent < maxCoveragePercent
	m.VolumeOK = m.BrainVolumeCM3 > minVolumeCM3 && m.BrainVolumeCM3 < maxVolumeCM3
	m.ComponentsOK = m.NumComponents == 1
	m.EdgeDensityOK = m.EdgeDensity < maxEdgeDensity
	m.IntensityOK = m.Intensity.Std > minIntensityStd

	for _, ok := range []bool{m.CoverageOK, m.VolumeOK, m.ComponentsOK, m.EdgeDensityOK, m.IntensityOK} {
		m.TotalChecks++
		if ok {
			m.PassedChecks++
		}
	}
	m.OverallPass = m.PassedChecks >= m.TotalChecks-1

	return m
}

// connectedComponents labels positive voxels with 6-connectivity and
// returns the component count plus the largest component's share of the
// brain mask.
func connectedComponents(vol *imaging.Volume) (int, float64) {
	total := vol.NX * vol.NY * vol.NZ
	visited := make([]bool, total)
	brain := 0
	for _, v := range vol.Data {
		if v > 0 {
			brain++
		}
	}
	if brain == 0 {
		return 0, 0
	}

	var queue []int
	components := 0
	largest := 0

	neighbors := [6][3]int{{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1}}

	for seed := 0; seed < total; seed++ {
		if visited[seed] || vol.Data[seed] <= 0 {
			continue
		}
		components++
		size := 0
		visited[seed] = true
		queue = append(queue[:0], seed)

		for len(queue) > 0 {
			idx := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			size++

			x := idx % vol.NX
			y := (idx / vol.NX) % vol.NY
			z := idx / (vol.NX * vol.NY)

			for _, d := range neighbors {
				nx, ny, nz := x+d[0], y+d[1], z+d[2]
				if nx < 0 || nx >= vol.NX || ny < 0 || ny >= vol.NY || nz < 0 || nz >= vol.NZ {
					continue
				}
				nidx := nx + vol.NX*(ny+vol.NY*nz)
				if !visited[nidx] && vol.Data[nidx] > 0 {
					visited[nidx] = true
					queue = append(queue, nidx)
				}
			}
		}
		if size > largest {
			largest = size
		}
	}

	return components, float64(largest) / float64(brain)
}

// edgeDensity averages the Sobel gradient magnitude over the mask boundary
// (mask voxels with at least one non-mask 6-neighbour, counting the volume
// edge as non-mask).
func edgeDensity(vol *imaging.Volume) float64 {
	gx := sobelAxis(vol, 0)
	gy := sobelAxis(vol, 1)
	gz := sobelAxis(vol, 2)

	var sum float64
	boundary := 0

	for z := 0; z < vol.NZ; z++ {
		for y := 0; y < vol.NY; y++ {
			for x := 0; x < vol.NX; x++ {
				if vol.At(x, y, z) <= 0 {
					continue
				}
				if !isBoundary(vol, x, y, z) {
					continue
				}
				idx := x + vol.NX*(y+vol.NY*z)
				magnitude := math.Sqrt(gx.Data[idx]*gx.Data[idx] + gy.Data[idx]*gy.Data[idx] + gz.Data[idx]*gz.Data[idx])
				sum += magnitude
				boundary++
			}
		}
	}

	if boundary == 0 {
		return 0
	}
	return sum / float64(boundary)
}

func isBoundary(vol *imaging.Volume, x, y, z int) bool {
	neighbors := [6][3]int{{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1}}
	for _, d := range neighbors {
		nx, ny, nz := x+d[0], y+d[1], z+d[2]
		if nx < 0 || nx >= vol.NX || ny < 0 || ny >= vol.NY || nz < 0 || nz >= vol.NZ {
			return true
		}
		if vol.At(nx, ny, nz) <= 0 {
			return true
		}
	}
	return false
}

// sobelAxis applies a 3-D Sobel filter differentiating along the given
// axis: derivative kernel [-1 0 1] on that axis, smoothing [1 2 1] on the
// other two. Out-of-range samples clamp to the nearest voxel.
func sobelAxis(vol *imaging.Volume, axis int) *imaging.Volume {
	derivative := []float64{-1, 0, 1}
	smoothing := []float64{1, 2, 1}

	out := vol
	for a := 0; a < 3; a++ {
		kernel := smoothing
		if a == axis {
			kernel = derivative
		}
		out = convolveClamped(out, kernel, a)
	}
	return out
}

func convolveClamped(vol *imaging.Volume, kernel []float64, axis int) *imaging.Volume {
	out := imaging.NewVolume(vol.NX, vol.NY, vol.NZ)
	out.Spacing = vol.Spacing
	radius := len(kernel) / 2
	dims := vol.Dims()

	for z := 0; z < vol.NZ; z++ {
		for y := 0; y < vol.NY; y++ {
			for x := 0; x < vol.NX; x++ {
				var acc float64
				for k := -radius; k <= radius; k++ {
					pos := [3]int{x, y, z}
					pos[axis] += k
					if pos[axis] < 0 {
						pos[axis] = 0
					} else if pos[axis] >= dims[axis] {
						pos[axis] = dims[axis] - 1
					}
					acc += kernel[k+radius] * vol.At(pos[0], pos[1], pos[2])
				}
				out.Set(x, y, z, acc)
			}
		}
	}
	return out
}

func intensityStats(vol *imaging.Volume) IntensityStats {
	var brain []float64
	for _, v := range vol.Data {
		if v > 0 {
			brain = append(brain, v)
		}
	}
	if len(brain) == 0 {
		return IntensityStats{}
	}

	var sum float64
	for _, v := range brain {
		sum += v
	}
	mean := sum / float64(len(brain))

	var variance float64
	for _, v := range brain {
		variance += (v - mean) * (v - mean)
	}

	sort.Float64s(brain)

	return IntensityStats{
		Mean:   mean,
		Std:    math.Sqrt(variance / float64(len(brain))),
		Min:    brain[0],
		Max:    brain[len(brain)-1],
		Median: percentile(brain, 50),
		Q25:    percentile(brain, 25),
		Q75:    percentile(brain, 75),
	}
}

// percentile computes the p-th percentile of sorted values using linear
// interpolation between ranks.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
