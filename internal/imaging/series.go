package imaging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrDICOMSeries marks series directories that hold DICOM exports. Those
// need an external converter; the pipeline records the failure and moves on.
var ErrDICOMSeries = errors.New("DICOM series require conversion to NIfTI before ingestion")

// LoadSeries assembles a volume from a directory of per-slice NIfTI files,
// stacked along z in lexical filename order. Every slice must share the
// in-plane dimensions of the first.
func LoadSeries(dir string) (*Volume, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read series directory: %w", err)
	}

	var slices []string
	dicom := false
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if IsVolumeFile(name) {
			slices = append(slices, name)
		} else if strings.HasSuffix(strings.ToLower(name), ".dcm") {
			dicom = true
		}
	}

	if len(slices) == 0 {
		if dicom {
			return nil, ErrDICOMSeries
		}
		return nil, fmt.Errorf("series directory %s contains no volume slices", filepath.Base(dir))
	}
	sort.Strings(slices)

	var out *Volume
	z := 0
	for _, name := range slices {
		slice, err := Load(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("load slice %s: %w", name, err)
		}
		if out == nil {
			out = &Volume{
				NX:      slice.NX,
				NY:      slice.NY,
				NZ:      0,
				Spacing: slice.Spacing,
			}
		}
		if slice.NX != out.NX || slice.NY != out.NY {
			return nil, fmt.Errorf("slice %s dimensions %dx%d do not match series %dx%d",
				name, slice.NX, slice.NY, out.NX, out.NY)
		}
		out.Data = append(out.Data, slice.Data...)
		z += slice.NZ
	}
	out.NZ = z

	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("assembled series invalid: %w", err)
	}
	return out, nil
}
