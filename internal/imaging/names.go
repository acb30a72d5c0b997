package imaging

import (
	"os"
	"path/filepath"
	"strings"
)

// Recognized single-file volume suffixes.
const (
	suffixNii   = ".nii"
	suffixNiiGz = ".nii.gz"
)

// IsVolumeFile reports whether name is a recognized single-file volume.
// Hidden names are never recognized; the marker files share the input
// namespace and must stay invisible to the scanners.
func IsVolumeFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	return strings.HasSuffix(name, suffixNii) || strings.HasSuffix(name, suffixNiiGz)
}

// Ext returns the volume extension of name: ".nii.gz", ".nii", or "".
func Ext(name string) string {
	switch {
	case strings.HasSuffix(name, suffixNiiGz):
		return suffixNiiGz
	case strings.HasSuffix(name, suffixNii):
		return suffixNii
	default:
		return ""
	}
}

// IsSeriesDir reports whether path is a directory holding a recognizable
// image series: per-slice volume files or a DICOM export.
func IsSeriesDir(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if IsVolumeFile(name) || strings.HasSuffix(strings.ToLower(name), ".dcm") {
			return true
		}
	}
	return false
}
