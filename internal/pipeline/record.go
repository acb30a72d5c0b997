// Package pipeline runs the five-stage skull-stripping sequence for one
// input file and commits its durable outcome: output volume, quality
// report, marker, and journal entry.
package pipeline

import (
	"os"
	"path/filepath"

	"neuroproc/internal/imaging"
)

// Kind distinguishes single volume files from series directories.
type Kind string

const (
	KindVolume Kind = "volume"
	KindSeries Kind = "series"
)

// FileRecord identifies one unit of work: a volume file or a series
// directory inside the input directory.
type FileRecord struct {
	Path string
	Name string
	Kind Kind
}

// NewFileRecord builds a record for path, classifying it by stat.
func NewFileRecord(path string) (FileRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileRecord{}, err
	}
	kind := KindVolume
	if info.IsDir() {
		kind = KindSeries
	}
	return FileRecord{
		Path: path,
		Name: filepath.Base(path),
		Kind: kind,
	}, nil
}

// OutputName returns the deterministic output file name for the record.
// The full input name is kept as the prefix so outputs never collide:
// scan1.nii.gz becomes scan1.nii.gz_skull_stripped.nii.gz.
func (r FileRecord) OutputName() string {
	return r.Name + "_skull_stripped" + r.outputExt()
}

// ReportName returns the deterministic quality report name for the record.
func (r FileRecord) ReportName() string {
	return r.Name + "_quality_report.txt"
}

func (r FileRecord) outputExt() string {
	if r.Kind == KindSeries {
		return ".nii.gz"
	}
	if ext := imaging.Ext(r.Name); ext != "" {
		return ext
	}
	if ext := filepath.Ext(r.Name); ext != "" {
		return ext
	}
	return ".nii.gz"
}

// MarkerName returns the name markers are keyed by. Series directories and
// volume files both use the base name.
func (r FileRecord) MarkerName() string {
	return r.Name
}
