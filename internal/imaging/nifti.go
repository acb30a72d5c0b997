package imaging

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// Minimal NIfTI-1 support: single-file .nii / .nii.gz, little-endian,
// scalar datatypes. Enough for the volumes this pipeline exchanges;
// anything richer (qform/sform orientation, extensions) is ignored on
// read and never written.

const (
	niftiHeaderSize = 348
	niftiVoxOffset  = 352
	niftiMagic      = "n+1\x00"

	dtUint8   = 2
	dtInt16   = 4
	dtInt32   = 8
	dtFloat32 = 16
	dtFloat64 = 64
)

// Load reads a NIfTI volume from path, transparently decompressing .nii.gz.
func Load(path string) (*Volume, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open volume: %w", err)
	}
	defer file.Close()

	var reader io.Reader = bufio.NewReader(file)
	if strings.HasSuffix(path, suffixNiiGz) {
		gz, err := gzip.NewReader(reader)
		if err != nil {
			return nil, fmt.Errorf("decompress %s: %w", filepath.Base(path), err)
		}
		defer gz.Close()
		reader = gz
	}

	vol, err := decode(reader)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return vol, nil
}

// Save writes vol to path as float32 NIfTI, compressing when the path ends
// in .nii.gz. The parent directory is created if missing.
func Save(vol *Volume, path string) error {
	if err := vol.Validate(); err != nil {
		return fmt.Errorf("save %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create volume file: %w", err)
	}
	defer file.Close()

	var writer io.Writer = file
	var gz *gzip.Writer
	if strings.HasSuffix(path, suffixNiiGz) {
		gz = gzip.NewWriter(file)
		writer = gz
	}

	buf := bufio.NewWriter(writer)
	if err := encode(vol, buf); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("flush volume file: %w", err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("finish compression: %w", err)
		}
	}
	return file.Close()
}

func decode(r io.Reader) (*Volume, error) {
	header := make([]byte, niftiHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	le := binary.LittleEndian
	if size := le.Uint32(header[0:4]); size != niftiHeaderSize {
		return nil, fmt.Errorf("unsupported header size %d (big-endian or non-NIfTI file?)", size)
	}
	if magic := string(header[344:348]); magic != niftiMagic {
		return nil, fmt.Errorf("bad magic %q (two-file NIfTI pairs are not supported)", magic)
	}

	ndim := int(int16(le.Uint16(header[40:42])))
	if ndim < 3 {
		return nil, fmt.Errorf("expected 3-D image, got %d-D", ndim)
	}
	nx := int(int16(le.Uint16(header[42:44])))
	ny := int(int16(le.Uint16(header[44:46])))
	nz := int(int16(le.Uint16(header[46:48])))
	if nx <= 0 || ny <= 0 || nz <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%dx%d", nx, ny, nz)
	}
	for d := 4; d <= ndim; d++ {
		extent := int(int16(le.Uint16(header[40+2*d : 42+2*d])))
		if extent > 1 {
			return nil, fmt.Errorf("4-D (or higher) volumes are not supported (dim[%d]=%d)", d, extent)
		}
	}

	datatype := int(int16(le.Uint16(header[70:72])))
	spacing := [3]float64{
		float64(math.Float32frombits(le.Uint32(header[80:84]))),
		float64(math.Float32frombits(le.Uint32(header[84:88]))),
		float64(math.Float32frombits(le.Uint32(header[88:92]))),
	}
	for i, s := range spacing {
		if s == 0 {
			spacing[i] = 1
		}
	}

	voxOffset := int64(math.Float32frombits(le.Uint32(header[108:112])))
	sclSlope := float64(math.Float32frombits(le.Uint32(header[112:116])))
	sclInter := float64(math.Float32frombits(le.Uint32(header[116:120])))
	if sclSlope == 0 {
		sclSlope = 1
		sclInter = 0
	}

	if skip := voxOffset - niftiHeaderSize; skip > 0 {
		if _, err := io.CopyN(io.Discard, r, skip); err != nil {
			return nil, fmt.Errorf("skip to voxel data: %w", err)
		}
	}

	count := nx * ny * nz
	vol := &Volume{NX: nx, NY: ny, NZ: nz, Spacing: spacing, Data: make([]float64, count)}

	var bytesPer int
	switch datatype {
	case dtUint8:
		bytesPer = 1
	case dtInt16:
		bytesPer = 2
	case dtInt32, dtFloat32:
		bytesPer = 4
	case dtFloat64:
		bytesPer = 8
	default:
		return nil, fmt.Errorf("unsupported datatype %d", datatype)
	}

	raw := make([]byte, count*bytesPer)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("read voxel data: %w", err)
	}

	for i := 0; i < count; i++ {
		var value float64
		switch datatype {
		case dtUint8:
			value = float64(raw[i])
		case dtInt16:
			value = float64(int16(le.Uint16(raw[i*2:])))
		case dtInt32:
			value = float64(int32(le.Uint32(raw[i*4:])))
		case dtFloat32:
			value = float64(math.Float32frombits(le.Uint32(raw[i*4:])))
		case dtFloat64:
			value = math.Float64frombits(le.Uint64(raw[i*8:]))
		}
		vol.Data[i] = value*sclSlope + sclInter
	}

	if err := vol.Validate(); err != nil {
		return nil, err
	}
	return vol, nil
}

func encode(vol *Volume, w io.Writer) error {
	le := binary.LittleEndian
	header := make([]byte, niftiVoxOffset)

	le.PutUint32(header[0:4], niftiHeaderSize)
	le.PutUint16(header[40:42], 3) // dim[0]
	le.PutUint16(header[42:44], uint16(vol.NX))
	le.PutUint16(header[44:46], uint16(vol.NY))
	le.PutUint16(header[46:48], uint16(vol.NZ))
	for d := 4; d < 8; d++ {
		le.PutUint16(header[40+2*d:42+2*d], 1)
	}
	le.PutUint16(header[70:72], dtFloat32)
	le.PutUint16(header[72:74], 32) // bitpix
	le.PutUint32(header[76:80], math.Float32bits(1))
	le.PutUint32(header[80:84], math.Float32bits(float32(vol.Spacing[0])))
	le.PutUint32(header[84:88], math.Float32bits(float32(vol.Spacing[1])))
	le.PutUint32(header[88:92], math.Float32bits(float32(vol.Spacing[2])))
	le.PutUint32(header[108:112], math.Float32bits(niftiVoxOffset))
	le.PutUint32(header[112:116], math.Float32bits(1)) // scl_slope
	copy(header[344:348], niftiMagic)

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	raw := make([]byte, len(vol.Data)*4)
	for i, value := range vol.Data {
		le.PutUint32(raw[i*4:], math.Float32bits(float32(value)))
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("write voxel data: %w", err)
	}
	return nil
}
