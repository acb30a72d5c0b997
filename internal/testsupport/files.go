package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"neuroproc/internal/imaging"
)

// WriteFile fills the target path with the requested number of bytes using
// a simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := int64(chunkSize)
		if remaining < toWrite {
			toWrite = remaining
		}
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}

// WriteVolume saves a valid NIfTI volume with a ramp intensity pattern at
// path, creating parent directories as needed.
func WriteVolume(t testing.TB, path string, nx, ny, nz int) *imaging.Volume {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	vol := imaging.NewVolume(nx, ny, nz)
	for i := range vol.Data {
		vol.Data[i] = float64(i%97) + 1
	}
	if err := imaging.Save(vol, path); err != nil {
		t.Fatalf("save volume %s: %v", path, err)
	}
	return vol
}

// WriteAtlas creates an atlas directory containing a full-coverage brain
// mask matching the given dimensions and returns the directory path.
func WriteAtlas(t testing.TB, dir string, nx, ny, nz int) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	mask := imaging.NewVolume(nx, ny, nz)
	for i := range mask.Data {
		mask.Data[i] = 1
	}
	if err := imaging.Save(mask, filepath.Join(dir, "brain_mask.nii.gz")); err != nil {
		t.Fatalf("save atlas mask: %v", err)
	}
	return dir
}
