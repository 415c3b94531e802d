package mseed

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// ReadFile decodes the miniSEED file at path. The file is memory-mapped
// read-only for the duration of the decode; returned traces own their data.
// Decode errors do not repeat the path.
func ReadFile(path string) ([]*Trace, error) {
	f, err := os.Open(path) //nolint:gosec // G304: staged archive paths come from a directory listing
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: is a directory", ErrNotMiniSEED)
	}
	if info.Size() < fixedHeaderSize {
		return nil, fmt.Errorf("%w: file is %d bytes", ErrNotMiniSEED, info.Size())
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}
	defer func() { _ = data.Unmap() }()

	return Decode(data)
}
