//go:build !unix

package device

import "fmt"

// Mmap is unavailable on this platform.
type Mmap struct {
	File
}

// OpenMmap reports that shared mappings are not supported here.
func OpenMmap(path string, size int) (*Mmap, error) {
	return nil, fmt.Errorf("%w: mmap devices require a unix platform", ErrUnknownKind)
}
