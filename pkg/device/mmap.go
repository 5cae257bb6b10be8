//go:build unix

package device

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Mmap is a device whose image file is mapped shared into memory, so other
// processes mapping the same file observe writes immediately.
type Mmap struct {
	region
	fd int
}

// OpenMmap maps the image at path, creating and zero-extending it to size.
func OpenMmap(path string, size int) (*Mmap, error) {
	if size <= 0 || size > MaxSize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}

	fd, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR|unix.O_CLOEXEC|unix.O_NOFOLLOW, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to stat image: %w", err)
	}

	if stat.Size < int64(size) {
		if err := unix.Ftruncate(fd, int64(size)); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("failed to size image: %w", err)
		}
	}

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to map image: %w", err)
	}

	return &Mmap{region: region{data: data}, fd: fd}, nil
}

// Sync flushes the mapping to the image file.
func (m *Mmap) Sync() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return ErrClosed
	}
	return unix.Msync(m.data, unix.MS_SYNC)
}

// Close flushes, unmaps and closes the image.
func (m *Mmap) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data == nil {
		return nil
	}

	syncErr := unix.Msync(m.data, unix.MS_SYNC)
	unmapErr := unix.Munmap(m.data)
	m.data = nil
	closeErr := unix.Close(m.fd)

	switch {
	case syncErr != nil:
		return syncErr
	case unmapErr != nil:
		return unmapErr
	default:
		return closeErr
	}
}
