// Package device provides byte-addressable storage devices with limited
// write endurance, such as an emulated EEPROM held in memory, in an image
// file or in a shared memory mapping.
//
// Multi-byte accessors use little-endian order, matching the AVR
// eeprom_read_word/eeprom_read_dword primitives.
package device

import (
	"fmt"
)

// MaxSize is the largest device addressable with a 16-bit cursor.
const MaxSize = 1 << 16

// Device kinds understood by Open.
const (
	KindMemory = "memory"
	KindFile   = "file"
	KindMmap   = "mmap"
)

// Device is a flat, byte-addressable storage device.
type Device interface {
	// Size returns the number of addressable bytes.
	Size() int

	Uint8(addr int) (byte, error)
	PutUint8(addr int, v byte) error
	Uint16(addr int) (uint16, error)
	PutUint16(addr int, v uint16) error
	Uint32(addr int) (uint32, error)
	PutUint32(addr int, v uint32) error

	Close() error
}

// Config selects and sizes a device.
type Config struct {
	Kind string // memory, file or mmap
	Path string // image path for file and mmap devices
	Size int    // device size in bytes
	Sync bool   // fsync after every write (file devices)
}

// Errors
var (
	ErrOutOfRange  = &DeviceError{"address out of range"}
	ErrClosed      = &DeviceError{"device closed"}
	ErrInvalidSize = &DeviceError{"invalid device size"}
	ErrUnknownKind = &DeviceError{"unknown device kind"}
)

// DeviceError represents a device error
type DeviceError struct {
	Message string
}

func (e *DeviceError) Error() string {
	return e.Message
}

// IOError reports a failed device access.
type IOError struct {
	Op   string
	Addr int
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("device %s at 0x%04x: %v", e.Op, e.Addr, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Open creates the device described by cfg.
func Open(cfg Config) (Device, error) {
	if cfg.Size <= 0 || cfg.Size > MaxSize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, cfg.Size)
	}

	switch cfg.Kind {
	case KindMemory, "":
		return NewMemory(cfg.Size), nil
	case KindFile:
		f, err := OpenFile(cfg.Path, cfg.Size, cfg.Sync)
		if err != nil {
			return nil, err
		}
		return f, nil
	case KindMmap:
		m, err := OpenMmap(cfg.Path, cfg.Size)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}

// checkRange validates an n-byte access at addr on a device of the given size.
func checkRange(op string, addr, n, size int) error {
	if addr < 0 || n > size || addr > size-n {
		return &IOError{Op: op, Addr: addr, Err: ErrOutOfRange}
	}
	return nil
}
