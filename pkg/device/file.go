package device

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File is a device backed by an image file. Every access goes straight to
// the file with ReadAt/WriteAt; nothing is cached.
type File struct {
	file  *os.File
	path  string
	size  int
	sync  bool
	mutex sync.Mutex
}

// OpenFile opens or creates the image at path. A new or short image is
// extended with zero bytes up to size.
func OpenFile(path string, size int, syncWrites bool) (*File, error) {
	if size <= 0 || size > MaxSize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat image: %w", err)
	}

	if stat.Size() < int64(size) {
		if err := file.Truncate(int64(size)); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to size image: %w", err)
		}
	}

	return &File{
		file: file,
		path: path,
		size: size,
		sync: syncWrites,
	}, nil
}

// Size returns the device size in bytes.
func (f *File) Size() int {
	return f.size
}

// Path returns the image path.
func (f *File) Path() string {
	return f.path
}

func (f *File) read(op string, addr int, buf []byte) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.file == nil {
		return &IOError{Op: op, Addr: addr, Err: ErrClosed}
	}
	if err := checkRange(op, addr, len(buf), f.size); err != nil {
		return err
	}
	if _, err := f.file.ReadAt(buf, int64(addr)); err != nil {
		return &IOError{Op: op, Addr: addr, Err: err}
	}
	return nil
}

func (f *File) write(op string, addr int, buf []byte) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.file == nil {
		return &IOError{Op: op, Addr: addr, Err: ErrClosed}
	}
	if err := checkRange(op, addr, len(buf), f.size); err != nil {
		return err
	}
	if _, err := f.file.WriteAt(buf, int64(addr)); err != nil {
		return &IOError{Op: op, Addr: addr, Err: err}
	}
	if f.sync {
		if err := f.file.Sync(); err != nil {
			return &IOError{Op: op, Addr: addr, Err: err}
		}
	}
	return nil
}

func (f *File) Uint8(addr int) (byte, error) {
	var buf [1]byte
	if err := f.read("read byte", addr, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (f *File) PutUint8(addr int, v byte) error {
	return f.write("write byte", addr, []byte{v})
}

func (f *File) Uint16(addr int) (uint16, error) {
	var buf [2]byte
	if err := f.read("read word", addr, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func (f *File) PutUint16(addr int, v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return f.write("write word", addr, buf[:])
}

func (f *File) Uint32(addr int) (uint32, error) {
	var buf [4]byte
	if err := f.read("read dword", addr, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (f *File) PutUint32(addr int, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return f.write("write dword", addr, buf[:])
}

// Close syncs and closes the image file.
func (f *File) Close() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.file == nil {
		return nil
	}

	if err := f.file.Sync(); err != nil {
		f.file.Close()
		f.file = nil
		return err
	}

	err := f.file.Close()
	f.file = nil
	return err
}
