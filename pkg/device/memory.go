package device

import (
	"encoding/binary"
	"sync"
)

// region implements the accessors over a byte slice. It backs both the
// in-memory and the memory-mapped devices.
type region struct {
	mu   sync.RWMutex
	data []byte
}

func (r *region) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

func (r *region) check(op string, addr, n int) error {
	if r.data == nil {
		return &IOError{Op: op, Addr: addr, Err: ErrClosed}
	}
	return checkRange(op, addr, n, len(r.data))
}

func (r *region) Uint8(addr int) (byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.check("read byte", addr, 1); err != nil {
		return 0, err
	}
	return r.data[addr], nil
}

func (r *region) PutUint8(addr int, v byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check("write byte", addr, 1); err != nil {
		return err
	}
	r.data[addr] = v
	return nil
}

func (r *region) Uint16(addr int) (uint16, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.check("read word", addr, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(r.data[addr:]), nil
}

func (r *region) PutUint16(addr int, v uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check("write word", addr, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(r.data[addr:], v)
	return nil
}

func (r *region) Uint32(addr int) (uint32, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.check("read dword", addr, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(r.data[addr:]), nil
}

func (r *region) PutUint32(addr int, v uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check("write dword", addr, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(r.data[addr:], v)
	return nil
}

// Memory is an emulated EEPROM held in RAM. A new Memory reads as all
// zeros, the post-format state.
type Memory struct {
	region
}

// NewMemory creates a zero-filled in-memory device of the given size.
func NewMemory(size int) *Memory {
	return &Memory{region: region{data: make([]byte, size)}}
}

// NewMemoryFrom creates an in-memory device holding a copy of image.
func NewMemoryFrom(image []byte) *Memory {
	data := make([]byte, len(image))
	copy(data, image)
	return &Memory{region: region{data: data}}
}

// Bytes returns a copy of the device contents.
func (m *Memory) Bytes() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out
}

// Close releases the backing array. Further accesses fail with ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	return nil
}
