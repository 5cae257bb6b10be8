package wearlevel

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/ssargent/wearlevel/pkg/crc16"
	"github.com/ssargent/wearlevel/pkg/device"
	"github.com/ssargent/wearlevel/pkg/record"
)

// Store keeps a single fixed-size record on a device, moving it one byte
// further along on every write so wear is spread over all cells.
type Store struct {
	dev          device.Device
	codec        *record.Codec
	logger       *log.Logger
	validateScan bool
	scanSize     int

	mutex       sync.Mutex
	baseAddress uint16
	initialized bool
	present     bool // a marker was found or a record written
	stats       Stats
}

// NewStore creates an uninitialized store over dev. Call Init before use.
func NewStore(dev device.Device, opts ...Option) (*Store, error) {
	size := dev.Size()
	if size < MinDeviceSize {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrDeviceTooSmall, size, MinDeviceSize)
	}
	if size > device.MaxSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds 16-bit address space", device.ErrInvalidSize, size)
	}

	s := &Store{
		dev:   dev,
		codec: record.NewCodec(),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Init scans the device for the start marker and points the cursor at the
// first match. When no marker exists the cursor is 0 and no record is
// present: Read fails with ErrNoRecord and Verify reports false until the
// first Write. The store is usable afterwards in both cases.
func (s *Store) Init() (ScanResult, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.baseAddress = 0
	s.present = false

	result, err := s.scan()
	if err != nil {
		return result, err
	}

	if result.Found {
		s.baseAddress = result.Address
		s.present = true
		s.logf("marker found at 0x%04X (%d candidates skipped)", result.Address, result.Skipped)
	} else {
		s.logf("no marker found, record absent")
	}

	s.initialized = true
	return result, nil
}

// Scan searches for the start marker without changing the store.
func (s *Store) Scan() (ScanResult, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.scan()
}

// scan checks every address where a whole marker fits, lowest first.
func (s *Store) scan() (ScanResult, error) {
	var result ScanResult

	for addr := 0; addr <= s.dev.Size()-record.MarkerSize; addr++ {
		v, err := s.dev.Uint32(addr)
		if err != nil {
			return ScanResult{}, fmt.Errorf("scan failed: %w", err)
		}
		if v != record.Marker {
			continue
		}

		if s.validateScan {
			ok, err := s.verifyAt(addr, s.scanSize)
			if err != nil && !errors.Is(err, ErrRecordTooLarge) {
				return ScanResult{}, fmt.Errorf("scan failed: %w", err)
			}
			if !ok {
				result.Skipped++
				continue
			}
		}

		result.Found = true
		result.Address = uint16(addr)
		return result, nil
	}

	return result, nil
}

// Format zeroes the whole device and places an empty marker at address 0.
// All records are lost. The initialized state is left alone, so Init must
// run again before the store is used.
func (s *Store) Format() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for addr := 0; addr < s.dev.Size(); addr++ {
		if err := s.dev.PutUint8(addr, 0); err != nil {
			return fmt.Errorf("format failed: %w", err)
		}
	}

	if err := s.dev.PutUint32(0, record.Marker); err != nil {
		return fmt.Errorf("format failed: %w", err)
	}
	if err := s.dev.PutUint16(record.ChecksumOffset, formatChecksum); err != nil {
		return fmt.Errorf("format failed: %w", err)
	}

	s.stats.Formats++
	s.logf("formatted %d bytes", s.dev.Size())
	return nil
}

// Write stores data as the new active record, one byte past the previous
// one, wrapping to address 0 when it would reach the end of the device.
func (s *Store) Write(data []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}

	footprint := record.Footprint(len(data))
	end := s.deviceEnd()
	if len(data) > record.MaxPayloadSize || footprint >= end {
		return fmt.Errorf("%w: %d payload bytes on a %d byte device", ErrRecordTooLarge, len(data), s.dev.Size())
	}

	next := int(s.baseAddress) + 1
	if next+footprint >= end {
		s.logf("wraparound at 0x%04X", next)
		next = 0
		s.stats.Wraparounds++
	}
	s.baseAddress = uint16(next)
	s.present = false

	if err := s.dev.PutUint32(next, record.Marker); err != nil {
		return fmt.Errorf("write marker failed: %w", err)
	}

	checksum := crc16.Checksum(data)
	if err := s.dev.PutUint16(next+record.ChecksumOffset, checksum); err != nil {
		return fmt.Errorf("write checksum failed: %w", err)
	}

	for i, b := range data {
		if err := s.dev.PutUint8(next+record.PayloadOffset+i, b); err != nil {
			return fmt.Errorf("write payload failed: %w", err)
		}
	}

	s.present = true
	s.stats.Writes++
	return nil
}

// Read verifies the active record and copies its len(buf) payload bytes
// into buf. On any failure buf is left untouched.
func (s *Store) Read(buf []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	if !s.present {
		return ErrNoRecord
	}

	ok, err := s.verifyAt(int(s.baseAddress), len(buf))
	if err != nil {
		return err
	}
	if !ok {
		s.stats.VerifyFailures++
		return ErrChecksumMismatch
	}

	payload, err := s.readPayload(int(s.baseAddress), len(buf))
	if err != nil {
		return err
	}
	copy(buf, payload)

	s.stats.Reads++
	return nil
}

// Verify reports whether the checksum stored in the active record matches
// its size payload bytes. It is false while no record is present.
func (s *Store) Verify(size int) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.initialized {
		return false, ErrNotInitialized
	}
	if !s.present {
		return false, nil
	}

	ok, err := s.verifyAt(int(s.baseAddress), size)
	if err == nil && !ok {
		s.stats.VerifyFailures++
	}
	return ok, err
}

// verifyAt recomputes the payload checksum of the record at base.
func (s *Store) verifyAt(base, size int) (bool, error) {
	if size < 0 || record.Footprint(size) > s.dev.Size()-base {
		return false, ErrRecordTooLarge
	}

	stored, err := s.dev.Uint16(base + record.ChecksumOffset)
	if err != nil {
		return false, fmt.Errorf("read checksum failed: %w", err)
	}

	h := crc16.New()
	for i := 0; i < size; i++ {
		b, err := s.dev.Uint8(base + record.PayloadOffset + i)
		if err != nil {
			return false, fmt.Errorf("read payload failed: %w", err)
		}
		h.WriteByte(b)
	}

	return h.Sum16() == stored, nil
}

func (s *Store) readPayload(base, size int) ([]byte, error) {
	payload := make([]byte, size)
	for i := range payload {
		b, err := s.dev.Uint8(base + record.PayloadOffset + i)
		if err != nil {
			return nil, fmt.Errorf("read payload failed: %w", err)
		}
		payload[i] = b
	}
	return payload, nil
}

// Inspect decodes the record at the cursor without validating it.
func (s *Store) Inspect(size int) (*record.Record, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}

	base := int(s.baseAddress)
	if size < 0 || record.Footprint(size) > s.dev.Size()-base {
		return nil, ErrRecordTooLarge
	}

	raw := make([]byte, record.Footprint(size))
	for i := range raw {
		b, err := s.dev.Uint8(base + i)
		if err != nil {
			return nil, fmt.Errorf("inspect failed: %w", err)
		}
		raw[i] = b
	}

	return s.codec.Decode(raw, size)
}

// CalcChecksum returns the CRC16 of data as it would be stored.
func (s *Store) CalcChecksum(data []byte) uint16 {
	return crc16.Checksum(data)
}

// BaseAddress returns the address of the active record.
func (s *Store) BaseAddress() uint16 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.baseAddress
}

// Initialized reports whether Init has completed.
func (s *Store) Initialized() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.initialized
}

// DeviceEnd returns the last valid device address.
func (s *Store) DeviceEnd() int {
	return s.deviceEnd()
}

func (s *Store) deviceEnd() int {
	return s.dev.Size() - 1
}

// Slots returns how many distinct base addresses a record of size payload
// bytes cycles through before wrapping.
func (s *Store) Slots(size int) int {
	n := s.deviceEnd() - record.Footprint(size)
	if n < 0 {
		return 0
	}
	return n
}

// MaxPayloadSize returns the largest payload the device can hold.
func (s *Store) MaxPayloadSize() int {
	n := s.deviceEnd() - record.HeaderSize - 1
	if n > record.MaxPayloadSize {
		n = record.MaxPayloadSize
	}
	return n
}

// Stats returns a copy of the activity counters.
func (s *Store) Stats() Stats {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.stats
}

// Device returns the underlying device.
func (s *Store) Device() device.Device {
	return s.dev
}

func (s *Store) logf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
