package record

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ssargent/wearlevel/pkg/crc16"
)

// Marker is the start-of-record sentinel searched for on power-up.
const Marker uint32 = 0xA5AFFA5A

// Layout of a record relative to its base address.
const (
	MarkerSize     = 4
	ChecksumSize   = crc16.Size
	HeaderSize     = MarkerSize + ChecksumSize
	ChecksumOffset = MarkerSize
	PayloadOffset  = HeaderSize
	MaxPayloadSize = math.MaxUint16
)

// Errors
var (
	ErrBadMarker        = &RecordError{"start marker not found"}
	ErrChecksumMismatch = &RecordError{"checksum mismatch"}
	ErrTooShort         = &RecordError{"data too short for record"}
	ErrTooLarge         = &RecordError{"payload too large"}
)

// RecordError represents a record layout error
type RecordError struct {
	Message string
}

func (e *RecordError) Error() string {
	return e.Message
}

// Record is a decoded view of the bytes at a base address.
type Record struct {
	Marker   uint32 // Start marker as read
	Checksum uint16 // Stored CRC16 of the payload
	Payload  []byte // Payload bytes
}

// Codec converts between records and their on-device bytes.
type Codec struct{}

// NewCodec creates a new record codec instance
func NewCodec() *Codec {
	return &Codec{}
}

// Encode lays out a record for payload
// Format: [Marker(4)][CRC16(2)][Payload]
func (c *Codec) Encode(payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(payload))
	}

	buf := make([]byte, Footprint(len(payload)))
	binary.LittleEndian.PutUint32(buf[0:], Marker)
	binary.LittleEndian.PutUint16(buf[ChecksumOffset:], crc16.Checksum(payload))
	copy(buf[PayloadOffset:], payload)

	return buf, nil
}

// Decode reads a record carrying size payload bytes from the start of data.
// It does not validate the marker or checksum.
func (c *Codec) Decode(data []byte, size int) (*Record, error) {
	if size < 0 || len(data) < Footprint(size) {
		return nil, fmt.Errorf("%w: %d < %d", ErrTooShort, len(data), Footprint(size))
	}

	return &Record{
		Marker:   binary.LittleEndian.Uint32(data[0:]),
		Checksum: binary.LittleEndian.Uint16(data[ChecksumOffset:]),
		Payload:  data[PayloadOffset : PayloadOffset+size],
	}, nil
}

// Validate checks the start marker and the payload checksum.
func (r *Record) Validate() error {
	if r.Marker != Marker {
		return fmt.Errorf("%w: 0x%08X", ErrBadMarker, r.Marker)
	}
	if sum := crc16.Checksum(r.Payload); sum != r.Checksum {
		return fmt.Errorf("%w: stored 0x%04X, computed 0x%04X", ErrChecksumMismatch, r.Checksum, sum)
	}
	return nil
}

// Size returns the encoded size of the record.
func (r *Record) Size() int {
	return Footprint(len(r.Payload))
}

// Footprint returns the device bytes taken by a record of size payload bytes.
func Footprint(size int) int {
	return HeaderSize + size
}
