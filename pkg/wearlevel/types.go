package wearlevel

import (
	"log"

	"github.com/ssargent/wearlevel/pkg/record"
)

// MinDeviceSize is the smallest device able to hold an empty record.
const MinDeviceSize = record.HeaderSize + 2

// formatChecksum is stored after the marker by Format. The CRC16 of any
// run of zero bytes is 0, so a formatted device never verifies.
const formatChecksum uint16 = 0xFFFF

// ScanResult is the outcome of searching a device for the start marker.
type ScanResult struct {
	Found   bool   `json:"found"`
	Address uint16 `json:"address"`
	Skipped int    `json:"skipped,omitempty"` // candidates rejected by scan validation
}

// Stats counts store activity since the store was created.
type Stats struct {
	Writes         uint64 `json:"writes"`
	Wraparounds    uint64 `json:"wraparounds"`
	Reads          uint64 `json:"reads"`
	VerifyFailures uint64 `json:"verify_failures"`
	Formats        uint64 `json:"formats"`
}

// Option configures a Store.
type Option func(*Store)

// WithScanValidation makes Init accept a marker only when the size payload
// bytes behind it pass the checksum, continuing past false positives left
// in stale payload bytes.
func WithScanValidation(size int) Option {
	return func(s *Store) {
		s.validateScan = true
		s.scanSize = size
	}
}

// WithLogger logs scan outcomes, wraparounds and formats to logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Errors
var (
	ErrNotInitialized   = &StoreError{"store is not initialized"}
	ErrRecordTooLarge   = &StoreError{"record does not fit on device"}
	ErrDeviceTooSmall   = &StoreError{"device too small"}
	ErrNoRecord         = &StoreError{"no record stored"}
	ErrChecksumMismatch = record.ErrChecksumMismatch
)

// StoreError represents a wear-levelled store error
type StoreError struct {
	Message string
}

func (e *StoreError) Error() string {
	return e.Message
}
