package api

import (
	"github.com/ssargent/wearlevel/pkg/device"
	"github.com/ssargent/wearlevel/pkg/record"
	"github.com/ssargent/wearlevel/pkg/wearlevel"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// RecordRequest carries a payload as hex for JSON clients
type RecordRequest struct {
	Hex string `json:"hex"`
}

// RecordResponse returns the active record payload
type RecordResponse struct {
	BaseAddress uint16 `json:"base_address"`
	Size        int    `json:"size"`
	Hex         string `json:"hex"`
}

// RawRecordResponse shows the active record as stored, valid or not
type RawRecordResponse struct {
	BaseAddress uint16 `json:"base_address"`
	Marker      string `json:"marker"`
	Checksum    string `json:"checksum"`
	Computed    string `json:"computed"`
	Payload     string `json:"payload"`
	Valid       bool   `json:"valid"`
}

// StatusResponse describes the store
type StatusResponse struct {
	Initialized    bool            `json:"initialized"`
	BaseAddress    uint16          `json:"base_address"`
	DeviceSize     int             `json:"device_size"`
	RecordSize     int             `json:"record_size"`
	MaxPayloadSize int             `json:"max_payload_size"`
	Valid          bool            `json:"valid"`
	Stats          wearlevel.Stats `json:"stats"`
	Error          string          `json:"error,omitempty"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Port       int
	Bind       string
	APIKey     string
	RecordSize int // Payload size of the stored record
}

// IWearLevelStore defines the store operations served over HTTP
type IWearLevelStore interface {
	Init() (wearlevel.ScanResult, error)
	Format() error
	Write(data []byte) error
	Read(buf []byte) error
	Verify(size int) (bool, error)
	Inspect(size int) (*record.Record, error)
	CalcChecksum(data []byte) uint16
	BaseAddress() uint16
	Initialized() bool
	DeviceEnd() int
	MaxPayloadSize() int
	Stats() wearlevel.Stats
}

// WearReporter reports per-cell write counts
type WearReporter interface {
	Wear(buckets int) device.WearReport
}
