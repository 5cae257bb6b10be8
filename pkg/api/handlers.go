package api

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ssargent/wearlevel/pkg/record"
	"github.com/ssargent/wearlevel/pkg/wearlevel"
)

const maxBodyBytes = 1 << 16

// Server holds the API server state
type Server struct {
	store   IWearLevelStore
	wear    WearReporter
	config  ServerConfig
	metrics *Metrics
}

// NewServer creates a new API server. wear may be nil when the device does
// not count writes.
func NewServer(store IWearLevelStore, wear WearReporter, config ServerConfig, metrics *Metrics) *Server {
	return &Server{
		store:   store,
		wear:    wear,
		config:  config,
		metrics: metrics,
	}
}

func (s *Server) recordOperation(operation string, success bool, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordStoreOperation(operation, success, time.Since(start))
	s.metrics.UpdateStoreStats(s.store.BaseAddress(), s.store.Stats())
}

// storeErrorStatus maps store errors to HTTP status codes
func storeErrorStatus(err error) int {
	switch {
	case errors.Is(err, wearlevel.ErrNotInitialized):
		return http.StatusConflict
	case errors.Is(err, wearlevel.ErrChecksumMismatch), errors.Is(err, wearlevel.ErrNoRecord):
		return http.StatusNotFound
	case errors.Is(err, wearlevel.ErrRecordTooLarge):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// handleHealth godoc
//
//	@Summary		Health check
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	map[string]string
//	@Router			/health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendSuccess(w, map[string]string{"status": "healthy"})
}

// handleStatus godoc
//
//	@Summary		Store status
//	@Description	Cursor position, device geometry, activity counters and whether the current record verifies
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Router			/status [get]
//	@Security		ApiKeyAuth
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Initialized:    s.store.Initialized(),
		BaseAddress:    s.store.BaseAddress(),
		DeviceSize:     s.store.DeviceEnd() + 1,
		RecordSize:     s.config.RecordSize,
		MaxPayloadSize: s.store.MaxPayloadSize(),
		Stats:          s.store.Stats(),
	}

	// A record that cannot be verified is still reported
	if resp.Initialized {
		valid, err := s.store.Verify(s.config.RecordSize)
		if err != nil {
			resp.Error = fmt.Sprintf("verify failed: %v", err)
		}
		resp.Valid = valid && err == nil
	}

	sendSuccess(w, resp)
}

// handleGetRecord returns the verified payload, as JSON hex or raw bytes
// when the client accepts application/octet-stream
//
//	@Summary		Read the current record
//	@Tags			record
//	@Produce		json,octet-stream
//	@Success		200	{object}	RecordResponse
//	@Failure		404	{object}	APIResponse
//	@Failure		409	{object}	APIResponse
//	@Router			/record [get]
//	@Security		ApiKeyAuth
func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	buf := make([]byte, s.config.RecordSize)
	if err := s.store.Read(buf); err != nil {
		s.recordOperation("read", false, start)
		if storeErrorStatus(err) == http.StatusNotFound {
			sendError(w, "No valid record stored", http.StatusNotFound)
			return
		}
		sendError(w, fmt.Sprintf("Failed to read record: %v", err), storeErrorStatus(err))
		return
	}
	s.recordOperation("read", true, start)

	if strings.Contains(r.Header.Get("Accept"), "application/octet-stream") {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("X-Base-Address", strconv.Itoa(int(s.store.BaseAddress())))
		_, _ = w.Write(buf)
		return
	}

	sendSuccess(w, RecordResponse{
		BaseAddress: s.store.BaseAddress(),
		Size:        len(buf),
		Hex:         hex.EncodeToString(buf),
	})
}

// handlePutRecord stores a new record. The body is either raw bytes or
// {"hex": "..."} with Content-Type application/json.
//
//	@Summary		Store a new record
//	@Tags			record
//	@Accept			octet-stream,json
//	@Produce		json
//	@Param			request	body		RecordRequest	false	"Hex payload"
//	@Success		200	{object}	map[string]interface{}
//	@Failure		400	{object}	APIResponse
//	@Failure		409	{object}	APIResponse
//	@Router			/record [put]
//	@Security		ApiKeyAuth
func (s *Server) handlePutRecord(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.recordOperation("write", false, start)
		sendError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	payload := body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req RecordRequest
		if err := json.Unmarshal(body, &req); err != nil {
			s.recordOperation("write", false, start)
			sendError(w, "Invalid JSON in request body", http.StatusBadRequest)
			return
		}
		payload, err = hex.DecodeString(req.Hex)
		if err != nil {
			s.recordOperation("write", false, start)
			sendError(w, "Invalid hex payload", http.StatusBadRequest)
			return
		}
	}

	if len(payload) != s.config.RecordSize {
		s.recordOperation("write", false, start)
		sendError(w, fmt.Sprintf("Payload must be %d bytes, got %d", s.config.RecordSize, len(payload)), http.StatusBadRequest)
		return
	}

	if err := s.store.Write(payload); err != nil {
		s.recordOperation("write", false, start)
		sendError(w, fmt.Sprintf("Failed to write record: %v", err), storeErrorStatus(err))
		return
	}

	s.recordOperation("write", true, start)
	sendSuccess(w, map[string]interface{}{
		"message":      "Record stored successfully",
		"base_address": s.store.BaseAddress(),
	})
}

// handleGetRawRecord godoc
//
//	@Summary		Decode the current record without validating it
//	@Tags			record
//	@Produce		json
//	@Success		200	{object}	RawRecordResponse
//	@Router			/record/raw [get]
//	@Security		ApiKeyAuth
func (s *Server) handleGetRawRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Inspect(s.config.RecordSize)
	if err != nil {
		sendError(w, fmt.Sprintf("Failed to inspect record: %v", err), storeErrorStatus(err))
		return
	}

	sendSuccess(w, RawRecordResponse{
		BaseAddress: s.store.BaseAddress(),
		Marker:      fmt.Sprintf("0x%08X", rec.Marker),
		Checksum:    fmt.Sprintf("0x%04X", rec.Checksum),
		Computed:    fmt.Sprintf("0x%04X", s.store.CalcChecksum(rec.Payload)),
		Payload:     hex.EncodeToString(rec.Payload),
		Valid:       rec.Validate() == nil,
	})
}

// handleVerify godoc
//
//	@Summary		Check the current record against its checksum
//	@Tags			record
//	@Produce		json
//	@Param			size	query		int	false	"Payload size, defaults to the record size"
//	@Success		200	{object}	map[string]interface{}
//	@Failure		400	{object}	APIResponse
//	@Router			/verify [get]
//	@Security		ApiKeyAuth
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	size := s.config.RecordSize
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > record.MaxPayloadSize {
			sendError(w, "Invalid size parameter", http.StatusBadRequest)
			return
		}
		size = n
	}

	valid, err := s.store.Verify(size)
	if err != nil {
		s.recordOperation("verify", false, start)
		sendError(w, fmt.Sprintf("Failed to verify record: %v", err), storeErrorStatus(err))
		return
	}

	s.recordOperation("verify", true, start)
	sendSuccess(w, map[string]interface{}{
		"valid":        valid,
		"size":         size,
		"base_address": s.store.BaseAddress(),
	})
}

// handleFormat godoc
//
//	@Summary		Erase the device and rescan it
//	@Tags			device
//	@Produce		json
//	@Success		200	{object}	wearlevel.ScanResult
//	@Router			/format [post]
//	@Security		ApiKeyAuth
func (s *Server) handleFormat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if err := s.store.Format(); err != nil {
		s.recordOperation("format", false, start)
		sendError(w, fmt.Sprintf("Failed to format device: %v", err), http.StatusInternalServerError)
		return
	}

	result, err := s.store.Init()
	if err != nil {
		s.recordOperation("format", false, start)
		sendError(w, fmt.Sprintf("Failed to initialize after format: %v", err), http.StatusInternalServerError)
		return
	}

	s.recordOperation("format", true, start)
	sendSuccess(w, result)
}

// handleWear reports per-cell write distribution
func (s *Server) handleWear(w http.ResponseWriter, r *http.Request) {
	if s.wear == nil {
		sendError(w, "Wear tracking is not enabled", http.StatusNotFound)
		return
	}

	buckets := 16
	if v := r.URL.Query().Get("buckets"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			sendError(w, "Invalid buckets parameter", http.StatusBadRequest)
			return
		}
		buckets = n
	}

	sendSuccess(w, s.wear.Wear(buckets))
}
