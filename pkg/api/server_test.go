package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ssargent/wearlevel/pkg/device"
	"github.com/ssargent/wearlevel/pkg/wearlevel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "test-key"

type testServer struct {
	store  *wearlevel.Store
	wear   *device.WearCounter
	router http.Handler
}

// setupTestServer serves a formatted, initialized store on a 256 byte device
// with 4 byte records
func setupTestServer(t *testing.T, initialize bool) *testServer {
	t.Helper()

	wc := device.NewWearCounter(device.NewMemory(256))
	store, err := wearlevel.NewStore(wc)
	require.NoError(t, err)
	require.NoError(t, store.Format())
	if initialize {
		_, err = store.Init()
		require.NoError(t, err)
	}

	// Use a private registry to avoid Prometheus registration conflicts
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	config := ServerConfig{APIKey: testAPIKey, RecordSize: 4}
	server := NewServer(store, wc, config, metrics)

	return &testServer{
		store:  store,
		wear:   wc,
		router: NewRouter(server, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("X-API-Key", testAPIKey)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()

	var resp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success, resp.Error)
	require.NoError(t, json.Unmarshal(resp.Data, out))
}

func TestServer_RequiresAPIKey(t *testing.T) {
	ts := setupTestServer(t, true)

	req := httptest.NewRequest("GET", "/api/v1/status", nil)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, "GET", "/api/v1/status", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest("GET", "/api/v1/status", nil)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_HealthIsOpen(t *testing.T) {
	ts := setupTestServer(t, true)

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_BlankDeviceHasNoRecord(t *testing.T) {
	store, err := wearlevel.NewStore(device.NewMemory(256))
	require.NoError(t, err)
	result, err := store.Init()
	require.NoError(t, err)
	require.False(t, result.Found)

	router := NewRouter(NewServer(store, nil, ServerConfig{APIKey: testAPIKey, RecordSize: 4}, nil), nil)
	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", path, nil)
		req.Header.Set("X-API-Key", testAPIKey)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusNotFound, get("/api/v1/record").Code)

	w := get("/api/v1/status")
	require.Equal(t, http.StatusOK, w.Code)
	var status StatusResponse
	decodeData(t, w, &status)
	assert.True(t, status.Initialized)
	assert.False(t, status.Valid)

	w = get("/api/v1/verify")
	require.Equal(t, http.StatusOK, w.Code)
	var verify struct {
		Valid bool `json:"valid"`
	}
	decodeData(t, w, &verify)
	assert.False(t, verify.Valid)
}

func TestServer_StatusReportsVerifyError(t *testing.T) {
	store, err := wearlevel.NewStore(device.NewMemory(64))
	require.NoError(t, err)
	require.NoError(t, store.Format())
	_, err = store.Init()
	require.NoError(t, err)

	// Record size larger than the device can hold at the cursor
	router := NewRouter(NewServer(store, nil, ServerConfig{APIKey: testAPIKey, RecordSize: 100}, nil), nil)

	req := httptest.NewRequest("GET", "/api/v1/status", nil)
	req.Header.Set("X-API-Key", testAPIKey)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var status StatusResponse
	decodeData(t, w, &status)
	assert.True(t, status.Initialized)
	assert.False(t, status.Valid)
	assert.Equal(t, 64, status.DeviceSize)
	assert.Contains(t, status.Error, "does not fit")
}

func TestServer_PutGetRecord(t *testing.T) {
	ts := setupTestServer(t, true)

	w := ts.do(t, "PUT", "/api/v1/record", []byte{1, 2, 3, 4}, map[string]string{"Content-Type": "application/octet-stream"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, uint16(1), ts.store.BaseAddress())

	t.Run("json", func(t *testing.T) {
		w := ts.do(t, "GET", "/api/v1/record", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp RecordResponse
		decodeData(t, w, &resp)
		assert.Equal(t, "01020304", resp.Hex)
		assert.Equal(t, 4, resp.Size)
		assert.Equal(t, uint16(1), resp.BaseAddress)
	})

	t.Run("octet-stream", func(t *testing.T) {
		w := ts.do(t, "GET", "/api/v1/record", nil, map[string]string{"Accept": "application/octet-stream"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []byte{1, 2, 3, 4}, w.Body.Bytes())
		assert.Equal(t, "1", w.Header().Get("X-Base-Address"))
	})
}

func TestServer_PutRecordJSON(t *testing.T) {
	ts := setupTestServer(t, true)

	w := ts.do(t, "PUT", "/api/v1/record", []byte(`{"hex":"deadbeef"}`), map[string]string{"Content-Type": "application/json"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	buf := make([]byte, 4)
	require.NoError(t, ts.store.Read(buf))
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, buf)
}

func TestServer_PutRecordRejected(t *testing.T) {
	tests := []struct {
		name        string
		body        []byte
		contentType string
	}{
		{"too short", []byte{1, 2}, "application/octet-stream"},
		{"too long", []byte{1, 2, 3, 4, 5}, "application/octet-stream"},
		{"invalid json", []byte(`{"hex":`), "application/json"},
		{"invalid hex", []byte(`{"hex":"zz"}`), "application/json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := setupTestServer(t, true)

			w := ts.do(t, "PUT", "/api/v1/record", tt.body, map[string]string{"Content-Type": tt.contentType})
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, uint16(0), ts.store.BaseAddress())
		})
	}
}

func TestServer_GetRecordAfterFormat(t *testing.T) {
	ts := setupTestServer(t, true)

	w := ts.do(t, "GET", "/api/v1/record", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_NotInitialized(t *testing.T) {
	ts := setupTestServer(t, false)

	w := ts.do(t, "GET", "/api/v1/record", nil, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, "PUT", "/api/v1/record", []byte{1, 2, 3, 4}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, "GET", "/api/v1/verify", nil, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, "GET", "/api/v1/status", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var status StatusResponse
	decodeData(t, w, &status)
	assert.False(t, status.Initialized)
	assert.False(t, status.Valid)
}

func TestServer_Verify(t *testing.T) {
	ts := setupTestServer(t, true)

	var resp struct {
		Valid bool `json:"valid"`
		Size  int  `json:"size"`
	}

	w := ts.do(t, "GET", "/api/v1/verify", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, w, &resp)
	assert.False(t, resp.Valid)

	require.NoError(t, ts.store.Write([]byte("ab")))

	w = ts.do(t, "GET", "/api/v1/verify?size=2", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, w, &resp)
	assert.True(t, resp.Valid)
	assert.Equal(t, 2, resp.Size)

	w = ts.do(t, "GET", "/api/v1/verify?size=-1", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, "GET", "/api/v1/verify?size=1000", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_RawRecord(t *testing.T) {
	ts := setupTestServer(t, true)
	require.NoError(t, ts.store.Write([]byte{0xCA, 0xFE, 0xBA, 0xBE}))

	w := ts.do(t, "GET", "/api/v1/record/raw", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var raw RawRecordResponse
	decodeData(t, w, &raw)
	assert.Equal(t, "0xA5AFFA5A", raw.Marker)
	assert.Equal(t, "cafebabe", raw.Payload)
	assert.Equal(t, raw.Checksum, raw.Computed)
	assert.True(t, raw.Valid)
}

func TestServer_Format(t *testing.T) {
	ts := setupTestServer(t, true)
	for i := 0; i < 5; i++ {
		require.NoError(t, ts.store.Write([]byte{byte(i), 0, 0, 0}))
	}
	assert.Equal(t, uint16(5), ts.store.BaseAddress())

	w := ts.do(t, "POST", "/api/v1/format", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var result wearlevel.ScanResult
	decodeData(t, w, &result)
	assert.True(t, result.Found)
	assert.Equal(t, uint16(0), result.Address)
	assert.Equal(t, uint16(0), ts.store.BaseAddress())
}

func TestServer_Status(t *testing.T) {
	ts := setupTestServer(t, true)
	require.NoError(t, ts.store.Write([]byte{1, 1, 1, 1}))

	w := ts.do(t, "GET", "/api/v1/status", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var status StatusResponse
	decodeData(t, w, &status)
	assert.True(t, status.Initialized)
	assert.True(t, status.Valid)
	assert.Equal(t, uint16(1), status.BaseAddress)
	assert.Equal(t, 256, status.DeviceSize)
	assert.Equal(t, 4, status.RecordSize)
	assert.Equal(t, 248, status.MaxPayloadSize)
	assert.Equal(t, uint64(1), status.Stats.Writes)
}

func TestServer_Wear(t *testing.T) {
	ts := setupTestServer(t, true)
	ts.wear.Reset()
	for i := 0; i < 10; i++ {
		require.NoError(t, ts.store.Write([]byte{1, 2, 3, 4}))
	}

	w := ts.do(t, "GET", "/api/v1/wear?buckets=4", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var report device.WearReport
	decodeData(t, w, &report)
	assert.Equal(t, uint64(100), report.TotalWrites)
	assert.Len(t, report.Buckets, 4)

	w = ts.do(t, "GET", "/api/v1/wear?buckets=x", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_WearDisabled(t *testing.T) {
	store, err := wearlevel.NewStore(device.NewMemory(64))
	require.NoError(t, err)

	server := NewServer(store, nil, ServerConfig{APIKey: testAPIKey, RecordSize: 4}, nil)
	router := NewRouter(server, nil)

	req := httptest.NewRequest("GET", "/api/v1/wear", nil)
	req.Header.Set("X-API-Key", testAPIKey)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_Metrics(t *testing.T) {
	ts := setupTestServer(t, true)

	w := ts.do(t, "PUT", "/api/v1/record", []byte{9, 9, 9, 9}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "wearlevel_base_address 1")
	assert.Contains(t, body, "wearlevel_record_writes 1")
	assert.True(t, strings.Contains(body, `wearlevel_store_operations_total{operation="write",status="success"} 1`))
	assert.Contains(t, body, "wearlevel_http_requests_total")
}

func TestServer_SwaggerDoc(t *testing.T) {
	ts := setupTestServer(t, true)

	req := httptest.NewRequest("GET", "/swagger/doc.json", nil)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var doc struct {
		Swagger  string                 `json:"swagger"`
		BasePath string                 `json:"basePath"`
		Paths    map[string]interface{} `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "2.0", doc.Swagger)
	assert.Equal(t, "/api/v1", doc.BasePath)
	assert.Contains(t, doc.Paths, "/record")
	assert.Contains(t, doc.Paths, "/wear")
}
