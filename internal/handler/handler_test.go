package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"device-programmer/internal/config"
	"device-programmer/internal/device"
	"device-programmer/internal/discovery"
	"device-programmer/internal/driver"
	"device-programmer/internal/service"
	"device-programmer/internal/session"
	"device-programmer/internal/utils"
)

type response struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *utils.APIError `json:"error"`
}

type stubScanner struct {
	scannerType string
	ports       []*discovery.DiscoveredPort
	err         error
}

func (s *stubScanner) Scan(context.Context) ([]*discovery.DiscoveredPort, error) { return s.ports, s.err }
func (s *stubScanner) GetScannerType() string                                    { return s.scannerType }
func (s *stubScanner) IsAvailable() bool                                         { return true }

type testServer struct {
	router   *gin.Engine
	scanners *discovery.ScannerManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	tools := driver.NewRegistry(logger)
	require.NoError(t, driver.RegisterDefaultTools(tools, logger))
	devices, err := device.NewRegistry(logger)
	require.NoError(t, err)
	scanners := discovery.NewScannerManager(logger)

	cfg := &config.Config{App: config.AppConfig{Name: "gdp", Version: "test"}}
	probeService := service.NewProbeService(tools, devices, config.SessionConfig{Frequency: 125000}, logger)

	router := gin.New()
	NewHealthHandler(tools, devices, cfg, logger).RegisterRoutes(router)
	api := router.Group("/api/v1")
	NewCatalogHandler(tools, devices, logger).RegisterRoutes(api)
	NewDiscoveryHandler(scanners, logger).RegisterRoutes(api)
	NewProbeHandler(probeService, logger).RegisterRoutes(api)

	return &testServer{router: router, scanners: scanners}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) (int, response) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "gdp", health.Service)
	assert.Equal(t, float64(3), health.Checks["tools"].Data["count"])

	req = httptest.NewRequest(http.MethodGet, "/live", nil)
	rec = httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCatalog(t *testing.T) {
	ts := newTestServer(t)

	code, resp := ts.do(t, http.MethodGet, "/api/v1/tools", nil)
	require.Equal(t, http.StatusOK, code)
	var tools struct {
		Count int               `json:"count"`
		Tools []driver.ToolInfo `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &tools))
	assert.Equal(t, 3, tools.Count)
	assert.Equal(t, "avrispmk2", tools.Tools[0].Name)

	code, resp = ts.do(t, http.MethodGet, "/api/v1/devices/ATmega328P", nil)
	require.Equal(t, http.StatusOK, code)
	var part struct {
		Name      string `json:"name"`
		Signature []int  `json:"signature"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &part))
	assert.Equal(t, "atmega328p", part.Name)
	assert.Equal(t, []int{0x1E, 0x95, 0x0F}, part.Signature)

	code, resp = ts.do(t, http.MethodGet, "/api/v1/devices/pic16f84", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)

	code, _ = ts.do(t, http.MethodGet, "/api/v1/devices", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestListPorts(t *testing.T) {
	ts := newTestServer(t)
	ts.scanners.RegisterScanner(&stubScanner{
		scannerType: "serial",
		ports:       []*discovery.DiscoveredPort{{Type: "serial", Port: "/dev/ttyACM0", Tool: "stk500v2"}},
	})
	ts.scanners.RegisterScanner(&stubScanner{scannerType: "usb", err: errors.New("libusb unavailable")})

	code, resp := ts.do(t, http.MethodGet, "/api/v1/ports", nil)
	require.Equal(t, http.StatusOK, code)
	var ports struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &ports))
	assert.Equal(t, 1, ports.Count)

	code, resp = ts.do(t, http.MethodGet, "/api/v1/ports?type=usb", nil)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Contains(t, resp.Error.Details, "libusb")
}

func TestProbe(t *testing.T) {
	ts := newTestServer(t)

	code, resp := ts.do(t, http.MethodPost, "/api/v1/probe", map[string]interface{}{
		"tool":      "sim",
		"device":    "atmega328p",
		"interface": "isp",
		"reads":     []map[string]interface{}{{"space": "signatures"}},
	})
	require.Equal(t, http.StatusOK, code, resp.Message)
	var result service.ProbeResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, "0x1E 0x95 0x0F", result.Reads[0].Data)
	assert.Equal(t, "5.5", result.VCCMax.String())
}

func TestProbe_Errors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body interface{}
		code int
	}{
		{"malformed body", []int{1}, http.StatusBadRequest},
		{"missing device", map[string]string{"tool": "sim"}, http.StatusBadRequest},
		{"unknown tool", map[string]string{"tool": "usbasp", "device": "atmega328p"}, http.StatusBadRequest},
		{"unsupported interface", map[string]string{"tool": "avrisp", "device": "atmega328p", "interface": "jtag"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := ts.do(t, http.MethodPost, "/api/v1/probe", tt.body)
			assert.Equal(t, tt.code, code)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error.Details)
		})
	}
}

func TestProbeErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{&session.MissingParamError{Param: "device"}, http.StatusBadRequest},
		{&session.SupportError{Param: "interface", Value: "jtag"}, http.StatusBadRequest},
		{&session.SignatureError{Expected: []byte{0x1E}, Read: []byte{0x00}}, http.StatusUnprocessableEntity},
		{service.ErrToolBusy, http.StatusConflict},
		{errors.New("answer timeout"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		code, _ := probeErrorStatus(tt.err)
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}
