package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jeffasante/skincare-analysis-api/internal/config"
	"github.com/jeffasante/skincare-analysis-api/internal/fixtures"
	"github.com/jeffasante/skincare-analysis-api/internal/metrics"
	"github.com/jeffasante/skincare-analysis-api/internal/repository"
	"github.com/jeffasante/skincare-analysis-api/internal/service"
	"github.com/jeffasante/skincare-analysis-api/internal/validator"
)

const testKey = "test-key"

type testServer struct {
	router *gin.Engine
	dir    string
}

func newTestServer(t *testing.T, maxSize int64) *testServer {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Server: config.ServerConfig{APIKey: testKey, CORSAllowedOrigins: []string{"*"}},
		App: config.AppConfig{
			StorageBackend:    config.BackendLocal,
			UploadDir:         dir,
			MaxUploadSize:     maxSize,
			AnalysisCacheSize: 16,
		},
	}
	log := zap.NewNop()
	store, err := repository.NewLocalRepository(dir, log)
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	observer, err := metrics.NewPrometheusObserver("server_test", registry)
	require.NoError(t, err)

	images := service.NewImageService(store, validator.New(maxSize, nil, nil), log, service.WithObserver(observer))
	analysis := service.NewAnalysisService(log, cfg.App.AnalysisCacheSize, observer)

	return &testServer{
		router: NewRouter(cfg, Deps{Images: images, Analysis: analysis, Gatherer: registry}, log),
		dir:    dir,
	}
}

func (s *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("X-API-Key", testKey)
	return req
}

func analyzeRequest(id string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(`{"image_id":"`+id+`"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testKey)
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t, validator.DefaultMaxUploadSize)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.True(t, strings.HasSuffix(body["timestamp"].(string), "Z"))
}

func TestAPIKeyRequired(t *testing.T) {
	s := newTestServer(t, validator.DefaultMaxUploadSize)

	req := analyzeRequest("0123456789abcdef")
	req.Header.Del("X-API-Key")
	rec := s.do(t, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Missing or invalid API key", decode(t, rec)["detail"])

	req = analyzeRequest("0123456789abcdef")
	req.Header.Set("X-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, s.do(t, req).Code)
}

func TestUploadThenAnalyze(t *testing.T) {
	s := newTestServer(t, validator.DefaultMaxUploadSize)
	data := fixtures.PNG(700, 700)

	rec := s.do(t, uploadRequest(t, "selfie.png", data))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	up := decode(t, rec)
	id := up["image_id"].(string)
	assert.Len(t, id, 16)
	assert.Equal(t, "selfie.png", up["filename"])
	assert.Equal(t, float64(len(data)), up["size"])
	assert.True(t, strings.HasSuffix(up["uploaded_at"].(string), "Z"))

	stored, err := os.ReadFile(filepath.Join(s.dir, id+".png"))
	require.NoError(t, err)
	assert.Equal(t, data, stored)

	rec = s.do(t, analyzeRequest(id))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode(t, rec)
	assert.Equal(t, id, report["image_id"])
	assert.Equal(t, 0.75, report["confidence"])
	assert.Len(t, report["issues"], 3)
	assert.Len(t, report["recommendations"], 3)
	assert.NotEmpty(t, report["skin_type"])
	assert.True(t, strings.HasSuffix(report["analyzed_at"].(string), "Z"))
}

func TestUploadValidationErrors(t *testing.T) {
	s := newTestServer(t, 512*1024)

	rec := s.do(t, uploadRequest(t, "doc.txt", []byte("hello")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid file type. Allowed types: jpg, jpeg, png", decode(t, rec)["detail"])

	rec = s.do(t, uploadRequest(t, "fake.jpg", fixtures.Text()))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid file content. File must be a valid image (JPEG or PNG)", decode(t, rec)["detail"])

	rec = s.do(t, uploadRequest(t, "huge.png", make([]byte, 600*1024)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "File too large. Maximum size: 0.5MB", decode(t, rec)["detail"])

	entries, err := os.ReadDir(s.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUploadMissingFile(t *testing.T) {
	s := newTestServer(t, validator.DefaultMaxUploadSize)

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(""))
	req.Header.Set("X-API-Key", testKey)
	rec := s.do(t, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeErrors(t *testing.T) {
	s := newTestServer(t, validator.DefaultMaxUploadSize)

	rec := s.do(t, analyzeRequest("short"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid image_id format", decode(t, rec)["detail"])

	rec = s.do(t, analyzeRequest("nonexistent00"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Image with ID 'nonexistent00' not found", decode(t, rec)["detail"])

	rec = s.do(t, analyzeRequest("nested/dir/image00"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Image with ID 'nested/dir/image00' not found", decode(t, rec)["detail"])

	rec = s.do(t, analyzeRequest("ééééé"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid image_id format", decode(t, rec)["detail"])

	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader("{not json"))
	req.Header.Set("X-API-Key", testKey)
	assert.Equal(t, http.StatusBadRequest, s.do(t, req).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, validator.DefaultMaxUploadSize)
	s.do(t, uploadRequest(t, "a.jpg", fixtures.JPEG(10, 10)))

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `server_test_uploads_total{result="accepted"} 1`)
}

func TestNewStoreSelectsBackend(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{StorageBackend: config.BackendLocal, UploadDir: t.TempDir()}}
	store, err := NewStore(t.Context(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &repository.LocalRepository{}, store)
}
