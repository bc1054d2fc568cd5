package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/flybeeper/track-recorder/internal/config"
	"github.com/flybeeper/track-recorder/internal/models"
	"github.com/flybeeper/track-recorder/internal/service"
	"github.com/flybeeper/track-recorder/internal/tracker"
	"github.com/flybeeper/track-recorder/pkg/utils"
)

const testToken = "secret-token"

// MockLiveRepository для тестирования
type MockLiveRepository struct {
	mock.Mock
}

func (m *MockLiveRepository) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockLiveRepository) Close() error {
	return m.Called().Error(0)
}

func (m *MockLiveRepository) Publish(ctx context.Context, update models.LiveUpdate) error {
	return m.Called(ctx, update).Error(0)
}

func (m *MockLiveRepository) PublishBatch(ctx context.Context, updates []models.LiveUpdate) error {
	return m.Called(ctx, updates).Error(0)
}

func (m *MockLiveRepository) Current(ctx context.Context, sessionID string) (*models.LiveUpdate, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LiveUpdate), args.Error(1)
}

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Address:        ":0",
			Port:           "0",
			AllowedOrigins: []string{"*"},
		},
		Auth: config.AuthConfig{Token: testToken},
		Performance: config.PerformanceConfig{
			RateLimitRPS:   1000,
			RateLimitBurst: 1000,
		},
		Monitoring: config.MonitoringConfig{MetricsEnabled: true},
	}
}

type testEnv struct {
	server   *Server
	recorder *service.Recorder
}

func newTestEnv(t *testing.T, live *MockLiveRepository) *testEnv {
	t.Helper()
	logger := utils.NewLogger("error", "text")

	recorder, err := service.NewRecorder(tracker.DefaultConfig(), logger)
	require.NoError(t, err)
	recorder.SetClock(func() time.Time { return time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC) })

	var server *Server
	if live != nil {
		server = NewServer(testConfig(), recorder, live, nil, logger)
	} else {
		server = NewServer(testConfig(), recorder, nil, nil, logger)
	}
	return &testEnv{server: server, recorder: recorder}
}

func (e *testEnv) do(method, path, body string, auth bool) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if auth {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	w := httptest.NewRecorder()
	e.server.Router().ServeHTTP(w, req)
	return w
}

func decodeCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	code, _ := body["code"].(string)
	return code
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"idle"`)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestHealth_RedisDown(t *testing.T) {
	live := &MockLiveRepository{}
	live.On("Ping", mock.Anything).Return(errors.New("connection refused"))
	env := newTestEnv(t, live)

	w := env.do(http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")
	live.AssertExpectations(t)
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name   string
		header string
		want   int
		code   string
	}{
		{"missing header", "", http.StatusUnauthorized, "missing_authorization"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "invalid_token_format"},
		{"wrong token", "Bearer nope", http.StatusUnauthorized, "invalid_token"},
		{"valid token", "Bearer " + testToken, http.StatusCreated, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/track/start", strings.NewReader(`{"name":"walk"}`))
			req.Header.Set("Content-Type", "application/json")
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			env.server.Router().ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			if tt.code != "" {
				assert.Equal(t, tt.code, decodeCode(t, w))
			}
		})
	}
}

func TestAuthDisabledWithoutToken(t *testing.T) {
	logger := utils.NewLogger("error", "text")
	recorder, err := service.NewRecorder(tracker.DefaultConfig(), logger)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Auth.Token = ""
	server := NewServer(cfg, recorder, nil, nil, logger)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/track/start", strings.NewReader(`{"name":"walk"}`))
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestLifecycleStatusCodes(t *testing.T) {
	env := newTestEnv(t, nil)

	steps := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{"pause while idle", "/api/v1/track/pause", "", http.StatusConflict, "invalid_transition"},
		{"start with empty name", "/api/v1/track/start", `{"name":"   "}`, http.StatusBadRequest, "empty_name"},
		{"start with broken body", "/api/v1/track/start", `{"name":`, http.StatusBadRequest, "invalid_request"},
		{"start", "/api/v1/track/start", `{"name":"Morning Walk","poi_only":false}`, http.StatusCreated, ""},
		{"start twice", "/api/v1/track/start", `{"name":"again"}`, http.StatusConflict, "invalid_transition"},
		{"pause", "/api/v1/track/pause", "", http.StatusOK, ""},
		{"resume", "/api/v1/track/resume", "", http.StatusOK, ""},
		{"stop", "/api/v1/track/stop", "", http.StatusOK, ""},
		{"resume after stop", "/api/v1/track/resume", "", http.StatusConflict, "invalid_transition"},
	}

	for _, step := range steps {
		w := env.do(http.MethodPost, step.path, step.body, true)
		assert.Equal(t, step.status, w.Code, step.name)
		if step.code != "" {
			assert.Equal(t, step.code, decodeCode(t, w), step.name)
		}
	}

	assert.Equal(t, tracker.StateStopped, env.recorder.Snapshot().State)
}

func TestPostFix(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodPost, "/api/v1/track/fix", `{"lon":7,"lat":46,"accuracy":5,"timestamp":1700000000000}`, true)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "not_recording", decodeCode(t, w))

	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/v1/track/start", `{"name":"walk"}`, true).Code)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"admitted", `{"lon":7,"lat":46,"alt":500,"accuracy":5,"timestamp":1700000000000}`, http.StatusOK, ""},
		{"poor accuracy", `{"lon":7,"lat":46,"accuracy":80,"timestamp":1700000001000}`, http.StatusUnprocessableEntity, "poor_accuracy"},
		{"out of range", `{"lon":7,"lat":95,"accuracy":5,"timestamp":1700000001000}`, http.StatusUnprocessableEntity, "invalid_fix"},
		{"not json", `lat=46`, http.StatusBadRequest, "invalid_request"},
		{"missing coordinates", `{"accuracy":5,"timestamp":1700000001000}`, http.StatusBadRequest, "invalid_request"},
		{"missing longitude", `{"lat":46,"accuracy":5,"timestamp":1700000001000}`, http.StatusBadRequest, "invalid_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/api/v1/track/fix", tt.body, true)
			assert.Equal(t, tt.status, w.Code)
			if tt.code != "" {
				assert.Equal(t, tt.code, decodeCode(t, w))
			}
		})
	}

	var result tracker.FixResult
	w = env.do(http.MethodPost, "/api/v1/track/fix", `{"lon":7,"lat":46.00001,"accuracy":5,"timestamp":1700000001000}`, true)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.False(t, result.Admitted)
	assert.Equal(t, 1, result.PathLength)
}

func TestPostPOI(t *testing.T) {
	env := newTestEnv(t, nil)
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/v1/track/start", `{"name":"walk","poi_only":true}`, true).Code)

	w := env.do(http.MethodPost, "/api/v1/track/poi", `{"lon":7.1,"lat":46.1,"name":" Summit ","comment":"cairn"}`, true)
	require.Equal(t, http.StatusCreated, w.Code)

	var poi models.POI
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &poi))
	assert.Equal(t, "Summit", poi.Name)

	w = env.do(http.MethodPost, "/api/v1/track/poi", `{"lon":7.1,"lat":46.1,"name":""}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "empty_name", decodeCode(t, w))

	w = env.do(http.MethodPost, "/api/v1/track/poi", `{"name":"nowhere"}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/v1/track/poi", `{"lon":300,"lat":46.1,"name":"bad"}`, true)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGetTrackAndMetrics(t *testing.T) {
	env := newTestEnv(t, nil)
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/v1/track/start", `{"name":"walk"}`, true).Code)
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/v1/track/fix", `{"lon":7,"lat":46,"alt":500,"accuracy":5,"timestamp":1700000000000}`, true).Code)
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/v1/track/fix", `{"lon":7,"lat":46.001,"alt":510,"accuracy":5,"timestamp":1700000010000}`, true).Code)

	w := env.do(http.MethodGet, "/api/v1/track", "", false)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Track struct {
			State string        `json:"state"`
			Path  []interface{} `json:"path"`
		} `json:"track"`
		Metrics models.TrackSummary `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "tracking", resp.Track.State)
	assert.Len(t, resp.Track.Path, 2)
	assert.Equal(t, 2, resp.Metrics.Points)
	assert.Greater(t, resp.Metrics.DistanceKm, 0.0)

	w = env.do(http.MethodGet, "/api/v1/track/metrics", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	var summary models.TrackSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, resp.Metrics.DistanceKm, summary.DistanceKm)

	w = env.do(http.MethodGet, "/api/v1/track/geojson", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/geo+json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "LineString")
}

func TestExport(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodGet, "/api/v1/track/export", "", false)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "no_session", decodeCode(t, w))

	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/v1/track/start", `{"name":"Café Run #1"}`, true).Code)
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/v1/track/fix", `{"lon":7,"lat":46,"accuracy":5,"timestamp":1700000000000}`, true).Code)

	w = env.do(http.MethodGet, "/api/v1/track/export?format=gpx", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="caf__run__1_2024-05-17.gpx"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "application/gpx+xml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), `<trkpt lat="46.000000" lon="7.000000">`)

	w = env.do(http.MethodGet, "/api/v1/track/export?format=KML", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".kml")

	w = env.do(http.MethodGet, "/api/v1/track/export?format=shp", "", false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "unknown_format", decodeCode(t, w))
}

func TestGetLive(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(http.MethodGet, "/api/v1/live/s-1", "", false)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "live_disabled", decodeCode(t, w))

	live := &MockLiveRepository{}
	live.On("Current", mock.Anything, "s-1").Return(&models.LiveUpdate{Kind: models.LiveFix, SessionID: "s-1"}, nil)
	live.On("Current", mock.Anything, "s-2").Return(nil, nil)
	live.On("Current", mock.Anything, "s-3").Return(nil, errors.New("boom"))
	env = newTestEnv(t, live)

	w = env.do(http.MethodGet, "/api/v1/live/s-1", "", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"session_id":"s-1"`)

	w = env.do(http.MethodGet, "/api/v1/live/s-2", "", false)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/api/v1/live/s-3", "", false)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	live.AssertExpectations(t)
}

func TestRateLimit(t *testing.T) {
	handler := RateLimitMiddleware(1, 2)
	router := gin.New()
	router.Use(handler)
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(http.MethodGet, "/health", "", false)
	env.do(http.MethodGet, "/api/v1/track", "", false)

	w := env.do(http.MethodGet, "/metrics", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `track_http_requests_total{endpoint="/api/v1/track",method="GET",status="200"}`)
	assert.NotContains(t, w.Body.String(), `endpoint="/health"`)
}
