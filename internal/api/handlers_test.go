package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/marcuspuchalla/co2-monitor/internal/model"
	"github.com/marcuspuchalla/co2-monitor/internal/store"
	"github.com/marcuspuchalla/co2-monitor/internal/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *tracker.Latest, *store.Store) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	latest := tracker.NewLatest()
	srv := NewServer(":0", "test", s, latest, NewHub())
	return srv, latest, s
}

func doRequest(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func fptr(v float64) *float64 { return &v }

func seedMeasurements(t *testing.T, s *store.Store, base int64, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		_, err := s.Insert(base+int64(i*60), 500+i*10, fptr(21.5))
		require.NoError(t, err)
	}
}

func TestHandleCurrent_FromTracker(t *testing.T) {
	srv, latest, _ := newTestServer(t)

	co2 := 842
	temp := 22.4
	latest.Set(model.Reading{CO2PPM: &co2, Temperature: &temp, Timestamp: time.Now()})

	w := doRequest(t, srv, "/api/current")
	require.Equal(t, http.StatusOK, w.Code)

	var resp currentResponse
	decodeBody(t, w, &resp)
	require.NotNil(t, resp.CO2PPM)
	assert.Equal(t, 842, *resp.CO2PPM)
	require.NotNil(t, resp.Temperature)
	assert.InDelta(t, 22.4, *resp.Temperature, 0.001)
}

func TestHandleCurrent_FallsBackToStore(t *testing.T) {
	srv, _, s := newTestServer(t)

	ts := time.Now().Add(-time.Hour).Unix()
	_, err := s.Insert(ts, 615, nil)
	require.NoError(t, err)

	w := doRequest(t, srv, "/api/current")
	require.Equal(t, http.StatusOK, w.Code)

	var resp currentResponse
	decodeBody(t, w, &resp)
	require.NotNil(t, resp.CO2PPM)
	assert.Equal(t, 615, *resp.CO2PPM)
	assert.Equal(t, ts, resp.Timestamp)
	assert.Nil(t, resp.Temperature)
}

func TestHandleCurrent_NoData(t *testing.T) {
	srv, _, _ := newTestServer(t)
	w := doRequest(t, srv, "/api/current")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleStatistics(t *testing.T) {
	srv, _, s := newTestServer(t)
	seedMeasurements(t, s, time.Now().Add(-time.Hour).Unix(), 3)

	w := doRequest(t, srv, "/api/statistics?hours=24")
	require.Equal(t, http.StatusOK, w.Code)

	var stats model.Statistics
	decodeBody(t, w, &stats)
	assert.Equal(t, 3, stats.Count)
	require.NotNil(t, stats.CO2.Min)
	assert.Equal(t, 500, *stats.CO2.Min)
	require.NotNil(t, stats.CO2.Max)
	assert.Equal(t, 520, *stats.CO2.Max)
}

func TestHandleStatistics_BadHours(t *testing.T) {
	srv, _, _ := newTestServer(t)
	assert.Equal(t, http.StatusBadRequest, doRequest(t, srv, "/api/statistics?hours=abc").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(t, srv, "/api/statistics?hours=-1").Code)
}

func TestHandleHistory_RawWindow(t *testing.T) {
	srv, _, s := newTestServer(t)
	seedMeasurements(t, s, time.Now().Add(-30*time.Minute).Unix(), 5)

	w := doRequest(t, srv, "/api/history?hours=1")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Resolution string              `json:"resolution"`
		Points     []model.Measurement `json:"points"`
	}
	decodeBody(t, w, &resp)
	assert.Equal(t, "raw", resp.Resolution)
	assert.Len(t, resp.Points, 5)
}

func TestHandleHistory_ExplicitResolution(t *testing.T) {
	srv, _, s := newTestServer(t)

	now := time.Now().Truncate(time.Hour)
	require.NoError(t, s.UpsertHourlyStats(model.Rollup{
		Resolution:  model.ResolutionHourly,
		BucketStart: now.Unix(),
		CO2Min:      400, CO2Max: 600, CO2Avg: 500, CO2Count: 10,
		HourOfDay: now.Hour(),
	}))

	w := doRequest(t, srv, "/api/history?hours=2&resolution=hourly")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Resolution string         `json:"resolution"`
		Points     []model.Rollup `json:"points"`
	}
	decodeBody(t, w, &resp)
	assert.Equal(t, "hourly", resp.Resolution)
	require.Len(t, resp.Points, 1)
	assert.Equal(t, 500.0, resp.Points[0].CO2Avg)
}

func TestHandleHistory_StartEndWindow(t *testing.T) {
	srv, _, s := newTestServer(t)
	seedMeasurements(t, s, 1000, 10)

	w := doRequest(t, srv, "/api/history?start=1000&end=1240&resolution=raw")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Points []model.Measurement `json:"points"`
	}
	decodeBody(t, w, &resp)
	assert.Len(t, resp.Points, 5)
}

func TestHandleHistory_BadParams(t *testing.T) {
	srv, _, _ := newTestServer(t)
	assert.Equal(t, http.StatusBadRequest, doRequest(t, srv, "/api/history?start=abc&end=10").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(t, srv, "/api/history?start=100&end=10").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(t, srv, "/api/history?resolution=weekly").Code)
}

func TestAutoResolution(t *testing.T) {
	tests := []struct {
		span time.Duration
		want model.Resolution
	}{
		{time.Hour, model.ResolutionRaw},
		{6 * time.Hour, model.ResolutionRaw},
		{12 * time.Hour, model.Resolution5Min},
		{36 * time.Hour, model.Resolution15Min},
		{5 * 24 * time.Hour, model.ResolutionHourly},
		{30 * 24 * time.Hour, model.ResolutionDaily},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, autoResolution(int64(tt.span.Seconds())), "span %s", tt.span)
	}
}

func TestHandlePatterns_Empty(t *testing.T) {
	srv, _, _ := newTestServer(t)

	for _, path := range []string{
		"/api/patterns/hourly",
		"/api/patterns/weekly",
		"/api/patterns/day-night",
		"/api/patterns/work-weekend",
	} {
		w := doRequest(t, srv, path)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestHandleHourlyPattern(t *testing.T) {
	srv, _, s := newTestServer(t)

	require.NoError(t, s.UpsertHourlyStats(model.Rollup{
		Resolution:  model.ResolutionHourly,
		BucketStart: 1_700_000_000,
		CO2Min:      400, CO2Max: 800, CO2Avg: 600, CO2Count: 60,
		HourOfDay: 9, IsDaytime: true, IsWorkday: true,
	}))

	w := doRequest(t, srv, "/api/patterns/hourly")
	require.Equal(t, http.StatusOK, w.Code)

	var points []model.HourlyPatternPoint
	decodeBody(t, w, &points)
	require.Len(t, points, 1)
	assert.Equal(t, 9, points[0].Hour)
	require.NotNil(t, points[0].CO2Avg)
	assert.Equal(t, 600.0, *points[0].CO2Avg)
}

func TestHandleRangeStats(t *testing.T) {
	srv, _, s := newTestServer(t)
	seedMeasurements(t, s, 1000, 3)

	w := doRequest(t, srv, "/api/stats/range?start=1000&end=1120")
	require.Equal(t, http.StatusOK, w.Code)

	var stats model.Statistics
	decodeBody(t, w, &stats)
	assert.Equal(t, 3, stats.Count)
}

func TestHandleRangeStats_BadParams(t *testing.T) {
	srv, _, _ := newTestServer(t)
	assert.Equal(t, http.StatusBadRequest, doRequest(t, srv, "/api/stats/range").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(t, srv, "/api/stats/range?start=10&end=5").Code)
}

func TestHandleSummary(t *testing.T) {
	srv, _, s := newTestServer(t)
	seedMeasurements(t, s, time.Now().Add(-time.Hour).Unix(), 4)

	w := doRequest(t, srv, "/api/stats/summary")
	require.Equal(t, http.StatusOK, w.Code)

	var resp summaryResponse
	decodeBody(t, w, &resp)
	assert.Equal(t, int64(4), resp.TotalMeasurements)
	require.NotNil(t, resp.OldestTimestamp)
	require.NotNil(t, resp.NewestTimestamp)
	assert.Greater(t, resp.DatabaseSizeMB, 0.0)
	require.NotNil(t, resp.CO2.Avg)
}

func TestHandleHealth(t *testing.T) {
	srv, latest, _ := newTestServer(t)

	w := doRequest(t, srv, "/api/health")
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	decodeBody(t, w, &resp)
	assert.Equal(t, "no_data", resp["status"])

	co2 := 700
	latest.Set(model.Reading{CO2PPM: &co2, Timestamp: time.Now()})
	w = doRequest(t, srv, "/api/health")
	decodeBody(t, w, &resp)
	assert.Equal(t, "ok", resp["status"])

	latest.Set(model.Reading{CO2PPM: &co2, Timestamp: time.Now().Add(-time.Hour)})
	w = doRequest(t, srv, "/api/health")
	decodeBody(t, w, &resp)
	assert.Equal(t, "stale", resp["status"])
}

func TestHandleHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t)
	w := doRequest(t, srv, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	srv, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	// Use the full handler stack (includes SecurityHeadersMiddleware).
	srv.server.Handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}
