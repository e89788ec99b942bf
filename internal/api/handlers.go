package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/marcuspuchalla/co2-monitor/internal/model"
)

// writeJSON marshals v to JSON into a buffer first, then writes it to the
// response. This ensures marshalling errors can be returned as a proper 500.
func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("encoding JSON response", "path", r.URL.Path, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(data); err != nil {
		slog.Debug("writing JSON response", "path", r.URL.Path, "error", err)
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	http.Error(w, msg, http.StatusBadRequest)
}

func serverError(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("handler error", "path", r.URL.Path, "error", err)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

// queryInt parses an integer query parameter, falling back to def when absent.
func queryInt(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

type currentResponse struct {
	CO2PPM      *int     `json:"co2_ppm"`
	Temperature *float64 `json:"temperature_celsius"`
	Timestamp   int64    `json:"timestamp"`
	AgeSeconds  int64    `json:"age_seconds"`
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	if reading, ok := s.latest.Get(); ok {
		writeJSON(w, r, currentResponse{
			CO2PPM:      reading.CO2PPM,
			Temperature: reading.Temperature,
			Timestamp:   reading.Timestamp.Unix(),
			AgeSeconds:  int64(time.Since(reading.Timestamp).Seconds()),
		})
		return
	}

	// Nothing observed this run, fall back to the newest stored measurement.
	m, err := s.store.Latest()
	if err != nil {
		serverError(w, r, err)
		return
	}
	if m == nil {
		http.Error(w, "no measurements", http.StatusNotFound)
		return
	}
	co2 := m.CO2PPM
	writeJSON(w, r, currentResponse{
		CO2PPM:      &co2,
		Temperature: m.Temperature,
		Timestamp:   m.Timestamp,
		AgeSeconds:  time.Now().Unix() - m.Timestamp,
	})
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	hours, ok := queryInt(r, "hours", 24)
	if !ok || hours <= 0 {
		badRequest(w, "hours must be a positive integer")
		return
	}
	stats, err := s.store.Statistics(hours)
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, r, stats)
}

type historyResponse struct {
	Resolution model.Resolution `json:"resolution"`
	Start      int64            `json:"start"`
	End        int64            `json:"end"`
	Points     any              `json:"points"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	start, end, ok := historyWindow(r)
	if !ok {
		badRequest(w, "invalid time window")
		return
	}

	resolution := model.Resolution(r.URL.Query().Get("resolution"))
	if resolution == "" {
		resolution = autoResolution(end - start)
	}

	var (
		points any
		err    error
	)
	switch resolution {
	case model.ResolutionRaw:
		points, err = s.store.Range(start, end)
	case model.Resolution5Min, model.Resolution10Min, model.Resolution15Min:
		points, err = s.store.MinuteStats(start, end, resolution.Width())
	case model.ResolutionHourly:
		points, err = s.store.HourlyStats(start, end)
	case model.ResolutionDaily:
		points, err = s.store.DailyStats(start, end)
	default:
		badRequest(w, "unknown resolution")
		return
	}
	if err != nil {
		serverError(w, r, err)
		return
	}

	writeJSON(w, r, historyResponse{
		Resolution: resolution,
		Start:      start,
		End:        end,
		Points:     points,
	})
}

// historyWindow resolves the query window: explicit start/end win, otherwise
// a trailing hours= or days= window ending now (default 24h).
func historyWindow(r *http.Request) (start, end int64, ok bool) {
	q := r.URL.Query()
	if q.Get("start") != "" || q.Get("end") != "" {
		var err error
		start, err = strconv.ParseInt(q.Get("start"), 10, 64)
		if err != nil {
			return 0, 0, false
		}
		end, err = strconv.ParseInt(q.Get("end"), 10, 64)
		if err != nil {
			return 0, 0, false
		}
		return start, end, start <= end
	}

	hours, hok := queryInt(r, "hours", 0)
	days, dok := queryInt(r, "days", 0)
	if !hok || !dok || hours < 0 || days < 0 {
		return 0, 0, false
	}
	span := time.Duration(hours)*time.Hour + time.Duration(days)*24*time.Hour
	if span == 0 {
		span = 24 * time.Hour
	}
	now := time.Now()
	return now.Add(-span).Unix(), now.Unix(), true
}

// autoResolution picks a rollup tier that keeps point counts reasonable for
// the requested span.
func autoResolution(spanSeconds int64) model.Resolution {
	span := time.Duration(spanSeconds) * time.Second
	switch {
	case span <= 6*time.Hour:
		return model.ResolutionRaw
	case span <= 24*time.Hour:
		return model.Resolution5Min
	case span <= 48*time.Hour:
		return model.Resolution15Min
	case span <= 7*24*time.Hour:
		return model.ResolutionHourly
	default:
		return model.ResolutionDaily
	}
}

func (s *Server) handleHourlyPattern(w http.ResponseWriter, r *http.Request) {
	points, err := s.store.HourlyPattern()
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, r, points)
}

func (s *Server) handleWeeklyPattern(w http.ResponseWriter, r *http.Request) {
	points, err := s.store.WeeklyPattern()
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, r, points)
}

func (s *Server) handleDayNight(w http.ResponseWriter, r *http.Request) {
	cmp, err := s.store.DayNightComparison()
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, r, cmp)
}

func (s *Server) handleWorkWeekend(w http.ResponseWriter, r *http.Request) {
	cmp, err := s.store.WorkWeekendComparison()
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, r, cmp)
}

func (s *Server) handleRangeStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := strconv.ParseInt(q.Get("start"), 10, 64)
	if err != nil {
		badRequest(w, "start must be a unix timestamp")
		return
	}
	end, err := strconv.ParseInt(q.Get("end"), 10, 64)
	if err != nil {
		badRequest(w, "end must be a unix timestamp")
		return
	}
	if start > end {
		badRequest(w, "start must be <= end")
		return
	}
	stats, err := s.store.RangeStatistics(start, end)
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, r, stats)
}

type summaryResponse struct {
	TotalMeasurements int64    `json:"total_measurements"`
	OldestTimestamp   *int64   `json:"oldest_timestamp"`
	NewestTimestamp   *int64   `json:"newest_timestamp"`
	DatabaseSizeMB    float64  `json:"database_size_mb"`
	CO2               struct { // trailing 24h
		Min *int     `json:"min"`
		Max *int     `json:"max"`
		Avg *float64 `json:"avg"`
	} `json:"co2_24h"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	var resp summaryResponse

	count, err := s.store.Count()
	if err != nil {
		serverError(w, r, err)
		return
	}
	resp.TotalMeasurements = count

	if minTS, maxTS, ok, err := s.store.MeasurementBounds(); err != nil {
		serverError(w, r, err)
		return
	} else if ok {
		resp.OldestTimestamp = &minTS
		resp.NewestTimestamp = &maxTS
	}

	size, err := s.store.SizeMB()
	if err != nil {
		serverError(w, r, err)
		return
	}
	resp.DatabaseSizeMB = size

	stats, err := s.store.Statistics(24)
	if err != nil {
		serverError(w, r, err)
		return
	}
	resp.CO2.Min = stats.CO2.Min
	resp.CO2.Max = stats.CO2.Max
	resp.CO2.Avg = stats.CO2.Avg

	writeJSON(w, r, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	var lastReading *int64
	if reading, ok := s.latest.Get(); ok {
		ts := reading.Timestamp.Unix()
		lastReading = &ts
		if time.Since(reading.Timestamp) > 5*time.Minute {
			status = "stale"
		}
	} else {
		status = "no_data"
	}

	writeJSON(w, r, map[string]any{
		"status":         status,
		"version":        s.version,
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"last_reading":   lastReading,
		"timestamp":      time.Now().Unix(),
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}
