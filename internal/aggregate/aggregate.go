// Package aggregate rolls raw measurements into minute, hourly, and daily
// statistics and enforces raw-data retention.
package aggregate

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/marcuspuchalla/co2-monitor/internal/model"
	"github.com/marcuspuchalla/co2-monitor/internal/store"
)

// Config tunes the aggregation loop. Zero values take the defaults below.
type Config struct {
	// Interval between aggregation cycles.
	Interval time.Duration
	// MinuteLookback is how far one cycle re-scans raw data for the minute
	// tiers. It is a safety margin against ingestion delay, not a
	// correctness bound; re-scanning an already rolled-up bucket just
	// replaces it with the same row.
	MinuteLookback time.Duration
	// HourlyLookback is the equivalent margin for the hourly tier.
	HourlyLookback time.Duration
	// RetentionDays and MaxSizeGB bound raw-measurement storage.
	RetentionDays int
	MaxSizeGB     float64
	// Location fixes the calendar used for hour and day bucket boundaries.
	Location *time.Location
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}
	if c.MinuteLookback <= 0 {
		c.MinuteLookback = 2 * time.Hour
	}
	if c.HourlyLookback <= 0 {
		c.HourlyLookback = 3 * time.Hour
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = store.DefaultRetentionDays
	}
	if c.MaxSizeGB <= 0 {
		c.MaxSizeGB = store.DefaultMaxSizeGB
	}
	if c.Location == nil {
		c.Location = time.Local
	}
}

// Aggregator periodically computes rollups at five resolutions and runs
// retention at the end of each cycle.
type Aggregator struct {
	store *store.Store
	cfg   Config
	now   func() time.Time
}

// New creates an aggregator over the given store.
func New(st *store.Store, cfg Config) *Aggregator {
	cfg.applyDefaults()
	return &Aggregator{store: st, cfg: cfg, now: time.Now}
}

// Run starts the aggregation loop. One cycle runs immediately, then one per
// interval. It blocks until the context is cancelled. Cycle failures are
// logged and the next cycle is attempted normally.
func (a *Aggregator) Run(ctx context.Context) error {
	slog.Info("aggregator started",
		"interval", a.cfg.Interval,
		"minute_lookback", a.cfg.MinuteLookback,
		"hourly_lookback", a.cfg.HourlyLookback,
	)

	if err := a.Cycle(); err != nil {
		slog.Error("aggregation cycle failed", "error", err)
	}

	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("aggregator stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := a.Cycle(); err != nil {
				slog.Error("aggregation cycle failed", "error", err)
			}
		}
	}
}

// Cycle performs one aggregation pass: minute tiers, hourly, the most
// recently completed day, then retention. A store failure skips the rest of
// the cycle; the caller retries on the next tick.
func (a *Aggregator) Cycle() error {
	now := a.now()

	for _, width := range model.MinuteWidths {
		if err := a.rollupMinutes(now.Add(-a.cfg.MinuteLookback).Unix(), now.Unix(), width); err != nil {
			return err
		}
	}

	if err := a.rollupHours(now.Add(-a.cfg.HourlyLookback).Unix(), now.Unix()); err != nil {
		return err
	}

	if err := a.rollupDay(a.startOfDay(now).AddDate(0, 0, -1)); err != nil {
		return err
	}

	deleted, err := a.store.EnforceRetention(a.cfg.MaxSizeGB, a.cfg.RetentionDays)
	if err != nil {
		return err
	}
	if deleted > 0 {
		slog.Info("retention enforced", "deleted", deleted, "kept_days", a.cfg.RetentionDays)
	}
	return nil
}

// rollupMinutes buckets raw samples in [start, end] by epoch-aligned
// width-minute intervals and upserts one rollup per non-empty bucket.
func (a *Aggregator) rollupMinutes(start, end int64, widthMinutes int) error {
	ms, err := a.store.Range(start, end)
	if err != nil {
		return err
	}
	if len(ms) == 0 {
		return nil
	}

	step := int64(widthMinutes) * 60
	buckets := make(map[int64][]model.Measurement)
	for _, m := range ms {
		b := m.Timestamp - m.Timestamp%step
		buckets[b] = append(buckets[b], m)
	}

	for _, bucketStart := range sortedKeys(buckets) {
		r := summarize(buckets[bucketStart])
		r.Resolution = resolutionForWidth(widthMinutes)
		r.BucketStart = bucketStart
		r.WidthMinutes = widthMinutes
		if err := a.store.UpsertMinuteStats(r); err != nil {
			return err
		}
	}
	return nil
}

// rollupHours buckets raw samples in [start, end] by calendar hour and
// upserts hourly rollups with their derived flags.
func (a *Aggregator) rollupHours(start, end int64) error {
	ms, err := a.store.Range(start, end)
	if err != nil {
		return err
	}
	if len(ms) == 0 {
		return nil
	}

	buckets := make(map[int64][]model.Measurement)
	for _, m := range ms {
		b := a.startOfHour(time.Unix(m.Timestamp, 0)).Unix()
		buckets[b] = append(buckets[b], m)
	}

	for _, bucketStart := range sortedKeys(buckets) {
		hourStart := time.Unix(bucketStart, 0).In(a.cfg.Location)
		r := summarize(buckets[bucketStart])
		r.Resolution = model.ResolutionHourly
		r.BucketStart = bucketStart
		r.HourOfDay = hourStart.Hour()
		r.DayOfWeek = model.DayOfWeek(hourStart)
		r.IsDaytime = model.IsDaytimeHour(r.HourOfDay)
		r.IsWorkday = model.IsWorkdayHour(r.DayOfWeek, r.HourOfDay)
		if err := a.store.UpsertHourlyStats(r); err != nil {
			return err
		}
	}
	return nil
}

// rollupDay aggregates one full calendar day starting at dayStart, including
// the day/night sub-averages. A day without samples is a no-op.
func (a *Aggregator) rollupDay(dayStart time.Time) error {
	dayEnd := dayStart.AddDate(0, 0, 1)
	ms, err := a.store.Range(dayStart.Unix(), dayEnd.Unix()-1)
	if err != nil {
		return err
	}
	if len(ms) == 0 {
		return nil
	}

	r := summarize(ms)
	r.Resolution = model.ResolutionDaily
	r.BucketStart = dayStart.Unix()
	r.IsWeekend = model.DayOfWeek(dayStart) >= 5

	var daySum, nightSum float64
	var dayN, nightN int
	for _, m := range ms {
		hour := time.Unix(m.Timestamp, 0).In(a.cfg.Location).Hour()
		if model.IsDaytimeHour(hour) {
			daySum += float64(m.CO2PPM)
			dayN++
		} else {
			nightSum += float64(m.CO2PPM)
			nightN++
		}
	}
	if dayN > 0 {
		v := round1(daySum / float64(dayN))
		r.CO2DayAvg = &v
	}
	if nightN > 0 {
		v := round1(nightSum / float64(nightN))
		r.CO2NightAvg = &v
	}

	return a.store.UpsertDailyStats(r)
}

// summarize computes min/max/avg/count over a non-empty bucket.
func summarize(ms []model.Measurement) model.Rollup {
	r := model.Rollup{
		CO2Min:   ms[0].CO2PPM,
		CO2Max:   ms[0].CO2PPM,
		CO2Count: len(ms),
	}

	var co2Sum float64
	var tempSum float64
	var tempN int
	for _, m := range ms {
		co2Sum += float64(m.CO2PPM)
		if m.CO2PPM < r.CO2Min {
			r.CO2Min = m.CO2PPM
		}
		if m.CO2PPM > r.CO2Max {
			r.CO2Max = m.CO2PPM
		}
		if m.Temperature == nil {
			continue
		}
		t := *m.Temperature
		tempSum += t
		tempN++
		if r.TempMin == nil || t < *r.TempMin {
			r.TempMin = ptr(t)
		}
		if r.TempMax == nil || t > *r.TempMax {
			r.TempMax = ptr(t)
		}
	}

	r.CO2Avg = round1(co2Sum / float64(len(ms)))
	if tempN > 0 {
		r.TempAvg = ptr(round1(tempSum / float64(tempN)))
	}
	return r
}

func (a *Aggregator) startOfHour(t time.Time) time.Time {
	t = t.In(a.cfg.Location)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, a.cfg.Location)
}

func (a *Aggregator) startOfDay(t time.Time) time.Time {
	t = t.In(a.cfg.Location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, a.cfg.Location)
}

func resolutionForWidth(widthMinutes int) model.Resolution {
	switch widthMinutes {
	case 5:
		return model.Resolution5Min
	case 10:
		return model.Resolution10Min
	default:
		return model.Resolution15Min
	}
}

func sortedKeys(m map[int64][]model.Measurement) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func ptr[T any](v T) *T {
	return &v
}
