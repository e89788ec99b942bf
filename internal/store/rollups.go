package store

import (
	"fmt"

	"github.com/marcuspuchalla/co2-monitor/internal/model"
)

// UpsertMinuteStats replaces the rollup row keyed by (interval_start,
// interval_minutes). Re-running aggregation over an overlapping window is
// therefore idempotent.
func (s *Store) UpsertMinuteStats(r model.Rollup) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO minute_stats
		(interval_start, interval_minutes, co2_min, co2_max, co2_avg, co2_count,
		 temp_min, temp_max, temp_avg)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.BucketStart, r.WidthMinutes, r.CO2Min, r.CO2Max, r.CO2Avg, r.CO2Count,
		r.TempMin, r.TempMax, r.TempAvg,
	)
	if err != nil {
		return fmt.Errorf("upserting %d-minute stats at %d: %w", r.WidthMinutes, r.BucketStart, err)
	}
	return nil
}

// UpsertHourlyStats replaces the rollup row keyed by hour_start.
func (s *Store) UpsertHourlyStats(r model.Rollup) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO hourly_stats
		(hour_start, co2_min, co2_max, co2_avg, co2_count,
		 temp_min, temp_max, temp_avg, is_workday, is_daytime, hour_of_day, day_of_week)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.BucketStart, r.CO2Min, r.CO2Max, r.CO2Avg, r.CO2Count,
		r.TempMin, r.TempMax, r.TempAvg,
		boolToInt(r.IsWorkday), boolToInt(r.IsDaytime), r.HourOfDay, r.DayOfWeek,
	)
	if err != nil {
		return fmt.Errorf("upserting hourly stats at %d: %w", r.BucketStart, err)
	}
	return nil
}

// UpsertDailyStats replaces the rollup row keyed by date.
func (s *Store) UpsertDailyStats(r model.Rollup) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO daily_stats
		(date, co2_min, co2_max, co2_avg, co2_day_avg, co2_night_avg,
		 temp_min, temp_max, temp_avg, measurement_count, is_weekend)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.BucketStart, r.CO2Min, r.CO2Max, r.CO2Avg, r.CO2DayAvg, r.CO2NightAvg,
		r.TempMin, r.TempMax, r.TempAvg, r.CO2Count, boolToInt(r.IsWeekend),
	)
	if err != nil {
		return fmt.Errorf("upserting daily stats at %d: %w", r.BucketStart, err)
	}
	return nil
}

// MinuteStats returns minute rollups of the given width with start <=
// interval_start <= end, ascending.
func (s *Store) MinuteStats(start, end int64, widthMinutes int) ([]model.Rollup, error) {
	rows, err := s.db.Query(`
		SELECT id, interval_start, interval_minutes, co2_min, co2_max, co2_avg, co2_count,
		       temp_min, temp_max, temp_avg
		FROM minute_stats
		WHERE interval_start BETWEEN ? AND ? AND interval_minutes = ?
		ORDER BY interval_start ASC`,
		start, end, widthMinutes,
	)
	if err != nil {
		return nil, fmt.Errorf("querying minute stats: %w", err)
	}
	defer rows.Close()

	var out []model.Rollup
	for rows.Next() {
		r := model.Rollup{}
		if err := rows.Scan(&r.ID, &r.BucketStart, &r.WidthMinutes,
			&r.CO2Min, &r.CO2Max, &r.CO2Avg, &r.CO2Count,
			&r.TempMin, &r.TempMax, &r.TempAvg); err != nil {
			return nil, fmt.Errorf("scanning minute stats: %w", err)
		}
		switch r.WidthMinutes {
		case 5:
			r.Resolution = model.Resolution5Min
		case 10:
			r.Resolution = model.Resolution10Min
		case 15:
			r.Resolution = model.Resolution15Min
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// HourlyStats returns hourly rollups with start <= hour_start <= end,
// ascending.
func (s *Store) HourlyStats(start, end int64) ([]model.Rollup, error) {
	rows, err := s.db.Query(`
		SELECT id, hour_start, co2_min, co2_max, co2_avg, co2_count,
		       temp_min, temp_max, temp_avg, is_workday, is_daytime, hour_of_day, day_of_week
		FROM hourly_stats
		WHERE hour_start BETWEEN ? AND ?
		ORDER BY hour_start ASC`,
		start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("querying hourly stats: %w", err)
	}
	defer rows.Close()

	var out []model.Rollup
	for rows.Next() {
		r := model.Rollup{Resolution: model.ResolutionHourly}
		var workday, daytime int
		if err := rows.Scan(&r.ID, &r.BucketStart,
			&r.CO2Min, &r.CO2Max, &r.CO2Avg, &r.CO2Count,
			&r.TempMin, &r.TempMax, &r.TempAvg,
			&workday, &daytime, &r.HourOfDay, &r.DayOfWeek); err != nil {
			return nil, fmt.Errorf("scanning hourly stats: %w", err)
		}
		r.IsWorkday = workday != 0
		r.IsDaytime = daytime != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// DailyStats returns daily rollups with start <= date <= end, ascending.
func (s *Store) DailyStats(start, end int64) ([]model.Rollup, error) {
	rows, err := s.db.Query(`
		SELECT id, date, co2_min, co2_max, co2_avg, co2_day_avg, co2_night_avg,
		       temp_min, temp_max, temp_avg, measurement_count, is_weekend
		FROM daily_stats
		WHERE date BETWEEN ? AND ?
		ORDER BY date ASC`,
		start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("querying daily stats: %w", err)
	}
	defer rows.Close()

	var out []model.Rollup
	for rows.Next() {
		r := model.Rollup{Resolution: model.ResolutionDaily}
		var weekend int
		if err := rows.Scan(&r.ID, &r.BucketStart,
			&r.CO2Min, &r.CO2Max, &r.CO2Avg, &r.CO2DayAvg, &r.CO2NightAvg,
			&r.TempMin, &r.TempMax, &r.TempAvg, &r.CO2Count, &weekend); err != nil {
			return nil, fmt.Errorf("scanning daily stats: %w", err)
		}
		r.IsWeekend = weekend != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
