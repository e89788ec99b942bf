package store

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/marcuspuchalla/co2-monitor/internal/model"
)

// Insert appends one raw measurement and returns its surrogate key.
func (s *Store) Insert(ts int64, co2PPM int, temperature *float64) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO measurements (timestamp, co2_ppm, temperature_celsius) VALUES (?, ?, ?)`,
		ts, co2PPM, temperature,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting measurement: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading measurement id: %w", err)
	}
	return id, nil
}

// Latest returns the most recent measurement, or nil when the table is empty.
func (s *Store) Latest() (*model.Measurement, error) {
	var m model.Measurement
	err := s.db.QueryRow(
		`SELECT id, timestamp, co2_ppm, temperature_celsius
		 FROM measurements ORDER BY timestamp DESC, id DESC LIMIT 1`,
	).Scan(&m.ID, &m.Timestamp, &m.CO2PPM, &m.Temperature)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest measurement: %w", err)
	}
	return &m, nil
}

// Range returns measurements with start <= timestamp <= end in ascending
// timestamp order.
func (s *Store) Range(start, end int64) ([]model.Measurement, error) {
	rows, err := s.db.Query(
		`SELECT id, timestamp, co2_ppm, temperature_celsius
		 FROM measurements
		 WHERE timestamp BETWEEN ? AND ?
		 ORDER BY timestamp ASC, id ASC`,
		start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("querying measurement range: %w", err)
	}
	defer rows.Close()

	var out []model.Measurement
	for rows.Next() {
		var m model.Measurement
		if err := rows.Scan(&m.ID, &m.Timestamp, &m.CO2PPM, &m.Temperature); err != nil {
			return nil, fmt.Errorf("scanning measurement: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Statistics summarizes the trailing window of the given number of hours.
func (s *Store) Statistics(windowHours int) (model.Statistics, error) {
	since := time.Now().Add(-time.Duration(windowHours) * time.Hour).Unix()
	return s.statisticsSince(since, math.MaxInt64)
}

// RangeStatistics summarizes measurements with start <= timestamp <= end.
func (s *Store) RangeStatistics(start, end int64) (model.Statistics, error) {
	return s.statisticsSince(start, end)
}

func (s *Store) statisticsSince(start, end int64) (model.Statistics, error) {
	var (
		stats   model.Statistics
		co2Min  sql.NullInt64
		co2Max  sql.NullInt64
		co2Avg  sql.NullFloat64
		tempMin sql.NullFloat64
		tempMax sql.NullFloat64
		tempAvg sql.NullFloat64
	)
	err := s.db.QueryRow(
		`SELECT COUNT(*),
		        MIN(co2_ppm), MAX(co2_ppm), AVG(co2_ppm),
		        MIN(temperature_celsius), MAX(temperature_celsius), AVG(temperature_celsius)
		 FROM measurements
		 WHERE timestamp BETWEEN ? AND ?`,
		start, end,
	).Scan(&stats.Count, &co2Min, &co2Max, &co2Avg, &tempMin, &tempMax, &tempAvg)
	if err != nil {
		return model.Statistics{}, fmt.Errorf("querying statistics: %w", err)
	}

	if co2Min.Valid {
		v := int(co2Min.Int64)
		stats.CO2.Min = &v
	}
	if co2Max.Valid {
		v := int(co2Max.Int64)
		stats.CO2.Max = &v
	}
	if co2Avg.Valid {
		v := round1(co2Avg.Float64)
		stats.CO2.Avg = &v
	}
	if tempMin.Valid {
		stats.Temperature.Min = &tempMin.Float64
	}
	if tempMax.Valid {
		stats.Temperature.Max = &tempMax.Float64
	}
	if tempAvg.Valid {
		v := round1(tempAvg.Float64)
		stats.Temperature.Avg = &v
	}
	return stats, nil
}

// MeasurementBounds returns the oldest and newest measurement timestamps.
// ok is false when the table is empty.
func (s *Store) MeasurementBounds() (minTS, maxTS int64, ok bool, err error) {
	var lo, hi sql.NullInt64
	err = s.db.QueryRow(`SELECT MIN(timestamp), MAX(timestamp) FROM measurements`).Scan(&lo, &hi)
	if err != nil {
		return 0, 0, false, fmt.Errorf("querying measurement bounds: %w", err)
	}
	if !lo.Valid {
		return 0, 0, false, nil
	}
	return lo.Int64, hi.Int64, true, nil
}

// Count returns the total number of stored measurements.
func (s *Store) Count() (int64, error) {
	var n int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM measurements`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting measurements: %w", err)
	}
	return n, nil
}

// DeleteOlderThan removes raw measurements older than the given number of
// days and returns how many were deleted. Rollup tables are never touched.
func (s *Store) DeleteOlderThan(days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days).Unix()
	res, err := s.db.Exec(`DELETE FROM measurements WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting measurements older than %d days: %w", days, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading deleted row count: %w", err)
	}
	return n, nil
}

// round1 rounds to one decimal place, half away from zero.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
