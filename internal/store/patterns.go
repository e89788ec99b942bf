package store

import (
	"database/sql"
	"fmt"

	"github.com/marcuspuchalla/co2-monitor/internal/model"
)

// Pattern queries are derived views over the hourly rollup table. They never
// touch raw measurements, so their cost is bounded by retention-free hourly
// history rather than sample volume.

// HourlyPattern returns the average profile per hour of day (0-23). Hours
// with no rolled-up history are omitted.
func (s *Store) HourlyPattern() ([]model.HourlyPatternPoint, error) {
	rows, err := s.db.Query(`
		SELECT hour_of_day, AVG(co2_avg), AVG(temp_avg), SUM(co2_count)
		FROM hourly_stats
		GROUP BY hour_of_day
		ORDER BY hour_of_day`)
	if err != nil {
		return nil, fmt.Errorf("querying hourly pattern: %w", err)
	}
	defer rows.Close()

	var out []model.HourlyPatternPoint
	for rows.Next() {
		var p model.HourlyPatternPoint
		var co2Avg, tempAvg sql.NullFloat64
		var count sql.NullInt64
		if err := rows.Scan(&p.Hour, &co2Avg, &tempAvg, &count); err != nil {
			return nil, fmt.Errorf("scanning hourly pattern: %w", err)
		}
		p.PatternBucket = patternBucket(co2Avg, tempAvg, count)
		out = append(out, p)
	}
	return out, rows.Err()
}

// WeeklyPattern returns the average profile per day of week (Mon=0).
func (s *Store) WeeklyPattern() ([]model.WeeklyPatternPoint, error) {
	rows, err := s.db.Query(`
		SELECT day_of_week, AVG(co2_avg), AVG(temp_avg), SUM(co2_count)
		FROM hourly_stats
		GROUP BY day_of_week
		ORDER BY day_of_week`)
	if err != nil {
		return nil, fmt.Errorf("querying weekly pattern: %w", err)
	}
	defer rows.Close()

	var out []model.WeeklyPatternPoint
	for rows.Next() {
		var p model.WeeklyPatternPoint
		var co2Avg, tempAvg sql.NullFloat64
		var count sql.NullInt64
		if err := rows.Scan(&p.DayNum, &co2Avg, &tempAvg, &count); err != nil {
			return nil, fmt.Errorf("scanning weekly pattern: %w", err)
		}
		if p.DayNum >= 0 && p.DayNum < len(model.DayNames) {
			p.Day = model.DayNames[p.DayNum]
		}
		p.PatternBucket = patternBucket(co2Avg, tempAvg, count)
		out = append(out, p)
	}
	return out, rows.Err()
}

// DayNightComparison splits hourly history by the daytime flag. Empty sides
// come back with nil averages and a zero count.
func (s *Store) DayNightComparison() (model.DayNightComparison, error) {
	var cmp model.DayNightComparison
	var err error

	cmp.Day, err = s.patternAggregate(`is_daytime = 1`)
	if err != nil {
		return cmp, fmt.Errorf("querying daytime pattern: %w", err)
	}
	cmp.Night, err = s.patternAggregate(`is_daytime = 0`)
	if err != nil {
		return cmp, fmt.Errorf("querying nighttime pattern: %w", err)
	}
	return cmp, nil
}

// WorkWeekendComparison splits hourly history by workday hours vs weekend
// days.
func (s *Store) WorkWeekendComparison() (model.WorkWeekendComparison, error) {
	var cmp model.WorkWeekendComparison
	var err error

	cmp.Workday, err = s.patternAggregate(`is_workday = 1`)
	if err != nil {
		return cmp, fmt.Errorf("querying workday pattern: %w", err)
	}
	cmp.Weekend, err = s.patternAggregate(`day_of_week >= 5`)
	if err != nil {
		return cmp, fmt.Errorf("querying weekend pattern: %w", err)
	}
	return cmp, nil
}

func (s *Store) patternAggregate(where string) (model.PatternBucket, error) {
	var co2Avg, tempAvg sql.NullFloat64
	var count sql.NullInt64
	err := s.db.QueryRow(`
		SELECT AVG(co2_avg), AVG(temp_avg), SUM(co2_count)
		FROM hourly_stats
		WHERE ` + where).Scan(&co2Avg, &tempAvg, &count)
	if err != nil {
		return model.PatternBucket{}, err
	}
	return patternBucket(co2Avg, tempAvg, count), nil
}

func patternBucket(co2Avg, tempAvg sql.NullFloat64, count sql.NullInt64) model.PatternBucket {
	var b model.PatternBucket
	if co2Avg.Valid {
		v := round1(co2Avg.Float64)
		b.CO2Avg = &v
	}
	if tempAvg.Valid {
		v := round1(tempAvg.Float64)
		b.TempAvg = &v
	}
	if count.Valid {
		b.SampleCount = count.Int64
	}
	return b
}
