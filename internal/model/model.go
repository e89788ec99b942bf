// Package model defines the shared domain types for the CO2 monitor.
package model

import "time"

// Clock-hour windows used to derive analytic flags.
const (
	DaytimeStartHour = 6  // 06:00
	DaytimeEndHour   = 22 // 22:00
	WorkdayStartHour = 8  // 08:00
	WorkdayEndHour   = 18 // 18:00
)

// Reading is a single reading assembled from the sensor. Either field may be
// missing when the device has not yet reported the corresponding frame.
type Reading struct {
	CO2PPM      *int      `json:"co2_ppm"`
	Temperature *float64  `json:"temperature_celsius"`
	Timestamp   time.Time `json:"timestamp"`
}

// Complete reports whether both CO2 and temperature have been read.
func (r Reading) Complete() bool {
	return r.CO2PPM != nil && r.Temperature != nil
}

// Measurement is a persisted raw sample. Immutable once written; removed only
// by retention.
type Measurement struct {
	ID          int64    `json:"id"`
	Timestamp   int64    `json:"timestamp"` // unix seconds
	CO2PPM      int      `json:"co2_ppm"`
	Temperature *float64 `json:"temperature_celsius,omitempty"`
}

// Resolution identifies one of the rollup tiers.
type Resolution string

const (
	ResolutionRaw    Resolution = "raw"
	Resolution5Min   Resolution = "5min"
	Resolution10Min  Resolution = "10min"
	Resolution15Min  Resolution = "15min"
	ResolutionHourly Resolution = "hourly"
	ResolutionDaily  Resolution = "daily"
)

// MinuteWidths lists the supported minute-tier bucket widths.
var MinuteWidths = []int{5, 10, 15}

// Width returns the bucket width in minutes for minute-tier resolutions, or 0.
func (r Resolution) Width() int {
	switch r {
	case Resolution5Min:
		return 5
	case Resolution10Min:
		return 10
	case Resolution15Min:
		return 15
	default:
		return 0
	}
}

// Rollup is one aggregated bucket at any resolution. The Resolution
// discriminant selects which of the optional fields are meaningful: minute
// tiers carry WidthMinutes, hourly buckets carry the derived hour flags, and
// daily buckets carry the day/night sub-averages plus IsWeekend.
type Rollup struct {
	ID          int64      `json:"id"`
	Resolution  Resolution `json:"resolution"`
	BucketStart int64      `json:"bucket_start"` // unix seconds

	CO2Min   int     `json:"co2_min"`
	CO2Max   int     `json:"co2_max"`
	CO2Avg   float64 `json:"co2_avg"`
	CO2Count int     `json:"co2_count"`

	TempMin *float64 `json:"temp_min,omitempty"`
	TempMax *float64 `json:"temp_max,omitempty"`
	TempAvg *float64 `json:"temp_avg,omitempty"`

	// Minute tiers only.
	WidthMinutes int `json:"interval_minutes,omitempty"`

	// Hourly only. Zero is a real value here (midnight, Monday), so these
	// are always emitted.
	HourOfDay int  `json:"hour_of_day"`
	DayOfWeek int  `json:"day_of_week"`
	IsDaytime bool `json:"is_daytime"`
	IsWorkday bool `json:"is_workday"`

	// Daily only.
	CO2DayAvg   *float64 `json:"co2_day_avg,omitempty"`
	CO2NightAvg *float64 `json:"co2_night_avg,omitempty"`
	IsWeekend   bool     `json:"is_weekend"`
}

// CO2Stats holds min/max/avg over CO2 readings. All fields are nil when the
// window held no samples.
type CO2Stats struct {
	Min *int     `json:"min"`
	Max *int     `json:"max"`
	Avg *float64 `json:"avg"`
}

// TempStats holds min/max/avg over temperature readings.
type TempStats struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
	Avg *float64 `json:"avg"`
}

// Statistics summarizes raw measurements over a query window.
type Statistics struct {
	Count       int       `json:"count"`
	CO2         CO2Stats  `json:"co2"`
	Temperature TempStats `json:"temperature"`
}

// PatternBucket is one group in a derived pattern view. Averages are nil and
// SampleCount zero when the group is empty.
type PatternBucket struct {
	CO2Avg      *float64 `json:"co2_avg"`
	TempAvg     *float64 `json:"temp_avg"`
	SampleCount int64    `json:"sample_count"`
}

// HourlyPatternPoint is the average profile for one hour of the day (0-23).
type HourlyPatternPoint struct {
	Hour int `json:"hour"`
	PatternBucket
}

// WeeklyPatternPoint is the average profile for one day of the week.
type WeeklyPatternPoint struct {
	Day    string `json:"day"`
	DayNum int    `json:"day_num"`
	PatternBucket
}

// DayNightComparison splits hourly history by the daytime flag.
type DayNightComparison struct {
	Day   PatternBucket `json:"day"`
	Night PatternBucket `json:"night"`
}

// WorkWeekendComparison splits hourly history by workday hours vs weekend days.
type WorkWeekendComparison struct {
	Workday PatternBucket `json:"workday"`
	Weekend PatternBucket `json:"weekend"`
}

// DayNames indexes weekday names by the Monday-based day number used
// throughout the rollup tables.
var DayNames = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// DayOfWeek returns the Monday-based weekday index (Mon=0 .. Sun=6) for t.
func DayOfWeek(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// IsDaytimeHour reports whether the given hour falls in the daytime window.
func IsDaytimeHour(hour int) bool {
	return hour >= DaytimeStartHour && hour < DaytimeEndHour
}

// IsWorkdayHour reports whether the given Monday-based weekday and hour fall
// in the workday window.
func IsWorkdayHour(dayOfWeek, hour int) bool {
	return dayOfWeek < 5 && hour >= WorkdayStartHour && hour < WorkdayEndHour
}

// Notification is a structured alert message.
type Notification struct {
	AlertType string            `json:"alert_type"`
	Severity  string            `json:"severity"` // "info", "warning", "critical"
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
