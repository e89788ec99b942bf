package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollupJSON_KeepsZeroValuedBuckets(t *testing.T) {
	// Midnight on a Monday: hour and day are both zero and must still be
	// present in the encoded point.
	r := Rollup{
		Resolution:  ResolutionHourly,
		BucketStart: 1704672000,
		CO2Min:      420,
		CO2Max:      480,
		CO2Avg:      450,
		CO2Count:    60,
		HourOfDay:   0,
		DayOfWeek:   0,
		IsDaytime:   false,
		IsWorkday:   false,
	}

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))

	for _, key := range []string{"hour_of_day", "day_of_week", "is_daytime", "is_workday", "is_weekend"} {
		assert.Contains(t, m, key)
	}
	assert.Equal(t, float64(0), m["hour_of_day"])
	assert.Equal(t, float64(0), m["day_of_week"])
}
