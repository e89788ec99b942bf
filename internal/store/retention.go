package store

import (
	"fmt"
	"log/slog"
)

// Default retention limits for raw measurements.
const (
	DefaultRetentionDays = 30
	DefaultMaxSizeGB     = 5.0
)

// EnforceRetention bounds raw-measurement storage. It first deletes samples
// older than daysToKeep unconditionally. If the database file still exceeds
// maxSizeGB it keeps deleting from a threshold that shrinks one day per pass,
// vacuuming between passes, until under the cap or the threshold reaches one
// day. The one-day floor keeps a pathological size cap from wiping all raw
// history. Rollup tables are never deleted.
func (s *Store) EnforceRetention(maxSizeGB float64, daysToKeep int) (int64, error) {
	total, err := s.DeleteOlderThan(daysToKeep)
	if err != nil {
		return total, err
	}

	maxSizeMB := maxSizeGB * 1024
	size, err := s.SizeMB()
	if err != nil {
		return total, err
	}
	if size <= maxSizeMB {
		return total, nil
	}

	for days := daysToKeep - 1; size > maxSizeMB && days > 1; days-- {
		n, err := s.DeleteOlderThan(days)
		if err != nil {
			return total, err
		}
		total += n

		if err := s.Vacuum(); err != nil {
			return total, err
		}
		size, err = s.SizeMB()
		if err != nil {
			return total, err
		}
		slog.Info("retention pass", "kept_days", days, "deleted", n, "size_mb", fmt.Sprintf("%.1f", size))
	}
	return total, nil
}
