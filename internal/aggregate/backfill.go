package aggregate

import (
	"log/slog"
	"time"

	"github.com/marcuspuchalla/co2-monitor/internal/model"
)

// Backfill rebuilds every rollup tier from the full measurement history.
// Useful after restoring a database or when rollup tables were rebuilt from
// scratch; safe to run at any time because upserts replace existing rows.
func (a *Aggregator) Backfill() error {
	minTS, maxTS, ok, err := a.store.MeasurementBounds()
	if !ok || err != nil {
		return err
	}

	slog.Info("backfilling rollups",
		"from", time.Unix(minTS, 0).In(a.cfg.Location),
		"to", time.Unix(maxTS, 0).In(a.cfg.Location),
	)

	for _, width := range model.MinuteWidths {
		if err := a.rollupMinutes(minTS, maxTS, width); err != nil {
			return err
		}
	}

	if err := a.rollupHours(minTS, maxTS); err != nil {
		return err
	}

	first := a.startOfDay(time.Unix(minTS, 0))
	last := a.startOfDay(time.Unix(maxTS, 0))
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		if err := a.rollupDay(day); err != nil {
			return err
		}
	}

	slog.Info("backfill complete")
	return nil
}
