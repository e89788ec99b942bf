// Package tracker drives the sensor on a timer and persists its readings.
package tracker

import (
	"context"
	"log/slog"
	"time"

	"github.com/marcuspuchalla/co2-monitor/internal/model"
	"github.com/marcuspuchalla/co2-monitor/internal/store"
)

// Sensor is the device session the tracker drives. Satisfied by
// *device.Session; tests substitute a fake.
type Sensor interface {
	Connect() error
	IsConnected() bool
	Disconnect()
	Read(timeout time.Duration) (model.Reading, error)
}

// Tracker reads the sensor once per interval, appends the sample to the
// store, and publishes it to the shared latest-reading cell.
type Tracker struct {
	sensor      Sensor
	store       *store.Store
	latest      *Latest
	interval    time.Duration
	readTimeout time.Duration

	lastStored time.Time
}

// New creates a tracker. Non-positive interval and timeout take 60s and 10s.
func New(sensor Sensor, st *store.Store, latest *Latest, interval, readTimeout time.Duration) *Tracker {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	return &Tracker{
		sensor:      sensor,
		store:       st,
		latest:      latest,
		interval:    interval,
		readTimeout: readTimeout,
	}
}

// Run starts the ingestion loop. If the sensor cannot be opened the loop
// logs and returns nil so the rest of the process keeps serving queries over
// existing data. It blocks until the context is cancelled.
func (t *Tracker) Run(ctx context.Context) error {
	if err := t.sensor.Connect(); err != nil {
		slog.Error("connecting to CO2 sensor failed, ingestion disabled", "error", err)
		return nil
	}
	defer t.sensor.Disconnect()

	slog.Info("ingestion started", "interval", t.interval, "read_timeout", t.readTimeout)

	t.Cycle()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("ingestion stopped")
			return ctx.Err()
		case <-ticker.C:
			t.Cycle()
		}
	}
}

// Cycle performs one read-and-store pass. Errors are logged, never
// propagated; the next cycle proceeds normally.
func (t *Tracker) Cycle() {
	reading, err := t.sensor.Read(t.readTimeout)
	if err != nil {
		slog.Error("reading sensor", "error", err)
		return
	}
	if reading.CO2PPM == nil {
		slog.Warn("no CO2 reading received")
		return
	}

	// A silent device makes Read return the previous reading with its old
	// timestamp. Storing it again would pile duplicate rows onto one instant,
	// so only windows that produced fresh data are persisted.
	if !reading.Timestamp.After(t.lastStored) {
		slog.Warn("no new sensor data this cycle", "last_reading", reading.Timestamp)
		return
	}

	t.latest.Set(reading)

	if _, err := t.store.Insert(reading.Timestamp.Unix(), *reading.CO2PPM, reading.Temperature); err != nil {
		slog.Error("storing measurement", "error", err)
		return
	}
	t.lastStored = reading.Timestamp

	slog.Debug("measurement stored",
		"co2_ppm", *reading.CO2PPM,
		"temperature", reading.Temperature,
	)
}
