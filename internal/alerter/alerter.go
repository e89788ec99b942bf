// Package alerter evaluates alert rules against the latest sensor reading.
package alerter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/marcuspuchalla/co2-monitor/internal/model"
	"github.com/marcuspuchalla/co2-monitor/internal/notify"
	"github.com/marcuspuchalla/co2-monitor/internal/tracker"
)

// Config holds alert rule settings.
type Config struct {
	Threshold  int           // ppm at which the CO2 alarm fires
	Cooldown   time.Duration // minimum gap between repeated CO2 alarms
	StaleAfter time.Duration // reading age at which the sensor counts as stale
}

// DefaultConfig returns sensible alert defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:  1000,
		Cooldown:   30 * time.Minute,
		StaleAfter: 10 * time.Minute,
	}
}

// Alerter evaluates rules and sends notifications.
type Alerter struct {
	latest    *tracker.Latest
	providers []notify.Provider
	config    Config
	interval  time.Duration

	// Deduplication: maps alert key to last fired time
	lastFired map[string]time.Time

	now func() time.Time
}

// New creates a new alerter.
func New(latest *tracker.Latest, providers []notify.Provider, cfg Config) *Alerter {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultConfig().Threshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultConfig().Cooldown
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultConfig().StaleAfter
	}
	return &Alerter{
		latest:    latest,
		providers: providers,
		config:    cfg,
		interval:  30 * time.Second,
		lastFired: make(map[string]time.Time),
		now:       time.Now,
	}
}

// Run starts the alerter evaluation loop.
func (a *Alerter) Run(ctx context.Context) error {
	slog.Info("alerter started",
		"interval", a.interval,
		"threshold_ppm", a.config.Threshold,
		"cooldown", a.config.Cooldown,
	)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("alerter stopped")
			return ctx.Err()
		case <-ticker.C:
			a.Evaluate(ctx)
		}
	}
}

// Evaluate runs one pass over the alert rules.
func (a *Alerter) Evaluate(ctx context.Context) {
	reading, ok := a.latest.Get()
	if !ok {
		return // nothing observed yet
	}
	now := a.now()

	a.cleanup(now)

	if age := now.Sub(reading.Timestamp); age > a.config.StaleAfter {
		a.fire(ctx, now, "sensor_stale", a.config.StaleAfter, model.Notification{
			AlertType: "sensor_stale",
			Severity:  "warning",
			Title:     "CO2 sensor stale",
			Message:   fmt.Sprintf("No sensor reading for %s (last at %s)", age.Round(time.Second), reading.Timestamp.Format(time.RFC3339)),
			Timestamp: now,
			Metadata:  map[string]string{"age": age.Round(time.Second).String()},
		})
		return // a stale reading says nothing about current air quality
	}

	if reading.CO2PPM != nil && *reading.CO2PPM >= a.config.Threshold {
		a.fire(ctx, now, "co2_high", a.config.Cooldown, model.Notification{
			AlertType: "co2_high",
			Severity:  "critical",
			Title:     "High CO2",
			Message:   fmt.Sprintf("CO2 at %d ppm (threshold %d ppm), ventilate the room", *reading.CO2PPM, a.config.Threshold),
			Timestamp: now,
			Metadata:  map[string]string{"co2_ppm": fmt.Sprintf("%d", *reading.CO2PPM)},
		})
	}
}

func (a *Alerter) cleanup(now time.Time) {
	const maxAge = 6 * time.Hour
	for key, t := range a.lastFired {
		if now.Sub(t) > maxAge {
			delete(a.lastFired, key)
		}
	}
}

func (a *Alerter) fire(ctx context.Context, now time.Time, key string, cooldown time.Duration, notif model.Notification) {
	if last, ok := a.lastFired[key]; ok && now.Sub(last) < cooldown {
		return // still in cooldown
	}
	a.lastFired[key] = now

	for _, p := range a.providers {
		if err := p.Send(ctx, notif); err != nil {
			slog.Error("sending notification", "provider", p.Name(), "alert", notif.AlertType, "error", err)
		}
	}

	slog.Warn("alert fired",
		"type", notif.AlertType,
		"severity", notif.Severity,
		"title", notif.Title,
	)
}
