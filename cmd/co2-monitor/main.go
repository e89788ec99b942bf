package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marcuspuchalla/co2-monitor/internal/aggregate"
	"github.com/marcuspuchalla/co2-monitor/internal/alerter"
	"github.com/marcuspuchalla/co2-monitor/internal/api"
	"github.com/marcuspuchalla/co2-monitor/internal/config"
	"github.com/marcuspuchalla/co2-monitor/internal/device"
	"github.com/marcuspuchalla/co2-monitor/internal/model"
	"github.com/marcuspuchalla/co2-monitor/internal/notify"
	"github.com/marcuspuchalla/co2-monitor/internal/store"
	"github.com/marcuspuchalla/co2-monitor/internal/tracker"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// buildInfo returns version, commit, build time, and VCS details from the
// embedded Go build info. ldflags-injected values take priority; VCS info
// from debug.ReadBuildInfo fills in anything left as default.
func buildInfo() (ver, sha, built, dirty string) {
	ver = version
	sha = commit
	built = buildTime
	dirty = "clean"

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if sha == "none" {
				sha = s.Value
			}
		case "vcs.time":
			if built == "unknown" {
				built = s.Value
			}
		case "vcs.modified":
			if s.Value == "true" {
				dirty = "dirty"
			}
		}
	}

	return
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	showStats := flag.Bool("stats", false, "print database statistics and exit")
	backfill := flag.Bool("backfill", false, "rebuild all rollup tables from raw history and exit")
	flag.Parse()

	ver, sha, built, dirty := buildInfo()

	if *showVersion {
		fmt.Printf("co2-monitor %s\n  commit:    %s (%s)\n  built:     %s\n  go:        %s\n  platform:  %s/%s\n",
			ver, sha, dirty, built, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}

	setupLogging(cfg)

	loc, err := cfg.Location()
	if err != nil {
		slog.Error("resolving timezone", "error", err)
		os.Exit(1)
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		slog.Error("opening database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	aggCfg := aggregate.Config{
		Interval:       cfg.AggregateInterval.Duration,
		MinuteLookback: cfg.MinuteLookback.Duration,
		HourlyLookback: cfg.HourlyLookback.Duration,
		RetentionDays:  cfg.Retention.DaysToKeep,
		MaxSizeGB:      cfg.Retention.MaxSizeGB,
		Location:       loc,
	}
	agg := aggregate.New(st, aggCfg)

	if *showStats {
		printStats(st)
		return
	}
	if *backfill {
		if err := agg.Backfill(); err != nil {
			slog.Error("backfill failed", "error", err)
			os.Exit(1)
		}
		return
	}

	slog.Info("starting co2-monitor",
		"version", ver,
		"commit", sha,
		"built", built,
		"dirty", dirty,
		"go", runtime.Version(),
		"listen", cfg.Listen,
		"db", cfg.DBPath,
	)

	latest := tracker.NewLatest()
	hub := api.NewHub()
	latest.OnUpdate(func(r model.Reading) {
		hub.Broadcast(map[string]any{
			"co2_ppm":             deref(r.CO2PPM),
			"temperature_celsius": r.Temperature,
			"timestamp":           r.Timestamp.Unix(),
		})
	})

	sensor := device.NewSession()
	trk := tracker.New(sensor, st, latest, cfg.ReadInterval.Duration, cfg.ReadTimeout.Duration)

	var providers []notify.Provider
	for _, ncfg := range cfg.Notifications {
		switch ncfg.Type {
		case "ntfy":
			providers = append(providers, notify.NewNtfy(ncfg.URL, ncfg.Topic))
		case "webhook":
			providers = append(providers, notify.NewWebhook(ncfg.URL, ncfg.Method, ncfg.Headers))
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return trk.Run(ctx) })
	g.Go(func() error { return agg.Run(ctx) })
	g.Go(func() error { return hub.Run(ctx) })

	if cfg.Alarm.Enabled {
		alertCfg := alerter.Config{
			Threshold:  cfg.Alarm.Threshold,
			Cooldown:   cfg.Alarm.Cooldown.Duration,
			StaleAfter: cfg.Alarm.StaleAfter.Duration,
		}
		a := alerter.New(latest, providers, alertCfg)
		g.Go(func() error { return a.Run(ctx) })
	}

	server := api.NewServer(cfg.Listen, ver, st, latest, hub)
	g.Go(func() error { return server.Run(ctx) })

	slog.Info("all components started",
		"alarm", cfg.Alarm.Enabled,
		"notifications", len(providers),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("fatal error", "error", err)
	}

	slog.Info("co2-monitor stopped gracefully")
}

func setupLogging(cfg *config.Config) {
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func printStats(st *store.Store) {
	count, err := st.Count()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
	size, err := st.SizeMB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}

	fmt.Printf("measurements:  %d\n", count)
	fmt.Printf("database size: %.1f MB\n", size)

	minTS, maxTS, ok, err := st.MeasurementBounds()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Println("no measurements stored")
		return
	}
	fmt.Printf("oldest:        %s\n", time.Unix(minTS, 0).Format(time.RFC3339))
	fmt.Printf("newest:        %s\n", time.Unix(maxTS, 0).Format(time.RFC3339))

	stats, err := st.Statistics(24)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
	if stats.CO2.Avg != nil {
		fmt.Printf("co2 (24h):     min %d / avg %.1f / max %d ppm\n",
			*stats.CO2.Min, *stats.CO2.Avg, *stats.CO2.Max)
	}
	if stats.Temperature.Avg != nil {
		fmt.Printf("temp (24h):    min %.1f / avg %.1f / max %.1f C\n",
			*stats.Temperature.Min, *stats.Temperature.Avg, *stats.Temperature.Max)
	}
}

func deref(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
