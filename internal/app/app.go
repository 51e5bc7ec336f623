// Package app assembles the pipeline from configuration: storage, catalog,
// sampler, sinks, cycle runner, metrics, scheduler, listener and maintenance.
// Both binaries build on it.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/albapepper/orderpulse/internal/catalog"
	"github.com/albapepper/orderpulse/internal/config"
	"github.com/albapepper/orderpulse/internal/cycle"
	"github.com/albapepper/orderpulse/internal/db"
	"github.com/albapepper/orderpulse/internal/listener"
	"github.com/albapepper/orderpulse/internal/maintenance"
	"github.com/albapepper/orderpulse/internal/metrics"
	"github.com/albapepper/orderpulse/internal/notifications"
	"github.com/albapepper/orderpulse/internal/scheduler"
	"github.com/albapepper/orderpulse/internal/simulator"
	"github.com/albapepper/orderpulse/internal/store"
)

// App holds the wired components.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    store.Gateway
	Pool     *db.Pool // nil unless the postgres driver is selected
	Catalog  *catalog.Catalog
	Fanout   *notifications.Fanout
	Runner   *cycle.Runner
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
}

// New opens storage and wires the cycle runner. Console output goes to out,
// os.Stdout when nil.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) (*App, error) {
	if out == nil {
		out = os.Stdout
	}
	// Console and chat sinks share out and run concurrently.
	shared := notifications.NewSyncWriter(out)

	logger.Info("Opening storage...", "driver", cfg.StorageDriver)
	gw, pool, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if pool != nil {
		logger.Info("Database connected",
			"min_conns", cfg.DBPoolMinConns,
			"max_conns", cfg.DBPoolMaxConns)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg, metrics.Config{Environment: cfg.Environment})

	cat := catalog.NewDefault()
	fanout := notifications.NewFanout(cfg.SinkTimeout, logger, m).
		Register(notifications.NewConsoleSink(shared), notifications.Always).
		Register(notifications.NewFileSink(cfg.ReportLogPath, logger), notifications.Always).
		Register(notifications.NewChatSink(gw, shared, logger), notifications.Always)
	if email := notifications.NewEmailSink(cfg.EmailRecipient, logger); email != nil {
		fanout.Register(email, notifications.EveryHours(cfg.EmailEveryHours))
	}
	logger.Info("Report sinks registered", "sinks", fanout.Sinks())

	runner := cycle.New(cycle.Deps{
		Store:   gw,
		Catalog: cat,
		Sampler: simulator.NewRandomSampler(cat, nil),
		Fanout:  fanout,
		Metrics: m,
		Logger:  logger,
	}, cycle.Options{
		TopN:          cfg.TopN,
		Window:        Window(cfg),
		EnforceWindow: cfg.EnforceWindow,
		Location:      cfg.Location,
	})

	return &App{
		Config:   cfg,
		Logger:   logger,
		Store:    gw,
		Pool:     pool,
		Catalog:  cat,
		Fanout:   fanout,
		Runner:   runner,
		Metrics:  m,
		Registry: reg,
	}, nil
}

// Window returns the operating window configured in cfg.
func Window(cfg *config.Config) cycle.Window {
	return cycle.Window{Start: cfg.WindowStart, End: cfg.WindowEnd}
}

// Scheduler creates the hourly dispatch loop over the runner.
func (a *App) Scheduler(summary bool) *scheduler.Scheduler {
	return scheduler.New(a.Runner, nil, scheduler.Options{
		Window:             Window(a.Config),
		DispatchMinute:     a.Config.DispatchMinute,
		IdleInterval:       a.Config.IdleInterval,
		DispatchedInterval: a.Config.DispatchedInterval,
		Location:           a.Config.Location,
		Summary:            summary,
	}, a.Logger)
}

// StartBackground launches the LISTEN/NOTIFY consumer (postgres only, when
// enabled) and the maintenance tickers. Both stop when ctx is cancelled.
func (a *App) StartBackground(ctx context.Context) {
	if a.Pool != nil && a.Config.ListenerEnabled {
		go listener.Start(ctx, a.Config.DatabaseURL, a.Runner, a.Logger)
		a.Logger.Info("Report request listener started", "channel", listener.Channel)
	} else {
		a.Logger.Info("Report request listener disabled", "driver", a.Config.StorageDriver)
	}

	mcfg := maintenance.DefaultConfig()
	mcfg.RetentionDays = a.Config.RetentionDays
	mcfg.SubscriberIdleDays = a.Config.SubscriberIdleDays
	go maintenance.New(a.Store, a.Metrics, mcfg, a.Logger).Start(ctx)
}

// Close releases storage.
func (a *App) Close() {
	a.Store.Close()
}
