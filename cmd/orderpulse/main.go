// Command orderpulse is the OrderPulse pipeline CLI.
//
// Usage:
//
//	orderpulse run
//	orderpulse cycle --summary --force
//	orderpulse snapshot --hour 14
//	orderpulse daily --date 2026-05-20
//	orderpulse subscriber add 42 --username buyer
//	orderpulse subscription set 42 daily false
//	orderpulse migrate
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/albapepper/orderpulse/internal/app"
	"github.com/albapepper/orderpulse/internal/config"
	"github.com/albapepper/orderpulse/internal/cycle"
	"github.com/albapepper/orderpulse/internal/model"
	"github.com/albapepper/orderpulse/internal/report"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:           "orderpulse",
		Short:         "Hourly marketplace order statistics pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(runCmd())
	root.AddCommand(cycleCmd())
	root.AddCommand(snapshotCmd())
	root.AddCommand(dailyCmd())
	root.AddCommand(subscriberCmd())
	root.AddCommand(subscriptionCmd())
	root.AddCommand(migrateCmd())

	if err := root.Execute(); err != nil {
		logger.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// run command
// --------------------------------------------------------------------------

func runCmd() *cobra.Command {
	var summary bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the hourly scheduler until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.OutOrStdout(), func(ctx context.Context, a *app.App) error {
				a.StartBackground(ctx)
				sched := a.Scheduler(summary)
				logger.Info("Waiting for the next dispatch",
					"next", a.Runner.Window().Next(a.Runner.Now(), a.Config.DispatchMinute).Format(time.DateTime))
				return sched.Run(ctx)
			})
		},
	}
	cmd.Flags().BoolVar(&summary, "summary", false, "Dispatch one-line summaries instead of detailed reports")
	return cmd
}

// --------------------------------------------------------------------------
// cycle command
// --------------------------------------------------------------------------

func cycleCmd() *cobra.Command {
	var summary, force bool
	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Run a single collect-and-report cycle now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.OutOrStdout(), func(ctx context.Context, a *app.App) error {
				res, err := a.Runner.Run(ctx, cycle.Request{Detailed: !summary, Force: force})
				if err != nil {
					return err
				}
				logger.Info("Cycle finished",
					"date", res.Date,
					"hour", res.Hour,
					"recorded", res.Recorded,
					"total_hourly", res.TotalHourly,
					"total_daily", res.TotalDaily,
					"top", res.Top,
					"delivered", res.Fanout.Delivered,
					"failed", res.Fanout.FailedSinks(),
					"duration", res.Duration.Round(time.Millisecond))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&summary, "summary", false, "Send the one-line summary instead of the detailed report")
	cmd.Flags().BoolVar(&force, "force", false, "Run even outside the operating window")
	return cmd
}

// --------------------------------------------------------------------------
// snapshot and daily commands
// --------------------------------------------------------------------------

func snapshotCmd() *cobra.Command {
	var (
		hour int
		date string
	)
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print the per-product snapshot of an hour",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.OutOrStdout(), func(ctx context.Context, a *app.App) error {
				now := a.Runner.Now()
				d, err := parseDate(date, now)
				if err != nil {
					return err
				}
				h := now.Hour()
				if cmd.Flags().Changed("hour") {
					if hour < 0 || hour > 23 {
						return fmt.Errorf("--hour must be between 0 and 23, got %d", hour)
					}
					h = hour
				}
				entries := a.Runner.Snapshot(ctx, d, h)
				hourly, daily := report.Totals(entries)

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s %02d:00  hour: %d  day: %d\n", model.DateKey(d), h, hourly, daily)
				for _, e := range entries {
					fmt.Fprintln(out, e.Line())
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&hour, "hour", 0, "Hour 0-23 (default current hour)")
	cmd.Flags().StringVar(&date, "date", "", "Date YYYY-MM-DD (default today)")
	return cmd
}

func dailyCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "daily",
		Short: "Print total orders per product for a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.OutOrStdout(), func(ctx context.Context, a *app.App) error {
				d, err := parseDate(date, a.Runner.Now())
				if err != nil {
					return err
				}
				totals := a.Runner.DailyTotals(ctx, d)
				codes := make([]string, 0, len(totals))
				sum := 0
				for code, n := range totals {
					codes = append(codes, code)
					sum += n
				}
				slices.Sort(codes)

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s  total: %d\n", model.DateKey(d), sum)
				for _, code := range codes {
					fmt.Fprintf(out, "%s: %d\n", code, totals[code])
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Date YYYY-MM-DD (default today)")
	return cmd
}

// --------------------------------------------------------------------------
// subscriber and subscription commands
// --------------------------------------------------------------------------

func subscriberCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscriber",
		Short: "Manage chat subscribers",
	}
	cmd.AddCommand(subscriberAddCmd())
	return cmd
}

func subscriberAddCmd() *cobra.Command {
	var username, firstName, lastName string
	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Register a subscriber (daily reports on)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid subscriber id %q: %w", args[0], err)
			}
			return withApp(cmd.OutOrStdout(), func(ctx context.Context, a *app.App) error {
				err := a.Store.UpsertSubscriber(ctx, model.Subscriber{
					ID:        id,
					Username:  username,
					FirstName: firstName,
					LastName:  lastName,
				})
				if err != nil {
					return err
				}
				logger.Info("Subscriber registered", "id", id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "Chat username")
	cmd.Flags().StringVar(&firstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "Last name")
	return cmd
}

func subscriptionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscription",
		Short: "Manage subscription flags",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <id> <daily|alerts> <true|false>",
		Short: "Turn a subscription on or off",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid subscriber id %q: %w", args[0], err)
			}
			kind, err := model.ParseSubscriptionKind(args[1])
			if err != nil {
				return err
			}
			value, err := strconv.ParseBool(args[2])
			if err != nil {
				return fmt.Errorf("invalid value %q: %w", args[2], err)
			}
			return withApp(cmd.OutOrStdout(), func(ctx context.Context, a *app.App) error {
				if err := a.Runner.SetSubscription(ctx, id, kind, value); err != nil {
					return err
				}
				logger.Info("Subscription updated", "id", id, "kind", kind, "value", value)
				return nil
			})
		},
	})
	return cmd
}

// --------------------------------------------------------------------------
// migrate command
// --------------------------------------------------------------------------

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the storage schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Opening storage applies the schema for postgres and sqlite.
			return withApp(io.Discard, func(ctx context.Context, a *app.App) error {
				logger.Info("Schema up to date", "driver", a.Config.StorageDriver)
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// withApp handles config loading, storage, wiring and context cancellation.
func withApp(out io.Writer, fn func(ctx context.Context, a *app.App) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	a, err := app.New(ctx, cfg, logger, out)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func parseDate(raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		return now, nil
	}
	return model.ParseDate(raw)
}
