package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/shaiso/mrot/internal/config"
	"github.com/shaiso/mrot/internal/scheduler"
)

// NewScheduleCmd создаёт команду повторного запуска оркестрации по расписанию.
//
// Процесс работает до сигнала завершения и отдаёт /healthz и /metrics.
func NewScheduleCmd(appFn func() (*App, error), outputFn func() *Output) *cobra.Command {
	var file string
	var cronExpr string
	var timezone string
	var runOnStart bool
	var maxRuns int
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the orchestration on a cron schedule",
		Example: `  mrot schedule --cron "0 3 * * 1-5" --tz Europe/Berlin
  mrot schedule --cron "@every 6h" --run-on-start`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFn()
			if err != nil {
				return err
			}
			out := outputFn()
			ctx := cmd.Context()

			spec, err := config.LoadSpec(file)
			if err != nil {
				return err
			}

			runner, cleanup, err := app.NewRunner(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			sched, err := scheduler.New(scheduler.Config{
				Runner:     runner,
				Spec:       spec,
				Expr:       cronExpr,
				Timezone:   timezone,
				RunOnStart: runOnStart,
				MaxRuns:    maxRuns,
				Logger:     app.Logger,
			})
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("metrics-addr") {
				metricsAddr = app.Config.MetricsAddr
			}
			srv := newMetricsServer(metricsAddr)

			go func() {
				app.Logger.Info("listening", "addr", metricsAddr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					app.Logger.Error("http server error", "error", err)
				}
			}()

			err = sched.Start(ctx)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)

			stats := sched.Stats()
			summary := fmt.Sprintf("Scheduler stopped: %d runs (%d succeeded, %d failed, %d errors)",
				stats.Runs, stats.Succeeded, stats.Failed, stats.Errors)
			if last := sched.LastReport(); last != nil {
				summary += fmt.Sprintf("; last run %s %s", last.ID, last.Status)
			}
			out.Success(summary)

			return err
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", config.DefaultSpecPath, "Orchestration file")
	cmd.Flags().StringVar(&cronExpr, "cron", "", "Cron expression (5 fields) or descriptor (@hourly, @every 30m)")
	cmd.Flags().StringVar(&timezone, "tz", "", "Timezone for cron fields (default UTC)")
	cmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "Run once immediately")
	cmd.Flags().IntVar(&maxRuns, "max-runs", 0, "Stop after N runs (0 = unlimited)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "Address for /healthz and /metrics (overrides MROT_METRICS_ADDR)")
	_ = cmd.MarkFlagRequired("cron")

	return cmd
}

// newMetricsServer создаёт HTTP сервер: /healthz + /metrics.
func newMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
