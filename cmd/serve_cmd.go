package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/kebairia/backupctl/internal/operations"
)

const shutdownTimeout = 30 * time.Second

var intervalHours int

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"schedule"},
	Short:   "Run incremental backups on a fixed interval",
	Long: `serve registers an automatic incremental backup every --interval hours
(schedule.interval_hours by default) and runs until interrupted. When
metrics.listen is set, Prometheus metrics are exposed on /metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		hours := cfg.Schedule.IntervalHours
		if cmd.Flags().Changed("interval") {
			hours = intervalHours
		}
		if hours == 0 {
			return errors.New("no interval: set schedule.interval_hours or pass --interval")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		return withOperations(ctx, reg, func(ctx context.Context, om *operations.OperationManager) error {
			if err := om.Scheduler.ScheduleAutomaticBackup(hours); err != nil {
				return err
			}
			log.Info("scheduler running", "interval_hours", hours, "next", om.Scheduler.Next())

			srvErr := make(chan error, 1)
			var srv *http.Server
			if cfg.Metrics.Listen != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
				srv = &http.Server{Addr: cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					log.Info("metrics listening", "addr", cfg.Metrics.Listen)
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						srvErr <- fmt.Errorf("metrics server: %w", err)
					}
				}()
			}

			var err error
			select {
			case <-ctx.Done():
				log.Info("shutting down")
			case err = <-srvErr:
			}

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if srv != nil {
				_ = srv.Shutdown(shutdownCtx)
			}
			return errors.Join(err, om.Scheduler.Stop(shutdownCtx))
		})
	},
}

func init() {
	serveCmd.Flags().IntVar(&intervalHours, "interval", 0, "hours between automatic backups (1-168)")
}
