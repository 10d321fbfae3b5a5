package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/simonvc/contaledger/internal/accounting"
	"github.com/simonvc/contaledger/internal/config"
	"github.com/simonvc/contaledger/internal/log"
	"github.com/simonvc/contaledger/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		lg := log.New("contaledger")
		cfg, err := config.Load(flagConfig, lg)
		if err != nil {
			return err
		}
		log.Setup(cfg.Log.Level)
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}

		promReg := prometheus.NewRegistry()
		promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		reg, err := accounting.NewRegistry(cfg.Storage.DataDir, accounting.NewMetrics(promReg), lg.NewSystem("accounting"))
		if err != nil {
			return err
		}
		defer reg.Close()

		opts := server.Options{Logger: lg.NewSystem("server")}
		var metricsServer *http.Server
		if cfg.Metrics.Addr == "" {
			opts.Gatherer = promReg
		} else {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
			metricsServer = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				lg.Info("prometheus metrics available", "addr", cfg.Metrics.Addr, "endpoint", "/metrics")
				if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					lg.Error("metrics server failure", "error", err)
				}
			}()
		}

		srv := server.New(reg, cfg.Server.Addr, opts)
		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		select {
		case err := <-errCh:
			return err
		case <-stop:
		}

		lg.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if metricsServer != nil {
			if err := metricsServer.Shutdown(ctx); err != nil {
				lg.Error("failed to shut down metrics server", "error", err)
			}
		}
		return srv.Shutdown(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
