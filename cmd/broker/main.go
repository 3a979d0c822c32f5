package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	_ "go.uber.org/automaxprocs" // sets GOMAXPROCS from the container's CPU limit on init

	"github.com/adred-codev/boxbroker/internal/broker"
	"github.com/adred-codev/boxbroker/internal/config"
	"github.com/adred-codev/boxbroker/internal/logging"
	"github.com/adred-codev/boxbroker/internal/metrics"
	"github.com/adred-codev/boxbroker/internal/sysguard"
)

func main() {
	var rendezvousPipe string
	var maxSessions int
	if len(os.Args) > 1 {
		rendezvousPipe = os.Args[1]
	}
	if len(os.Args) > 2 {
		n, err := strconv.Atoi(os.Args[2])
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid max_sessions %q: %v\n", os.Args[2], err)
			os.Exit(1)
		}
		maxSessions = n
	}

	cfg, err := config.Load(rendezvousPipe, maxSessions)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() // nolint:errcheck

	metricsRegistry := metrics.NewRegistry()
	guard := sysguard.New(cfg.SysGuard.Enabled, cfg.SysGuard.MaxHostMemPercent)

	b := broker.New(cfg, logger, metricsRegistry, guard)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var httpServer *http.Server
	httpErrCh := make(chan error, 1)
	if cfg.Metrics.Enabled {
		httpServer = newMetricsServer(cfg.Metrics.ListenAddr, cfg.Metrics.Endpoint, metricsRegistry)
		go func() {
			logger.Info("metrics http server starting", zap.String("addr", cfg.Metrics.ListenAddr))
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				httpErrCh <- err
				return
			}
			httpErrCh <- nil
		}()
	}

	runErrCh := make(chan error, 1)
	go func() {
		logger.Info("broker starting", zap.String("rendezvous_pipe", cfg.RendezvousPipe), zap.Int("max_sessions", cfg.MaxSessions), zap.Int("max_boxes", cfg.MaxBoxes))
		runErrCh <- b.Run(ctx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		runErr = <-runErrCh
	case runErr = <-runErrCh:
		stop()
	}
	if runErr != nil {
		logger.Fatal("broker stopped with error", zap.Error(runErr))
	}

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics http server shutdown error", zap.Error(err))
		}
	}

	logger.Info("broker stopped")
}

func newMetricsServer(addr, endpoint string, reg *metrics.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(endpoint, reg.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
}
