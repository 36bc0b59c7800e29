package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"printer_history/exporter-go/internal/config"
	"printer_history/exporter-go/internal/connect"
	"printer_history/exporter-go/internal/download"
	"printer_history/exporter-go/internal/export"
	"printer_history/exporter-go/internal/exportrun"
	"printer_history/exporter-go/internal/httpapi"
	"printer_history/exporter-go/internal/metrics"
	"printer_history/exporter-go/internal/session"
	"printer_history/exporter-go/internal/ui"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := httpapi.NewLogger(envOr("LOG_LEVEL", "info"), envOr("LOG_FORMAT", "json"))

	cfg, err := config.Load(config.LoadOptions{
		ConfigPath: envOr("CONFIG_PATH", ""),
		DotEnvPath: envOr("DOTENV_PATH", ".env"),
	})
	if err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return 2
	}
	logger = httpapi.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	client, err := connect.New(logger, connect.Options{
		BaseURL:       cfg.BaseURL,
		SessionCookie: cfg.SessionCookie,
		Timeout:       cfg.RequestTimeout,
	}, m)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create api client")
		return 2
	}
	if cfg.SessionCookie == "" {
		logger.Warn().Msg("no session cookie configured; the dashboard API will likely reject requests")
	}

	loc, _ := cfg.Location()
	saver := download.FileSaver{Dir: cfg.OutputDir, Overwrite: cfg.Overwrite}
	opts := exportrun.Options{TimeFormat: export.NewTimeFormatter(loc, cfg.TimestampLayout)}
	guard := session.NewGuard(cfg.DashboardPrefix)
	tab := session.StaticTab(cfg.TabURL)

	if cfg.HTTPAddr == "" {
		presenter := ui.NewConsole(os.Stderr)
		runner := exportrun.New(logger, client, saver, presenter, opts, m)

		res, err := guard.CheckContext(ctx, tab, presenter, func() error { return runner.Run(ctx) })
		if err != nil {
			logger.Error().Err(err).Str("tab_url", cfg.TabURL).Msg("not on the dashboard")
			return 2
		}
		if err := res.Fetch(); err != nil {
			return 1
		}
		return 0
	}

	state := ui.NewState()
	events := ui.NewBroadcaster()
	presenter := ui.Tee(state, events, ui.NewConsole(os.Stderr))
	runner := exportrun.New(logger, client, saver, presenter, opts, m)

	res, err := guard.CheckContext(ctx, tab, presenter, func() error { return runner.Start(ctx) })
	if err != nil {
		logger.Warn().Err(err).Str("tab_url", cfg.TabURL).Msg("not on the dashboard; export stays disabled")
	}

	h := httpapi.NewHandler(logger, &httpapi.Panel{
		State:   state,
		Events:  events,
		Runner:  runner,
		Metrics: m,
		Trigger: res.Fetch,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("exporter-go panel listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error().Err(err).Msg("http server error")
		stop()
		runner.Wait()
		return 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	// A run in flight sees the cancelled context; let it remove its temp file.
	runner.Wait()
	logger.Info().Msg("shutdown complete")
	return 0
}

func envOr(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
