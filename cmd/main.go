package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"civiclens/internal/config"
	"civiclens/internal/fetch"
	"civiclens/internal/ratelimit"
	"civiclens/internal/scheduler"
	"civiclens/internal/server"
	"civiclens/internal/summarizer"
)

const (
	readTimeout     = 30 * time.Second
	idleTimeout     = 120 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := godotenv.Load(); err != nil {
		log.InfoContext(ctx, "No .env file is loaded",
			"error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.ErrorContext(ctx, "Failed to load config",
			"error", err)

		return
	}

	maxRequests, window := cfg.RateLimitSpec()
	limiter := ratelimit.New(maxRequests, window)
	log.InfoContext(ctx, "Rate limiter is initialized",
		"maxRequests", maxRequests,
		"windowSeconds", window.Seconds())

	summ, err := summarizer.NewOpenAISummarizer(cfg.OpenAIAPIKey, cfg.ModelVariant())
	if err != nil {
		log.ErrorContext(ctx, "Failed to create summarizer",
			"error", err,
			"envVar", "OPENAI_API_KEY")

		return
	}
	log.InfoContext(ctx, "Summarizer is initialized",
		"model", summ.Variant())

	fetcher, err := fetch.New(cfg.FetchTimeout)
	if err != nil {
		log.ErrorContext(ctx, "Failed to create fetcher",
			"error", err)

		return
	}

	sched := scheduler.New(ctx, limiter, log)
	if err = sched.Start(); err != nil {
		log.ErrorContext(ctx, "Failed to start scheduler",
			"error", err,
			"spec", scheduler.PruneSpec)

		return
	}
	defer sched.Stop()
	log.InfoContext(ctx, "Scheduler is started",
		"spec", scheduler.PruneSpec)

	srv := server.New(cfg, limiter, fetcher, summ, log)

	// The summarize step has no timeout of its own, so the server
	// carries no write timeout either.
	httpSrv := &http.Server{
		Addr:        cfg.Addr,
		Handler:     srv.Handler(),
		ReadTimeout: readTimeout,
		IdleTimeout: idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()
	log.InfoContext(ctx, "Server is started",
		"addr", cfg.Addr,
		"model", summ.Variant(),
		"debug", cfg.Debug)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-c:
		log.InfoContext(ctx, "Shutdown signal is received",
			"signal", sig.String())
	case err = <-errCh:
		log.ErrorContext(ctx, "Server failed",
			"error", err)

		return
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err = httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.ErrorContext(ctx, "Failed to shut down server",
			"error", err)
	}

	log.InfoContext(ctx, "Exiting...",
		"uptimeSeconds", time.Since(start).Seconds())
}
