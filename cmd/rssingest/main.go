// Command rssingest runs the article ingestion pipeline: either the
// lightweight HTTP control surface (default) or, with -worker, a single
// ingestion cycle before exiting. The control surface's start() spawns a
// -worker child process per cycle; an external scheduler (cron, systemd
// timer) is expected to hit /start periodically.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rssingest/rssingest/dbopen"
	"github.com/rssingest/rssingest/internal/browser"
	"github.com/rssingest/rssingest/internal/collector"
	"github.com/rssingest/rssingest/internal/control"
	"github.com/rssingest/rssingest/internal/evaluate"
	"github.com/rssingest/rssingest/internal/fetch"
	"github.com/rssingest/rssingest/internal/notify"
	"github.com/rssingest/rssingest/internal/store"
	"github.com/rssingest/rssingest/internal/worker"
)

func main() {
	workerMode := flag.Bool("worker", false, "run a single ingestion cycle and exit")
	flag.Parse()

	logLevel := env("LOG_LEVEL", "info")
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dbPath := env("DB_PATH", "./rss_reader.db")
	db, err := dbopen.Open(dbPath, dbopen.WithMkdirAll())
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := store.ApplySchema(db); err != nil {
		logger.Error("apply schema", "error", err)
		os.Exit(1)
	}
	st := store.New(db)

	mgr := browser.NewManager(browser.Config{Logger: logger})
	fetcher := fetch.New(fetch.Config{}, mgr, st)
	coll := collector.New(fetcher, st, logger)
	ev := evaluate.New(evaluate.Config{})
	nt := notify.New(30 * time.Second)

	w := worker.New(st, fetcher, coll, ev, nt, logger)

	if *workerMode {
		runWorkerOnce(ctx, w, logger)
		return
	}

	runServer(ctx, st, w, logger)
}

// runWorkerOnce is the entry point for a -worker child process spawned by
// the control surface's start(): one full cycle, then exit, per spec.md
// §6's "spawn the worker as a detached child process."
func runWorkerOnce(ctx context.Context, w *worker.Worker, logger *slog.Logger) {
	if err := w.Run(ctx); err != nil {
		if err == worker.ErrLeaseHeld {
			logger.Warn("worker: lease already held, exiting")
			return
		}
		logger.Error("worker: cycle failed", "error", err)
		os.Exit(1)
	}
}

// runServer starts the HTTP control surface: start/stop/status/ingest/retry
// plus /metrics, per spec.md §6.
func runServer(ctx context.Context, st *store.Store, w *worker.Worker, logger *slog.Logger) {
	self, err := os.Executable()
	if err != nil {
		logger.Error("resolve executable path", "error", err)
		os.Exit(1)
	}

	surface := control.New(st, w, logger, self, []string{"-worker"})
	w.SetMetrics(surface.Metrics())

	port := env("PORT", "8090")
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: surface.Router(),
	}

	go func() {
		logger.Info("control surface starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("control surface", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
