// Package control exposes the worker's start/stop/status/ingest/retry
// operations over a small chi.Router, plus a Prometheus /metrics endpoint.
// It is a thin exerciser of the Worker/Store contracts, not the read API
// (filtering, browsing) that lives outside this system.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rssingest/rssingest/internal/store"
)

// Ingester is the subset of *worker.Worker the surface drives directly for
// the synchronous ingest/retry operations.
type Ingester interface {
	IngestURL(ctx context.Context, url string) error
}

// Surface wires the HTTP control plane to the Store and Worker.
type Surface struct {
	store      *store.Store
	worker     Ingester
	logger     *slog.Logger
	metrics    *metrics
	registry   *prometheus.Registry
	binaryPath string
	workerArgs []string

	mu sync.Mutex
}

// New constructs a Surface with its own Prometheus registry. binaryPath and
// workerArgs describe how start() re-invokes this same program as a
// detached worker process (e.g. the executable's own path plus a "-worker"
// flag).
func New(st *store.Store, w Ingester, logger *slog.Logger, binaryPath string, workerArgs []string) *Surface {
	if logger == nil {
		logger = slog.Default()
	}
	reg := prometheus.NewRegistry()
	return &Surface{
		store:      st,
		worker:     w,
		logger:     logger,
		metrics:    newMetrics(reg),
		registry:   reg,
		binaryPath: binaryPath,
		workerArgs: workerArgs,
	}
}

// Metrics returns the recorder a Worker should call SetMetrics with, so a
// running cycle's fetch/eval/blocked/duration counts land on this
// Surface's /metrics endpoint.
func (s *Surface) Metrics() *metrics { return s.metrics }

// Router builds the chi.Router exposing the control surface.
func (s *Surface) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/start", s.handleStart)
	r.Post("/stop", s.handleStop)
	r.Get("/status", s.handleStatus)
	r.Post("/ingest", s.handleIngest)
	r.Post("/retry", s.handleRetry)

	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return r
}

// handleStart spawns the worker as a detached child process if no live
// lease currently holds it, per spec.md §6: "if no live lease, spawn the
// worker as a detached child process and write worker_pid."
func (s *Surface) handleStart(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := r.Context()
	status, err := s.store.GetStatus(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if status.IsCrawling && status.WorkerPID != nil && pidAlive(*status.WorkerPID) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "worker already running", "worker_pid": fmt.Sprint(*status.WorkerPID)})
		return
	}

	cmd := exec.Command(s.binaryPath, s.workerArgs...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("spawn worker: %w", err))
		return
	}
	// Detach: the child's process group outlives this handler; we only
	// care about its PID for later signaling, not its exit.
	go func() { _ = cmd.Wait() }()

	pid := cmd.Process.Pid
	crawling := true
	task := "Initializing"
	if err := s.store.UpdateStatus(ctx, store.StatusUpdate{IsCrawling: &crawling, WorkerPID: &pid, CurrentTask: &task}); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"worker_pid": pid})
}

// handleStop sends a terminate signal to the worker's process group, then
// to the bare PID as a fallback, and clears the lease.
func (s *Surface) handleStop(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status, err := s.store.GetStatus(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if status.WorkerPID != nil {
		pid := *status.WorkerPID
		if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
			_ = syscall.Kill(pid, syscall.SIGTERM)
		}
	}

	crawling := false
	task := "Idle"
	if err := s.store.UpdateStatus(ctx, store.StatusUpdate{IsCrawling: &crawling, CurrentTask: &task, ClearWorkerPID: true}); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// handleStatus returns the CrawlerStatus singleton plus the latest 50
// ArticleErrors, per spec.md §6.
func (s *Surface) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status, err := s.store.GetStatus(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	errs, err := s.store.ListRecentErrors(ctx, 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": status, "errors": errs})
}

// handleIngest runs the full crawl+evaluate pipeline for one URL
// synchronously, per spec.md §6.
func (s *Surface) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("url is required"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()
	if err := s.worker.IngestURL(ctx, req.URL); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ingested", "url": req.URL})
}

// handleRetry looks up the URL behind an articleId or errorId and runs the
// same full pipeline, per spec.md §6.
func (s *Surface) handleRetry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ArticleID string `json:"article_id"`
		ErrorID   string `json:"error_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx := r.Context()
	url, err := s.resolveRetryURL(ctx, req.ArticleID, req.ErrorID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ingestCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	if err := s.worker.IngestURL(ingestCtx, url); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ingested", "url": url})
}

func (s *Surface) resolveRetryURL(ctx context.Context, articleID, errorID string) (string, error) {
	switch {
	case articleID != "":
		a, err := s.store.GetArticle(ctx, articleID)
		if err != nil {
			return "", err
		}
		if a == nil {
			return "", fmt.Errorf("article %s not found", articleID)
		}
		return a.URL, nil
	case errorID != "":
		e, err := s.store.GetErrorByID(ctx, errorID)
		if err != nil {
			return "", err
		}
		if e == nil {
			return "", fmt.Errorf("error %s not found", errorID)
		}
		return e.URL, nil
	default:
		return "", fmt.Errorf("article_id or error_id is required")
	}
}

// pidAlive reports whether pid names a live process, using the POSIX
// existence check (signal 0, no delivery).
func pidAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
