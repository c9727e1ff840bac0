// Package worker drives the ingestion cycle: a singleton-leased, phased
// pass over configured sources that collects, crawls, backfills images,
// and evaluates articles, with a guaranteed-exit teardown on every path.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/rssingest/rssingest/idgen"
	"github.com/rssingest/rssingest/internal/collector"
	"github.com/rssingest/rssingest/internal/domainqueue"
	"github.com/rssingest/rssingest/internal/evaluate"
	"github.com/rssingest/rssingest/internal/extract"
	"github.com/rssingest/rssingest/internal/fetch"
	"github.com/rssingest/rssingest/internal/notify"
	"github.com/rssingest/rssingest/internal/store"
)

// ErrLeaseHeld is returned by Run when another live worker already holds
// the singleton lease.
var ErrLeaseHeld = errors.New("worker: lease already held by a live process")

const (
	maxUnprocessed   = 200
	maxImageBackfill = 100
	imageBackfillGap = time.Second
)

// MetricsRecorder receives process-level counters as a cycle runs. The
// zero value (noopRecorder) is used until SetMetrics is called, so a
// Worker built without a control surface never needs to know one exists.
type MetricsRecorder interface {
	ObserveFetch(outcome string)
	ObserveEval(outcome string)
	ObserveBlockedDomain()
	ObserveCycle(d time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) ObserveFetch(string)        {}
func (noopRecorder) ObserveEval(string)         {}
func (noopRecorder) ObserveBlockedDomain()      {}
func (noopRecorder) ObserveCycle(time.Duration) {}

// Worker orchestrates one ingestion cycle at a time.
type Worker struct {
	store     *store.Store
	fetcher   *fetch.Fetcher
	collector *collector.Collector
	evaluator *evaluate.Evaluator
	notifier  *notify.Notifier
	logger    *slog.Logger
	metrics   MetricsRecorder
}

// New wires the concrete components for one Worker. The Store's Config row
// (concurrency knobs, score threshold, credentials) is read fresh at the
// start of every cycle, so only the components themselves are fixed here.
func New(st *store.Store, fetcher *fetch.Fetcher, coll *collector.Collector, evaluator *evaluate.Evaluator, notifier *notify.Notifier, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{store: st, fetcher: fetcher, collector: coll, evaluator: evaluator, notifier: notifier, logger: logger, metrics: noopRecorder{}}
}

// SetMetrics attaches a MetricsRecorder, typically the control surface's
// Prometheus-backed one. Safe to call once before Run.
func (w *Worker) SetMetrics(m MetricsRecorder) {
	if m != nil {
		w.metrics = m
	}
}

// Run acquires the singleton lease (reclaiming a stale one), runs one full
// ingestion cycle through every phase, and releases the lease in a
// guaranteed-exit teardown block regardless of how the cycle ends.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.acquireLease(ctx); err != nil {
		return err
	}

	start := time.Now()
	defer func() { w.metrics.ObserveCycle(time.Since(start)) }()
	defer w.teardown(context.WithoutCancel(ctx))

	cfg, err := w.store.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("worker: load config: %w", err)
	}

	if err := w.bootstrap(ctx); err != nil {
		w.logger.Error("worker: bootstrap failed", "error", err)
	}

	collected, err := w.phase1(ctx, cfg)
	if err != nil {
		return err
	}

	w.phase2(ctx, cfg, collected)
	_ = w.fetcher.CloseBrowser()

	w.phase2point5(ctx)

	w.phase3(ctx, cfg)

	return nil
}

func (w *Worker) acquireLease(ctx context.Context) error {
	status, err := w.store.GetStatus(ctx)
	if err != nil {
		return fmt.Errorf("worker: get status: %w", err)
	}
	if status.IsCrawling && status.WorkerPID != nil && processAlive(*status.WorkerPID) &&
		*status.WorkerPID != os.Getpid() && *status.WorkerPID != os.Getppid() {
		return ErrLeaseHeld
	}

	pid := os.Getpid()
	task := "Initializing"
	return w.store.UpdateStatus(ctx, store.StatusUpdate{
		IsCrawling:  boolPtr(true),
		CurrentTask: &task,
		WorkerPID:   &pid,
	})
}

// teardown runs in a deferred, guaranteed-exit block: it always clears the
// lease and closes the browser, even if an earlier phase panicked or the
// context was cancelled mid-cycle.
func (w *Worker) teardown(ctx context.Context) {
	idle := "Idle"
	if err := w.store.UpdateStatus(ctx, store.StatusUpdate{
		IsCrawling:     boolPtr(false),
		CurrentTask:    &idle,
		ClearWorkerPID: true,
	}); err != nil {
		w.logger.Error("worker: teardown status update failed", "error", err)
	}
	if err := w.fetcher.CloseBrowser(); err != nil {
		w.logger.Warn("worker: teardown browser close failed", "error", err)
	}
}

// processAlive reports whether pid names a live process, using the
// existence-check form of kill(2) (signal 0: no signal delivered, only
// the permission/existence check is performed).
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func boolPtr(b bool) *bool { return &b }

// bootstrap seeds the default source list if the Store has zero sources.
func (w *Worker) bootstrap(ctx context.Context) error {
	count, err := w.store.CountSources(ctx)
	if err != nil {
		return fmt.Errorf("worker: count sources: %w", err)
	}
	if count > 0 {
		return nil
	}

	seeds, err := defaultSources()
	if err != nil {
		return err
	}
	for _, seed := range seeds {
		if err := w.store.InsertSource(ctx, &store.Source{
			ID:   idgen.New(),
			URL:  seed.URL,
			Name: seed.Name,
		}); err != nil {
			return fmt.Errorf("worker: seed source %q: %w", seed.URL, err)
		}
	}
	return nil
}

func (w *Worker) phase1(ctx context.Context, cfg *store.Config) ([]collector.CollectedArticle, error) {
	task := "Phase 1"
	if err := w.setTask(ctx, task); err != nil {
		return nil, err
	}

	sources, err := w.store.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("worker: list sources: %w", err)
	}

	collectorSources := make([]collector.Source, len(sources))
	for i, src := range sources {
		collectorSources[i] = collector.Source{ID: src.ID, URL: src.URL, Name: src.Name}
	}

	concurrency := cfg.FeedFetchConcurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	collected := w.collector.CollectAll(ctx, collectorSources, concurrency)

	for _, item := range collected {
		patch := store.ArticlePatch{URL: item.URL}
		if item.ResolvedURL != "" {
			patch.ResolvedURL = &item.ResolvedURL
		}
		if item.HasPubDate {
			patch.PublishedAt = &item.PubDate
		}
		if err := w.store.UpsertArticle(ctx, idgen.New(), patch); err != nil {
			w.logger.Warn("worker: persist collected article failed", "url", item.URL, "error", err)
		}
	}

	return collected, nil
}

// crawlItem schedules by the host of target (where the request actually
// goes), but stores results keyed by key (the original feed URL), so a
// resolved aggregator link never creates a second Article row.
type crawlItem struct {
	key    string
	target string
}

func (i crawlItem) HostKey() string { return domainqueue.HostKeyOf(i.target) }

func (w *Worker) phase2(ctx context.Context, cfg *store.Config, collected []collector.CollectedArticle) {
	task := "Phase 2"
	if err := w.setTask(ctx, task); err != nil {
		w.logger.Error("worker: phase 2 set task failed", "error", err)
		return
	}

	queue := domainqueue.New(domainqueue.Limits{
		MaxConcurrentPerDomain: cfg.MaxConcurrentPerDomain,
		MaxTotalConcurrent:     cfg.MaxTotalConcurrent,
		DomainDelay:            time.Duration(cfg.DomainDelayMs) * time.Millisecond,
	})

	total := 0
	for _, item := range collected {
		target := item.URL
		if item.ResolvedURL != "" {
			target = item.ResolvedURL
		}
		article, err := w.store.GetArticleByURL(ctx, item.URL)
		if err == nil && article != nil && !article.Crawlable() {
			continue
		}
		queue.Enqueue(crawlItem{key: item.URL, target: target})
		total++
	}

	w.drive(ctx, queue, total, w.crawlOne)
}

// drive implements the DomainQueue driver loop: repeatedly dispatch
// available items, waiting on either the earliest in-flight completion or
// the queue's own recommended wait time, until everything is drained. It
// reports dispatch/completion progress to current_task so /status reflects
// how far the crawl has gotten.
func (w *Worker) drive(ctx context.Context, queue *domainqueue.Queue, total int, process func(context.Context, string, string)) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	completed := 0
	done := make(chan struct{}, 1)
	notify := func() {
		select {
		case done <- struct{}{}:
		default:
		}
	}

	for {
		if queue.Empty() {
			break
		}

		item, ok := queue.NextAvailable(time.Now())
		if ok {
			crawled := item.(crawlItem)
			active, queued := queue.Counts()
			mu.Lock()
			doneCount := completed
			mu.Unlock()
			w.reportCrawlProgress(ctx, doneCount, total, active, queued)
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer queue.MarkComplete(crawled)
				defer notify()
				process(ctx, crawled.key, crawled.target)
				mu.Lock()
				completed++
				mu.Unlock()
			}()
			continue
		}

		wait := queue.WaitTime(time.Now())
		if wait <= 0 {
			wait = 50 * time.Millisecond
		}
		select {
		case <-done:
		case <-time.After(wait):
		case <-ctx.Done():
			wg.Wait()
			return
		}
	}
	wg.Wait()

	active, queued := queue.Counts()
	w.reportCrawlProgress(ctx, completed, total, active, queued)
}

// reportCrawlProgress updates current_task with the crawl's dispatch state,
// per the observable-progress requirement around Phase 2.
func (w *Worker) reportCrawlProgress(ctx context.Context, completed, total, active, queued int) {
	task := fmt.Sprintf("Phase 2: Crawling [%d/%d] (%d active, %d queued)", completed, total, active, queued)
	if err := w.setTask(ctx, task); err != nil {
		w.logger.Error("worker: phase 2 progress update failed", "error", err)
	}
}

// crawlOne fetches from target but stores the result under key, the
// canonical feed URL, so a resolved aggregator link never creates a second
// Article row.
func (w *Worker) crawlOne(ctx context.Context, key, target string) {
	result, err := w.fetcher.Fetch(ctx, target, 0)
	if err != nil {
		outcome := fetchOutcome(err)
		w.metrics.ObserveFetch(outcome)
		if outcome == "blocked" {
			w.metrics.ObserveBlockedDomain()
		}
		w.recordError(ctx, key, store.PhaseCrawl, fetchHumanMessage(err))
		return
	}
	w.metrics.ObserveFetch("success")

	extracted, err := extract.Extract(result.Body, result.ContentType, result.FinalURL)
	if err != nil {
		w.recordError(ctx, key, store.PhaseCrawl, "Could not extract readable text from page")
		return
	}

	content := extracted.Content
	patch := store.ArticlePatch{
		URL:           key,
		OriginalTitle: &extracted.Title,
		Content:       &content,
	}
	if extracted.ImageURL != "" {
		patch.ImageURL = &extracted.ImageURL
	}
	if err := w.store.UpsertArticle(ctx, idgen.New(), patch); err != nil {
		w.recordError(ctx, key, store.PhaseCrawl, "storage failure")
		return
	}

	if err := w.store.ClearError(ctx, key); err != nil {
		w.logger.Warn("worker: clear error failed", "url", key, "error", err)
	}
}

func (w *Worker) phase2point5(ctx context.Context) {
	task := "Phase 2.5"
	if err := w.setTask(ctx, task); err != nil {
		w.logger.Error("worker: phase 2.5 set task failed", "error", err)
		return
	}

	articles, err := w.store.ArticlesWithoutImages(ctx, maxImageBackfill)
	if err != nil {
		w.logger.Warn("worker: image backfill query failed", "error", err)
		return
	}

	for _, article := range articles {
		target := article.URL
		if article.ResolvedURL != "" {
			target = article.ResolvedURL
		}

		result, err := w.fetcher.Fetch(ctx, target, 0)
		if err == nil {
			if extracted, exErr := extract.Extract(result.Body, result.ContentType, result.FinalURL); exErr == nil && extracted.ImageURL != "" {
				patch := store.ArticlePatch{URL: article.URL, ImageURL: &extracted.ImageURL}
				if err := w.store.UpsertArticle(ctx, idgen.New(), patch); err != nil {
					w.logger.Warn("worker: image backfill persist failed", "url", article.URL, "error", err)
				}
			}
		}

		select {
		case <-time.After(imageBackfillGap):
		case <-ctx.Done():
			return
		}
	}
}

func (w *Worker) phase3(ctx context.Context, cfg *store.Config) {
	task := "Phase 3"
	if err := w.setTask(ctx, task); err != nil {
		w.logger.Error("worker: phase 3 set task failed", "error", err)
		return
	}

	articles, err := w.store.Unprocessed(ctx, maxUnprocessed)
	if err != nil {
		w.logger.Warn("worker: unprocessed query failed", "error", err)
		return
	}
	// Articles still lacking usable content are left for a later crawl.
	evaluable := articles[:0]
	for _, a := range articles {
		if !a.Crawlable() {
			evaluable = append(evaluable, a)
		}
	}
	articles = evaluable

	batchSize := cfg.EvalConcurrency
	if batchSize <= 0 {
		batchSize = 5
	}

	for start := 0; start < len(articles); start += batchSize {
		end := start + batchSize
		if end > len(articles) {
			end = len(articles)
		}
		batch := articles[start:end]

		var wg sync.WaitGroup
		for _, article := range batch {
			article := article
			wg.Add(1)
			go func() {
				defer wg.Done()
				w.evaluateOne(ctx, cfg, article)
			}()
		}
		wg.Wait()
	}
}

func (w *Worker) evaluateOne(ctx context.Context, cfg *store.Config, article *store.Article) {
	content := ""
	if article.Content != nil {
		content = *article.Content
	}

	result, err := w.evaluator.Evaluate(ctx, cfg.LLMAPIKey, article.OriginalTitle, content)
	if err != nil {
		w.metrics.ObserveEval("error")
		w.recordError(ctx, article.URL, store.PhaseEval, "AI returned invalid analysis data")
		return
	}
	w.metrics.ObserveEval("success")

	novelty := int(result.Scores.Novelty)
	importance := int(result.Scores.Importance)
	reliability := int(result.Scores.Reliability)
	contextValue := int(result.Scores.ContextValue)
	thoughtProvoking := int(result.Scores.ThoughtProvoking)
	average := result.AverageScore

	patch := store.ArticlePatch{
		URL:                   article.URL,
		TranslatedTitle:       &result.TranslatedTitle,
		Summary:               &result.Summary,
		ShortSummary:          &result.ShortSummary,
		ScoreNovelty:          &novelty,
		ScoreImportance:       &importance,
		ScoreReliability:      &reliability,
		ScoreContextValue:     &contextValue,
		ScoreThoughtProvoking: &thoughtProvoking,
		AverageScore:          &average,
	}
	if err := w.store.UpsertArticle(ctx, idgen.New(), patch); err != nil {
		w.recordError(ctx, article.URL, store.PhaseEval, "storage failure")
		return
	}
	if err := w.store.ClearError(ctx, article.URL); err != nil {
		w.logger.Warn("worker: clear error failed", "url", article.URL, "error", err)
	}

	if average >= cfg.ScoreThreshold {
		link := article.URL
		if article.ResolvedURL != "" {
			link = article.ResolvedURL
		}
		payload := notify.Payload{
			TranslatedTitle: result.TranslatedTitle,
			Link:            link,
			ShortSummary:    result.ShortSummary,
			AverageScore:    average,
			Scores: notify.Scores{
				Novelty: novelty, Importance: importance, Reliability: reliability,
				ContextValue: contextValue, ThoughtProvoking: thoughtProvoking,
			},
			SourceLink: article.URL,
			ImageURL:   article.ImageURL,
		}
		if err := w.notifier.Notify(ctx, cfg.WebhookURL, payload); err != nil {
			w.logger.Warn("worker: notify failed", "url", article.URL, "error", err)
		}
	}
}

// IngestURL runs the full crawl+evaluate pipeline for one URL
// synchronously, bypassing the phased cycle but reusing the same
// Fetcher/Extractor/Evaluator/Notifier a normal cycle would. Used by the
// control surface's ingest and retry operations.
func (w *Worker) IngestURL(ctx context.Context, url string) error {
	cfg, err := w.store.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("worker: load config: %w", err)
	}

	resolved, err := w.fetcher.ResolveRedirect(ctx, url)
	if err != nil {
		w.logger.Warn("worker: ingest redirect resolution failed", "url", url, "error", err)
		resolved = url
	}
	if resolved != url {
		if patchErr := w.store.UpsertArticle(ctx, idgen.New(), store.ArticlePatch{URL: url, ResolvedURL: &resolved}); patchErr != nil {
			w.logger.Warn("worker: ingest persist resolved url failed", "url", url, "error", patchErr)
		}
	}

	target := url
	if resolved != "" {
		target = resolved
	}
	w.crawlOne(ctx, url, target)

	article, err := w.store.GetArticleByURL(ctx, url)
	if err != nil {
		return fmt.Errorf("worker: ingest reload article: %w", err)
	}
	if article == nil || article.Crawlable() {
		return fmt.Errorf("worker: ingest: crawl did not produce usable content for %s", url)
	}

	w.evaluateOne(ctx, cfg, article)
	return nil
}

func (w *Worker) recordError(ctx context.Context, url string, phase store.Phase, message string) {
	err := w.store.RecordArticleError(ctx, &store.ArticleError{
		ID:           idgen.New(),
		URL:          url,
		ErrorMessage: message,
		Phase:        phase,
	})
	if err != nil {
		w.logger.Error("worker: record article error failed", "url", url, "error", err)
	}
}

func (w *Worker) setTask(ctx context.Context, task string) error {
	return w.store.UpdateStatus(ctx, store.StatusUpdate{CurrentTask: &task})
}

// fetchHumanMessage extracts the human-facing message from a fetch error,
// falling back to its plain Error() text for anything not shaped as
// *fetch.Error.
func fetchHumanMessage(err error) string {
	var fe *fetch.Error
	if errors.As(err, &fe) {
		return fe.HumanMessage()
	}
	return err.Error()
}

// fetchOutcome reduces a fetch error to the metrics outcome label.
func fetchOutcome(err error) string {
	var fe *fetch.Error
	if errors.As(err, &fe) {
		if fe.Kind == fetch.KindBlocked || fe.Kind == fetch.KindBotProtection {
			return "blocked"
		}
		return string(fe.Kind)
	}
	return "error"
}
