package store_test

import (
	"context"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/rssingest/rssingest/dbopen"
	"github.com/rssingest/rssingest/idgen"
	"github.com/rssingest/rssingest/internal/store"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	db := dbopen.OpenMemory(t)
	if err := store.ApplySchema(db); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return store.New(db)
}

func strp(s string) *string { return &s }

func TestUpsertArticlePreservesOmittedFields(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	id := idgen.New()
	if err := s.UpsertArticle(ctx, id, store.ArticlePatch{
		URL:           "https://example.com/a",
		ResolvedURL:   strp("https://example.com/resolved"),
		OriginalTitle: strp("Original"),
	}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	// Second write omits ResolvedURL; it must be preserved.
	if err := s.UpsertArticle(ctx, idgen.New(), store.ArticlePatch{
		URL:     "https://example.com/a",
		Content: strp("some content"),
	}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := s.GetArticleByURL(ctx, "https://example.com/a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("article not found")
	}
	if got.ResolvedURL != "https://example.com/resolved" {
		t.Errorf("resolved_url not preserved: %q", got.ResolvedURL)
	}
	if got.OriginalTitle != "Original" {
		t.Errorf("original_title not preserved: %q", got.OriginalTitle)
	}
	if got.Content == nil || *got.Content != "some content" {
		t.Errorf("content not set: %v", got.Content)
	}
}

func TestCrawlableBoundary(t *testing.T) {
	exactly200 := make([]byte, 200)
	for i := range exactly200 {
		exactly200[i] = 'a'
	}
	a := &store.Article{Content: strp(string(exactly200))}
	if a.Crawlable() {
		t.Error("article with exactly 200 chars must not be crawlable")
	}
	short := strp(string(exactly200[:199]))
	a2 := &store.Article{Content: short}
	if !a2.Crawlable() {
		t.Error("article with 199 chars must be crawlable")
	}
}

func TestUnprocessedExcludesBlockedHosts(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	if err := s.UpsertArticle(ctx, idgen.New(), store.ArticlePatch{
		URL:     "https://blocked.example/a",
		Content: strp("short"),
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertArticle(ctx, idgen.New(), store.ArticlePatch{
		URL:     "https://ok.example/a",
		Content: strp("short"),
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertBlockedDomain(ctx, &store.BlockedDomain{
		ID: idgen.New(), Domain: "blocked.example", Reason: "test",
	}); err != nil {
		t.Fatal(err)
	}

	got, err := s.Unprocessed(ctx, 200)
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range got {
		if a.URL == "https://blocked.example/a" {
			t.Error("blocked host must not appear in unprocessed results")
		}
	}
}

func TestUpdateStatusPartial(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	pid := 1234
	on := true
	task := "Phase 1"
	if err := s.UpdateStatus(ctx, store.StatusUpdate{
		IsCrawling:  &on,
		CurrentTask: &task,
		WorkerPID:   &pid,
	}); err != nil {
		t.Fatal(err)
	}

	st, err := s.GetStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !st.IsCrawling || st.CurrentTask != "Phase 1" || st.WorkerPID == nil || *st.WorkerPID != pid {
		t.Fatalf("unexpected status: %+v", st)
	}

	// Partial update touching only current_task must not disturb worker_pid.
	task2 := "Phase 2"
	if err := s.UpdateStatus(ctx, store.StatusUpdate{CurrentTask: &task2}); err != nil {
		t.Fatal(err)
	}
	st2, err := s.GetStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st2.WorkerPID == nil || *st2.WorkerPID != pid {
		t.Error("worker_pid disturbed by unrelated partial update")
	}

	// Teardown clears worker_pid and is_crawling regardless of prior value.
	off := false
	idle := "Idle"
	if err := s.UpdateStatus(ctx, store.StatusUpdate{
		IsCrawling:     &off,
		CurrentTask:    &idle,
		ClearWorkerPID: true,
	}); err != nil {
		t.Fatal(err)
	}
	st3, err := s.GetStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st3.IsCrawling || st3.WorkerPID != nil {
		t.Fatalf("teardown invariant violated: %+v", st3)
	}
}

func TestClearErrorOnSuccess(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	if err := s.RecordArticleError(ctx, &store.ArticleError{
		ID: idgen.New(), URL: "https://example.com/a",
		Phase: store.PhaseCrawl, ErrorMessage: "boom",
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.ClearError(ctx, "https://example.com/a"); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetErrorByURL(ctx, "https://example.com/a")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("error not cleared: %+v", got)
	}
}
