package evaluate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func completionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization header: got %q", got)
		}
		encoded, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(encoded)
	}))
}

func TestEvaluate_Success(t *testing.T) {
	srv := completionServer(t, `{"translatedTitle":"T-ja","summary":"long","shortSummary":"S","scores":{"novelty":5,"importance":4,"reliability":4,"contextValue":3,"thoughtProvoking":5}}`)
	defer srv.Close()

	e := New(Config{Endpoint: srv.URL})
	res, err := e.Evaluate(context.Background(), "test-key", "T", "body text")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.TranslatedTitle != "T-ja" {
		t.Errorf("translated title: got %q", res.TranslatedTitle)
	}
	if res.AverageScore != 4.2 {
		t.Errorf("average score: got %v, want 4.2", res.AverageScore)
	}
}

func TestEvaluate_NonNumericNovelty(t *testing.T) {
	srv := completionServer(t, `{"translatedTitle":"T","summary":"s","shortSummary":"s","scores":{"novelty":"high","importance":4,"reliability":4,"contextValue":3,"thoughtProvoking":5}}`)
	defer srv.Close()

	e := New(Config{Endpoint: srv.URL})
	_, err := e.Evaluate(context.Background(), "test-key", "T", "body")
	if err == nil {
		t.Fatal("expected invalid_llm_response error")
	}
	var invalidErr *ErrInvalidResponse
	if !asErrInvalidResponse(err, &invalidErr) {
		t.Errorf("expected *ErrInvalidResponse, got %T: %v", err, err)
	}
}

func TestEvaluate_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"not json"}}]}`))
	}))
	defer srv.Close()

	e := New(Config{Endpoint: srv.URL})
	_, err := e.Evaluate(context.Background(), "test-key", "T", "body")
	if err == nil {
		t.Fatal("expected invalid_llm_response error")
	}
}

func TestEvaluate_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	e := New(Config{Endpoint: srv.URL})
	_, err := e.Evaluate(context.Background(), "test-key", "T", "body")
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestTruncate(t *testing.T) {
	s := strings.Repeat("a", 6000)
	got := truncate(s, maxContentChars)
	if len(got) != maxContentChars {
		t.Errorf("got %d chars, want %d", len(got), maxContentChars)
	}
}

func asErrInvalidResponse(err error, target **ErrInvalidResponse) bool {
	e, ok := err.(*ErrInvalidResponse)
	if ok {
		*target = e
	}
	return ok
}
