package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNotify_Success(t *testing.T) {
	var received discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := New(0)
	err := n.Notify(context.Background(), srv.URL, Payload{
		TranslatedTitle: "T-ja",
		Link:            "https://example.com/a",
		ShortSummary:    "S",
		AverageScore:    4.2,
		Scores: Scores{
			Novelty: 5, Importance: 4, Reliability: 4, ContextValue: 3, ThoughtProvoking: 5,
		},
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(received.Embeds) != 1 {
		t.Fatalf("expected 1 embed, got %d", len(received.Embeds))
	}
	e := received.Embeds[0]
	if e.Title != "T-ja" {
		t.Errorf("title: got %q", e.Title)
	}
	wantScores := "Avg: 4.20 (N:5 I:4 R:4 C:3 T:5)"
	if e.Fields[0].Value != wantScores {
		t.Errorf("scores field: got %q, want %q", e.Fields[0].Value, wantScores)
	}
}

func TestNotify_BlankURLIsNoop(t *testing.T) {
	n := New(0)
	if err := n.Notify(context.Background(), "", Payload{}); err != nil {
		t.Errorf("expected nil error for blank webhook url, got %v", err)
	}
}

func TestNotify_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := New(0)
	err := n.Notify(context.Background(), srv.URL, Payload{TranslatedTitle: "T", Link: "https://example.com/a"})
	if err == nil {
		t.Fatal("expected error for non-2xx webhook response")
	}
}
