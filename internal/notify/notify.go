// Package notify posts a Discord-style embed to a configured webhook URL
// when an evaluated article clears the score threshold.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rssingest/rssingest/horosafe"
)

// Scores is the five-field rubric an evaluated Article carries.
type Scores struct {
	Novelty           int
	Importance        int
	Reliability       int
	ContextValue      int
	ThoughtProvoking  int
}

// Payload describes one article worth notifying about.
type Payload struct {
	TranslatedTitle string
	Link            string
	ShortSummary    string
	AverageScore    float64
	Scores          Scores
	SourceLink      string
	ImageURL        string
}

type embed struct {
	Title       string       `json:"title"`
	URL         string       `json:"url"`
	Description string       `json:"description,omitempty"`
	Image       *embedImage  `json:"image,omitempty"`
	Fields      []embedField `json:"fields,omitempty"`
}

type embedImage struct {
	URL string `json:"url"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordPayload struct {
	Embeds []embed `json:"embeds"`
}

// Notifier posts notification payloads to a webhook URL.
type Notifier struct {
	client *http.Client
}

// New creates a Notifier. timeout bounds the outbound POST.
func New(timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{client: &http.Client{Timeout: timeout}}
}

// Notify posts p to webhookURL. A blank webhookURL is a silent no-op, per
// the notifier contract. Non-2xx responses are returned as errors for the
// caller to log; they never abort the surrounding evaluation.
func (n *Notifier) Notify(ctx context.Context, webhookURL string, p Payload) error {
	if webhookURL == "" {
		return nil
	}
	if err := horosafe.ValidateURL(webhookURL); err != nil {
		return fmt.Errorf("notify: webhook url: %w", err)
	}

	body, err := json.Marshal(discordPayload{Embeds: []embed{buildEmbed(p)}})
	if err != nil {
		return fmt.Errorf("notify: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook returned %d", resp.StatusCode)
	}
	return nil
}

func buildEmbed(p Payload) embed {
	scores := fmt.Sprintf("Avg: %.2f (N:%d I:%d R:%d C:%d T:%d)",
		p.AverageScore, p.Scores.Novelty, p.Scores.Importance,
		p.Scores.Reliability, p.Scores.ContextValue, p.Scores.ThoughtProvoking)

	fields := []embedField{
		{Name: "Scores", Value: scores, Inline: true},
	}
	if p.SourceLink != "" {
		fields = append(fields, embedField{Name: "Original source", Value: p.SourceLink})
	}

	e := embed{
		Title:       p.TranslatedTitle,
		URL:         p.Link,
		Description: p.ShortSummary,
		Fields:      fields,
	}
	if p.ImageURL != "" {
		e.Image = &embedImage{URL: p.ImageURL}
	}
	return e
}
