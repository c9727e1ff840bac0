// Package evaluate sends article text to an LLM chat-completion endpoint
// and parses the structured scoring response it returns.
package evaluate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rssingest/rssingest/horosafe"
)

// DefaultEndpoint is used when Config.Endpoint is empty.
const DefaultEndpoint = "https://api.openai.com/v1/chat/completions"

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gpt-4o-mini"

const maxContentChars = 5000
const maxResponseBody = 1 << 20

// Timeout is the fixed LLM call budget per spec.
const Timeout = 30 * time.Second

// Config configures an Evaluator. Endpoint and Model are deployment
// constants, not per-source settings; APIKey comes from the Config
// singleton row at call time.
type Config struct {
	Endpoint string
	Model    string
}

func (c Config) defaults() Config {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	return c
}

// Scores is the five-field 1..5 rubric the LLM must return.
type Scores struct {
	Novelty          float64 `json:"novelty"`
	Importance       float64 `json:"importance"`
	Reliability      float64 `json:"reliability"`
	ContextValue     float64 `json:"contextValue"`
	ThoughtProvoking float64 `json:"thoughtProvoking"`
}

// Result is the Evaluator's strict-shape parsed-and-validated output.
type Result struct {
	TranslatedTitle string
	Summary         string
	ShortSummary    string
	Scores          Scores
	AverageScore    float64
}

// evaluationResponse is the exact JSON shape requested of the model. It is
// decoded into this typed struct rather than into a bare map, so a field of
// the wrong JSON type surfaces as a decode error; absent fields decode to
// their zero values.
type evaluationResponse struct {
	TranslatedTitle string `json:"translatedTitle"`
	Summary         string `json:"summary"`
	ShortSummary    string `json:"shortSummary"`
	Scores          struct {
		Novelty          json.Number `json:"novelty"`
		Importance       json.Number `json:"importance"`
		Reliability      json.Number `json:"reliability"`
		ContextValue     json.Number `json:"contextValue"`
		ThoughtProvoking json.Number `json:"thoughtProvoking"`
	} `json:"scores"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletion struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ErrInvalidResponse reports a malformed or shape-mismatched LLM reply.
type ErrInvalidResponse struct {
	Reason string
}

func (e *ErrInvalidResponse) Error() string {
	return "evaluate: invalid_llm_response: " + e.Reason
}

// Evaluator scores one article at a time against the configured LLM.
type Evaluator struct {
	cfg    Config
	client *http.Client
}

// New creates an Evaluator with a client bounded by Timeout.
func New(cfg Config) *Evaluator {
	return &Evaluator{
		cfg:    cfg.defaults(),
		client: &http.Client{Timeout: Timeout},
	}
}

// Evaluate sends title and content (truncated to the first 5000 characters)
// to the configured chat-completion endpoint using apiKey, and returns the
// parsed, validated score result. Malformed JSON, a field of the wrong JSON
// type, or a missing or non-numeric scores.novelty yields
// *ErrInvalidResponse; the other four scores count as 0 when absent.
func (e *Evaluator) Evaluate(ctx context.Context, apiKey, title, content string) (*Result, error) {
	if err := horosafe.ValidateURL(e.cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("evaluate: endpoint: %w", err)
	}

	prompt := buildPrompt(title, truncate(content, maxContentChars))
	reqBody := chatRequest{
		Model: e.cfg.Model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	encoded, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("evaluate: marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("evaluate: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("evaluate: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := horosafe.LimitedReadAll(resp.Body, maxResponseBody)
	if err != nil {
		return nil, fmt.Errorf("evaluate: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("evaluate: endpoint returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	return parseCompletion(body)
}

func parseCompletion(body []byte) (*Result, error) {
	var completion chatCompletion
	if err := json.Unmarshal(body, &completion); err != nil {
		return nil, &ErrInvalidResponse{Reason: "malformed completion envelope: " + err.Error()}
	}
	if len(completion.Choices) == 0 {
		return nil, &ErrInvalidResponse{Reason: "no choices in completion"}
	}

	var out evaluationResponse
	dec := json.NewDecoder(strings.NewReader(completion.Choices[0].Message.Content))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, &ErrInvalidResponse{Reason: "malformed scoring JSON: " + err.Error()}
	}

	novelty, err := out.Scores.Novelty.Float64()
	if err != nil {
		return nil, &ErrInvalidResponse{Reason: "scores.novelty is not numeric"}
	}
	importance, _ := out.Scores.Importance.Float64()
	reliability, _ := out.Scores.Reliability.Float64()
	contextValue, _ := out.Scores.ContextValue.Float64()
	thoughtProvoking, _ := out.Scores.ThoughtProvoking.Float64()

	scores := Scores{
		Novelty:          novelty,
		Importance:       importance,
		Reliability:      reliability,
		ContextValue:     contextValue,
		ThoughtProvoking: thoughtProvoking,
	}

	return &Result{
		TranslatedTitle: out.TranslatedTitle,
		Summary:         out.Summary,
		ShortSummary:    out.ShortSummary,
		Scores:          scores,
		AverageScore: (scores.Novelty + scores.Importance + scores.Reliability +
			scores.ContextValue + scores.ThoughtProvoking) / 5,
	}, nil
}

func buildPrompt(title, content string) string {
	return fmt.Sprintf(`You are evaluating a news article for a curation feed.

Title: %s

Content:
%s

Respond with a JSON object with exactly these fields:
- translatedTitle: the title translated to Japanese
- summary: a multi-paragraph summary
- shortSummary: a one-sentence summary
- scores: an object with integer fields novelty, importance, reliability, contextValue, thoughtProvoking, each 1-5`,
		title, content)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
