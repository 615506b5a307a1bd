// Package llm implements the advisory slot-extraction collaborator
// against an OpenAI-compatible chat-completions endpoint. Everything here
// is best-effort: the translator must be able to proceed without it.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/veloquery/veloquery/internal/engine"
)

// ErrNoCredentials is returned when no API key is configured; callers
// treat it like any other extraction failure and fall back to heuristics.
var ErrNoCredentials = errors.New("llm: no api key configured")

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 10 * time.Second
)

// Config holds the endpoint settings.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client calls the completion endpoint with a bounded timeout and parses
// the first balanced JSON object out of the response text.
type Client struct {
	cfg  Config
	http *http.Client
	log  *zap.Logger
}

// New builds a Client. Zero-value config fields get conservative defaults.
func New(cfg Config, log *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

const systemPrompt = `You extract structured query intent from questions about a bike-share database.
Respond with a single JSON object and nothing else, using these fields:
query_type (one of scalar_aggregation, ranking_by_group, lookup, unknown),
intent, time_phrase, station_name, gender_terms (array), needs_station_name,
needs_weather, needs_distance, needs_duration, aggregate (AVG|SUM|COUNT|MIN|MAX),
measure, group_by (array), top_k (integer), sort_order (asc|desc).
Leave fields empty when the question does not mention them.`

// ExtractSlots asks the model for a slot record. Any transport error,
// non-2xx status, or unparseable payload is returned to the caller, who
// degrades to keyword heuristics.
func (c *Client) ExtractSlots(ctx context.Context, question, schemaSummary string) (engine.Slots, error) {
	if c.cfg.APIKey == "" {
		return engine.Slots{}, ErrNoCredentials
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt + "\n\n" + schemaSummary},
			{Role: "user", Content: question},
		},
	})
	if err != nil {
		return engine.Slots{}, fmt.Errorf("llm: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return engine.Slots{}, fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return engine.Slots{}, fmt.Errorf("llm: call completion endpoint: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return engine.Slots{}, fmt.Errorf("llm: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return engine.Slots{}, fmt.Errorf("llm: endpoint returned status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return engine.Slots{}, fmt.Errorf("llm: decode response envelope: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return engine.Slots{}, errors.New("llm: response contained no choices")
	}

	return ParseSlots(parsed.Choices[0].Message.Content)
}

// ParseSlots extracts the first balanced JSON object from the model output
// and unmarshals it. Models wrap JSON in prose and code fences often
// enough that parsing the whole content directly is not an option.
func ParseSlots(content string) (engine.Slots, error) {
	obj, ok := firstJSONObject(content)
	if !ok {
		return engine.Slots{}, errors.New("llm: no JSON object in response")
	}
	var slots engine.Slots
	if err := json.Unmarshal([]byte(obj), &slots); err != nil {
		return engine.Slots{}, fmt.Errorf("llm: decode slots: %w", err)
	}
	return slots, nil
}

// firstJSONObject scans for the first balanced {...} span, tracking string
// literals and escapes so braces inside values do not break the balance.
func firstJSONObject(s string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if start >= 0 {
				inString = true
			}
		case '{':
			if start < 0 {
				start = i
			}
			depth++
		case '}':
			if start < 0 {
				continue
			}
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
