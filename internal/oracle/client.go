// Package oracle implements the advisory oracle against an OpenAI-compatible
// chat-completions API. The oracle is strictly advisory: every failure mode,
// from transport errors to unparsable answers, surfaces as
// domain.ErrOracleUnavailable so callers fall back to their deterministic
// ordering.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/quantbotio/quantbot/internal/domain"
)

// Config holds the oracle endpoint settings.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.openai.com/v1".
	BaseURL string
	ApiKey  string
	Model   string
	Timeout time.Duration
}

// Client implements domain.AdvisoryOracle.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New creates an oracle client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
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

const systemPrompt = `You rank trading opportunities. Reply with ONLY a JSON array of
opportunity IDs, best first, containing exactly the IDs you were given.`

// Advise asks the model to reorder the candidate slate. The returned slice
// contains exactly the given candidates in the model's preferred order. Any
// failure returns domain.ErrOracleUnavailable.
func (c *Client) Advise(ctx context.Context, candidates []domain.RankedOpportunity) ([]domain.RankedOpportunity, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	prompt, err := buildPrompt(candidates)
	if err != nil {
		return nil, fmt.Errorf("oracle: build prompt: %w", domain.ErrOracleUnavailable)
	}

	raw, err := c.complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("oracle: %v: %w", err, domain.ErrOracleUnavailable)
	}

	order, ok := parseIDList(raw)
	if !ok {
		return nil, fmt.Errorf("oracle: unparsable answer: %w", domain.ErrOracleUnavailable)
	}

	byID := make(map[string]domain.RankedOpportunity, len(candidates))
	for _, cand := range candidates {
		byID[cand.Opportunity.ID] = cand
	}
	if len(order) != len(candidates) {
		return nil, fmt.Errorf("oracle: answer listed %d of %d candidates: %w",
			len(order), len(candidates), domain.ErrOracleUnavailable)
	}

	out := make([]domain.RankedOpportunity, 0, len(order))
	seen := make(map[string]bool, len(order))
	for _, id := range order {
		cand, ok := byID[id]
		if !ok || seen[id] {
			return nil, fmt.Errorf("oracle: answer contained unknown or duplicate id: %w",
				domain.ErrOracleUnavailable)
		}
		seen[id] = true
		out = append(out, cand)
	}
	return out, nil
}

func buildPrompt(candidates []domain.RankedOpportunity) (string, error) {
	type summary struct {
		ID            string  `json:"id"`
		Title         string  `json:"title"`
		Type          string  `json:"type"`
		Confidence    float64 `json:"confidence"`
		ExpectedValue float64 `json:"expected_value"`
		Risk          string  `json:"risk"`
		Score         float64 `json:"score"`
	}

	summaries := make([]summary, 0, len(candidates))
	for _, c := range candidates {
		o := c.Opportunity
		summaries = append(summaries, summary{
			ID:            o.ID,
			Title:         o.Title,
			Type:          string(o.Type),
			Confidence:    o.Confidence,
			ExpectedValue: o.ExpectedValue,
			Risk:          string(o.Risk),
			Score:         c.Score,
		})
	}
	buf, err := json.Marshal(summaries)
	if err != nil {
		return "", err
	}
	return "Rank these opportunities:\n" + string(buf), nil
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	reqBody, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}

	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.ApiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// parseIDList extracts a JSON string array from the model's answer, tolerant
// of surrounding prose or code fences.
func parseIDList(raw string) ([]string, bool) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil, false
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw[start:end+1]), &ids); err != nil {
		return nil, false
	}
	if len(ids) == 0 {
		return nil, false
	}
	return ids, true
}

// Compile-time interface check.
var _ domain.AdvisoryOracle = (*Client)(nil)
