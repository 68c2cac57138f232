package feedapi

import (
	"context"
	"fmt"
	"time"

	"github.com/quantbotio/quantbot/internal/domain"
)

// PickClient implements domain.SportsPickSource against a picks API that
// returns {"picks": [...]} from its /picks endpoint.
type PickClient struct {
	client *Client
}

// NewPickClient creates a PickClient.
func NewPickClient(baseURL, apiKey string) *PickClient {
	return &PickClient{client: NewClient(baseURL, apiKey)}
}

type apiPick struct {
	League     string  `json:"league"`
	Event      string  `json:"event"`
	Pick       string  `json:"pick"`
	Confidence float64 `json:"confidence"`
	Odds       float64 `json:"odds"`
	StartTime  string  `json:"start_time"`
}

type picksResponse struct {
	Picks []apiPick `json:"picks"`
}

// Picks fetches today's picks.
func (p *PickClient) Picks(ctx context.Context) ([]domain.SportsPick, error) {
	var resp picksResponse
	if err := p.client.getJSON(ctx, "/picks", &resp); err != nil {
		return nil, fmt.Errorf("feedapi: fetch picks: %w: %w", domain.ErrSourceUnavailable, err)
	}

	picks := make([]domain.SportsPick, 0, len(resp.Picks))
	for _, a := range resp.Picks {
		start, _ := time.Parse(time.RFC3339, a.StartTime)
		picks = append(picks, domain.SportsPick{
			League:     a.League,
			Event:      a.Event,
			Pick:       a.Pick,
			Confidence: a.Confidence,
			Odds:       a.Odds,
			StartTime:  start,
		})
	}
	return picks, nil
}

// Compile-time interface check.
var _ domain.SportsPickSource = (*PickClient)(nil)
