package feedapi

import (
	"context"
	"fmt"
	"time"

	"github.com/quantbotio/quantbot/internal/domain"
)

// NewsClient implements domain.NewsSource against a headlines API that
// returns {"articles": [...]} from its /headlines endpoint.
type NewsClient struct {
	client *Client
}

// NewNewsClient creates a NewsClient.
func NewNewsClient(baseURL, apiKey string) *NewsClient {
	return &NewsClient{client: NewClient(baseURL, apiKey)}
}

type apiArticle struct {
	Headline    string `json:"headline"`
	Source      string `json:"source"`
	PublishedAt string `json:"published_at"`
}

type newsResponse struct {
	Articles []apiArticle `json:"articles"`
}

// Headlines fetches recent headlines.
func (n *NewsClient) Headlines(ctx context.Context) ([]domain.NewsItem, error) {
	var resp newsResponse
	if err := n.client.getJSON(ctx, "/headlines", &resp); err != nil {
		return nil, fmt.Errorf("feedapi: fetch headlines: %w: %w", domain.ErrSourceUnavailable, err)
	}

	items := make([]domain.NewsItem, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		published, _ := time.Parse(time.RFC3339, a.PublishedAt)
		items = append(items, domain.NewsItem{
			Headline:    a.Headline,
			Source:      a.Source,
			PublishedAt: published,
		})
	}
	return items, nil
}

// Compile-time interface check.
var _ domain.NewsSource = (*NewsClient)(nil)
