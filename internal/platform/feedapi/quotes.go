package feedapi

import (
	"context"
	"fmt"
	"time"

	"github.com/quantbotio/quantbot/internal/domain"
)

// QuoteClient implements domain.QuoteSource against a prediction venue's
// public quote endpoint returning {"markets": [...]} from /markets.
type QuoteClient struct {
	venue  string
	client *Client
}

// NewQuoteClient creates a QuoteClient for the named venue.
func NewQuoteClient(venue, baseURL, apiKey string) *QuoteClient {
	return &QuoteClient{
		venue:  venue,
		client: NewClient(baseURL, apiKey),
	}
}

type apiMarket struct {
	Instrument string  `json:"instrument"`
	Title      string  `json:"title"`
	Outcome    string  `json:"outcome"`
	Price      float64 `json:"price"`
	Volume     float64 `json:"volume"`
	EndDate    string  `json:"end_date"`
}

type marketsResponse struct {
	Markets []apiMarket `json:"markets"`
}

// Venue returns the venue name.
func (q *QuoteClient) Venue() string {
	return q.venue
}

// Quotes fetches the venue's current quotes. Quotes with prices outside
// (0,1) are dropped; downstream treats every price as an implied
// probability.
func (q *QuoteClient) Quotes(ctx context.Context) ([]domain.Quote, error) {
	var resp marketsResponse
	if err := q.client.getJSON(ctx, "/markets", &resp); err != nil {
		return nil, fmt.Errorf("feedapi: fetch quotes from %s: %w: %w",
			q.venue, domain.ErrSourceUnavailable, err)
	}

	quotes := make([]domain.Quote, 0, len(resp.Markets))
	for _, m := range resp.Markets {
		if m.Price <= 0 || m.Price >= 1 {
			continue
		}
		endDate, _ := time.Parse(time.RFC3339, m.EndDate)
		quotes = append(quotes, domain.Quote{
			Venue:      q.venue,
			Instrument: m.Instrument,
			Title:      m.Title,
			Outcome:    m.Outcome,
			Price:      m.Price,
			Volume:     m.Volume,
			EndDate:    endDate,
		})
	}
	return quotes, nil
}

type apiBook struct {
	YesBid float64 `json:"yes_bid"`
	YesAsk float64 `json:"yes_ask"`
	NoBid  float64 `json:"no_bid"`
	NoAsk  float64 `json:"no_ask"`
}

// Book fetches the top of book for one market.
func (q *QuoteClient) Book(ctx context.Context, instrument string) (domain.OrderBook, error) {
	var resp apiBook
	if err := q.client.getJSON(ctx, "/markets/"+instrument+"/book", &resp); err != nil {
		return domain.OrderBook{}, fmt.Errorf("feedapi: fetch book %s from %s: %w: %w",
			instrument, q.venue, domain.ErrSourceUnavailable, err)
	}
	return domain.OrderBook{
		YesBid: resp.YesBid,
		YesAsk: resp.YesAsk,
		NoBid:  resp.NoBid,
		NoAsk:  resp.NoAsk,
	}, nil
}

// Compile-time interface check.
var _ domain.QuoteSource = (*QuoteClient)(nil)
