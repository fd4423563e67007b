package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"harvest_service/internal/domain/model"
)

const SourceFallbackMarket = "aikosh"

// QuoteFeedClient reads ₹/kg quotes from a plain JSON price feed. It is the
// secondary market source.
type QuoteFeedClient struct {
	baseURL string
	client  *http.Client
}

func NewQuoteFeedClient(baseURL string, timeout time.Duration) *QuoteFeedClient {
	return &QuoteFeedClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(timeout),
	}
}

func (c *QuoteFeedClient) Name() string { return SourceFallbackMarket }

type quoteFeedResponse struct {
	Quotes []model.MarketQuote `json:"quotes"`
}

func (c *QuoteFeedClient) FetchQuotes(ctx context.Context, crop string) ([]model.MarketQuote, error) {
	q := url.Values{}
	q.Set("crop", crop)

	var resp quoteFeedResponse
	if err := getJSON(ctx, c.client, SourceFallbackMarket, fmt.Sprintf("%s/prices?%s", c.baseURL, q.Encode()), nil, &resp); err != nil {
		return nil, err
	}

	quotes := make([]model.MarketQuote, 0, len(resp.Quotes))
	for i, quote := range resp.Quotes {
		if strings.TrimSpace(quote.MarketName) == "" || quote.PricePerUnit <= 0 {
			return nil, model.MalformedResponse(SourceFallbackMarket, fmt.Errorf("quote %d: missing name or price", i))
		}
		if quote.Location != nil {
			if err := quote.Location.Validate(); err != nil {
				return nil, model.MalformedResponse(SourceFallbackMarket, fmt.Errorf("quote %d: %w", i, err))
			}
		}
		quote.Source = SourceFallbackMarket
		quotes = append(quotes, quote)
	}
	return quotes, nil
}
