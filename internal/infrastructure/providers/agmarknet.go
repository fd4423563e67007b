package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"harvest_service/internal/domain/model"
)

const (
	SourceAgmarknet   = "agmarknet"
	arrivalDateLayout = "02/01/2006"
)

var (
	quintalKg = decimal.NewFromInt(100)
	ist       = time.FixedZone("IST", 5*3600+1800)
)

// AgmarknetClient reads daily mandi prices from the data.gov.in Agmarknet
// resource. Prices arrive as ₹/quintal strings.
type AgmarknetClient struct {
	baseURL  string
	resource string
	apiKey   string
	client   *http.Client
}

func NewAgmarknetClient(baseURL, resource, apiKey string, timeout time.Duration) *AgmarknetClient {
	return &AgmarknetClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		resource: resource,
		apiKey:   apiKey,
		client:   newHTTPClient(timeout),
	}
}

func (c *AgmarknetClient) Name() string { return SourceAgmarknet }

type agmarknetResponse struct {
	Records []agmarknetRecord `json:"records"`
}

type agmarknetRecord struct {
	Market      string `json:"market"`
	District    string `json:"district"`
	State       string `json:"state"`
	Commodity   string `json:"commodity"`
	ArrivalDate string `json:"arrival_date"`
	ModalPrice  string `json:"modal_price"`
}

func (c *AgmarknetClient) FetchQuotes(ctx context.Context, crop string) ([]model.MarketQuote, error) {
	q := url.Values{}
	q.Set("api-key", c.apiKey)
	q.Set("format", "json")
	q.Set("limit", "100")
	q.Set("filters[commodity]", cases.Title(language.English).String(crop))

	var resp agmarknetResponse
	if err := getJSON(ctx, c.client, SourceAgmarknet, fmt.Sprintf("%s/%s?%s", c.baseURL, c.resource, q.Encode()), nil, &resp); err != nil {
		return nil, err
	}

	quotes := make([]model.MarketQuote, 0, len(resp.Records))
	skipped := 0
	for _, rec := range resp.Records {
		quote, err := rec.toQuote()
		if err != nil {
			skipped++
			log.WithError(err).WithField("market", rec.Market).Debug("skipping agmarknet record")
			continue
		}
		quotes = append(quotes, quote)
	}
	if len(quotes) == 0 && skipped > 0 {
		return nil, model.MalformedResponse(SourceAgmarknet, fmt.Errorf("all %d records were invalid", skipped))
	}
	return quotes, nil
}

func (r agmarknetRecord) toQuote() (model.MarketQuote, error) {
	if strings.TrimSpace(r.Market) == "" {
		return model.MarketQuote{}, fmt.Errorf("record without market name")
	}
	perQuintal, err := decimal.NewFromString(strings.TrimSpace(r.ModalPrice))
	if err != nil {
		return model.MarketQuote{}, fmt.Errorf("invalid modal_price %q: %w", r.ModalPrice, err)
	}
	if !perQuintal.IsPositive() {
		return model.MarketQuote{}, fmt.Errorf("non-positive modal_price %q", r.ModalPrice)
	}
	observed, err := time.ParseInLocation(arrivalDateLayout, strings.TrimSpace(r.ArrivalDate), ist)
	if err != nil {
		return model.MarketQuote{}, fmt.Errorf("invalid arrival_date %q: %w", r.ArrivalDate, err)
	}

	perKg, _ := perQuintal.Div(quintalKg).Round(2).Float64()
	return model.MarketQuote{
		MarketName:   strings.TrimSpace(r.Market),
		PricePerUnit: perKg,
		ObservedAt:   observed,
		Source:       SourceAgmarknet,
	}, nil
}
