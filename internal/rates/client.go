package rates

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"logipay/internal/config"

	"github.com/shopspring/decimal"
)

var (
	ErrNoRateFound = errors.New("no rate found for route")
)

// Quote is the freight breakdown returned by the rate-card service for one
// shipment request.
type Quote struct {
	LineAmount decimal.Decimal `json:"line_amount"`
	FuelAmount decimal.Decimal `json:"fuel_amount"`
	TaxAmount  decimal.Decimal `json:"tax_amount"`
	NetAmount  decimal.Decimal `json:"net_amount"`
}

// Request carries everything the rate card needs to price a shipment.
type Request struct {
	FranchiseID  int64           `json:"franchise_id"`
	FromPincode  string          `json:"from_pincode"`
	ToPincode    string          `json:"to_pincode"`
	ServiceType  string          `json:"service_type"`
	Weight       decimal.Decimal `json:"weight"`
	Pieces       int             `json:"pieces"`
	OtherCharges decimal.Decimal `json:"other_charges"`
}

// Calculator is the external rate-lookup collaborator. Rate-table management
// lives in another system; this side only consumes the computed breakdown.
type Calculator interface {
	CalculateRate(ctx context.Context, req Request) (*Quote, error)
}

// Client calls the rate-card service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg *config.RatesConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) CalculateRate(ctx context.Context, req Request) (*Quote, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rates/calculate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("rate lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNoRateFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rate service returned status %d", resp.StatusCode)
	}

	var quote Quote
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return nil, fmt.Errorf("failed to decode rate response: %w", err)
	}
	if quote.NetAmount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrNoRateFound
	}
	return &quote, nil
}
