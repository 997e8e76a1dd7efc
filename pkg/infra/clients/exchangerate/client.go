// Package exchangerate is the fiat conversion client Mobile-Pay's spending
// limit and transaction-verification threshold checks compare a
// transaction's net-send against (spec.md §4.10 step 7), grounded on the
// broadcast client's http.Client shape.
package exchangerate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	common "github.com/coldkeep/custody-api/pkg/domain"
)

// Client fetches a BTC/fiat price from a remote quote provider and converts
// a satoshi amount into the fiat currency's minor units (cents).
type Client struct {
	httpClient *http.Client
	endpoint   string
}

func NewClient(cfg common.MobilePayConfig) *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{MaxIdleConns: 10, IdleConnTimeout: 30 * time.Second},
			Timeout:   5 * time.Second,
		},
		endpoint: cfg.ExchangeRateProviderURL,
	}
}

type quoteResponse struct {
	// FiatPerBTC is the price of one whole bitcoin in the requested
	// currency's minor units (e.g. USD cents per BTC).
	FiatPerBTC int64 `json:"fiat_minor_units_per_btc"`
}

const satsPerBTC = 100_000_000

// ConvertSatsToFiat converts amountSats into currency's minor units using
// the provider's current quote.
func (c *Client) ConvertSatsToFiat(ctx context.Context, amountSats int64, currency string) (int64, error) {
	if amountSats == 0 {
		return 0, nil
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return 0, fmt.Errorf("exchangerate: parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("currency", currency)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("exchangerate: build request: %w", err)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("exchangerate: fetch quote: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("exchangerate: unexpected status %d", res.StatusCode)
	}

	var quote quoteResponse
	if err := json.NewDecoder(res.Body).Decode(&quote); err != nil {
		return 0, fmt.Errorf("exchangerate: decode quote: %w", err)
	}
	if quote.FiatPerBTC <= 0 {
		return 0, fmt.Errorf("exchangerate: provider returned non-positive quote")
	}

	return (amountSats * quote.FiatPerBTC) / satsPerBTC, nil
}
