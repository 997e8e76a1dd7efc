// Package broadcast is the transaction-broadcast client (spec.md §4.10's
// broadcaster): an Esplora-style "submit raw tx, get back a txid or a
// mempool-conflict error" HTTP endpoint, grounded on the teacher's
// SteamClient http.Client shape.
package broadcast

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	common "github.com/coldkeep/custody-api/pkg/domain"
	inheritance_out "github.com/coldkeep/custody-api/pkg/domain/inheritance/ports/out"
)

var _ inheritance_out.Broadcaster = (*Client)(nil)

// Client posts a raw transaction to an Esplora-compatible /tx endpoint.
type Client struct {
	httpClient *http.Client
	endpoint   string
}

func NewClient(cfg common.BroadcastConfig) *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{MaxIdleConns: 10, IdleConnTimeout: 30 * time.Second},
			Timeout:   10 * time.Second,
		},
		endpoint: cfg.EndpointURL,
	}
}

// Broadcast submits rawTx and returns its txid. A response body containing
// "already" (Esplora/bitcoind's "already in mempool"/"already have
// transaction" phrasing) is mapped to common.ErrConflict rather than a
// generic error, matching spec.md §4.10's broadcast-outcome taxonomy.
func (c *Client) Broadcast(ctx context.Context, rawTx []byte) (string, error) {
	body := strings.NewReader(hex.EncodeToString(rawTx))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return "", fmt.Errorf("broadcast: build request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("broadcast: submit tx: %w", err)
	}
	defer res.Body.Close()

	respBody, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("broadcast: read response: %w", err)
	}
	text := strings.TrimSpace(string(respBody))

	if res.StatusCode == http.StatusOK {
		return text, nil
	}
	if strings.Contains(strings.ToLower(text), "already") {
		return "", common.NewErrConflict("TransactionAlreadyInMempool")
	}
	return "", fmt.Errorf("broadcast: unexpected status %d: %s", res.StatusCode, text)
}
