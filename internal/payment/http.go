package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Provider struct {
	URL    string
	APIKey string
}

// HTTPGateway posts charges to a per-method provider endpoint. A 2xx answer
// carrying a reference is a confirmed charge.
type HTTPGateway struct {
	providers map[string]Provider
	client    *http.Client
}

func NewHTTPGateway(providers map[string]Provider, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &HTTPGateway{
		providers: providers,
		client:    &http.Client{Timeout: timeout},
	}
}

type chargeRequest struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Source      string `json:"source"`
	Description string `json:"description,omitempty"`
}

type chargeResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (g *HTTPGateway) Charge(ctx context.Context, charge Charge) (Receipt, error) {
	if err := charge.validate(); err != nil {
		return Receipt{}, err
	}
	provider, ok := g.providers[charge.Method]
	if !ok || provider.URL == "" {
		return Receipt{}, fmt.Errorf("%w: %s", ErrUnsupportedMethod, charge.Method)
	}

	body, err := json.Marshal(chargeRequest{
		Amount:      charge.AmountMinor,
		Currency:    charge.Currency,
		Source:      charge.Token,
		Description: charge.Description,
	})
	if err != nil {
		return Receipt{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, provider.URL, bytes.NewReader(body))
	if err != nil {
		return Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", charge.key())
	if provider.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+provider.APIKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("%s charge: %w", charge.Method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Receipt{}, fmt.Errorf("%s charge: read body: %w", charge.Method, err)
	}
	var decoded chargeResponse
	_ = json.Unmarshal(raw, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return Receipt{}, fmt.Errorf("%w: %s status %d %s", ErrDeclined, charge.Method, resp.StatusCode, decoded.Error)
		}
		return Receipt{}, fmt.Errorf("%s charge: unexpected status %d", charge.Method, resp.StatusCode)
	}
	if decoded.ID == "" {
		return Receipt{}, fmt.Errorf("%s charge: missing reference", charge.Method)
	}
	if decoded.Status != "" && decoded.Status != "succeeded" && decoded.Status != "completed" {
		return Receipt{}, fmt.Errorf("%w: %s status %s", ErrDeclined, charge.Method, decoded.Status)
	}
	return Receipt{Reference: decoded.ID, AmountMinor: charge.AmountMinor, Currency: charge.Currency}, nil
}
