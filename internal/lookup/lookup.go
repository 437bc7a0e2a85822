// Package lookup queries the external identity service that knows which
// phone numbers belong to registered drivers and clients. The lookup is
// best effort: any failure yields an empty result and the call proceeds
// unenriched.
package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/Muhiddinjon/call-center-crm/internal/metrics"
	"github.com/Muhiddinjon/call-center-crm/internal/types"
)

// maxResponseBytes caps how much of a lookup response is read.
const maxResponseBytes = 64 << 10

// Client resolves phone numbers against the identity service.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

// New creates a lookup client. An empty baseURL disables lookups; every
// call then returns the zero result immediately.
func New(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "lookup").Logger(),
	}
}

// Lookup resolves one normalized phone number. It never returns an error:
// failures are logged and produce the zero result.
func (c *Client) Lookup(ctx context.Context, phoneNumber string) types.LookupResult {
	if c.baseURL == "" {
		return types.LookupResult{}
	}

	m := metrics.Get()
	result, err := c.fetch(ctx, phoneNumber)
	m.RecordLookup(err != nil)
	if err != nil {
		c.logger.Warn().Err(err).Str("phone", phoneNumber).Msg("identity lookup failed")
		return types.LookupResult{}
	}
	return result
}

func (c *Client) fetch(ctx context.Context, phoneNumber string) (types.LookupResult, error) {
	u := c.baseURL + "/lookup?phone=" + url.QueryEscape(phoneNumber)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return types.LookupResult{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return types.LookupResult{}, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.LookupResult{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return types.LookupResult{}, fmt.Errorf("read body: %w", err)
	}

	var result types.LookupResult
	if err := json.Unmarshal(body, &result); err != nil {
		return types.LookupResult{}, fmt.Errorf("decode body: %w", err)
	}
	return result, nil
}
