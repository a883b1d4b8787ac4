package elexon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dmounsey/gridlight/internal/domain"
)

// Client fetches the grid operator's fuel-mix feeds. It returns raw
// payload bytes only; parsing lives in the feed module. Every failure
// surfaces as a *domain.FetchError so callers can trigger the cache
// fallback without inspecting transport details.
type Client struct {
	client    *http.Client
	log       zerolog.Logger
	legacyURL string
	streamURL string
}

// NewClient creates a feed client with a bounded request timeout
func NewClient(legacyURL, streamURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		client: &http.Client{
			Timeout: timeout,
		},
		log:       log.With().Str("client", "elexon").Logger(),
		legacyURL: legacyURL,
		streamURL: streamURL,
	}
}

// FetchLegacy retrieves the fixed-column instantaneous generation feed
func (c *Client) FetchLegacy(ctx context.Context) ([]byte, error) {
	return c.get(ctx, c.legacyURL, "text/plain")
}

// FetchStream retrieves the streaming JSON generation feed
func (c *Client) FetchStream(ctx context.Context) ([]byte, error) {
	return c.get(ctx, c.streamURL, "application/json")
}

// HasLegacy reports whether a legacy endpoint is configured
func (c *Client) HasLegacy() bool { return c.legacyURL != "" }

// HasStream reports whether a streaming endpoint is configured
func (c *Client) HasStream() bool { return c.streamURL != "" }

func (c *Client) get(ctx context.Context, rawURL, accept string) ([]byte, error) {
	if rawURL == "" {
		return nil, &domain.FetchError{URL: rawURL, Err: errors.New("no endpoint configured")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &domain.FetchError{URL: rawURL, Err: err}
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", "gridlight/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &domain.FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Read a little of the body for the log, then discard.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &domain.FetchError{
			URL: rawURL,
			Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(snippet)),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.FetchError{URL: rawURL, Err: err}
	}

	c.log.Debug().
		Str("url", rawURL).
		Int("bytes", len(body)).
		Msg("Fetched feed payload")

	return body, nil
}
