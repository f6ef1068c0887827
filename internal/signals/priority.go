// Package signals provides HTTP clients for the external signal services the
// resolution engine consumes: the bv priority ranker and the cass
// historical-session search. Both degrade to "unavailable" on any transport
// or decode failure; the engine treats a nil signal as missing data.
package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mistakeknot/arbiter/internal/core"
)

// PriorityClient fetches agent priority/progress signals from the bv service.
type PriorityClient struct {
	BaseURL string
	HTTP    *http.Client
	APIKey  string
}

type Option func(*PriorityClient)

func WithAPIKey(key string) Option {
	return func(c *PriorityClient) {
		c.APIKey = strings.TrimSpace(key)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *PriorityClient) {
		if httpClient != nil {
			c.HTTP = httpClient
		}
	}
}

func NewPriorityClient(baseURL string, opts ...Option) *PriorityClient {
	c := &PriorityClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchPriority returns the priority signal for a bv id, or an error when
// the service is unreachable or answers with anything but 200.
func (c *PriorityClient) FetchPriority(ctx context.Context, bvID string) (*core.AgentSignal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/bv/"+url.PathEscape(bvID)+"/priority", nil)
	if err != nil {
		return nil, err
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("priority fetch failed: %d", resp.StatusCode)
	}
	var out core.AgentSignal
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
