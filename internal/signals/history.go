package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mistakeknot/arbiter/internal/core"
)

// HistoryClient queries the cass historical-session search for outcome
// statistics over a resource set. A client with an empty base URL reports
// itself disabled.
type HistoryClient struct {
	BaseURL string
	HTTP    *http.Client
	APIKey  string
}

func NewHistoryClient(baseURL string, opts ...Option) *HistoryClient {
	pc := NewPriorityClient(baseURL, opts...)
	return &HistoryClient{BaseURL: pc.BaseURL, HTTP: pc.HTTP, APIKey: pc.APIKey}
}

// Enabled reports whether history lookups are configured at all.
func (c *HistoryClient) Enabled() bool { return c.BaseURL != "" }

// FetchHistory returns outcome statistics for conflicts over similar
// resources, or an error when the service is unreachable.
func (c *HistoryClient) FetchHistory(ctx context.Context, resources []core.ResourceRef) (*core.HistorySignal, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("history source disabled")
	}
	values := url.Values{}
	paths := make([]string, 0, len(resources))
	for _, r := range resources {
		paths = append(paths, r.Path)
	}
	values.Set("paths", strings.Join(paths, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/cass/history?"+values.Encode(), nil)
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
		return nil, fmt.Errorf("history fetch failed: %d", resp.StatusCode)
	}
	var out core.HistorySignal
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
