package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/irasus-technologies/grafana-datasource-kit/internal/models"
	"github.com/irasus-technologies/grafana-datasource-kit/internal/transport"
)

const healthPath = "/api/health"

// Health is the gateway's answer to a health probe.
type Health struct {
	Commit   string `json:"commit"`
	Database string `json:"database"`
	Version  string `json:"version"`
}

// Health probes the gateway behind baseURL with the same credential and error
// classification as data requests.
func (f *Fetcher) Health(ctx context.Context, baseURL, apiKey string) (*Health, error) {
	url := resolveURL(DeriveEndpoint(baseURL), healthPath)

	resp, err := f.transport.Do(ctx, &transport.Request{
		URL:    url,
		Method: http.MethodGet,
		Header: map[string]string{"Authorization": "Bearer " + apiKey},
	})
	if err != nil {
		return nil, classify(f.logger, err, models.Datasource{}, healthPath, url)
	}

	var h Health
	if err := json.Unmarshal(resp.Data, &h); err != nil {
		return nil, classify(f.logger, fmt.Errorf("failed to decode health response: %w", err),
			models.Datasource{}, healthPath, url)
	}
	return &h, nil
}
