package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/mediscan/mediscan-backend/internal/verification/domain"
	"github.com/mediscan/mediscan-backend/pkg/logger"
)

// RegistryClient calls a GS1-style product registry over HTTP
type RegistryClient struct {
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewRegistryClient creates a registry client. name is recorded as the
// source of every record it returns.
func NewRegistryClient(name, baseURL, apiKey string, timeout time.Duration, log *logger.Logger) *RegistryClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RegistryClient{
		name:       name,
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
	}
}

func (c *RegistryClient) Name() string { return c.name }

// registryResponse is the registry's GTIN record
type registryResponse struct {
	Found       bool   `json:"found"`
	GTIN        string `json:"gtin"`
	ProductName string `json:"product_name"`
	CompanyName string `json:"company_name"`
	Country     string `json:"country"`
}

// LookupGTIN fetches the registry record for a GTIN
func (c *RegistryClient) LookupGTIN(ctx context.Context, gtin string) (*domain.RegistryRecord, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/gtin/"+url.PathEscape(gtin), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("X-API-Key", c.apiKey)
	}

	c.logger.Debug().
		Str("gtin", gtin).
		Str("source", c.name).
		Msg("looking up GTIN")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s registry: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &domain.RegistryRecord{Found: false, GTIN: gtin, Source: c.name}, nil
	}

	if resp.StatusCode != http.StatusOK {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return nil, fmt.Errorf("%s registry lookup failed with status %d: %v", c.name, resp.StatusCode, errResp)
	}

	var body registryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	record := &domain.RegistryRecord{
		Found:       body.Found,
		GTIN:        body.GTIN,
		ProductName: body.ProductName,
		CompanyName: body.CompanyName,
		Country:     body.Country,
		Source:      c.name,
	}
	if record.GTIN == "" {
		record.GTIN = gtin
	}
	return record, nil
}
