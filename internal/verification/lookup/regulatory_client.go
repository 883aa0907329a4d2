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

// RegulatoryClient calls a drug regulator's approval and alert API
type RegulatoryClient struct {
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewRegulatoryClient creates a regulatory client
func NewRegulatoryClient(name, baseURL, apiKey string, timeout time.Duration, log *logger.Logger) *RegulatoryClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RegulatoryClient{
		name:       name,
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
	}
}

func (c *RegulatoryClient) Name() string { return c.name }

type regulatoryResponse struct {
	Found        bool                `json:"found"`
	Manufacturer string              `json:"manufacturer"`
	Warnings     []regulatoryWarning `json:"warnings"`
}

type regulatoryWarning struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

// LookupProduct searches approvals and alerts for the product
func (c *RegulatoryClient) LookupProduct(ctx context.Context, q RegulatoryQuery) (*domain.RegulatoryRecord, error) {
	params := url.Values{}
	if q.GTIN != "" {
		params.Set("gtin", q.GTIN)
	}
	if q.ProductName != "" {
		params.Set("product", q.ProductName)
	}
	if q.Manufacturer != "" {
		params.Set("manufacturer", q.Manufacturer)
	}
	if q.BatchNumber != "" {
		params.Set("batch", q.BatchNumber)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/alerts?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("X-API-Key", c.apiKey)
	}

	c.logger.Debug().
		Str("gtin", q.GTIN).
		Str("product", q.ProductName).
		Str("source", c.name).
		Msg("searching regulatory records")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &domain.RegulatoryRecord{Found: false, Source: c.name}, nil
	}

	if resp.StatusCode != http.StatusOK {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return nil, fmt.Errorf("%s lookup failed with status %d: %v", c.name, resp.StatusCode, errResp)
	}

	var body regulatoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	record := &domain.RegulatoryRecord{
		Found:        body.Found,
		Manufacturer: body.Manufacturer,
		Source:       c.name,
	}
	for _, w := range body.Warnings {
		record.Warnings = append(record.Warnings, domain.RegulatoryWarning{
			Type:        w.Type,
			Description: w.Description,
			Severity:    w.Severity,
		})
	}
	return record, nil
}
