// internal/clients/geocoder.go
package clients

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rentalregistry/strr-backend/internal/config"
)

// STRRequirements is the per-address eligibility snapshot returned by the
// geocoding/business-rules service. It is the sole external input to the
// approval engine besides the application payload itself.
type STRRequirements struct {
	IsBusinessLicenceRequired    bool   `json:"isBusinessLicenceRequired"`
	IsStrProhibited              bool   `json:"isStrProhibited"`
	IsPrincipalResidenceRequired bool   `json:"isPrincipalResidenceRequired"`
	IsStraaExempt                bool   `json:"isStraaExempt"`
	OrganizationNm               string `json:"organizationNm"`
}

type Geocoder interface {
	GetSTRDataForAddress(oneLineAddress string) (*STRRequirements, error)
}

type GeocoderClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewGeocoderClient(cfg config.GeocoderConfig) *GeocoderClient {
	return &GeocoderClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}
}

func (c *GeocoderClient) GetSTRDataForAddress(oneLineAddress string) (*STRRequirements, error) {
	endpoint := fmt.Sprintf("%s/str-requirements?address=%s", c.baseURL, url.QueryEscape(oneLineAddress))

	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build geocoder request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoder request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	var requirements STRRequirements
	if err := json.NewDecoder(resp.Body).Decode(&requirements); err != nil {
		return nil, fmt.Errorf("failed to decode geocoder response: %w", err)
	}

	return &requirements, nil
}
