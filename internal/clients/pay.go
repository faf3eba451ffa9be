// internal/clients/pay.go
package clients

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rentalregistry/strr-backend/internal/config"
)

// Invoice is the pay-api's view of a fee owed for an application.
type Invoice struct {
	ID             int64           `json:"id"`
	StatusCode     string          `json:"statusCode"`
	PaymentAccount string          `json:"paymentAccount"`
	Total          decimal.Decimal `json:"total"`
}

// PayAPI drives the PAYMENT_DUE and PAID transitions. Implemented over HTTP
// against the payments service; stubbed in tests.
type PayAPI interface {
	CreateInvoice(accountID string, filingType string, amount decimal.Decimal) (*Invoice, error)
	GetInvoice(invoiceID int64) (*Invoice, error)
}

type PayClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewPayClient(cfg config.PayConfig) *PayClient {
	return &PayClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}
}

func (c *PayClient) CreateInvoice(accountID string, filingType string, amount decimal.Decimal) (*Invoice, error) {
	payload := map[string]interface{}{
		"accountId":  accountID,
		"filingType": filingType,
		"total":      amount,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal invoice request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/payment-requests", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build invoice request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Account-Id", accountID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pay-api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("pay-api returned status %d", resp.StatusCode)
	}

	var invoice Invoice
	if err := json.NewDecoder(resp.Body).Decode(&invoice); err != nil {
		return nil, fmt.Errorf("failed to decode invoice response: %w", err)
	}

	return &invoice, nil
}

func (c *PayClient) GetInvoice(invoiceID int64) (*Invoice, error) {
	url := fmt.Sprintf("%s/payment-requests/%d", c.baseURL, invoiceID)

	resp, err := c.httpClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("pay-api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pay-api returned status %d", resp.StatusCode)
	}

	var invoice Invoice
	if err := json.NewDecoder(resp.Body).Decode(&invoice); err != nil {
		return nil, fmt.Errorf("failed to decode invoice response: %w", err)
	}

	return &invoice, nil
}
