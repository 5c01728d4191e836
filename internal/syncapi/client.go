package syncapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// Envelope is the uniform response wrapper every endpoint of the head-office
// API uses.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Remote master-data records as served by the pull endpoints.

type RemoteUnit struct {
	ID             string          `json:"id"`
	UnitCode       string          `json:"unitCode"`
	UnitName       string          `json:"unitName"`
	ConversionRate decimal.Decimal `json:"conversionRate"`
	Barcode        string          `json:"barcode"`
	IsBaseUnit     bool            `json:"isBaseUnit"`
}

type RemotePrice struct {
	ID            string          `json:"id"`
	UnitID        string          `json:"unitId"`
	PriceLevel    int             `json:"priceLevel"`
	Price         decimal.Decimal `json:"price"`
	EffectiveDate time.Time       `json:"effectiveDate"`
}

type RemoteProduct struct {
	ID       string        `json:"id"`
	SKU      string        `json:"sku"`
	Name     string        `json:"name"`
	NameEn   string        `json:"nameEn"`
	NameLo   string        `json:"nameLo"`
	Category string        `json:"category"`
	IsActive bool          `json:"isActive"`
	Units    []RemoteUnit  `json:"units"`
	Prices   []RemotePrice `json:"prices"`
}

type RemoteCustomer struct {
	ID          string           `json:"id"`
	Code        string           `json:"code"`
	Name        string           `json:"name"`
	Phone       string           `json:"phone"`
	Email       string           `json:"email"`
	Address     string           `json:"address"`
	PriceLevel  int              `json:"priceLevel"`
	CreditLimit *decimal.Decimal `json:"creditLimit"`
	IsActive    bool             `json:"isActive"`
}

type RemoteEmployee struct {
	ID       string `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	IsActive bool   `json:"isActive"`
}

type RemoteBankAccount struct {
	ID            string `json:"id"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	BankName      string `json:"bankName"`
	AccountNumber string `json:"accountNumber"`
	AccountName   string `json:"accountName"`
	IsActive      bool   `json:"isActive"`
}

// Client talks to the head-office sync API. Every request carries the API key
// and terminal identifier headers; responses use the Envelope wrapper.
type Client struct {
	baseURL    string
	apiKey     string
	terminalID string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey, terminalID string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		terminalID: terminalID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*Envelope, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	if c.terminalID != "" {
		req.Header.Set("X-Terminal-ID", c.terminalID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", path, err)
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid response from %s (status %d): %w", path, resp.StatusCode, err)
	}
	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = fmt.Sprintf("server returned status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("%s: %s", path, msg)
	}
	return &env, nil
}

// TestConnection probes /health. A false return means the server is
// unreachable or answered with a failure envelope.
func (c *Client) TestConnection(ctx context.Context) bool {
	_, err := c.do(ctx, http.MethodGet, "/health", nil)
	return err == nil
}

func fetchList[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	env, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return nil, fmt.Errorf("invalid payload from %s: %w", path, err)
	}
	return out, nil
}

func (c *Client) FetchProducts(ctx context.Context) ([]RemoteProduct, error) {
	return fetchList[RemoteProduct](ctx, c, "/products")
}

func (c *Client) FetchCustomers(ctx context.Context) ([]RemoteCustomer, error) {
	return fetchList[RemoteCustomer](ctx, c, "/customers")
}

func (c *Client) FetchEmployees(ctx context.Context) ([]RemoteEmployee, error) {
	return fetchList[RemoteEmployee](ctx, c, "/employees")
}

func (c *Client) FetchBankAccounts(ctx context.Context) ([]RemoteBankAccount, error) {
	return fetchList[RemoteBankAccount](ctx, c, "/bank-accounts")
}

// SendSales pushes one batch of transaction headers and line items in the
// legacy DOCINFO/SKUMOVE shape. The server acknowledges the whole batch or
// none of it.
func (c *Client) SendSales(ctx context.Context, docInfos []DocInfo, skuMoves []SkuMove) error {
	payload := map[string]interface{}{
		"docInfo": docInfos,
		"skuMove": skuMoves,
	}
	_, err := c.do(ctx, http.MethodPost, "/sync/sales", payload)
	return err
}
