package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"tillsync/internal/model"
)

// ErrRemoteRejected marks a non-2xx response from the cloud. The sync engine
// currently retries these exactly like transport failures; callers that want
// to distinguish can errors.Is against this sentinel.
var ErrRemoteRejected = errors.New("cloud: request rejected")

// CreateReceiptPayload is the receipt submission body. ClientReceiptID is the
// idempotency key: the cloud answers a resubmitted key with the original
// identity instead of creating a duplicate sale.
type CreateReceiptPayload struct {
	MerchantID      string              `json:"merchantId"`
	ClientReceiptID string              `json:"clientReceiptId"`
	IssuedAt        time.Time           `json:"issuedAt"`
	Status          string              `json:"status"`
	PaymentMethod   string              `json:"paymentMethod"`
	Currency        string              `json:"currency"`
	SubtotalCents   int64               `json:"subtotalCents"`
	TaxCents        int64               `json:"taxCents"`
	TotalCents      int64               `json:"totalCents"`
	Items           []model.ReceiptItem `json:"items"`
	CreatedOffline  bool                `json:"createdOffline"`
}

// CreateReceiptResponse carries the server-assigned identity.
type CreateReceiptResponse struct {
	ID              string `json:"id"`
	Number          string `json:"number"`
	ClientReceiptID string `json:"clientReceiptId"`
}

// RemoteReceipt is a receipt as the cloud reports it — authoritative for
// everything already synced.
type RemoteReceipt struct {
	ID              string              `json:"id"`
	ClientReceiptID string              `json:"clientReceiptId"`
	MerchantID      string              `json:"merchantId"`
	Number          string              `json:"number"`
	IssuedAt        time.Time           `json:"issuedAt"`
	Status          string              `json:"status"`
	PaymentMethod   string              `json:"paymentMethod"`
	Currency        string              `json:"currency"`
	SubtotalCents   int64               `json:"subtotalCents"`
	TaxCents        int64               `json:"taxCents"`
	TotalCents      int64               `json:"totalCents"`
	Items           []model.ReceiptItem `json:"items"`
	CreatedOffline  bool                `json:"createdOffline"`
}

// ReceiptQuery filters a remote receipt listing.
type ReceiptQuery struct {
	From    string
	To      string
	Status  string
	Payment string
}

// TokenProvider supplies the bearer token attached to every cloud request.
// Injected so tests can run without any identity flow.
type TokenProvider interface {
	Token() (string, error)
}

// CloudClient talks to the merchant cloud API. Every call enforces a finite
// timeout; exceeding it surfaces as a transport error and follows the same
// retry path as any other network failure.
type CloudClient struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenProvider
}

func NewCloudClient(baseURL string, timeout time.Duration, tokens TokenProvider) *CloudClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &CloudClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
	}
}

// SubmitReceipt posts one receipt. Both 200 (duplicate replay) and 201
// (first accept) are success: the cloud returns the same identity either way.
func (c *CloudClient) SubmitReceipt(ctx context.Context, payload CreateReceiptPayload) (*CreateReceiptResponse, error) {
	var result CreateReceiptResponse
	if err := c.do(ctx, http.MethodPost, "/receipts", payload.MerchantID, payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListProducts fetches the merchant catalog, optionally only records changed
// since the watermark.
func (c *CloudClient) ListProducts(ctx context.Context, merchantID string, updatedSince *time.Time) ([]model.Product, error) {
	path := "/products"
	if updatedSince != nil {
		path += "?updatedSince=" + url.QueryEscape(updatedSince.UTC().Format(time.RFC3339))
	}
	var result struct {
		Products []model.Product `json:"products"`
	}
	if err := c.do(ctx, http.MethodGet, path, merchantID, nil, &result); err != nil {
		return nil, err
	}
	return result.Products, nil
}

// ListReceipts fetches the authoritative receipt history for a merchant.
func (c *CloudClient) ListReceipts(ctx context.Context, merchantID string, q ReceiptQuery) ([]RemoteReceipt, error) {
	params := url.Values{}
	if q.From != "" {
		params.Set("from", q.From)
	}
	if q.To != "" {
		params.Set("to", q.To)
	}
	if q.Status != "" {
		params.Set("status", q.Status)
	}
	if q.Payment != "" {
		params.Set("payment", q.Payment)
	}
	path := "/receipts"
	if qs := params.Encode(); qs != "" {
		path += "?" + qs
	}
	var result struct {
		Receipts []RemoteReceipt `json:"receipts"`
	}
	if err := c.do(ctx, http.MethodGet, path, merchantID, nil, &result); err != nil {
		return nil, err
	}
	return result.Receipts, nil
}

// Health probes the cloud without authentication. Used by the connectivity
// prober.
func (c *CloudClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("cloud: create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cloud: unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("cloud: health returned %d: %w", resp.StatusCode, ErrRemoteRejected)
	}
	return nil
}

func (c *CloudClient) do(ctx context.Context, method, path, merchantID string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("cloud: marshal payload: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("cloud: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if merchantID != "" {
		req.Header.Set("X-Merchant-Id", merchantID)
	}
	if c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			return fmt.Errorf("cloud: credentials: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cloud: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("cloud: %s %s returned %d: %w", method, path, resp.StatusCode, ErrRemoteRejected)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("cloud: decode response: %w", err)
	}
	return nil
}
