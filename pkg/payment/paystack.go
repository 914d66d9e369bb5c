package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

var ErrTransactionNotFound = errors.New("paystack: transaction not found")

// Transaction is the part of a Paystack transaction record used for purchase credits.
type Transaction struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"` // kobo
	Currency  string `json:"currency"`
	Customer  struct {
		Email string `json:"email"`
	} `json:"customer"`
}

func (t *Transaction) Succeeded() bool {
	return t.Status == "success"
}

// PaystackClient verifies transactions against the Paystack API.
type PaystackClient struct {
	BaseURL   string
	SecretKey string
	client    *http.Client
}

func NewPaystackClient(baseURL, secretKey string) *PaystackClient {
	if baseURL == "" {
		baseURL = "https://api.paystack.co"
	}
	return &PaystackClient{
		BaseURL:   baseURL,
		SecretKey: secretKey,
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

type verifyResp struct {
	Status  bool         `json:"status"`
	Message string       `json:"message"`
	Data    *Transaction `json:"data"`
}

// VerifyTransaction fetches the transaction for reference.
func (p *PaystackClient) VerifyTransaction(ctx context.Context, reference string) (*Transaction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.SecretKey)
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrTransactionNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("paystack verify: %d %s", resp.StatusCode, string(body))
	}
	var out verifyResp
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if !out.Status || out.Data == nil {
		return nil, fmt.Errorf("paystack verify: %s", out.Message)
	}
	return out.Data, nil
}
