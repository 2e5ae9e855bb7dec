package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	appErrors "github.com/noah-isme/edu-collective-api/pkg/errors"

	"github.com/noah-isme/edu-collective-api/internal/models"
	"github.com/noah-isme/edu-collective-api/pkg/config"
)

// Client talks to the external settlement ledger. The ledger is the
// only holder of balances; this service never books funds locally.
type Client struct {
	baseURL string
	apiKey  string
	asset   string
	http    *http.Client
}

// NewClient returns a ledger client for the configured endpoint.
func NewClient(cfg config.LedgerConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		asset:   cfg.Asset,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

// Asset returns the organization's settlement asset code.
func (c *Client) Asset() string {
	return c.asset
}

type balanceResponse struct {
	Account string `json:"account"`
	Asset   string `json:"asset"`
	Balance int64  `json:"balance"`
}

type transferRequest struct {
	Asset  string `json:"asset"`
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

type chargeRequest struct {
	Asset     string `json:"asset"`
	Payer     string `json:"payer"`
	Recipient string `json:"recipient"`
	Amount    int64  `json:"amount"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BalanceOf reads an account's balance in the organization's asset.
func (c *Client) BalanceOf(ctx context.Context, account models.Account) (int64, error) {
	endpoint := fmt.Sprintf("%s/api/v1/accounts/%s/balance?asset=%s",
		c.baseURL, url.PathEscape(string(account)), url.QueryEscape(c.asset))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "build ledger balance request")
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "ledger balance request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "read ledger balance response")
	}

	if resp.StatusCode != http.StatusOK {
		return 0, appErrors.Wrap(fmt.Errorf("ledger: %s", apiMessage(body)),
			appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "ledger balance lookup failed")
	}

	var decoded balanceResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "parse ledger balance response")
	}

	return decoded.Balance, nil
}

// Transfer moves funds between two accounts in the organization's
// asset. Used for treasury-initiated pushes.
func (c *Client) Transfer(ctx context.Context, from, to models.Account, amount int64) error {
	payload := transferRequest{Asset: c.asset, From: string(from), To: string(to), Amount: amount}
	return c.post(ctx, "/api/v1/transfers", payload)
}

// TransferAsset is Transfer with an explicit asset code. Only the
// emergency rescue path uses it.
func (c *Client) TransferAsset(ctx context.Context, asset string, from, to models.Account, amount int64) error {
	payload := transferRequest{Asset: asset, From: string(from), To: string(to), Amount: amount}
	return c.post(ctx, "/api/v1/transfers", payload)
}

// TransferFrom pulls funds from payer to recipient against a prior
// allowance held by the ledger.
func (c *Client) TransferFrom(ctx context.Context, payer, recipient models.Account, amount int64) error {
	payload := chargeRequest{Asset: c.asset, Payer: string(payer), Recipient: string(recipient), Amount: amount}
	return c.post(ctx, "/api/v1/charges", payload)
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "marshal ledger request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "build ledger request")
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrPaymentFailed.Code, appErrors.ErrPaymentFailed.Status, "ledger request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "read ledger response")
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return nil
	case resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError:
		return appErrors.Wrap(fmt.Errorf("ledger: %s", apiMessage(body)),
			appErrors.ErrPaymentFailed.Code, appErrors.ErrPaymentFailed.Status, appErrors.ErrPaymentFailed.Message)
	default:
		return appErrors.Wrap(fmt.Errorf("ledger: %s", apiMessage(body)),
			appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "ledger request failed")
	}
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func apiMessage(body []byte) string {
	var decoded errorResponse
	if err := json.Unmarshal(body, &decoded); err == nil && decoded.Message != "" {
		return decoded.Message
	}
	return string(body)
}
