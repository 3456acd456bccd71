// Package remote is an HTTP client for the tradebook API. It mirrors the
// ledger service surface so tools and demos can drive a running server the
// same way in-process code drives ledger.Service.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tradebook.org/internal/ledger"
)

// Client talks to a running tradebook API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithToken sets a pre-issued bearer token.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// New creates a client with sensible defaults.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx response from the API. Unwrap exposes the matching
// ledger sentinel so errors.Is keeps working across the wire.
type APIError struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %s (status %d)", e.Message, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return mapLedgerError(e.Message)
}

// mapLedgerError recovers the ledger sentinel from an error message that
// crossed the wire, or nil when none matches.
func mapLedgerError(msg string) error {
	for _, sentinel := range []error{
		ledger.ErrAccountNotFound,
		ledger.ErrEmptyOwner,
		ledger.ErrInvalidAmount,
		ledger.ErrInvalidQuantity,
		ledger.ErrInsufficientFunds,
		ledger.ErrInsufficientShares,
		ledger.ErrUnknownSymbol,
	} {
		if strings.Contains(msg, sentinel.Error()) {
			return sentinel
		}
	}
	return nil
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Authenticate obtains a bearer token for ownerID and stores it for
// subsequent calls. A server running without a signing secret answers 503;
// that counts as success with no token needed.
func (c *Client) Authenticate(ctx context.Context, ownerID string) error {
	var resp tokenResponse
	err := c.do(ctx, http.MethodPost, "/v1/auth/token", map[string]any{"owner_id": ownerID}, &resp, nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable {
			c.token = ""
			return nil
		}
		return err
	}
	c.token = resp.Token
	return nil
}

// Open creates an account for ownerID, optionally funded with initial.
func (c *Client) Open(ctx context.Context, ownerID string, initial ledger.Money) (ledger.AccountState, error) {
	body := map[string]any{"owner_id": ownerID}
	if initial.IsPositive() {
		body["initial_deposit"] = initial
	}
	var st ledger.AccountState
	if err := c.do(ctx, http.MethodPost, "/v1/accounts", body, &st, nil); err != nil {
		return ledger.AccountState{}, err
	}
	return st, nil
}

// Account fetches the current account snapshot.
func (c *Client) Account(ctx context.Context, id string) (ledger.AccountState, error) {
	var st ledger.AccountState
	if err := c.do(ctx, http.MethodGet, "/v1/accounts/"+id, nil, &st, nil); err != nil {
		return ledger.AccountState{}, err
	}
	return st, nil
}

// Deposit adds cash to the account.
func (c *Client) Deposit(ctx context.Context, id string, amount ledger.Money, idemKey string) (ledger.Transaction, error) {
	return c.cashMovement(ctx, id, "deposits", amount, idemKey)
}

// Withdraw removes cash from the account.
func (c *Client) Withdraw(ctx context.Context, id string, amount ledger.Money, idemKey string) (ledger.Transaction, error) {
	return c.cashMovement(ctx, id, "withdrawals", amount, idemKey)
}

func (c *Client) cashMovement(ctx context.Context, id, sub string, amount ledger.Money, idemKey string) (ledger.Transaction, error) {
	var tx ledger.Transaction
	err := c.do(ctx, http.MethodPost, "/v1/accounts/"+id+"/"+sub,
		map[string]any{"amount": amount}, &tx, idemHeader(idemKey))
	if err != nil {
		return ledger.Transaction{}, err
	}
	return tx, nil
}

// Buy places a market buy order.
func (c *Client) Buy(ctx context.Context, id, symbol string, quantity int64, idemKey string) (ledger.Transaction, error) {
	return c.order(ctx, id, "buy", symbol, quantity, idemKey)
}

// Sell places a market sell order.
func (c *Client) Sell(ctx context.Context, id, symbol string, quantity int64, idemKey string) (ledger.Transaction, error) {
	return c.order(ctx, id, "sell", symbol, quantity, idemKey)
}

func (c *Client) order(ctx context.Context, id, side, symbol string, quantity int64, idemKey string) (ledger.Transaction, error) {
	var tx ledger.Transaction
	err := c.do(ctx, http.MethodPost, "/v1/accounts/"+id+"/orders",
		map[string]any{"side": side, "symbol": symbol, "quantity": quantity}, &tx, idemHeader(idemKey))
	if err != nil {
		return ledger.Transaction{}, err
	}
	return tx, nil
}

// Holdings lists the account's share positions.
func (c *Client) Holdings(ctx context.Context, id string) (map[string]int64, error) {
	var resp struct {
		Holdings map[string]int64 `json:"holdings"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/accounts/"+id+"/holdings", nil, &resp, nil); err != nil {
		return nil, err
	}
	return resp.Holdings, nil
}

// TransactionsPage is one page of account history.
type TransactionsPage struct {
	Items []ledger.Transaction `json:"items"`
	Total int                  `json:"total"`
	AsOf  time.Time            `json:"as_of"`
}

// Transactions fetches a page of history, oldest first.
func (c *Client) Transactions(ctx context.Context, id string, limit, offset int) (TransactionsPage, error) {
	path := "/v1/accounts/" + id + "/transactions"
	query := make([]string, 0, 2)
	if limit > 0 {
		query = append(query, "limit="+strconv.Itoa(limit))
	}
	if offset > 0 {
		query = append(query, "offset="+strconv.Itoa(offset))
	}
	if len(query) > 0 {
		path += "?" + strings.Join(query, "&")
	}
	var page TransactionsPage
	if err := c.do(ctx, http.MethodGet, path, nil, &page, nil); err != nil {
		return TransactionsPage{}, err
	}
	return page, nil
}

// Portfolio is the valuation returned by the portfolio endpoint.
type Portfolio struct {
	AccountID      string       `json:"account_id"`
	CashBalance    ledger.Money `json:"cash_balance"`
	HoldingsValue  ledger.Money `json:"holdings_value"`
	PortfolioValue ledger.Money `json:"portfolio_value"`
	ProfitOrLoss   ledger.Money `json:"profit_or_loss"`
	AsOf           time.Time    `json:"as_of"`
}

// PortfolioValue values the account at current prices.
func (c *Client) PortfolioValue(ctx context.Context, id string) (Portfolio, error) {
	var pf Portfolio
	if err := c.do(ctx, http.MethodGet, "/v1/accounts/"+id+"/portfolio", nil, &pf, nil); err != nil {
		return Portfolio{}, err
	}
	return pf, nil
}

// Quote is a single symbol price.
type Quote struct {
	Symbol string       `json:"symbol"`
	Price  ledger.Money `json:"price"`
	AsOf   time.Time    `json:"as_of"`
}

// Quote fetches the current price for symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (Quote, error) {
	var q Quote
	if err := c.do(ctx, http.MethodGet, "/v1/quotes/"+symbol, nil, &q, nil); err != nil {
		return Quote{}, err
	}
	return q, nil
}

// Helpers -----------------------------------------------------------------

func (c *Client) do(ctx context.Context, method, path string, body, out any, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload struct {
			Error     string `json:"error"`
			RequestID string `json:"request_id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
			apiErr.Message = payload.Error
			apiErr.RequestID = payload.RequestID
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func idemHeader(key string) map[string]string {
	if key == "" {
		return nil
	}
	return map[string]string{"Idempotency-Key": key}
}

// WithTimeout returns a context with a default timeout useful for CLI tools.
func WithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(parent, d)
}
