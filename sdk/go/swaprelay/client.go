// Package swaprelay is the Go client of the swaprelayd HTTP API.
package swaprelay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client.
const DefaultHTTPTimeout = 15 * time.Second

// Client wraps the HTTP interactions with the SwapRelay REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// SwapRequest is a relay call. Value is the attached native amount in wei
// and Payload the 0x-prefixed 1inch swap calldata.
type SwapRequest struct {
	Caller  string `json:"caller"`
	Value   string `json:"value"`
	Payload string `json:"payload"`
}

// SwapResult is the settlement of a successful call. Amounts are decimal strings.
type SwapResult struct {
	TxID         string `json:"tx_id"`
	GrossOutput  string `json:"gross_output"`
	FeeAmount    string `json:"fee_amount"`
	NetOutput    string `json:"net_output"`
	NativeRefund string `json:"native_refund"`
	InputRefund  string `json:"input_refund"`
}

// PreflightReport tells whether a call would get past intake.
type PreflightReport struct {
	Caller        string   `json:"caller"`
	InputAsset    string   `json:"input_asset"`
	NativeInput   bool     `json:"native_input"`
	Required      *big.Int `json:"required"`
	Value         *big.Int `json:"value"`
	Balance       *big.Int `json:"balance"`
	Allowance     *big.Int `json:"allowance,omitempty"`
	NativeBalance *big.Int `json:"native_balance"`
	Problems      []string `json:"problems,omitempty"`
	Notes         []string `json:"notes,omitempty"`
}

// Ready reports whether the preflight found no problem.
func (r PreflightReport) Ready() bool { return len(r.Problems) == 0 }

// Settlement is a persisted settlement record.
type Settlement struct {
	ID           string `json:"id"`
	TxID         string `json:"tx_id"`
	Relay        string `json:"relay"`
	Caller       string `json:"caller"`
	InputAsset   string `json:"input_asset"`
	OutputAsset  string `json:"output_asset"`
	InputAmount  string `json:"input_amount"`
	GrossOutput  string `json:"gross_output"`
	FeeAmount    string `json:"fee_amount"`
	NetOutput    string `json:"net_output"`
	NativeRefund string `json:"native_refund"`
	InputRefund  string `json:"input_refund"`
	ZeroOutput   bool   `json:"zero_output"`
	CreatedAt    int64  `json:"created_at"`
}

// RelayInfo is the fixed configuration of the relay.
type RelayInfo struct {
	Address        string `json:"address"`
	Router         string `json:"router"`
	FeeRecipient   string `json:"fee_recipient"`
	FeeBps         uint64 `json:"fee_bps"`
	NativeSentinel string `json:"native_sentinel"`
	State          string `json:"state"`
}

// Balance is a holder's balance of one asset.
type Balance struct {
	Address string `json:"address"`
	Asset   string `json:"asset"`
	Balance string `json:"balance"`
}

// APIError represents server side validation, relay or internal errors.
type APIError struct {
	StatusCode int
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("swaprelay api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("swaprelay api error (%d): %s", e.StatusCode, e.Message)
}

// Reason returns the router revert reason, if any.
func (e *APIError) Reason() string {
	if e == nil {
		return ""
	}
	return e.Metadata["reason"]
}

// NewClient instantiates a client for the SwapRelay API. When httpClient is
// nil, a default client with a sensible timeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// Swap submits a relay call.
func (c *Client) Swap(ctx context.Context, req SwapRequest) (SwapResult, error) {
	var out SwapResult
	if err := c.post(ctx, "/api/v1/swaps", req, &out); err != nil {
		return SwapResult{}, err
	}
	return out, nil
}

// Preflight checks a relay call against the devnet state without submitting it.
func (c *Client) Preflight(ctx context.Context, req SwapRequest) (PreflightReport, error) {
	var out PreflightReport
	if err := c.post(ctx, "/api/v1/preflight", req, &out); err != nil {
		return PreflightReport{}, err
	}
	return out, nil
}

// Settlements returns the latest settlements, newest first.
func (c *Client) Settlements(ctx context.Context, limit int) ([]Settlement, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var out []Settlement
	if err := c.get(ctx, "/api/v1/settlements", query, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Relay returns the relay configuration.
func (c *Client) Relay(ctx context.Context) (RelayInfo, error) {
	var out RelayInfo
	if err := c.get(ctx, "/api/v1/relay", nil, &out); err != nil {
		return RelayInfo{}, err
	}
	return out, nil
}

// Balance returns address's balance of asset; an empty asset means native.
func (c *Client) Balance(ctx context.Context, address, asset string) (Balance, error) {
	query := url.Values{"address": {address}}
	if asset != "" {
		query.Set("asset", asset)
	}
	var out Balance
	if err := c.get(ctx, "/api/v1/balances", query, &out); err != nil {
		return Balance{}, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, nil, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, query, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, query url.Values, body io.Reader) (*http.Request, error) {
	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint), RawQuery: query.Encode()}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := APIError{StatusCode: resp.StatusCode}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		if len(data) > 0 {
			_ = json.Unmarshal(data, &apiErr)
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return &apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
