// Package daraja implements a client for the Safaricom Daraja API: OAuth
// token issuance, Lipa na M-Pesa Online (STK push) initiation and the
// synchronous status query. The client keeps no state other than an
// optional cached access token; every other call is pure network I/O.
package daraja

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrAuthFailure is returned when an access token cannot be obtained from
// the provider. Callers may retry a whole operation but the client never
// retries internally.
var ErrAuthFailure = errors.New("daraja: failed to obtain access token")

// ErrUnavailable is returned when the provider cannot be reached or
// answers outside its documented contract (transport errors, non-2xx
// statuses, undecodable bodies). In-band rejections are reported as
// *ProviderError instead.
var ErrUnavailable = errors.New("daraja: provider unavailable")

// ProviderError is returned when the provider synchronously rejects a
// request: the HTTP exchange succeeded but the response code was not the
// acceptance code "0". It is distinct from transport-level failures,
// which are returned as wrapped errors from the HTTP client.
type ProviderError struct {
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("daraja: request rejected (code=%s): %s", e.Code, e.Description)
}

// Config carries the merchant credentials and endpoints for one till.
type Config struct {
	BaseURL        string // e.g. https://sandbox.safaricom.co.ke
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string // business short code used in the password digest
	Passkey        string
	TillNumber     string // PartyB for CustomerBuyGoodsOnline
	CallbackURL    string // where the provider posts asynchronous results
}

// Client talks to the Daraja API. The zero value is not usable; construct
// with NewClient. Safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// NewClient returns a Client with a 30 second request timeout, matching
// the provider's own gateway timeout.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// tokenResponse mirrors the OAuth endpoint body. ExpiresIn is documented
// as a string of seconds.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// AccessToken exchanges the consumer key/secret for a bearer token via
// HTTP basic auth. Tokens are cached until shortly before expiry. Any
// failure is reported as ErrAuthFailure.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" && time.Now().Before(c.tokenExp) {
		tok := c.token
		c.mu.Unlock()
		return tok, nil
	}
	c.mu.Unlock()

	url := c.cfg.BaseURL + "/oauth/v1/generate?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailure, err)
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailure, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", ErrAuthFailure, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrAuthFailure, err)
	}
	if tr.AccessToken == "" {
		return "", ErrAuthFailure
	}

	ttl := 3600
	if n, err := strconv.Atoi(tr.ExpiresIn); err == nil && n > 0 {
		ttl = n
	}

	c.mu.Lock()
	c.token = tr.AccessToken
	// Refresh 30s early so an almost-expired token is never sent.
	c.tokenExp = time.Now().Add(time.Duration(ttl-30) * time.Second)
	c.mu.Unlock()
	return tr.AccessToken, nil
}

// password builds the time-stamped digest required by the STK endpoints:
// base64(shortcode + passkey + timestamp) with timestamp YYYYMMDDHHmmss.
func password(shortCode, passkey string, now time.Time) (string, string) {
	ts := now.UTC().Format("20060102150405")
	digest := base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + ts))
	return digest, ts
}

// PushRequest describes one STK push attempt.
type PushRequest struct {
	PhoneNumber      string // normalized, 2547XXXXXXXX
	AmountCents      uint64 // rounded up to whole shillings before sending
	AccountReference string
	Description      string
}

// PushResponse is the provider's synchronous answer to an STK push.
type PushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// InitiateSTKPush submits a push-payment request. The provider only
// accepts whole currency units, so the amount is rounded up to the next
// shilling. On acceptance (ResponseCode "0") the response carrying the
// checkout request identifier is returned; any other code yields a
// *ProviderError and transport problems are returned as wrapped errors.
func (c *Client) InitiateSTKPush(ctx context.Context, pr PushRequest) (*PushResponse, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	pass, ts := password(c.cfg.ShortCode, c.cfg.Passkey, time.Now())
	payload := map[string]any{
		"BusinessShortCode": c.cfg.ShortCode,
		"Password":          pass,
		"Timestamp":         ts,
		"TransactionType":   "CustomerBuyGoodsOnline",
		"Amount":            wholeShillings(pr.AmountCents),
		"PartyA":            pr.PhoneNumber,
		"PartyB":            c.cfg.TillNumber,
		"PhoneNumber":       pr.PhoneNumber,
		"CallBackURL":       c.cfg.CallbackURL,
		"AccountReference":  pr.AccountReference,
		"TransactionDesc":   pr.Description,
	}

	var out PushResponse
	if err := c.post(ctx, token, "/mpesa/stkpush/v1/processrequest", payload, &out); err != nil {
		return nil, fmt.Errorf("stk push: %w", err)
	}
	if out.ResponseCode != "0" {
		return nil, &ProviderError{Code: out.ResponseCode, Description: out.ResponseDescription}
	}
	return &out, nil
}

// QueryResponse is the provider's answer to an STK push status query.
// ResultCode "0" means the payment settled; other codes are failures
// (1032 cancelled by user, 1037 timeout, …). An in-flight push yields an
// HTTP-level error from the provider instead of a result code.
type QueryResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
}

// QueryStatus asks the provider for the outcome of a previously accepted
// push. The raw result is returned for the caller to interpret; it is
// the fallback reconciliation path when the callback channel is delayed.
func (c *Client) QueryStatus(ctx context.Context, checkoutRequestID string) (*QueryResponse, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	pass, ts := password(c.cfg.ShortCode, c.cfg.Passkey, time.Now())
	payload := map[string]any{
		"BusinessShortCode": c.cfg.ShortCode,
		"Password":          pass,
		"Timestamp":         ts,
		"CheckoutRequestID": checkoutRequestID,
	}

	var out QueryResponse
	if err := c.post(ctx, token, "/mpesa/stkpushquery/v1/query", payload, &out); err != nil {
		return nil, fmt.Errorf("stk query: %w", err)
	}
	return &out, nil
}

// post sends an authenticated JSON request and decodes the response body
// into out. Non-2xx responses are surfaced as errors carrying the
// provider's error body.
func (c *Client) post(ctx context.Context, token, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}

// wholeShillings rounds an amount in cents up to the nearest whole
// currency unit, as required by the provider.
func wholeShillings(cents uint64) uint64 {
	return (cents + 99) / 100
}
