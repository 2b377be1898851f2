package daraja

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(baseURL string) *Client {
	return NewClient(Config{
		BaseURL:        baseURL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		Passkey:        "passkey",
		TillNumber:     "174379",
		CallbackURL:    "https://example.com/payment-callback",
	})
}

func TestAccessToken(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/v1/generate" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			t.Fatalf("missing or wrong basic auth")
		}
		calls++
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token": "tok-1",
			"expires_in":   "3599",
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	tok, err := c.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if tok != "tok-1" {
		t.Fatalf("got token %q", tok)
	}
	// Second call is served from the cache.
	if _, err := c.AccessToken(context.Background()); err != nil {
		t.Fatalf("cached AccessToken: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 token request, got %d", calls)
	}
}

func TestAccessTokenFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	if _, err := c.AccessToken(context.Background()); !errors.Is(err, ErrAuthFailure) {
		t.Fatalf("expected ErrAuthFailure, got %v", err)
	}
}

func TestInitiateSTKPush(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok", "expires_in": "3599"})
		case "/mpesa/stkpush/v1/processrequest":
			if auth := r.Header.Get("Authorization"); auth != "Bearer tok" {
				t.Fatalf("unexpected auth header %q", auth)
			}
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				t.Fatalf("decode push body: %v", err)
			}
			_ = json.NewEncoder(w).Encode(map[string]string{
				"MerchantRequestID":   "mr-1",
				"CheckoutRequestID":   "ws_CO_123",
				"ResponseCode":        "0",
				"ResponseDescription": "Success. Request accepted for processing",
				"CustomerMessage":     "Success",
			})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	resp, err := c.InitiateSTKPush(context.Background(), PushRequest{
		PhoneNumber:      "254712345678",
		AmountCents:      150000, // 1500.00 -> 1500 whole shillings
		AccountReference: "Movie Ticket Dune",
		Description:      "Movie Ticket Purchase",
	})
	if err != nil {
		t.Fatalf("InitiateSTKPush: %v", err)
	}
	if resp.CheckoutRequestID != "ws_CO_123" {
		t.Fatalf("got checkout id %q", resp.CheckoutRequestID)
	}
	if amt, ok := got["Amount"].(float64); !ok || amt != 1500 {
		t.Fatalf("expected integer amount 1500, got %v", got["Amount"])
	}
	if got["TransactionType"] != "CustomerBuyGoodsOnline" {
		t.Fatalf("unexpected transaction type %v", got["TransactionType"])
	}
	if got["PartyA"] != "254712345678" || got["PhoneNumber"] != "254712345678" {
		t.Fatalf("phone not propagated: %v / %v", got["PartyA"], got["PhoneNumber"])
	}
	// The password digest must decode to shortcode+passkey+timestamp.
	raw, err := base64.StdEncoding.DecodeString(got["Password"].(string))
	if err != nil {
		t.Fatalf("password is not base64: %v", err)
	}
	ts := got["Timestamp"].(string)
	if want := "174379" + "passkey" + ts; string(raw) != want {
		t.Fatalf("password digest = %q, want %q", raw, want)
	}
	if _, err := time.Parse("20060102150405", ts); err != nil {
		t.Fatalf("timestamp %q not in YYYYMMDDHHmmss form: %v", ts, err)
	}
}

func TestInitiateSTKPushRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v1/generate" {
			_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok", "expires_in": "3599"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"ResponseCode":        "1",
			"ResponseDescription": "Unable to lock subscriber",
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.InitiateSTKPush(context.Background(), PushRequest{PhoneNumber: "254712345678", AmountCents: 100})
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ProviderError, got %v", err)
	}
	if pe.Code != "1" {
		t.Fatalf("got code %q", pe.Code)
	}
}

func TestQueryStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok", "expires_in": "3599"})
		case "/mpesa/stkpushquery/v1/query":
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["CheckoutRequestID"] != "ws_CO_123" {
				t.Fatalf("unexpected checkout id %v", body["CheckoutRequestID"])
			}
			_ = json.NewEncoder(w).Encode(map[string]string{
				"ResponseCode":      "0",
				"ResultCode":        "1032",
				"ResultDesc":        "Request cancelled by user",
				"CheckoutRequestID": "ws_CO_123",
			})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	res, err := c.QueryStatus(context.Background(), "ws_CO_123")
	if err != nil {
		t.Fatalf("QueryStatus: %v", err)
	}
	if res.ResultCode != "1032" {
		t.Fatalf("got result code %q", res.ResultCode)
	}
}

func TestWholeShillings(t *testing.T) {
	cases := []struct {
		cents uint64
		want  uint64
	}{
		{0, 0},
		{1, 1},
		{99, 1},
		{100, 1},
		{101, 2},
		{150000, 1500},
	}
	for _, tc := range cases {
		if got := wholeShillings(tc.cents); got != tc.want {
			t.Fatalf("wholeShillings(%d) = %d, want %d", tc.cents, got, tc.want)
		}
	}
}
