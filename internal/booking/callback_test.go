package booking

import (
	"encoding/json"
	"testing"
	"time"
)

func parseCallback(t *testing.T, raw string) *StkCallback {
	t.Helper()
	var cb StkCallback
	if err := json.Unmarshal([]byte(raw), &cb); err != nil {
		t.Fatalf("unmarshal callback: %v", err)
	}
	return &cb
}

func TestOutcomeFromCallback(t *testing.T) {
	now := time.Date(2026, 5, 14, 12, 0, 0, 0, time.UTC)

	t.Run("success extracts metadata", func(t *testing.T) {
		cb := parseCallback(t, `{
			"MerchantRequestID": "29115-34620561-1",
			"CheckoutRequestID": "ws_CO_191220191020363925",
			"ResultCode": 0,
			"ResultDesc": "The service request is processed successfully.",
			"CallbackMetadata": {
				"Item": [
					{"Name": "Amount", "Value": 1500.00},
					{"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
					{"Name": "TransactionDate", "Value": 20260514103000},
					{"Name": "PhoneNumber", "Value": 254712345678}
				]
			}
		}`)

		out := OutcomeFromCallback(cb, now)
		if !out.Success {
			t.Fatal("expected success outcome")
		}
		if out.AmountCents != 150000 {
			t.Errorf("amount = %d cents, want 150000", out.AmountCents)
		}
		if out.Receipt != "NLJ7RT61SV" {
			t.Errorf("receipt = %q, want NLJ7RT61SV", out.Receipt)
		}
		want := time.Date(2026, 5, 14, 10, 30, 0, 0, time.UTC)
		if !out.SettledAt.Equal(want) {
			t.Errorf("settledAt = %v, want %v", out.SettledAt, want)
		}
	})

	t.Run("missing transaction date defaults to now", func(t *testing.T) {
		cb := parseCallback(t, `{
			"CheckoutRequestID": "ws_CO_1",
			"ResultCode": 0,
			"CallbackMetadata": {
				"Item": [
					{"Name": "Amount", "Value": 500},
					{"Name": "MpesaReceiptNumber", "Value": "ABC123"}
				]
			}
		}`)

		out := OutcomeFromCallback(cb, now)
		if !out.SettledAt.Equal(now) {
			t.Errorf("settledAt = %v, want %v", out.SettledAt, now)
		}
		if out.AmountCents != 50000 {
			t.Errorf("amount = %d cents, want 50000", out.AmountCents)
		}
	})

	t.Run("success without metadata", func(t *testing.T) {
		cb := parseCallback(t, `{"CheckoutRequestID": "ws_CO_1", "ResultCode": 0}`)
		out := OutcomeFromCallback(cb, now)
		if !out.Success {
			t.Fatal("expected success outcome")
		}
		if out.AmountCents != 0 || out.Receipt != "" {
			t.Errorf("outcome = %+v, want empty metadata fields", out)
		}
	})

	t.Run("failure carries code and description", func(t *testing.T) {
		cb := parseCallback(t, `{
			"CheckoutRequestID": "ws_CO_1",
			"ResultCode": 1032,
			"ResultDesc": "Request cancelled by user"
		}`)

		out := OutcomeFromCallback(cb, now)
		if out.Success {
			t.Fatal("expected failure outcome")
		}
		if out.FailureCode != "1032" {
			t.Errorf("failure code = %q, want 1032", out.FailureCode)
		}
		if out.FailureDesc != "Request cancelled by user" {
			t.Errorf("failure desc = %q", out.FailureDesc)
		}
	})

	t.Run("string-typed amount and date", func(t *testing.T) {
		cb := parseCallback(t, `{
			"CheckoutRequestID": "ws_CO_1",
			"ResultCode": 0,
			"CallbackMetadata": {
				"Item": [
					{"Name": "Amount", "Value": "1500"},
					{"Name": "TransactionDate", "Value": "20260514103000"}
				]
			}
		}`)

		out := OutcomeFromCallback(cb, now)
		if out.AmountCents != 150000 {
			t.Errorf("amount = %d cents, want 150000", out.AmountCents)
		}
		want := time.Date(2026, 5, 14, 10, 30, 0, 0, time.UTC)
		if !out.SettledAt.Equal(want) {
			t.Errorf("settledAt = %v, want %v", out.SettledAt, want)
		}
	})
}
