package booking

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// StkCallback is the provider's asynchronous push result as delivered
// inside the callback envelope. ResultCode 0 means the payment settled;
// CallbackMetadata is present only on success and carries named items
// such as Amount, MpesaReceiptNumber and TransactionDate.
type StkCallback struct {
	MerchantRequestID string `json:"MerchantRequestID"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResultCode        int    `json:"ResultCode"`
	ResultDesc        string `json:"ResultDesc"`
	CallbackMetadata  *struct {
		Items []CallbackItem `json:"Item"`
	} `json:"CallbackMetadata"`
}

// CallbackItem is one named value in the callback metadata. Values are
// heterogeneous: amounts and dates arrive as JSON numbers, receipt
// numbers and phone numbers as strings.
type CallbackItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value"`
}

// providerTimeLayout is the compact timestamp format used by the
// provider in TransactionDate items (YYYYMMDDHHmmss).
const providerTimeLayout = "20060102150405"

// OutcomeFromCallback converts a well-formed callback into an Outcome.
// On success the amount, receipt number and transaction date are
// extracted from the metadata items; a missing TransactionDate defaults
// to now. Failure outcomes carry the provider's result code and
// description.
func OutcomeFromCallback(cb *StkCallback, now time.Time) Outcome {
	if cb.ResultCode != 0 {
		return Outcome{
			Success:     false,
			FailureCode: strconv.Itoa(cb.ResultCode),
			FailureDesc: cb.ResultDesc,
		}
	}

	out := Outcome{Success: true, SettledAt: now.UTC()}
	if cb.CallbackMetadata == nil {
		return out
	}
	for _, item := range cb.CallbackMetadata.Items {
		switch item.Name {
		case "Amount":
			if v, ok := itemNumber(item); ok {
				out.AmountCents = uint64(math.Round(v * 100))
			}
		case "MpesaReceiptNumber":
			if v, ok := itemString(item); ok {
				out.Receipt = v
			}
		case "TransactionDate":
			if v, ok := itemString(item); ok {
				if t, err := time.Parse(providerTimeLayout, v); err == nil {
					out.SettledAt = t.UTC()
				}
			}
		}
	}
	return out
}

// itemNumber reads an item value as a float, accepting both JSON
// numbers and numeric strings.
func itemNumber(item CallbackItem) (float64, bool) {
	var f float64
	if err := json.Unmarshal(item.Value, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(item.Value, &s); err == nil {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// itemString reads an item value as a string. Numeric values (the
// provider sends TransactionDate as a bare number) are formatted
// without an exponent or decimal point.
func itemString(item CallbackItem) (string, bool) {
	var s string
	if err := json.Unmarshal(item.Value, &s); err == nil {
		return s, true
	}
	var f float64
	if err := json.Unmarshal(item.Value, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
	return "", false
}
