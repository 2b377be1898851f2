// Package phone normalizes user-entered phone numbers into the digit-only
// international form required by the payment provider (2547XXXXXXXX).
package phone

import "strings"

// countryCode is the Kenyan international dialing code expected by the
// Daraja API. Numbers are always returned with this prefix.
const countryCode = "254"

// Normalize converts an arbitrary user-entered phone number into the
// canonical form used by the provider. It strips every non-digit
// character, replaces a leading national trunk "0" with the country
// code, and prepends the country code when it is missing entirely.
// Normalize is a total function: malformed input yields a syntactically
// normalized string, never an error. Validating that the result is a
// real subscriber number is out of scope.
func Normalize(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case digits == "":
		return countryCode
	case strings.HasPrefix(digits, "0"):
		return countryCode + digits[1:]
	case strings.HasPrefix(digits, countryCode):
		return digits
	default:
		return countryCode + digits
	}
}
