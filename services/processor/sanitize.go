package processor

import (
	"regexp"
)

// Payload sanitization for logging. Every outbound and inbound processor
// payload passes through Sanitize before any log write, debug logging
// included. The redaction order matters: keyed secrets first, then bare
// PANs, then contact data.

var (
	// JSON string fields whose values are secrets outright.
	secretFieldPattern = regexp.MustCompile(`(?i)("(?:cardNum|number|cvv|cvd|cardCode|password|apiPassword|tokenPassword|paymentToken|singleUseToken|token)"\s*:\s*)"[^"]*"`)

	// ID-bearing fields keep a short prefix so log lines stay correlatable.
	idFieldPattern = regexp.MustCompile(`(?i)("(?:id|profileId|authId|cardId|merchantRefNum|settlementId)"\s*:\s*)"([^"]{4})[^"]*"`)

	// Bare card numbers, with optional space/dash grouping.
	panPattern = regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`)

	emailPattern = regexp.MustCompile(`\b([A-Za-z0-9])[A-Za-z0-9._%+-]*@([A-Za-z0-9.-]+\.[A-Za-z]{2,})\b`)

	// Either international form, or digit groups with real separators.
	// A bare digit run (amount, timestamp, numeric id) never matches.
	phonePattern = regexp.MustCompile(`\+\d{7,15}\b|(?:\+\d{1,3}[ .-])?\(?\d{2,4}\)?(?:[ .-]\d{2,4}){2,3}`)
)

// Sanitize redacts PANs, CVVs, tokens, passwords, emails (first char plus
// domain kept), phone numbers and identifiers from a payload so it can be
// logged.
func Sanitize(payload []byte) string {
	out := secretFieldPattern.ReplaceAll(payload, []byte(`$1"[REDACTED]"`))
	out = idFieldPattern.ReplaceAll(out, []byte(`$1"$2…"`))
	out = panPattern.ReplaceAllFunc(out, maskPAN)
	out = emailPattern.ReplaceAll(out, []byte(`$1***@$2`))
	out = phonePattern.ReplaceAll(out, []byte(`[PHONE]`))
	return string(out)
}

// SanitizeString is Sanitize for string payloads.
func SanitizeString(payload string) string {
	return Sanitize([]byte(payload))
}

func maskPAN(match []byte) []byte {
	digits := make([]byte, 0, len(match))
	for _, b := range match {
		if b >= '0' && b <= '9' {
			digits = append(digits, b)
		}
	}
	if len(digits) < 4 {
		return []byte("[PAN]")
	}
	return append([]byte("************"), digits[len(digits)-4:]...)
}
