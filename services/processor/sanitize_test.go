package processor

import (
	"strings"
	"testing"
)

func TestSanitizeRedactsSecrets(t *testing.T) {
	payload := `{"card":{"cardNum":"4111111111111111","cvv":"123","holderName":"Jane Doe"},"paymentToken":"CmgrXcDCjqpTHW2"}`

	out := SanitizeString(payload)

	if strings.Contains(out, "4111111111111111") {
		t.Fatalf("card number leaked: %s", out)
	}
	if strings.Contains(out, `"cvv":"123"`) || strings.Contains(out, `"cvv": "123"`) {
		t.Fatalf("cvv leaked: %s", out)
	}
	if strings.Contains(out, "CmgrXcDCjqpTHW2") {
		t.Fatalf("payment token leaked: %s", out)
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Fatalf("expected redaction markers: %s", out)
	}
}

func TestSanitizeMasksBarePANs(t *testing.T) {
	tests := []string{
		"charge 4111111111111111 declined",
		"charge 4111 1111 1111 1111 declined",
		"charge 4111-1111-1111-1111 declined",
	}
	for _, in := range tests {
		out := SanitizeString(in)
		if strings.Contains(out, "4111") {
			t.Errorf("PAN prefix survived in %q", out)
		}
		if !strings.Contains(out, "1111") {
			t.Errorf("last4 should be kept for correlation, got %q", out)
		}
	}
}

func TestSanitizeKeepsIDPrefix(t *testing.T) {
	out := SanitizeString(`{"id":"auth_9f8e7d6c5b4a","status":"COMPLETED"}`)
	if strings.Contains(out, "auth_9f8e7d6c5b4a") {
		t.Fatalf("full id leaked: %s", out)
	}
	if !strings.Contains(out, `"auth`) {
		t.Fatalf("id prefix should survive for correlation: %s", out)
	}
}

func TestSanitizeMasksContactData(t *testing.T) {
	out := SanitizeString(`customer jane.doe@example.com called from +1 555 867 5309`)
	if strings.Contains(out, "jane.doe@") {
		t.Fatalf("email local part leaked: %s", out)
	}
	if !strings.Contains(out, "example.com") {
		t.Fatalf("email domain should be kept: %s", out)
	}
	if strings.Contains(out, "5309") {
		t.Fatalf("phone number leaked: %s", out)
	}
}

func TestSanitizeKeepsBareDigitRuns(t *testing.T) {
	payload := `{"status":"COMPLETED","amount":199900,"txnTime":1700000000}`
	if out := SanitizeString(payload); out != payload {
		t.Fatalf("digit runs were mangled: %s", out)
	}
	if out := SanitizeString("settled 12345678901 at 1700000000"); strings.Contains(out, "[PHONE]") {
		t.Fatalf("bare digit run treated as a phone number: %s", out)
	}
}

func TestSanitizeLeavesOrdinaryPayloadsAlone(t *testing.T) {
	payload := `{"merchantRefNum":"orde","status":"COMPLETED","amount":1999}`
	out := SanitizeString(`{"status":"COMPLETED","amount":1999}`)
	if out != `{"status":"COMPLETED","amount":1999}` {
		t.Fatalf("harmless payload was mangled: %s (from %s)", out, payload)
	}
}
