package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"northcart-payment-engine/services/webhook"
)

func signPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func newTestWebhookHandler(t *testing.T, secret string) *WebhookHandler {
	t.Helper()
	handler, err := NewWebhookHandler(webhook.NewVerifier(secret), webhook.NewProcessor(nullStore{}))
	if err != nil {
		t.Fatalf("NewWebhookHandler failed: %v", err)
	}
	return handler
}

func postEvent(handler *WebhookHandler, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/processor", bytes.NewReader(payload))
	if signature != "" {
		req.Header.Set("X-Signature", signature)
	}
	rec := httptest.NewRecorder()
	handler.HandleEvent(rec, req)
	return rec
}

func TestWebhookAcceptsValidSignature(t *testing.T) {
	handler := newTestWebhookHandler(t, "whsec_test")
	payload := []byte(`{"eventType":"SETTLEMENT_COMPLETED","payment":{"id":"auth_unknown"}}`)

	rec := postEvent(handler, payload, signPayload("whsec_test", payload))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	handler := newTestWebhookHandler(t, "whsec_test")
	payload := []byte(`{"eventType":"SETTLEMENT_COMPLETED","payment":{"id":"auth_1"}}`)

	if rec := postEvent(handler, payload, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing signature: expected 401, got %d", rec.Code)
	}
	if rec := postEvent(handler, payload, signPayload("wrong", payload)); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong signature: expected 401, got %d", rec.Code)
	}
}

func TestWebhookRejectsAllWhenSecretMissing(t *testing.T) {
	handler := newTestWebhookHandler(t, "")
	payload := []byte(`{"eventType":"SETTLEMENT_COMPLETED","payment":{"id":"auth_1"}}`)

	if rec := postEvent(handler, payload, signPayload("", payload)); rec.Code != http.StatusUnauthorized {
		t.Fatalf("an unconfigured secret must fail closed, got %d", rec.Code)
	}
}
