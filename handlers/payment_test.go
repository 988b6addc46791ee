package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"northcart-payment-engine/models"
	"northcart-payment-engine/ratelimit"
	"northcart-payment-engine/services/payment"
	"northcart-payment-engine/services/processor"
	"northcart-payment-engine/services/vault"
)

type fakeReader struct {
	records map[string]models.PaymentRecord
	notes   map[string][]models.AuditNote
}

func (r *fakeReader) GetPayment(ctx context.Context, paymentID string) (models.PaymentRecord, error) {
	if record, ok := r.records[paymentID]; ok {
		return record, nil
	}
	return models.PaymentRecord{}, fmt.Errorf("payment %s not found", paymentID)
}

func (r *fakeReader) GetAuditNotes(ctx context.Context, paymentID string) ([]models.AuditNote, error) {
	return r.notes[paymentID], nil
}

type nullStore struct{}

func (nullStore) CreatePayment(ctx context.Context, record models.PaymentRecord) error { return nil }
func (nullStore) UpdatePaymentStatus(ctx context.Context, paymentID string, status models.PaymentStatus) error {
	return nil
}
func (nullStore) SetTransactionResult(ctx context.Context, paymentID, transactionID, authCode, cardBrand, last4 string) error {
	return nil
}
func (nullStore) SetSettlementID(ctx context.Context, paymentID, settlementID string) error {
	return nil
}
func (nullStore) AddAuditNote(ctx context.Context, paymentID, note string) error { return nil }
func (nullStore) GetPayment(ctx context.Context, paymentID string) (models.PaymentRecord, error) {
	return models.PaymentRecord{}, fmt.Errorf("not found")
}
func (nullStore) GetPaymentByTransaction(ctx context.Context, transactionID string) (models.PaymentRecord, error) {
	return models.PaymentRecord{}, fmt.Errorf("not found")
}

type nullVaultStore struct{}

func (nullVaultStore) LookupProfileID(ctx context.Context, customerKey string) (string, error) {
	return "", nil
}
func (nullVaultStore) SaveProfile(ctx context.Context, profile models.VaultProfile) error { return nil }
func (nullVaultStore) SaveCard(ctx context.Context, card models.CardToken) error          { return nil }
func (nullVaultStore) DeleteCard(ctx context.Context, profileID, cardID string) error     { return nil }

func newTestPaymentHandler(t *testing.T, processorHandler http.Handler, limiter *ratelimit.Limiter) *PaymentHandler {
	t.Helper()
	server := httptest.NewServer(processorHandler)
	t.Cleanup(server.Close)

	client, err := processor.NewClient(processor.Credentials{
		APIUser:     "api-user",
		APIPassword: "api-pass",
		AccountIDs:  map[string]string{"USD": "acct-usd"},
		Environment: "sandbox",
	}, limiter, nil)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	client.OverrideBaseURL(server.URL)

	handler, err := NewPaymentHandler(
		vault.NewManager(client, nullVaultStore{}),
		payment.NewOrchestrator(client, nullStore{}),
		&fakeReader{records: map[string]models.PaymentRecord{}, notes: map[string][]models.AuditNote{}},
	)
	if err != nil {
		t.Fatalf("NewPaymentHandler failed: %v", err)
	}
	return handler
}

func postCharge(t *testing.T, handler *PaymentHandler, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/payments", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ProcessPayment(rec, req)
	return rec
}

func chargeRequest() models.ChargeRequest {
	return models.ChargeRequest{
		OrderID:      "order-1",
		Amount:       "19.99",
		Currency:     "USD",
		Decision:     models.FlowDecision{Flow: models.FlowSavedCard, Ready: true},
		PaymentToken: "tok_perm",
		Customer:     models.CustomerRef{CustomerID: "cust_1"},
	}
}

func TestProcessPaymentGatesOnDecision(t *testing.T) {
	handler := newTestPaymentHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("a gated request must never reach the processor")
	}), nil)

	notReady := chargeRequest()
	notReady.Decision = models.FlowDecision{Flow: models.FlowSavedCard, Ready: false, Errors: []string{"billing address incomplete"}}
	rec := postCharge(t, handler, notReady)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("not-ready decision: expected 422, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "billing address incomplete") {
		t.Fatalf("decision errors should surface: %s", rec.Body.String())
	}

	blocked := chargeRequest()
	blocked.Decision = models.FlowDecision{Flow: models.FlowBlocked, Ready: true}
	rec = postCharge(t, handler, blocked)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("blocked flow: expected 422, got %d", rec.Code)
	}
}

func TestProcessPaymentRejectsBadAmount(t *testing.T) {
	handler := newTestPaymentHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("an invalid amount must never reach the processor")
	}), nil)

	req := chargeRequest()
	req.Amount = "19.999"
	rec := postCharge(t, handler, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestProcessPaymentSavedCardSuccess(t *testing.T) {
	handler := newTestPaymentHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		if amount, _ := body["amount"].(float64); amount != 1999 {
			t.Errorf("expected 1999 minor units, got %v", body["amount"])
		}
		w.Write([]byte(`{"id":"auth_ok","status":"COMPLETED","authCode":"A1"}`))
	}), nil)

	rec := postCharge(t, handler, chargeRequest())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var response models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if response.Status != "success" {
		t.Fatalf("expected success, got %+v", response)
	}
}

func TestProcessPaymentDeclineReturns402(t *testing.T) {
	handler := newTestPaymentHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":{"code":"3022","message":"NSF"}}`))
	}), nil)

	rec := postCharge(t, handler, chargeRequest())
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "NSF") {
		t.Fatalf("raw processor text leaked: %s", rec.Body.String())
	}
}

func TestProcessPaymentRateLimited(t *testing.T) {
	store := ratelimit.NewMemoryStore(nil)
	limiter := ratelimit.NewLimiter(store, ratelimit.Config{Enabled: true, MaxRequests: 1, Window: time.Minute})
	if err := limiter.Record(context.Background(), "api-user"); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	handler := newTestPaymentHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("the processor must not be called past the budget")
	}), limiter)

	rec := postCharge(t, handler, chargeRequest())
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("429 must carry Retry-After")
	}
}

func TestProcessPaymentMissingTokenForFlow(t *testing.T) {
	handler := newTestPaymentHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("incomplete flow input must never reach the processor")
	}), nil)

	req := chargeRequest()
	req.PaymentToken = ""
	rec := postCharge(t, handler, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}

	hosted := chargeRequest()
	hosted.Decision.Flow = models.FlowHostedTokenize
	hosted.SingleUseToken = ""
	rec = postCharge(t, handler, hosted)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for hosted flow without token, got %d", rec.Code)
	}
}

func TestGetPaymentNotFound(t *testing.T) {
	handler := newTestPaymentHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), nil)

	router := mux.NewRouter()
	router.HandleFunc("/api/payments/{id}", handler.GetPayment).Methods("GET")

	req := httptest.NewRequest(http.MethodGet, "/api/payments/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
