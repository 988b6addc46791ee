package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"northcart-payment-engine/models"
	"northcart-payment-engine/ratelimit"
	"northcart-payment-engine/services/processor"
)

type memStore struct {
	mu       sync.Mutex
	records  map[string]*models.PaymentRecord
	byTxn    map[string]string
	notes    map[string][]string
	statuses map[string][]models.PaymentStatus
}

func newMemStore() *memStore {
	return &memStore{
		records:  make(map[string]*models.PaymentRecord),
		byTxn:    make(map[string]string),
		notes:    make(map[string][]string),
		statuses: make(map[string][]models.PaymentStatus),
	}
}

func (s *memStore) CreatePayment(ctx context.Context, record models.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := record
	s.records[record.ID] = &copied
	return nil
}

func (s *memStore) UpdatePaymentStatus(ctx context.Context, paymentID string, status models.PaymentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.records[paymentID]; ok {
		record.Status = status
	}
	s.statuses[paymentID] = append(s.statuses[paymentID], status)
	return nil
}

func (s *memStore) SetTransactionResult(ctx context.Context, paymentID, transactionID, authCode, cardBrand, last4 string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.records[paymentID]; ok {
		if transactionID != "" {
			record.TransactionID = transactionID
			s.byTxn[transactionID] = paymentID
		}
		if authCode != "" {
			record.AuthCode = authCode
		}
		if cardBrand != "" {
			record.CardBrand = cardBrand
		}
		if last4 != "" {
			record.Last4 = last4
		}
	}
	return nil
}

func (s *memStore) SetSettlementID(ctx context.Context, paymentID, settlementID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.records[paymentID]; ok {
		record.SettlementID = settlementID
	}
	return nil
}

func (s *memStore) AddAuditNote(ctx context.Context, paymentID, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[paymentID] = append(s.notes[paymentID], note)
	return nil
}

func (s *memStore) GetPayment(ctx context.Context, paymentID string) (models.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.records[paymentID]; ok {
		return *record, nil
	}
	return models.PaymentRecord{}, fmt.Errorf("payment %s not found", paymentID)
}

func (s *memStore) GetPaymentByTransaction(ctx context.Context, transactionID string) (models.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if paymentID, ok := s.byTxn[transactionID]; ok {
		return *s.records[paymentID], nil
	}
	return models.PaymentRecord{}, fmt.Errorf("transaction %s not found", transactionID)
}

func (s *memStore) status(paymentID string) models.PaymentStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.records[paymentID]; ok {
		return record.Status
	}
	return ""
}

func (s *memStore) onlyRecord(t *testing.T) models.PaymentRecord {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) != 1 {
		t.Fatalf("expected exactly one payment record, have %d", len(s.records))
	}
	for _, record := range s.records {
		return *record
	}
	return models.PaymentRecord{}
}

func newTestClient(t *testing.T, handler http.Handler, limiter *ratelimit.Limiter) *processor.Client {
	t.Helper()
	server := httptest.NewServer(handler)
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
	return client
}

func authRequest() AuthRequest {
	return AuthRequest{
		OrderID:      "order-1",
		AmountMinor:  1999,
		Currency:     "USD",
		PaymentToken: "tok_perm",
	}
}

func TestAuthorizeSuccess(t *testing.T) {
	store := newMemStore()
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/auths") {
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"id":"auth_ok","status":"COMPLETED","authCode":"A1B2C3","avsResponse":"Y","cvvVerification":"M","settlements":[{"id":"settle_1"}],"card":{"cardType":"VI","lastDigits":"4242"}}`))
	}), nil)

	result, err := NewOrchestrator(client, store).Authorize(context.Background(), authRequest())
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.TransactionID != "auth_ok" || result.AuthCode != "A1B2C3" {
		t.Fatalf("transaction metadata missing: %+v", result)
	}
	if result.Status != models.StatusSettling {
		t.Fatalf("expected settling, got %s", result.Status)
	}

	record := store.onlyRecord(t)
	if record.SettlementID != "settle_1" {
		t.Fatalf("settlement id not recorded: %+v", record)
	}
	if record.CardBrand != "VI" || record.Last4 != "4242" {
		t.Fatalf("card metadata not recorded: %+v", record)
	}
}

func TestAuthorizeFailedWithHoldVoidsAuth(t *testing.T) {
	var voidedAuth string
	store := newMemStore()
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/auths"):
			w.WriteHeader(http.StatusPaymentRequired)
			w.Write([]byte(`{"id":"auth_123","error":{"code":"3007","message":"AVS FAILURE"},"avsResponse":"N"}`))
		case strings.Contains(r.URL.Path, "/voidauths"):
			parts := strings.Split(r.URL.Path, "/")
			voidedAuth = parts[len(parts)-2]
			w.Write([]byte(`{"id":"void_1","status":"COMPLETED"}`))
		default:
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
		}
	}), nil)

	result, err := NewOrchestrator(client, store).Authorize(context.Background(), authRequest())
	if err != nil {
		t.Fatalf("a compensated decline is not an error: %v", err)
	}
	if result.Success {
		t.Fatalf("expected a decline, got %+v", result)
	}
	if voidedAuth != "auth_123" {
		t.Fatalf("void must target the created auth, hit %q", voidedAuth)
	}
	if result.Status != models.StatusVoided {
		t.Fatalf("expected voided, got %s", result.Status)
	}
	if result.Message != processor.BucketMessage(processor.CodeAVSFailed) {
		t.Fatalf("expected the AVS bucket message, got %q", result.Message)
	}
	if strings.Contains(result.Message, "AVS FAILURE") {
		t.Fatalf("raw processor text leaked: %q", result.Message)
	}

	record := store.onlyRecord(t)
	if record.TransactionID != "auth_123" {
		t.Fatalf("auth id must be attached to the record: %+v", record)
	}
}

func TestAuthorizeApprovalNotTrusted(t *testing.T) {
	voidCalls := 0
	store := newMemStore()
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/auths"):
			w.Write([]byte(`{"id":"auth_cvv","status":"COMPLETED","authCode":"OK123","cvvVerification":"N"}`))
		case strings.Contains(r.URL.Path, "/voidauths"):
			voidCalls++
			w.Write([]byte(`{"id":"void_1","status":"COMPLETED"}`))
		default:
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
		}
	}), nil)

	result, err := NewOrchestrator(client, store).Authorize(context.Background(), authRequest())
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if result.Success {
		t.Fatalf("an approval with failing CVV must not succeed")
	}
	if voidCalls != 1 {
		t.Fatalf("expected exactly one void, got %d", voidCalls)
	}
	if result.Status != models.StatusVoided {
		t.Fatalf("expected voided, got %s", result.Status)
	}
	if result.Message != processor.BucketMessage(processor.CodeCVVFailed) {
		t.Fatalf("expected the CVV bucket message, got %q", result.Message)
	}
}

func TestAuthorizeVoidSelfResolves(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"void declined", `{"error":{"code":"3009","message":"declined"}}`},
		{"cannot be voided wording", `{"error":{"code":"9999","message":"Authorization cannot be voided"}}`},
		{"already declined wording", `{"error":{"code":"9999","message":"auth already declined downstream"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if strings.HasSuffix(r.URL.Path, "/auths") {
					w.WriteHeader(http.StatusPaymentRequired)
					w.Write([]byte(`{"id":"auth_sr","error":{"code":"3009","message":"declined"}}`))
					return
				}
				w.WriteHeader(http.StatusPaymentRequired)
				w.Write([]byte(tt.body))
			}), nil)

			result, err := NewOrchestrator(client, store).Authorize(context.Background(), authRequest())
			if err != nil {
				t.Fatalf("a self-resolving void is not an error: %v", err)
			}
			if result.Status != models.StatusSelfResolving {
				t.Fatalf("expected self_resolving, got %s", result.Status)
			}
		})
	}
}

// A rejected void can itself carry an id alongside a void-required error
// code. That body must never be mistaken for a successful void.
func TestAuthorizeVoidRejectedWithHoldShapedBody(t *testing.T) {
	tests := []struct {
		name     string
		voidBody string
		want     models.PaymentStatus
		wantComp bool
	}{
		{
			"auth already declined downstream",
			`{"id":"void_p1","error":{"code":"3009","message":"Authorization cannot be voided"}}`,
			models.StatusSelfResolving,
			false,
		},
		{
			"risk refusal needs an operator",
			`{"id":"void_p2","error":{"code":"8000","message":"risk engine refusal"}}`,
			models.StatusVoidFailed,
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if strings.HasSuffix(r.URL.Path, "/auths") {
					w.WriteHeader(http.StatusPaymentRequired)
					w.Write([]byte(`{"id":"auth_vr","error":{"code":"3022","message":"nsf"}}`))
					return
				}
				w.WriteHeader(http.StatusPaymentRequired)
				w.Write([]byte(tt.voidBody))
			}), nil)

			result, err := NewOrchestrator(client, store).Authorize(context.Background(), authRequest())
			var compErr *CompensationError
			if got := errors.As(err, &compErr); got != tt.wantComp {
				t.Fatalf("CompensationError = %v, want %v (err %v)", got, tt.wantComp, err)
			}
			if result.Status != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, result.Status)
			}
			if store.status(result.PaymentID) == models.StatusVoided {
				t.Fatalf("a rejected void must not be recorded as voided")
			}
			if store.status(result.PaymentID) != tt.want {
				t.Fatalf("record status must be %s, got %s", tt.want, store.status(result.PaymentID))
			}
		})
	}
}

func TestAuthorizeVoidFailureNeedsOperator(t *testing.T) {
	store := newMemStore()
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/auths") {
			w.WriteHeader(http.StatusPaymentRequired)
			w.Write([]byte(`{"id":"auth_vf","error":{"code":"3022","message":"nsf"}}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"code":"1000","message":"internal error"}}`))
	}), nil)

	result, err := NewOrchestrator(client, store).Authorize(context.Background(), authRequest())
	var compErr *CompensationError
	if !errors.As(err, &compErr) {
		t.Fatalf("a failed void must raise a CompensationError, got %v", err)
	}
	if compErr.AuthID != "auth_vf" {
		t.Fatalf("compensation error must carry the auth id: %+v", compErr)
	}
	if result.Status != models.StatusVoidFailed {
		t.Fatalf("expected void_failed, got %s", result.Status)
	}
	if store.status(result.PaymentID) != models.StatusVoidFailed {
		t.Fatalf("record status must be void_failed, got %s", store.status(result.PaymentID))
	}
}

func TestAuthorizeNonCompletedStatusFails(t *testing.T) {
	voidCalls := 0
	store := newMemStore()
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/voidauths") {
			voidCalls++
			w.Write([]byte(`{}`))
			return
		}
		w.Write([]byte(`{"id":"auth_held","status":"HELD"}`))
	}), nil)

	result, err := NewOrchestrator(client, store).Authorize(context.Background(), authRequest())
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if result.Success {
		t.Fatalf("a non-COMPLETED status must not succeed")
	}
	if voidCalls != 0 {
		t.Fatalf("no void expected for a non-approved auth without failing checks")
	}
}

func TestAuthorizeOrdinaryDeclineIsNotAnError(t *testing.T) {
	store := newMemStore()
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":{"code":"3006","message":"expired"}}`))
	}), nil)

	result, err := NewOrchestrator(client, store).Authorize(context.Background(), authRequest())
	if err != nil {
		t.Fatalf("an ordinary decline must not be an error: %v", err)
	}
	if result.Success {
		t.Fatalf("expected a decline")
	}
	if result.Status != models.StatusFailedNoHold {
		t.Fatalf("expected failed, got %s", result.Status)
	}
	if result.Message != processor.BucketMessage(processor.CodeExpiredCard) {
		t.Fatalf("expected the expired-card message, got %q", result.Message)
	}
}

func TestAuthorizeRateLimitPropagates(t *testing.T) {
	limiterStore := ratelimit.NewMemoryStore(nil)
	limiter := ratelimit.NewLimiter(limiterStore, ratelimit.Config{Enabled: true, MaxRequests: 1, Window: time.Minute})
	if err := limiter.Record(context.Background(), "api-user"); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	store := newMemStore()
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("the processor must not be called when the budget is spent")
	}), limiter)

	_, err := NewOrchestrator(client, store).Authorize(context.Background(), authRequest())
	var rateErr *ratelimit.RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected *RateLimitError, got %v", err)
	}

	// The record exists and is marked failed, but no void was attempted.
	record := store.onlyRecord(t)
	if record.Status != models.StatusFailedNoHold {
		t.Fatalf("expected failed, got %s", record.Status)
	}
}

func TestAuthorizeValidation(t *testing.T) {
	store := newMemStore()
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("validation failures must not reach the processor")
	}), nil)
	orchestrator := NewOrchestrator(client, store)

	tests := []struct {
		name   string
		mutate func(*AuthRequest)
	}{
		{"missing order", func(r *AuthRequest) { r.OrderID = "" }},
		{"zero amount", func(r *AuthRequest) { r.AmountMinor = 0 }},
		{"negative amount", func(r *AuthRequest) { r.AmountMinor = -5 }},
		{"missing currency", func(r *AuthRequest) { r.Currency = "" }},
		{"missing token", func(r *AuthRequest) { r.PaymentToken = "" }},
		{"unmapped currency", func(r *AuthRequest) { r.Currency = "EUR" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := authRequest()
			tt.mutate(&req)
			_, err := orchestrator.Authorize(context.Background(), req)
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
		})
	}
}

func TestNormalizeState(t *testing.T) {
	tests := []struct {
		country, state, want string
	}{
		{"US", "CA", "CA"},
		{"US", "ca", "CA"},
		{"US", "California", "CA"},
		{"CA", "Ontario", "ON"},
		{"US", "Atlantis", "Atlantis"},
		{"GB", "Kent", "Kent"},
	}
	for _, tt := range tests {
		if got := normalizeState(tt.country, tt.state); got != tt.want {
			t.Errorf("normalizeState(%s,%s) = %s, want %s", tt.country, tt.state, got, tt.want)
		}
	}
}
