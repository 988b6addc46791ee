package payment

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"northcart-payment-engine/models"
	"northcart-payment-engine/services/processor"
)

// AuthRequest is one authorization attempt against a vaulted card token.
type AuthRequest struct {
	OrderID       string
	AmountMinor   int64
	Currency      string
	PaymentToken  string
	CardBrand     string
	Last4         string
	CustomerEmail string
	Billing       *models.BillingAddress
	ThreeDS       *models.ThreeDSData
}

// Orchestrator runs the authorization state machine: submit, inspect
// AVS/CVV/risk signals even on approval, and drive the compensating void
// when a verification failure leaves a hold. Authorizations are never
// retried automatically; a retried auth could double-charge.
type Orchestrator struct {
	client *processor.Client
	store  Store
}

func NewOrchestrator(client *processor.Client, store Store) *Orchestrator {
	return &Orchestrator{client: client, store: store}
}

func (o *Orchestrator) validate(req AuthRequest) error {
	if req.OrderID == "" {
		return &ValidationError{Field: "orderId", Message: "order id is required"}
	}
	if req.AmountMinor <= 0 {
		return &ValidationError{Field: "amount", Message: "amount must be a positive number of minor units"}
	}
	if req.Currency == "" {
		return &ValidationError{Field: "currency", Message: "currency is required"}
	}
	if req.PaymentToken == "" {
		return &ValidationError{Field: "paymentToken", Message: "payment token is required"}
	}
	return nil
}

// Authorize submits one payment attempt. Ordinary declines come back as an
// unsuccessful ChargeResult with a customer-safe message; the error return
// is reserved for validation faults, rate limiting, transport failures and
// compensation failures that need an operator.
func (o *Orchestrator) Authorize(ctx context.Context, req AuthRequest) (models.ChargeResult, error) {
	if err := o.validate(req); err != nil {
		return models.ChargeResult{}, err
	}

	accountID, err := o.client.AccountID(req.Currency)
	if err != nil {
		return models.ChargeResult{}, &ValidationError{Field: "currency", Message: err.Error()}
	}

	paymentID := uuid.New().String()
	// The time suffix makes the reference idempotent at the processor
	// without cross-request locking.
	merchantRef := fmt.Sprintf("%s-%d", req.OrderID, time.Now().UnixNano())

	record := models.PaymentRecord{
		ID:          paymentID,
		OrderID:     req.OrderID,
		MerchantRef: merchantRef,
		AmountMinor: req.AmountMinor,
		Currency:    strings.ToUpper(req.Currency),
		Status:      models.StatusInitiated,
		CardBrand:   req.CardBrand,
		Last4:       req.Last4,
	}
	if err := o.store.CreatePayment(ctx, record); err != nil {
		return models.ChargeResult{}, fmt.Errorf("failed to create payment record: %v", err)
	}

	log.Printf("submitting authorization for order %s (payment %s, %d minor units %s)",
		req.OrderID, paymentID, req.AmountMinor, record.Currency)

	resp, err := o.client.Request(ctx, http.MethodPost, processor.AuthsPath(accountID), o.authBody(req, merchantRef), false)
	if err != nil {
		return o.handleAuthError(ctx, paymentID, err)
	}

	if resp.Status >= 400 {
		// Raw passthrough: the call failed but still created a hold.
		return o.failedWithHold(ctx, paymentID, accountID, resp)
	}

	var auth processor.AuthResponse
	if derr := resp.Decode(&auth); derr != nil {
		return models.ChargeResult{}, fmt.Errorf("error decoding authorization response: %v", derr)
	}

	return o.inspectCompleted(ctx, paymentID, accountID, auth)
}

func (o *Orchestrator) authBody(req AuthRequest, merchantRef string) map[string]interface{} {
	body := map[string]interface{}{
		"merchantRefNum": merchantRef,
		"amount":         req.AmountMinor,
		"settleWithAuth": false,
		"card": map[string]interface{}{
			"paymentToken": req.PaymentToken,
		},
	}

	if req.Billing != nil {
		billing := map[string]interface{}{
			"street":  req.Billing.Street,
			"city":    req.Billing.City,
			"state":   normalizeState(req.Billing.Country, req.Billing.State),
			"zip":     req.Billing.Zip,
			"country": strings.ToUpper(req.Billing.Country),
		}
		if req.Billing.Phone != "" {
			billing["phone"] = req.Billing.Phone
		}
		body["billingDetails"] = billing
	}

	if req.CustomerEmail != "" {
		body["profile"] = map[string]interface{}{"email": req.CustomerEmail}
	}

	if req.ThreeDS != nil && req.ThreeDS.Enabled {
		body["authentication"] = map[string]interface{}{
			"cavv":            req.ThreeDS.Cavv,
			"xid":             req.ThreeDS.Xid,
			"eci":             req.ThreeDS.Eci,
			"threeDSVersion":  req.ThreeDS.ThreeDSVersion,
		}
	}
	return body
}

// handleAuthError maps a failed authorization call that produced no hold.
func (o *Orchestrator) handleAuthError(ctx context.Context, paymentID string, err error) (models.ChargeResult, error) {
	if apiErr, ok := processor.AsAPIError(err); ok {
		o.markFailed(ctx, paymentID, fmt.Sprintf("authorization declined: %s", apiErr.Code))
		return models.ChargeResult{
			Success:   false,
			PaymentID: paymentID,
			Status:    models.StatusFailedNoHold,
			Message:   apiErr.Message,
		}, nil
	}
	// Rate limit, transport failure, or cancellation. No auth id is known,
	// so no compensating void is attempted: the caller must decide, since
	// the processor-side authorization may or may not exist.
	o.markFailed(ctx, paymentID, fmt.Sprintf("authorization not completed: %v", err))
	return models.ChargeResult{}, err
}

// failedWithHold compensates an authorization that failed verification but
// still created a hold at the issuer.
func (o *Orchestrator) failedWithHold(ctx context.Context, paymentID, accountID string, resp *processor.Response) (models.ChargeResult, error) {
	env := resp.Envelope()
	authID := env.ID

	if err := o.store.SetTransactionResult(ctx, paymentID, authID, "", "", ""); err != nil {
		log.Printf("warning: failed to attach auth id to payment %s: %v", paymentID, err)
	}
	o.note(ctx, paymentID, fmt.Sprintf("authorization %s failed verification (code %s) but created a hold; compensating void required",
		authID, env.ErrorCode()))

	code, message := o.client.Classifier().Classify(resp.Status, resp)
	return o.compensate(ctx, paymentID, accountID, authID, code, message)
}

// inspectCompleted applies the approval-is-not-trusted rule: a COMPLETED
// authorization with a failing AVS or CVV result is voided as if it had
// been declined.
func (o *Orchestrator) inspectCompleted(ctx context.Context, paymentID, accountID string, auth processor.AuthResponse) (models.ChargeResult, error) {
	brand, last4 := "", ""
	if auth.Card != nil {
		brand, last4 = auth.Card.CardType, auth.Card.LastDigits
	}
	if err := o.store.SetTransactionResult(ctx, paymentID, auth.ID, auth.AuthCode, brand, last4); err != nil {
		log.Printf("warning: failed to record transaction result for payment %s: %v", paymentID, err)
	}

	if !strings.EqualFold(auth.Status, "COMPLETED") {
		o.markFailed(ctx, paymentID, fmt.Sprintf("authorization %s returned status %s", auth.ID, auth.Status))
		code := processor.CodeDeclined
		return models.ChargeResult{
			Success:       false,
			PaymentID:     paymentID,
			TransactionID: auth.ID,
			Status:        models.StatusFailedNoHold,
			Message:       o.client.Classifier().SafeMessage(code),
		}, nil
	}

	if processor.AVSFailed(auth.AVSResponse) {
		o.note(ctx, paymentID, fmt.Sprintf("authorization %s approved but AVS result %s failed; voiding", auth.ID, auth.AVSResponse))
		return o.compensate(ctx, paymentID, accountID, auth.ID,
			processor.CodeAVSFailed, o.client.Classifier().SafeMessage(processor.CodeAVSFailed))
	}
	if processor.CVVFailed(auth.CVVVerification) {
		o.note(ctx, paymentID, fmt.Sprintf("authorization %s approved but CVV result %s failed; voiding", auth.ID, auth.CVVVerification))
		return o.compensate(ctx, paymentID, accountID, auth.ID,
			processor.CodeCVVFailed, o.client.Classifier().SafeMessage(processor.CodeCVVFailed))
	}

	if err := o.store.UpdatePaymentStatus(ctx, paymentID, models.StatusSettling); err != nil {
		log.Printf("warning: failed to update payment %s status: %v", paymentID, err)
	}
	if len(auth.Settlements) > 0 {
		if err := o.store.SetSettlementID(ctx, paymentID, auth.Settlements[0].ID); err != nil {
			log.Printf("warning: failed to record settlement id for payment %s: %v", paymentID, err)
		}
	}

	log.Printf("authorization %s completed for payment %s", auth.ID, paymentID)
	return models.ChargeResult{
		Success:       true,
		PaymentID:     paymentID,
		TransactionID: auth.ID,
		AuthCode:      auth.AuthCode,
		Status:        models.StatusSettling,
	}, nil
}

// compensate voids the hold behind a failed verification. Outcomes:
// voided (normal), self-resolving (void declined because the auth already
// declined downstream; the hold releases on its own in 3-5 business days),
// or void-failed, which is surfaced as a CompensationError needing manual
// operator action.
func (o *Orchestrator) compensate(ctx context.Context, paymentID, accountID, authID string, code processor.ErrorCode, message string) (models.ChargeResult, error) {
	if err := o.store.UpdatePaymentStatus(ctx, paymentID, models.StatusVoidRequested); err != nil {
		log.Printf("warning: failed to update payment %s status: %v", paymentID, err)
	}

	result := models.ChargeResult{
		Success:       false,
		PaymentID:     paymentID,
		TransactionID: authID,
		Message:       message,
	}

	voidResp, err := o.client.Request(ctx, http.MethodPost, processor.VoidAuthsPath(accountID, authID),
		map[string]interface{}{"merchantRefNum": fmt.Sprintf("void-%s", paymentID)}, false)
	if err == nil && voidResp.Status >= 400 {
		// Request hands >=400 bodies back as non-errors when they carry a
		// hold to void; on the void call itself that reply is a refusal.
		err = o.voidRejected(voidResp)
	}
	if err == nil {
		o.setStatus(ctx, paymentID, models.StatusVoided)
		o.note(ctx, paymentID, fmt.Sprintf("authorization %s voided after %s", authID, code))
		result.Status = models.StatusVoided
		return result, nil
	}

	if apiErr, ok := processor.AsAPIError(err); ok && voidSelfResolves(apiErr) {
		o.setStatus(ctx, paymentID, models.StatusSelfResolving)
		o.note(ctx, paymentID, fmt.Sprintf("void of %s declined because the authorization did not complete; hold releases automatically in 3-5 business days", authID))
		log.Printf("void of %s self-resolving for payment %s", authID, paymentID)
		result.Status = models.StatusSelfResolving
		return result, nil
	}

	o.setStatus(ctx, paymentID, models.StatusVoidFailed)
	o.note(ctx, paymentID, fmt.Sprintf("void of authorization %s FAILED; manual operator action required: %v", authID, err))
	log.Printf("void failed for payment %s auth %s: %v", paymentID, authID, err)

	result.Status = models.StatusVoidFailed
	return result, &CompensationError{
		PaymentID: paymentID,
		AuthID:    authID,
		Reason:    "void request failed",
		Err:       err,
	}
}

// voidRejected turns a >=400 void reply into the APIError the processor
// client would have produced for any other call.
func (o *Orchestrator) voidRejected(resp *processor.Response) error {
	env := resp.Envelope()
	code, message := o.client.Classifier().Classify(resp.Status, resp)
	apiErr := &processor.APIError{
		Code:       code,
		Message:    message,
		HTTPStatus: resp.Status,
		RawID:      env.ID,
	}
	if env.Error != nil {
		apiErr.RawMessage = env.Error.Message
	}
	return apiErr
}

// voidSelfResolves detects the processor refusing a void because the
// underlying authorization already declined; such holds auto-release.
func voidSelfResolves(apiErr *processor.APIError) bool {
	lower := strings.ToLower(apiErr.RawMessage)
	return apiErr.Code == processor.CodeDeclined ||
		strings.Contains(lower, "cannot be voided") ||
		strings.Contains(lower, "already declined")
}

func (o *Orchestrator) setStatus(ctx context.Context, paymentID string, status models.PaymentStatus) {
	if err := o.store.UpdatePaymentStatus(ctx, paymentID, status); err != nil {
		log.Printf("warning: failed to update payment %s status to %s: %v", paymentID, status, err)
	}
}

func (o *Orchestrator) markFailed(ctx context.Context, paymentID, note string) {
	o.setStatus(ctx, paymentID, models.StatusFailedNoHold)
	o.note(ctx, paymentID, note)
}

func (o *Orchestrator) note(ctx context.Context, paymentID, note string) {
	if err := o.store.AddAuditNote(ctx, paymentID, note); err != nil {
		log.Printf("warning: failed to record audit note for payment %s: %v", paymentID, err)
	}
}
