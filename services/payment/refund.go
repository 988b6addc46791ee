package payment

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"northcart-payment-engine/models"
	"northcart-payment-engine/services/processor"
)

// MaxRefundReasonLength bounds the reason text sent to the processor.
const MaxRefundReasonLength = 255

// RefundResolver reverses settled funds. Old payment records sometimes
// carry only the historical authorization id, so the resolver may have to
// resolve transactionId -> settlementId before the refund call succeeds.
type RefundResolver struct {
	client *processor.Client
	store  Store
}

func NewRefundResolver(client *processor.Client, store Store) *RefundResolver {
	return &RefundResolver{client: client, store: store}
}

// Refund issues a refund against the payment's settlement. An explicitly
// stored settlement id is preferred; otherwise the stored transaction id
// is tried as a settlement id first, and a single fallback resolves the
// real settlement id through the original authorization on a not-found
// response. No further retries after that.
func (r *RefundResolver) Refund(ctx context.Context, paymentID string, amountMinor int64, reason string) (models.RefundResult, error) {
	if amountMinor <= 0 {
		return models.RefundResult{}, &ValidationError{Field: "amount", Message: "refund amount must be a positive number of minor units"}
	}
	if len(reason) > MaxRefundReasonLength {
		reason = reason[:MaxRefundReasonLength]
	}

	record, err := r.store.GetPayment(ctx, paymentID)
	if err != nil {
		return models.RefundResult{}, &ValidationError{Field: "paymentId", Message: fmt.Sprintf("payment not found: %v", err)}
	}

	accountID, err := r.client.AccountID(record.Currency)
	if err != nil {
		return models.RefundResult{}, &ValidationError{Field: "currency", Message: err.Error()}
	}

	settlementID := record.SettlementID
	explicit := settlementID != ""
	if !explicit {
		if record.TransactionID == "" {
			return models.RefundResult{}, &ValidationError{Field: "paymentId", Message: "payment has no settlement or transaction id to refund"}
		}
		// Happy path for normal flows: the stored transaction id usually
		// is the settlement id.
		settlementID = record.TransactionID
	}

	result, err := r.issueRefund(ctx, accountID, settlementID, paymentID, amountMinor, reason)
	if err == nil {
		r.finish(ctx, paymentID, settlementID, reason, &result)
		return result, nil
	}

	apiErr, ok := processor.AsAPIError(err)
	if !ok || apiErr.Code != processor.CodeNotFound || explicit {
		return models.RefundResult{}, err
	}

	// One bounded fallback: read the settlement link off the original
	// authorization and retry once.
	log.Printf("refund target %s not found for payment %s, resolving settlement from authorization", settlementID, paymentID)
	resolved, rerr := r.resolveSettlementID(ctx, accountID, record.TransactionID)
	if rerr != nil {
		return models.RefundResult{}, &CompensationError{
			PaymentID: paymentID,
			AuthID:    record.TransactionID,
			Reason:    fmt.Sprintf("settlement id could not be resolved: %v", rerr),
			Err:       rerr,
		}
	}

	result, err = r.issueRefund(ctx, accountID, resolved, paymentID, amountMinor, reason)
	if err != nil {
		return models.RefundResult{}, err
	}
	r.finish(ctx, paymentID, resolved, reason, &result)
	return result, nil
}

func (r *RefundResolver) issueRefund(ctx context.Context, accountID, settlementID, paymentID string, amountMinor int64, reason string) (models.RefundResult, error) {
	body := map[string]interface{}{
		"merchantRefNum": fmt.Sprintf("refund-%s-%d", paymentID, time.Now().UnixNano()),
		"amount":         amountMinor,
	}
	if reason != "" {
		body["description"] = reason
	}

	resp, err := r.client.Request(ctx, http.MethodPost, processor.RefundsPath(accountID, settlementID), body, false)
	if err != nil {
		return models.RefundResult{}, err
	}

	var refund processor.RefundResponse
	if err := resp.Decode(&refund); err != nil {
		return models.RefundResult{}, fmt.Errorf("error decoding refund response: %v", err)
	}

	return models.RefundResult{
		Success:      true,
		RefundID:     refund.ID,
		SettlementID: settlementID,
		Status:       refund.Status,
	}, nil
}

// resolveSettlementID fetches the original authorization and reads its
// settlement link.
func (r *RefundResolver) resolveSettlementID(ctx context.Context, accountID, authID string) (string, error) {
	resp, err := r.client.Request(ctx, http.MethodGet, processor.AuthPath(accountID, authID), nil, false)
	if err != nil {
		return "", err
	}

	var auth processor.AuthResponse
	if err := resp.Decode(&auth); err != nil {
		return "", fmt.Errorf("error decoding authorization lookup: %v", err)
	}
	if len(auth.Settlements) == 0 || auth.Settlements[0].ID == "" {
		return "", fmt.Errorf("authorization %s carries no settlement link", authID)
	}
	return auth.Settlements[0].ID, nil
}

func (r *RefundResolver) finish(ctx context.Context, paymentID, settlementID, reason string, result *models.RefundResult) {
	if err := r.store.SetSettlementID(ctx, paymentID, settlementID); err != nil {
		log.Printf("warning: failed to store settlement id for payment %s: %v", paymentID, err)
	}
	if err := r.store.UpdatePaymentStatus(ctx, paymentID, models.StatusRefunded); err != nil {
		log.Printf("warning: failed to update payment %s status: %v", paymentID, err)
	}
	note := fmt.Sprintf("refund %s issued against settlement %s", result.RefundID, settlementID)
	if reason != "" {
		note += ": " + reason
	}
	if err := r.store.AddAuditNote(ctx, paymentID, note); err != nil {
		log.Printf("warning: failed to record refund audit note for payment %s: %v", paymentID, err)
	}
}
