package models

import "time"

// PaymentStatus tracks a payment attempt through authorization and
// compensation. Terminal states are settled, voided and void_failed.
type PaymentStatus string

const (
	StatusInitiated     PaymentStatus = "initiated"
	StatusCompleted     PaymentStatus = "completed"
	StatusFailedNoHold  PaymentStatus = "failed"
	StatusSettling      PaymentStatus = "settling"
	StatusSettled       PaymentStatus = "settled"
	StatusVoidRequested PaymentStatus = "void_requested"
	StatusVoided        PaymentStatus = "voided"
	// StatusVoidFailed marks an authorization hold that could not be
	// released automatically and needs manual operator action.
	StatusVoidFailed    PaymentStatus = "void_failed"
	// StatusSelfResolving marks a hold the processor will release on its
	// own (void declined because the auth already declined downstream).
	StatusSelfResolving PaymentStatus = "self_resolving"
	StatusRefunded      PaymentStatus = "refunded"
)

// PaymentRecord is the persisted view of one payment attempt. The order
// collaborator reads transaction metadata back from here.
type PaymentRecord struct {
	ID            string        `json:"id"`
	OrderID       string        `json:"orderId"`
	MerchantRef   string        `json:"merchantRef"`
	AmountMinor   int64         `json:"amountMinor"`
	Currency      string        `json:"currency"`
	Status        PaymentStatus `json:"status"`
	TransactionID string        `json:"transactionId,omitempty"`
	SettlementID  string        `json:"settlementId,omitempty"`
	AuthCode      string        `json:"authCode,omitempty"`
	CardBrand     string        `json:"cardBrand,omitempty"`
	Last4         string        `json:"last4,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// AuditNote is one line of the compensation audit trail attached to a
// payment record.
type AuditNote struct {
	PaymentID string    `json:"paymentId"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChargeResult is returned to the caller after a charge attempt. Message is
// always a customer-safe message, never raw processor text.
type ChargeResult struct {
	Success       bool          `json:"success"`
	PaymentID     string        `json:"payment_id,omitempty"`
	TransactionID string        `json:"transaction_id,omitempty"`
	AuthCode      string        `json:"auth_code,omitempty"`
	Status        PaymentStatus `json:"status"`
	Message       string        `json:"message,omitempty"`
	Duplicate     bool          `json:"is_duplicate,omitempty"`
}

// RefundResult reports the outcome of a refund call.
type RefundResult struct {
	Success      bool   `json:"success"`
	RefundID     string `json:"refund_id,omitempty"`
	SettlementID string `json:"settlement_id,omitempty"`
	Status       string `json:"status,omitempty"`
	Message      string `json:"message,omitempty"`
}
