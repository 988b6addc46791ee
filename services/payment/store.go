package payment

import (
	"context"

	"northcart-payment-engine/models"
)

// Store persists payment records and their compensation audit trail. The
// order collaborator reads transaction metadata back from it.
type Store interface {
	CreatePayment(ctx context.Context, record models.PaymentRecord) error
	UpdatePaymentStatus(ctx context.Context, paymentID string, status models.PaymentStatus) error
	// SetTransactionResult attaches the processor-side metadata to the
	// record once an authorization exists.
	SetTransactionResult(ctx context.Context, paymentID, transactionID, authCode, cardBrand, last4 string) error
	SetSettlementID(ctx context.Context, paymentID, settlementID string) error
	AddAuditNote(ctx context.Context, paymentID, note string) error
	GetPayment(ctx context.Context, paymentID string) (models.PaymentRecord, error)
	GetPaymentByTransaction(ctx context.Context, transactionID string) (models.PaymentRecord, error)
}
