package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"northcart-payment-engine/models"
)

// PaymentStore persists payment records and compensation audit notes in
// MySQL. It implements payment.Store.
type PaymentStore struct {
	conn *Connection
}

func NewPaymentStore(conn *Connection) *PaymentStore {
	return &PaymentStore{conn: conn}
}

func (s *PaymentStore) CreatePayment(ctx context.Context, record models.PaymentRecord) error {
	_, err := s.conn.GetDB().ExecContext(ctx, `
        INSERT INTO payments (
            id, order_id, merchant_ref, amount_minor, currency,
            status, card_brand, last4, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW())`,
		record.ID,
		record.OrderID,
		record.MerchantRef,
		record.AmountMinor,
		record.Currency,
		string(record.Status),
		record.CardBrand,
		record.Last4,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment record: %v", err)
	}
	return nil
}

func (s *PaymentStore) UpdatePaymentStatus(ctx context.Context, paymentID string, status models.PaymentStatus) error {
	_, err := s.conn.GetDB().ExecContext(ctx, `
        UPDATE payments
        SET status = ?, updated_at = NOW()
        WHERE id = ?`,
		string(status), paymentID,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %v", err)
	}
	return nil
}

func (s *PaymentStore) SetTransactionResult(ctx context.Context, paymentID, transactionID, authCode, cardBrand, last4 string) error {
	_, err := s.conn.GetDB().ExecContext(ctx, `
        UPDATE payments
        SET transaction_id = ?,
            auth_code = IF(? = '', auth_code, ?),
            card_brand = IF(? = '', card_brand, ?),
            last4 = IF(? = '', last4, ?),
            updated_at = NOW()
        WHERE id = ?`,
		transactionID,
		authCode, authCode,
		cardBrand, cardBrand,
		last4, last4,
		paymentID,
	)
	if err != nil {
		return fmt.Errorf("failed to record transaction result: %v", err)
	}
	return nil
}

func (s *PaymentStore) SetSettlementID(ctx context.Context, paymentID, settlementID string) error {
	_, err := s.conn.GetDB().ExecContext(ctx, `
        UPDATE payments
        SET settlement_id = ?, updated_at = NOW()
        WHERE id = ?`,
		settlementID, paymentID,
	)
	if err != nil {
		return fmt.Errorf("failed to record settlement id: %v", err)
	}
	return nil
}

func (s *PaymentStore) AddAuditNote(ctx context.Context, paymentID, note string) error {
	_, err := s.conn.GetDB().ExecContext(ctx, `
        INSERT INTO payment_audit_notes (payment_id, note, created_at)
        VALUES (?, ?, NOW())`,
		paymentID, note,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit note: %v", err)
	}
	return nil
}

func (s *PaymentStore) GetPayment(ctx context.Context, paymentID string) (models.PaymentRecord, error) {
	return s.scanPayment(s.conn.GetDB().QueryRowContext(ctx, `
        SELECT id, order_id, merchant_ref, amount_minor, currency, status,
               COALESCE(transaction_id, ''), COALESCE(settlement_id, ''),
               COALESCE(auth_code, ''), COALESCE(card_brand, ''),
               COALESCE(last4, ''), created_at, updated_at
        FROM payments
        WHERE id = ?`, paymentID))
}

func (s *PaymentStore) GetPaymentByTransaction(ctx context.Context, transactionID string) (models.PaymentRecord, error) {
	return s.scanPayment(s.conn.GetDB().QueryRowContext(ctx, `
        SELECT id, order_id, merchant_ref, amount_minor, currency, status,
               COALESCE(transaction_id, ''), COALESCE(settlement_id, ''),
               COALESCE(auth_code, ''), COALESCE(card_brand, ''),
               COALESCE(last4, ''), created_at, updated_at
        FROM payments
        WHERE transaction_id = ?`, transactionID))
}

func (s *PaymentStore) scanPayment(row *sql.Row) (models.PaymentRecord, error) {
	var record models.PaymentRecord
	var status string
	var createdAt, updatedAt time.Time

	err := row.Scan(
		&record.ID,
		&record.OrderID,
		&record.MerchantRef,
		&record.AmountMinor,
		&record.Currency,
		&status,
		&record.TransactionID,
		&record.SettlementID,
		&record.AuthCode,
		&record.CardBrand,
		&record.Last4,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return models.PaymentRecord{}, fmt.Errorf("payment lookup failed: %v", err)
	}

	record.Status = models.PaymentStatus(status)
	record.CreatedAt = createdAt
	record.UpdatedAt = updatedAt
	return record, nil
}

// GetAuditNotes returns the compensation audit trail for a payment, oldest
// first.
func (s *PaymentStore) GetAuditNotes(ctx context.Context, paymentID string) ([]models.AuditNote, error) {
	rows, err := s.conn.GetDB().QueryContext(ctx, `
        SELECT payment_id, note, created_at
        FROM payment_audit_notes
        WHERE payment_id = ?
        ORDER BY created_at`, paymentID)
	if err != nil {
		return nil, fmt.Errorf("audit note lookup failed: %v", err)
	}
	defer rows.Close()

	var notes []models.AuditNote
	for rows.Next() {
		var note models.AuditNote
		if err := rows.Scan(&note.PaymentID, &note.Note, &note.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit note scan failed: %v", err)
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}
