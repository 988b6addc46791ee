package database

import (
	"context"
	"database/sql"
	"fmt"

	"northcart-payment-engine/models"
)

// VaultStore persists the local mapping of customer identities to
// processor vault profiles and stored card tokens. It implements
// vault.ProfileStore.
type VaultStore struct {
	conn *Connection
}

func NewVaultStore(conn *Connection) *VaultStore {
	return &VaultStore{conn: conn}
}

func (s *VaultStore) LookupProfileID(ctx context.Context, customerKey string) (string, error) {
	var profileID string
	err := s.conn.GetDB().QueryRowContext(ctx, `
        SELECT profile_id FROM vault_profiles WHERE customer_key = ?`,
		customerKey,
	).Scan(&profileID)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("vault profile lookup failed: %v", err)
	}
	return profileID, nil
}

func (s *VaultStore) SaveProfile(ctx context.Context, profile models.VaultProfile) error {
	// Concurrent checkouts for the same customer may race to create the
	// profile; last write wins and both point at the same processor id.
	_, err := s.conn.GetDB().ExecContext(ctx, `
        INSERT INTO vault_profiles (customer_key, profile_id, merchant_customer_id, created_at)
        VALUES (?, ?, ?, NOW())
        ON DUPLICATE KEY UPDATE
        profile_id = VALUES(profile_id)`,
		profile.CreatedFor, profile.ProfileID, profile.MerchantCustomerID,
	)
	if err != nil {
		return fmt.Errorf("failed to save vault profile: %v", err)
	}
	return nil
}

func (s *VaultStore) SaveCard(ctx context.Context, card models.CardToken) error {
	_, err := s.conn.GetDB().ExecContext(ctx, `
        INSERT INTO vault_cards (
            profile_id, card_id, payment_token, brand, last4,
            exp_month, exp_year, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, NOW())
        ON DUPLICATE KEY UPDATE
        payment_token = VALUES(payment_token)`,
		card.ProfileID, card.CardID, card.PaymentToken, card.Brand,
		card.Last4, card.ExpiryMonth, card.ExpiryYear,
	)
	if err != nil {
		return fmt.Errorf("failed to save vault card: %v", err)
	}
	return nil
}

func (s *VaultStore) DeleteCard(ctx context.Context, profileID, cardID string) error {
	_, err := s.conn.GetDB().ExecContext(ctx, `
        DELETE FROM vault_cards WHERE profile_id = ? AND card_id = ?`,
		profileID, cardID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete vault card record: %v", err)
	}
	return nil
}
