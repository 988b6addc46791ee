package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"northcart-payment-engine/models"
	"northcart-payment-engine/services/payment"
	"northcart-payment-engine/services/processor"
)

// Event is a processor webhook notification about a payment object.
type Event struct {
	EventType string `json:"eventType"`
	Payment   struct {
		ID             string `json:"id"`
		MerchantRefNum string `json:"merchantRefNum"`
		AuthID         string `json:"authId,omitempty"`
		SettlementID   string `json:"settlementId,omitempty"`
		Status         string `json:"status,omitempty"`
	} `json:"payment"`
}

// Processor applies verified webhook events to payment records.
type Processor struct {
	store payment.Store
}

func NewProcessor(store payment.Store) *Processor {
	return &Processor{store: store}
}

// Handle updates the local payment record for one event. Unknown event
// types are logged and skipped, not failed, so the processor keeps
// delivering.
func (p *Processor) Handle(ctx context.Context, raw []byte) error {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return fmt.Errorf("error decoding webhook event: %v", err)
	}

	authID := event.Payment.AuthID
	if authID == "" {
		authID = event.Payment.ID
	}
	if authID == "" {
		return fmt.Errorf("webhook event %s carries no payment id", event.EventType)
	}

	record, err := p.store.GetPaymentByTransaction(ctx, authID)
	if err != nil {
		log.Printf("webhook event %s for unknown transaction %s…: %v", event.EventType, safePrefix(authID), err)
		return nil
	}

	switch event.EventType {
	case "SETTLEMENT_COMPLETED":
		if event.Payment.SettlementID != "" {
			if err := p.store.SetSettlementID(ctx, record.ID, event.Payment.SettlementID); err != nil {
				return fmt.Errorf("failed to store settlement id: %v", err)
			}
		}
		if err := p.store.UpdatePaymentStatus(ctx, record.ID, models.StatusSettled); err != nil {
			return fmt.Errorf("failed to update payment status: %v", err)
		}
		log.Printf("payment %s settled via webhook: %s", record.ID, processor.SanitizeString(string(raw)))
	case "SETTLEMENT_ERRORED", "SETTLEMENT_CANCELLED":
		if err := p.store.UpdatePaymentStatus(ctx, record.ID, models.StatusFailedNoHold); err != nil {
			return fmt.Errorf("failed to update payment status: %v", err)
		}
		if err := p.store.AddAuditNote(ctx, record.ID, fmt.Sprintf("settlement reported %s by processor webhook", event.EventType)); err != nil {
			log.Printf("warning: failed to record webhook audit note: %v", err)
		}
	default:
		log.Printf("ignoring webhook event type %s for payment %s", event.EventType, record.ID)
	}
	return nil
}

func safePrefix(id string) string {
	if len(id) <= 4 {
		return id
	}
	return id[:4]
}
