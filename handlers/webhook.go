package handlers

import (
	"fmt"
	"io"
	"log"
	"net/http"

	"northcart-payment-engine/middleware"
	"northcart-payment-engine/models"
	"northcart-payment-engine/services/webhook"
	"northcart-payment-engine/utils"
)

// maxWebhookBody bounds processor event payloads.
const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	verifier  *webhook.Verifier
	processor *webhook.Processor
}

func NewWebhookHandler(verifier *webhook.Verifier, processor *webhook.Processor) (*WebhookHandler, error) {
	if verifier == nil {
		return nil, fmt.Errorf("webhook verifier is required")
	}
	if processor == nil {
		return nil, fmt.Errorf("webhook processor is required")
	}
	return &WebhookHandler{verifier: verifier, processor: processor}, nil
}

// HandleEvent verifies and applies one processor notification. Verification
// fails closed: no valid signature, no processing.
func (h *WebhookHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		log.Printf("Failed to read webhook body from %s: %v", middleware.ClientIP(r), err)
		utils.SendErrorResponse(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	signature := r.Header.Get("X-Signature")
	if err := h.verifier.Verify(body, signature); err != nil {
		log.Printf("Rejected webhook from %s: %v", middleware.ClientIP(r), err)
		utils.SendErrorResponse(w, http.StatusUnauthorized, "Invalid webhook signature")
		return
	}

	if err := h.processor.Handle(r.Context(), body); err != nil {
		log.Printf("Failed to apply webhook event: %v", err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to process event")
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Event processed",
	})
}
