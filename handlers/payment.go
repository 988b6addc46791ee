package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"northcart-payment-engine/models"
	"northcart-payment-engine/ratelimit"
	"northcart-payment-engine/services/payment"
	"northcart-payment-engine/services/processor"
	"northcart-payment-engine/services/vault"
	"northcart-payment-engine/utils"
)

// PaymentReader is the read side used by the lookup endpoint.
type PaymentReader interface {
	GetPayment(ctx context.Context, paymentID string) (models.PaymentRecord, error)
	GetAuditNotes(ctx context.Context, paymentID string) ([]models.AuditNote, error)
}

type PaymentHandler struct {
	vault        *vault.Manager
	orchestrator *payment.Orchestrator
	reader       PaymentReader
}

func NewPaymentHandler(v *vault.Manager, o *payment.Orchestrator, reader PaymentReader) (*PaymentHandler, error) {
	if v == nil {
		return nil, fmt.Errorf("vault manager is required")
	}
	if o == nil {
		return nil, fmt.Errorf("payment orchestrator is required")
	}
	if reader == nil {
		return nil, fmt.Errorf("payment reader is required")
	}
	return &PaymentHandler{vault: v, orchestrator: o, reader: reader}, nil
}

// ProcessPayment runs one charge attempt end to end: gate on the flow
// decision, resolve a permanent card token, then authorize.
func (h *PaymentHandler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()
	log.Printf("[RequestID: %s] Starting payment processing", requestID)

	var req models.ChargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[RequestID: %s] Failed to decode request body: %v", requestID, err)
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !req.Decision.Ready || req.Decision.Flow == models.FlowBlocked {
		log.Printf("[RequestID: %s] Charge blocked by flow decision (flow=%s, ready=%v)",
			requestID, req.Decision.Flow, req.Decision.Ready)
		message := "Payment is not ready to be processed"
		if len(req.Decision.Errors) > 0 {
			message = req.Decision.Errors[0]
		}
		utils.SendErrorResponse(w, http.StatusUnprocessableEntity, message)
		return
	}

	amountMinor, err := utils.ParseAmountMinor(req.Amount, req.Currency)
	if err != nil {
		log.Printf("[RequestID: %s] Invalid amount %q: %v", requestID, req.Amount, err)
		utils.SendErrorResponse(w, http.StatusUnprocessableEntity, "Invalid payment amount")
		return
	}

	token, duplicate, err := h.resolveToken(r.Context(), req)
	if err != nil {
		h.writeChargeError(w, requestID, err)
		return
	}

	result, err := h.orchestrator.Authorize(r.Context(), payment.AuthRequest{
		OrderID:       req.OrderID,
		AmountMinor:   amountMinor,
		Currency:      req.Currency,
		PaymentToken:  token.PaymentToken,
		CardBrand:     token.Brand,
		Last4:         token.Last4,
		CustomerEmail: req.Customer.Email,
		Billing:       req.Billing,
		ThreeDS:       req.ThreeDS,
	})
	if err != nil {
		h.writeChargeError(w, requestID, err)
		return
	}

	result.Duplicate = duplicate

	if !result.Success {
		log.Printf("[RequestID: %s] Payment %s declined: %s", requestID, result.PaymentID, result.Message)
		sendJSON(w, http.StatusPaymentRequired, models.APIResponse{
			Status:  "declined",
			Message: result.Message,
			Data:    result,
		})
		return
	}

	log.Printf("[RequestID: %s] Payment %s authorized (transaction %s)",
		requestID, result.PaymentID, result.TransactionID)
	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Payment authorized",
		Data:    result,
	})
}

// resolveToken maps the decision flow to a permanent card token. Raw card
// data and single-use tokens never travel past this point.
func (h *PaymentHandler) resolveToken(ctx context.Context, req models.ChargeRequest) (models.CardToken, bool, error) {
	switch req.Decision.Flow {
	case models.FlowSavedCard, models.FlowAlreadyTokenized:
		if req.PaymentToken == "" {
			return models.CardToken{}, false, &payment.ValidationError{Field: "paymentToken", Message: "payment token is required for this flow"}
		}
		return models.CardToken{PaymentToken: req.PaymentToken}, false, nil

	case models.FlowHostedTokenize:
		if req.SingleUseToken == "" {
			return models.CardToken{}, false, &payment.ValidationError{Field: "singleUseToken", Message: "single-use token is required for this flow"}
		}
		profile, err := h.vault.EnsureProfile(ctx, req.Customer)
		if err != nil {
			return models.CardToken{}, false, err
		}
		// The hosted field gives no card fingerprint, so duplicate
		// detection falls back to the processor's own rejection.
		tokenized, err := h.vault.TokenizeCard(ctx, profile.ProfileID, req.SingleUseToken, "", 0, 0)
		if err != nil {
			return models.CardToken{}, false, err
		}
		return tokenized.Card, tokenized.Duplicate, nil

	case models.FlowDirectTokenize:
		if req.Card == nil || req.Card.Number == "" {
			return models.CardToken{}, false, &payment.ValidationError{Field: "card", Message: "card data is required for this flow"}
		}
		profile, err := h.vault.EnsureProfile(ctx, req.Customer)
		if err != nil {
			return models.CardToken{}, false, err
		}
		singleUse, err := h.vault.CreateSingleUseToken(ctx, *req.Card)
		if err != nil {
			return models.CardToken{}, false, err
		}
		last4 := req.Card.Number
		if len(last4) > 4 {
			last4 = last4[len(last4)-4:]
		}
		tokenized, err := h.vault.TokenizeCard(ctx, profile.ProfileID, singleUse, last4, req.Card.ExpiryMonth, req.Card.ExpiryYear)
		if err != nil {
			return models.CardToken{}, false, err
		}
		return tokenized.Card, tokenized.Duplicate, nil
	}

	return models.CardToken{}, false, &payment.ValidationError{Field: "decision.flow", Message: fmt.Sprintf("unknown payment flow %q", req.Decision.Flow)}
}

// writeChargeError maps engine faults to HTTP statuses. Raw processor text
// never reaches the response.
func (h *PaymentHandler) writeChargeError(w http.ResponseWriter, requestID string, err error) {
	var validationErr *payment.ValidationError
	if errors.As(err, &validationErr) {
		log.Printf("[RequestID: %s] Validation failed: %v", requestID, validationErr)
		utils.SendErrorResponse(w, http.StatusUnprocessableEntity, validationErr.Message)
		return
	}

	var rateErr *ratelimit.RateLimitError
	if errors.As(err, &rateErr) {
		log.Printf("[RequestID: %s] Processor rate limit hit, retry in %ds", requestID, rateErr.WaitSeconds)
		w.Header().Set("Retry-After", strconv.Itoa(rateErr.WaitSeconds))
		utils.SendErrorResponse(w, http.StatusTooManyRequests,
			fmt.Sprintf("Too many payment attempts, please try again in %d seconds", rateErr.WaitSeconds))
		return
	}

	var compErr *payment.CompensationError
	if errors.As(err, &compErr) {
		log.Printf("[RequestID: %s] COMPENSATION FAILURE: %v", requestID, compErr)
		utils.SendErrorResponse(w, http.StatusInternalServerError,
			"Payment could not be completed and is being reviewed. Please do not retry.")
		return
	}

	var transportErr *processor.TransportError
	if errors.As(err, &transportErr) {
		log.Printf("[RequestID: %s] Processor transport failure: %v", requestID, transportErr)
		utils.SendErrorResponse(w, http.StatusBadGateway, "Payment service is temporarily unavailable")
		return
	}

	var apiErr *processor.APIError
	if errors.As(err, &apiErr) {
		log.Printf("[RequestID: %s] Processor rejected the request: code=%s status=%d", requestID, apiErr.Code, apiErr.HTTPStatus)
		utils.SendErrorResponse(w, http.StatusPaymentRequired, apiErr.Message)
		return
	}

	log.Printf("[RequestID: %s] Unexpected error: %v", requestID, err)
	utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to process payment")
}

// GetPayment returns a payment record with its audit trail.
func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := mux.Vars(r)["id"]
	if paymentID == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Payment id is required")
		return
	}

	record, err := h.reader.GetPayment(r.Context(), paymentID)
	if err != nil {
		log.Printf("Payment lookup failed for %s: %v", paymentID, err)
		utils.SendErrorResponse(w, http.StatusNotFound, "Payment not found")
		return
	}

	notes, err := h.reader.GetAuditNotes(r.Context(), paymentID)
	if err != nil {
		log.Printf("Audit note lookup failed for %s: %v", paymentID, err)
		notes = nil
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Payment retrieved",
		Data: map[string]interface{}{
			"payment":     record,
			"audit_notes": notes,
		},
	})
}

func sendJSON(w http.ResponseWriter, status int, response models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}
