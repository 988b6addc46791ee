package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"northcart-payment-engine/middleware"
	"northcart-payment-engine/models"
	"northcart-payment-engine/ratelimit"
	"northcart-payment-engine/services/payment"
	"northcart-payment-engine/services/processor"
	"northcart-payment-engine/utils"
)

type RefundHandler struct {
	resolver *payment.RefundResolver
	reader   PaymentReader
}

func NewRefundHandler(resolver *payment.RefundResolver, reader PaymentReader) (*RefundHandler, error) {
	if resolver == nil {
		return nil, fmt.Errorf("refund resolver is required")
	}
	if reader == nil {
		return nil, fmt.Errorf("payment reader is required")
	}
	return &RefundHandler{resolver: resolver, reader: reader}, nil
}

// ProcessRefund reverses settled funds for a payment. Operator-only.
func (h *RefundHandler) ProcessRefund(w http.ResponseWriter, r *http.Request) {
	operator := middleware.OperatorFromContext(r.Context())

	var req models.RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("Failed to decode refund request: %v", err)
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.PaymentID == "" {
		utils.SendErrorResponse(w, http.StatusUnprocessableEntity, "Payment id is required")
		return
	}

	record, err := h.reader.GetPayment(r.Context(), req.PaymentID)
	if err != nil {
		log.Printf("Refund requested for unknown payment %s by %s: %v", req.PaymentID, operator, err)
		utils.SendErrorResponse(w, http.StatusNotFound, "Payment not found")
		return
	}

	amountMinor, err := utils.ParseAmountMinor(req.Amount, record.Currency)
	if err != nil {
		log.Printf("Invalid refund amount %q for payment %s: %v", req.Amount, req.PaymentID, err)
		utils.SendErrorResponse(w, http.StatusUnprocessableEntity, "Invalid refund amount")
		return
	}

	log.Printf("Operator %s refunding %d minor units of payment %s", operator, amountMinor, req.PaymentID)

	result, err := h.resolver.Refund(r.Context(), req.PaymentID, amountMinor, req.Reason)
	if err != nil {
		h.writeRefundError(w, req.PaymentID, err)
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Refund submitted",
		Data:    result,
	})
}

func (h *RefundHandler) writeRefundError(w http.ResponseWriter, paymentID string, err error) {
	var validationErr *payment.ValidationError
	if errors.As(err, &validationErr) {
		utils.SendErrorResponse(w, http.StatusUnprocessableEntity, validationErr.Message)
		return
	}

	var rateErr *ratelimit.RateLimitError
	if errors.As(err, &rateErr) {
		w.Header().Set("Retry-After", strconv.Itoa(rateErr.WaitSeconds))
		utils.SendErrorResponse(w, http.StatusTooManyRequests,
			fmt.Sprintf("Too many processor requests, please try again in %d seconds", rateErr.WaitSeconds))
		return
	}

	var compErr *payment.CompensationError
	if errors.As(err, &compErr) {
		log.Printf("REFUND RESOLUTION FAILURE for payment %s: %v", paymentID, compErr)
		utils.SendErrorResponse(w, http.StatusConflict,
			"Refund target could not be resolved, manual review required")
		return
	}

	var transportErr *processor.TransportError
	if errors.As(err, &transportErr) {
		log.Printf("Processor transport failure during refund of %s: %v", paymentID, transportErr)
		utils.SendErrorResponse(w, http.StatusBadGateway, "Payment service is temporarily unavailable")
		return
	}

	var apiErr *processor.APIError
	if errors.As(err, &apiErr) {
		log.Printf("Processor rejected refund of %s: code=%s status=%d", paymentID, apiErr.Code, apiErr.HTTPStatus)
		utils.SendErrorResponse(w, http.StatusUnprocessableEntity, apiErr.Message)
		return
	}

	log.Printf("Unexpected error refunding payment %s: %v", paymentID, err)
	utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to process refund")
}
