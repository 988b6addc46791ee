package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"northcart-payment-engine/middleware"
	"northcart-payment-engine/models"
	"northcart-payment-engine/services/processor"
	"northcart-payment-engine/services/vault"
	"northcart-payment-engine/utils"
)

type CardHandler struct {
	vault *vault.Manager
}

func NewCardHandler(v *vault.Manager) (*CardHandler, error) {
	if v == nil {
		return nil, fmt.Errorf("vault manager is required")
	}
	return &CardHandler{vault: v}, nil
}

// DeleteCard removes a stored card token from a vault profile. Operator-only.
func (h *CardHandler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	profileID := vars["profileId"]
	cardID := vars["cardId"]

	if profileID == "" || cardID == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Profile id and card id are required")
		return
	}

	operator := middleware.OperatorFromContext(r.Context())
	log.Printf("Operator %s deleting card %s from profile %s", operator, cardID, profileID)

	if err := h.vault.DeleteCard(r.Context(), profileID, cardID); err != nil {
		var apiErr *processor.APIError
		if errors.As(err, &apiErr) && apiErr.Code == processor.CodeNotFound {
			utils.SendErrorResponse(w, http.StatusNotFound, "Card not found")
			return
		}
		log.Printf("Failed to delete card %s from profile %s: %v", cardID, profileID, err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to delete card")
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Card deleted",
	})
}
