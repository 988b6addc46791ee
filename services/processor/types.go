package processor

import (
	"encoding/json"
	"strings"
)

// Response is a decoded processor reply. Body holds the generic map view
// for fields the typed shapes do not cover; Raw keeps the exact bytes for
// typed decoding. Neither is ever persisted.
type Response struct {
	Status int
	Raw    []byte
	Body   map[string]interface{}
}

// Decode unmarshals the raw body into a typed shape.
func (r *Response) Decode(v interface{}) error {
	return json.Unmarshal(r.Raw, v)
}

// Empty reports a success-with-no-data reply (empty or literal null body).
func (r *Response) Empty() bool {
	return r.Body == nil
}

// NameValue is one entry of an additionalDetails list.
type NameValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// FieldError is a per-field validation error from the processor.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// APIErrorBody is the processor's structured error object.
type APIErrorBody struct {
	Code        string       `json:"code"`
	Message     string       `json:"message"`
	Details     []string     `json:"details,omitempty"`
	FieldErrors []FieldError `json:"fieldErrors,omitempty"`
}

// ErrorEnvelope is the outer error response shape. Even failed calls can
// carry an id (the created authorization) plus AVS/CVV/risk signals.
type ErrorEnvelope struct {
	Error             *APIErrorBody `json:"error,omitempty"`
	ID                string        `json:"id,omitempty"`
	AVSResponse       string        `json:"avsResponse,omitempty"`
	CVVVerification   string        `json:"cvvVerification,omitempty"`
	AdditionalDetails []NameValue   `json:"additionalDetails,omitempty"`
}

// Envelope decodes the error envelope view of the response. A body that is
// not an object yields an empty envelope.
func (r *Response) Envelope() ErrorEnvelope {
	var env ErrorEnvelope
	if len(r.Raw) > 0 {
		_ = json.Unmarshal(r.Raw, &env)
	}
	return env
}

// RiskDetail returns the RISK_RESPONSE additional-detail value, if present.
func (e ErrorEnvelope) RiskDetail() (string, bool) {
	for _, d := range e.AdditionalDetails {
		if strings.EqualFold(d.Name, "RISK_RESPONSE") {
			return d.Value, true
		}
	}
	return "", false
}

// ErrorCode returns the structured error code, or "".
func (e ErrorEnvelope) ErrorCode() string {
	if e.Error == nil {
		return ""
	}
	return e.Error.Code
}

// CardExpiry is a card expiry as the processor represents it.
type CardExpiry struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

// Card is a stored card in a vault profile.
type Card struct {
	ID           string     `json:"id"`
	PaymentToken string     `json:"paymentToken"`
	CardType     string     `json:"cardType"`
	LastDigits   string     `json:"lastDigits"`
	CardExpiry   CardExpiry `json:"cardExpiry"`
	Status       string     `json:"status,omitempty"`
	HolderName   string     `json:"holderName,omitempty"`
}

// Profile is a customer vault profile.
type Profile struct {
	ID                 string `json:"id"`
	MerchantCustomerID string `json:"merchantCustomerId"`
	Status             string `json:"status,omitempty"`
	Email              string `json:"email,omitempty"`
	Cards              []Card `json:"cards,omitempty"`
}

// SingleUseToken is a short-lived token representing raw card data.
type SingleUseToken struct {
	ID          string `json:"id"`
	PaymentToken string `json:"paymentToken"`
	TimeToLiveSeconds int `json:"timeToLiveSeconds,omitempty"`
}

// SettlementLink is the settlement reference carried on an authorization.
type SettlementLink struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`
	Amount int64  `json:"amount,omitempty"`
}

// AuthResponse is the authorization response shape.
type AuthResponse struct {
	ID              string           `json:"id"`
	MerchantRefNum  string           `json:"merchantRefNum"`
	Status          string           `json:"status"`
	AuthCode        string           `json:"authCode,omitempty"`
	AVSResponse     string           `json:"avsResponse,omitempty"`
	CVVVerification string           `json:"cvvVerification,omitempty"`
	Settlements     []SettlementLink `json:"settlements,omitempty"`
	Card            *Card            `json:"card,omitempty"`
	Error           *APIErrorBody    `json:"error,omitempty"`
}

// RefundResponse is the settlement refund response shape.
type RefundResponse struct {
	ID             string `json:"id"`
	MerchantRefNum string `json:"merchantRefNum"`
	Status         string `json:"status"`
	Amount         int64  `json:"amount,omitempty"`
}
