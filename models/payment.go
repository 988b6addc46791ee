package models

// Flow is the tokenization path selected client-side by the checkout's
// payment flow decision logic. The engine consumes the decision record as an
// input contract and never recomputes it.
type Flow string

const (
	FlowSavedCard        Flow = "saved_card"
	FlowHostedTokenize   Flow = "hosted_tokenize"
	FlowDirectTokenize   Flow = "direct_tokenize"
	FlowAlreadyTokenized Flow = "already_tokenized"
	FlowBlocked          Flow = "blocked"
)

// FlowDecision is the client-side decision record that gates whether the
// tokenize/authorize path runs at all.
type FlowDecision struct {
	Flow   Flow     `json:"flow"`
	Ready  bool     `json:"ready"`
	Errors []string `json:"errors,omitempty"`
}

// BillingAddress carries the cardholder billing address supplied by the
// order collaborator. State/province is normalized to a 2-letter code
// before it reaches the processor.
type BillingAddress struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Street    string `json:"street,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	Zip       string `json:"zip,omitempty"`
	Country   string `json:"country,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// ThreeDSData is the optional 3-D Secure block passed through on an
// authorization.
type ThreeDSData struct {
	Enabled     bool   `json:"enabled"`
	Cavv        string `json:"cavv,omitempty"`
	Xid         string `json:"xid,omitempty"`
	Eci         string `json:"eci,omitempty"`
	ThreeDSVersion string `json:"threeDSVersion,omitempty"`
}

// CardInput is raw card data for the direct_tokenize flow. It is exchanged
// for a single-use token immediately and never persisted.
type CardInput struct {
	HolderName string `json:"holderName"`
	Number     string `json:"number"`
	ExpiryMonth int   `json:"expiryMonth"`
	ExpiryYear  int   `json:"expiryYear"`
	CVV        string `json:"cvv"`
}

// CustomerRef identifies the customer on whose behalf a charge runs. Guests
// get a GuestRef instead of a merchant customer id.
type CustomerRef struct {
	CustomerID string `json:"customerId,omitempty"`
	Email      string `json:"email,omitempty"`
	GuestRef   string `json:"guestRef,omitempty"`
}

// ChargeRequest is the inbound charge payload: order data from the order
// collaborator plus the client-side flow decision and token source.
type ChargeRequest struct {
	OrderID       string          `json:"orderId"`
	Amount        string          `json:"amount"`
	Currency      string          `json:"currency"`
	Decision      FlowDecision    `json:"decision"`
	PaymentToken  string          `json:"paymentToken,omitempty"`
	SingleUseToken string         `json:"singleUseToken,omitempty"`
	Card          *CardInput      `json:"card,omitempty"`
	Customer      CustomerRef     `json:"customer"`
	Billing       *BillingAddress `json:"billing,omitempty"`
	ThreeDS       *ThreeDSData    `json:"threeDS,omitempty"`
}

// RefundRequest asks for a full or partial reversal of settled funds. The
// target may be an explicit settlement id or a historical transaction id
// needing resolution.
type RefundRequest struct {
	PaymentID string `json:"paymentId"`
	Amount    string `json:"amount"`
	Reason    string `json:"reason,omitempty"`
}
