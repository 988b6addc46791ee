package models

// VaultProfile maps a merchant customer identity to the processor-side
// vault profile. Created lazily, at most once per identity.
type VaultProfile struct {
	ProfileID          string `json:"profileId"`
	MerchantCustomerID string `json:"merchantCustomerId"`
	CreatedFor         string `json:"createdFor"`
}

// CardToken is a permanent, reusable reference to a stored card. The PAN
// never appears here.
type CardToken struct {
	PaymentToken string `json:"paymentToken"`
	CardID       string `json:"cardId"`
	Brand        string `json:"brand"`
	Last4        string `json:"last4"`
	ExpiryMonth  int    `json:"expiryMonth"`
	ExpiryYear   int    `json:"expiryYear"`
	ProfileID    string `json:"profileId"`
}

// TokenizeResult is the outcome of converting a single-use token into a
// vault token. Duplicate means the card already existed in the profile and
// the returned token is the existing one; callers must not persist a second
// local record for it.
type TokenizeResult struct {
	Card      CardToken `json:"card"`
	Duplicate bool      `json:"duplicate"`
}
