package processor

import "fmt"

// Endpoint paths for the subset of the processor API this engine uses.

func ProfilesPath() string {
	return "/customervault/v1/profiles"
}

func ProfilePath(profileID string, withCards bool) string {
	if withCards {
		return fmt.Sprintf("/customervault/v1/profiles/%s?fields=cards", profileID)
	}
	return fmt.Sprintf("/customervault/v1/profiles/%s", profileID)
}

func ProfileCardsPath(profileID string) string {
	return fmt.Sprintf("/customervault/v1/profiles/%s/cards", profileID)
}

func ProfileCardPath(profileID, cardID string) string {
	return fmt.Sprintf("/customervault/v1/profiles/%s/cards/%s", profileID, cardID)
}

func SingleUseTokensPath() string {
	return "/customervault/v1/singleusetokens"
}

func AuthsPath(accountID string) string {
	return fmt.Sprintf("/cardpayments/v1/accounts/%s/auths", accountID)
}

func AuthPath(accountID, authID string) string {
	return fmt.Sprintf("/cardpayments/v1/accounts/%s/auths/%s", accountID, authID)
}

func VoidAuthsPath(accountID, authID string) string {
	return fmt.Sprintf("/cardpayments/v1/accounts/%s/auths/%s/voidauths", accountID, authID)
}

func RefundsPath(accountID, settlementID string) string {
	return fmt.Sprintf("/cardpayments/v1/accounts/%s/settlements/%s/refunds", accountID, settlementID)
}

func SettlementPath(accountID, settlementID string) string {
	return fmt.Sprintf("/cardpayments/v1/accounts/%s/settlements/%s", accountID, settlementID)
}
