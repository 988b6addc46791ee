package processor

// ErrorCode is the stable error taxonomy surfaced by the engine. Processor
// numeric codes, AVS/CVV result codes and HTTP statuses all normalize into
// this closed set; nothing outside it ever reaches a caller.
type ErrorCode string

const (
	CodeAVSFailed         ErrorCode = "AVS_FAILED"
	CodeCVVFailed         ErrorCode = "CVV_FAILED"
	CodeInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"
	CodeExpiredCard       ErrorCode = "EXPIRED_CARD"
	CodeInvalidCard       ErrorCode = "INVALID_CARD"
	CodeDeclined          ErrorCode = "DECLINED"

	CodeRiskDeclined    ErrorCode = "RISK_DECLINED"
	CodeRiskMaxAttempts ErrorCode = "RISK_MAX_ATTEMPTS"
	CodeRiskVelocity    ErrorCode = "RISK_VELOCITY"
	CodeRiskDevice      ErrorCode = "RISK_DEVICE"
	CodeRiskIP          ErrorCode = "RISK_IP"
	CodeRiskEmail       ErrorCode = "RISK_EMAIL"
	CodeRiskPhone       ErrorCode = "RISK_PHONE"

	CodeDuplicateCard    ErrorCode = "DUPLICATE_CARD"
	CodeDuplicateProfile ErrorCode = "DUPLICATE_PROFILE"

	CodeAuthFailed      ErrorCode = "AUTH_FAILED"
	CodeForbidden       ErrorCode = "FORBIDDEN"
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeRateLimited     ErrorCode = "RATE_LIMITED"
	CodeProcessorDown   ErrorCode = "PROCESSOR_UNAVAILABLE"
	CodeUnknown         ErrorCode = "UNKNOWN"
)

// Processor numeric error codes for card payments and the vault.
const (
	ProcCodeInvalidCard       = "3002"
	ProcCodeExpiredCard       = "3006"
	ProcCodeAVSFailed         = "3007"
	ProcCodeIssuerDeclined    = "3009"
	ProcCodeCVVFailed         = "3015"
	ProcCodeInsufficientFunds = "3022"
	ProcCodeDoNotHonour       = "3024"
	ProcCodeRiskDeclined      = "8000"
	ProcCodeDuplicateCard     = "7503"
	ProcCodeDuplicateProfile  = "7505"
)

// processorCodes maps the processor's numeric codes into the taxonomy.
var processorCodes = map[string]ErrorCode{
	ProcCodeInvalidCard:       CodeInvalidCard,
	ProcCodeExpiredCard:       CodeExpiredCard,
	ProcCodeAVSFailed:         CodeAVSFailed,
	ProcCodeIssuerDeclined:    CodeDeclined,
	ProcCodeCVVFailed:         CodeCVVFailed,
	ProcCodeInsufficientFunds: CodeInsufficientFunds,
	ProcCodeDoNotHonour:       CodeDeclined,
	ProcCodeRiskDeclined:      CodeRiskDeclined,
	ProcCodeDuplicateCard:     CodeDuplicateCard,
	ProcCodeDuplicateProfile:  CodeDuplicateProfile,
}

// riskDetailCodes maps RISK_RESPONSE additional-detail codes into their
// dedicated buckets. These are more specific than the generic 8000 decline
// and always win over it.
var riskDetailCodes = map[string]ErrorCode{
	"8001": CodeRiskMaxAttempts,
	"8002": CodeRiskVelocity,
	"8003": CodeRiskDevice,
	"8004": CodeRiskIP,
	"8005": CodeRiskEmail,
	"8006": CodeRiskPhone,
}

// voidRequiredCodes are the error codes that still create an authorization
// hold at the issuer even though the call failed. A response carrying one of
// these together with an auth id must be compensated with a void.
var voidRequiredCodes = map[string]bool{
	ProcCodeAVSFailed:         true,
	ProcCodeIssuerDeclined:    true,
	ProcCodeCVVFailed:         true,
	ProcCodeInsufficientFunds: true,
	ProcCodeDoNotHonour:       true,
	ProcCodeRiskDeclined:      true,
}

// VoidRequired reports whether a processor error code leaves a hold that
// needs a compensating void.
func VoidRequired(procCode string) bool {
	return voidRequiredCodes[procCode]
}

// avsFailCodes are the AVS result codes treated as failures even on an
// approved authorization.
var avsFailCodes = map[string]bool{
	"N": true, "A": true, "Z": true, "W": true, "C": true, "I": true, "P": true,
}

// cvvFailCodes are the CVV verification results treated as failures.
var cvvFailCodes = map[string]bool{
	"N": true, "P": true, "S": true, "U": true,
}

// AVSFailed reports whether an AVS result code is a failure.
func AVSFailed(code string) bool {
	return avsFailCodes[code]
}

// CVVFailed reports whether a CVV verification result is a failure.
func CVVFailed(code string) bool {
	return cvvFailCodes[code]
}

// bucketMessages are the customer-safe messages per taxonomy code. Raw
// processor text never reaches the customer; these replace it.
var bucketMessages = map[ErrorCode]string{
	CodeAVSFailed:         "The billing address does not match the card on file. Please verify your address and try again.",
	CodeCVVFailed:         "The card security code could not be verified. Please check the code and try again.",
	CodeInsufficientFunds: "The card was declined due to insufficient funds. Please use a different card.",
	CodeExpiredCard:       "The card has expired. Please use a different card.",
	CodeInvalidCard:       "The card number is not valid. Please check the number and try again.",
	CodeDeclined:          "The card was declined. Please contact your card issuer or use a different card.",
	CodeRiskDeclined:      "This payment could not be accepted. Please use a different payment method.",
	CodeRiskMaxAttempts:   "Too many payment attempts. Please wait before trying again.",
	CodeRiskVelocity:      "This payment could not be accepted at this time. Please try again later.",
	CodeRiskDevice:        "This payment could not be accepted from this device.",
	CodeRiskIP:            "This payment could not be accepted from your network.",
	CodeRiskEmail:         "This payment could not be accepted for the email address provided.",
	CodeRiskPhone:         "This payment could not be accepted for the phone number provided.",
	CodeDuplicateCard:     "This card is already saved to your account.",
	CodeDuplicateProfile:  "A payment profile already exists for this account.",
	CodeAuthFailed:        "The payment service is misconfigured. Please contact support.",
	CodeForbidden:         "The payment service is not permitted to perform this operation.",
	CodeNotFound:          "The requested payment record could not be found.",
	CodeRateLimited:       "Too many requests to the payment service. Please try again shortly.",
	CodeProcessorDown:     "The payment service is temporarily unavailable. Please try again later.",
	CodeUnknown:           "The payment could not be processed. Please try again.",
}

// BucketMessage returns the generic customer-safe message for a code.
func BucketMessage(code ErrorCode) string {
	if msg, ok := bucketMessages[code]; ok {
		return msg
	}
	return bucketMessages[CodeUnknown]
}
