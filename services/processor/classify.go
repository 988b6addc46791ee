package processor

import (
	"strings"
)

// MessageResolver looks up merchant-configured customer messages per
// taxonomy code. A resolver result always overrides the generic bucket
// message. Lookup returns ok=false when no custom message is configured.
type MessageResolver interface {
	Lookup(code ErrorCode) (string, bool)
}

// NoopResolver never finds a custom message.
type NoopResolver struct{}

func (NoopResolver) Lookup(code ErrorCode) (string, bool) {
	return "", false
}

// Classifier normalizes heterogeneous processor error responses into the
// stable taxonomy with a customer-safe message. Rules run in priority
// order; a specific signal is never shadowed by a generic one.
type Classifier struct {
	resolver MessageResolver
}

func NewClassifier(resolver MessageResolver) *Classifier {
	if resolver == nil {
		resolver = NoopResolver{}
	}
	return &Classifier{resolver: resolver}
}

// Classify maps an HTTP status plus parsed body into (ErrorCode, message).
// It is a pure function of its inputs: the same response always classifies
// the same way. The returned message is never raw processor text.
func (c *Classifier) Classify(status int, resp *Response) (ErrorCode, string) {
	var env ErrorEnvelope
	if resp != nil {
		env = resp.Envelope()
	}

	// 1. Risk additional-details carry the most specific signal and beat
	// the generic risk-decline error code.
	if detail, ok := env.RiskDetail(); ok {
		if code, ok := riskDetailCodes[detail]; ok {
			return code, c.message(code)
		}
		return CodeRiskDeclined, c.message(CodeRiskDeclined)
	}

	// 2./3. AVS and CVV result codes outrank the error object: an
	// approved-looking response can still carry a failing check.
	if AVSFailed(env.AVSResponse) {
		return CodeAVSFailed, c.message(CodeAVSFailed)
	}
	if CVVFailed(env.CVVVerification) {
		return CodeCVVFailed, c.message(CodeCVVFailed)
	}

	// 4. Structured error object.
	if env.Error != nil {
		if code, ok := processorCodes[env.Error.Code]; ok {
			// A generic risk decline whose detail text talks about the
			// billing address is handled as an AVS failure. Deliberate
			// carry-over from the reference integration; it can
			// misclassify risk declines that merely mention billing.
			if code == CodeRiskDeclined && mentionsAddress(env.Error.Details) {
				return CodeAVSFailed, c.message(CodeAVSFailed)
			}
			return code, c.message(code)
		}
		if code, ok := sniffMessage(env.Error.Message); ok {
			return code, c.message(code)
		}
	}

	// 5. HTTP status defaults, only when nothing more specific matched.
	code := statusDefault(status)
	return code, c.message(code)
}

// message returns the merchant-configured message for the code when one
// exists, otherwise the generic bucket message.
func (c *Classifier) message(code ErrorCode) string {
	if msg, ok := c.resolver.Lookup(code); ok && msg != "" {
		return msg
	}
	return BucketMessage(code)
}

// SafeMessage resolves the surfaceable message for a code.
func (c *Classifier) SafeMessage(code ErrorCode) string {
	return c.message(code)
}

var addressKeywords = []string{"address", "avs", "billing"}

func mentionsAddress(details []string) bool {
	for _, d := range details {
		lower := strings.ToLower(d)
		for _, kw := range addressKeywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

// sniffMessage assigns a best-guess code from error message wording when
// the processor omitted a structured code. The message itself is only read,
// never surfaced.
func sniffMessage(message string) (ErrorCode, bool) {
	lower := strings.ToLower(message)
	switch {
	case lower == "":
		return CodeUnknown, false
	case strings.Contains(lower, "avs") || strings.Contains(lower, "address"):
		return CodeAVSFailed, true
	case strings.Contains(lower, "cvv") || strings.Contains(lower, "cvd") || strings.Contains(lower, "security code"):
		return CodeCVVFailed, true
	case strings.Contains(lower, "insufficient") || strings.Contains(lower, "nsf"):
		return CodeInsufficientFunds, true
	case strings.Contains(lower, "expired"):
		return CodeExpiredCard, true
	case strings.Contains(lower, "invalid card"):
		return CodeInvalidCard, true
	case strings.Contains(lower, "decline") || strings.Contains(lower, "risk"):
		return CodeDeclined, true
	}
	return CodeUnknown, false
}

func statusDefault(status int) ErrorCode {
	switch {
	case status == 401:
		return CodeAuthFailed
	case status == 402:
		return CodeDeclined
	case status == 403:
		return CodeForbidden
	case status == 404:
		return CodeNotFound
	case status == 429:
		return CodeRateLimited
	case status >= 500:
		return CodeProcessorDown
	default:
		return CodeUnknown
	}
}
