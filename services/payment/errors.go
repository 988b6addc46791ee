package payment

import "fmt"

// ValidationError reports malformed caller input before any processor call
// is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CompensationError marks an authorization hold that could not be released
// automatically. This is fatal for automation: the hold must be tracked
// until an operator resolves it, and it must never be presented as an
// ordinary decline.
type CompensationError struct {
	PaymentID string
	AuthID    string
	Reason    string
	Err       error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("void failed for auth %s (payment %s), manual action required: %s", e.AuthID, e.PaymentID, e.Reason)
}

func (e *CompensationError) Unwrap() error {
	return e.Err
}
