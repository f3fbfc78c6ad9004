package csrf

import "errors"

// Reason names why a request failed CSRF validation. Reasons appear in
// denial responses, warning logs, audit events, and metrics labels.
type Reason string

const (
	ReasonMissingToken   Reason = "missing_token"
	ReasonMalformedToken Reason = "malformed_token"
	ReasonMissingCookie  Reason = "missing_cookie"
	ReasonBadSignature   Reason = "bad_signature"
	ReasonExpiredToken   Reason = "expired_token"
	ReasonTokenMismatch  Reason = "token_mismatch"
	ReasonBadOrigin      Reason = "bad_origin"
)

// ValidationError is returned by Validate for every denial.
type ValidationError struct {
	Reason Reason
}

func (e *ValidationError) Error() string {
	return "csrf validation failed: " + string(e.Reason)
}

// ReasonOf extracts the denial reason from a Validate error. Unknown errors
// report an empty reason.
func ReasonOf(err error) Reason {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Reason
	}
	return ""
}
