package models

// RateLimitExceededResponse is the API response when a rate limit is exceeded.
type RateLimitExceededResponse struct {
	Error      string `json:"error"` // always "rate_limit_exceeded"
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"` // seconds
}

// ResetResponse is the API response for an operational counter reset.
type ResetResponse struct {
	Reset         bool   `json:"reset"`
	Identifier    string `json:"identifier"`
	Tier          string `json:"tier"`
	EndpointClass string `json:"endpoint_class,omitempty"` // empty when all classes were reset
}
