package handlers

// Stable error codes carried in ErrorResponse.Code. Generic codes mirror the
// HTTP status; the middleware writes the same strings for 401, 429 and
// recovered panics. invalid_update is specific to the webhook.
const (
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"

	ErrCodeInvalidUpdate = "invalid_update"
)
