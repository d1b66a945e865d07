package webhook

import "errors"

var (
	// ErrAuthentication marks a delivery whose origin could not be verified.
	// Nothing is persisted for it.
	ErrAuthentication = errors.New("webhook authentication failed")
	// ErrValidation marks a delivery that is structurally unusable: malformed
	// JSON, missing event or user id, or missing event-specific fields.
	ErrValidation = errors.New("invalid webhook payload")

	ErrEmptySecret      = errors.New("webhook secret must not be empty")
	ErrMissingSignature = errors.New("missing signature")
	ErrInvalidSignature = errors.New("signature mismatch")

	ErrEventNotFound = errors.New("webhook event not found")
)
