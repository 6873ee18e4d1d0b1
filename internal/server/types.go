// Package server provides the HTTP surface consumed by the upstream
// at-least-once delivery system. It includes handlers, middleware, routes,
// and DTOs separated from domain types.
package server

// PushEnvelope is the wrapping envelope delivered by the notification
// system: the actual payload is a base64-encoded JSON blob in Message.Data.
type PushEnvelope struct {
	// Message carries the encoded notification.
	Message PushMessage `json:"message" validate:"required"`
	// Subscription names the delivering subscription.
	Subscription string `json:"subscription"`
}

// PushMessage is the inner message of a push envelope.
type PushMessage struct {
	// Data is the base64-encoded JSON notification payload.
	Data string `json:"data" validate:"required,base64"`
	// MessageID is the delivery system's message identifier.
	MessageID string `json:"messageId"`
	// Attributes are optional delivery metadata.
	Attributes map[string]string `json:"attributes,omitempty"`
}

// storageNotification is the decoded notification payload: at minimum the
// object key of the raw video that landed in the bucket.
type storageNotification struct {
	Name string `json:"name"`
}

// ProcessResponse is the HTTP response after handling a notification.
type ProcessResponse struct {
	// Message is a human-readable confirmation.
	Message string `json:"message"`
	// JobID is the derived job identity, when one was derived.
	JobID string `json:"job_id,omitempty"`
	// OutputKey is the published object key on success.
	OutputKey string `json:"output_key,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
