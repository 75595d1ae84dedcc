package httpapi

import "farmcopilot/internal/service"

const NoMessageResponse = "No message provided."

type ChatRequest struct {
	Message string `json:"message"`
}

type ChatResponse struct {
	Response string           `json:"response"`
	Sources  []service.Source `json:"sources,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorKind names a failure class so clients can branch without parsing text.
type ErrorKind string

const (
	KindInvalidRequest   ErrorKind = "invalid_request"
	KindUnsupportedMedia ErrorKind = "unsupported_media_type"
	KindPayloadTooLarge  ErrorKind = "payload_too_large"
	KindExtraction       ErrorKind = "extraction_error"
	KindCompletion       ErrorKind = "completion_service_error"
	KindStorage          ErrorKind = "storage_error"
	KindInternal         ErrorKind = "internal_error"
)

type ErrorBody struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}
