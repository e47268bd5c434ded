package api_models

// FieldError describes why a single field was rejected
type FieldError struct {
	Message string `json:"message"`
	Path    string `json:"path"`
	Kind    string `json:"kind"`
}

// ErrorResponse is the body of every non-2xx colmeia response
type ErrorResponse struct {
	Message string                `json:"message"`
	Errors  map[string]FieldError `json:"errors,omitempty"`
}

// MessageResponse is returned by operations without a resource body
type MessageResponse struct {
	Message string `json:"message"`
}
