package apperr

import "fmt"

// AppError is the error shape surfaced to API consumers. Status is the HTTP
// status the gateway responds with; Code is a stable machine-readable kind.
type AppError struct {
	Code    string        `json:"code"`
	Status  int           `json:"-"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

type ErrorDetail struct {
	Field   string `json:"field,omitempty"`
	Rule    string `json:"rule,omitempty"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

type ErrorResponse struct {
	Error *AppError `json:"error"`
}

func New(code string, status int, msg string) *AppError {
	return &AppError{Code: code, Status: status, Message: msg}
}

// ConfigInvalid marks a fatal configuration-load failure. Loads that hit this
// abort initialization of the dependent component.
func ConfigInvalid(msg string) *AppError {
	return &AppError{Code: "CONFIG_INVALID", Status: 500, Message: msg}
}

// NotInitialized marks a query against a registry that has not been loaded.
// This is a programmer error, not a recoverable runtime condition.
func NotInitialized(component string) *AppError {
	return &AppError{
		Code:    "NOT_INITIALIZED",
		Status:  500,
		Message: fmt.Sprintf("%s queried before initialization", component),
	}
}

func UnknownEntity(name string) *AppError {
	return &AppError{
		Code:    "UNKNOWN_ENTITY",
		Status:  404,
		Message: fmt.Sprintf("Unknown entity: %s", name),
	}
}

func UnknownResource(name string) *AppError {
	return &AppError{
		Code:    "UNKNOWN_RESOURCE",
		Status:  404,
		Message: fmt.Sprintf("Unknown resource: %s", name),
	}
}

func NotFound(entity, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Status:  404,
		Message: fmt.Sprintf("%s with id %s not found", entity, id),
	}
}

func InvalidPayload(msg string) *AppError {
	return &AppError{Code: "INVALID_PAYLOAD", Status: 400, Message: msg}
}

func Unauthorized(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Status: 401, Message: msg}
}

func Forbidden(msg string) *AppError {
	return &AppError{Code: "FORBIDDEN", Status: 403, Message: msg}
}

// Upstream wraps a failure reported by the backend API. The server-supplied
// message is used when present.
func Upstream(entity, msg string) *AppError {
	if msg == "" {
		msg = fmt.Sprintf("Operation failed for entity %s", entity)
	}
	return &AppError{Code: "UPSTREAM_ERROR", Status: 502, Message: msg}
}

func Validation(details []ErrorDetail) *AppError {
	return &AppError{
		Code:    "VALIDATION_FAILED",
		Status:  422,
		Message: "Validation failed",
		Details: details,
	}
}
