package engine

import "fmt"

// Error codes surfaced in failed envelopes.
const (
	CodeInvalidInput     = "invalid_input"
	CodeModelNotLoaded   = "model_not_loaded"
	CodeConnectionFailed = "connection_failed"
	CodeUnknown          = "unknown"
)

// ErrorInfo describes a failed operation in machine-readable form.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result is the uniform envelope every operation returns. Exactly one of
// Data and Error is set.
type Result[T any] struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	Data    *T         `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// OK wraps data in a successful envelope.
func OK[T any](message string, data T) Result[T] {
	return Result[T]{Success: true, Message: message, Data: &data}
}

// Fail builds a failed envelope with the given code.
func Fail[T any](code, format string, args ...any) Result[T] {
	return Result[T]{
		Success: false,
		Error:   &ErrorInfo{Code: code, Message: fmt.Sprintf(format, args...)},
	}
}
