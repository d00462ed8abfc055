package core

import (
	"fmt"
	"net/http"
)

// W3C WebDriver error codes used by the driver.
const (
	CodeNoSuchElement        = "no such element"
	CodeStaleElement         = "stale element reference"
	CodeInvalidSelector      = "invalid selector"
	CodeInvalidArgument      = "invalid argument"
	CodeUnknownCommand       = "unknown command"
	CodeUnknownError         = "unknown error"
	CodeUnsupportedOperation = "unsupported operation"
	CodeNoSuchSession        = "invalid session id"
	CodeSessionNotCreated    = "session not created"
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // W3C error code: "no such element", "stale element reference", ...
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is matches errors that share the same category and code, so copies made
// with WithCause/WithMessage still match the predefined value.
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code && sameKind(e, t)
}

// sameKind distinguishes predefined errors that share a W3C code
// (e.g. ambiguous element and focus exhausted are both "unknown error").
func sameKind(a, b *ExecutionError) bool {
	ka, _ := a.Details[detailKind].(string)
	kb, _ := b.Details[detailKind].(string)
	return ka == kb
}

const detailKind = "kind"

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

func kind(k string) map[string]interface{} {
	return map[string]interface{}{detailKind: k}
}

// Predefined errors
var (
	// Element errors
	ErrNoSuchElement = &ExecutionError{
		Category: ErrCategoryElement,
		Code:     CodeNoSuchElement,
		Message:  "An element could not be located on the page using the given search parameters",
		Details:  kind("no_such_element"),
	}
	ErrStaleElement = &ExecutionError{
		Category: ErrCategoryElement,
		Code:     CodeStaleElement,
		Message:  "The element is no longer present in the current UI hierarchy",
		Details:  kind("stale_element"),
	}
	ErrAmbiguousElement = &ExecutionError{
		Category: ErrCategoryElement,
		Code:     CodeUnknownError,
		Message:  "Could not uniquely determine element in hierarchy; please use another selector",
		Details:  kind("ambiguous_element"),
	}
	ErrFocusExhausted = &ExecutionError{
		Category: ErrCategoryFocus,
		Code:     CodeUnknownError,
		Message:  "could not focus element; focus manually instead",
		Details:  kind("focus_exhausted"),
	}

	// Request-shape errors
	ErrUnsupportedLocator = &ExecutionError{
		Category: ErrCategoryRequest,
		Code:     CodeInvalidSelector,
		Message:  "Invalid locator strategy; only xpath supported",
		Details:  kind("unsupported_locator"),
	}
	ErrUnsupportedContextualFind = &ExecutionError{
		Category: ErrCategoryRequest,
		Code:     CodeUnsupportedOperation,
		Message:  "This driver can only find elements from the root; not from other elements",
		Details:  kind("unsupported_contextual_find"),
	}
	ErrInvalidSelector = &ExecutionError{
		Category: ErrCategoryRequest,
		Code:     CodeInvalidSelector,
		Message:  "invalid xpath selector",
		Details:  kind("invalid_selector"),
	}
	ErrInvalidArgument = &ExecutionError{
		Category: ErrCategoryRequest,
		Code:     CodeInvalidArgument,
		Message:  "invalid argument",
		Details:  kind("invalid_argument"),
	}
	ErrUnknownCommand = &ExecutionError{
		Category: ErrCategoryRequest,
		Code:     CodeUnknownCommand,
		Message:  "unknown command",
		Details:  kind("unknown_command"),
	}
	ErrNotImplemented = &ExecutionError{
		Category: ErrCategoryRequest,
		Code:     CodeUnknownCommand,
		Message:  "method is not implemented",
		Details:  kind("not_implemented"),
	}

	// Session errors
	ErrNoSuchSession = &ExecutionError{
		Category: ErrCategorySession,
		Code:     CodeNoSuchSession,
		Message:  "a session is either terminated or not started",
		Details:  kind("no_such_session"),
	}
	ErrSessionNotCreated = &ExecutionError{
		Category: ErrCategorySession,
		Code:     CodeSessionNotCreated,
		Message:  "a new session could not be created",
		Details:  kind("session_not_created"),
	}

	// Device errors
	ErrDeviceUnreachable = &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     CodeUnknownError,
		Message:  "could not reach device",
		Details:  kind("device_unreachable"),
	}
	ErrAppUIUnavailable = &ExecutionError{
		Category: ErrCategoryApp,
		Code:     CodeUnknownError,
		Message:  "Could not retrieve app UI",
		Details:  kind("app_ui_unavailable"),
	}
	ErrScreenshotUnavailable = &ExecutionError{
		Category: ErrCategoryApp,
		Code:     CodeUnknownError,
		Message:  "Could not collect screenshot. Screenshots can only be taken of your dev channel.",
		Details:  kind("screenshot_unavailable"),
	}
)

// NewExecutionError creates a new ExecutionError with the given parameters
func NewExecutionError(category ErrorCategory, code, message string) *ExecutionError {
	return &ExecutionError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// HTTPStatus returns the HTTP status WebDriver associates with an error code.
func HTTPStatus(code string) int {
	switch code {
	case CodeNoSuchElement, CodeStaleElement, CodeNoSuchSession, CodeUnknownCommand:
		return http.StatusNotFound
	case CodeInvalidSelector, CodeInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
