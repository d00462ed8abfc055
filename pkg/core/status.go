package core

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone       ErrorCategory = iota // No error
	ErrCategoryElement                         // Element not found, stale or ambiguous
	ErrCategoryFocus                           // Focus navigation gave up
	ErrCategoryRequest                         // Malformed or unsupported request
	ErrCategorySession                         // Session missing or not created
	ErrCategoryConnection                      // Device unreachable, auth failure
	ErrCategoryApp                             // App UI unavailable, dev channel not active
	ErrCategoryConfig                          // Invalid configuration, missing required field
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryElement:
		return "element"
	case ErrCategoryFocus:
		return "focus"
	case ErrCategoryRequest:
		return "request"
	case ErrCategorySession:
		return "session"
	case ErrCategoryConnection:
		return "connection"
	case ErrCategoryApp:
		return "app"
	case ErrCategoryConfig:
		return "config"
	default:
		return "unknown"
	}
}
