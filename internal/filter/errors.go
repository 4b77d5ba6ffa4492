package filter

import (
	"errors"
	"fmt"
)

// Error codes carried by ValidationError.
const (
	CodeInvalidOperator   = "E201"
	CodeDisallowedKey     = "E202"
	CodeInvalidValueShape = "E203"
	CodeDepthExceeded     = "E204"
)

// Sentinels for errors.Is matching against a ValidationError.
var (
	ErrInvalidOperator   = errors.New("invalid operator")
	ErrDisallowedKey     = errors.New("disallowed search key")
	ErrInvalidValueShape = errors.New("invalid value shape")
	ErrDepthExceeded     = errors.New("filter too deep")
)

// ValidationError reports the first violation found in a filter.
// Field is the dotted path to the offending key.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Unwrap maps the code to its sentinel.
func (e *ValidationError) Unwrap() error {
	switch e.Code {
	case CodeInvalidOperator:
		return ErrInvalidOperator
	case CodeDisallowedKey:
		return ErrDisallowedKey
	case CodeInvalidValueShape:
		return ErrInvalidValueShape
	case CodeDepthExceeded:
		return ErrDepthExceeded
	default:
		return nil
	}
}

// Messages returns the client-facing error body: field path to messages.
func (e *ValidationError) Messages() map[string][]string {
	return map[string][]string{e.Field: {e.Message}}
}

// AsValidationError extracts a ValidationError from err's chain.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

func disallowedKey(path, key string) *ValidationError {
	return &ValidationError{
		Field:   path,
		Message: fmt.Sprintf("The %s search key is not allowed.", key),
		Code:    CodeDisallowedKey,
	}
}

func invalidOperator(path, op string) *ValidationError {
	return &ValidationError{
		Field:   path,
		Message: fmt.Sprintf("The %s operator is invalid.", op),
		Code:    CodeInvalidOperator,
	}
}

func missingSearchKey(path, op string) *ValidationError {
	return &ValidationError{
		Field:   path,
		Message: fmt.Sprintf("The %s operator requires a search key.", op),
		Code:    CodeInvalidOperator,
	}
}

func invalidValue(path string) *ValidationError {
	return &ValidationError{
		Field:   path,
		Message: "The selected value is invalid.",
		Code:    CodeInvalidValueShape,
	}
}

func notAnArray(path string) *ValidationError {
	return &ValidationError{
		Field:   path,
		Message: fmt.Sprintf("The %s must be an array.", path),
		Code:    CodeInvalidValueShape,
	}
}

// DepthExceeded reports a filter nested deeper than max.
func DepthExceeded(max int) *ValidationError {
	return &ValidationError{
		Field:   "filter",
		Message: fmt.Sprintf("The filter exceeds the maximum nesting depth of %d.", max),
		Code:    CodeDepthExceeded,
	}
}
