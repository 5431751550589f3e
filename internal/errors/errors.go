package errors

import (
	"errors"
	"fmt"
)

// Code identifies a failure class. Codes are stable strings surfaced to API
// callers in error envelopes, so renaming one is a breaking change.
type Code string

const (
	CodeInvalidTokenName     Code = "INVALID_TOKEN_NAME"
	CodeUnauthorized         Code = "UNAUTHORIZED"
	CodeInvalidCredentials   Code = "INVALID_CREDENTIALS"
	CodeInitialTokenExpired  Code = "INITIAL_TOKEN_EXPIRED"
	CodeTokenRotationFailed  Code = "TOKEN_ROTATION_FAILED"
	CodeInvalidTokenResponse Code = "INVALID_TOKEN_RESPONSE"
	CodeJobNotFound          Code = "JOB_NOT_FOUND"
	CodeSkuNotFound          Code = "SKU_NOT_FOUND"
	CodePlanNotFound         Code = "PLAN_NOT_FOUND"
	CodeOrderIDFormat        Code = "ORDER_ID_FORMAT"
	CodeProcessingError      Code = "PROCESSING_ERROR"
)

// RotationError is the typed error returned by the rotation engines. It
// carries the upstream description when the provider rejected the exchange.
type RotationError struct {
	Code     Code
	Provider string
	Message  string
	Err      error
}

func (e *RotationError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s (provider %s)", e.Code, msg, e.Provider)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *RotationError) Unwrap() error {
	return e.Err
}

// Rotation builds a RotationError for the given provider.
func Rotation(code Code, provider, format string, args ...interface{}) *RotationError {
	return &RotationError{
		Code:     code,
		Provider: provider,
		Message:  fmt.Sprintf(format, args...),
	}
}

// ConfigError represents a configuration error with enough context to fix it.
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message
	if e.Suggestion != "" {
		msg += "; " + e.Suggestion
	}
	return msg
}

// CodeOf extracts the failure code from err, walking the wrap chain.
// Errors without a code map to CodeProcessingError.
func CodeOf(err error) Code {
	var re *RotationError
	if errors.As(err, &re) {
		return re.Code
	}
	return CodeProcessingError
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
