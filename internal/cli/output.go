package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/sieve/internal/auth"
	"github.com/roach88/sieve/internal/filter"
	"github.com/roach88/sieve/internal/search"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Rejected filter or failed scenarios
	ExitCommandError = 2 // Command error (invalid paths, bad input, database unreachable, etc.)
)

// Error codes for CLI responses. Rejected filters carry their own E2xx code.
const (
	ErrCodeGeneric       = "E001"
	ErrCodeSchema        = "E101"
	ErrCodeInput         = "E102"
	ErrCodeUnknownEntity = "E103"
	ErrCodeAccess        = "E104"
	ErrCodeExecution     = "E301"
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)

	reported bool // already written by an OutputFormatter
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitSuccess for nil and ExitFailure if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Reported reports whether err was already written to the user.
func Reported(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.reported
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status  string      `json:"status"`             // "ok" or "error"
	Data    interface{} `json:"data,omitempty"`     // success payload
	Error   *CLIError   `json:"error,omitempty"`    // error details
	TraceID string      `json:"trace_id,omitempty"` // optional trace correlation
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string      `json:"code"`              // "E001", "E202", etc.
	Message string      `json:"message"`           // human-readable message
	Details interface{} `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	return nil
}

// SuccessText outputs data as JSON, or text in text mode.
func (f *OutputFormatter) SuccessText(data interface{}, text string) error {
	if f.Format == "json" {
		return f.Success(data)
	}
	_, err := io.WriteString(f.Writer, text)
	return err
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail outputs err and returns the ExitError the command should return.
// A rejected filter exits with ExitFailure and carries its field path as
// details; everything else is a command error.
func (f *OutputFormatter) Fail(err error) error {
	code, exit, details := classify(err)
	if outErr := f.Error(code, message(err), details); outErr != nil {
		return outErr
	}
	return &ExitError{Code: exit, Message: code, Err: err, reported: true}
}

// FailWith outputs err under code and returns an ExitError with exit.
func (f *OutputFormatter) FailWith(code string, exit int, err error) error {
	if outErr := f.Error(code, message(err), nil); outErr != nil {
		return outErr
	}
	return &ExitError{Code: exit, Message: code, Err: err, reported: true}
}

func classify(err error) (code string, exit int, details interface{}) {
	if verr, ok := filter.AsValidationError(err); ok {
		return verr.Code, ExitFailure, map[string]string{"field": verr.Field}
	}
	var exitErr *ExitError
	switch {
	case errors.Is(err, search.ErrQueryFailed), errors.Is(err, search.ErrNoExecutor):
		return ErrCodeExecution, ExitCommandError, nil
	case errors.Is(err, search.ErrUnknownEntity):
		return ErrCodeUnknownEntity, ExitCommandError, nil
	case errors.Is(err, auth.ErrAuthenticationRequired), errors.Is(err, auth.ErrAuthorizationDenied):
		return ErrCodeAccess, ExitFailure, nil
	case errors.As(err, &exitErr):
		return ErrCodeGeneric, exitErr.Code, nil
	default:
		return ErrCodeGeneric, ExitCommandError, nil
	}
}

// message is the client-facing text of err.
func message(err error) string {
	if verr, ok := filter.AsValidationError(err); ok {
		return verr.Message
	}
	return err.Error()
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
