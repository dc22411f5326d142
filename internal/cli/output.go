package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/gbproject/normgraph/internal/entities"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Verification failure (round trip broken, dangling references)
	ExitCommandError = 2 // Command error (unreadable document, bad schema, store failure)
)

// Error codes reported in CLIError.Code.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeReadFailed  = "E002" // Input could not be read
	ErrCodeParseFailed = "E003" // Input is not a JSON/YAML document
	ErrCodeSchema      = "E004" // Schema could not be loaded
	ErrCodeNotFound    = "E005" // Path or snapshot not found
	ErrCodeStore       = "E006" // Snapshot store error
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeConfig      = "E008" // Invalid configuration

	ErrCodeDanglingReference   = "E101"
	ErrCodeDuplicateIdentifier = "E102"
	ErrCodeDepthExceeded       = "E103"
	ErrCodeReferenceCycle      = "E104"
	ErrCodeMissingIdentifier   = "E105"
	ErrCodeMalformedOccurrence = "E106"
	ErrCodeMalformedReference  = "E107"
	ErrCodeUnknownType         = "E108"

	ErrCodeVerifyFailed = "E201" // Round trip, idempotence or closure check failed
)

var engineCodes = map[entities.Code]string{
	entities.ErrCodeDanglingReference:   ErrCodeDanglingReference,
	entities.ErrCodeDuplicateIdentifier: ErrCodeDuplicateIdentifier,
	entities.ErrCodeDepthExceeded:       ErrCodeDepthExceeded,
	entities.ErrCodeReferenceCycle:      ErrCodeReferenceCycle,
	entities.ErrCodeMissingIdentifier:   ErrCodeMissingIdentifier,
	entities.ErrCodeMalformedOccurrence: ErrCodeMalformedOccurrence,
	entities.ErrCodeMalformedReference:  ErrCodeMalformedReference,
	entities.ErrCodeUnknownType:         ErrCodeUnknownType,
}

// engineErrorCode maps an engine error to its CLI code.
func engineErrorCode(err error) string {
	if code, ok := engineCodes[entities.CodeOf(err)]; ok {
		return code
	}
	return ErrCodeGeneric
}

// engineErrorDetails exposes the structured fields of an engine error.
func engineErrorDetails(err error) map[string]string {
	var e *entities.Error
	if !errors.As(err, &e) {
		return nil
	}
	details := map[string]string{"kind": string(e.Code)}
	if e.Type != "" {
		details["type"] = string(e.Type)
	}
	if e.ID != "" {
		details["id"] = e.ID
	}
	if e.Path != "" {
		details["path"] = e.Path
	}
	return details
}

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
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
// Returns ExitFailure (1) if the error is not an ExitError.
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

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string      `json:"status"`          // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`  // success payload
	Error  *CLIError   `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string      `json:"code"`              // "E001", "E101", etc.
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

// Fail outputs an error and returns the matching ExitError.
func (f *OutputFormatter) Fail(exit int, code, message string, details interface{}) error {
	_ = f.Error(code, message, details)
	return NewExitError(exit, fmt.Sprintf("%s: %s", code, message))
}

// FailEngine reports an engine error with its mapped code. Engine errors
// are input errors, so they exit with ExitCommandError.
func (f *OutputFormatter) FailEngine(err error) error {
	details := engineErrorDetails(err)
	var payload interface{}
	if details != nil {
		payload = details
	}
	return f.Fail(ExitCommandError, engineErrorCode(err), err.Error(), payload)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
