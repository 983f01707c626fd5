package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/headkit/internal/loader"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Scenario failure, invalid documents, diagnostics under --strict
	ExitCommandError = 2 // Bad flags, missing paths, unreadable config or store
)

// Error codes reported by commands. Document load failures reuse the
// loader's codes.
const (
	ErrCodeGeneric     = loader.ErrCodeGeneric
	ErrCodeConfig      = "E010" // Configuration could not be loaded
	ErrCodeFlag        = "E011" // Invalid flag value
	ErrCodeResolve     = "E020" // Resolution pass failed
	ErrCodeDiagnostics = "E021" // Pass recovered from failures and --strict is set
	ErrCodeStore       = "E030" // Snapshot store unavailable
	ErrCodeNoSnapshot  = "E031" // No snapshot for the route
	ErrCodeState       = "E040" // State blob unreadable
	ErrCodeScenario    = "E050" // One or more scenarios failed
)

// ExitError carries the exit code a command failure maps to.
type ExitError struct {
	Code    int
	ErrCode string
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.ErrCode != "" {
		return fmt.Sprintf("[%s] %s", e.ErrCode, e.text())
	}
	return e.text()
}

func (e *ExitError) text() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates an ExitError without a cause.
func NewExitError(code int, errCode, message string) *ExitError {
	return &ExitError{Code: code, ErrCode: errCode, Message: message}
}

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, errCode, message string, err error) *ExitError {
	return &ExitError{Code: code, ErrCode: errCode, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// loadFailure maps a loader error to an ExitError. Missing paths are command
// errors; documents that exist but are invalid are failures.
func loadFailure(err error) *ExitError {
	var le *loader.LoadError
	if !errors.As(err, &le) {
		return WrapExitError(ExitCommandError, ErrCodeGeneric, "load documents", err)
	}
	code := ExitFailure
	switch le.Code {
	case loader.ErrCodeNotFound, loader.ErrCodeNoFiles, loader.ErrCodeScanError, loader.ErrCodeUnsupported:
		code = ExitCommandError
	}
	return WrapExitError(code, le.Code, "load documents", err)
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // verbose output; keeps JSON on Writer parseable
	Verbose   bool
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success writes data. In text mode text renders it; a nil text prints data
// with fmt.
func (f *OutputFormatter) Success(data any, text func(w io.Writer)) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	if text != nil {
		text(f.Writer)
		return nil
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Fail writes the error envelope for err and returns err unchanged, so
// commands can `return f.Fail(err, details)`.
func (f *OutputFormatter) Fail(err *ExitError, details any) error {
	if f.Format == "json" {
		if encErr := f.encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: err.ErrCode, Message: err.text(), Details: details},
		}); encErr != nil {
			return encErr
		}
		return err
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", err.ErrCode, err.text())
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return err
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetEscapeHTML(false)
	return enc.Encode(resp)
}

// VerboseLog outputs a message only if verbose mode is enabled.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.errWriter(), format+"\n", args...)
}

func (f *OutputFormatter) errWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
