package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Process exit statuses.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // an operation, scenario or verification failed
	ExitCommandError = 2 // the command could not run: missing file, bad schema or config
)

// Error codes reported in CLIError.Code.
const (
	ErrCodeGeneric       = "E001"
	ErrCodeNotFound      = "E002"
	ErrCodeSchema        = "E003"
	ErrCodeConfig        = "E004"
	ErrCodeInput         = "E005"
	ErrCodeNormalization = "E006"
	ErrCodeTransport     = "E007"
	ErrCodeOperation     = "E008" // the operation dispatched an error action
	ErrCodeJournal       = "E009"
	ErrCodeDigest        = "E010"
)

// ExitError ends a command with a specific process exit status.
type ExitError struct {
	Status int
	Reason string
	Cause  error
}

func (e *ExitError) Error() string {
	switch {
	case e.Cause == nil:
		return e.Reason
	case e.Reason == "":
		return e.Cause.Error()
	}
	return e.Reason + ": " + e.Cause.Error()
}

func (e *ExitError) Unwrap() error { return e.Cause }

// NewExitError returns an ExitError without an underlying cause.
func NewExitError(status int, reason string) *ExitError {
	return &ExitError{Status: status, Reason: reason}
}

// WrapExitError attaches an exit status to err.
func WrapExitError(status int, reason string, err error) *ExitError {
	return &ExitError{Status: status, Reason: reason, Cause: err}
}

// GetExitCode maps a command error to the process exit status. Errors that
// carry no ExitError are reported as ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Status
	}
	return ExitFailure
}

// CLIResponse is the envelope every command writes in JSON mode.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError describes a failed command in a CLIResponse.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OutputFormatter writes command results as text or as CLIResponse JSON.
// Diagnostics go to ErrWriter so they never interleave with JSON on Writer.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

func newFormatter(opts *RootOptions, out, errOut io.Writer) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    out,
		ErrWriter: errOut,
		Verbose:   opts.Verbose,
	}
}

// JSON reports whether the formatter writes JSON.
func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// Success writes data. Text mode prints it with its default formatting.
func (f *OutputFormatter) Success(data any) error {
	if !f.JSON() {
		_, err := fmt.Fprintln(f.Writer, data)
		return err
	}
	return f.encode(CLIResponse{Status: "ok", Data: data})
}

// Error writes a coded failure. Details are printed in text mode only when
// verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.JSON() {
		return f.encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	if _, err := fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message); err != nil {
		return err
	}
	if f.Verbose && details != nil {
		_, err := fmt.Fprintf(f.Writer, "  details: %v\n", details)
		return err
	}
	return nil
}

// Fail reports err under code and returns it wrapped with the exit status.
func (f *OutputFormatter) Fail(status int, code string, err error) error {
	_ = f.Error(code, err.Error(), nil)
	return WrapExitError(status, code, err)
}

// VerboseLog writes a diagnostic line when verbose output is enabled.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if f.Verbose {
		fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
	}
}

// GetErrWriter returns ErrWriter, falling back to Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter == nil {
		return f.Writer
	}
	return f.ErrWriter
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
