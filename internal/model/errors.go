package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies domain failures.
//
//   - KindIOFailure: archive open/read/write or copy errors. Fatal.
//   - KindMissingSource: a declared source file does not exist. Fatal for
//     archiving under PolicyFail, isolated per file during beautification.
//   - KindPrecondition: an input the operation depends on is absent or
//     malformed (e.g., the translation directory). Always fatal.
type ErrorKind string

const (
	KindIOFailure     ErrorKind = "io-failure"
	KindMissingSource ErrorKind = "missing-source"
	KindPrecondition  ErrorKind = "precondition"
)

// String returns the string representation of ErrorKind.
func (k ErrorKind) String() string {
	return string(k)
}

// OpError is the error type returned by the archive, workcopy and beautify
// packages. It carries the failing operation and the path involved so the
// caller can diagnose the failure without re-running it.
type OpError struct {
	// Kind classifies the failure.
	Kind ErrorKind

	// Op names the operation (e.g., "create", "extract", "copy").
	Op string

	// Path is the file, directory or archive entry name involved.
	Path string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface.
func (e *OpError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Kind)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *OpError) Unwrap() error {
	return e.Err
}

// IOFailure builds an OpError of kind KindIOFailure.
func IOFailure(op, path string, err error) *OpError {
	return &OpError{Kind: KindIOFailure, Op: op, Path: path, Err: err}
}

// MissingSource builds an OpError of kind KindMissingSource.
func MissingSource(op, path string, err error) *OpError {
	return &OpError{Kind: KindMissingSource, Op: op, Path: path, Err: err}
}

// PreconditionFailed builds an OpError of kind KindPrecondition.
func PreconditionFailed(op, path string, err error) *OpError {
	return &OpError{Kind: KindPrecondition, Op: op, Path: path, Err: err}
}

// KindOf returns the ErrorKind of the first OpError in err's chain,
// or an empty kind if there is none.
func KindOf(err error) ErrorKind {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.Kind
	}
	return ""
}

// IsKind reports whether err's chain contains an OpError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// ExitCode defines the CLI exit codes. Scripts driving the build can use
// them to tell packaging failures apart from configuration mistakes.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitIOFailure indicates an archive or copy operation failed.
	ExitIOFailure ExitCode = 2

	// ExitMissingSource indicates a declared source does not exist.
	ExitMissingSource ExitCode = 3

	// ExitPrecondition indicates the project layout is not usable
	// (e.g., the translation directory is absent).
	ExitPrecondition ExitCode = 4

	// ExitInvalidConfig indicates the project configuration file is invalid.
	ExitInvalidConfig ExitCode = 5
)

// ExitCodeFor maps an error to the exit code of its ErrorKind.
func ExitCodeFor(err error) ExitCode {
	switch KindOf(err) {
	case KindIOFailure:
		return ExitIOFailure
	case KindMissingSource:
		return ExitMissingSource
	case KindPrecondition:
		return ExitPrecondition
	default:
		return ExitGeneralError
	}
}

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
