// Package errors provides the structured error type shared by lkt commands.
// Every error carries a domain, a code and the process exit code the CLI
// reports when the error reaches the top of a command.
package errors

import (
	"errors"
	"fmt"
)

// Code represents a unique error code within a domain
type Code string

// Domain represents an error domain (e.g., "setup", "source", "boot")
type Domain string

// Error domains
const (
	DomainSetup      Domain = "setup"
	DomainSource     Domain = "source"
	DomainToolchain  Domain = "toolchain"
	DomainBuild      Domain = "build"
	DomainBoot       Domain = "boot"
	DomainConfig     Domain = "kconfig"
	DomainStorage    Domain = "storage"
	DomainDatabase   Domain = "database"
	DomainValidation Domain = "validation"
	DomainInternal   Domain = "internal"
)

// Process exit codes
const (
	ExitOK          = 0
	ExitFailures    = 1
	ExitUsage       = 2
	ExitSetup       = 3
	ExitToolchain   = 4
	ExitInterrupted = 130
)

// Error represents a structured error with domain, code and exit code
type Error struct {
	// Domain categorizes the error (e.g., "setup", "source")
	Domain Domain `json:"domain"`

	// Code is a unique identifier within the domain (e.g., "not_found", "dirty_tree")
	Code Code `json:"code"`

	// Message is a human-readable error message
	Message string `json:"message"`

	// ExitCode is the process exit status for this error
	ExitCode int `json:"-"`

	cause error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is and errors.As support
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target has the same domain and code
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Domain == t.Domain && e.Code == t.Code
}

func (e *Error) clone() *Error {
	c := *e
	return &c
}

// WithCause returns a copy of the error with the underlying cause attached
func (e *Error) WithCause(cause error) *Error {
	c := e.clone()
	c.cause = cause
	return c
}

// WithMessage returns a copy of the error with a custom message
func (e *Error) WithMessage(message string) *Error {
	c := e.clone()
	c.Message = message
	return c
}

// WithMessagef returns a copy of the error with a formatted custom message
func (e *Error) WithMessagef(format string, args ...interface{}) *Error {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// New creates a new Error
func New(domain Domain, code Code, exitCode int, message string) *Error {
	return &Error{
		Domain:   domain,
		Code:     code,
		Message:  message,
		ExitCode: exitCode,
	}
}

// Wrap wraps an existing error with an Error
func Wrap(err error, domain Domain, code Code, exitCode int, message string) *Error {
	e := New(domain, code, exitCode, message)
	e.cause = err
	return e
}

// GetExitCode returns the exit code for an error.
// nil maps to ExitOK, plain errors to ExitSetup.
func GetExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.ExitCode
	}
	return ExitSetup
}

// GetCode returns the error code if the error is an *Error, otherwise empty string
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// GetDomain returns the error domain if the error is an *Error, otherwise empty string
func GetDomain(err error) Domain {
	var e *Error
	if errors.As(err, &e) {
		return e.Domain
	}
	return ""
}

// Is delegates to errors.Is
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As delegates to errors.As
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
