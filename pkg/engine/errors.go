package engine

import (
	"errors"
	"fmt"
)

// ErrorClass classifies an engine error for reporting and retry decisions.
type ErrorClass string

const (
	// ErrorClassDiscovery indicates a malformed or unreadable framework
	// definition. Discovery errors are logged and skipped, never fatal.
	ErrorClassDiscovery ErrorClass = "discovery"

	// ErrorClassInitialization indicates a failure inside the background
	// initialization sequence. Logged as fatal diagnostics; initialization
	// still completes so waiters are never left hanging.
	ErrorClassInitialization ErrorClass = "initialization"

	// ErrorClassResolution indicates a failure resolving a framework for an
	// assembly. This is the only class surfaced synchronously to callers.
	ErrorClassResolution ErrorClass = "resolution"

	// ErrorClassLaunch indicates a process-start failure. Propagated to the
	// immediate caller, not swallowed.
	ErrorClassLaunch ErrorClass = "launch"
)

// EngineError is a classified error with framework/assembly context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Framework is the framework identity involved, if any.
	Framework string `json:"framework,omitempty"`

	// Assembly is the assembly path involved, if any.
	Assembly string `json:"assembly,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	switch {
	case e.Framework != "" && e.Assembly != "":
		return fmt.Sprintf("[%s] %s (assembly=%s, framework=%s)%s",
			e.Class, e.Message, e.Assembly, e.Framework, e.unwrapSuffix())
	case e.Framework != "":
		return fmt.Sprintf("[%s] %s (framework=%s)%s",
			e.Class, e.Message, e.Framework, e.unwrapSuffix())
	default:
		return fmt.Sprintf("[%s] %s%s", e.Class, e.Message, e.unwrapSuffix())
	}
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

func (e *EngineError) unwrapSuffix() string {
	if e.Err != nil {
		return ": " + e.Err.Error()
	}
	return ""
}

// Is implements error equality for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewDiscoveryError creates a new discovery error.
func NewDiscoveryError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassDiscovery, Message: message, Err: err}
}

// NewInitializationError creates a new initialization error.
func NewInitializationError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassInitialization, Message: message, Err: err}
}

// NewResolutionError creates a new resolution error.
func NewResolutionError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassResolution, Message: message, Err: err}
}

// NewLaunchError creates a new launch error.
func NewLaunchError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassLaunch, Message: message, Err: err}
}

// WithFramework adds framework context to an error.
func (e *EngineError) WithFramework(id FrameworkID) *EngineError {
	e.Framework = id.String()
	return e
}

// WithAssembly adds assembly context to an error.
func (e *EngineError) WithAssembly(path string) *EngineError {
	e.Assembly = path
	return e
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// IsNoCompatibleFramework reports whether err is a resolution failure caused
// by the absence of any installed compatible framework.
func IsNoCompatibleFramework(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Code == ErrCodeNoCompatibleFramework
	}
	return false
}

// Common error codes.
const (
	ErrCodeNoCompatibleFramework = "NO_COMPATIBLE_FRAMEWORK"
	ErrCodeFrameworkUnknown      = "FRAMEWORK_UNKNOWN"
	ErrCodeParseFailed           = "PARSE_FAILED"
	ErrCodeLaunchFailed          = "LAUNCH_FAILED"
	ErrCodeNotInitialized        = "NOT_INITIALIZED"
)
