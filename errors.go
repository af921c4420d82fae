package relgraph

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the three failure kinds of a build or compilation.
var (
	// ErrInvalidModel is returned when a model cannot be normalized or resolved.
	ErrInvalidModel = errors.New("relgraph: invalid model")

	// ErrValidation is returned when a query document fails validation
	// against the expanded schema.
	ErrValidation = errors.New("relgraph: query validation failed")

	// ErrCompile is returned when a validated document contains a shape
	// the compiler cannot lower to SQL.
	ErrCompile = errors.New("relgraph: compile failed")

	// ErrInvalidConfig is returned for invalid options or configuration values.
	ErrInvalidConfig = errors.New("relgraph: invalid configuration")
)

// ModelError represents an error in a user model: an undeclared type
// reference, a rejected reserved name or contradicting relation directives.
type ModelError struct {
	Type    string // Type name
	Field   string // Field name (if applicable)
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ModelError) Error() string {
	var b strings.Builder
	b.WriteString("relgraph: model error")
	if e.Type != "" {
		b.WriteString(" on type ")
		b.WriteString(e.Type)
	}
	if e.Field != "" {
		b.WriteString(" field ")
		b.WriteString(e.Field)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *ModelError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches the sentinel error for ModelError.
func (e *ModelError) Is(target error) bool {
	return target == ErrInvalidModel
}

// NewModelError creates a new ModelError.
func NewModelError(typeName, fieldName, message string, cause error) *ModelError {
	return &ModelError{
		Type:    typeName,
		Field:   fieldName,
		Message: message,
		Cause:   cause,
	}
}

// Modelf creates a ModelError with a formatted message.
func Modelf(typeName, fieldName, format string, args ...any) *ModelError {
	return NewModelError(typeName, fieldName, fmt.Sprintf(format, args...), nil)
}

// IsModelError returns true if the error is a ModelError.
func IsModelError(err error) bool {
	if err == nil {
		return false
	}
	var e *ModelError
	return errors.As(err, &e) || errors.Is(err, ErrInvalidModel)
}

// ValidationError holds every message reported by the document validator.
type ValidationError struct {
	Messages []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	switch len(e.Messages) {
	case 0:
		return "relgraph: query validation failed"
	case 1:
		return "relgraph: query validation failed: " + e.Messages[0]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "relgraph: query validation failed with %d errors:", len(e.Messages))
	for _, m := range e.Messages {
		b.WriteString("\n  - ")
		b.WriteString(m)
	}
	return b.String()
}

// Is reports whether the target matches the sentinel error for ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Messages: messages}
}

// IsValidationError returns true if the error is a ValidationError.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ValidationError
	return errors.As(err, &e) || errors.Is(err, ErrValidation)
}

// CompileError represents a field or argument shape the compiler
// does not know how to lower.
type CompileError struct {
	Type    string
	Field   string
	Message string
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	var b strings.Builder
	b.WriteString("relgraph: compile error")
	if e.Type != "" {
		b.WriteString(" on type ")
		b.WriteString(e.Type)
	}
	if e.Field != "" {
		b.WriteString(" field ")
		b.WriteString(e.Field)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// Is reports whether the target matches the sentinel error for CompileError.
func (e *CompileError) Is(target error) bool {
	return target == ErrCompile
}

// NewCompileError creates a new CompileError.
func NewCompileError(typeName, fieldName, message string) *CompileError {
	return &CompileError{
		Type:    typeName,
		Field:   fieldName,
		Message: message,
	}
}

// Compilef creates a CompileError with a formatted message.
func Compilef(typeName, fieldName, format string, args ...any) *CompileError {
	return NewCompileError(typeName, fieldName, fmt.Sprintf(format, args...))
}

// IsCompileError returns true if the error is a CompileError.
func IsCompileError(err error) bool {
	if err == nil {
		return false
	}
	var e *CompileError
	return errors.As(err, &e) || errors.Is(err, ErrCompile)
}

// ConfigError represents an invalid option or configuration value.
type ConfigError struct {
	Option  string
	Value   any
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("relgraph: config error for %q (value: %v): %s", e.Option, e.Value, e.Message)
	}
	return fmt.Sprintf("relgraph: config error for %q: %s", e.Option, e.Message)
}

// Is reports whether the target matches the sentinel error for ConfigError.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// NewConfigError creates a new ConfigError.
func NewConfigError(option string, value any, message string) *ConfigError {
	return &ConfigError{
		Option:  option,
		Value:   value,
		Message: message,
	}
}

// IsConfigError returns true if the error is a ConfigError.
func IsConfigError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConfigError
	return errors.As(err, &e) || errors.Is(err, ErrInvalidConfig)
}
