package nodescript

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Code classifies compile-time and run-time failures.
type Code int

// Compile-time codes (3000-3099). These abort the whole compile.
const (
	CodeSyntax Code = 3001 + iota
	CodeUndefined
	CodeRedefined
	CodeRecursion
	CodeUndefinedFunction
	CodeBadCall
	CodeImportCollision
	CodeImportCycle
)

// Run-time codes (3100-3199).
const (
	CodeUndefinedNode Code = 3101 + iota
	CodeUndefinedParam
	CodeInvalidGetAttribute
	CodeInvalidIndex
	CodeTypeMismatch
	CodeDivisionByZero
	CodeOverflow
	CodeNotAllowed
	CodeUserError
	CodeHost
)

var codeNames = map[Code]string{
	CodeSyntax:              "Syntax",
	CodeUndefined:           "Undefined",
	CodeRedefined:           "Redefined",
	CodeRecursion:           "Recursion",
	CodeUndefinedFunction:   "UndefinedFunction",
	CodeBadCall:             "BadCall",
	CodeImportCollision:     "ImportCollision",
	CodeImportCycle:         "ImportCycle",
	CodeUndefinedNode:       "UndefinedNode",
	CodeUndefinedParam:      "UndefinedParam",
	CodeInvalidGetAttribute: "InvalidGetAttribute",
	CodeInvalidIndex:        "InvalidIndex",
	CodeTypeMismatch:        "TypeMismatch",
	CodeDivisionByZero:      "DivisionByZero",
	CodeOverflow:            "Overflow",
	CodeNotAllowed:          "NotAllowed",
	CodeUserError:           "UserError",
	CodeHost:                "Host",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

var (
	ErrAlreadyCompiled = errors.New("engine already holds a compiled unit")
	ErrNotCompiled     = errors.New("engine has no compiled unit")
)

// CompileError rejects a whole compilation unit at the first failing line.
type CompileError struct {
	Code    Code
	Message string
	Unit    string
	Line    int
	Cause   error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s:%d: %s: %s", e.Unit, e.Line, e.Code, e.Message)
}

func (e *CompileError) Unwrap() error {
	return e.Cause
}

// Frame is one attribute evaluation on the way to a failure.
type Frame struct {
	Unit      string
	Line      int
	Attribute string
}

func (f Frame) String() string {
	return fmt.Sprintf("%s:%d in %s", f.Unit, f.Line, f.Attribute)
}

// RuntimeError is a failed evaluation. Frames are collected while the error
// propagates, innermost first.
type RuntimeError struct {
	Code    Code
	Message string
	// Err is the failure raised by a host call, surfaced unmodified.
	Err    error
	Frames []Frame
}

func (e *RuntimeError) Error() string {
	if e.Code == CodeHost && e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// Is checks if err carries the given code.
func Is(err error, code Code) bool {
	if err == nil {
		return false
	}

	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return compileErr.Code == code
	}
	var runtimeErr *RuntimeError
	if errors.As(err, &runtimeErr) {
		return runtimeErr.Code == code
	}
	return false
}

func newRuntimeError(code Code, format string, args ...interface{}) *RuntimeError {
	return &RuntimeError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

func hostError(err error) *RuntimeError {
	var runtimeErr *RuntimeError
	if errors.As(err, &runtimeErr) {
		return runtimeErr
	}
	return &RuntimeError{
		Code:    CodeHost,
		Message: err.Error(),
		Err:     err,
	}
}

// withFrame records frame on err as it leaves an attribute evaluation.
func withFrame(err error, frame Frame) error {
	runtimeErr := hostError(err)
	runtimeErr.Frames = append(runtimeErr.Frames, frame)
	return runtimeErr
}

// FailureReport is a caller-facing description of a failed evaluation.
type FailureReport struct {
	Message string
	Code    Code
	// Frames run from the requested attribute down to the failing one.
	Frames []Frame
}

// Report builds a FailureReport from an evaluation error.
func Report(err error) *FailureReport {
	if err == nil {
		return nil
	}

	report := &FailureReport{Message: err.Error()}

	var runtimeErr *RuntimeError
	if !errors.As(err, &runtimeErr) {
		var compileErr *CompileError
		if errors.As(err, &compileErr) {
			report.Code = compileErr.Code
			report.Frames = []Frame{{Unit: compileErr.Unit, Line: compileErr.Line}}
		}
		return report
	}

	report.Code = runtimeErr.Code
	report.Frames = make([]Frame, len(runtimeErr.Frames))
	for i, f := range runtimeErr.Frames {
		report.Frames[len(runtimeErr.Frames)-1-i] = f
	}
	return report
}

func (r *FailureReport) String() string {
	var b strings.Builder
	b.WriteString(r.Message)
	for _, f := range r.Frames {
		b.WriteString("\n    at ")
		b.WriteString(f.String())
	}
	return b.String()
}
