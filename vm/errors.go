package vm

import (
	"errors"
	"fmt"
)

// Sentinel ExecutorErrors (spec.md §7), compared with errors.Is, the
// same way the teacher compares its vm/exec.go sentinels
// (errSegmentationFault, errDivisionByZero, …) with errors.New.
var (
	ErrStackOverflow    = errors.New("executor: stack overflow")
	ErrDivisionByZero   = errors.New("executor: division by zero")
	ErrIndexOutOfBounds = errors.New("executor: index out of bounds")
	ErrTooManyLocals    = errors.New("executor: too many locals")
)

// FunctionNotFoundError carries the unresolved name (spec.md §7
// "FunctionNotFound(name)").
type FunctionNotFoundError struct{ Name string }

func (e *FunctionNotFoundError) Error() string { return fmt.Sprintf("executor: function not found: %s", e.Name) }

// TypeError is the runtime safety net for operand-tag mismatches the
// type checker should have already rejected (spec.md §7 "Type(msg)").
type TypeError struct{ Msg string }

func (e *TypeError) Error() string { return "executor: type error: " + e.Msg }

// RuntimeError is the generic "Runtime(msg)" catch-all, and also the
// wrapper spec.md §7 requires for "current function name and
// instruction offset" on any failure surfaced from the dispatch loop.
// Line is the 1-based source line from the function's debug table when
// the interpreter was built with GenerateDebugInfo, 0 otherwise.
type RuntimeError struct {
	Kind error
	Func string
	IP   int
	Line int
}

func (e *RuntimeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s (in %s at ip=%d, line %d)", e.Kind, e.Func, e.IP, e.Line)
	}
	return fmt.Sprintf("%s (in %s at ip=%d)", e.Kind, e.Func, e.IP)
}

func (e *RuntimeError) Unwrap() error { return e.Kind }

func wrapErr(kind error, funcName string, ip int) error {
	return &RuntimeError{Kind: kind, Func: funcName, IP: ip}
}
