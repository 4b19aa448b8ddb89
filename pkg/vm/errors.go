// Package vm - error handling with stack traces.
package vm

import (
	"fmt"
	"strings"
)

// StackFrame captures one active call frame at the moment a runtime error
// is raised.
//
// Grounded on the teacher's pkg/vm/errors.go StackFrame, trimmed to the
// fields a Lox frame actually carries (no message-selector field — Lox has
// no Smalltalk-style keyword messages).
type StackFrame struct {
	Name       string // function/method name, or "" for the top-level script
	SourceLine int    // source line active in this frame when the error hit
}

// RuntimeError is a runtime error together with the call stack active when
// it was raised, printed per spec.md §7: the message, then one line per
// frame, innermost first.
type RuntimeError struct {
	Message    string
	StackTrace []StackFrame
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	for i := len(e.StackTrace) - 1; i >= 0; i-- {
		frame := e.StackTrace[i]
		if frame.Name == "" {
			fmt.Fprintf(&b, "\n[line %d] in script", frame.SourceLine)
		} else {
			fmt.Fprintf(&b, "\n[line %d] in %s()", frame.SourceLine, frame.Name)
		}
	}
	return b.String()
}

func newRuntimeError(message string, stack []StackFrame) *RuntimeError {
	return &RuntimeError{Message: message, StackTrace: stack}
}
