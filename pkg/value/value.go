// Package value implements the Lox runtime Value representation.
//
// A Value is a uniform tagged scalar carrying exactly one of: nil, a
// boolean, an IEEE-754 double, or a reference to a heap object. It is the
// only type that flows through the VM's value stack, the constant pool, and
// every runtime object field — locals, globals, instance fields, upvalues.
//
// Design:
//
// Rather than box every Value in an interface{} (which would allocate on
// every arithmetic result), Value is a small struct with an explicit type
// tag and three payload fields that are never all live at once: a float64
// for numbers, a bool for booleans, and an Obj for heap references. This
// keeps numbers and booleans on the stack without touching the heap, which
// matters because arithmetic is the hottest path in the interpreter loop.
package value

import (
	"fmt"
	"math"
	"strconv"
)

// Type identifies which variant of Value is populated.
type Type int

const (
	// Nil is the absence of a value.
	Nil Type = iota
	// Bool carries a boolean payload.
	Bool
	// Number carries a float64 payload.
	Number
	// Obj carries a reference to a heap object.
	Obj
)

// Object is the interface implemented by every heap object variant
// (String, Function, Closure, Upvalue, Class, Instance, BoundMethod,
// Native). It is defined here, rather than in pkg/object, so that Value can
// reference it without creating an import cycle between pkg/value and
// pkg/object; pkg/object's concrete types satisfy it.
type Object interface {
	// ObjType returns a short tag used by the GC and by printing.
	ObjType() string
	// IsMarked reports whether the GC has reached this object this cycle.
	IsMarked() bool
	// SetMarked sets the GC mark bit.
	SetMarked(bool)
	// String renders the object the way Lox's print/println would.
	String() string
}

// Value is the tagged scalar that flows through the VM.
type Value struct {
	typ    Type
	boolean bool
	number  float64
	obj     Object
}

// NilValue is the singleton nil value.
var NilValue = Value{typ: Nil}

// BoolValue constructs a boolean Value.
func BoolValue(b bool) Value { return Value{typ: Bool, boolean: b} }

// NumberValue constructs a numeric Value.
func NumberValue(n float64) Value { return Value{typ: Number, number: n} }

// ObjValue constructs a Value wrapping a heap object reference.
func ObjValue(o Object) Value { return Value{typ: Obj, obj: o} }

// IsNil reports whether v is the nil value.
func (v Value) IsNil() bool { return v.typ == Nil }

// IsBool reports whether v carries a boolean.
func (v Value) IsBool() bool { return v.typ == Bool }

// IsNumber reports whether v carries a number.
func (v Value) IsNumber() bool { return v.typ == Number }

// IsObj reports whether v carries a heap object reference.
func (v Value) IsObj() bool { return v.typ == Obj }

// AsBool returns the boolean payload. Callers must check IsBool first.
func (v Value) AsBool() bool { return v.boolean }

// AsNumber returns the numeric payload. Callers must check IsNumber first.
func (v Value) AsNumber() float64 { return v.number }

// AsObj returns the object payload. Callers must check IsObj first.
func (v Value) AsObj() Object { return v.obj }

// IsFalsey implements Lox truthiness: nil and false are falsey, everything
// else — including 0 and the empty string — is truthy.
func (v Value) IsFalsey() bool {
	return v.IsNil() || (v.IsBool() && !v.AsBool())
}

// Equal implements Lox's == operator: structural equality for primitives,
// reference identity for objects. Because strings are interned (see
// pkg/table), reference identity on Obj values is sufficient to implement
// string content equality too — two equal-content strings are always the
// same String object.
func Equal(a, b Value) bool {
	if a.typ != b.typ {
		return false
	}
	switch a.typ {
	case Nil:
		return true
	case Bool:
		return a.boolean == b.boolean
	case Number:
		return a.number == b.number
	case Obj:
		return a.obj == b.obj
	default:
		return false
	}
}

// String renders v the way Lox's print/println natives do (spec.md §6):
// nil, true/false, numbers via "%.15g"-equivalent formatting, strings as
// raw bytes, and objects via their own String().
func (v Value) String() string {
	switch v.typ {
	case Nil:
		return "nil"
	case Bool:
		if v.boolean {
			return "true"
		}
		return "false"
	case Number:
		return formatNumber(v.number)
	case Obj:
		return v.obj.String()
	default:
		return fmt.Sprintf("<invalid value type %d>", v.typ)
	}
}

// formatNumber matches C's printf("%.15g", n): the shortest decimal
// representation that round-trips through 15 significant digits, with
// trailing zeros and a trailing decimal point stripped.
func formatNumber(n float64) string {
	if math.IsInf(n, 1) {
		return "inf"
	}
	if math.IsInf(n, -1) {
		return "-inf"
	}
	if math.IsNaN(n) {
		if math.Signbit(n) {
			return "-nan"
		}
		return "nan"
	}
	return strconv.FormatFloat(n, 'g', 15, 64)
}
