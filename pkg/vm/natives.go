package vm

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/kristofer/lox/pkg/object"
	"github.com/kristofer/lox/pkg/value"
)

// defineNatives installs the mandatory natives spec.md §6 requires
// (clock, print, println) plus a small supplemented set (len, type, sqrt,
// substr), grounded on the teacher's
// pkg/vm/primitives.go native-registration style but trimmed to what a
// single-threaded embeddable scripting VM plausibly ships.
func (vm *VM) defineNatives() {
	vm.defineNative("clock", func(args []value.Value) (value.Value, error) {
		return value.NumberValue(vm.clockSeconds()), nil
	})
	vm.defineNative("print", func(args []value.Value) (value.Value, error) {
		for _, a := range args {
			fmt.Fprint(vm.stdout, a.String())
		}
		return value.NilValue, nil
	})
	vm.defineNative("println", func(args []value.Value) (value.Value, error) {
		for _, a := range args {
			fmt.Fprint(vm.stdout, a.String())
		}
		fmt.Fprintln(vm.stdout)
		return value.NilValue, nil
	})
	vm.defineNative("len", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.NilValue, errors.New("len() takes exactly one argument.")
		}
		str, ok := args[0].AsObj().(*object.String)
		if !args[0].IsObj() || !ok {
			return value.NilValue, errors.New("len() argument must be a string.")
		}
		return value.NumberValue(float64(len(str.Chars))), nil
	})
	vm.defineNative("type", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.NilValue, errors.New("type() takes exactly one argument.")
		}
		return value.ObjValue(vm.Intern(typeName(args[0]))), nil
	})
	vm.defineNative("sqrt", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 || !args[0].IsNumber() {
			return value.NilValue, errors.New("sqrt() takes exactly one number.")
		}
		return value.NumberValue(math.Sqrt(args[0].AsNumber())), nil
	})
	vm.defineNative("substr", func(args []value.Value) (value.Value, error) {
		if len(args) != 3 {
			return value.NilValue, errors.New("substr() takes a string, a start index, and a length.")
		}
		str, ok := args[0].AsObj().(*object.String)
		if !args[0].IsObj() || !ok || !args[1].IsNumber() || !args[2].IsNumber() {
			return value.NilValue, errors.New("substr() takes a string, a start index, and a length.")
		}
		chars := str.Chars
		start := int(args[1].AsNumber())
		length := int(args[2].AsNumber())
		if start < 0 || length < 0 || start+length > len(chars) {
			return value.NilValue, errors.New("substr() range out of bounds.")
		}
		return value.ObjValue(vm.Intern(chars[start : start+length])), nil
	})
}

func typeName(v value.Value) string {
	switch {
	case v.IsNil():
		return "nil"
	case v.IsBool():
		return "bool"
	case v.IsNumber():
		return "number"
	case v.IsObj():
		return v.AsObj().ObjType()
	default:
		return "unknown"
	}
}

// defineNative wraps fn as a Native object and binds it in the globals
// table under name, the Go-idiomatic equivalent of spec.md §6's
// define_native(name, fn) host entry point.
func (vm *VM) defineNative(name string, fn object.NativeFn) {
	native := object.NewNative(name, fn)
	// Root native in globals (a GC root) before track, same push-before-track
	// discipline as every other allocation site in pkg/vm.
	key := vm.Intern(name)
	vm.globals.Set(key, value.ObjValue(native))
	vm.track(native, 24)
}
