// Package vm implements the Lox bytecode interpreter: the frame-stack VM,
// its call protocol for closures/classes/bound methods/natives, property
// and method dispatch, upvalue capture/close, and the mark-sweep garbage
// collector (gc.go).
//
// Grounded on the teacher's pkg/vm/vm.go opcode-dispatch loop shape (a
// `switch` over the current instruction, one doc comment per case) and its
// class/inheritance lookup (lookupMethod/executeMethod/superSend) —
// generalized from smog's one-*VM-per-activation message-send model into a
// single shared frame-stack VM, since spec.md §4.4 specifies one VM
// instance with a call-frame array, not a fresh interpreter per call.
package vm

import (
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/kristofer/lox/pkg/chunk"
	"github.com/kristofer/lox/pkg/compiler"
	"github.com/kristofer/lox/pkg/object"
	"github.com/kristofer/lox/pkg/table"
	"github.com/kristofer/lox/pkg/value"
)

const (
	framesMax = 64
	stackMax  = framesMax * 256
)

// InterpretResult reports how Interpret finished, matching spec.md §6's
// {OK, CompileError, RuntimeError}.
type InterpretResult int

const (
	InterpretOK InterpretResult = iota
	InterpretCompileError
	InterpretRuntimeError
)

// CallFrame is one activation record: the closure being executed, an
// instruction pointer into its function's bytecode, and the base stack
// slot holding the receiver/callee (slot 0) followed by locals.
//
// Represented as a base index into the VM's own stack array rather than a
// raw pointer into it (the way the teacher's debugger.go and clox both
// would with a native pointer) — the stack is a fixed-size Go array that
// never reallocates, so an index is exactly as stable and is the more
// idiomatic Go expression of the same "pointer into the stack" idea.
type CallFrame struct {
	closure *object.Closure
	ip      int
	base    int
}

// VM is a single process-wide Lox interpreter instance: its value stack,
// call-frame array, interned-strings table, globals, the open-upvalue
// list, and garbage-collector state. spec.md §4.4/§5 specify exactly one
// such instance per process.
type VM struct {
	stack    [stackMax]value.Value
	stackTop int

	frames     [framesMax]CallFrame
	frameCount int

	strings      *table.Table
	globals      *table.Table
	openUpvalues *object.Upvalue
	initString   *object.String

	objects        value.Object
	bytesAllocated int
	nextGC         int
	grayStack      []value.Object

	stdout io.Writer
	stderr io.Writer

	startTime time.Time
}

// New returns an initialized VM ready for Interpret, with the mandatory
// natives (spec.md §6) already installed: clock, print, println, plus the
// small supplemented set len, type, sqrt and substr.
func New(stdout, stderr io.Writer) *VM {
	vm := &VM{
		strings:   table.New(),
		globals:   table.New(),
		stdout:    stdout,
		stderr:    stderr,
		nextGC:    1024 * 1024, // 1 MiB, spec.md §4.5
		startTime: time.Now(),
	}
	vm.initString = vm.Intern("init")
	vm.defineNatives()
	return vm
}

// Intern returns the single String instance for s, allocating and
// tracking a new one into the garbage collector's object list if none
// exists yet. Implements compiler.Interner so the compiler and the VM
// share one intern table across the compile/run boundary.
func (vm *VM) Intern(s string) *object.String {
	hash := object.HashString(s)
	if existing := vm.strings.FindString(s, hash); existing != nil {
		return existing.(*object.String)
	}
	str := object.NewString(s)
	// Root str on the stack for the duration of track (which can itself
	// trigger a collection) before the intern table gets its weak entry —
	// the intern table holds no strong references of its own (see
	// RemoveWhite), so str must be reachable some other way or a
	// collection running inside track could sweep it before it's ever
	// returned to a caller.
	vm.push(value.ObjValue(str))
	vm.track(str, len(s)+24)
	vm.pop()
	vm.strings.Set(str, value.NilValue)
	return str
}

// Interpret compiles and runs source against this VM instance. Compile
// errors are reported to stderr and InterpretCompileError is returned;
// runtime errors are reported to stderr with a stack trace and
// InterpretRuntimeError is returned.
func (vm *VM) Interpret(source string) InterpretResult {
	fn, err := compiler.Compile(source, vm)
	if err != nil {
		fmt.Fprintln(vm.stderr, err)
		return InterpretCompileError
	}

	// Root fn for adopt's duration: adopt's own track calls can trigger a
	// collection, and fn isn't reachable from any root until the closure
	// below exists and is pushed.
	vm.push(value.ObjValue(fn))
	vm.adopt(fn)
	vm.pop()
	closure := object.NewClosure(fn)
	vm.push(value.ObjValue(closure))
	vm.track(closure, 64)
	if err := vm.call(closure, 0); err != nil {
		vm.reportRuntimeError(err)
		return InterpretRuntimeError
	}

	if err := vm.run(); err != nil {
		vm.reportRuntimeError(err)
		return InterpretRuntimeError
	}
	return InterpretOK
}

func (vm *VM) reportRuntimeError(err error) {
	fmt.Fprintln(vm.stderr, err)
	vm.resetStack()
}

// adopt walks a freshly compiled Function graph — itself and every nested
// Function reachable through its constant pool — and links each one into
// the garbage collector's object list. Compilation allocates through
// object.NewFunction directly rather than through the VM (the compiler has
// no VM reference, only the narrow Interner interface for strings), so
// these objects are untracked until the whole compile finishes. adopt's own
// track calls can themselves trigger a collection partway through the
// walk, so the caller must root fn (e.g. by pushing it) before calling
// adopt — once rooted, markRoots/blacken reach every nested Function
// through fn's own constant pool regardless of which ones adopt has
// tracked so far.
func (vm *VM) adopt(fn *object.Function) {
	vm.track(fn, 48)
	for _, c := range fn.Chunk.Constants {
		if c.IsObj() {
			if nested, ok := c.AsObj().(*object.Function); ok {
				vm.adopt(nested)
			}
		}
	}
}

// track links a newly allocated object into the object list and accounts
// for its approximate size, triggering a collection if the threshold is
// exceeded — the Go equivalent of reallocate()'s bookkeeping in spec.md
// §4.5. Go's own allocator and GC back the actual memory; this layer only
// decides when *our* mark-sweep pass runs and which objects it may free
// back to Go's allocator by dropping the last reference.
func (vm *VM) track(o value.Object, size int) {
	if linked, ok := o.(object.Linked); ok {
		linked.SetNext(vm.objects)
		linked.SetSize(size)
	}
	vm.objects = o
	vm.bytesAllocated += size
	if vm.bytesAllocated > vm.nextGC {
		vm.collectGarbage()
	}
}

// --- stack -----------------------------------------------------------

func (vm *VM) resetStack() {
	vm.stackTop = 0
	vm.frameCount = 0
	vm.openUpvalues = nil
}

func (vm *VM) push(v value.Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() value.Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[vm.stackTop-1-distance]
}

// --- errors ------------------------------------------------------------

func (vm *VM) runtimeError(format string, args ...interface{}) error {
	msg := errors.Errorf(format, args...).Error()
	var trace []StackFrame
	for i := 0; i < vm.frameCount; i++ {
		frame := &vm.frames[i]
		fn := frame.closure.Function
		line := frame.closure.Function.Chunk.Line(frame.ip - 1)
		name := ""
		if fn.Name != nil {
			name = fn.Name.Chars
		}
		trace = append(trace, StackFrame{Name: name, SourceLine: line})
	}
	return newRuntimeError(msg, trace)
}

// --- call protocol ----------------------------------------------------

func (vm *VM) call(closure *object.Closure, argCount int) error {
	if argCount != closure.Function.Arity {
		return vm.runtimeError("Expected %d arguments but got %d.", closure.Function.Arity, argCount)
	}
	if vm.frameCount == framesMax {
		return vm.runtimeError("Stack overflow.")
	}
	frame := &vm.frames[vm.frameCount]
	vm.frameCount++
	frame.closure = closure
	frame.ip = 0
	frame.base = vm.stackTop - argCount - 1
	return nil
}

func (vm *VM) callValue(callee value.Value, argCount int) error {
	if !callee.IsObj() {
		return vm.runtimeError("Can only call functions and classes.")
	}
	switch obj := callee.AsObj().(type) {
	case *object.Closure:
		return vm.call(obj, argCount)
	case *object.Class:
		instance := object.NewInstance(obj)
		vm.stack[vm.stackTop-argCount-1] = value.ObjValue(instance)
		vm.track(instance, 40)
		if initMethod, ok := obj.Methods.Get(vm.initString); ok {
			return vm.call(initMethod.AsObj().(*object.Closure), argCount)
		} else if argCount != 0 {
			return vm.runtimeError("Expected 0 arguments but got %d.", argCount)
		}
		return nil
	case *object.BoundMethod:
		vm.stack[vm.stackTop-argCount-1] = obj.Receiver
		return vm.call(obj.Method, argCount)
	case *object.Native:
		args := vm.stack[vm.stackTop-argCount : vm.stackTop]
		result, err := obj.Fn(args)
		if err != nil {
			return vm.runtimeError("%s", err.Error())
		}
		vm.stackTop -= argCount + 1
		vm.push(result)
		return nil
	default:
		return vm.runtimeError("Can only call functions and classes.")
	}
}

func (vm *VM) invoke(name *object.String, argCount int) error {
	receiver := vm.peek(argCount)
	if !receiver.IsObj() {
		return vm.runtimeError("Only instances have properties.")
	}
	instance, ok := receiver.AsObj().(*object.Instance)
	if !ok {
		return vm.runtimeError("Only instances have properties.")
	}
	if field, ok := instance.Fields.Get(name); ok {
		vm.stack[vm.stackTop-argCount-1] = field
		return vm.callValue(field, argCount)
	}
	return vm.invokeFromClass(instance.Class, name, argCount)
}

func (vm *VM) invokeFromClass(class *object.Class, name *object.String, argCount int) error {
	methodVal, ok := class.Methods.Get(name)
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name.Chars)
	}
	return vm.call(methodVal.AsObj().(*object.Closure), argCount)
}

func (vm *VM) bindMethod(class *object.Class, name *object.String) (*object.BoundMethod, error) {
	methodVal, ok := class.Methods.Get(name)
	if !ok {
		return nil, vm.runtimeError("Undefined property '%s'.", name.Chars)
	}
	bound := object.NewBoundMethod(vm.peek(0), methodVal.AsObj().(*object.Closure))
	// Root bound on the stack for track's duration, same reasoning as Intern:
	// the caller doesn't push it until after this call returns.
	vm.push(value.ObjValue(bound))
	vm.track(bound, 32)
	vm.pop()
	return bound, nil
}

// --- upvalues ------------------------------------------------------------

// captureUpvalue returns the open Upvalue for the stack slot at index,
// sharing an existing one if already open. The open list is kept sorted
// with the deepest (highest-index) slot at the head (see DESIGN.md's Open
// Question decision); captures within one call occur in non-decreasing
// stack depth, so each new capture is spliced in no further from the head
// than the first entry whose slot is not deeper.
func (vm *VM) captureUpvalue(index int) *object.Upvalue {
	var prev *object.Upvalue
	cur := vm.openUpvalues
	for cur != nil && cur.Slot > index {
		prev = cur
		cur = cur.NextOpen
	}
	if cur != nil && cur.Slot == index {
		return cur
	}

	created := object.NewUpvalue(&vm.stack[index], index)
	// Splice created into the open-upvalue list — a GC root markRoots walks
	// directly — before track, which can itself trigger a collection.
	created.NextOpen = cur
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.NextOpen = created
	}
	vm.track(created, 32)
	return created
}

// closeUpvalues closes every open upvalue at or above stack index last,
// copying each referenced value out of the stack and unlinking it from the
// open list, per spec.md §4.4.
func (vm *VM) closeUpvalues(last int) {
	for vm.openUpvalues != nil && vm.openUpvalues.Slot >= last {
		u := vm.openUpvalues
		u.Close()
		vm.openUpvalues = u.NextOpen
	}
}

// --- dispatch -----------------------------------------------------------

func (vm *VM) frame() *CallFrame { return &vm.frames[vm.frameCount-1] }

func (vm *VM) readByte(frame *CallFrame) byte {
	b := frame.closure.Function.Chunk.Code[frame.ip]
	frame.ip++
	return b
}

func (vm *VM) readShort(frame *CallFrame) int {
	hi := vm.readByte(frame)
	lo := vm.readByte(frame)
	return int(hi)<<8 | int(lo)
}

func (vm *VM) readConstant(frame *CallFrame) value.Value {
	return frame.closure.Function.Chunk.Constants[vm.readByte(frame)]
}

func (vm *VM) readString(frame *CallFrame) *object.String {
	return vm.readConstant(frame).AsObj().(*object.String)
}

// run is the VM's single dispatch loop: read one opcode from the current
// frame, act on it, repeat until a top-level OP_RETURN or an error.
func (vm *VM) run() error {
	frame := vm.frame()

	for {
		op := chunk.OpCode(vm.readByte(frame))

		switch op {
		case chunk.OpConstant:
			vm.push(vm.readConstant(frame))

		case chunk.OpNil:
			vm.push(value.NilValue)
		case chunk.OpTrue:
			vm.push(value.BoolValue(true))
		case chunk.OpFalse:
			vm.push(value.BoolValue(false))
		case chunk.OpPop:
			vm.pop()

		case chunk.OpGetLocal:
			slot := vm.readByte(frame)
			vm.push(vm.stack[frame.base+int(slot)])
		case chunk.OpSetLocal:
			slot := vm.readByte(frame)
			vm.stack[frame.base+int(slot)] = vm.peek(0)

		case chunk.OpGetUpvalue:
			slot := vm.readByte(frame)
			vm.push(*frame.closure.Upvalues[slot].Location)
		case chunk.OpSetUpvalue:
			slot := vm.readByte(frame)
			*frame.closure.Upvalues[slot].Location = vm.peek(0)

		case chunk.OpGetGlobal:
			name := vm.readString(frame)
			val, ok := vm.globals.Get(name)
			if !ok {
				return vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}
			vm.push(val)
		case chunk.OpSetGlobal:
			name := vm.readString(frame)
			if vm.globals.Set(name, vm.peek(0)) {
				vm.globals.Delete(name)
				return vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}
		case chunk.OpDefineGlobal:
			name := vm.readString(frame)
			vm.globals.Set(name, vm.peek(0))
			vm.pop()

		case chunk.OpGetProperty:
			if err := vm.getProperty(frame); err != nil {
				return err
			}
		case chunk.OpSetProperty:
			if err := vm.setProperty(frame); err != nil {
				return err
			}
		case chunk.OpGetSuper:
			name := vm.readString(frame)
			superclass := vm.pop().AsObj().(*object.Class)
			bound, err := vm.bindMethod(superclass, name)
			if err != nil {
				return err
			}
			vm.pop()
			vm.push(value.ObjValue(bound))

		case chunk.OpEqual:
			b, a := vm.pop(), vm.pop()
			vm.push(value.BoolValue(value.Equal(a, b)))
		case chunk.OpGreater:
			if err := vm.numericCompare(func(a, b float64) bool { return a > b }); err != nil {
				return err
			}
		case chunk.OpLess:
			if err := vm.numericCompare(func(a, b float64) bool { return a < b }); err != nil {
				return err
			}

		case chunk.OpAdd:
			if err := vm.add(); err != nil {
				return err
			}
		case chunk.OpSubtract:
			if err := vm.numericBinary(func(a, b float64) float64 { return a - b }); err != nil {
				return err
			}
		case chunk.OpMultiply:
			if err := vm.numericBinary(func(a, b float64) float64 { return a * b }); err != nil {
				return err
			}
		case chunk.OpDivide:
			if err := vm.numericBinary(func(a, b float64) float64 { return a / b }); err != nil {
				return err
			}

		case chunk.OpNot:
			vm.push(value.BoolValue(vm.pop().IsFalsey()))
		case chunk.OpNegate:
			if !vm.peek(0).IsNumber() {
				return vm.runtimeError("Operand must be a number.")
			}
			vm.push(value.NumberValue(-vm.pop().AsNumber()))

		case chunk.OpJump:
			offset := vm.readShort(frame)
			frame.ip += offset
		case chunk.OpJumpIfFalse:
			offset := vm.readShort(frame)
			if vm.peek(0).IsFalsey() {
				frame.ip += offset
			}
		case chunk.OpLoop:
			offset := vm.readShort(frame)
			frame.ip -= offset

		case chunk.OpCall:
			argCount := int(vm.readByte(frame))
			if err := vm.callValue(vm.peek(argCount), argCount); err != nil {
				return err
			}
			frame = vm.frame()

		case chunk.OpInvoke:
			name := vm.readString(frame)
			argCount := int(vm.readByte(frame))
			if err := vm.invoke(name, argCount); err != nil {
				return err
			}
			frame = vm.frame()
		case chunk.OpInvokeSuper:
			name := vm.readString(frame)
			argCount := int(vm.readByte(frame))
			superclass := vm.pop().AsObj().(*object.Class)
			if err := vm.invokeFromClass(superclass, name, argCount); err != nil {
				return err
			}
			frame = vm.frame()

		case chunk.OpClosure:
			fn := vm.readConstant(frame).AsObj().(*object.Function)
			closure := object.NewClosure(fn)
			vm.push(value.ObjValue(closure))
			vm.track(closure, 32+16*fn.UpvalueCnt)
			for i := 0; i < fn.UpvalueCnt; i++ {
				isLocal := vm.readByte(frame)
				index := int(vm.readByte(frame))
				if isLocal != 0 {
					closure.Upvalues[i] = vm.captureUpvalue(frame.base + index)
				} else {
					closure.Upvalues[i] = frame.closure.Upvalues[index]
				}
			}

		case chunk.OpCloseUpvalue:
			vm.closeUpvalues(vm.stackTop - 1)
			vm.pop()

		case chunk.OpClass:
			name := vm.readString(frame)
			class := object.NewClass(name)
			vm.push(value.ObjValue(class))
			vm.track(class, 48)

		case chunk.OpMethod:
			name := vm.readString(frame)
			method := vm.peek(0)
			class := vm.peek(1).AsObj().(*object.Class)
			class.Methods.Set(name, method)
			vm.pop()

		case chunk.OpInherit:
			superVal := vm.peek(1)
			superclass, ok := superVal.AsObj().(*object.Class)
			if !ok {
				return vm.runtimeError("Superclass must be a class.")
			}
			subclass := vm.peek(0).AsObj().(*object.Class)
			superclass.Methods.Each(func(key table.Key, v value.Value) {
				subclass.Methods.Set(key, v)
			})
			vm.pop() // subclass; superclass remains for the "super" local

		case chunk.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(frame.base)
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop()
				return nil
			}
			vm.stackTop = frame.base
			vm.push(result)
			frame = vm.frame()

		default:
			return vm.runtimeError("Unknown opcode %d.", byte(op))
		}
	}
}

func (vm *VM) getProperty(frame *CallFrame) error {
	receiver := vm.peek(0)
	if !receiver.IsObj() {
		return vm.runtimeError("Only instances have properties.")
	}
	instance, ok := receiver.AsObj().(*object.Instance)
	if !ok {
		return vm.runtimeError("Only instances have properties.")
	}
	name := vm.readString(frame)
	if field, ok := instance.Fields.Get(name); ok {
		vm.pop()
		vm.push(field)
		return nil
	}
	bound, err := vm.bindMethod(instance.Class, name)
	if err != nil {
		return err
	}
	vm.pop()
	vm.push(value.ObjValue(bound))
	return nil
}

func (vm *VM) setProperty(frame *CallFrame) error {
	receiver := vm.peek(1)
	if !receiver.IsObj() {
		return vm.runtimeError("Only instances have properties.")
	}
	instance, ok := receiver.AsObj().(*object.Instance)
	if !ok {
		return vm.runtimeError("Only instances have properties.")
	}
	name := vm.readString(frame)
	val := vm.peek(0)
	instance.Fields.Set(name, val)
	vm.pop()
	vm.pop()
	vm.push(val)
	return nil
}

func (vm *VM) numericBinary(f func(a, b float64) float64) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("Operands must be numbers.")
	}
	b, a := vm.pop().AsNumber(), vm.pop().AsNumber()
	vm.push(value.NumberValue(f(a, b)))
	return nil
}

func (vm *VM) numericCompare(f func(a, b float64) bool) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("Operands must be numbers.")
	}
	b, a := vm.pop().AsNumber(), vm.pop().AsNumber()
	vm.push(value.BoolValue(f(a, b)))
	return nil
}

func (vm *VM) add() error {
	bv, av := vm.peek(0), vm.peek(1)
	switch {
	case av.IsNumber() && bv.IsNumber():
		b, a := vm.pop().AsNumber(), vm.pop().AsNumber()
		vm.push(value.NumberValue(a + b))
	case isString(av) && isString(bv):
		b, a := vm.pop(), vm.pop()
		concatenated := a.AsObj().(*object.String).Chars + b.AsObj().(*object.String).Chars
		vm.push(value.ObjValue(vm.Intern(concatenated)))
	default:
		return vm.runtimeError("Operands to '+' must be two strings or two numbers.")
	}
	return nil
}

func isString(v value.Value) bool {
	if !v.IsObj() {
		return false
	}
	_, ok := v.AsObj().(*object.String)
	return ok
}

// clockSeconds reports wall-clock seconds elapsed since the VM was created,
// backing the mandatory `clock` native (spec.md §6). It does not measure
// CPU time.
func (vm *VM) clockSeconds() float64 {
	return time.Since(vm.startTime).Seconds()
}

