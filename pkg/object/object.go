// Package object implements every heap-allocated Lox value: strings,
// functions, closures, upvalues, classes, instances, bound methods, and
// natives. Each variant carries a common GC header (a mark bit and an
// intrusive Next pointer threading every live object into the VM's
// allocation list) and implements value.Object so it can be wrapped in a
// value.Value; object.String additionally implements table.Key so it can
// address the intern table, the globals table, and every class's method
// and instance's field table.
//
// Grounded on the teacher's per-type struct shape in pkg/vm/vm.go (a plain
// Go struct per heap kind, no shared base class — Go has no inheritance, so
// the teacher already expresses "common header" by convention rather than
// embedding); this package makes that convention explicit with an embedded
// header struct, since spec.md §3 requires the mark bit and Next pointer on
// every object for the garbage collector.
package object

import (
	"fmt"
	"hash/fnv"

	"github.com/kristofer/lox/pkg/chunk"
	"github.com/kristofer/lox/pkg/table"
	"github.com/kristofer/lox/pkg/value"
)

// header is embedded in every heap object; it carries the fields the
// garbage collector needs regardless of which variant the object is.
type header struct {
	marked bool
	next   value.Object // intrusive link in the VM's all-objects list
	size   int          // bytes charged against bytesAllocated when tracked
}

func (h *header) IsMarked() bool   { return h.marked }
func (h *header) SetMarked(m bool) { h.marked = m }

// Next returns the next object in the VM's allocation list.
func (h *header) Next() value.Object { return h.next }

// SetNext links the next object in the VM's allocation list.
func (h *header) SetNext(o value.Object) { h.next = o }

// Size reports the byte count this object was tracked with, so sweep can
// give it back to bytesAllocated when the object is collected.
func (h *header) Size() int { return h.size }

// SetSize records the byte count charged for this object; called once, by
// the VM's track, at allocation time.
func (h *header) SetSize(n int) { h.size = n }

// Linked is implemented by every object variant via the embedded header,
// giving the GC's sweep phase a uniform way to walk and unlink objects.
type Linked interface {
	Next() value.Object
	SetNext(value.Object)
	Size() int
	SetSize(int)
}

// String is an interned, immutable byte sequence. Two String objects with
// the same content are always the same object (see pkg/table's intern
// table), so == on *String implements Lox string equality.
type String struct {
	header
	Chars string
	hash  uint32
}

// NewString builds a String and precomputes its FNV-1a hash, matching the
// exact hash spec.md §3 requires so that independently-computed hashes for
// equal content always agree.
func NewString(s string) *String {
	return &String{Chars: s, hash: fnvHash(s)}
}

// HashString computes the FNV-1a hash spec.md §3 requires for string
// content, used both to build a new String and to probe the intern table
// for an existing one with the same bytes.
func HashString(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

func fnvHash(s string) uint32 { return HashString(s) }

func (s *String) ObjType() string  { return "string" }
func (s *String) String() string   { return s.Chars }
func (s *String) Hash() uint32     { return s.hash }
func (s *String) Content() string  { return s.Chars }

var _ value.Object = (*String)(nil)
var _ table.Key = (*String)(nil)

// Intern returns the single String instance for s within strings,
// allocating and registering one if none exists yet. It does no garbage
// collector bookkeeping: the VM interns through its own Intern method,
// which does the same lookup and also tracks each new string, and the
// compiler reaches that method through compiler.Interner.
func Intern(strings *table.Table, s string) *String {
	hash := fnvHash(s)
	if existing := strings.FindString(s, hash); existing != nil {
		return existing.(*String)
	}
	str := &String{Chars: s, hash: hash}
	strings.Set(str, value.NilValue)
	return str
}

// Function is a compiled function body: its arity, its chunk of bytecode,
// and how many upvalues its closures must allocate. The top-level script
// is itself a Function with Arity 0 and a nil Name.
type Function struct {
	header
	Name         *String
	Arity        int
	UpvalueCnt   int
	Chunk        *chunk.Chunk
}

// NewFunction returns an empty Function ready for the compiler to emit
// into via Chunk.
func NewFunction() *Function {
	return &Function{Chunk: chunk.New()}
}

func (f *Function) ObjType() string { return "function" }

// UpvalueCount reports how many upvalues closures over f must allocate;
// exported under this name so pkg/chunk's disassembler can introspect it
// through a small structural interface without importing pkg/object.
func (f *Function) UpvalueCount() int { return f.UpvalueCnt }

func (f *Function) String() string {
	if f.Name == nil {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name.Chars)
}

var _ value.Object = (*Function)(nil)

// Upvalue is a reference cell shared between a closure and the enclosing
// call frame whose local it closes over. While open, Location points at
// the live stack slot; Close copies the value out of the stack into
// Closed and repoints Location at it, so the cell keeps working after the
// frame that owned the slot returns.
type Upvalue struct {
	header
	Location *value.Value
	Slot     int // the stack index Location points at, while open
	Closed   value.Value
	IsClosed bool
	NextOpen *Upvalue // link in the VM's sorted open-upvalue list; distinct
	// from the embedded header's Next/SetNext, which link the GC's
	// all-objects sweep list — an Upvalue belongs to both lists at once.
}

// NewUpvalue returns an Upvalue open over stack index slot, whose current
// value lives at location. Slot is kept alongside the raw pointer because
// Go pointers support equality but not ordering — the open-upvalue list's
// sort-by-stack-address invariant (spec.md §3) needs an orderable key, and
// the int index serves that role without resorting to unsafe.Pointer
// arithmetic over the stack array.
func NewUpvalue(location *value.Value, slot int) *Upvalue {
	return &Upvalue{Location: location, Slot: slot}
}

func (u *Upvalue) ObjType() string { return "upvalue" }

// Close copies the referenced value into the upvalue itself and severs the
// link to the stack slot, called when the owning frame returns.
func (u *Upvalue) Close() {
	u.Closed = *u.Location
	u.Location = &u.Closed
	u.IsClosed = true
}

func (u *Upvalue) String() string { return "upvalue" } // never user-observable

var _ value.Object = (*Upvalue)(nil)

// Closure pairs a compiled Function with the live Upvalue cells it closes
// over. Every callable value the VM actually invokes is a Closure — even a
// function with no free variables is wrapped in one with zero upvalues, so
// the call protocol has a single shape.
type Closure struct {
	header
	Function *Function
	Upvalues []*Upvalue
}

// NewClosure wraps fn, allocating (but not yet populating) its upvalue
// slots.
func NewClosure(fn *Function) *Closure {
	return &Closure{Function: fn, Upvalues: make([]*Upvalue, fn.UpvalueCnt)}
}

func (c *Closure) ObjType() string { return "closure" }
func (c *Closure) String() string  { return c.Function.String() }

var _ value.Object = (*Closure)(nil)

// Class is a runtime class object: a name and its own method table. A
// subclass's Methods table already contains every inherited method — OP_INHERIT
// copies the superclass's table into the subclass's at class-declaration
// time — so method lookup never needs to walk a superclass chain at call
// time.
type Class struct {
	header
	Name    *String
	Methods *table.Table
}

// NewClass returns an empty class named name.
func NewClass(name *String) *Class {
	return &Class{Name: name, Methods: table.New()}
}

func (c *Class) ObjType() string { return "class" }
func (c *Class) String() string  { return c.Name.Chars }

var _ value.Object = (*Class)(nil)

// Instance is a live object of some Class, with its own field table.
type Instance struct {
	header
	Class  *Class
	Fields *table.Table
}

// NewInstance returns a fresh instance of class with no fields set.
func NewInstance(class *Class) *Instance {
	return &Instance{Class: class, Fields: table.New()}
}

func (i *Instance) ObjType() string { return "instance" }
func (i *Instance) String() string  { return fmt.Sprintf("%s instance", i.Class.Name.Chars) }

var _ value.Object = (*Instance)(nil)

// BoundMethod pairs a receiver with one of its class's closures, produced
// by property access on a method name (e.g. `instance.method`) and
// consumed by a later call.
type BoundMethod struct {
	header
	Receiver value.Value
	Method   *Closure
}

// NewBoundMethod binds method to receiver.
func NewBoundMethod(receiver value.Value, method *Closure) *BoundMethod {
	return &BoundMethod{Receiver: receiver, Method: method}
}

func (b *BoundMethod) ObjType() string { return "bound method" }
func (b *BoundMethod) String() string  { return b.Method.String() }

var _ value.Object = (*BoundMethod)(nil)

// NativeFn is a Go function exposed to Lox as a callable value. It
// receives its arguments (receiver excluded) and returns a result or an
// error that becomes a Lox runtime error.
type NativeFn func(args []value.Value) (value.Value, error)

// Native wraps a NativeFn so it can be stored in a value.Value and called
// through the same protocol as a Closure.
type Native struct {
	header
	Name string
	Fn   NativeFn
}

// NewNative wraps fn under name. String() does not include the name: every
// native renders as "<native fn>".
func NewNative(name string, fn NativeFn) *Native {
	return &Native{Name: name, Fn: fn}
}

func (n *Native) ObjType() string { return "native" }
func (n *Native) String() string  { return "<native fn>" }

var _ value.Object = (*Native)(nil)

// Every variant threads into the VM's all-objects sweep list via the
// embedded header, regardless of what other linked lists it also belongs
// to (Upvalue additionally belongs to the open-upvalue list via NextOpen).
var (
	_ Linked = (*String)(nil)
	_ Linked = (*Function)(nil)
	_ Linked = (*Upvalue)(nil)
	_ Linked = (*Closure)(nil)
	_ Linked = (*Class)(nil)
	_ Linked = (*Instance)(nil)
	_ Linked = (*BoundMethod)(nil)
	_ Linked = (*Native)(nil)
)
