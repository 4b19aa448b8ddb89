// Package chunk implements the Chunk: a linear bytecode sequence, its
// parallel line-number map, and its constant pool. It is the compiler's
// only output and the VM's only input — there is no other intermediate
// representation between source text and executable bytecode.
//
// Grounded on the teacher's pkg/bytecode/bytecode.go (same "Design
// Philosophy" doc-comment convention, same Opcode byte enum with a String()
// method for disassembly), rewritten from smog's {Op, Operand} instruction
// struct into a true packed byte stream — spec.md §4.3 pins 1-byte opcodes
// with per-opcode operand widths (0, 1, or 2 bytes, plus CLOSURE's variable
// trailer), which an Instruction-per-slot array cannot represent.
package chunk

import "github.com/kristofer/lox/pkg/value"

// OpCode is a single bytecode instruction's operation.
type OpCode byte

// The opcode set, matching spec.md §4.3 exactly.
const (
	OpConstant OpCode = iota
	OpNil
	OpTrue
	OpFalse
	OpPop
	OpGetLocal
	OpSetLocal
	OpGetUpvalue
	OpSetUpvalue
	OpGetGlobal
	OpSetGlobal
	OpDefineGlobal
	OpGetProperty
	OpSetProperty
	OpGetSuper
	OpEqual
	OpGreater
	OpLess
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpNot
	OpNegate
	OpJump
	OpJumpIfFalse
	OpLoop
	OpCall
	OpInvoke
	OpInvokeSuper
	OpClosure
	OpCloseUpvalue
	OpClass
	OpMethod
	OpInherit
	OpReturn
)

var opNames = [...]string{
	OpConstant:     "OP_CONSTANT",
	OpNil:          "OP_NIL",
	OpTrue:         "OP_TRUE",
	OpFalse:        "OP_FALSE",
	OpPop:          "OP_POP",
	OpGetLocal:     "OP_GET_LOCAL",
	OpSetLocal:     "OP_SET_LOCAL",
	OpGetUpvalue:   "OP_GET_UPVALUE",
	OpSetUpvalue:   "OP_SET_UPVALUE",
	OpGetGlobal:    "OP_GET_GLOBAL",
	OpSetGlobal:    "OP_SET_GLOBAL",
	OpDefineGlobal: "OP_DEFINE_GLOBAL",
	OpGetProperty:  "OP_GET_PROPERTY",
	OpSetProperty:  "OP_SET_PROPERTY",
	OpGetSuper:     "OP_GET_SUPER",
	OpEqual:        "OP_EQUAL",
	OpGreater:      "OP_GREATER",
	OpLess:         "OP_LESS",
	OpAdd:          "OP_ADD",
	OpSubtract:     "OP_SUBTRACT",
	OpMultiply:     "OP_MULTIPLY",
	OpDivide:       "OP_DIVIDE",
	OpNot:          "OP_NOT",
	OpNegate:       "OP_NEGATE",
	OpJump:         "OP_JUMP",
	OpJumpIfFalse:  "OP_JUMP_IF_FALSE",
	OpLoop:         "OP_LOOP",
	OpCall:         "OP_CALL",
	OpInvoke:       "OP_INVOKE",
	OpInvokeSuper:  "OP_INVOKE_SUPER",
	OpClosure:      "OP_CLOSURE",
	OpCloseUpvalue: "OP_CLOSE_UPVALUE",
	OpClass:        "OP_CLASS",
	OpMethod:       "OP_METHOD",
	OpInherit:      "OP_INHERIT",
	OpReturn:       "OP_RETURN",
}

// String renders an opcode's mnemonic, for disassembly.
func (op OpCode) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return "OP_UNKNOWN"
}

// MaxConstants is the per-chunk constant-pool limit: constants are
// addressed by a 1-byte operand (spec.md §4.3, §9 "keep this limit").
const MaxConstants = 256

// Chunk is a compiled unit of bytecode: one per Function (including the
// top-level script).
type Chunk struct {
	Code      []byte
	Lines     []int // parallel to Code; one line number per byte
	Constants []value.Value
}

// New returns an empty Chunk.
func New() *Chunk {
	return &Chunk{}
}

// Write appends a raw byte to the chunk, recording the source line it came
// from. Every opcode and every operand byte goes through Write, so Lines
// stays parallel to Code byte-for-byte (spec.md §4.3 notes this per-byte
// encoding is simple but wasteful — "a stated TODO" in the source this was
// distilled from; kept as-is rather than run-length-encoded, since spec.md
// does not ask for the compaction and it would add a decode step to every
// line lookup for no behavioral difference).
func (c *Chunk) Write(b byte, line int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
}

// WriteOp appends an opcode byte.
func (c *Chunk) WriteOp(op OpCode, line int) {
	c.Write(byte(op), line)
}

// AddConstant appends val to the constant pool and returns its index.
// The append goes through Go's own allocator only; nothing here calls into
// the VM's collector, so callers need no push/pop around it.
func (c *Chunk) AddConstant(val value.Value) int {
	c.Constants = append(c.Constants, val)
	return len(c.Constants) - 1
}

// Line returns the source line recorded for the instruction at offset.
func (c *Chunk) Line(offset int) int {
	if offset < 0 || offset >= len(c.Lines) {
		return 0
	}
	return c.Lines[offset]
}
