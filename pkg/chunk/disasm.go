package chunk

import (
	"fmt"
	"strings"
)

// Disassemble renders every instruction in c as human-readable text, under
// a heading, the way the teacher's pkg/bytecode/format.go disassembleFile
// renders a decoded .sg file — but text-only: spec.md §1 excludes a
// persisted bytecode format, so there is no binary counterpart to decode
// from, only a Chunk already resident in memory.
func Disassemble(c *Chunk, name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", name)
	for offset := 0; offset < len(c.Code); {
		offset = disassembleInstruction(&b, c, offset)
	}
	return b.String()
}

func disassembleInstruction(b *strings.Builder, c *Chunk, offset int) int {
	fmt.Fprintf(b, "%04d ", offset)
	if offset > 0 && c.Line(offset) == c.Line(offset-1) {
		fmt.Fprint(b, "   | ")
	} else {
		fmt.Fprintf(b, "%4d ", c.Line(offset))
	}

	op := OpCode(c.Code[offset])
	switch op {
	case OpConstant, OpGetGlobal, OpSetGlobal, OpDefineGlobal, OpGetProperty,
		OpSetProperty, OpGetSuper, OpClass, OpMethod:
		return constantInstruction(b, op, c, offset)
	case OpGetLocal, OpSetLocal, OpGetUpvalue, OpSetUpvalue, OpCall:
		return byteInstruction(b, op, c, offset)
	case OpInvoke, OpInvokeSuper:
		return invokeInstruction(b, op, c, offset)
	case OpJump, OpJumpIfFalse:
		return jumpInstruction(b, op, 1, c, offset)
	case OpLoop:
		return jumpInstruction(b, op, -1, c, offset)
	case OpClosure:
		return closureInstruction(b, c, offset)
	default:
		fmt.Fprintf(b, "%s\n", op)
		return offset + 1
	}
}

func constantInstruction(b *strings.Builder, op OpCode, c *Chunk, offset int) int {
	idx := c.Code[offset+1]
	fmt.Fprintf(b, "%-16s %4d '%s'\n", op, idx, c.Constants[idx].String())
	return offset + 2
}

func byteInstruction(b *strings.Builder, op OpCode, c *Chunk, offset int) int {
	slot := c.Code[offset+1]
	fmt.Fprintf(b, "%-16s %4d\n", op, slot)
	return offset + 2
}

func invokeInstruction(b *strings.Builder, op OpCode, c *Chunk, offset int) int {
	idx := c.Code[offset+1]
	argCount := c.Code[offset+2]
	fmt.Fprintf(b, "%-16s (%d args) %4d '%s'\n", op, argCount, idx, c.Constants[idx].String())
	return offset + 3
}

func jumpInstruction(b *strings.Builder, op OpCode, sign int, c *Chunk, offset int) int {
	jump := int(c.Code[offset+1])<<8 | int(c.Code[offset+2])
	target := offset + 3 + sign*jump
	fmt.Fprintf(b, "%-16s %4d -> %d\n", op, offset, target)
	return offset + 3
}

func closureInstruction(b *strings.Builder, c *Chunk, offset int) int {
	idx := c.Code[offset+1]
	fmt.Fprintf(b, "%-16s %4d '%s'\n", OpClosure, idx, c.Constants[idx].String())
	offset += 2

	fn, ok := c.Constants[idx].AsObj().(interface{ UpvalueCount() int })
	if !ok {
		return offset
	}
	for i := 0; i < fn.UpvalueCount(); i++ {
		isLocal := c.Code[offset]
		index := c.Code[offset+1]
		kind := "upvalue"
		if isLocal != 0 {
			kind = "local"
		}
		fmt.Fprintf(b, "%04d      |                     %s %d\n", offset, kind, index)
		offset += 2
	}
	return offset
}
