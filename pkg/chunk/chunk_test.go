package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/lox/pkg/value"
)

func TestWriteKeepsLinesParallel(t *testing.T) {
	c := New()
	c.WriteOp(OpNil, 1)
	c.WriteOp(OpTrue, 1)
	c.WriteOp(OpPop, 2)

	require.Len(t, c.Code, 3)
	assert.Equal(t, []int{1, 1, 2}, c.Lines)
	assert.Equal(t, 1, c.Line(0))
	assert.Equal(t, 2, c.Line(2))
}

func TestLineOutOfRangeReturnsZero(t *testing.T) {
	c := New()
	assert.Equal(t, 0, c.Line(5))
	assert.Equal(t, 0, c.Line(-1))
}

func TestAddConstantReturnsIndex(t *testing.T) {
	c := New()
	i0 := c.AddConstant(value.NumberValue(1))
	i1 := c.AddConstant(value.NumberValue(2))
	assert.Equal(t, 0, i0)
	assert.Equal(t, 1, i1)
	assert.Equal(t, float64(2), c.Constants[i1].AsNumber())
}

func TestOpCodeStringKnownAndUnknown(t *testing.T) {
	assert.Equal(t, "OP_RETURN", OpReturn.String())
	assert.Equal(t, "OP_UNKNOWN", OpCode(255).String())
}

func TestDisassembleRendersConstantAndSimpleInstructions(t *testing.T) {
	c := New()
	idx := c.AddConstant(value.NumberValue(7))
	c.WriteOp(OpConstant, 1)
	c.Write(byte(idx), 1)
	c.WriteOp(OpReturn, 1)

	out := Disassemble(c, "test chunk")
	assert.Contains(t, out, "== test chunk ==")
	assert.Contains(t, out, "OP_CONSTANT")
	assert.Contains(t, out, "OP_RETURN")
}

func TestDisassembleJumpShowsTarget(t *testing.T) {
	c := New()
	c.WriteOp(OpJump, 1)
	c.Write(0, 1)
	c.Write(2, 1)
	c.WriteOp(OpNil, 1)

	out := Disassemble(c, "jumps")
	assert.Contains(t, out, "OP_JUMP")
	assert.Contains(t, out, "-> 5")
}
