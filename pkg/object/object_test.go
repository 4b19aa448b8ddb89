package object

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/lox/pkg/table"
	"github.com/kristofer/lox/pkg/value"
)

func TestNewStringHashIsContentAddressed(t *testing.T) {
	a := NewString("hello")
	b := NewString("hello")
	assert.Equal(t, a.Hash(), b.Hash())
	assert.Equal(t, HashString("hello"), a.Hash())
}

func TestInternDeduplicatesByContent(t *testing.T) {
	tab := table.New()
	a := Intern(tab, "hi")
	b := Intern(tab, "hi")
	assert.Same(t, a, b)

	c := Intern(tab, "bye")
	assert.NotSame(t, a, c)
}

func TestFunctionStringRendering(t *testing.T) {
	script := NewFunction()
	assert.Equal(t, "<script>", script.String())

	named := NewFunction()
	named.Name = NewString("add")
	assert.Equal(t, "<fn add>", named.String())
}

func TestUpvalueCloseCopiesValueAndSeversStackLink(t *testing.T) {
	slot := value.NumberValue(10)
	uv := NewUpvalue(&slot, 3)
	assert.Equal(t, 3, uv.Slot)
	assert.False(t, uv.IsClosed)

	uv.Close()
	assert.True(t, uv.IsClosed)
	assert.Equal(t, float64(10), uv.Closed.AsNumber())

	slot = value.NumberValue(999)
	assert.Equal(t, float64(10), uv.Closed.AsNumber(), "closing must decouple from the stack slot")
}

func TestClosureAllocatesUpvalueSlots(t *testing.T) {
	fn := NewFunction()
	fn.UpvalueCnt = 2
	c := NewClosure(fn)
	assert.Len(t, c.Upvalues, 2)
}

func TestInstanceStringRendering(t *testing.T) {
	class := NewClass(NewString("Bagel"))
	inst := NewInstance(class)
	assert.Equal(t, "Bagel instance", inst.String())
}

func TestNativeAndBoundMethodRendering(t *testing.T) {
	native := NewNative("clock", func(args []value.Value) (value.Value, error) {
		return value.NilValue, nil
	})
	assert.Equal(t, "<native fn>", native.String())

	fn := NewFunction()
	fn.Name = NewString("greet")
	closure := NewClosure(fn)
	bound := NewBoundMethod(value.NilValue, closure)
	assert.Equal(t, "<fn greet>", bound.String())
}

func TestHeaderMarkBitAndLinking(t *testing.T) {
	s := NewString("x")
	assert.False(t, s.IsMarked())
	s.SetMarked(true)
	assert.True(t, s.IsMarked())

	other := NewString("y")
	s.SetNext(other)
	assert.Equal(t, value.Object(other), s.Next())

	s.SetSize(48)
	assert.Equal(t, 48, s.Size())
}
