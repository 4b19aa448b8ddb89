package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/lox/pkg/chunk"
	"github.com/kristofer/lox/pkg/object"
)

// fakeInterner is a standalone Interner so these tests don't need pkg/vm,
// mirroring how the VM's Intern behaves but without GC tracking.
type fakeInterner struct {
	seen map[string]*object.String
}

func newFakeInterner() *fakeInterner {
	return &fakeInterner{seen: map[string]*object.String{}}
}

func (f *fakeInterner) Intern(s string) *object.String {
	if existing, ok := f.seen[s]; ok {
		return existing
	}
	str := object.NewString(s)
	f.seen[s] = str
	return str
}

func TestCompileSimpleExpressionStatement(t *testing.T) {
	fn, err := Compile("1 + 2;", newFakeInterner())
	require.NoError(t, err)
	require.NotNil(t, fn)

	out := chunk.Disassemble(fn.Chunk, "test")
	assert.Contains(t, out, "OP_ADD")
	assert.Contains(t, out, "OP_POP")
	assert.Contains(t, out, "OP_RETURN")
}

func TestCompileGlobalVarDeclaration(t *testing.T) {
	fn, err := Compile(`var x = 10; x = 20;`, newFakeInterner())
	require.NoError(t, err)
	out := chunk.Disassemble(fn.Chunk, "test")
	assert.Contains(t, out, "OP_DEFINE_GLOBAL")
	assert.Contains(t, out, "OP_SET_GLOBAL")
}

func TestCompileFunctionEmitsClosure(t *testing.T) {
	fn, err := Compile(`fun add(a, b) { return a + b; } `, newFakeInterner())
	require.NoError(t, err)
	out := chunk.Disassemble(fn.Chunk, "test")
	assert.Contains(t, out, "OP_CLOSURE")
	assert.Contains(t, out, "OP_DEFINE_GLOBAL")
}

func TestCompileClassWithMethodAndInheritance(t *testing.T) {
	src := `
		class Animal {
			speak() { return "..."; }
		}
		class Dog < Animal {
			speak() { return super.speak(); }
		}
	`
	fn, err := Compile(src, newFakeInterner())
	require.NoError(t, err)
	out := chunk.Disassemble(fn.Chunk, "test")
	assert.Contains(t, out, "OP_CLASS")
	assert.Contains(t, out, "OP_METHOD")
	assert.Contains(t, out, "OP_INHERIT")
}

func TestCompileBreakInsideWhileLoop(t *testing.T) {
	fn, err := Compile(`while (true) { break; }`, newFakeInterner())
	require.NoError(t, err)
	out := chunk.Disassemble(fn.Chunk, "test")
	assert.Contains(t, out, "OP_JUMP")
	assert.Contains(t, out, "OP_LOOP")
}

func TestCompileBreakAtTopLevelPopsLocalsDeclaredSinceLoopEntry(t *testing.T) {
	// Top-level code shares the script's own chunk, so the cleanup ops
	// break emits are visible directly in fn.Chunk without needing to
	// reach into a nested function's constant.
	fn, err := Compile(`
		{
			var i = 0;
			while (true) {
				var doubled = 99;
				break;
			}
			var j = 5;
		}
	`, newFakeInterner())
	require.NoError(t, err)

	out := chunk.Disassemble(fn.Chunk, "test")
	// One OP_POP for `doubled` must come right before the break's OP_JUMP,
	// or the runtime stack still holds `doubled` when `j` is declared. The
	// trailing space skips OP_JUMP_IF_FALSE; the loop condition's own
	// OP_POP sits earlier, so the instruction just before the jump is the
	// one that counts.
	jumpIdx := strings.Index(out, "OP_JUMP ")
	require.NotEqual(t, -1, jumpIdx, "expected break's OP_JUMP")
	popIdx := strings.LastIndex(out[:jumpIdx], "OP_")
	require.NotEqual(t, -1, popIdx, "expected a cleanup OP_POP for `doubled`")
	assert.True(t, strings.HasPrefix(out[popIdx:], "OP_POP"), "cleanup pop for `doubled` must directly precede break's jump")
}

func TestCompileErrorBreakOutsideLoop(t *testing.T) {
	_, err := Compile(`break;`, newFakeInterner())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Can't use 'break' outside of a loop.")
}

func TestCompileErrorReturnAtTopLevel(t *testing.T) {
	_, err := Compile(`return 1;`, newFakeInterner())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Can't return from top-level code.")
}

func TestCompileErrorSelfInheritance(t *testing.T) {
	_, err := Compile(`class Oops < Oops {}`, newFakeInterner())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "A class can't inherit from itself.")
}

func TestCompileErrorReadLocalInOwnInitializer(t *testing.T) {
	_, err := Compile(`{ var a = a; }`, newFakeInterner())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Can't read local variable in its own initializer.")
}

func TestCompileErrorInvalidAssignmentTarget(t *testing.T) {
	_, err := Compile(`1 + 2 = 3;`, newFakeInterner())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid assignment target.")
}

func TestCompileReportsMultipleErrorsAfterSynchronizing(t *testing.T) {
	_, err := Compile(`var ; var ;`, newFakeInterner())
	require.Error(t, err)
	msg := err.Error()
	assert.Equal(t, 2, strings.Count(msg, "Expect variable name."))
}
