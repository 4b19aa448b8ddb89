package vm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, source string) (stdout string, result InterpretResult) {
	t.Helper()
	var out, errBuf bytes.Buffer
	machine := New(&out, &errBuf)
	result = machine.Interpret(source)
	if result != InterpretOK {
		t.Logf("stderr: %s", errBuf.String())
	}
	return out.String(), result
}

func TestPrintAndArithmetic(t *testing.T) {
	out, result := run(t, `print(1 + 2 * 3);`)
	require.Equal(t, InterpretOK, result)
	assert.Equal(t, "7", out)
}

func TestStringConcatenationInterns(t *testing.T) {
	out, result := run(t, `print("foo" + "bar");`)
	require.Equal(t, InterpretOK, result)
	assert.Equal(t, "foobar", out)
}

func TestGlobalVariables(t *testing.T) {
	out, result := run(t, `
		var x = 10;
		x = x + 5;
		print(x);
	`)
	require.Equal(t, InterpretOK, result)
	assert.Equal(t, "15", out)
}

func TestClosureCapturesAndMutatesUpvalue(t *testing.T) {
	out, result := run(t, `
		fun makeCounter() {
			var count = 0;
			fun increment() {
				count = count + 1;
				return count;
			}
			return increment;
		}
		var counter = makeCounter();
		print(counter());
		print(counter());
		print(counter());
	`)
	require.Equal(t, InterpretOK, result)
	assert.Equal(t, "123", out)
}

func TestUpvalueSurvivesEnclosingReturn(t *testing.T) {
	out, result := run(t, `
		fun outer() {
			var x = "outside";
			fun inner() {
				print(x);
			}
			return inner;
		}
		var closure = outer();
		closure();
	`)
	require.Equal(t, InterpretOK, result)
	assert.Equal(t, "outside", out)
}

func TestClassInstantiationAndMethods(t *testing.T) {
	out, result := run(t, `
		class Greeter {
			init(name) {
				this.name = name;
			}
			greet() {
				print("Hello, " + this.name);
			}
		}
		var g = Greeter("World");
		g.greet();
	`)
	require.Equal(t, InterpretOK, result)
	assert.Equal(t, "Hello, World", out)
}

func TestInheritanceAndSuperCall(t *testing.T) {
	out, result := run(t, `
		class Animal {
			speak() {
				print("...");
			}
		}
		class Dog < Animal {
			speak() {
				super.speak();
				print("Woof");
			}
		}
		Dog().speak();
	`)
	require.Equal(t, InterpretOK, result)
	assert.Equal(t, "...Woof", out)
}

func TestInitializerReturnsInstanceImplicitly(t *testing.T) {
	out, result := run(t, `
		class Box {
			init(v) { this.v = v; }
		}
		var b = Box(42);
		print(b.v);
	`)
	require.Equal(t, InterpretOK, result)
	assert.Equal(t, "42", out)
}

func TestFibonacci(t *testing.T) {
	out, result := run(t, `
		fun fib(n) {
			if (n < 2) return n;
			return fib(n - 1) + fib(n - 2);
		}
		print(fib(10));
	`)
	require.Equal(t, InterpretOK, result)
	assert.Equal(t, "55", out)
}

func TestStringEqualityViaInterning(t *testing.T) {
	out, result := run(t, `
		var a = "foo" + "bar";
		var b = "foobar";
		print(a == b);
	`)
	require.Equal(t, InterpretOK, result)
	assert.Equal(t, "true", out)
}

func TestRuntimeErrorAddingNumberAndString(t *testing.T) {
	_, result := run(t, `print(1 + "a");`)
	assert.Equal(t, InterpretRuntimeError, result)
}

func TestCompileErrorSelfInheritingClass(t *testing.T) {
	_, result := run(t, `class X < X {}`)
	assert.Equal(t, InterpretCompileError, result)
}

func TestCompileErrorLocalSelfRead(t *testing.T) {
	_, result := run(t, `{ var a = a; }`)
	assert.Equal(t, InterpretCompileError, result)
}

func TestStackOverflowAtCallDepth(t *testing.T) {
	_, result := run(t, `
		fun recurse() { return recurse(); }
		recurse();
	`)
	assert.Equal(t, InterpretRuntimeError, result)
}

func TestNativeLenAndType(t *testing.T) {
	out, result := run(t, `
		print(len("hello"));
		print(type(1));
		print(type("s"));
		print(type(nil));
	`)
	require.Equal(t, InterpretOK, result)
	assert.Equal(t, "5numberstringnil", out)
}

func TestNativeSubstr(t *testing.T) {
	out, result := run(t, `print(substr("hello world", 6, 5));`)
	require.Equal(t, InterpretOK, result)
	assert.Equal(t, "world", out)
}

func TestBreakCleansUpLocalsDeclaredSinceLoopEntry(t *testing.T) {
	out, result := run(t, `
		fun f() {
			var i = 0;
			while (true) {
				var doubled = 99;
				break;
			}
			var j = 5;
			print(j);
		}
		f();
	`)
	require.Equal(t, InterpretOK, result)
	assert.Equal(t, "5", out)
}

func TestNativeClockReturnsNumber(t *testing.T) {
	out, result := run(t, `print(type(clock()));`)
	require.Equal(t, InterpretOK, result)
	assert.Equal(t, "number", out)
}
