package vm

import (
	"github.com/kristofer/lox/pkg/object"
	"github.com/kristofer/lox/pkg/table"
	"github.com/kristofer/lox/pkg/value"
)

// growFactor is the multiplier applied to bytesAllocated after a
// collection to compute the next collection threshold (spec.md §4.5,
// §9's "use 2.0 if starting from scratch" — see DESIGN.md).
const growFactor = 2.0

// collectGarbage runs one full stop-the-world tri-color mark-sweep pass:
// gray every root, blacken the worklist until it's empty, prune the
// intern table of unmarked (weakly-held) strings, then sweep the object
// list. Nothing else runs concurrently with this — spec.md §5 guarantees
// the mutator never touches the object graph mid-collection.
func (vm *VM) collectGarbage() {
	vm.markRoots()
	vm.traceReferences()
	vm.strings.RemoveWhite()
	vm.sweep()

	vm.nextGC = int(float64(vm.bytesAllocated) * growFactor)
}

func (vm *VM) markValue(v value.Value) {
	if v.IsObj() {
		vm.markObject(v.AsObj())
	}
}

func (vm *VM) markObject(o value.Object) {
	if o == nil || o.IsMarked() {
		return
	}
	o.SetMarked(true)
	vm.grayStack = append(vm.grayStack, o)
}

// markRoots grays every root named in spec.md §4.5: the value stack, every
// active frame's closure, the open-upvalue list, the globals table (keys
// and values), and the init sentinel. The "compiling Function chain"
// root has no analogue here — see the Interpret/adopt doc comment: nothing
// is ever reachable-but-untracked at a point where collectGarbage can run.
func (vm *VM) markRoots() {
	for i := 0; i < vm.stackTop; i++ {
		vm.markValue(vm.stack[i])
	}
	for i := 0; i < vm.frameCount; i++ {
		vm.markObject(vm.frames[i].closure)
	}
	for u := vm.openUpvalues; u != nil; u = u.NextOpen {
		vm.markObject(u)
	}
	vm.globals.Each(func(key table.Key, v value.Value) {
		vm.markObject(key)
		vm.markValue(v)
	})
	vm.markObject(vm.initString)
}

// traceReferences drains the gray worklist, blackening each object by
// graying everything it references, per the field table in spec.md §4.5.
func (vm *VM) traceReferences() {
	for len(vm.grayStack) > 0 {
		o := vm.grayStack[len(vm.grayStack)-1]
		vm.grayStack = vm.grayStack[:len(vm.grayStack)-1]
		vm.blacken(o)
	}
}

func (vm *VM) blacken(o value.Object) {
	switch obj := o.(type) {
	case *object.BoundMethod:
		vm.markValue(obj.Receiver)
		vm.markObject(obj.Method)
	case *object.Class:
		vm.markObject(obj.Name)
		obj.Methods.Each(func(key table.Key, v value.Value) {
			vm.markObject(key)
			vm.markValue(v)
		})
	case *object.Closure:
		vm.markObject(obj.Function)
		for _, uv := range obj.Upvalues {
			vm.markObject(uv)
		}
	case *object.Function:
		vm.markObject(obj.Name)
		for _, c := range obj.Chunk.Constants {
			vm.markValue(c)
		}
	case *object.Instance:
		vm.markObject(obj.Class)
		obj.Fields.Each(func(key table.Key, v value.Value) {
			vm.markObject(key)
			vm.markValue(v)
		})
	case *object.Upvalue:
		vm.markValue(obj.Closed)
	case *object.String, *object.Native:
		// no outgoing references
	}
}

// sweep walks the all-objects list, clearing the mark on every object the
// mark phase reached and unlinking every object it didn't. Unlinked
// objects become ordinary Go garbage once nothing else in this process
// still references them. Each freed object's tracked size is given back to
// bytesAllocated, mirroring reallocate(old_size, 0)'s bookkeeping in
// spec.md §4.5 — otherwise nextGC would only ever grow, and collections
// would become strictly less frequent as a program runs.
func (vm *VM) sweep() {
	var previous value.Object
	current := vm.objects

	for current != nil {
		linked := current.(object.Linked)
		if current.IsMarked() {
			current.SetMarked(false)
			previous = current
			current = linked.Next()
			continue
		}

		vm.bytesAllocated -= linked.Size()
		current = linked.Next()
		if previous != nil {
			previous.(object.Linked).SetNext(current)
		} else {
			vm.objects = current
		}
	}
}
