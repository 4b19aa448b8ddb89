package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeObj struct{ marked bool }

func (f *fakeObj) ObjType() string  { return "fake" }
func (f *fakeObj) IsMarked() bool   { return f.marked }
func (f *fakeObj) SetMarked(m bool) { f.marked = m }
func (f *fakeObj) String() string   { return "<fake>" }

func TestValueTags(t *testing.T) {
	assert.True(t, NilValue.IsNil())
	assert.True(t, BoolValue(true).IsBool())
	assert.True(t, NumberValue(1).IsNumber())
	assert.True(t, ObjValue(&fakeObj{}).IsObj())
}

func TestIsFalsey(t *testing.T) {
	assert.True(t, NilValue.IsFalsey())
	assert.True(t, BoolValue(false).IsFalsey())
	assert.False(t, BoolValue(true).IsFalsey())
	assert.False(t, NumberValue(0).IsFalsey())
	assert.False(t, ObjValue(&fakeObj{}).IsFalsey())
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(NilValue, NilValue))
	assert.True(t, Equal(NumberValue(3), NumberValue(3)))
	assert.False(t, Equal(NumberValue(3), NumberValue(4)))
	assert.False(t, Equal(NumberValue(3), BoolValue(true)))

	o := &fakeObj{}
	assert.True(t, Equal(ObjValue(o), ObjValue(o)))
	assert.False(t, Equal(ObjValue(o), ObjValue(&fakeObj{})))
}

func TestStringFormatting(t *testing.T) {
	assert.Equal(t, "nil", NilValue.String())
	assert.Equal(t, "true", BoolValue(true).String())
	assert.Equal(t, "false", BoolValue(false).String())
	assert.Equal(t, "3", NumberValue(3).String())
	assert.Equal(t, "3.5", NumberValue(3.5).String())
}
