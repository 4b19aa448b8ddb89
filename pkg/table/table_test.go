package table

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/lox/pkg/value"
)

// testKey is a minimal Key implementation so this package's tests don't
// depend on pkg/object (which itself depends on this package).
type testKey struct {
	content string
	hash    uint32
	marked  bool
}

func newTestKey(s string) *testKey {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return &testKey{content: s, hash: h}
}

func (k *testKey) ObjType() string  { return "string" }
func (k *testKey) IsMarked() bool   { return k.marked }
func (k *testKey) SetMarked(m bool) { k.marked = m }
func (k *testKey) String() string   { return k.content }
func (k *testKey) Hash() uint32     { return k.hash }
func (k *testKey) Content() string  { return k.content }

func TestSetGetRoundTrip(t *testing.T) {
	tab := New()
	k := newTestKey("hello")
	isNew := tab.Set(k, value.NumberValue(42))
	assert.True(t, isNew)

	v, ok := tab.Get(k)
	require.True(t, ok)
	assert.Equal(t, float64(42), v.AsNumber())
}

func TestSetExistingKeyReturnsFalse(t *testing.T) {
	tab := New()
	k := newTestKey("x")
	tab.Set(k, value.NumberValue(1))
	isNew := tab.Set(k, value.NumberValue(2))
	assert.False(t, isNew)

	v, ok := tab.Get(k)
	require.True(t, ok)
	assert.Equal(t, float64(2), v.AsNumber())
}

func TestDeleteLeavesTombstoneProbeableChain(t *testing.T) {
	tab := New()
	a, b := newTestKey("a"), newTestKey("b")
	tab.Set(a, value.NumberValue(1))
	tab.Set(b, value.NumberValue(2))

	require.True(t, tab.Delete(a))
	_, ok := tab.Get(a)
	assert.False(t, ok)

	// b must still be reachable even though probing may have passed
	// through a's now-tombstoned slot.
	v, ok := tab.Get(b)
	require.True(t, ok)
	assert.Equal(t, float64(2), v.AsNumber())
}

func TestGrowPreservesAllEntries(t *testing.T) {
	tab := New()
	keys := make([]*testKey, 0, 100)
	for i := 0; i < 100; i++ {
		k := newTestKey(fmt.Sprintf("key-%d", i))
		keys = append(keys, k)
		tab.Set(k, value.NumberValue(float64(i)))
	}
	for i, k := range keys {
		v, ok := tab.Get(k)
		require.True(t, ok)
		assert.Equal(t, float64(i), v.AsNumber())
	}
}

func TestFindStringByContent(t *testing.T) {
	tab := New()
	k := newTestKey("shared")
	tab.Set(k, value.NilValue)

	found := tab.FindString("shared", k.Hash())
	require.NotNil(t, found)
	assert.Equal(t, "shared", found.Content())

	assert.Nil(t, tab.FindString("missing", newTestKey("missing").Hash()))
}

func TestRemoveWhiteDropsUnmarked(t *testing.T) {
	tab := New()
	live, dead := newTestKey("live"), newTestKey("dead")
	live.marked = true
	tab.Set(live, value.NilValue)
	tab.Set(dead, value.NilValue)

	tab.RemoveWhite()

	_, ok := tab.Get(live)
	assert.True(t, ok)
	_, ok = tab.Get(dead)
	assert.False(t, ok)
}

func TestEachVisitsLiveEntriesOnly(t *testing.T) {
	tab := New()
	a, b := newTestKey("a"), newTestKey("b")
	tab.Set(a, value.NumberValue(1))
	tab.Set(b, value.NumberValue(2))
	tab.Delete(a)

	seen := map[string]bool{}
	tab.Each(func(key Key, v value.Value) {
		seen[key.Content()] = true
	})
	assert.False(t, seen["a"])
	assert.True(t, seen["b"])
}
