package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayer_GetPut(t *testing.T) {
	l := NewLayer()

	_, ok := l.Get([]byte("a"))
	assert.False(t, ok)

	l.Put([]byte("a"), []byte{1})
	v, ok := l.Get([]byte("a"))
	require.True(t, ok)
	assert.Equal(t, []byte{1}, v)

	// Returned values are copies
	v[0] = 9
	v, _ = l.Get([]byte("a"))
	assert.Equal(t, []byte{1}, v)
}

func TestLayer_ChildIsolation(t *testing.T) {
	parent := NewLayer()
	parent.Put([]byte("a"), []byte{1})
	parent.Put([]byte("b"), []byte{2})

	child := parent.Child()
	child.Put([]byte("a"), []byte{3})
	child.Delete([]byte("b"))

	v, ok := child.Get([]byte("a"))
	require.True(t, ok)
	assert.Equal(t, []byte{3}, v)
	_, ok = child.Get([]byte("b"))
	assert.False(t, ok)

	v, ok = parent.Get([]byte("a"))
	require.True(t, ok)
	assert.Equal(t, []byte{1}, v)
	_, ok = parent.Get([]byte("b"))
	assert.True(t, ok)
}

func TestLayer_CopyAndRestore(t *testing.T) {
	base := NewLayer()
	base.Put([]byte("a"), []byte{1})
	head := base.Child()
	head.Put([]byte("b"), []byte{2})

	saved := head.Copy()
	head.Put([]byte("b"), []byte{5})
	head.Put([]byte("c"), []byte{6})

	head.Restore(saved)

	v, ok := head.Get([]byte("b"))
	require.True(t, ok)
	assert.Equal(t, []byte{2}, v)
	_, ok = head.Get([]byte("c"))
	assert.False(t, ok)
	_, ok = head.Get([]byte("a"))
	assert.True(t, ok)
}

func TestLayer_DeepChainFlattens(t *testing.T) {
	l := NewLayer()
	l.Put([]byte("k0"), []byte{0})
	for i := 1; i < 3*flattenDepth; i++ {
		l = l.Child()
		l.Put([]byte{'n', byte(i)}, []byte{byte(i)})
	}

	assert.Less(t, l.depth, flattenDepth)
	v, ok := l.Get([]byte("k0"))
	require.True(t, ok)
	assert.Equal(t, []byte{0}, v)
	assert.Equal(t, 3*flattenDepth, l.Len())
}

func TestLayer_Iterate(t *testing.T) {
	l := NewLayer()
	trieID := []byte{0xaa, 0xbb}
	l.Put(ChildKey(trieID, []byte{2}), []byte{2})
	l.Put(ChildKey(trieID, []byte{1}), []byte{1})
	l.Put(ChildKey([]byte{0xcc}, []byte{1}), []byte{9})

	var values []byte
	l.Iterate(ChildPrefix(trieID), func(_, value []byte) bool {
		values = append(values, value...)
		return true
	})
	assert.Equal(t, []byte{1, 2}, values)
}

func TestLayer_Root(t *testing.T) {
	a := NewLayer()
	a.Put([]byte("x"), []byte{1})
	a.Put([]byte("y"), []byte{2})

	b := NewLayer()
	b.Put([]byte("y"), []byte{2})
	b.Put([]byte("x"), []byte{1})

	assert.Equal(t, a.Root(), b.Root())

	c := b.Child()
	c.Put([]byte("x"), []byte{3})
	assert.NotEqual(t, a.Root(), c.Root())

	c.Put([]byte("x"), []byte{1})
	assert.Equal(t, a.Root(), c.Root())
}
