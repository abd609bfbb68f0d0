// Package state provides layered key/value storage for chain state.
package state

import (
	"bytes"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/trie"
)

// flattenDepth is the layer depth after which Child starts from a flattened base.
const flattenDepth = 64

// childStoragePrefix is the well-known prefix of child trie entries.
var childStoragePrefix = []byte(":child_storage:default:")

// Reader provides read-only state access.
type Reader interface {
	Get(key []byte) ([]byte, bool)
}

// Writer provides state modification.
type Writer interface {
	Put(key, value []byte)
	Delete(key []byte)
}

// Store combines read and write operations.
type Store interface {
	Reader
	Writer
}

// Layer is a copy-on-write diff over a parent layer. Historical layers are
// never written once a child has been derived from them.
type Layer struct {
	parent *Layer
	dirty  map[string][]byte // nil value marks a deletion
	depth  int
	mu     sync.RWMutex
}

// NewLayer creates an empty base layer.
func NewLayer() *Layer {
	return &Layer{dirty: make(map[string][]byte)}
}

// Get returns the value for key, walking up the parent chain.
func (l *Layer) Get(key []byte) ([]byte, bool) {
	for cur := l; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		value, ok := cur.dirty[string(key)]
		cur.mu.RUnlock()
		if ok {
			if value == nil {
				return nil, false
			}
			return common.CopyBytes(value), true
		}
	}
	return nil, false
}

// Put writes a value into this layer.
func (l *Layer) Put(key, value []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if value == nil {
		value = []byte{}
	}
	l.dirty[string(key)] = common.CopyBytes(value)
}

// Delete marks key as removed in this layer.
func (l *Layer) Delete(key []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.dirty[string(key)] = nil
}

// Child returns a new writable layer on top of l.
func (l *Layer) Child() *Layer {
	if l.depth+1 >= flattenDepth {
		base := &Layer{dirty: l.Flatten()}
		return &Layer{parent: base, dirty: make(map[string][]byte), depth: 1}
	}
	return &Layer{parent: l, dirty: make(map[string][]byte), depth: l.depth + 1}
}

// Copy returns a layer with a private copy of l's own writes sharing l's parent.
func (l *Layer) Copy() *Layer {
	l.mu.RLock()
	defer l.mu.RUnlock()

	copied := &Layer{
		parent: l.parent,
		dirty:  make(map[string][]byte, len(l.dirty)),
		depth:  l.depth,
	}
	for k, v := range l.dirty {
		copied.dirty[k] = common.CopyBytes(v)
	}
	return copied
}

// Restore replaces the own writes of l with those of src.
func (l *Layer) Restore(src *Layer) {
	src.mu.RLock()
	dirty := make(map[string][]byte, len(src.dirty))
	for k, v := range src.dirty {
		dirty[k] = common.CopyBytes(v)
	}
	src.mu.RUnlock()

	l.mu.Lock()
	l.dirty = dirty
	l.mu.Unlock()
}

// Flatten merges the layer chain into a single map without deletions.
func (l *Layer) Flatten() map[string][]byte {
	var chain []*Layer
	for cur := l; cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}

	merged := make(map[string][]byte)
	for i := len(chain) - 1; i >= 0; i-- {
		cur := chain[i]
		cur.mu.RLock()
		for k, v := range cur.dirty {
			if v == nil {
				delete(merged, k)
				continue
			}
			merged[k] = common.CopyBytes(v)
		}
		cur.mu.RUnlock()
	}
	return merged
}

// Iterate calls fn for every live key starting with prefix, in key order.
func (l *Layer) Iterate(prefix []byte, fn func(key, value []byte) bool) {
	merged := l.Flatten()
	keys := make([]string, 0, len(merged))
	for k := range merged {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		if !fn([]byte(k), merged[k]) {
			return
		}
	}
}

// Root computes the state root of the merged view.
func (l *Layer) Root() common.Hash {
	merged := l.Flatten()
	keys := make([]string, 0, len(merged))
	for k, v := range merged {
		if len(v) > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	st := trie.NewStackTrie(nil)
	for _, k := range keys {
		if err := st.Update([]byte(k), merged[k]); err != nil {
			return common.Hash{}
		}
	}
	return st.Hash()
}

// Len returns the number of live keys.
func (l *Layer) Len() int {
	return len(l.Flatten())
}

// ChildKey returns the storage key of key inside the child trie trieID.
func ChildKey(trieID, key []byte) []byte {
	out := make([]byte, 0, len(childStoragePrefix)+len(trieID)+len(key))
	out = append(out, childStoragePrefix...)
	out = append(out, trieID...)
	return append(out, key...)
}

// ChildPrefix returns the key prefix covering the whole child trie trieID.
func ChildPrefix(trieID []byte) []byte {
	return ChildKey(trieID, nil)
}
