// Package document provides the in-memory nested document of filekv.
//
// A Document is a tree of mappings addressed by dot-delimited keys. Writes
// are strict: a scalar sitting on an intermediate segment is a path conflict.
// Reads come in two flavors, Get (strict, reports conflicts) and Lookup
// (lenient, treats conflicts as missing keys).
//
// All methods are safe for concurrent use.
package document

import (
	"sort"
	"sync"

	"github.com/yndnr/filekv/internal/kverr"
)

// Document is the authoritative in-memory key-value tree.
type Document struct {
	mu   sync.RWMutex
	root map[string]any
}

// New creates an empty document.
func New() *Document {
	return &Document{root: make(map[string]any)}
}

// FromMap creates a document from a decoded tree.
func FromMap(root map[string]any) (*Document, error) {
	d := New()
	if err := d.Replace(root); err != nil {
		return nil, err
	}
	return d, nil
}

// Replace swaps the whole tree. A nil root yields an empty document.
func (d *Document) Replace(root map[string]any) error {
	n, err := Normalize(root)
	if err != nil {
		return err
	}
	m, _ := n.(map[string]any)
	if m == nil {
		m = make(map[string]any)
	}

	d.mu.Lock()
	d.root = m
	d.mu.Unlock()
	return nil
}

// Get returns the value at key.
//
// A missing key yields (nil, false, nil). A non-mapping value on an
// intermediate segment yields kverr.ErrPathConflict naming the prefix that
// holds it. Mappings and arrays are returned as copies.
func (d *Document) Get(key string) (any, bool, error) {
	path, err := ParsePath(key)
	if err != nil {
		return nil, false, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	v, ok, err := walk(d.root, path)
	if err != nil || !ok {
		return nil, false, err
	}
	return clone(v), true, nil
}

// Lookup is the lenient form of Get: invalid keys and path conflicts are
// reported as missing.
func (d *Document) Lookup(key string) (any, bool) {
	v, ok, err := d.Get(key)
	if err != nil {
		return nil, false
	}
	return v, ok
}

// Put stores value at key, creating intermediate mappings as needed and
// replacing whatever was stored there before.
func (d *Document) Put(key string, value any) error {
	path, err := ParsePath(key)
	if err != nil {
		return err
	}
	v, err := Normalize(value)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	parent, err := descend(d.root, path, true)
	if err != nil {
		return err
	}
	parent[path.Last()] = v
	return nil
}

// Remove deletes key from its parent mapping. Removing a missing key is a
// no-op.
func (d *Document) Remove(key string) error {
	path, err := ParsePath(key)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	parent, err := descend(d.root, path, false)
	if err != nil || parent == nil {
		return err
	}
	delete(parent, path.Last())
	return nil
}

// Snapshot returns a deep copy of the whole tree.
func (d *Document) Snapshot() map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return cloneMap(d.root)
}

// Encode runs enc over the live tree while holding the read lock, so the
// result reflects the document at the moment of the call. enc must not
// retain or modify the map.
func (d *Document) Encode(enc func(map[string]any) ([]byte, error)) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return enc(d.root)
}

// Len returns the number of top-level keys.
func (d *Document) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.root)
}

// Keys returns the dot paths of every leaf, sorted. Empty mappings count as
// leaves.
func (d *Document) Keys() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	leaves := Flatten(d.root)
	keys := make([]string, 0, len(leaves))
	for _, l := range leaves {
		keys = append(keys, l.Key)
	}
	return keys
}

// walk follows path from root. ok is false if a segment is missing.
func walk(root map[string]any, path Path) (v any, ok bool, err error) {
	var cur any = root
	for i, seg := range path {
		m, isMap := cur.(map[string]any)
		if !isMap {
			return nil, false, kverr.ErrPathConflict.WithDetails(path.Prefix(i))
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false, nil
		}
	}
	return cur, true, nil
}

// descend returns the mapping that holds the last segment of path.
//
// With create set, missing intermediates are materialized as empty mappings.
// Without it a missing intermediate returns a nil parent. A conflict is
// always detected before anything is created: new intermediates only ever
// follow existing mappings, so a failed call leaves root untouched.
func descend(root map[string]any, path Path, create bool) (map[string]any, error) {
	cur := root
	for i, seg := range path.Parent() {
		next, ok := cur[seg]
		if !ok {
			if !create {
				return nil, nil
			}
			m := make(map[string]any)
			cur[seg] = m
			cur = m
			continue
		}
		m, isMap := next.(map[string]any)
		if !isMap {
			return nil, kverr.ErrPathConflict.WithDetails(path.Prefix(i + 1))
		}
		cur = m
	}
	return cur, nil
}

// Leaf is a flattened document entry.
type Leaf struct {
	Key   string
	Value any
}

// Flatten lists every leaf of root with its dot path, sorted by key.
func Flatten(root map[string]any) []Leaf {
	var out []Leaf
	flatten("", root, &out)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key < out[j].Key
	})
	return out
}

func flatten(prefix string, m map[string]any, out *[]Leaf) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + Separator + k
		}
		if child, ok := v.(map[string]any); ok && len(child) > 0 {
			flatten(key, child, out)
			continue
		}
		*out = append(*out, Leaf{Key: key, Value: v})
	}
}
