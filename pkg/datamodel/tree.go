// Package datamodel implements the execution-local data tree and the path
// resolver that substitutes data references inside operation arguments.
// A tree is owned by a single execution and is not safe for concurrent
// use; the executor's serial loop is the only writer.
package datamodel

import (
	"encoding/json"
	"fmt"

	"github.com/flowgate/flowgate/pkg/domain"
)

// Tree is the hierarchical mutable store rooted at /workflow. Values are
// JSON-shaped: string, float64, bool, nil, []any, map[string]any.
type Tree struct {
	root     map[string]any
	maxBytes int
	size     int
}

// NewTree creates an empty tree. maxBytes caps the approximate encoded
// size of all stored values; zero disables the cap.
func NewTree(maxBytes int) *Tree {
	return &Tree{root: make(map[string]any), maxBytes: maxBytes}
}

// SizeBytes returns the approximate encoded size of the stored values.
func (t *Tree) SizeBytes() int { return t.size }

// Read returns a deep copy of the value at path. Missing paths and
// out-of-bounds indices produce a DataError.
func (t *Tree) Read(p Path) (any, error) {
	v, err := t.lookup(p)
	if err != nil {
		return nil, err
	}
	return Copy(v), nil
}

// Exists reports whether path currently resolves to a value.
func (t *Tree) Exists(p Path) bool {
	_, err := t.lookup(p)
	return err == nil
}

func (t *Tree) lookup(p Path) (any, error) {
	var cur any = t.root
	for _, seg := range p.Segs {
		switch node := cur.(type) {
		case map[string]any:
			if seg.IsIndex {
				return nil, domain.NewDataError("array index applied to object", p.String())
			}
			next, ok := node[seg.Key]
			if !ok {
				return nil, pathNotFound(p)
			}
			cur = next
		case []any:
			if !seg.IsIndex {
				return nil, domain.NewDataError(fmt.Sprintf("field %q applied to array", seg.Key), p.String())
			}
			if seg.Index >= len(node) {
				return nil, domain.NewDataError(fmt.Sprintf("array index %d out of bounds (len %d)", seg.Index, len(node)), p.String())
			}
			cur = node[seg.Index]
		default:
			return nil, pathNotFound(p)
		}
	}
	return cur, nil
}

func pathNotFound(p Path) *domain.Error {
	return domain.NewDataError("path not found", p.String()).WithContext("reason", "pathNotFound")
}

// Write stores a deep copy of value at the leaf of path, replacing any
// existing value. Intermediate object segments are autovivified; array
// index writes require the index to exist.
func (t *Tree) Write(p Path, value any) error {
	if len(p.Segs) == 0 {
		return domain.NewDataError("cannot replace the workflow root", p.String())
	}

	delta := encodedSize(value)
	if prev, err := t.lookup(p); err == nil {
		delta -= encodedSize(prev)
	}
	if t.maxBytes > 0 && t.size+delta > t.maxBytes {
		return domain.NewResourceError(
			fmt.Sprintf("data model size limit exceeded (%d bytes max)", t.maxBytes))
	}

	var cur any = t.root
	for _, seg := range p.Segs[:len(p.Segs)-1] {
		switch node := cur.(type) {
		case map[string]any:
			if seg.IsIndex {
				return domain.NewDataError("array index applied to object", p.String())
			}
			next, ok := node[seg.Key]
			if !ok {
				next = make(map[string]any)
				node[seg.Key] = next
			}
			cur = next
		case []any:
			if !seg.IsIndex {
				return domain.NewDataError(fmt.Sprintf("field %q applied to array", seg.Key), p.String())
			}
			if seg.Index >= len(node) {
				return domain.NewDataError(fmt.Sprintf("array index %d out of bounds (len %d)", seg.Index, len(node)), p.String())
			}
			cur = node[seg.Index]
		default:
			return domain.NewDataError("intermediate path segment is not a container", p.String())
		}
	}

	leaf := p.Segs[len(p.Segs)-1]
	switch node := cur.(type) {
	case map[string]any:
		if leaf.IsIndex {
			return domain.NewDataError("array index applied to object", p.String())
		}
		node[leaf.Key] = Copy(value)
	case []any:
		if !leaf.IsIndex {
			return domain.NewDataError(fmt.Sprintf("field %q applied to array", leaf.Key), p.String())
		}
		if leaf.Index >= len(node) {
			return domain.NewDataError(fmt.Sprintf("array index %d out of bounds (len %d)", leaf.Index, len(node)), p.String())
		}
		node[leaf.Index] = Copy(value)
	default:
		return domain.NewDataError("write target is not a container", p.String())
	}

	t.size += delta
	return nil
}

// Delete removes the subtree at path if present. Used to tear down the
// loop binding scope; missing paths are not an error.
func (t *Tree) Delete(p Path) {
	if len(p.Segs) == 0 {
		return
	}
	parent := Path{raw: p.raw, Segs: p.Segs[:len(p.Segs)-1]}
	cur, err := t.lookup(parent)
	if err != nil {
		return
	}
	leaf := p.Segs[len(p.Segs)-1]
	if node, ok := cur.(map[string]any); ok && !leaf.IsIndex {
		if prev, present := node[leaf.Key]; present {
			t.size -= encodedSize(prev)
			delete(node, leaf.Key)
		}
	}
}

// TopLevel returns a deep copy of the direct children of /workflow keyed
// by their full slash path, the shape execution responses project.
func (t *Tree) TopLevel() map[string]any {
	out := make(map[string]any, len(t.root))
	for k, v := range t.root {
		out[Root+"/"+k] = Copy(v)
	}
	return out
}

// Copy deep-copies a JSON-shaped value. Operations must never observe
// aliased upstream data.
func Copy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = Copy(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Copy(item)
		}
		return out
	default:
		return v
	}
}

func encodedSize(v any) int {
	b, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return len(b)
}
