// Package domain defines the core domain models for usagemesh.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// LeafValueKey holds a leaf value that collides with a subtree of the same name.
const LeafValueKey = "_value"

// Tree is the nested form of a counter set: either a numeric leaf or a node
// mapping names to subtrees.
//
// The zero value is an empty node.
type Tree struct {
	leaf     bool
	value    int64
	children map[string]Tree
}

// Leaf creates a numeric leaf.
func Leaf(v int64) Tree {
	return Tree{leaf: true, value: v}
}

// Node creates an inner node from children.
func Node(children map[string]Tree) Tree {
	t := Tree{children: make(map[string]Tree, len(children))}
	for k, v := range children {
		t.children[k] = v
	}
	return t
}

// EmptyTree returns a node with no children.
func EmptyTree() Tree {
	return Tree{children: make(map[string]Tree)}
}

// IsLeaf reports whether t is a numeric leaf.
func (t Tree) IsLeaf() bool { return t.leaf }

// Value returns the leaf value. It is zero for nodes.
func (t Tree) Value() int64 { return t.value }

// Len returns the number of children of a node.
func (t Tree) Len() int { return len(t.children) }

// IsEmpty reports whether t is a node without children.
func (t Tree) IsEmpty() bool { return !t.leaf && len(t.children) == 0 }

// Keys returns the child names in lexical order.
func (t Tree) Keys() []string {
	keys := make([]string, 0, len(t.children))
	for k := range t.children {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup follows the path segments and returns the subtree found there.
func (t Tree) Lookup(segments ...string) (Tree, bool) {
	cur := t
	for _, s := range segments {
		next, ok := cur.children[s]
		if !ok {
			return Tree{}, false
		}
		cur = next
	}
	return cur, true
}

// Equal reports structural equality.
func (t Tree) Equal(other Tree) bool {
	if t.leaf != other.leaf {
		return false
	}
	if t.leaf {
		return t.value == other.value
	}
	if len(t.children) != len(other.children) {
		return false
	}
	for k, v := range t.children {
		ov, ok := other.children[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// ToMap converts the tree to plain nested maps with int64 leaves.
// A leaf tree converts to a map holding the value under LeafValueKey.
func (t Tree) ToMap() map[string]any {
	if t.leaf {
		return map[string]any{LeafValueKey: t.value}
	}
	out := make(map[string]any, len(t.children))
	for k, v := range t.children {
		if v.leaf {
			out[k] = v.value
		} else {
			out[k] = v.ToMap()
		}
	}
	return out
}

// Flatten returns the dotted-path form of the tree.
func (t Tree) Flatten() map[string]int64 {
	out := make(map[string]int64)
	t.flatten("", out)
	return out
}

func (t Tree) flatten(prefix string, out map[string]int64) {
	if t.leaf {
		out[prefix] = t.value
		return
	}
	for k, v := range t.children {
		path := k
		if k == LeafValueKey && prefix != "" {
			path = ""
		}
		switch {
		case prefix == "":
		case path == "":
			path = prefix
		default:
			path = prefix + PathSeparator + path
		}
		v.flatten(path, out)
	}
}

// MarshalJSON encodes the tree as a nested JSON object with numeric leaves.
func (t Tree) MarshalJSON() ([]byte, error) {
	if t.leaf {
		return json.Marshal(t.value)
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range t.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := t.children[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a nested JSON object with integer leaves.
func (t *Tree) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] != '{' {
		var v int64
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("decode counter leaf: %w", err)
		}
		*t = Leaf(v)
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode counter node: %w", err)
	}
	node := EmptyTree()
	for k, v := range raw {
		var child Tree
		if err := child.UnmarshalJSON(v); err != nil {
			return err
		}
		node.children[k] = child
	}
	*t = node
	return nil
}

// insert places v at the given path, creating intermediate nodes.
func (t *Tree) insert(segments []string, v int64) {
	if t.children == nil {
		t.children = make(map[string]Tree)
	}
	name := segments[0]
	if len(segments) == 1 {
		if existing, ok := t.children[name]; ok && !existing.leaf {
			existing.children[LeafValueKey] = Leaf(v)
			return
		}
		t.children[name] = Leaf(v)
		return
	}

	child, ok := t.children[name]
	switch {
	case !ok:
		child = EmptyTree()
	case child.leaf:
		child = Node(map[string]Tree{LeafValueKey: child})
	}
	child.insert(segments[1:], v)
	t.children[name] = child
}
