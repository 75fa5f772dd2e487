package ir

import (
	"errors"
	"fmt"
	"strings"
)

// Reserved top-level slots of every application state tree.
const (
	// LoadingKey holds the per-operation loading flags.
	LoadingKey = "isLoading"

	// ErrorKey roots the error sub-tree, which mirrors operation key paths.
	ErrorKey = "error"
)

// ErrEmptyKeyPath is returned when a key path has no segments.
var ErrEmptyKeyPath = errors.New("key path must have at least one segment")

// KeyPath is an ordered sequence of field names locating a value inside a
// nested state tree.
type KeyPath []string

// ParseKeyPath splits a dotted path ("todos.items") into a KeyPath.
// An empty string yields an empty path.
func ParseKeyPath(s string) KeyPath {
	if s == "" {
		return KeyPath{}
	}
	return KeyPath(strings.Split(s, "."))
}

// Validate checks that the path is non-empty and has no empty segments.
func (p KeyPath) Validate() error {
	if len(p) == 0 {
		return ErrEmptyKeyPath
	}
	for i, seg := range p {
		if strings.TrimSpace(seg) == "" {
			return fmt.Errorf("key path segment %d is empty", i)
		}
	}
	return nil
}

// String renders the path with dots, e.g. "todos.items".
func (p KeyPath) String() string {
	return strings.Join(p, ".")
}

// Clone returns a copy that shares no backing array with p.
func (p KeyPath) Clone() KeyPath {
	if p == nil {
		return nil
	}
	out := make(KeyPath, len(p))
	copy(out, p)
	return out
}

// Under returns a new path rooted at root: Under("error") on [todos items]
// gives [error todos items].
func (p KeyPath) Under(root string) KeyPath {
	out := make(KeyPath, 0, len(p)+1)
	out = append(out, root)
	return append(out, p...)
}

// Equal reports whether both paths have the same segments.
func (p KeyPath) Equal(other KeyPath) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Value converts the path to an Array of strings for serialization.
func (p KeyPath) Value() Array {
	arr := make(Array, len(p))
	for i, seg := range p {
		arr[i] = String(seg)
	}
	return arr
}

// KeyPathFromValue converts an Array of strings back into a KeyPath.
func KeyPathFromValue(v Value) (KeyPath, error) {
	arr, ok := v.(Array)
	if !ok {
		return nil, fmt.Errorf("key path must be an array, got %s", TypeName(v))
	}
	p := make(KeyPath, len(arr))
	for i, elem := range arr {
		s, ok := elem.(String)
		if !ok {
			return nil, fmt.Errorf("key path segment %d must be a string, got %s", i, TypeName(elem))
		}
		p[i] = string(s)
	}
	return p, nil
}
