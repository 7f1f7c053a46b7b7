package models

import (
	"strconv"
	"strings"
)

// Tree is a loosely typed JSON object as decoded by encoding/json
type Tree map[string]any

// Get walks the tree along path and returns the value found, or nil
func (t Tree) Get(path ...string) any {
	var cur any = map[string]any(t)
	for _, key := range path {
		m, ok := asMap(cur)
		if !ok {
			return nil
		}
		cur = m[key]
	}
	return cur
}

// String returns the value at path coerced to a string
func (t Tree) String(path ...string) string {
	return AsString(t.Get(path...))
}

// Map returns the sub-tree at path, or nil when it is not an object
func (t Tree) Map(path ...string) Tree {
	m, _ := asMap(t.Get(path...))
	return m
}

// List returns the array at path, or nil when it is not an array
func (t Tree) List(path ...string) []any {
	l, _ := t.Get(path...).([]any)
	return l
}

// Walk calls fn for every string leaf of the tree, depth first.
// Map iteration order is not stable, so callers must not depend on visit order.
func (t Tree) Walk(fn func(path []string, value string)) {
	walk(nil, map[string]any(t), fn)
}

func walk(path []string, v any, fn func([]string, string)) {
	switch node := v.(type) {
	case string:
		fn(path, node)
	case map[string]any:
		for k, child := range node {
			walk(append(path[:len(path):len(path)], k), child, fn)
		}
	case Tree:
		walk(path, map[string]any(node), fn)
	case []any:
		for i, child := range node {
			walk(append(path[:len(path):len(path)], strconv.Itoa(i)), child, fn)
		}
	}
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Tree:
		return m, true
	default:
		return nil, false
	}
}

// AsString coerces scalar JSON values to a string; objects, arrays and null
// become the empty string.
func AsString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	default:
		return ""
	}
}

// FirstString returns the first non-empty string among the given paths
func (t Tree) FirstString(paths ...[]string) string {
	for _, p := range paths {
		if s := t.String(p...); s != "" {
			return s
		}
	}
	return ""
}
