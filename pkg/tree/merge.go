package tree

import "sort"

// Merge copies values from source into target wherever target has a
// leaf at the same path, and returns the number of leaves written.
//
// Traversal follows target only. Keys present in source but not in
// target are ignored and keys missing from source keep their target
// value. A source value replaces the target leaf even when the types
// differ. Applying the same merge twice yields the same tree.
func Merge(source, target Tree) int {
	return mergeNode(source, target, nil)
}

// MergeSection merges source into target as the named section, so the
// lookup paths seen by Merge begin with name. This is how per-section
// backups are reconciled against the live section trees.
func MergeSection(name string, source, target Tree) int {
	return Merge(Tree{name: source}, Tree{name: target})
}

func mergeNode(source any, node any, prefix Path) int {
	written := 0
	switch n := node.(type) {
	case map[string]any:
		for _, key := range sortedKeys(n) {
			written += mergeChild(source, n[key], prefix.Child(key), func(v any) { n[key] = v })
		}
	case []any:
		for i := range n {
			written += mergeChild(source, n[i], prefix.Child(itoa(i)), func(v any) { n[i] = v })
		}
	}
	return written
}

func mergeChild(source any, value any, path Path, assign func(any)) int {
	if isContainer(value) {
		return mergeNode(source, value, path)
	}
	v, ok := Get(source, path)
	if !ok {
		return 0
	}
	assign(Clone(v))
	return 1
}

func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	default:
		return false
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy of a decoded JSON value.
func Clone(v any) any {
	switch n := v.(type) {
	case map[string]any:
		if n == nil {
			return n
		}
		out := make(map[string]any, len(n))
		for k, c := range n {
			out[k] = Clone(c)
		}
		return out
	case []any:
		if n == nil {
			return n
		}
		out := make([]any, len(n))
		for i, c := range n {
			out[i] = Clone(c)
		}
		return out
	default:
		return v
	}
}

// CloneTree returns a deep copy of t.
func CloneTree(t Tree) Tree {
	if t == nil {
		return nil
	}
	return Clone(t).(map[string]any)
}

// Leaves returns the paths of every leaf in t in lexical key order.
func Leaves(t Tree) []Path {
	var out []Path
	var walk func(node any, prefix Path)
	walk = func(node any, prefix Path) {
		switch n := node.(type) {
		case map[string]any:
			for _, k := range sortedKeys(n) {
				walk(n[k], prefix.Child(k))
			}
		case []any:
			for i := range n {
				walk(n[i], prefix.Child(itoa(i)))
			}
		default:
			out = append(out, prefix)
		}
	}
	walk(t, nil)
	return out
}
