// Package tree provides path access and structural merging for decoded
// JSON configuration trees.
//
// A configuration tree is the value produced by decoding a JSON object
// into map[string]any. Nested objects are map[string]any, arrays are
// []any, and everything else is a leaf.
//
// # Access
//
// Get, Set and Unset walk a Path of keys. Array elements are addressed
// by their decimal index. Traversal never creates structure: Set and
// Unset require every key but the last to exist already, and report
// false instead of failing loudly when it does not. A failed Get means
// the tree has no value at that path, which is a normal condition.
//
// # Merge
//
// Merge copies values from a source tree into a target tree using the
// target's shape as the template. Every leaf of the target is looked up
// in the source by its full path; a hit overwrites the target leaf and a
// miss leaves it alone. Keys that exist only in the source are ignored,
// so the target never gains or loses keys.
//
//	src := Tree{"system": Tree{"device": Tree{"id": "new"}}}
//	dst := Tree{"system": Tree{"device": Tree{"id": "old", "miso_pin": 12}}}
//	Merge(src, dst)
//	// dst: {"system":{"device":{"id":"new","miso_pin":12}}}
package tree
