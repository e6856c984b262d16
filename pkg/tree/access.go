package tree

// Tree is a decoded JSON object.
type Tree = map[string]any

// Mode selects the operation performed by Access.
type Mode uint8

const (
	// ModeGet reads the value at the path.
	ModeGet Mode = iota

	// ModeSet assigns the value at the path.
	ModeSet

	// ModeUnset removes the value at the path.
	ModeUnset
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeGet:
		return "GET"
	case ModeSet:
		return "SET"
	case ModeUnset:
		return "UNSET"
	default:
		return "UNKNOWN"
	}
}

// Access performs mode on the value at path in root.
//
// For ModeGet it returns the value and true, or nil and false when the
// path does not resolve. For ModeSet and ModeUnset it returns the value
// argument and whether the operation was applied. No intermediate
// structure is ever created.
func Access(root any, path Path, mode Mode, value any) (any, bool) {
	switch mode {
	case ModeGet:
		return Get(root, path)
	case ModeSet:
		return value, Set(root, path, value)
	case ModeUnset:
		return nil, Unset(root, path)
	default:
		return nil, false
	}
}

// Get returns the value at path. An empty path yields root itself.
func Get(root any, path Path) (any, bool) {
	cur := root
	for _, key := range path {
		next, ok := child(cur, key)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Set assigns value at path. Every key except the last must already
// resolve to an object or array. Returns false if nothing was written.
func Set(root any, path Path, value any) bool {
	if len(path) == 0 {
		return false
	}
	parent, ok := Get(root, path[:len(path)-1])
	if !ok {
		return false
	}
	last := path[len(path)-1]
	switch p := parent.(type) {
	case map[string]any:
		if p == nil {
			return false
		}
		p[last] = value
		return true
	case []any:
		i, ok := index(last, len(p))
		if !ok {
			return false
		}
		p[i] = value
		return true
	default:
		return false
	}
}

// Unset removes the key at path from its parent object. Array elements
// cannot be removed. Returns false if the parent does not exist.
func Unset(root any, path Path) bool {
	if len(path) == 0 {
		return false
	}
	parent, ok := Get(root, path[:len(path)-1])
	if !ok {
		return false
	}
	p, ok := parent.(map[string]any)
	if !ok || p == nil {
		return false
	}
	delete(p, path[len(path)-1])
	return true
}

func child(node any, key string) (any, bool) {
	switch n := node.(type) {
	case map[string]any:
		v, ok := n[key]
		return v, ok
	case []any:
		i, ok := index(key, len(n))
		if !ok {
			return nil, false
		}
		return n[i], true
	default:
		return nil, false
	}
}
