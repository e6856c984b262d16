package tree

import (
	"strconv"
	"strings"
)

// Path is an ordered sequence of keys from the root of a tree.
type Path []string

// Key returns a single-element path.
func Key(k string) Path {
	return Path{k}
}

// ParsePath splits a slash-separated path such as "system/device/id".
// Leading, trailing and repeated separators are ignored.
func ParsePath(s string) Path {
	var p Path
	for _, part := range strings.Split(s, "/") {
		if part != "" {
			p = append(p, part)
		}
	}
	return p
}

// Child returns a new path with key appended. The receiver is not modified.
func (p Path) Child(key string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, key)
}

// String returns the slash-separated form of the path.
func (p Path) String() string {
	return strings.Join(p, "/")
}

// index parses an array index key.
func index(key string, n int) (int, bool) {
	i, err := strconv.Atoi(key)
	if err != nil || i < 0 || i >= n {
		return 0, false
	}
	return i, true
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
