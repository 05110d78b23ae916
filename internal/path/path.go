// Package path implements ProcessingPath: an immutable dotted-path
// value type used to address leaves inside an arbitrarily nested JSON
// document, plus PathNode and the node maps built on top of it.
package path

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultDelimiter is used when a Path is constructed without one.
const DefaultDelimiter = "."

// reservedDelimiterChars are the only runes a delimiter may be built
// from. A delimiter must never collide with characters that
// legitimately appear inside a JSON object key, so it is restricted to
// this reserved set rather than required to avoid it.
const reservedDelimiterChars = `\/:<>|.%`

// Path is an immutable ordered sequence of string components plus the
// delimiter used to render it. The sentinel root path has exactly one
// empty-string component.
type Path struct {
	components []string
	delimiter  string
}

// Root returns the sentinel root path ([""]) using delim, or
// DefaultDelimiter if delim is empty.
func Root(delim string) (Path, error) {
	return New([]string{""}, delim)
}

// New constructs a Path from components and a delimiter. Every
// component must be non-empty unless it is the sole sentinel root
// component.
func New(components []string, delim string) (Path, error) {
	if delim == "" {
		delim = DefaultDelimiter
	}
	if err := ValidateDelimiter(delim); err != nil {
		return Path{}, err
	}
	if len(components) == 0 {
		return Path{}, fmt.Errorf("path: components must not be empty")
	}
	if !(len(components) == 1 && components[0] == "") {
		for i, c := range components {
			if c == "" {
				return Path{}, fmt.Errorf("path: component %d is empty", i)
			}
		}
	}
	cp := make([]string, len(components))
	copy(cp, components)
	return Path{components: cp, delimiter: delim}, nil
}

// ValidateDelimiter requires delim to be a non-empty, non-whitespace
// string where every rune is drawn from the reserved character set.
func ValidateDelimiter(delim string) error {
	if delim == "" {
		return fmt.Errorf("path: delimiter must not be empty")
	}
	if strings.TrimSpace(delim) != delim {
		return fmt.Errorf("path: delimiter must not contain whitespace")
	}
	for _, r := range delim {
		if !strings.ContainsRune(reservedDelimiterChars, r) {
			return fmt.Errorf("path: delimiter %q must be drawn from the reserved set %q", delim, reservedDelimiterChars)
		}
	}
	return nil
}

// Components returns a copy of the path's components.
func (p Path) Components() []string {
	out := make([]string, len(p.components))
	copy(out, p.components)
	return out
}

// Delimiter returns the path's delimiter.
func (p Path) Delimiter() string { return p.delimiter }

// IsRoot reports whether p is the sentinel root path.
func (p Path) IsRoot() bool {
	return len(p.components) == 1 && p.components[0] == ""
}

// Len returns the number of components.
func (p Path) Len() int { return len(p.components) }

// String renders the path joined by its delimiter.
func (p Path) String() string {
	return strings.Join(p.components, p.delimiter)
}

// Append returns a new path with component appended.
func (p Path) Append(component string) (Path, error) {
	if component == "" {
		return Path{}, fmt.Errorf("path: cannot append empty component")
	}
	if p.IsRoot() {
		return New([]string{component}, p.delimiter)
	}
	return New(append(p.Components(), component), p.delimiter)
}

// Equal reports structural equality: same components, same delimiter.
func (p Path) Equal(other Path) bool {
	if p.delimiter != other.delimiter || len(p.components) != len(other.components) {
		return false
	}
	for i := range p.components {
		if p.components[i] != other.components[i] {
			return false
		}
	}
	return true
}

// IsAncestorOf reports whether p is a strict prefix of other. The
// sentinel root path is a strict ancestor of every non-root path.
func (p Path) IsAncestorOf(other Path) bool {
	if p.IsRoot() {
		return !other.IsRoot()
	}
	if len(p.components) >= len(other.components) {
		return false
	}
	for i := range p.components {
		if p.components[i] != other.components[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether p equals prefix or prefix is an ancestor of p.
func (p Path) HasPrefix(prefix Path) bool {
	return p.Equal(prefix) || prefix.IsAncestorOf(p)
}

// Ancestors returns all proper prefixes of p, shortest first (the
// sentinel root first), excluding p itself.
func (p Path) Ancestors() []Path {
	if p.IsRoot() {
		return nil
	}
	out := make([]Path, 0, len(p.components))
	if root, err := Root(p.delimiter); err == nil {
		out = append(out, root)
	}
	for i := 1; i < len(p.components); i++ {
		pp, err := New(p.components[:i], p.delimiter)
		if err == nil {
			out = append(out, pp)
		}
	}
	return out
}

// Parent returns the path with its last component removed. Calling
// Parent on a path of length 1 returns the root path.
func (p Path) Parent() (Path, error) {
	if p.IsRoot() {
		return Path{}, fmt.Errorf("path: root has no parent")
	}
	if len(p.components) == 1 {
		return Root(p.delimiter)
	}
	return New(p.components[:len(p.components)-1], p.delimiter)
}

// isNumeric reports whether s is a base-10 non-negative integer literal.
func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ReplaceIndices returns a new path where every numeric component is
// replaced with placeholder, used to compute a grouping key.
func (p Path) ReplaceIndices(placeholder string) Path {
	out := make([]string, len(p.components))
	for i, c := range p.components {
		if isNumeric(c) {
			out[i] = placeholder
		} else {
			out[i] = c
		}
	}
	return Path{components: out, delimiter: p.delimiter}
}

// RemoveIndices strips numeric components from p. If n >= 0, at most n
// numeric components are removed; if reverse is true, removal proceeds
// from the end of the path rather than the start. n < 0 removes all.
func (p Path) RemoveIndices(n int, reverse bool) Path {
	idx := make([]int, 0, len(p.components))
	for i, c := range p.components {
		if isNumeric(c) {
			idx = append(idx, i)
		}
	}
	if n >= 0 && n < len(idx) {
		if reverse {
			idx = idx[len(idx)-n:]
		} else {
			idx = idx[:n]
		}
	}
	remove := make(map[int]bool, len(idx))
	for _, i := range idx {
		remove[i] = true
	}
	out := make([]string, 0, len(p.components))
	for i, c := range p.components {
		if !remove[i] {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		out = []string{""}
	}
	return Path{components: out, delimiter: p.delimiter}
}

// GroupKey returns the dotted string obtained by removing all numeric
// components, clustering leaves that originate from the same field
// across multiple records.
func (p Path) GroupKey() string {
	return p.RemoveIndices(-1, false).String()
}

// RecordIndex returns the integer value of the path's first component,
// used as the record ordinal when the document is a list of records.
// Returns an error if the first component is not numeric.
func (p Path) RecordIndex() (int, error) {
	if p.IsRoot() || len(p.components) == 0 {
		return 0, fmt.Errorf("path: root has no record index")
	}
	n, err := strconv.Atoi(p.components[0])
	if err != nil {
		return 0, fmt.Errorf("path: first component %q is not numeric: %w", p.components[0], err)
	}
	return n, nil
}

// sortKeyComponent zero-pads an all-digit component to 8 digits so that
// string comparison of sort keys matches numeric ordering (e.g. "2" <
// "10"). Digits inside a mixed component (e.g. "item2") are not padded.
func sortKeyComponent(c string) string {
	if n, err := strconv.Atoi(c); err == nil && isNumeric(c) {
		return fmt.Sprintf("%08d", n)
	}
	return c
}

// SortKey returns a stable, depth-first alphanumeric ordering key for
// p: components joined by a NUL separator (which cannot appear in any
// component) with all-digit components zero-padded to 8 digits.
func (p Path) SortKey() string {
	parts := make([]string, len(p.components))
	for i, c := range p.components {
		parts[i] = sortKeyComponent(c)
	}
	return strings.Join(parts, "\x00")
}

// Less orders two paths by their SortKey, giving a stable depth-first
// alphanumeric ordering across a set of paths.
func Less(a, b Path) bool {
	return a.SortKey() < b.SortKey()
}
