package patch

import "sort"

// LineSet holds a set of 1-based line numbers in a file's post-patch content.
type LineSet map[int]struct{}

// NewLineSet builds a LineSet from the given line numbers.
func NewLineSet(lines ...int) LineSet {
	s := make(LineSet, len(lines))
	for _, n := range lines {
		s.Add(n)
	}
	return s
}

// Add inserts a line number into the set.
func (s LineSet) Add(n int) {
	s[n] = struct{}{}
}

// Contains reports whether the set holds the given line number.
func (s LineSet) Contains(n int) bool {
	_, ok := s[n]
	return ok
}

// Len returns the number of lines in the set.
func (s LineSet) Len() int {
	return len(s)
}

// Lines returns the line numbers in ascending order.
func (s LineSet) Lines() []int {
	lines := make([]int, 0, len(s))
	for n := range s {
		lines = append(lines, n)
	}
	sort.Ints(lines)
	return lines
}
