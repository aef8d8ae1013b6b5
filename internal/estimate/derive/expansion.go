package derive

import "sort"

// Expansion is the set of item indices whose audit trails are shown.
// It is local state only. A nil *Expansion reads as an empty set and
// ignores Collapse and Clear; Expand and Toggle need a non-nil value.
type Expansion struct {
	open map[int]struct{}
}

func NewExpansion() *Expansion {
	return &Expansion{open: make(map[int]struct{})}
}

// Toggle flips index and reports whether it is now expanded
func (e *Expansion) Toggle(index int) bool {
	if e.IsExpanded(index) {
		e.Collapse(index)
		return false
	}
	e.Expand(index)
	return true
}

func (e *Expansion) Expand(index int) {
	if e.open == nil {
		e.open = make(map[int]struct{})
	}
	e.open[index] = struct{}{}
}

func (e *Expansion) Collapse(index int) {
	if e == nil {
		return
	}
	delete(e.open, index)
}

func (e *Expansion) IsExpanded(index int) bool {
	if e == nil {
		return false
	}
	_, ok := e.open[index]
	return ok
}

// Indices returns the expanded indices in ascending order
func (e *Expansion) Indices() []int {
	if e == nil {
		return []int{}
	}
	out := make([]int, 0, len(e.open))
	for i := range e.open {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

func (e *Expansion) Clear() {
	if e == nil {
		return
	}
	e.open = make(map[int]struct{})
}
