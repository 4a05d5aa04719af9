// Package diff computes edit scripts between two sequences of comparable tokens.
//
// Tokens are mapped to runes and compared with the Myers-based differ from
// diffmatchpatch, so any comparable type (strings, fingerprints, ints) can be
// diffed without writing a dedicated LCS.
package diff

import (
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

type OpType int

const (
	Keep OpType = iota
	Insert
	Delete
)

func (op OpType) String() string {
	switch op {
	case Keep:
		return "keep"
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	}
	return "unknown"
}

// Edit is a run of Len tokens sharing the same operation.
type Edit struct {
	Op  OpType
	Len int
}

// Change replaces Remove (found at Index in the first sequence) with Insert.
type Change[T any] struct {
	Index  int
	Remove []T
	Insert []T
}

// Example: abcd -> xabdy
//
//   a   b   c   d
//   |   |    \  |
//   x a b     d   y
//
//   insert 1, keep 2, delete 1, keep 1, insert 1
//
// Runs of the same operation are merged, and within a replaced region deletions
// come before insertions.

// Edits returns the run-length sequence of keeps, deletions and insertions that
// transforms a into b.
func Edits[T comparable](a, b []T) []Edit {
	ra, rb := toRunes(a, b)
	dmp := diffmatchpatch.New()
	// No deadline, so results are deterministic and minimal.
	dmp.DiffTimeout = 0
	diffs := dmp.DiffMainRunes(ra, rb, false)
	var edits []Edit
	push := func(op OpType, n int) {
		if n == 0 {
			return
		}
		if k := len(edits) - 1; k >= 0 && edits[k].Op == op {
			edits[k].Len += n
			return
		}
		edits = append(edits, Edit{Op: op, Len: n})
	}
	for _, d := range diffs {
		n := utf8.RuneCountInString(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			push(Keep, n)
		case diffmatchpatch.DiffDelete:
			push(Delete, n)
		case diffmatchpatch.DiffInsert:
			push(Insert, n)
		}
	}
	return normalize(edits)
}

// Changes groups the edit script between a and b into replacement records.
func Changes[T comparable](a, b []T) []Change[T] {
	var changes []Change[T]
	var i, j int
	var cur *Change[T]
	flush := func() {
		if cur != nil {
			changes = append(changes, *cur)
			cur = nil
		}
	}
	for _, e := range Edits(a, b) {
		switch e.Op {
		case Keep:
			flush()
			i += e.Len
			j += e.Len
		case Delete:
			if cur == nil {
				cur = &Change[T]{Index: i}
			}
			cur.Remove = append(cur.Remove, a[i:i+e.Len]...)
			i += e.Len
		case Insert:
			if cur == nil {
				cur = &Change[T]{Index: i}
			}
			cur.Insert = append(cur.Insert, b[j:j+e.Len]...)
			j += e.Len
		}
	}
	flush()
	return changes
}

// Distance returns the number of inserted plus deleted tokens between a and b.
func Distance[T comparable](a, b []T) int {
	var dist int
	for _, e := range Edits(a, b) {
		if e.Op != Keep {
			dist += e.Len
		}
	}
	return dist
}

// Moves insertions after adjacent deletions, so that a replaced region always
// reads as "delete, insert".
func normalize(edits []Edit) []Edit {
	for i := 0; i+1 < len(edits); i++ {
		if edits[i].Op == Insert && edits[i+1].Op == Delete {
			edits[i], edits[i+1] = edits[i+1], edits[i]
		}
	}
	out := edits[:0]
	for _, e := range edits {
		if k := len(out) - 1; k >= 0 && out[k].Op == e.Op {
			out[k].Len += e.Len
			continue
		}
		out = append(out, e)
	}
	return out
}

// Assigns each distinct token a rune, skipping the surrogate range so that
// every rune survives a round trip through string.
func toRunes[T comparable](a, b []T) ([]rune, []rune) {
	table := make(map[T]rune)
	mapping := func(xs []T) []rune {
		rs := make([]rune, len(xs))
		for i, x := range xs {
			r, ok := table[x]
			if !ok {
				r = runeFor(len(table))
				table[x] = r
			}
			rs[i] = r
		}
		return rs
	}
	return mapping(a), mapping(b)
}

func runeFor(i int) rune {
	r := rune(i + 1)
	if r >= 0xD800 {
		r += 0x800
	}
	return r
}
