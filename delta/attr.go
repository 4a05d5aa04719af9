package delta

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// AttrKind is the variant of an attribute operation.
type AttrKind uint8

const (
	// AttrSet sets an attribute to a value.
	AttrSet AttrKind = iota
	// AttrDelete removes an attribute.
	AttrDelete
	// AttrModify applies an embedded delta to the attribute's current value.
	AttrModify
)

func (k AttrKind) String() string {
	switch k {
	case AttrSet:
		return "set"
	case AttrDelete:
		return "delete"
	case AttrModify:
		return "modify"
	}
	return fmt.Sprintf("AttrKind(%d)", uint8(k))
}

// AttrOp is the single current operation on an attribute key.
type AttrOp struct {
	kind        AttrKind
	value       any
	prevValue   any
	hasPrev     bool
	delta       *Delta
	attribution *Attribution
	fp          string
}

// Kind returns the variant of op.
func (op *AttrOp) Kind() AttrKind { return op.kind }

// Value returns the value of a set op.
func (op *AttrOp) Value() any { return op.value }

// PrevValue returns the value that was overwritten or removed by op, if known.
func (op *AttrOp) PrevValue() (any, bool) { return op.prevValue, op.hasPrev }

// Delta returns the embedded delta of a modify op.
func (op *AttrOp) Delta() *Delta { return op.delta }

// Attribution returns a copy of the attribution of op.
func (op *AttrOp) Attribution() *Attribution { return op.attribution.Clone() }

// Clone returns a copy of op, sharing sealed embedded deltas.
func (op *AttrOp) Clone() *AttrOp {
	c := *op
	c.value = shareValue(op.value)
	c.attribution = op.attribution.Clone()
	if op.delta != nil {
		c.delta = share(op.delta)
	}
	return &c
}

// Equal compares kind, value and attribution. Previous values are ignored.
func (op *AttrOp) Equal(other *AttrOp) bool {
	if op.kind != other.kind || !op.attribution.Equal(other.attribution) {
		return false
	}
	switch op.kind {
	case AttrSet:
		return sameValue(op.value, other.value)
	case AttrModify:
		return op.delta.Equal(other.delta)
	}
	return true
}

func (op *AttrOp) String() string {
	switch op.kind {
	case AttrSet:
		return fmt.Sprintf("set %v", op.value)
	case AttrModify:
		return fmt.Sprintf("modify %v", op.delta)
	}
	return "delete"
}

// Returns the attribute keys in canonical order: integer keys first in
// numeric order, then the rest lexicographically.
func sortedKeys(attrs map[string]*AttrOp) []string {
	keys := maps.Keys(attrs)
	slices.SortFunc(keys, compareKeys)
	return keys
}

func compareKeys(a, b string) int {
	na, errA := strconv.ParseUint(a, 10, 64)
	nb, errB := strconv.ParseUint(b, 10, 64)
	switch {
	case errA == nil && errB == nil && na != nb:
		if na < nb {
			return -1
		}
		return +1
	case errA == nil && errB != nil:
		return -1
	case errA != nil && errB == nil:
		return +1
	}
	return strings.Compare(a, b)
}
