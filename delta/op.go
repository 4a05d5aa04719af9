package delta

import (
	"fmt"
	"strings"
)

// Kind is the variant of a child operation.
type Kind uint8

const (
	// KindText inserts a run of characters.
	KindText Kind = iota
	// KindInsert inserts a run of arbitrary items, including embedded deltas.
	KindInsert
	// KindDelete removes existing units.
	KindDelete
	// KindRetain keeps existing units, optionally changing their format.
	KindRetain
	// KindModify applies an embedded delta to exactly one existing unit.
	KindModify
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInsert:
		return "insert"
	case KindDelete:
		return "delete"
	case KindRetain:
		return "retain"
	case KindModify:
		return "modify"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ChildOp is one operation in the ordered children of a Delta.
//
// Ops are linked in place, so the algorithms can split and splice them at a
// known node in constant time. They are owned by a single Delta; use Clone to
// keep one around after further mutations.
type ChildOp struct {
	kind  Kind
	text  []rune
	items []any
	count int
	value *Delta

	format      Format
	attribution *Attribution
	fp          string

	prev, next *ChildOp
	list       *opList
}

// Kind returns the variant of op.
func (op *ChildOp) Kind() Kind { return op.kind }

// Len returns the number of units op produces or keeps in the resulting
// sequence. Deletes have length 0; see Count.
func (op *ChildOp) Len() int {
	switch op.kind {
	case KindText:
		return len(op.text)
	case KindInsert:
		return len(op.items)
	case KindRetain:
		return op.count
	case KindModify:
		return 1
	}
	return 0
}

// Count returns the number of units op consumes from the sequence it is
// applied to: the count of a Delete or Retain, 1 for a Modify, 0 for inserts.
func (op *ChildOp) Count() int {
	switch op.kind {
	case KindDelete, KindRetain:
		return op.count
	case KindModify:
		return 1
	}
	return 0
}

// Text returns the inserted text of a KindText op.
func (op *ChildOp) Text() string { return string(op.text) }

// Items returns a copy of the inserted items of a KindInsert op.
func (op *ChildOp) Items() []any { return append([]any(nil), op.items...) }

// Value returns the embedded delta of a KindModify op.
func (op *ChildOp) Value() *Delta { return op.value }

// Format returns a copy of the formatting attributes of op.
func (op *ChildOp) Format() Format { return op.format.Clone() }

// Attribution returns a copy of the attribution of op.
func (op *ChildOp) Attribution() *Attribution { return op.attribution.Clone() }

// Next returns the following op, or nil.
func (op *ChildOp) Next() *ChildOp { return op.next }

// Prev returns the preceding op, or nil.
func (op *ChildOp) Prev() *ChildOp { return op.prev }

func (op *ChildOp) isInsert() bool { return op.kind == KindText || op.kind == KindInsert }

func (op *ChildOp) isPlainRetain() bool {
	return op.kind == KindRetain && op.format == nil && op.attribution.IsZero()
}

// Clone returns an unlinked copy of op. Sealed embedded deltas are shared,
// mutable ones are copied.
func (op *ChildOp) Clone() *ChildOp {
	c := &ChildOp{
		kind:        op.kind,
		count:       op.count,
		format:      op.format.Clone(),
		attribution: op.attribution.Clone(),
		fp:          op.fp,
	}
	if op.text != nil {
		c.text = append([]rune(nil), op.text...)
	}
	if op.items != nil {
		c.items = make([]any, len(op.items))
		for i, item := range op.items {
			c.items[i] = shareValue(item)
		}
	}
	if op.value != nil {
		c.value = share(op.value)
	}
	return c
}

// Equal reports whether both ops have the same kind, content, format and
// attribution.
func (op *ChildOp) Equal(other *ChildOp) bool {
	if op.kind != other.kind || !op.format.Equal(other.format) || !op.attribution.Equal(other.attribution) {
		return false
	}
	switch op.kind {
	case KindText:
		return string(op.text) == string(other.text)
	case KindInsert:
		if len(op.items) != len(other.items) {
			return false
		}
		for i, item := range op.items {
			if !sameValue(item, other.items[i]) {
				return false
			}
		}
		return true
	case KindDelete, KindRetain:
		return op.count == other.count
	case KindModify:
		return op.value.Equal(other.value)
	}
	return false
}

func (op *ChildOp) String() string {
	var b strings.Builder
	switch op.kind {
	case KindText:
		fmt.Fprintf(&b, "insert %q", string(op.text))
	case KindInsert:
		fmt.Fprintf(&b, "insert %v", op.items)
	case KindDelete:
		fmt.Fprintf(&b, "delete %d", op.count)
	case KindRetain:
		fmt.Fprintf(&b, "retain %d", op.count)
	case KindModify:
		fmt.Fprintf(&b, "modify %v", op.value)
	}
	if op.format != nil {
		fmt.Fprintf(&b, " %v", map[string]any(op.format))
	}
	return b.String()
}

// +----------+
// | Splicing |
// +----------+

// Splits op at offset (in units of Len, or of Count for deletes), keeping the
// head in op and linking the tail right after it. Returns the tail.
func (op *ChildOp) split(offset int) *ChildOp {
	tail := &ChildOp{
		kind:        op.kind,
		format:      op.format.Clone(),
		attribution: op.attribution.Clone(),
	}
	switch op.kind {
	case KindText:
		tail.text = append([]rune(nil), op.text[offset:]...)
		op.text = op.text[:offset:offset]
	case KindInsert:
		tail.items = append([]any(nil), op.items[offset:]...)
		op.items = op.items[:offset:offset]
	case KindDelete, KindRetain:
		tail.count = op.count - offset
		op.count = offset
	default:
		panic(fmt.Sprintf("split: can't split %v op", op.kind))
	}
	op.fp = ""
	if op.list != nil {
		op.list.insertAfter(tail, op)
	}
	return tail
}

// Narrows op to the units in [start, end).
func (op *ChildOp) trim(start, end int) {
	switch op.kind {
	case KindText:
		op.text = append([]rune(nil), op.text[start:end]...)
	case KindInsert:
		op.items = append([]any(nil), op.items[start:end]...)
	case KindDelete, KindRetain:
		op.count = end - start
	}
	op.fp = ""
}

// Patches the format and attribution of op. Retain and Modify ops carry
// patches themselves, so null entries are kept on them.
func (op *ChildOp) patch(format Format, attribution *Attribution) {
	if format == nil && attribution.IsZero() {
		return
	}
	keepNull := op.kind == KindRetain || op.kind == KindModify
	op.format = patchFormat(op.format, format, keepNull)
	op.attribution = mergeAttribution(op.attribution, attribution)
	op.fp = ""
}

// Turns op into a deletion of its n units.
func (op *ChildOp) becomeDelete(n int) {
	op.kind = KindDelete
	op.count = n
	op.text = nil
	op.items = nil
	op.value = nil
	op.format = nil
	op.attribution = nil
	op.fp = ""
}

func (op *ChildOp) mergeable(next *ChildOp) bool {
	if next == nil || op.kind != next.kind || op.kind == KindModify {
		return false
	}
	return op.format.Equal(next.format) && op.attribution.Equal(next.attribution)
}

// Appends the content of next into op.
func (op *ChildOp) absorb(next *ChildOp) {
	switch op.kind {
	case KindText:
		op.text = append(op.text[:len(op.text):len(op.text)], next.text...)
	case KindInsert:
		op.items = append(op.items[:len(op.items):len(op.items)], next.items...)
	case KindDelete, KindRetain:
		op.count += next.count
	}
	op.fp = ""
}

// +------+
// | List |
// +------+

// opList is an intrusive doubly-linked list of ops.
type opList struct {
	head, tail *ChildOp
	n          int
}

func (l *opList) pushBack(op *ChildOp) {
	l.insertAfter(op, l.tail)
}

// Links op after at; a nil at means the front of the list.
func (l *opList) insertAfter(op, at *ChildOp) {
	op.list = l
	op.prev = at
	if at == nil {
		op.next = l.head
		l.head = op
	} else {
		op.next = at.next
		at.next = op
	}
	if op.next == nil {
		l.tail = op
	} else {
		op.next.prev = op
	}
	l.n++
}

// Links op before at; a nil at means the back of the list.
func (l *opList) insertBefore(op, at *ChildOp) {
	if at == nil {
		l.pushBack(op)
		return
	}
	l.insertAfter(op, at.prev)
}

func (l *opList) remove(op *ChildOp) {
	if op.prev == nil {
		l.head = op.next
	} else {
		op.prev.next = op.next
	}
	if op.next == nil {
		l.tail = op.prev
	} else {
		op.next.prev = op.prev
	}
	op.prev, op.next, op.list = nil, nil, nil
	l.n--
}

func (l *opList) slice() []*ChildOp {
	ops := make([]*ChildOp, 0, l.n)
	for op := l.head; op != nil; op = op.next {
		ops = append(ops, op)
	}
	return ops
}
