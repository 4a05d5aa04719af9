package delta

import (
	"fmt"
)

// Apply composes other onto d, in place. d is the base (a document or an
// earlier changeset) and other is an edit script whose positions refer to the
// units d produces.
//
// Apply fails with ErrSealed if d is sealed, with ErrSchemaRejected if other is
// refused by the schema bound to d, and with ErrUnexpectedCase if a Modify
// lands on a unit that is not an embedded delta. There is no rollback: on
// error d may be partially modified.
func (d *Delta) Apply(other *Delta) error {
	if d.sealed {
		return fmt.Errorf("apply: %w", ErrSealed)
	}
	if d.schema != nil {
		if err := d.schema.Check(other); err != nil {
			return fmt.Errorf("apply: %w: %w", ErrSchemaRejected, err)
		}
	}
	a := &applier{d: d, op: d.children.head}
	for o := other.children.head; o != nil; o = o.next {
		var err error
		switch o.kind {
		case KindText, KindInsert:
			a.insert(o.Clone())
		case KindRetain:
			if o.isPlainRetain() {
				a.skip(o.count)
			} else {
				a.format(o)
			}
		case KindDelete:
			a.delete(o.count)
		case KindModify:
			err = a.modify(o)
		}
		if err != nil {
			a.coalesce()
			d.recount()
			return err
		}
	}
	a.coalesce()
	d.recount()
	return d.applyAttrs(other)
}

// applier walks the children of d with a cursor measured in produced units.
// Deletes produce nothing, so the cursor passes over them.
type applier struct {
	d   *Delta
	op  *ChildOp
	off int
	// Units skipped past the end of d, materialized only if something follows.
	pad     int
	touched []*ChildOp
}

func (a *applier) touch(op *ChildOp) {
	a.touched = append(a.touched, op)
}

// Moves the cursor to the next node when it sits at the end of the current one.
func (a *applier) settle() {
	for a.op != nil && a.op.Len() > 0 && a.off >= a.op.Len() {
		a.off -= a.op.Len()
		a.op = a.op.next
	}
}

func (a *applier) skipDeletes() {
	for a.op != nil && a.op.Len() == 0 {
		a.op = a.op.next
	}
}

// Appends op after the end of d.
func (a *applier) pushBack(op *ChildOp) {
	if a.pad > 0 {
		pad := &ChildOp{kind: KindRetain, count: a.pad}
		a.d.children.pushBack(pad)
		a.touch(pad)
		a.pad = 0
	}
	a.d.children.pushBack(op)
	a.touch(op)
}

func (a *applier) insert(op *ChildOp) {
	if a.op == nil {
		a.pushBack(op)
		return
	}
	if a.off > 0 {
		tail := a.op.split(a.off)
		a.touch(a.op)
		a.op, a.off = tail, 0
	}
	a.d.children.insertBefore(op, a.op)
	a.touch(op)
}

func (a *applier) skip(n int) {
	for n > 0 {
		a.skipDeletes()
		if a.op == nil {
			a.pad += n
			return
		}
		k := min(n, a.op.Len()-a.off)
		a.off += k
		n -= k
		a.settle()
	}
}

// Isolates the next units under the cursor into a node of at most n units,
// and moves the cursor past it. Returns nil at the end of d.
func (a *applier) take(n int) *ChildOp {
	a.skipDeletes()
	if a.op == nil {
		return nil
	}
	op := a.op
	if a.off > 0 {
		a.touch(op)
		op = op.split(a.off)
		a.off = 0
	}
	if n < op.Len() {
		op.split(n)
	}
	a.touch(op)
	a.op = op.next
	return op
}

func (a *applier) format(o *ChildOp) {
	for n := o.count; n > 0; {
		t := a.take(n)
		if t == nil {
			a.pushBack(&ChildOp{kind: KindRetain, count: n, format: o.format.Clone(), attribution: o.attribution.Clone()})
			return
		}
		n -= t.Len()
		t.patch(o.format, o.attribution)
	}
}

func (a *applier) delete(n int) {
	for n > 0 {
		t := a.take(n)
		if t == nil {
			a.pushBack(&ChildOp{kind: KindDelete, count: n})
			return
		}
		k := t.Len()
		n -= k
		if !t.isInsert() {
			t.becomeDelete(k)
			continue
		}
		if t.next != nil {
			a.touch(t.next)
		} else if t.prev != nil {
			a.touch(t.prev)
		}
		a.d.children.remove(t)
	}
}

func (a *applier) modify(o *ChildOp) error {
	t := a.take(1)
	if t == nil {
		a.pushBack(o.Clone())
		return nil
	}
	switch t.kind {
	case KindInsert:
		child, ok := t.items[0].(*Delta)
		if !ok {
			return fmt.Errorf("modify over %T item: %w", t.items[0], ErrUnexpectedCase)
		}
		child = own(child)
		if err := child.Apply(o.value); err != nil {
			return err
		}
		t.items[0] = child
	case KindModify:
		t.value = own(t.value)
		if err := t.value.Apply(o.value); err != nil {
			return err
		}
	case KindRetain:
		t.kind, t.count = KindModify, 0
		t.value = share(o.value)
	default:
		return fmt.Errorf("modify over %v: %w", t.kind, ErrUnexpectedCase)
	}
	t.fp = ""
	t.patch(o.format, o.attribution)
	return nil
}

// Merges every touched node that is still linked with its neighbors.
func (a *applier) coalesce() {
	for _, op := range a.touched {
		if op.list == nil {
			continue
		}
		l := op.list
		for op.prev != nil && op.prev.mergeable(op) {
			prev := op.prev
			prev.absorb(op)
			l.remove(op)
			op = prev
		}
		for op.mergeable(op.next) {
			next := op.next
			op.absorb(next)
			l.remove(next)
		}
	}
}

// +-------+
// | Attrs |
// +-------+

func (d *Delta) applyAttrs(other *Delta) error {
	for _, key := range sortedKeys(other.attrs) {
		o, cur := other.attrs[key], d.attrs[key]
		d.fp = ""
		switch o.kind {
		case AttrSet:
			op := o.Clone()
			if cur != nil && cur.kind == AttrSet {
				op.prevValue, op.hasPrev = cur.value, true
			}
			d.attrs[key] = op
		case AttrDelete:
			if cur != nil && cur.kind == AttrSet {
				delete(d.attrs, key)
				continue
			}
			d.attrs[key] = o.Clone()
		case AttrModify:
			if err := d.modifyAttr(key, cur, o); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Delta) modifyAttr(key string, cur, o *AttrOp) error {
	if cur == nil || cur.kind == AttrDelete {
		d.attrs[key] = o.Clone()
		return nil
	}
	cur.fp = ""
	if cur.kind == AttrModify {
		cur.delta = own(cur.delta)
		return cur.delta.Apply(o.delta)
	}
	child, ok := cur.value.(*Delta)
	if !ok {
		return fmt.Errorf("modify attribute %q holding %T: %w", key, cur.value, ErrUnexpectedCase)
	}
	child = own(child)
	cur.value = child
	return child.Apply(o.delta)
}
