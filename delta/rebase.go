package delta

import (
	"fmt"
)

// Rebase transforms d, a changeset concurrent with other over the same base,
// so that it applies after other. When both sides insert at the same position,
// or set the same attribute or format key, priority decides whether d wins.
//
// For two changesets a and b over the same base,
//
//	base.Apply(b); base.Apply(a.Rebase(b, false))
//	base.Apply(a); base.Apply(b.Rebase(a, true))
//
// produce the same document.
func (d *Delta) Rebase(other *Delta, priority bool) error {
	if d.sealed {
		return fmt.Errorf("rebase: %w", ErrSealed)
	}
	r := &rebaser{d: d, t: d.children.head, others: other.Ops(), priority: priority}
	if err := r.run(); err != nil {
		return err
	}
	d.normalize()
	return r.rebaseAttrs(other)
}

// rebaser walks both child sequences with cursors measured in base units:
// inserts consume nothing, deletes and retains consume their count and
// modifies consume one unit.
type rebaser struct {
	d        *Delta
	t        *ChildOp
	toff     int
	others   []*ChildOp
	oi, ooff int
	priority bool
}

func (r *rebaser) advanceThis(n int) {
	r.toff += n
	if r.toff >= r.t.Count() {
		r.t, r.toff = r.t.next, 0
	}
}

func (r *rebaser) advanceOther(n int) {
	r.ooff += n
	if r.ooff >= r.others[r.oi].Count() {
		r.oi, r.ooff = r.oi+1, 0
	}
}

// Shifts the current op of d over n units inserted by other.
func (r *rebaser) shift(n int) {
	if r.toff > 0 {
		r.t = r.t.split(r.toff)
		r.toff = 0
	}
	r.d.children.insertBefore(&ChildOp{kind: KindRetain, count: n}, r.t)
}

func (r *rebaser) run() error {
	for r.t != nil && r.oi < len(r.others) {
		t, o := r.t, r.others[r.oi]
		switch {
		case o.isInsert():
			if t.isInsert() && r.priority {
				r.t = t.next
				continue
			}
			r.shift(o.Len())
			r.oi, r.ooff = r.oi+1, 0
			continue
		case t.isInsert():
			r.t = t.next
			continue
		}
		n := min(t.Count()-r.toff, o.Count()-r.ooff)
		switch t.kind {
		case KindModify:
			switch o.kind {
			case KindDelete:
				r.t = t.next
				r.d.children.remove(t)
				r.advanceOther(1)
				continue
			case KindModify:
				t.value = own(t.value)
				if err := t.value.Rebase(o.value, r.priority); err != nil {
					return err
				}
				t.fp = ""
			}
			r.resolve(o)
		case KindRetain, KindDelete:
			if o.kind == KindDelete {
				r.shrink(n)
				r.advanceOther(n)
				continue
			}
			if t.kind == KindRetain {
				r.isolate(o, n)
			}
		}
		r.advanceThis(n)
		r.advanceOther(n)
	}
	return nil
}

// Removes n units, already deleted by other, from the current op of d.
func (r *rebaser) shrink(n int) {
	t := r.t
	if n == t.count {
		r.t, r.toff = t.next, 0
		r.d.children.remove(t)
		return
	}
	t.count -= n
	t.fp = ""
	if r.toff >= t.count {
		r.t, r.toff = t.next, 0
	}
}

// Restricts the current retain of d to the n units overlapping o before
// resolving their format conflicts.
func (r *rebaser) isolate(o *ChildOp, n int) {
	if !r.conflicts(r.t, o) {
		return
	}
	if r.toff > 0 {
		r.t = r.t.split(r.toff)
		r.toff = 0
	}
	if n < r.t.count {
		r.t.split(n)
	}
	r.resolve(o)
}

func (r *rebaser) conflicts(t, o *ChildOp) bool {
	if r.priority {
		return false
	}
	return len(sharedKeys(t.format, o.format)) > 0 ||
		(!t.attribution.IsZero() && !o.attribution.IsZero())
}

// The losing side gives up the format keys also set by the winner.
func (r *rebaser) resolve(o *ChildOp) {
	t := r.t
	if !r.conflicts(t, o) {
		return
	}
	if keys := sharedKeys(t.format, o.format); len(keys) > 0 {
		f := t.format.Clone()
		for _, k := range keys {
			delete(f, k)
		}
		t.format = f.Clone()
	}
	if !o.attribution.IsZero() {
		t.attribution = nil
	}
	t.fp = ""
}

// Merges adjacent compatible ops and recomputes the length.
func (d *Delta) normalize() {
	for op := d.children.head; op != nil; {
		if next := op.next; op.mergeable(next) {
			op.absorb(next)
			d.children.remove(next)
			continue
		}
		op = op.next
	}
	d.recount()
}

func (r *rebaser) rebaseAttrs(other *Delta) error {
	d := r.d
	for key, op := range d.attrs {
		o, ok := other.attrs[key]
		if !ok {
			continue
		}
		keep := true
		switch op.kind {
		case AttrSet:
			switch o.kind {
			case AttrSet:
				keep = r.priority
			case AttrDelete:
				keep = false
			}
		case AttrDelete:
			keep = o.kind != AttrDelete
		case AttrModify:
			if o.kind != AttrModify {
				keep = false
				break
			}
			op.delta = own(op.delta)
			if err := op.delta.Rebase(o.delta, r.priority); err != nil {
				return fmt.Errorf("rebase attribute %q: %w", key, err)
			}
			op.fp = ""
		}
		if !keep {
			delete(d.attrs, key)
		}
	}
	d.fp = ""
	return nil
}
