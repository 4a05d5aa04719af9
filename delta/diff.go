package delta

import (
	"fmt"

	"github.com/brunokim/delta/diff"
)

// Diff returns an unsealed changeset that turns the state a into the state b:
// after a.Apply(Diff(a, b)), a has the same fingerprint as b.
//
// Runs of equal ops are first matched by fingerprint. Each remaining change is
// then diffed unit by unit, and embedded deltas sharing a name are diffed
// recursively instead of being replaced. Format changes are expressed as
// formatted retains. Diff never fails; at worst it deletes and reinserts
// everything.
func Diff(a, b *Delta) *Delta {
	d := NewNamed(b.name)
	if a.Fingerprint() == b.Fingerprint() {
		return d
	}
	if diffChildren(d, a.Ops(), b.Ops()) {
		diffFormats(d, a, b)
	}
	diffAttrs(d, a, b)
	return d
}

// Writes the content changes from as to bs into d. Reports whether any of the
// changed ops carried formatting.
func diffChildren(d *Delta, as, bs []*ChildOp) bool {
	var p int
	for p < len(as) && p < len(bs) && as[p].Fingerprint() == bs[p].Fingerprint() {
		p++
	}
	var s int
	for s < len(as)-p && s < len(bs)-p &&
		as[len(as)-1-s].Fingerprint() == bs[len(bs)-1-s].Fingerprint() {
		s++
	}
	d.Retain(units(as[:p]))
	as, bs = as[p:len(as)-s], bs[p:len(bs)-s]

	var formatted bool
	var pos, shift int
	for _, c := range diff.Changes(fingerprints(as), fingerprints(bs)) {
		d.Retain(units(as[pos:c.Index]))
		removed := as[c.Index : c.Index+len(c.Remove)]
		j := c.Index + shift
		inserted := bs[j : j+len(c.Insert)]
		shift += len(c.Insert) - len(c.Remove)
		pos = c.Index + len(c.Remove)

		formatted = formatted || hasFormat(removed) || hasFormat(inserted)
		diffUnits(d, atomize(removed), atomize(inserted))
	}
	return formatted
}

func fingerprints(ops []*ChildOp) []string {
	fps := make([]string, len(ops))
	for i, op := range ops {
		fps[i] = op.Fingerprint()
	}
	return fps
}

func units(ops []*ChildOp) int {
	var n int
	for _, op := range ops {
		n += op.Len()
	}
	return n
}

func hasFormat(ops []*ChildOp) bool {
	for _, op := range ops {
		if op.format != nil {
			return true
		}
	}
	return false
}

// +-------+
// | Units |
// +-------+

// unit is a single item produced by an op: a character, an array element or
// an embedded delta.
type unit struct {
	op  *ChildOp
	idx int
}

func (u unit) token() string {
	switch u.op.kind {
	case KindText:
		return "\x00" + string(u.op.text[u.idx])
	case KindInsert:
		return "\x01" + string(canonical(u.op.items[u.idx]))
	case KindModify:
		return "\x03" + u.op.value.Fingerprint()
	}
	return "\x02"
}

// Returns the embedded delta held by u, if any.
func (u unit) delta() (*Delta, bool) {
	if u.op.kind != KindInsert {
		return nil, false
	}
	child, ok := u.op.items[u.idx].(*Delta)
	return child, ok
}

func atomize(ops []*ChildOp) []unit {
	var us []unit
	for _, op := range ops {
		for i := 0; i < op.Len(); i++ {
			us = append(us, unit{op, i})
		}
	}
	return us
}

func tokens(us []unit) []string {
	ts := make([]string, len(us))
	for i, u := range us {
		ts[i] = u.token()
	}
	return ts
}

func diffUnits(d *Delta, as, bs []unit) {
	var i, j int
	var removed, inserted []unit
	flush := func() {
		replace(d, removed, inserted)
		removed, inserted = nil, nil
	}
	for _, e := range diff.Edits(tokens(as), tokens(bs)) {
		switch e.Op {
		case diff.Keep:
			flush()
			d.Retain(e.Len)
			i += e.Len
			j += e.Len
		case diff.Delete:
			removed = append(removed, as[i:i+e.Len]...)
			i += e.Len
		case diff.Insert:
			inserted = append(inserted, bs[j:j+e.Len]...)
			j += e.Len
		}
	}
	flush()
}

// Replaces removed with inserted. Embedded deltas facing each other with the
// same name become a Modify with their own diff.
func replace(d *Delta, removed, inserted []unit) {
	var deleted int
	var pending []unit
	flush := func() {
		d.Delete(deleted)
		insertUnits(d, pending)
		deleted, pending = 0, nil
	}
	for i := 0; i < max(len(removed), len(inserted)); i++ {
		if i < len(removed) && i < len(inserted) {
			x, okx := removed[i].delta()
			y, oky := inserted[i].delta()
			if okx && oky && x.name == y.name {
				flush()
				d.Modify(Diff(x, y))
				continue
			}
		}
		if i < len(removed) {
			deleted++
		}
		if i < len(inserted) {
			pending = append(pending, inserted[i])
		}
	}
	flush()
}

// Inserts units, grouped by the op they come from.
func insertUnits(d *Delta, us []unit) {
	for len(us) > 0 {
		op := us[0].op
		n := 1
		for n < len(us) && us[n].op == op && us[n].idx == us[0].idx+n {
			n++
		}
		start, end := us[0].idx, us[0].idx+n
		opts := []OpOption{WithFormat(op.format), WithAttribution(op.attribution)}
		switch op.kind {
		case KindText:
			d.Insert(string(op.text[start:end]), opts...)
		case KindInsert:
			items := make([]any, 0, n)
			for _, item := range op.items[start:end] {
				items = append(items, shareValue(item))
			}
			d.InsertItems(items, opts...)
		case KindModify:
			d.Modify(share(op.value), opts...)
		case KindRetain:
			d.Retain(n, opts...)
		}
		us = us[n:]
	}
}

// +---------+
// | Formats |
// +---------+

// Replays d over a copy of a and appends formatted retains to d wherever the
// result is formatted differently from b.
func diffFormats(d, a, b *Delta) {
	scratch := a.Clone()
	scratch.schema = nil
	if err := scratch.Apply(d); err != nil {
		// Only possible if an embedded delta's schema refuses its own diff.
		return
	}
	fd := New()
	x, y := scratch.children.head, b.children.head
	var xoff, yoff int
	for {
		for x != nil && x.Len() == 0 {
			x = x.next
		}
		for y != nil && y.Len() == 0 {
			y = y.next
		}
		if x == nil || y == nil {
			break
		}
		n := min(x.Len()-xoff, y.Len()-yoff)
		if x.format.Equal(y.format) {
			fd.Retain(n)
		} else {
			fd.Retain(n, WithFormat(formatPatch(x.format, y.format)))
		}
		if xoff += n; xoff == x.Len() {
			x, xoff = x.next, 0
		}
		if yoff += n; yoff == y.Len() {
			y, yoff = y.next, 0
		}
	}
	// fd holds only retains, so this fails only if d is sealed.
	if err := d.Apply(fd); err != nil {
		panic(fmt.Errorf("diff formats: %w", err))
	}
}

// +-------+
// | Attrs |
// +-------+

func diffAttrs(d, a, b *Delta) {
	for _, key := range sortedKeys(b.attrs) {
		op := b.attrs[key]
		if cur, ok := a.attrs[key]; ok && cur.Fingerprint() == op.Fingerprint() {
			continue
		}
		d.attrs[key] = op.Clone()
	}
	for _, key := range sortedKeys(a.attrs) {
		if _, ok := b.attrs[key]; ok {
			continue
		}
		var opts []OpOption
		if cur := a.attrs[key]; cur.kind == AttrSet {
			opts = append(opts, WithPrevValue(cur.value))
		}
		d.DeleteAttr(key, opts...)
	}
	d.fp = ""
}
