/*
Package delta implements an operation-based changeset engine for structured and
rich-text documents.

A Delta holds keyed attribute operations and an ordered sequence of child
operations. The same type represents both a document state (a Delta made only
of inserts) and an edit script over some state (inserts, retains, deletes and
modifications). Deltas compose with Apply, transform against concurrent edits
with Rebase, and are compared with Diff, so replicas can edit independently and
reconcile without a central authority.

	doc := delta.New().Insert("hello world")
	edit := delta.New().Retain(5).Delete(6).Insert("!")
	doc.Apply(edit) // doc is now "hello!"

A Delta is mutable until Done seals it. Sealed deltas may be shared freely,
including as embedded values of other deltas; mutating one requires a Clone.
*/
package delta

import (
	"errors"
	"fmt"
	"strings"
)

// +--------+
// | Errors |
// +--------+

// Errors returned (or raised, for chained builder calls) by Delta operations.
var (
	ErrSealed         = errors.New("delta is sealed")
	ErrUnexpectedCase = errors.New("unexpected operation alignment")
	ErrSchemaRejected = errors.New("rejected by schema")
	ErrInvalidJSON    = errors.New("invalid delta JSON")
)

// Schema checks the shape of a delta. Deltas with a bound schema refuse to
// apply changesets the schema rejects.
type Schema interface {
	Check(d *Delta) error
}

// +-------+
// | Delta |
// +-------+

// Delta is a changeset or a document state.
type Delta struct {
	name     string
	attrs    map[string]*AttrOp
	children opList
	// Sum of the children's Len.
	childCnt int
	sealed   bool
	origin   any
	schema   Schema
	fp       string

	// Session defaults merged into inserts and retains.
	usedFormat      Format
	usedAttribution *Attribution
}

// New returns an empty mutable delta.
func New() *Delta {
	return &Delta{attrs: make(map[string]*AttrOp)}
}

// NewNamed returns an empty mutable delta with the given name. Names
// discriminate embedded deltas: only deltas with the same name are diffed
// structurally.
func NewNamed(name string) *Delta {
	d := New()
	d.name = name
	return d
}

// Name returns the name of d.
func (d *Delta) Name() string { return d.name }

// Origin returns the opaque tag set with SetOrigin.
func (d *Delta) Origin() any { return d.origin }

// SetOrigin tags d with an opaque value, like the site that produced it.
// The origin takes no part in equality or fingerprints.
func (d *Delta) SetOrigin(origin any) *Delta {
	d.origin = origin
	return d
}

// WithSchema binds s to d. Apply will refuse changesets rejected by s.
func (d *Delta) WithSchema(s Schema) *Delta {
	d.schema = s
	return d
}

// Validate checks d against its bound schema, if any.
func (d *Delta) Validate() error {
	if d.schema == nil {
		return nil
	}
	if err := d.schema.Check(d); err != nil {
		return fmt.Errorf("%w: %w", ErrSchemaRejected, err)
	}
	return nil
}

// Len returns the number of units d produces or keeps.
func (d *Delta) Len() int { return d.childCnt }

// First returns the first child op, or nil.
func (d *Delta) First() *ChildOp { return d.children.head }

// Last returns the last child op, or nil.
func (d *Delta) Last() *ChildOp { return d.children.tail }

// Ops returns the child ops in order.
func (d *Delta) Ops() []*ChildOp { return d.children.slice() }

// Attr returns the operation on key, or nil.
func (d *Delta) Attr(key string) *AttrOp { return d.attrs[key] }

// AttrKeys returns the attribute keys in canonical order.
func (d *Delta) AttrKeys() []string { return sortedKeys(d.attrs) }

// IsSealed reports whether d was sealed by Done.
func (d *Delta) IsSealed() bool { return d.sealed }

// IsEmpty reports whether d has neither attributes nor children.
func (d *Delta) IsEmpty() bool { return len(d.attrs) == 0 && d.children.n == 0 }

// Equal reports whether both deltas have the same name, attributes and
// children.
func (d *Delta) Equal(other *Delta) bool {
	if d == other {
		return true
	}
	if d == nil || other == nil {
		return false
	}
	if d.name != other.name || d.childCnt != other.childCnt ||
		len(d.attrs) != len(other.attrs) || d.children.n != other.children.n {
		return false
	}
	for key, op := range d.attrs {
		o, ok := other.attrs[key]
		if !ok || !op.Equal(o) {
			return false
		}
	}
	for a, b := d.children.head, other.children.head; a != nil; a, b = a.next, b.next {
		if !a.Equal(b) {
			return false
		}
	}
	return true
}

func (d *Delta) String() string {
	var parts []string
	if d.name != "" {
		parts = append(parts, "name "+d.name)
	}
	for _, key := range d.AttrKeys() {
		parts = append(parts, fmt.Sprintf("%s: %v", key, d.attrs[key]))
	}
	for op := d.children.head; op != nil; op = op.next {
		parts = append(parts, op.String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// +---------+
// | Options |
// +---------+

// OpOption configures a single builder call.
type OpOption func(*opConfig)

type opConfig struct {
	format      Format
	attribution *Attribution
	prevValue   any
	hasPrev     bool
}

// WithFormat sets formatting attributes on an insert, retain or modify.
// On a retain, a nil value removes the key from the retained span.
func WithFormat(f Format) OpOption {
	return func(c *opConfig) { c.format = f.Clone() }
}

// WithAttribution attaches provenance metadata to an operation.
func WithAttribution(a *Attribution) OpOption {
	return func(c *opConfig) { c.attribution = a.Clone() }
}

// WithPrevValue records the value an attribute operation overwrites.
func WithPrevValue(v any) OpOption {
	return func(c *opConfig) { c.prevValue, c.hasPrev = v, true }
}

func newConfig(opts []OpOption) opConfig {
	var c opConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Merges session defaults with explicit options; explicit values win.
func (d *Delta) withDefaults(opts []OpOption) opConfig {
	c := newConfig(opts)
	c.format = patchFormat(d.usedFormat.Clone(), c.format, true)
	c.attribution = mergeAttribution(d.usedAttribution, c.attribution)
	return c
}

// +----------+
// | Building |
// +----------+

func (d *Delta) mustMutate(what string) {
	if d.sealed {
		panic(fmt.Errorf("%s: %w", what, ErrSealed))
	}
}

// Appends op, extending the trailing op instead when they are compatible.
func (d *Delta) push(op *ChildOp) {
	d.fp = ""
	d.childCnt += op.Len()
	if last := d.children.tail; last != nil && last.mergeable(op) {
		last.absorb(op)
		return
	}
	op.fp = ""
	d.children.pushBack(op)
}

// UseFormat sets the formatting merged into subsequent inserts and retains.
func (d *Delta) UseFormat(f Format) *Delta {
	d.mustMutate("use format")
	d.usedFormat = f.Clone()
	return d
}

// UseAttribution sets the attribution merged into subsequent inserts and
// retains.
func (d *Delta) UseAttribution(a *Attribution) *Delta {
	d.mustMutate("use attribution")
	d.usedAttribution = a.Clone()
	return d
}

// UpdateUsedFormat changes one key of the session formatting. A nil value
// removes the key.
func (d *Delta) UpdateUsedFormat(key string, val any) *Delta {
	d.mustMutate("update used format")
	f := d.usedFormat.Clone()
	if val == nil {
		delete(f, key)
	} else {
		if f == nil {
			f = make(Format)
		}
		f[key] = val
	}
	d.usedFormat = f.Clone()
	return d
}

// UpdateUsedAttribution changes one field of the session attribution, named as
// in its JSON form ("insert", "insertAt", ...). A nil value clears the field.
//
// It panics if key is unknown or val has the wrong type.
func (d *Delta) UpdateUsedAttribution(key string, val any) *Delta {
	d.mustMutate("update used attribution")
	a := d.usedAttribution.Clone()
	if a == nil {
		a = &Attribution{}
	}
	if err := a.set(key, val); err != nil {
		panic(err)
	}
	d.usedAttribution = a.Clone()
	return d
}

// Insert appends text.
func (d *Delta) Insert(text string, opts ...OpOption) *Delta {
	d.mustMutate("insert")
	if text == "" {
		return d
	}
	c := d.withDefaults(opts)
	d.push(&ChildOp{kind: KindText, text: []rune(text), format: c.format, attribution: c.attribution})
	return d
}

// InsertItems appends a run of arbitrary items. Items may be embedded deltas,
// which are handed over to d.
func (d *Delta) InsertItems(items []any, opts ...OpOption) *Delta {
	d.mustMutate("insert")
	if len(items) == 0 {
		return d
	}
	c := d.withDefaults(opts)
	d.push(&ChildOp{kind: KindInsert, items: append([]any(nil), items...), format: c.format, attribution: c.attribution})
	return d
}

// Retain keeps n units, optionally changing their format or attribution.
func (d *Delta) Retain(n int, opts ...OpOption) *Delta {
	d.mustMutate("retain")
	if n <= 0 {
		return d
	}
	c := d.withDefaults(opts)
	d.push(&ChildOp{kind: KindRetain, count: n, format: c.format, attribution: c.attribution})
	return d
}

// Delete removes n units.
func (d *Delta) Delete(n int) *Delta {
	d.mustMutate("delete")
	if n <= 0 {
		return d
	}
	d.push(&ChildOp{kind: KindDelete, count: n})
	return d
}

// Modify applies child to the next single unit, which must be an embedded
// delta. The child is handed over to d.
func (d *Delta) Modify(child *Delta, opts ...OpOption) *Delta {
	d.mustMutate("modify")
	if child == nil {
		return d
	}
	c := newConfig(opts)
	d.push(&ChildOp{kind: KindModify, value: child, format: c.format, attribution: c.attribution})
	return d
}

// SetAttr sets the attribute key to value.
func (d *Delta) SetAttr(key string, value any, opts ...OpOption) *Delta {
	d.mustMutate("set attribute")
	c := newConfig(opts)
	d.attrs[key] = &AttrOp{kind: AttrSet, value: value, prevValue: c.prevValue, hasPrev: c.hasPrev, attribution: c.attribution}
	d.fp = ""
	return d
}

// SetAttrs sets every attribute in attrs.
func (d *Delta) SetAttrs(attrs map[string]any) *Delta {
	d.mustMutate("set attributes")
	for key, value := range attrs {
		d.SetAttr(key, value)
	}
	return d
}

// DeleteAttr removes the attribute key.
func (d *Delta) DeleteAttr(key string, opts ...OpOption) *Delta {
	d.mustMutate("delete attribute")
	c := newConfig(opts)
	d.attrs[key] = &AttrOp{kind: AttrDelete, prevValue: c.prevValue, hasPrev: c.hasPrev, attribution: c.attribution}
	d.fp = ""
	return d
}

// ModifyAttr applies child to the delta held by the attribute key.
func (d *Delta) ModifyAttr(key string, child *Delta) *Delta {
	d.mustMutate("modify attribute")
	d.attrs[key] = &AttrOp{kind: AttrModify, delta: child}
	d.fp = ""
	return d
}

// Append concatenates the children of other after those of d, and copies the
// attributes of other over those of d.
func (d *Delta) Append(other *Delta) *Delta {
	d.mustMutate("append")
	for key, op := range other.attrs {
		d.attrs[key] = op.Clone()
	}
	for op := other.children.head; op != nil; op = op.next {
		d.push(op.Clone())
	}
	d.fp = ""
	return d
}

// Done seals d, and every delta embedded in it. Trailing retains without
// format or attribution carry no information and are dropped.
func (d *Delta) Done() *Delta {
	if d.sealed {
		return d
	}
	for last := d.children.tail; last != nil && last.isPlainRetain(); last = d.children.tail {
		d.childCnt -= last.count
		d.children.remove(last)
		d.fp = ""
	}
	d.sealed = true
	d.usedFormat, d.usedAttribution = nil, nil
	for op := d.children.head; op != nil; op = op.next {
		if op.value != nil {
			op.value.Done()
		}
		for _, item := range op.items {
			if child, ok := item.(*Delta); ok {
				child.Done()
			}
		}
	}
	for _, op := range d.attrs {
		if op.delta != nil {
			op.delta.Done()
		}
		if child, ok := op.value.(*Delta); ok {
			child.Done()
		}
	}
	return d
}

// +---------+
// | Copying |
// +---------+

// Clone returns a mutable copy of d. Sealed embedded deltas are shared.
func (d *Delta) Clone() *Delta {
	c := d.cloneAttrs()
	for op := d.children.head; op != nil; op = op.next {
		c.children.pushBack(op.Clone())
	}
	c.childCnt = d.childCnt
	c.fp = d.fp
	return c
}

// Slice returns a mutable copy of d restricted to the units in [start, end).
// Attributes are copied as is.
func (d *Delta) Slice(start, end int) *Delta {
	c := d.cloneAttrs()
	var pos int
	for op := d.children.head; op != nil && pos <= end; op = op.next {
		n := op.Len()
		if n == 0 {
			if start <= pos && pos < end {
				c.push(op.Clone())
			}
			continue
		}
		s, e := max(start-pos, 0), min(end-pos, n)
		if s < e {
			part := op.Clone()
			part.trim(s, e)
			c.push(part)
		}
		pos += n
	}
	return c
}

func (d *Delta) cloneAttrs() *Delta {
	c := NewNamed(d.name)
	c.origin = d.origin
	c.schema = d.schema
	for key, op := range d.attrs {
		c.attrs[key] = op.Clone()
	}
	return c
}

func (d *Delta) recount() {
	d.childCnt = 0
	for op := d.children.head; op != nil; op = op.next {
		d.childCnt += op.Len()
	}
	d.fp = ""
}

// Sealed deltas are shared, mutable ones copied.
func share(d *Delta) *Delta {
	if d.sealed {
		return d
	}
	return d.Clone()
}

func shareValue(v any) any {
	if d, ok := v.(*Delta); ok {
		return share(d)
	}
	return v
}

// Returns a delta that may be mutated in place of d: d itself when it is
// still mutable, a copy when it is sealed (and thus possibly shared).
func own(d *Delta) *Delta {
	if d.sealed {
		return d.Clone()
	}
	return d
}
