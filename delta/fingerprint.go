package delta

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
)

// Tag bytes written first in each fingerprint.
const (
	tagText byte = iota
	tagInsert
	tagDelete
	tagRetain
	tagModify
	tagAttrSet
	tagAttrDelete
	tagAttrModify
)

// Written first in every delta fingerprint, so deltas never collide with ops.
const deltaMagic = "\xdedelta"

// encoder accumulates the canonical byte form that gets hashed.
type encoder struct {
	buf []byte
}

func (e *encoder) byte(b byte) { e.buf = append(e.buf, b) }

func (e *encoder) uint(n int) { e.buf = binary.AppendUvarint(e.buf, uint64(n)) }

func (e *encoder) string(s string) {
	e.uint(len(s))
	e.buf = append(e.buf, s...)
}

func (e *encoder) bytes(bs []byte) {
	e.uint(len(bs))
	e.buf = append(e.buf, bs...)
}

func (e *encoder) format(f Format) {
	if f == nil {
		e.byte(0)
		return
	}
	e.byte(1)
	e.bytes(canonical(map[string]any(f)))
}

// Hashes the encoded bytes into a short printable fingerprint (128 bits).
func (e *encoder) sum() string {
	h := sha256.Sum256(e.buf)
	return base64.RawURLEncoding.EncodeToString(h[:16])
}

// Fingerprint returns a content hash of op: kind, content and format.
// Attribution is not part of it.
func (op *ChildOp) Fingerprint() string {
	if op.fp != "" {
		return op.fp
	}
	var e encoder
	switch op.kind {
	case KindText:
		e.byte(tagText)
		e.string(string(op.text))
	case KindInsert:
		e.byte(tagInsert)
		e.uint(len(op.items))
		for _, item := range op.items {
			e.bytes(canonical(item))
		}
	case KindDelete:
		e.byte(tagDelete)
		e.uint(op.count)
	case KindRetain:
		e.byte(tagRetain)
		e.uint(op.count)
	case KindModify:
		e.byte(tagModify)
		e.string(op.value.Fingerprint())
	}
	e.format(op.format)
	op.fp = e.sum()
	return op.fp
}

// Fingerprint returns a content hash of op. Previous values and attribution
// are not part of it.
func (op *AttrOp) Fingerprint() string {
	if op.fp != "" {
		return op.fp
	}
	var e encoder
	switch op.kind {
	case AttrSet:
		e.byte(tagAttrSet)
		e.bytes(canonical(op.value))
	case AttrDelete:
		e.byte(tagAttrDelete)
	case AttrModify:
		e.byte(tagAttrModify)
		e.string(op.delta.Fingerprint())
	}
	op.fp = e.sum()
	return op.fp
}

// Fingerprint returns a content hash of d over its name, its attributes in
// canonical key order and its children in sequence order.
//
// Structurally equal deltas always share a fingerprint.
func (d *Delta) Fingerprint() string {
	if d.fp != "" {
		return d.fp
	}
	var e encoder
	e.buf = append(e.buf, deltaMagic...)
	e.string(d.name)
	e.uint(len(d.attrs))
	for _, key := range sortedKeys(d.attrs) {
		e.string(key)
		e.string(d.attrs[key].Fingerprint())
	}
	e.uint(d.children.n)
	for op := d.children.head; op != nil; op = op.next {
		e.string(op.Fingerprint())
	}
	d.fp = e.sum()
	return d.fp
}
