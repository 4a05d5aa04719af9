package delta_test

import (
	"encoding/json"
	"testing"

	"pgregory.net/rapid"

	"github.com/brunokim/delta/delta"
)

var formats = []delta.Format{nil, {"bold": true}, {"italic": true}, {"bold": true, "italic": true}}

// Draws a document made of short text runs and item runs, with random formats.
func drawDoc(t *rapid.T, label string) *delta.Delta {
	d := delta.New()
	n := rapid.IntRange(0, 6).Draw(t, label+" runs").(int)
	for i := 0; i < n; i++ {
		f := formats[rapid.IntRange(0, len(formats)-1).Draw(t, label+" format").(int)]
		if rapid.IntRange(0, 4).Draw(t, label+" kind").(int) == 0 {
			items := rapid.SliceOfN(rapid.IntRange(0, 3), 1, 3).Draw(t, label+" items").([]int)
			vs := make([]any, len(items))
			for i, item := range items {
				vs[i] = item
			}
			d.InsertItems(vs, delta.WithFormat(f))
			continue
		}
		text := rapid.StringOfN(rapid.RuneFrom([]rune("abc")), 1, 5, -1).Draw(t, label+" text").(string)
		d.Insert(text, delta.WithFormat(f))
	}
	return d.Done()
}

// Draws a sealed text changeset over a document of length n.
func drawChange(t *rapid.T, label string, n int) *delta.Delta {
	return drawScript(t, label, n).Done()
}

// Draws an unsealed text changeset over a document of length n.
func drawScript(t *rapid.T, label string, n int) *delta.Delta {
	d := delta.New()
	var pos int
	for {
		op := rapid.IntRange(0, 4).Draw(t, label+" op").(int)
		if op == 0 || (pos == n && op > 1) {
			break
		}
		switch op {
		case 1:
			text := rapid.StringOfN(rapid.RuneFrom([]rune("xyz")), 1, 3, -1).Draw(t, label+" text").(string)
			f := formats[rapid.IntRange(0, 1).Draw(t, label+" insert format").(int)]
			d.Insert(text, delta.WithFormat(f))
			if pos == n {
				return d
			}
		case 2, 3:
			k := rapid.IntRange(1, n-pos).Draw(t, label+" len").(int)
			var opts []delta.OpOption
			switch rapid.IntRange(0, 3).Draw(t, label+" retain format").(int) {
			case 1:
				opts = append(opts, delta.WithFormat(delta.Format{"bold": true}))
			case 2:
				opts = append(opts, delta.WithFormat(delta.Format{"bold": nil}))
			case 3:
				opts = append(opts, delta.WithFormat(delta.Format{"italic": true}))
			}
			d.Retain(k, opts...)
			pos += k
		case 4:
			k := rapid.IntRange(1, n-pos).Draw(t, label+" len").(int)
			d.Delete(k)
			pos += k
		}
	}
	return d
}

var attrKeys = []string{"lang", "title"}

func drawItem(t *rapid.T, label string) any {
	if rapid.IntRange(0, 1).Draw(t, label+" item kind").(int) == 0 {
		return rapid.IntRange(0, 3).Draw(t, label+" number").(int)
	}
	text := rapid.StringOfN(rapid.RuneFrom([]rune("abc")), 1, 5, -1).Draw(t, label+" paragraph").(string)
	return delta.NewNamed("p").Insert(text).Done()
}

// Draws a document of numbers and paragraphs, with some attributes set. Also
// returns the length of each paragraph by position, or -1 for numbers.
func drawTree(t *rapid.T, label string) (*delta.Delta, []int) {
	d := delta.New()
	var lens []int
	n := rapid.IntRange(0, 6).Draw(t, label+" items").(int)
	for i := 0; i < n; i++ {
		item := drawItem(t, label)
		d.InsertItems([]any{item})
		if p, ok := item.(*delta.Delta); ok {
			lens = append(lens, p.Len())
		} else {
			lens = append(lens, -1)
		}
	}
	for _, key := range attrKeys {
		if rapid.IntRange(0, 1).Draw(t, label+" has "+key).(int) == 1 {
			d.SetAttr(key, rapid.IntRange(0, 2).Draw(t, label+" "+key).(int))
		}
	}
	return d.Done(), lens
}

// Draws a changeset over a document made by drawTree: item inserts, retains,
// deletes and modifies of paragraphs, plus attribute sets and deletes. Only
// attributes present in base are deleted.
func drawTreeChange(t *rapid.T, label string, base *delta.Delta, lens []int) *delta.Delta {
	d := delta.New()
	var pos int
	for {
		op := rapid.IntRange(0, 4).Draw(t, label+" op").(int)
		if op == 0 || (pos == len(lens) && op > 1) {
			break
		}
		if op == 1 {
			d.InsertItems([]any{drawItem(t, label)})
			if pos == len(lens) {
				break
			}
			continue
		}
		switch op {
		case 2:
			k := rapid.IntRange(1, len(lens)-pos).Draw(t, label+" len").(int)
			d.Retain(k)
			pos += k
		case 3:
			k := rapid.IntRange(1, len(lens)-pos).Draw(t, label+" len").(int)
			d.Delete(k)
			pos += k
		case 4:
			if lens[pos] < 0 {
				d.Retain(1)
			} else {
				d.Modify(drawChange(t, label+" nested", lens[pos]))
			}
			pos++
		}
	}
	for _, key := range attrKeys {
		switch rapid.IntRange(0, 2).Draw(t, label+" "+key+" op").(int) {
		case 1:
			d.SetAttr(key, rapid.IntRange(0, 2).Draw(t, label+" "+key).(int))
		case 2:
			if base.Attr(key) != nil {
				d.DeleteAttr(key)
			}
		}
	}
	return d.Done()
}

func TestDiffRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d1 := drawDoc(t, "d1")
		d2 := drawDoc(t, "d2")
		diff := delta.Diff(d1, d2)
		got := d1.Clone()
		if err := got.Apply(diff); err != nil {
			t.Fatalf("Apply(%v): %v", diff, err)
		}
		if got.Fingerprint() != d2.Fingerprint() {
			t.Fatalf("apply(d1, diff) = %v, want %v (diff %v)", got, d2, diff)
		}
	})
}

func TestRebaseConvergence(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := drawDoc(t, "base")
		a := drawChange(t, "a", base.Len())
		b := drawChange(t, "b", base.Len())

		left := base.Clone()
		mustApply(t, left, b)
		mustApply(t, left, rebased(t, a, b, false))

		right := base.Clone()
		mustApply(t, right, a)
		mustApply(t, right, rebased(t, b, a, true))

		if left.Fingerprint() != right.Fingerprint() {
			t.Fatalf("diverged:\n a: %v\n b: %v\n  b, a': %v\n  a, b': %v", a, b, left, right)
		}
	})
}

func TestRebaseConvergenceTree(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base, lens := drawTree(t, "base")
		a := drawTreeChange(t, "a", base, lens)
		b := drawTreeChange(t, "b", base, lens)

		left := base.Clone()
		mustApply(t, left, b)
		mustApply(t, left, rebased(t, a, b, false))

		right := base.Clone()
		mustApply(t, right, a)
		mustApply(t, right, rebased(t, b, a, true))

		if left.Fingerprint() != right.Fingerprint() {
			t.Fatalf("diverged:\n a: %v\n b: %v\n  b, a': %v\n  a, b': %v", a, b, left, right)
		}
	})
}

func TestIdentity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := drawDoc(t, "d")
		got := d.Clone()
		mustApply(t, got, delta.New())
		checkEqual(t, d, got)
	})
}

// Fails if two adjacent ops in d could be merged.
func checkCoalesced(t tb, d *delta.Delta) {
	t.Helper()
	for op := d.First(); op != nil && op.Next() != nil; op = op.Next() {
		next := op.Next()
		if op.Kind() == next.Kind() && op.Kind() != delta.KindModify &&
			op.Format().Equal(next.Format()) && op.Attribution().Equal(next.Attribution()) {
			t.Fatalf("ops %v and %v not merged in %v", op, next, d)
		}
	}
}

// No two adjacent ops can be merged after any apply.
func TestCoalescing(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := drawDoc(t, "d").Clone()
		mustApply(t, d, drawChange(t, "change", d.Len()))
		checkCoalesced(t, d)
	})
}

// Same as above when composing two changesets, including ops that reach past
// the end of the first one.
func TestComposeCoalescing(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 8).Draw(t, "n").(int)
		d := drawScript(t, "first", n)
		extra := rapid.IntRange(0, 3).Draw(t, "extra").(int)
		mustApply(t, d, drawChange(t, "second", d.Len()+extra))
		checkCoalesced(t, d)
	})
}

func TestFingerprintDeterminism(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := drawDoc(t, "d")
		bs, err := json.Marshal(d)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		got, err := delta.Unmarshal(bs)
		if err != nil {
			t.Fatalf("Unmarshal(%s): %v", bs, err)
		}
		if got.Fingerprint() != d.Fingerprint() {
			t.Fatalf("fingerprint changed through JSON: %s", bs)
		}
		if !got.Equal(d) {
			t.Fatalf("Equal() = false through JSON: %s", bs)
		}
		if got.Fingerprint() != d.Clone().Fingerprint() {
			t.Fatalf("fingerprint changed through Clone")
		}
	})
}
