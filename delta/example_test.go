package delta_test

import (
	"fmt"

	"github.com/brunokim/delta/delta"
)

// Editing a document by applying changesets to it.
func Example() {
	doc := delta.New().Insert("hello world")
	edit := delta.New().Retain(5).Delete(6).Insert("!")
	if err := doc.Apply(edit); err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(doc)
	// Output:
	// {insert "hello!"}
}

// Two sites edit the same document concurrently. Each one applies its own
// change, then the other's change rebased over it; both end up with the same
// document. Ties are decided by the priority flag, so the sites must agree on
// who wins.
func ExampleDelta_Rebase() {
	base := delta.New().Insert("crdt is nice").Done()
	alice := delta.New().Retain(4).Insert("s").Retain(1).Delete(2).Insert("are").Done()
	bob := delta.New().Retain(8).Delete(4).Insert("cool").Done()

	atAlice := base.Clone()
	atAlice.Apply(alice)
	bobRebased := bob.Clone()
	bobRebased.Rebase(alice, true)
	atAlice.Apply(bobRebased)

	atBob := base.Clone()
	atBob.Apply(bob)
	aliceRebased := alice.Clone()
	aliceRebased.Rebase(bob, false)
	atBob.Apply(aliceRebased)

	fmt.Println("alice:", atAlice)
	fmt.Println("bob:  ", atBob)
	// Output:
	// alice: {insert "crdts are cool"}
	// bob:   {insert "crdts are cool"}
}

// Diff expresses format changes as formatted retains.
func ExampleDiff() {
	before := delta.New().Insert("hello world!")
	after := delta.New().
		Insert("hello ").
		Insert("world", delta.WithFormat(delta.Format{"bold": true})).
		Insert("!")
	fmt.Println(delta.Diff(before, after).Done())
	// Output:
	// {retain 6, retain 5 map[bold:true]}
}

// Embedded deltas with the same name are diffed recursively.
func ExampleDiff_embedded() {
	para := func(text string) *delta.Delta {
		return delta.NewNamed("p").Insert(text).Done()
	}
	before := delta.New().InsertItems([]any{para("one"), para("two")})
	after := delta.New().InsertItems([]any{para("one"), para("three")})
	fmt.Println(delta.Diff(before, after).Done())
	// Output:
	// {retain 1, modify {name p, retain 1, delete 2, insert "hree"}}
}
