package hub

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Mock site ID generation for testing. Returns a function to undo the mocking.
func MockSiteIDs(ids ...uuid.UUID) func() {
	var i int
	oldSiteID := newSiteID
	undo := func() { newSiteID = oldSiteID }
	newSiteID = func() uuid.UUID {
		id := ids[i]
		i++
		return id
	}
	return undo
}

// Mock change IDs with a counter, so they are predictable in tests.
func MockChangeIDs() func() {
	var n byte
	oldChangeID := newChangeID
	undo := func() { newChangeID = oldChangeID }
	newChangeID = func() ulid.ULID {
		n++
		var id ulid.ULID
		id[len(id)-1] = n
		return id
	}
	return undo
}
