// Package hub serializes concurrent changesets from many sites into a single
// linear history.
//
// A Hub holds the authoritative document. Sites submit changes made against
// some revision; the hub rebases each change over the changes committed since
// that revision, so every site can replay the history in order and converge.
// A Client tracks one site: it keeps at most one change in flight and buffers
// further local edits until the hub acknowledges it.
package hub

import (
	"errors"
	"fmt"
	"sync"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/brunokim/delta/delta"
)

var (
	ErrFutureBase  = errors.New("change is based on a future revision")
	ErrOutOfOrder  = errors.New("change received out of order")
	ErrOwnChange   = errors.New("site already has a change after its base revision")
	ErrEmptyChange = errors.New("change has no delta")
)

// Stubs for testing.
var (
	newSiteID   = uuid.New
	newChangeID = ulid.Make
)

// Change is a changeset submitted by a site.
type Change struct {
	ID   ulid.ULID `json:"id"`
	Site uuid.UUID `json:"site"`
	// Revision the change was made against.
	Base int `json:"base"`
	// Revision the change was committed as, or zero if not committed.
	Rev   int          `json:"rev,omitempty"`
	Delta *delta.Delta `json:"delta"`
}

func (c Change) String() string {
	return fmt.Sprintf("%s@%d->%d by %s: %v", c.ID, c.Base, c.Rev, c.Site, c.Delta)
}

// Hub is the authoritative copy of a document and its history.
type Hub struct {
	mu      sync.Mutex
	doc     *delta.Delta
	history []Change
}

// New returns a hub holding doc at revision 0.
func New(doc *delta.Delta) *Hub {
	return &Hub{doc: doc.Clone()}
}

// Rev returns the current revision, that is, the number of committed changes.
func (h *Hub) Rev() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.history)
}

// Snapshot returns a sealed copy of the document and its revision.
func (h *Hub) Snapshot() (*delta.Delta, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.doc.Clone().Done(), len(h.history)
}

// Since returns the changes committed after rev.
func (h *Hub) Since(rev int) []Change {
	h.mu.Lock()
	defer h.mu.Unlock()
	if rev < 0 {
		rev = 0
	}
	if rev >= len(h.history) {
		return nil
	}
	return append([]Change(nil), h.history[rev:]...)
}

// Submit rebases c over the changes committed since c.Base, applies it and
// appends it to the history. Committed changes win ties. Returns the change
// as committed.
func (h *Hub) Submit(c Change) (Change, error) {
	if c.Delta == nil {
		return Change{}, ErrEmptyChange
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.Base < 0 || c.Base > len(h.history) {
		return Change{}, fmt.Errorf("%w: base %d, rev %d", ErrFutureBase, c.Base, len(h.history))
	}
	if c.ID == (ulid.ULID{}) {
		c.ID = newChangeID()
	}
	d := c.Delta.Clone()
	for _, past := range h.history[c.Base:] {
		// Sites must wait for their own change to be committed before sending
		// the next one, so their changes are never concurrent.
		if past.Site == c.Site {
			return Change{}, fmt.Errorf("%w: %s after %d", ErrOwnChange, c.Site, c.Base)
		}
		if err := d.Rebase(past.Delta, false); err != nil {
			return Change{}, fmt.Errorf("rebasing %s over %s: %w", c.ID, past.ID, err)
		}
	}
	d.Done()
	doc := h.doc.Clone()
	if err := doc.Apply(d); err != nil {
		return Change{}, fmt.Errorf("applying %s: %w", c.ID, err)
	}
	h.doc = doc
	if glog.V(2) {
		glog.Infof("[hub]rev=%d %s %v -> %v\n", len(h.history)+1, c.ID, c.Delta, d)
	}
	c.Delta = d
	c.Rev = len(h.history) + 1
	h.history = append(h.history, c)
	return c, nil
}
