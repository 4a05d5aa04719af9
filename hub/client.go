package hub

import (
	"fmt"

	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/brunokim/delta/delta"
)

// Client is a site's view of a shared document.
//
// Local edits are applied immediately and composed into a buffer. Flush sends
// the buffer as the next change, and no other change is sent until the hub
// acknowledges it. Remote changes are rebased over the in-flight change and
// the buffer before being applied, so the local document always equals the
// hub's history followed by the pending local edits.
type Client struct {
	site     uuid.UUID
	doc      *delta.Delta
	rev      int
	inflight *Change
	buffer   *delta.Delta
}

// NewClient returns a client for a new site, starting from doc at rev.
func NewClient(doc *delta.Delta, rev int) *Client {
	return &Client{
		site: newSiteID(),
		doc:  doc.Clone(),
		rev:  rev,
	}
}

// Site returns the identity of the client's site.
func (c *Client) Site() uuid.UUID { return c.site }

// Rev returns the last revision received from the hub.
func (c *Client) Rev() int { return c.rev }

// Doc returns a sealed copy of the local document.
func (c *Client) Doc() *delta.Delta { return c.doc.Clone().Done() }

// Pending reports whether there are local edits not yet acknowledged.
func (c *Client) Pending() bool { return c.inflight != nil || c.buffer != nil }

// Edit applies a local changeset. The document is unchanged if it fails.
func (c *Client) Edit(d *delta.Delta) error {
	doc := c.doc.Clone()
	if err := doc.Apply(d); err != nil {
		return err
	}
	c.doc = doc
	if c.buffer == nil {
		c.buffer = d.Clone()
		return nil
	}
	return c.buffer.Apply(d)
}

// Flush returns the next change to submit, if there is one and no other
// change is in flight.
func (c *Client) Flush() (Change, bool) {
	if c.inflight != nil || c.buffer == nil {
		return Change{}, false
	}
	ch := Change{
		ID:    newChangeID(),
		Site:  c.site,
		Base:  c.rev,
		Delta: c.buffer.Done(),
	}
	c.inflight = &ch
	c.buffer = nil
	return ch, true
}

// Receive processes the next committed change from the hub: either the
// acknowledgement of the change in flight, or a change from another site.
func (c *Client) Receive(ch Change) error {
	if ch.Rev != c.rev+1 {
		return fmt.Errorf("%w: got rev %d, want %d", ErrOutOfOrder, ch.Rev, c.rev+1)
	}
	c.rev = ch.Rev
	if c.inflight != nil && ch.ID == c.inflight.ID {
		glog.V(2).Infof("[client]%s ack %s rev=%d\n", c.site, ch.ID, ch.Rev)
		c.inflight = nil
		return nil
	}
	remote := ch.Delta
	if c.inflight != nil {
		var err error
		remote, c.inflight.Delta, err = transform(remote, c.inflight.Delta)
		if err != nil {
			return err
		}
	}
	if c.buffer != nil {
		var err error
		remote, c.buffer, err = transform(remote, c.buffer)
		if err != nil {
			return err
		}
		c.buffer = c.buffer.Clone()
	}
	glog.V(2).Infof("[client]%s remote %s rev=%d: %v\n", c.site, ch.ID, ch.Rev, remote)
	return c.doc.Apply(remote)
}

// Returns remote rebased over local and local rebased over remote, both
// sealed. remote was committed first, so it wins ties.
func transform(remote, local *delta.Delta) (*delta.Delta, *delta.Delta, error) {
	r := remote.Clone()
	if err := r.Rebase(local, true); err != nil {
		return nil, nil, err
	}
	l := local.Clone()
	if err := l.Rebase(remote, false); err != nil {
		return nil, nil, err
	}
	return r.Done(), l.Done(), nil
}
