// Package xcomm implements the extended communicator: the mutable scratch
// (request pool, RMA window, optional per-node sub-group) that the three
// collective algorithms in sparsecoll borrow for the duration of one call.
//
// An ExtComm is created by an external initializer and freed by an external
// finalizer; this package only grows scratch as needed and never retains
// caller buffers past a call's return.
package xcomm

import (
	"context"

	"github.com/ChrisOng2/locality-aware/cmn/debug"
	"github.com/ChrisOng2/locality-aware/cmn/nlog"
	"github.com/ChrisOng2/locality-aware/config"
	"github.com/ChrisOng2/locality-aware/metrics"
	"github.com/ChrisOng2/locality-aware/xnet"
)

// ExtComm owns the mutable scratch a collective call needs. It is not safe
// for concurrent calls: at most one collective may be in progress on a
// given handle at a time.
type ExtComm struct {
	group xnet.Group

	requests []xnet.Request // grown by doubling, never shrunk mid-lifetime

	winBytes    int
	winEltBytes int

	localGroup xnet.Group // lazily initialized per-node sub-group
	rankNode   int

	// Stats is optional; sparsecoll's algorithms record into it when set.
	Stats *metrics.CollStats
}

// SetStats attaches a stats handle that every subsequent call on this
// handle will record into. Pass nil to stop recording.
func (c *ExtComm) SetStats(s *metrics.CollStats) { c.Stats = s }

// New wraps an already-initialized process group. Construction and teardown
// of the group itself are an external initializer/finalizer's job; New only
// sets up this package's own scratch.
func New(group xnet.Group, rankNode int) *ExtComm {
	return &ExtComm{group: group, rankNode: rankNode}
}

// Group returns the underlying process group.
func (c *ExtComm) Group() xnet.Group { return c.group }

// RankNode is this rank's node id, used by a future topology-aware
// algorithm (none in this repository ships one).
func (c *ExtComm) RankNode() int { return c.rankNode }

// EnsureRequests grows the request pool to at least n slots, doubling each
// time to amortize allocation across repeated calls on the same handle. It
// never shrinks the pool.
func (c *ExtComm) EnsureRequests(n int) {
	if cap(c.requests) >= n {
		c.requests = c.requests[:n]
		return
	}
	newCap := cap(c.requests)
	if newCap == 0 {
		newCap = config.Get().RequestPoolMinCap
		if newCap < 1 {
			newCap = 1
		}
	}
	for newCap < n {
		newCap *= 2
	}
	grown := make([]xnet.Request, n, newCap)
	copy(grown, c.requests)
	c.requests = grown
	if nlog.V(4) {
		nlog.Infof("xcomm: request pool grown to cap=%d (need %d)", newCap, n)
	}
}

// Requests returns the first n slots of the (already-grown) request pool.
func (c *ExtComm) Requests(n int) []xnet.Request {
	debug.Assertf(len(c.requests) >= n, "request pool has %d slots, need %d", len(c.requests), n)
	return c.requests[:n]
}

// EnsureWindow tears down and reallocates the cached RMA window whenever its
// capacity or element granularity differ from what's requested — mirroring
// the source's MPIX_Comm_win_free/MPIX_Comm_win_init teardown-before-reuse
// policy rather than attempting to grow a window in place.
func (c *ExtComm) EnsureWindow(totalBytes, eltBytes int) (xnet.Window, error) {
	w := c.group.Window()
	if w.TotalBytes() != totalBytes || w.EltBytes() != eltBytes {
		if nlog.V(4) {
			nlog.Infof("xcomm: window realloc %d->%d bytes (elt %d->%d)",
				w.TotalBytes(), totalBytes, w.EltBytes(), eltBytes)
		}
		if err := w.EnsureSize(totalBytes, eltBytes); err != nil {
			return nil, err
		}
	}
	c.winBytes, c.winEltBytes = totalBytes, eltBytes
	return w, nil
}

// EnsureLocalGroup lazily instantiates the per-node sub-group. No shipped
// algorithm currently calls this; it exists so a future topology-aware
// algorithm has a seam to build on.
func (c *ExtComm) EnsureLocalGroup(ctx context.Context, init func(ctx context.Context) (xnet.Group, error)) (xnet.Group, error) {
	if c.localGroup != nil {
		return c.localGroup, nil
	}
	g, err := init(ctx)
	if err != nil {
		return nil, err
	}
	c.localGroup = g
	return g, nil
}
