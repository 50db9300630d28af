// Package simulator is an in-process, goroutine-per-rank reference
// implementation of xnet.Group. It is not a mock of the three collective
// algorithms — it is a real (if single-process) message-passing runtime,
// used both by this repository's own test suite and as a way to exercise
// the library without a real MPI deployment.
package simulator

import (
	"context"
	"sync"

	"go.uber.org/atomic"

	"github.com/ChrisOng2/locality-aware/xnet"
)

// New builds a fully-connected group of n simulated ranks sharing one hub.
func New(n int) []xnet.Group {
	h := &hub{
		n:        n,
		inboxes:  make([]*inbox, n),
		windows:  make([]*window, n),
		barrier:  newBarrierState(n),
		allreduce: newRendezvous(n),
	}
	groups := make([]xnet.Group, n)
	for r := 0; r < n; r++ {
		h.inboxes[r] = newInbox()
		h.windows[r] = &window{}
		groups[r] = &rankGroup{hub: h, self: xnet.Rank(r)}
	}
	return groups
}

type message struct {
	src     xnet.Rank
	tag     int
	data    []byte
	matched chan struct{} // non-nil for synchronous sends; closed on Recv
}

type inbox struct {
	mu   sync.Mutex
	cond *sync.Cond
	msgs []*message
}

func newInbox() *inbox {
	b := &inbox{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *inbox) post(m *message) {
	b.mu.Lock()
	b.msgs = append(b.msgs, m)
	b.cond.Broadcast()
	b.mu.Unlock()
}

// findAny returns (without removing) the first message tagged tag, from any
// source.
func (b *inbox) findAny(tag int) (src xnet.Rank, count int, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range b.msgs {
		if m.tag == tag {
			return m.src, len(m.data), true
		}
	}
	return 0, 0, false
}

func (b *inbox) waitAny(tag int) (src xnet.Rank, count int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		for _, m := range b.msgs {
			if m.tag == tag {
				return m.src, len(m.data)
			}
		}
		b.cond.Wait()
	}
}

// take removes and returns the first message from src tagged tag, blocking
// until one is available.
func (b *inbox) take(src xnet.Rank, tag int) *message {
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		for i, m := range b.msgs {
			if m.tag == tag && (src == xnet.AnySource || m.src == src) {
				b.msgs = append(b.msgs[:i], b.msgs[i+1:]...)
				return m
			}
		}
		b.cond.Wait()
	}
}

type window struct {
	mu       sync.Mutex
	buf      []byte
	eltBytes int
}

func (w *window) EnsureSize(totalBytes, eltBytes int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) != totalBytes || w.eltBytes != eltBytes {
		w.buf = make([]byte, totalBytes)
		w.eltBytes = eltBytes
	}
	return nil
}

func (w *window) Bytes() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf
}

func (w *window) TotalBytes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buf)
}

func (w *window) EltBytes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.eltBytes
}

func (w *window) put(offset int, data []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	copy(w.buf[offset:offset+len(data)], data)
}

// barrierState implements both blocking and nonblocking barrier entry: Enter
// never blocks (it only records arrival); the returned request's Test/Wait
// observe whether the generation has since advanced past the caller's.
type barrierState struct {
	mu      sync.Mutex
	cond    *sync.Cond
	n       int
	arrived int
	gen     int
	entries atomic.Int64 // diagnostic: total entries ever recorded
}

func newBarrierState(n int) *barrierState {
	b := &barrierState{n: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Entries reports how many times this barrier has been entered in total,
// across every generation.
func (b *barrierState) Entries() int64 { return b.entries.Load() }

func (b *barrierState) enter() *barrierRequest {
	b.mu.Lock()
	myGen := b.gen
	b.arrived++
	b.entries.Inc()
	if b.arrived == b.n {
		b.arrived = 0
		b.gen++
		b.cond.Broadcast()
	}
	b.mu.Unlock()
	return &barrierRequest{b: b, gen: myGen}
}

type barrierRequest struct {
	b   *barrierState
	gen int
}

func (r *barrierRequest) Test() (bool, error) {
	r.b.mu.Lock()
	defer r.b.mu.Unlock()
	return r.b.gen != r.gen, nil
}

func (r *barrierRequest) Wait() error {
	r.b.mu.Lock()
	defer r.b.mu.Unlock()
	for r.b.gen == r.gen {
		r.b.cond.Wait()
	}
	return nil
}

// rendezvous is a blocking, payload-carrying barrier used for
// AllreduceSumInt: every caller's contribution is summed elementwise and the
// shared total is handed back to all of them.
type rendezvous struct {
	mu      sync.Mutex
	cond    *sync.Cond
	n       int
	arrived int
	gen     int
	acc     []int
	result  []int
}

func newRendezvous(n int) *rendezvous {
	r := &rendezvous{n: n}
	r.cond = sync.NewCond(&r.mu)
	return r
}

func (r *rendezvous) join(contribution []int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	myGen := r.gen
	if r.acc == nil {
		r.acc = make([]int, len(contribution))
	}
	for i, v := range contribution {
		r.acc[i] += v
	}
	r.arrived++
	if r.arrived == r.n {
		r.result = r.acc
		r.acc = nil
		r.arrived = 0
		r.gen++
		r.cond.Broadcast()
		return append([]int(nil), r.result...)
	}
	for r.gen == myGen {
		r.cond.Wait()
	}
	return append([]int(nil), r.result...)
}

type hub struct {
	n         int
	inboxes   []*inbox
	windows   []*window
	barrier   *barrierState
	allreduce *rendezvous
}

// rankGroup is one rank's view of the shared hub; it implements xnet.Group.
type rankGroup struct {
	hub  *hub
	self xnet.Rank
}

func (g *rankGroup) Rank() xnet.Rank { return g.self }
func (g *rankGroup) Size() int       { return g.hub.n }

// BarrierEntries reports how many times any rank has entered this group's
// barrier, for callers that want to assert on participation counts.
func (g *rankGroup) BarrierEntries() int64 { return g.hub.barrier.Entries() }

type completedRequest struct{}

func (completedRequest) Test() (bool, error) { return true, nil }
func (completedRequest) Wait() error         { return nil }

func (g *rankGroup) ISend(_ context.Context, dest xnet.Rank, tag int, data []byte) (xnet.Request, error) {
	cp := append([]byte(nil), data...)
	g.hub.inboxes[dest].post(&message{src: g.self, tag: tag, data: cp})
	return completedRequest{}, nil
}

func (g *rankGroup) ISSend(_ context.Context, dest xnet.Rank, tag int, data []byte) (xnet.Request, error) {
	cp := append([]byte(nil), data...)
	matched := make(chan struct{})
	g.hub.inboxes[dest].post(&message{src: g.self, tag: tag, data: cp, matched: matched})
	return &ssendRequest{matched: matched}, nil
}

type ssendRequest struct{ matched chan struct{} }

func (r *ssendRequest) Test() (bool, error) {
	select {
	case <-r.matched:
		return true, nil
	default:
		return false, nil
	}
}

func (r *ssendRequest) Wait() error {
	<-r.matched
	return nil
}

func (g *rankGroup) Probe(_ context.Context, tag int) (xnet.Rank, int, error) {
	src, count := g.hub.inboxes[g.self].waitAny(tag)
	return src, count, nil
}

func (g *rankGroup) IProbe(_ context.Context, tag int) (bool, xnet.Rank, int, error) {
	src, count, ok := g.hub.inboxes[g.self].findAny(tag)
	return ok, src, count, nil
}

func (g *rankGroup) Recv(_ context.Context, src xnet.Rank, tag int, buf []byte) error {
	m := g.hub.inboxes[g.self].take(src, tag)
	copy(buf, m.data)
	if m.matched != nil {
		close(m.matched)
	}
	return nil
}

func (g *rankGroup) Barrier(_ context.Context) error {
	return g.hub.barrier.enter().Wait()
}

func (g *rankGroup) IBarrier(_ context.Context) (xnet.Request, error) {
	return g.hub.barrier.enter(), nil
}

func (g *rankGroup) AllreduceSumInt(_ context.Context, data []int) ([]int, error) {
	return g.hub.allreduce.join(data), nil
}

func (g *rankGroup) Fence(ctx context.Context) error {
	return g.Barrier(ctx)
}

func (g *rankGroup) Put(_ context.Context, dest xnet.Rank, destOffset int, data []byte) error {
	g.hub.windows[dest].put(destOffset, data)
	return nil
}

func (g *rankGroup) Window() xnet.Window {
	return g.hub.windows[g.self]
}
