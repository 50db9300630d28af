// Package xnet is the seam between the collective algorithms in sparsecoll
// and whatever message-passing runtime actually moves bytes between ranks.
// A process group with rank/size and a request/window scratch area are
// treated as pre-existing external services; xnet gives that contract a
// concrete Go shape, never touching a socket directly but depending on a
// Group-shaped interface instead.
//
// A real MPI binding, an RDMA fabric, or (for this repository's own tests)
// xnet/simulator can all implement Group. sparsecoll never type-asserts down
// to a concrete implementation.
package xnet

import "context"

// Rank identifies a participant within a Group. AnySource is the wildcard
// a caller passes to Recv to match a message from any sender; Probe and
// IProbe take no source and always match any sender.
type Rank int

const AnySource Rank = -1

// Request is a handle to an outstanding asynchronous operation: a send, or
// a nonblocking barrier entry. Wait blocks until the operation completes;
// Test reports completion without blocking.
type Request interface {
	Test() (bool, error)
	Wait() error
}

// Window is the byte-addressable one-sided scratch region backing the RMA
// algorithm. EnsureSize tears down and reallocates whenever the requested
// capacity or element granularity differ from what's cached — it never
// grows a window in place, since that would change the identity of a buffer
// some other goroutine might still hold a slice header into.
type Window interface {
	EnsureSize(totalBytes, eltBytes int) error
	Bytes() []byte
	TotalBytes() int
	EltBytes() int
}

// Group is a process group with rank/size, point-to-point messaging,
// barriers, a sum-reduction, and access to this rank's RMA window.
//
// Implementations MUST preserve FIFO delivery order for messages sharing a
// (source, tag) pair, and MUST NOT reorder across distinct sources.
type Group interface {
	Rank() Rank
	Size() int

	// ISend posts an asynchronous send; Request.Wait returns once the send
	// buffer may be reused (the data has already been captured; Wait never
	// blocks further in practice, but callers must still call it per the
	// request-pool contract).
	ISend(ctx context.Context, dest Rank, tag int, data []byte) (Request, error)

	// ISSend posts a synchronous send: its Request completes only once the
	// remote side has matched it with a Recv.
	ISSend(ctx context.Context, dest Rank, tag int, data []byte) (Request, error)

	// Probe blocks until a message tagged tag is available from any
	// source, returning its source rank and byte length.
	Probe(ctx context.Context, tag int) (src Rank, count int, err error)

	// IProbe is the nonblocking form of Probe.
	IProbe(ctx context.Context, tag int) (ok bool, src Rank, count int, err error)

	// Recv consumes the next message from src tagged tag into buf, which
	// must be exactly the probed length.
	Recv(ctx context.Context, src Rank, tag int, buf []byte) error

	// Barrier blocks until every rank in the group has called Barrier.
	Barrier(ctx context.Context) error

	// IBarrier is the nonblocking form of Barrier: entering never blocks,
	// and the returned Request completes once every rank has entered.
	IBarrier(ctx context.Context) (Request, error)

	// AllreduceSumInt computes an elementwise sum of data across every rank
	// and returns the result to all of them (in place would alias a shared
	// slice across simulated goroutines, so this returns a fresh slice).
	AllreduceSumInt(ctx context.Context, data []int) ([]int, error)

	// Fence is a collective synchronization point bracketing an RMA write
	// epoch. Implementations MAY implement it as a Barrier; the two are kept
	// as distinct methods because a real RMA fabric's fence is not always
	// literally a barrier.
	Fence(ctx context.Context) error

	// Put performs a one-sided write of data into dest's window at
	// destOffset bytes. Only valid between two Fence calls.
	Put(ctx context.Context, dest Rank, destOffset int, data []byte) error

	// Window returns this rank's own RMA window.
	Window() Window
}

// WaitAll waits for every request to complete, short-circuiting on the
// first error: one failed transport op aborts the whole collective.
func WaitAll(reqs []Request) error {
	for _, r := range reqs {
		if r == nil {
			continue
		}
		if err := r.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// TestAll reports whether every request has completed, without blocking.
func TestAll(reqs []Request) (bool, error) {
	for _, r := range reqs {
		if r == nil {
			continue
		}
		ok, err := r.Test()
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
