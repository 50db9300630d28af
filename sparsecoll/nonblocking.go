package sparsecoll

import (
	"context"
	"fmt"
	"runtime"

	"github.com/ChrisOng2/locality-aware/xcomm"
	"github.com/ChrisOng2/locality-aware/xnet"
)

// AlltoallCRSNonblocking implements the nonblocking-barrier algorithm:
// synchronous sends paired with a probe loop that only enters the
// distributed-termination barrier once every local send has completed, so a
// rank never declares itself done while a peer might still be about to
// probe it.
func AlltoallCRSNonblocking(ctx context.Context, send FixedSendPlan, recv *FixedRecvPlan, xc *xcomm.ExtComm) error {
	g := xc.Group()
	size := g.Size()

	if err := validateFixedSend(send, size); err != nil {
		return err
	}

	sendBytes := send.Count * send.DType.Size()
	recvBytes := recv.Count * recv.DType.Size()
	if sendBytes != recvBytes {
		return &InvariantError{Msg: fmt.Sprintf("nonblocking alltoall requires matching send/recv byte widths (%d vs %d)", sendBytes, recvBytes)}
	}

	n := len(send.Dest)
	xc.EnsureRequests(n)
	sendReqs := xc.Requests(n)
	for i, d := range send.Dest {
		block := send.Vals[i*sendBytes : (i+1)*sendBytes]
		req, err := g.ISSend(ctx, d, TagNonblocking, block)
		if err != nil {
			return &TransportError{Op: "nonblocking: issend", Err: err}
		}
		sendReqs[i] = req
	}

	var barrierReq xnet.Request
	barrierEntered := false
	ctr := 0

	for {
		ok, src, count, err := g.IProbe(ctx, TagNonblocking)
		if err != nil {
			return &TransportError{Op: "nonblocking: iprobe", Err: err}
		}
		if ok {
			dst := recv.Vals[ctr*recvBytes : ctr*recvBytes+count]
			if err := g.Recv(ctx, src, TagNonblocking, dst); err != nil {
				return &TransportError{Op: "nonblocking: recv", Err: err}
			}
			recv.Src[ctr] = src
			ctr++
		}

		if !barrierEntered {
			done, err := xnet.TestAll(sendReqs)
			if err != nil {
				return &TransportError{Op: "nonblocking: testall", Err: err}
			}
			if done {
				barrierReq, err = g.IBarrier(ctx)
				if err != nil {
					return &TransportError{Op: "nonblocking: ibarrier", Err: err}
				}
				barrierEntered = true
			}
		} else {
			done, err := barrierReq.Test()
			if err != nil {
				return &TransportError{Op: "nonblocking: barrier test", Err: err}
			}
			if done {
				break
			}
		}

		if xc.Stats != nil {
			xc.Stats.RecordBarrierSpin()
		}
		runtime.Gosched()
	}

	recv.NRecv = ctr

	if xc.Stats != nil {
		xc.Stats.RecordCall(n*sendBytes, ctr*recvBytes, ctr)
	}
	return nil
}
