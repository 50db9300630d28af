package sparsecoll

import (
	"context"
	"fmt"

	"github.com/ChrisOng2/locality-aware/xcomm"
	"github.com/ChrisOng2/locality-aware/xnet"
)

// AlltoallCRSPersonalized implements the fixed-size personalized algorithm:
// an optional all-reduce to learn the receive count, followed by matched
// nonblocking sends and probed receives.
func AlltoallCRSPersonalized(ctx context.Context, send FixedSendPlan, recv *FixedRecvPlan, xc *xcomm.ExtComm) error {
	g := xc.Group()
	size := g.Size()
	rank := g.Rank()

	if err := validateFixedSend(send, size); err != nil {
		return err
	}

	sendBytes := send.Count * send.DType.Size()
	recvBytes := recv.Count * recv.DType.Size()
	if sendBytes != recvBytes {
		return &InvariantError{Msg: fmt.Sprintf("personalized alltoall requires matching send/recv byte widths (%d vs %d)", sendBytes, recvBytes)}
	}

	if recv.NRecv == RecvCountUnknown {
		msgCounts := make([]int, size)
		for _, d := range send.Dest {
			msgCounts[d] = 1
		}
		summed, err := g.AllreduceSumInt(ctx, msgCounts)
		if err != nil {
			return &TransportError{Op: "personalized: allreduce msg counts", Err: err}
		}
		recv.NRecv = summed[rank]
	}

	n := len(send.Dest)
	xc.EnsureRequests(n)
	reqs := xc.Requests(n)
	for i, d := range send.Dest {
		block := send.Vals[i*sendBytes : (i+1)*sendBytes]
		req, err := g.ISend(ctx, d, TagPersonalized, block)
		if err != nil {
			return &TransportError{Op: "personalized: isend", Err: err}
		}
		reqs[i] = req
	}

	for ctr := 0; ctr < recv.NRecv; ctr++ {
		src, count, err := g.Probe(ctx, TagPersonalized)
		if err != nil {
			return &TransportError{Op: "personalized: probe", Err: err}
		}
		dst := recv.Vals[ctr*recvBytes : ctr*recvBytes+count]
		if err := g.Recv(ctx, src, TagPersonalized, dst); err != nil {
			return &TransportError{Op: "personalized: recv", Err: err}
		}
		recv.Src[ctr] = src
	}

	if n > 0 {
		if err := xnet.WaitAll(reqs); err != nil {
			return &TransportError{Op: "personalized: waitall", Err: err}
		}
	}

	if xc.Stats != nil {
		xc.Stats.RecordCall(n*sendBytes, recv.NRecv*recvBytes, recv.NRecv)
	}
	return nil
}

// AlltoallvCRSPersonalized implements the variable-size personalized
// algorithm: the same all-reduce/send/probe shape as the fixed-size form,
// but operating on byte counts and displacements instead of a uniform
// element count.
func AlltoallvCRSPersonalized(ctx context.Context, send VarSendPlan, recv *VarRecvPlan, xc *xcomm.ExtComm) error {
	g := xc.Group()
	size := g.Size()
	rank := g.Rank()

	if err := validateVarSend(send, size); err != nil {
		return err
	}

	sendEltBytes := send.DType.Size()
	recvEltBytes := recv.DType.Size()
	if sendEltBytes != recvEltBytes {
		return &InvariantError{Msg: fmt.Sprintf("personalized alltoallv requires matching send/recv element widths (%d vs %d)", sendEltBytes, recvEltBytes)}
	}

	if recv.RecvSizeTotal == RecvCountUnknown {
		msgBytes := make([]int, size)
		for i, d := range send.Dest {
			msgBytes[d] += send.SendCounts[i] * sendEltBytes
		}
		summed, err := g.AllreduceSumInt(ctx, msgBytes)
		if err != nil {
			return &TransportError{Op: "personalized: allreduce msg bytes", Err: err}
		}
		recv.RecvSizeTotal = summed[rank] / recvEltBytes
	}

	n := len(send.Dest)
	xc.EnsureRequests(n)
	reqs := xc.Requests(n)
	for i, d := range send.Dest {
		off := send.SendDispls[i] * sendEltBytes
		ln := send.SendCounts[i] * sendEltBytes
		req, err := g.ISend(ctx, d, TagPersonalized, send.Vals[off:off+ln])
		if err != nil {
			return &TransportError{Op: "personalized: isend", Err: err}
		}
		reqs[i] = req
	}

	if len(recv.RecvDispls) > 0 {
		recv.RecvDispls[0] = 0
	}
	wantBytes := recv.RecvSizeTotal * recvEltBytes
	gotBytes := 0
	idx := 0
	for gotBytes < wantBytes {
		src, count, err := g.Probe(ctx, TagPersonalized)
		if err != nil {
			return &TransportError{Op: "personalized: probe", Err: err}
		}
		dst := recv.Vals[gotBytes : gotBytes+count]
		if err := g.Recv(ctx, src, TagPersonalized, dst); err != nil {
			return &TransportError{Op: "personalized: recv", Err: err}
		}
		recv.Src[idx] = src
		recv.RecvCounts[idx] = count / recvEltBytes
		recv.RecvDispls[idx+1] = recv.RecvDispls[idx] + recv.RecvCounts[idx]
		gotBytes += count
		idx++
	}
	recv.NRecv = idx

	if n > 0 {
		if err := xnet.WaitAll(reqs); err != nil {
			return &TransportError{Op: "personalized: waitall", Err: err}
		}
	}

	if xc.Stats != nil {
		sentBytes := 0
		for _, c := range send.SendCounts {
			sentBytes += c * sendEltBytes
		}
		xc.Stats.RecordCall(sentBytes, gotBytes, idx)
	}
	return nil
}
