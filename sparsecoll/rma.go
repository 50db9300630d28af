package sparsecoll

import (
	"context"
	"fmt"

	"github.com/ChrisOng2/locality-aware/cmn/nlog"
	"github.com/ChrisOng2/locality-aware/xcomm"
	"github.com/ChrisOng2/locality-aware/xnet"
)

// rmaOpts configures AlltoallCRSRMA. The zero value is the fast/restricted
// mode; WithPresenceMarker switches to the safer marker-byte variant.
type rmaOpts struct {
	marker bool
}

// RMAOption configures AlltoallCRSRMA.
type RMAOption func(*rmaOpts)

// WithPresenceMarker selects the marker-byte RMA variant: a 1-byte presence
// flag is written ahead of every slot and scanned separately from the
// payload, lifting the "legitimate all-zero payload is indistinguishable
// from absent" restriction of the default fast mode at the cost of one
// extra byte per potential sender in the window.
func WithPresenceMarker() RMAOption {
	return func(o *rmaOpts) { o.marker = true }
}

// AlltoallCRSRMA implements the one-sided window algorithm.
//
// Precondition (fast mode, the default): a legitimate payload from a
// sending rank must never be all-zero bytes, since "all zero" is how this
// algorithm tells "absent" from "present." Use WithPresenceMarker if that
// cannot be guaranteed.
func AlltoallCRSRMA(ctx context.Context, send FixedSendPlan, recv *FixedRecvPlan, xc *xcomm.ExtComm, opts ...RMAOption) error {
	var o rmaOpts
	for _, opt := range opts {
		opt(&o)
	}

	g := xc.Group()
	size := g.Size()
	rank := g.Rank()

	if err := validateFixedSend(send, size); err != nil {
		return err
	}

	sendBytes := send.Count * send.DType.Size()
	recvBytes := recv.Count * recv.DType.Size()
	if sendBytes != recvBytes {
		return &InvariantError{Msg: fmt.Sprintf("RMA alltoall requires matching send/recv byte widths (%d vs %d)", sendBytes, recvBytes)}
	}

	stride := recvBytes
	if o.marker {
		stride = recvBytes + 1
	}
	totalBytes := size * stride

	win, err := xc.EnsureWindow(totalBytes, 1)
	if err != nil {
		return &CapacityError{Op: "rma: window allocation", Err: err}
	}
	buf := win.Bytes()
	for i := range buf {
		buf[i] = 0
	}

	if nlog.V(5) {
		nlog.Infof("rma: rank=%d entering fence #1 (window=%d bytes, marker=%v)", rank, totalBytes, o.marker)
	}
	if err := g.Fence(ctx); err != nil {
		return &TransportError{Op: "rma: fence #1", Err: err}
	}

	for i, dest := range send.Dest {
		block := send.Vals[i*sendBytes : (i+1)*sendBytes]
		offset := int(rank) * stride
		if o.marker {
			tmp := make([]byte, stride)
			tmp[0] = 1
			copy(tmp[1:], block)
			if err := g.Put(ctx, dest, offset, tmp); err != nil {
				return &TransportError{Op: "rma: put", Err: err}
			}
		} else {
			if err := g.Put(ctx, dest, offset, block); err != nil {
				return &TransportError{Op: "rma: put", Err: err}
			}
		}
	}

	if nlog.V(5) {
		nlog.Infof("rma: rank=%d entering fence #2", rank)
	}
	if err := g.Fence(ctx); err != nil {
		return &TransportError{Op: "rma: fence #2", Err: err}
	}

	ctr := 0
	for i := 0; i < size; i++ {
		slot := buf[i*stride : (i+1)*stride]
		var present bool
		var payload []byte
		if o.marker {
			present = slot[0] == 1
			payload = slot[1 : 1+recvBytes]
		} else {
			payload = slot
			for _, b := range slot {
				if b != 0 {
					present = true
					break
				}
			}
		}
		if !present {
			continue
		}
		recv.Src[ctr] = xnet.Rank(i)
		copy(recv.Vals[ctr*recvBytes:(ctr+1)*recvBytes], payload)
		ctr++
	}
	recv.NRecv = ctr

	if xc.Stats != nil {
		xc.Stats.RecordCall(len(send.Dest)*sendBytes, ctr*recvBytes, ctr)
	}
	return nil
}
