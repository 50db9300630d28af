package sparsecoll

import (
	"fmt"

	"github.com/ChrisOng2/locality-aware/xnet"
)

func validateDest(dest []xnet.Rank, size int) error {
	for i, d := range dest {
		if d < 0 || int(d) >= size {
			return &InvariantError{Msg: fmt.Sprintf("dest[%d]=%d out of range [0,%d)", i, d, size)}
		}
	}
	return nil
}

func validateFixedSend(send FixedSendPlan, size int) error {
	if send.Count < 0 {
		return &InvariantError{Msg: fmt.Sprintf("send count %d is negative", send.Count)}
	}
	if err := validateDest(send.Dest, size); err != nil {
		return err
	}
	want := len(send.Dest) * send.Count * send.DType.Size()
	if len(send.Vals) < want {
		return &InvariantError{Msg: fmt.Sprintf("send.Vals has %d bytes, need %d", len(send.Vals), want)}
	}
	return nil
}

func validateVarSend(send VarSendPlan, size int) error {
	if len(send.SendCounts) != len(send.Dest) || len(send.SendDispls) != len(send.Dest) {
		return &InvariantError{Msg: "send_counts/send_displs length must match dest length"}
	}
	if err := validateDest(send.Dest, size); err != nil {
		return err
	}
	for i, c := range send.SendCounts {
		if c < 0 {
			return &InvariantError{Msg: fmt.Sprintf("send_counts[%d]=%d is negative", i, c)}
		}
		want := (send.SendDispls[i] + c) * send.DType.Size()
		if len(send.Vals) < want {
			return &InvariantError{Msg: fmt.Sprintf("send.Vals too short for entry %d (need %d bytes)", i, want)}
		}
	}
	return nil
}
