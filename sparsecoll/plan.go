// Package sparsecoll implements the sparse collective communication core:
// AlltoallCRS and AlltoallvCRS, backed by RMA, personalized, and
// nonblocking algorithms.
package sparsecoll

import (
	"github.com/ChrisOng2/locality-aware/dtype"
	"github.com/ChrisOng2/locality-aware/xnet"
)

// RecvCountUnknown is the sentinel a caller passes for FixedRecvPlan.NRecv
// or VarRecvPlan.RecvSizeTotal to ask the personalized algorithm to compute
// it via an all-reduce instead of supplying it directly.
const RecvCountUnknown = -1

// FixedSendPlan is the caller-owned, read-only send side of AlltoallCRS.
// Vals must hold exactly len(Dest)*Count elements of DType.
type FixedSendPlan struct {
	Dest  []xnet.Rank
	Count int
	DType dtype.DType
	Vals  []byte
}

// FixedRecvPlan is the caller-allocated receive side of AlltoallCRS. Src and
// Vals must have capacity for the worst case (every rank in the group,
// including this one, sending);
// NRecv, and the first NRecv entries of Src/Vals, are written by the
// algorithm. Set NRecv to RecvCountUnknown to request computation.
type FixedRecvPlan struct {
	NRecv int
	Src   []xnet.Rank
	Count int
	DType dtype.DType
	Vals  []byte
}

// VarSendPlan is the caller-owned, read-only send side of AlltoallvCRS.
// Dest must be sorted so that entries destined to the same node are
// contiguous — this repository does not itself exploit that ordering (no
// node-aware algorithm ships), but preserves the invariant for a future one.
type VarSendPlan struct {
	Dest        []xnet.Rank
	SendCounts  []int
	SendDispls  []int
	DType       dtype.DType
	Vals        []byte
}

// VarRecvPlan is the caller-allocated receive side of AlltoallvCRS.
// RecvSizeTotal may be RecvCountUnknown to request computation via
// reduction; on return it (and NRecv, Src, RecvCounts, RecvDispls) are
// filled in by the algorithm.
type VarRecvPlan struct {
	NRecv         int
	RecvSizeTotal int
	Src           []xnet.Rank
	RecvCounts    []int
	RecvDispls    []int
	DType         dtype.DType
	Vals          []byte
}
